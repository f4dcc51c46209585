package projects

import (
	"time"

	"replayhub/internal/platform/models"
)

const day = 24 * time.Hour

// stateWindow bounds the sessions considered when classifying: three days
// back, one day ahead to tolerate client clock skew.
func stateWindow(now time.Time) (from, to int64) {
	return now.Add(-3 * day).UnixMilli(), now.Add(day).UnixMilli()
}

// ClassifyRecording maps the latest session start (unix ms, nil when there
// is none) to a recording state: green within the last day, yellow within
// the day before, red otherwise.
func ClassifyRecording(now time.Time, lastSessionAt *int64) models.RecordingState {
	if lastSessionAt == nil {
		return models.RecordingRed
	}
	last := *lastSessionAt
	oneDayAgo := now.Add(-day).UnixMilli()
	twoDaysAgo := now.Add(-2 * day).UnixMilli()

	switch {
	case last >= oneDayAgo:
		return models.RecordingGreen
	case last >= twoDaysAgo:
		return models.RecordingYellow
	default:
		return models.RecordingRed
	}
}
