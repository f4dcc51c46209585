package clock

import "time"

// Clock abstracts time retrieval so services are deterministic in tests.
type Clock interface {
	Now() time.Time
}

// Real returns the actual current time.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

// NowMillis returns c.Now() as unix milliseconds, the unit every stored
// timestamp uses.
func NowMillis(c Clock) int64 {
	return c.Now().UnixMilli()
}
