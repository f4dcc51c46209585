package logger

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"replayhub/internal/platform/config"
)

// Init installs the process-wide logger described by cfg. Components that
// need their own logger derive it with log.With().Str("component", ...).
func Init(cfg config.LoggingConfig) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	log.Logger = New(cfg)
}

// New builds a logger without touching global state.
func New(cfg config.LoggingConfig) zerolog.Logger {
	var out io.Writer = os.Stdout

	switch {
	case cfg.Output == "file" && cfg.FilePath != "":
		w, err := openFile(cfg.FilePath)
		if err != nil {
			// fallback to stdout
			log.Error().Err(err).Str("path", cfg.FilePath).Msg("failed to open log file")
			break
		}
		out = w
	case cfg.Format == "text":
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).With().Timestamp().Str("service", "replayhub").Logger()
}

func ParseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func openFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o664)
}
