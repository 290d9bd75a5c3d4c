package logging

import (
	"io"

	hclog "github.com/hashicorp/go-hclog"
)

// New builds the root logger. Components derive their own with Named.
func New(level string, out io.Writer) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:            "arrivalwatch",
		Level:           hclog.LevelFromString(level),
		Output:          out,
		IncludeLocation: false,
		TimeFormat:      "2006-01-02T15:04:05.000Z07:00",
	})
}

// OrNull returns logger, or a discarding logger when logger is nil.
func OrNull(logger hclog.Logger) hclog.Logger {
	if logger == nil {
		return hclog.NewNullLogger()
	}
	return logger
}
