package logger

import (
	"io"

	"github.com/rs/zerolog"
)

// New создает zerolog логгер: format "text" пишет в консольном виде, иначе JSON.
// Неизвестный уровень заменяется на info.
func New(w io.Writer, level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	if format == "text" {
		cw := zerolog.NewConsoleWriter()
		cw.Out = w
		return zerolog.New(cw).Level(lvl).With().Timestamp().Logger()
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}
