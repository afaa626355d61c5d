package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	walog "go.mau.fi/whatsmeow/util/log"
)

// New builds the process logger. format is "json" or "console".
func New(level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var w io.Writer = os.Stdout
	if strings.ToLower(format) != "json" {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime}
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// WhatsApp adapts the logger for whatsmeow, tagging lines with module.
func WhatsApp(log zerolog.Logger, module string) walog.Logger {
	return walog.Zerolog(log.With().Str("module", module).Logger())
}
