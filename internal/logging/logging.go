package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const consoleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Init configures the global zerolog logger. Production-like environments
// get JSON lines; everything else gets the console writer.
func Init(level, env string) {
	InitWriter(os.Stdout, level, env)
}

// InitWriter is Init with an explicit output.
func InitWriter(out io.Writer, level, env string) {
	zerolog.ErrorFieldName = "err"

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	w := out
	if !structured(env) {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: consoleTimeFormat}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Str("service", "prayer-times").Logger()
}

func structured(env string) bool {
	switch strings.ToLower(env) {
	case "production", "prod", "staging":
		return true
	}
	return false
}
