// Package logging configura o logger estruturado da aplicação.
package logging

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/JeanGrijp/request-throttle/internal/config"
)

// New cria o logger do processo. Níveis desconhecidos viram info e qualquer
// formato diferente de "json" usa o console writer legível.
func New(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.DurationFieldUnit = time.Millisecond

	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level))); err == nil && parsed != zerolog.NoLevel {
		level = parsed
	}

	if strings.EqualFold(strings.TrimSpace(cfg.Format), "json") {
		return zerolog.New(out).Level(level).With().Timestamp().Logger()
	}

	writer := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: true}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}
