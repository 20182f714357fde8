package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger — общий интерфейс логирования сервиса.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(err error, format string, args ...any)
	With(args ...any) Logger
}

// ZerologLogger реализует Logger поверх zerolog.
type ZerologLogger struct {
	l zerolog.Logger
}

// NewLogger создаёт логгер, настроенный через LOG_LEVEL и LOG_FORMAT.
func NewLogger() *ZerologLogger {
	return NewLoggerWithWriter(os.Stdout, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
}

// NewLoggerWithWriter создаёт логгер, пишущий в w.
// format: "json" (по умолчанию) или "console"/"text".
func NewLoggerWithWriter(w io.Writer, level string, format string) *ZerologLogger {
	out := w
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "console", "text":
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly, NoColor: true}
	}

	l := zerolog.New(out).
		Level(parseLevel(level)).
		With().
		Timestamp().
		Logger()

	return &ZerologLogger{l: l}
}

// NewNop возвращает логгер, отбрасывающий все записи. Используется в тестах.
func NewNop() *ZerologLogger {
	return &ZerologLogger{l: zerolog.Nop()}
}

func (z *ZerologLogger) Debugf(format string, args ...any) {
	z.l.Debug().Msgf(format, args...)
}

func (z *ZerologLogger) Infof(format string, args ...any) {
	z.l.Info().Msgf(format, args...)
}

func (z *ZerologLogger) Warnf(format string, args ...any) {
	z.l.Warn().Msgf(format, args...)
}

func (z *ZerologLogger) Errorf(err error, format string, args ...any) {
	z.l.Error().Err(err).Msgf(format, args...)
}

// With возвращает дочерний логгер с парами ключ-значение.
func (z *ZerologLogger) With(args ...any) Logger {
	return &ZerologLogger{l: z.l.With().Fields(args).Logger()}
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
