package logging

import (
	"io"
	"log/slog"
)

// Logger sends informational messages to a text stream and errors to a JSON
// stream. It satisfies the library Logger interface.
type Logger struct {
	InfoLog  *slog.Logger
	ErrorLog *slog.Logger
}

// New builds the usual pair: the compact text handler on info and JSON on
// errors.
func New(info, errs io.Writer, level slog.Level) Logger {
	opts := &slog.HandlerOptions{Level: level}
	return Logger{
		InfoLog:  slog.New(NewHandler(info, opts)),
		ErrorLog: slog.New(slog.NewJSONHandler(errs, opts)),
	}
}

func (l Logger) Info(message string, module string) {
	l.InfoLog.Info(message, "module", module)
}

func (l Logger) Error(message string) {
	l.ErrorLog.Error(message)
}
