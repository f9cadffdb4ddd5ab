//go:build !ios && !android && (amd64 || arm64)

package recgo

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/obinnaokechukwu/recgo/avutil"
)

// FFmpeg native log levels (AV_LOG_* values).
const (
	LogQuiet   int32 = -8
	LogError   int32 = 16
	LogWarning int32 = 24
	LogInfo    int32 = 32
	LogVerbose int32 = 40
	LogDebug   int32 = 48
)

var pkgLogger atomic.Pointer[slog.Logger]

func init() {
	pkgLogger.Store(slog.New(discardHandler{}))
}

// SetLogger installs the logger used by the package. Passing nil silences it.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(discardHandler{})
	}
	pkgLogger.Store(l)
}

// SetNativeLogLevel sets the log level of the FFmpeg libraries themselves.
// Capture demuxers are chatty at info level; Recorder.Start lowers this to
// LogError unless the installed logger has debug (verbose) logging enabled.
func SetNativeLogLevel(level int32) error {
	if err := Init(); err != nil {
		return err
	}
	avutil.LogSetLevel(level)
	return nil
}

func logger() *slog.Logger {
	return pkgLogger.Load()
}

// discardHandler drops all records.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
