package cli

import (
	"io"
	"os"

	glog "github.com/goliatone/go-logger/glog"
)

// newLogger builds the root console logger; it doubles as the provider of the
// named component loggers.
func newLogger(w io.Writer, level string) *glog.BaseLogger {
	if w == nil {
		w = os.Stderr
	}
	return glog.NewLogger(
		glog.WithLevel(level),
		glog.WithWriter(w),
		glog.WithLoggerTypeConsole(),
		glog.WithName("integrations"),
	)
}
