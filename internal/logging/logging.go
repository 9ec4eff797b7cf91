// Package logging provides the process-wide structured logger shared
// by the Background Runner and the ingestord and docingestd
// commands. Every log line carries the calling package and file:line,
// and callers add the tenant_id/ingestion_id fields that tie a line
// back to one ingestion job.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Log is the application-wide logger, configured with JSON output at
// package init time using sane defaults. Call Configure once at
// startup to point it at the real log file and level from config.
var Log = logrus.New()

type contextHook struct{}

func (contextHook) Levels() []logrus.Level { return logrus.AllLevels }

func packageFromFunc(fn string) string {
	if i := strings.LastIndex(fn, "/"); i >= 0 {
		fn = fn[i+1:]
	}
	if i := strings.Index(fn, "."); i >= 0 {
		return fn[:i]
	}
	return fn
}

func (contextHook) Fire(e *logrus.Entry) error {
	if e.Caller == nil {
		return nil
	}
	pkg := packageFromFunc(e.Caller.Function)
	file := fmt.Sprintf("%s:%d", filepath.Base(e.Caller.File), e.Caller.Line)
	e.Data["package"] = pkg
	e.Data["file"] = file
	return nil
}

func init() {
	Log.SetReportCaller(true)
	Log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		CallerPrettyfier: func(f *runtime.Frame) (string, string) {
			function := filepath.Base(f.Function)
			file := fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
			return function, file
		},
	})
	Log.AddHook(contextHook{})
	Log.SetOutput(os.Stdout)
	Log.SetLevel(logrus.InfoLevel)
}

// Configure points Log at logPath in addition to stdout and sets its
// level. logPath empty keeps stdout-only output (the default a test
// binary or a one-shot dry run wants); level empty defaults to info.
// A file that can't be opened degrades to stdout-only rather than
// failing the caller's startup over a logging problem.
func Configure(logPath, level string) {
	if logPath != "" {
		logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			Log.WithError(err).WithField("path", logPath).Warn("logging: could not open log file, staying on stdout")
		} else {
			Log.SetOutput(io.MultiWriter(os.Stdout, logFile))
		}
	}

	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		Log.WithField("level", level).Warn("logging: unrecognized level, keeping info")
		return
	}
	Log.SetLevel(lvl)
}

// WithIngestion scopes a log entry to one tenant's ingestion job. The
// Background Runner and ingestord's startup/shutdown logging both key
// off this pair, so centralizing the field names here keeps them from
// drifting (tenant_id here, tenantId there) across call sites.
func WithIngestion(tenantID, ingestionID string) *logrus.Entry {
	return Log.WithField("tenant_id", tenantID).WithField("ingestion_id", ingestionID)
}
