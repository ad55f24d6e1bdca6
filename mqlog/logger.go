// Package mqlog provides the framework's structured logging: a global
// logrus logger with stdout/stderr stream separation, and a per-job
// logger carrying job_id/service fields, which is what a plugin's
// LogCallback is backed by.
package mqlog

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/SUSE-Enceladus/mqsf/mqerr"
)

// OutputSplitter routes error-level log lines to stderr and everything
// else to stdout, so container log collectors can treat the two streams
// differently.
type OutputSplitter struct{}

func (OutputSplitter) Write(p []byte) (int, error) {
	if bytes.Contains(p, []byte("level=error")) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}

// Logger is the process-wide logrus instance. Services attach a file
// handler to it with AttachFile during startup.
var Logger = logrus.New()

func init() {
	Logger.SetOutput(&OutputSplitter{})
}

// AttachFile creates the log file's parent directory if needed, opens
// (or creates) it for appending, and adds it as an additional output
// for Logger alongside the OutputSplitter. Ported from the original's
// setup_logfile.
func AttachFile(logfile string) error {
	dir := filepath.Dir(logfile)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return mqerr.LogSetup(err, "creating log directory %s", dir)
	}

	f, err := os.OpenFile(logfile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return mqerr.LogSetup(err, "opening log file %s", logfile)
	}

	Logger.AddHook(&fileHook{file: f, formatter: Logger.Formatter})
	return nil
}

// fileHook mirrors every log entry to an open file, independent of the
// OutputSplitter's stdout/stderr routing.
type fileHook struct {
	file      *os.File
	formatter logrus.Formatter
}

func (h *fileHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *fileHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return fmt.Errorf("formatting log entry for file hook: %w", err)
	}
	_, err = h.file.Write(line)
	return err
}

// JobLogger is a logger scoped to a single job, pre-populated with the
// job_id and service fields every log line from plugin execution and
// the engine's job lifecycle carries. It is the LogCallback plugins are
// handed, with one method per log level (plain and printf-style).
type JobLogger struct {
	entry *logrus.Entry
}

// NewJobLogger returns a JobLogger for jobID scoped to service.
func NewJobLogger(service, jobID string) *JobLogger {
	return &JobLogger{
		entry: Logger.WithFields(logrus.Fields{
			"service": service,
			"job_id":  jobID,
		}),
	}
}

func (l *JobLogger) Debug(args ...interface{}) { l.entry.Debug(args...) }
func (l *JobLogger) Info(args ...interface{})  { l.entry.Info(args...) }
func (l *JobLogger) Warn(args ...interface{})  { l.entry.Warn(args...) }
func (l *JobLogger) Error(args ...interface{}) { l.entry.Error(args...) }

func (l *JobLogger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *JobLogger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *JobLogger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *JobLogger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

// WithField returns a derived JobLogger carrying an additional field,
// for a plugin that wants to tag its own log lines further.
func (l *JobLogger) WithField(key string, value interface{}) *JobLogger {
	return &JobLogger{entry: l.entry.WithField(key, value)}
}
