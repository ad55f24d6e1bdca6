package mqlog

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputSplitterRoutesErrorToStderr(t *testing.T) {
	dir := t.TempDir()
	outFile, err := os.Create(filepath.Join(dir, "stdout"))
	require.NoError(t, err)
	defer outFile.Close()
	errFile, err := os.Create(filepath.Join(dir, "stderr"))
	require.NoError(t, err)
	defer errFile.Close()

	origOut, origErr := os.Stdout, os.Stderr
	os.Stdout, os.Stderr = outFile, errFile
	defer func() { os.Stdout, os.Stderr = origOut, origErr }()

	splitter := &OutputSplitter{}
	_, err = splitter.Write([]byte("level=error msg=boom\n"))
	require.NoError(t, err)
	_, err = splitter.Write([]byte("level=info msg=fine\n"))
	require.NoError(t, err)

	stdout, err := os.ReadFile(outFile.Name())
	require.NoError(t, err)
	stderr, err := os.ReadFile(errFile.Name())
	require.NoError(t, err)
	assert.Equal(t, "level=info msg=fine\n", string(stdout))
	assert.Equal(t, "level=error msg=boom\n", string(stderr))
}

func TestAttachFileCreatesDirAndFile(t *testing.T) {
	dir := t.TempDir()
	logfile := filepath.Join(dir, "nested", "svc.log")

	logger := logrus.New()
	orig := Logger
	Logger = logger
	defer func() { Logger = orig }()

	require.NoError(t, AttachFile(logfile))

	Logger.Info("hello")

	data, err := os.ReadFile(logfile)
	require.NoError(t, err)
	assert.True(t, bytes.Contains(data, []byte("hello")))
}

func TestJobLoggerCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})

	orig := Logger
	Logger = logger
	defer func() { Logger = orig }()

	jl := NewJobLogger("wx", "job-1")
	jl.Info("ran plugin")

	assert.Contains(t, buf.String(), `"job_id":"job-1"`)
	assert.Contains(t, buf.String(), `"service":"wx"`)
}

func TestJobLoggerWithField(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})

	orig := Logger
	Logger = logger
	defer func() { Logger = orig }()

	jl := NewJobLogger("wx", "job-1").WithField("plugin", "forecast")
	jl.Warn("plugin reported failure without raising")

	assert.Contains(t, buf.String(), `"plugin":"forecast"`)
}
