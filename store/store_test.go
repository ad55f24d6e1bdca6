package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/SUSE-Enceladus/mqsf/job"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "wx_jobs")

	_, err := New(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestPersistRemoveRoundTrip(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	rec := job.New("job-1")
	rec.Set("plugin", "forecast")
	require.NoError(t, s.Persist(rec))

	records, err := s.Enumerate(nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "job-1", records[0].ID())
	assert.Equal(t, "forecast", records[0].GetString("plugin"))

	require.NoError(t, s.Remove(rec.ID()))

	records, err = s.Enumerate(nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRemoveIsIdempotent(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, s.Remove("never-existed"))
	assert.NoError(t, s.Remove("never-existed"))
}

func TestEnumerateSkipsMalformedFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	rec := job.New("good")
	require.NoError(t, s.Persist(rec))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "job-bad.json"), []byte("not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "not-a-job-file.txt"), []byte("ignore"), 0o644))

	var skipped []string
	records, err := s.Enumerate(func(path string, err error) {
		skipped = append(skipped, path)
	})
	require.NoError(t, err)

	require.Len(t, records, 1)
	assert.Equal(t, "good", records[0].ID())
	assert.Len(t, skipped, 1)
}

func TestEnumerateEmptyDirectory(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	records, err := s.Enumerate(nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}
