// Package store persists JobRecords to disk so a crashed stage can
// pick its in-flight work back up on restart. One JSON file per job id,
// named job-<id>.json, lives under the stage's job directory.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/SUSE-Enceladus/mqsf/job"
)

// Store is a directory of per-job JSON files.
type Store struct {
	dir string
}

// New returns a Store rooted at dir, creating it if it does not exist.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating job directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, "job-"+id+".json")
}

// Persist writes rec's JSON encoding to job-<id>.json, with stable
// (alphabetical) key ordering so two stages observing the same record
// agree byte-for-byte.
func (s *Store) Persist(rec *job.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling job %s: %w", rec.ID(), err)
	}
	if err := os.WriteFile(s.path(rec.ID()), data, 0o644); err != nil {
		return fmt.Errorf("writing job file for %s: %w", rec.ID(), err)
	}
	return nil
}

// Remove deletes job-<id>.json. A missing file is not an error — this
// mirrors the original's remove_file and lets callers always call
// Remove before Publish without checking existence first.
func (s *Store) Remove(id string) error {
	err := os.Remove(s.path(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing job file for %s: %w", id, err)
	}
	return nil
}

// Enumerate returns every record currently on disk, one per file
// present at call time. An unreadable or malformed file is skipped and
// reported through onError rather than aborting the whole scan, so a
// single corrupt job file cannot block recovery of the rest (spec §4.2).
func (s *Store) Enumerate(onError func(path string, err error)) ([]*job.Record, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading job directory %s: %w", s.dir, err)
	}

	var records []*job.Record
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "job-") || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		full := filepath.Join(s.dir, entry.Name())
		data, err := os.ReadFile(full)
		if err != nil {
			if onError != nil {
				onError(full, err)
			}
			continue
		}

		rec := &job.Record{}
		if err := json.Unmarshal(data, rec); err != nil {
			if onError != nil {
				onError(full, err)
			}
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}
