package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wolfman30/patientsim/pkg/logging"
)

// FileStore writes records under a local directory using the same key
// layout as Store.
type FileStore struct {
	dir    string
	logger *logging.Logger
}

func NewFileStore(dir string, logger *logging.Logger) *FileStore {
	if logger == nil {
		logger = logging.Default()
	}
	return &FileStore{dir: dir, logger: logger}
}

func (s *FileStore) Enabled() bool {
	return s != nil && s.dir != ""
}

// Archive writes record as indented JSON and appends the manifest.
func (s *FileStore) Archive(_ context.Context, record *SimulationRecord) (string, error) {
	if !s.Enabled() {
		return "", nil
	}
	stampRecord(record)

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("archive: marshal record: %w", err)
	}
	path := filepath.Join(s.dir, filepath.FromSlash(recordKey(record)))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("archive: create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("archive: write %s: %w", path, err)
	}

	line, err := json.Marshal(record.manifestEntry(path))
	if err != nil {
		return "", fmt.Errorf("archive: marshal manifest entry: %w", err)
	}
	if err := s.appendManifest(line); err != nil {
		s.logger.Warn("failed to append manifest", "error", err, "run_id", record.RunID)
	}

	s.logger.Info("archived simulation to disk", "run_id", record.RunID, "path", path)
	return path, nil
}

func (s *FileStore) appendManifest(line []byte) error {
	path := filepath.Join(s.dir, filepath.FromSlash(manifestKey(time.Now().UTC())))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(line, '\n'))
	return err
}
