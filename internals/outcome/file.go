package outcome

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore writes one JSON file per task id under a fixed directory, the
// location derivable from the id alone. The write goes through a temp file
// and rename so readers never observe a partial outcome.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Put(ctx context.Context, out Outcome) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode outcome: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, out.TaskID+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path(out.TaskID))
}

func (s *FileStore) GetAndConsume(ctx context.Context, taskID string) (Outcome, error) {
	if ctx.Err() != nil {
		return Outcome{}, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(taskID)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Outcome{}, ErrNotFound
		}
		return Outcome{}, err
	}

	var out Outcome
	if err := json.Unmarshal(data, &out); err != nil {
		return Outcome{}, fmt.Errorf("failed to decode outcome %s: %w", taskID, err)
	}

	if err := os.Remove(path); err != nil {
		return Outcome{}, err
	}
	return out, nil
}

func (s *FileStore) path(taskID string) string {
	// Task ids are generated (uuid); Base strips anything path-like from
	// caller-supplied ids.
	return filepath.Join(s.dir, filepath.Base(taskID)+".json")
}
