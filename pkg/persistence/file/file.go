// Package file provides file-based persistence for workflow definitions,
// automation rules and execution logs. Intended for development and tests;
// production deployments use the postgresql package.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/taskloom/taskloom/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using JSON
// files under a root directory, one file per record.
type Persistence struct {
	root           string
	workflowRepo   *WorkflowRepository
	stateRepo      *StateRepository
	transitionRepo *TransitionRepository
	ruleRepo       *RuleRepository
	logRepo        *ExecutionLogRepository
}

// NewPersistence creates a file persistence rooted at the given directory.
// Accepts a plain path or a file:// URL.
func NewPersistence(root string) persistence.Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)
	store := newStore(cleanRoot)

	return &Persistence{
		root:           cleanRoot,
		workflowRepo:   &WorkflowRepository{store: store},
		stateRepo:      &StateRepository{store: store},
		transitionRepo: &TransitionRepository{store: store},
		ruleRepo:       &RuleRepository{store: store},
		logRepo:        &ExecutionLogRepository{store: store},
	}
}

func (fp *Persistence) Workflows() persistence.WorkflowRepository {
	return fp.workflowRepo
}

func (fp *Persistence) States() persistence.StateRepository {
	return fp.stateRepo
}

func (fp *Persistence) Transitions() persistence.TransitionRepository {
	return fp.transitionRepo
}

func (fp *Persistence) Rules() persistence.RuleRepository {
	return fp.ruleRepo
}

func (fp *Persistence) ExecutionLogs() persistence.ExecutionLogRepository {
	return fp.logRepo
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. Nothing to release for files.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// store serializes all file access under one process-level lock. File
// persistence trades concurrency for simplicity; the lock gives the same
// read-your-writes behavior a single database connection would.
type store struct {
	root string
	mu   sync.RWMutex
}

func newStore(root string) *store {
	return &store{root: root}
}

func (s *store) read(collection, id string, out any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(collection, id))
	if err != nil {
		return err
	}

	return json.Unmarshal(data, out)
}

func (s *store) write(collection, id string, record any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.root, collection)

	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path(collection, id), data, 0o644)
}

// update applies mutate to a decoded record and writes it back while holding
// the write lock, so concurrent updates cannot interleave.
func (s *store) update(collection, id string, record any, mutate func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(collection, id))
	if err != nil {
		return err
	}

	err = json.Unmarshal(data, record)
	if err != nil {
		return err
	}

	mutate()

	data, err = json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path(collection, id), data, 0o644)
}

func (s *store) remove(collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return os.Remove(s.path(collection, id))
}

// readAll decodes every record in the collection through decode, which
// receives the raw JSON of one file.
func (s *store) readAll(collection string, decode func(data []byte) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dir := os.DirFS(filepath.Join(s.root, collection))

	files, err := fs.Glob(dir, "*.json")
	if err != nil {
		return err
	}

	for _, file := range files {
		data, err := fs.ReadFile(dir, file)
		if err != nil {
			return err
		}

		err = decode(data)
		if err != nil {
			return err
		}
	}

	return nil
}

func (s *store) path(collection, id string) string {
	return filepath.Join(s.root, collection, id+".json")
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
