package schema

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when no schema exists for a namespace pair.
	ErrNotFound = errors.New("schema not found")

	// ErrInvalidNamespace is returned for a malformed namespace identifier.
	ErrInvalidNamespace = errors.New("invalid namespace identifier")
)

// Store resolves a namespace pair to its schema.
type Store interface {
	// Resolve returns the schema for (namespaceA, namespaceB).
	// Returns ErrNotFound when the pair has no schema.
	Resolve(ctx context.Context, namespaceA, namespaceB string) (*Schema, error)
}

// FileStore resolves schemas from <dir>/<namespaceA>_<namespaceB>.json.
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Path returns the schema file path for a namespace pair.
func (s *FileStore) Path(namespaceA, namespaceB string) string {
	return filepath.Join(s.dir, namespaceA+"_"+namespaceB+".json")
}

// Resolve implements Store.
func (s *FileStore) Resolve(ctx context.Context, namespaceA, namespaceB string) (*Schema, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if namespaceA == "" || namespaceB == "" {
		return nil, fmt.Errorf("%w: empty namespace", ErrInvalidNamespace)
	}

	path := s.Path(namespaceA, namespaceB)
	sch, err := Load(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s_%s", ErrNotFound, namespaceA, namespaceB)
		}
		return nil, err
	}
	if sch.Len() == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrNotFound, path)
	}
	return sch, nil
}

// List returns the namespace identifiers available in the store, sorted.
func (s *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading schema directory: %w", err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if _, _, err := ParseNamespaceID(e.Name()); err != nil {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

// ParseNamespaceID splits an identifier of the form A_B (optionally with a
// .json suffix) at the first underscore.
func ParseNamespaceID(id string) (namespaceA, namespaceB string, err error) {
	id = strings.TrimSuffix(strings.TrimSpace(id), ".json")
	a, b, ok := strings.Cut(id, "_")
	if !ok || a == "" || b == "" {
		return "", "", fmt.Errorf("%w: %q (expected A_B)", ErrInvalidNamespace, id)
	}
	return a, b, nil
}
