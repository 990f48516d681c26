package environment

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// DefaultDir is where environment records live relative to the repo root
const DefaultDir = "environments"

// Extensions a record may use, in lookup order
var Extensions = []string{".json", ".yaml", ".yml"}

// Store reads named environment records from a directory
type Store struct {
	fs  afero.Fs
	dir string
}

// NewStore creates a store over dir on the given filesystem
func NewStore(fs afero.Fs, dir string) *Store {
	if dir == "" {
		dir = DefaultDir
	}
	return &Store{
		fs:  fs,
		dir: dir,
	}
}

// NewOSStore creates a store over dir on the real filesystem
func NewOSStore(dir string) *Store {
	return NewStore(afero.NewOsFs(), dir)
}

// Dir returns the directory the store reads from
func (s *Store) Dir() string {
	return s.dir
}

// Names lists the available environment names, sorted.
// A missing directory has no environments.
func (s *Store) Names() ([]string, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list environments in %s: %w", s.dir, err)
	}

	seen := make(map[string]struct{})
	names := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if !isRecordExt(ext) {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ext)
		if _, dup := seen[name]; dup || name == "" {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)

	return names, nil
}

// Load returns the raw content and path of the named record
func (s *Store) Load(name string) ([]byte, string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil, "", s.notFound(name)
	}

	for _, ext := range Extensions {
		path := filepath.Join(s.dir, name+ext)
		data, err := afero.ReadFile(s.fs, path)
		if err == nil {
			return data, path, nil
		}
		if !os.IsNotExist(err) {
			return nil, path, fmt.Errorf("failed to read environment config %s: %w", path, err)
		}
	}

	return nil, "", s.notFound(name)
}

func (s *Store) notFound(name string) error {
	available, err := s.Names()
	if err != nil {
		available = []string{}
	}
	return &NotFoundError{Name: name, Available: available}
}

func isRecordExt(ext string) bool {
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}
