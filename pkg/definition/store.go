package definition

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	pkgsource "github.com/goliatone/go-formstate/pkg/source"
)

// Store holds definitions keyed by ID.
type Store struct {
	forms map[string]*Definition
}

// LoadFS walks fsys and parses every JSON/YAML definition file. A document
// without an id takes its file name (without extension). When fsys is nil
// the returned store is empty.
func LoadFS(fsys fs.FS, opts ...Option) (*Store, error) {
	store := &Store{forms: make(map[string]*Definition)}
	if fsys == nil {
		return store, nil
	}

	err := fs.WalkDir(fsys, ".", func(name string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || !isDefinitionFile(name) {
			return nil
		}

		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("definition: read %s: %w", name, err)
		}
		def, err := Parse(data, opts...)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if def.ID == "" {
			def.ID = strings.TrimSuffix(path.Base(name), path.Ext(name))
		}
		if _, exists := store.forms[def.ID]; exists {
			return fmt.Errorf("definition: duplicate form %q (file %s)", def.ID, name)
		}
		store.forms[def.ID] = def
		return nil
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

// Load reads a single definition through loader.
func Load(ctx context.Context, loader pkgsource.Loader, src pkgsource.Source, opts ...Option) (*Definition, error) {
	if loader == nil {
		return nil, fmt.Errorf("definition: loader is nil")
	}
	data, err := loader.Load(ctx, src)
	if err != nil {
		return nil, err
	}
	def, err := Parse(data, opts...)
	if err != nil {
		return nil, err
	}
	if def.ID == "" {
		location := src.Location()
		def.ID = strings.TrimSuffix(path.Base(location), path.Ext(location))
	}
	return def, nil
}

// Definition returns the form with the given id.
func (s *Store) Definition(id string) (*Definition, bool) {
	if s == nil {
		return nil, false
	}
	def, ok := s.forms[id]
	return def, ok
}

// IDs lists the stored form ids in order.
func (s *Store) IDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, 0, len(s.forms))
	for id := range s.forms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Empty reports whether the store holds any forms.
func (s *Store) Empty() bool {
	return s == nil || len(s.forms) == 0
}

func isDefinitionFile(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}
