package definition

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Parse decodes and validates a definition document.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	err := yaml.Unmarshal(data, &def)
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("%w: %w", ErrInvalidValue, err)}
	}
	err = def.Validate()
	if err != nil {
		return nil, err
	}
	return &def, nil
}

func ParseFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definition: %w", err)
	}
	def, err := Parse(data)
	if err != nil {
		var defErr *Error
		if errors.As(err, &defErr) && defErr.Site == "" {
			defErr.Site = filepath.Base(path)
		}
		return nil, err
	}
	return def, nil
}

// LoadDir parses every .yml/.yaml file of a directory. Broken files do not prevent the others
// from loading, their errors are joined into the returned error.
func LoadDir(dir string) (map[string]*Definition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read definitions directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".yml") || strings.HasSuffix(name, ".yaml") {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	out := make(map[string]*Definition, len(names))
	var errs []error
	for _, name := range names {
		def, err := ParseFile(filepath.Join(dir, name))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := out[def.Key()]; dup {
			errs = append(errs, &Error{
				Site: def.Key(),
				Err:  fmt.Errorf("%w: duplicate definition in %s", ErrInvalidValue, name),
			})
			continue
		}
		out[def.Key()] = def
	}
	return out, errors.Join(errs...)
}
