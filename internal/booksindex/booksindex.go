// Package booksindex implements the durable books.json index: the
// ordered, duplicate-free list of acquired novel slugs a fresh CLI
// invocation consults to decide whether a catalog has already been
// downloaded (spec §6, §4.Z3).
package booksindex

import (
	"encoding/json"
	"os"
)

// fileSchema is books.json's on-disk shape: {"books": ["slug-a", ...]}.
type fileSchema struct {
	Books []string `json:"books"`
}

// Index operates on one books.json file.
type Index struct {
	path string
}

// New constructs an Index over path.
func New(path string) *Index {
	return &Index{path: path}
}

// Read returns the ordered, duplicate-free list of slugs currently
// recorded, or an empty slice if the file does not yet exist.
func (idx *Index) Read() ([]string, error) {
	s, err := idx.read()
	if err != nil {
		return nil, err
	}
	return s.Books, nil
}

// Add appends slug iff not already present, re-reading the file first so
// a concurrent writer's entry is never clobbered (spec §5: "writers must
// re-read before each append").
func (idx *Index) Add(slug string) error {
	s, err := idx.read()
	if err != nil {
		return err
	}
	for _, b := range s.Books {
		if b == slug {
			return nil
		}
	}
	s.Books = append(s.Books, slug)
	return idx.write(s)
}

func (idx *Index) read() (fileSchema, error) {
	b, err := os.ReadFile(idx.path)
	if os.IsNotExist(err) {
		return fileSchema{}, nil
	}
	if err != nil {
		return fileSchema{}, err
	}
	var s fileSchema
	if err := json.Unmarshal(b, &s); err != nil {
		return fileSchema{}, err
	}
	return s, nil
}

func (idx *Index) write(s fileSchema) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(idx.path, b, 0o644)
}
