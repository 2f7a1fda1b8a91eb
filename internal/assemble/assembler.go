// Package assemble stages synthesized chunks and concatenates them
// into one artifact.
package assemble

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const partSuffix = ".part"

// Store is a scoped temporary directory holding one file per chunk,
// named by chunk index. It is owned by a single request; Release must
// run whether assembly succeeds or fails.
type Store struct {
	dir string
}

// NewStore creates the staging directory. An empty parent uses the
// system temp dir.
func NewStore(parent string) (*Store, error) {
	dir, err := os.MkdirTemp(parent, "chunks-")
	if err != nil {
		return nil, fmt.Errorf("create chunk store: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir exposes the staging path so partial progress is inspectable.
func (s *Store) Dir() string { return s.dir }

// Put writes one chunk's bytes under its index. Chunks may arrive in
// any order.
func (s *Store) Put(index int, data []byte) error {
	if index < 0 {
		return fmt.Errorf("chunk index %d out of range", index)
	}
	name := filepath.Join(s.dir, strconv.Itoa(index)+partSuffix)
	if err := os.WriteFile(name, data, 0o644); err != nil {
		return fmt.Errorf("write chunk %d: %w", index, err)
	}
	return nil
}

// Assemble concatenates the stored chunks into dst in ascending index
// order. Entries are sorted by parsed numeric index, never by the
// directory listing: lexicographic order would place "10" before "2".
// The store must hold exactly count chunks indexed 0..count-1; a gap
// or a short prefix means a chunk went missing and the artifact would
// be silently truncated.
func (s *Store) Assemble(dst string, count int) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("list chunk store: %w", err)
	}

	indexed := make([]int, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, partSuffix) {
			continue
		}
		idx, err := strconv.Atoi(strings.TrimSuffix(name, partSuffix))
		if err != nil {
			return fmt.Errorf("unexpected chunk file %q: %w", name, err)
		}
		indexed = append(indexed, idx)
	}
	if len(indexed) != count {
		return fmt.Errorf("chunk store holds %d of %d chunks", len(indexed), count)
	}
	sort.Ints(indexed)
	for i, idx := range indexed {
		if idx != i {
			return fmt.Errorf("chunk store is not dense: expected index %d, found %d", i, idx)
		}
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}
	defer out.Close()

	for _, idx := range indexed {
		part, err := os.Open(filepath.Join(s.dir, strconv.Itoa(idx)+partSuffix))
		if err != nil {
			return fmt.Errorf("open chunk %d: %w", idx, err)
		}
		_, err = io.Copy(out, part)
		part.Close()
		if err != nil {
			return fmt.Errorf("append chunk %d: %w", idx, err)
		}
	}

	if err := out.Sync(); err != nil {
		return fmt.Errorf("sync artifact: %w", err)
	}
	return nil
}

// Release removes the staging directory and everything in it.
func (s *Store) Release() error {
	return os.RemoveAll(s.dir)
}
