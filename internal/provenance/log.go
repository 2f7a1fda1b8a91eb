// Package provenance maps produced artifacts back to their source
// text.
package provenance

import (
	"encoding/csv"
	"fmt"
	"os"
)

var header = []string{"Filename", "Text"}

// Log is an append-only CSV file correlating artifact filenames with
// the text they were synthesized from. The header row is written
// exactly once per file, however many runs append to it.
type Log struct {
	path string
}

func New(path string) *Log {
	return &Log{path: path}
}

func (l *Log) Path() string { return l.path }

// Append records one successfully produced artifact. Failed requests
// must not be recorded.
func (l *Log) Append(filename, text string) error {
	_, statErr := os.Stat(l.path)
	needHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open provenance log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if needHeader {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("write provenance header: %w", err)
		}
	}
	if err := w.Write([]string{filename, text}); err != nil {
		return fmt.Errorf("write provenance record: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush provenance log: %w", err)
	}
	return nil
}
