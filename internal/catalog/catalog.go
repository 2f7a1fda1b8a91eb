// Package catalog enumerates synthesis requests from a CSV file.
package catalog

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/vozlabs/voz-pipeline/internal/synth"
)

// Expected header: request_id,text_speaker,request_text.
func Load(path string) ([]synth.Request, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open request catalog: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read request catalog: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("request catalog %s is empty", path)
	}

	head := rows[0]
	if len(head) < 3 || head[0] != "request_id" || head[1] != "text_speaker" || head[2] != "request_text" {
		return nil, fmt.Errorf("request catalog %s has unexpected header %v", path, head)
	}

	requests := make([]synth.Request, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) < 3 {
			return nil, fmt.Errorf("request catalog row %d is short: %v", i+2, row)
		}
		if row[2] == "" {
			return nil, fmt.Errorf("request catalog row %d has empty text", i+2)
		}
		requests = append(requests, synth.Request{
			ID:      row[0],
			Speaker: row[1],
			Text:    row[2],
		})
	}
	return requests, nil
}
