// Package chunker splits source text into backend-sized segments.
package chunker

import (
	"errors"
	"strings"
)

// ErrInvalidLimit reports a non-positive chunk limit.
var ErrInvalidLimit = errors.New("chunk limit must be positive")

// Split cuts text into word-bounded segments of at most limit
// characters. Words are never dropped: a single word longer than limit
// is force-split into rune-bounded pieces instead of being truncated.
// Joining the returned segments with a single space reproduces the
// word sequence of the input.
func Split(text string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, nil
	}

	var (
		chunks  []string
		current strings.Builder
		length  int // rune length of current
	)
	flush := func() {
		if length > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			length = 0
		}
	}

	for _, word := range words {
		runes := []rune(word)
		if len(runes) > limit {
			flush()
			for start := 0; start < len(runes); start += limit {
				end := start + limit
				if end > len(runes) {
					end = len(runes)
				}
				chunks = append(chunks, string(runes[start:end]))
			}
			continue
		}
		if length > 0 && length+1+len(runes) > limit {
			flush()
		}
		if length > 0 {
			current.WriteByte(' ')
			length++
		}
		current.WriteString(word)
		length += len(runes)
	}
	flush()

	return chunks, nil
}
