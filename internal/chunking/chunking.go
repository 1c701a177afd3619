// Package chunking partitions a document into bounded word windows.
package chunking

import (
	"fmt"
	"strings"

	"github.com/jcolano/SDG-simplified-evolution-generation/internal/domain"
)

// Chunk splits document on whitespace into consecutive, non-overlapping
// segments of at most maxWords words. The final segment may be shorter.
// Words are rejoined with single spaces, so the concatenation of all segments
// equals the whitespace-normalized document.
//
// An empty or whitespace-only document yields no segments. A non-positive
// maxWords fails with domain.ErrInvalidConfiguration.
func Chunk(document string, maxWords int) ([]domain.Segment, error) {
	if maxWords <= 0 {
		return nil, fmt.Errorf("%w: max words must be positive, got %d", domain.ErrInvalidConfiguration, maxWords)
	}

	words := strings.Fields(document)
	if len(words) == 0 {
		return []domain.Segment{}, nil
	}

	segments := make([]domain.Segment, 0, Count(len(words), maxWords))
	for start := 0; start < len(words); start += maxWords {
		end := min(start+maxWords, len(words))
		segments = append(segments, domain.Segment{
			Index: len(segments),
			Text:  strings.Join(words[start:end], " "),
		})
	}
	return segments, nil
}

// Count returns the number of segments Chunk produces for wordCount words,
// ceil(wordCount / maxWords). It returns 0 when maxWords is not positive.
func Count(wordCount, maxWords int) int {
	if maxWords <= 0 || wordCount <= 0 {
		return 0
	}
	return (wordCount + maxWords - 1) / maxWords
}
