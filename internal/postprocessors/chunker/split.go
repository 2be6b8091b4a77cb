package chunker

import (
	"fmt"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
)

// Piece is one window of a split text. Offsets are in runes.
type Piece struct {
	// Text is the window content.
	Text string

	// Start is the offset of the first rune.
	Start int

	// End is the offset one past the last rune.
	End int

	// Overlap is the number of leading runes shared with the previous piece.
	Overlap int
}

// Split cuts text into windows of size runes, each starting overlap runes
// before the end of the previous one. Every piece except the last has
// exactly size runes and the last is never shorter than overlap+1.
// Returns domain.ErrInvalidConfig unless 0 <= overlap < size.
func Split(text string, size, overlap int) ([]Piece, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidConfig, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap must be within 0..%d, got %d", domain.ErrInvalidConfig, size-1, overlap)
	}

	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil, nil
	}

	step := size - overlap
	pieces := make([]Piece, 0, (max(n-overlap, 1)+step-1)/step)

	start := 0
	shared := 0
	for {
		end := min(start+size, n)
		pieces = append(pieces, Piece{
			Text:    string(runes[start:end]),
			Start:   start,
			End:     end,
			Overlap: shared,
		})
		if end == n {
			break
		}
		start = end - overlap
		shared = overlap
	}

	return pieces, nil
}

// Join reassembles pieces by concatenating their non-overlapping regions.
func Join(pieces []Piece) string {
	var out []rune
	for _, p := range pieces {
		r := []rune(p.Text)
		out = append(out, r[p.Overlap:]...)
	}
	return string(out)
}
