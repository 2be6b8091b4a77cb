package chunker

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
)

func lengths(pieces []Piece) []int {
	out := make([]int, len(pieces))
	for i, p := range pieces {
		out[i] = p.End - p.Start
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSplit_InvalidConfig(t *testing.T) {
	tests := []struct {
		name          string
		size, overlap int
	}{
		{"zero size", 0, 0},
		{"negative size", -1, 0},
		{"overlap equals size", 10, 10},
		{"overlap exceeds size", 10, 11},
		{"negative overlap", 10, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Split("some text", tt.size, tt.overlap)
			if !errors.Is(err, domain.ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestSplit_EmptyText(t *testing.T) {
	pieces, err := Split("", 40, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pieces) != 0 {
		t.Errorf("expected no pieces, got %d", len(pieces))
	}
}

func TestSplit_NinetyRunes(t *testing.T) {
	text := strings.Repeat("abcdefghij", 9)

	pieces, err := Split(text, 40, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := lengths(pieces); !equalInts(got, []int{40, 40, 30}) {
		t.Fatalf("expected lengths [40 40 30], got %v", got)
	}
	for i := 1; i < len(pieces); i++ {
		if pieces[i].Start != pieces[i-1].End-10 {
			t.Errorf("piece %d does not overlap previous by 10", i)
		}
		if pieces[i].Overlap != 10 {
			t.Errorf("piece %d overlap = %d, want 10", i, pieces[i].Overlap)
		}
	}
	if Join(pieces) != text {
		t.Error("joined pieces do not reproduce the text")
	}
}

func TestSplit_HundredRunes(t *testing.T) {
	text := strings.Repeat("0123456789", 10)

	pieces, err := Split(text, 40, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Windows [0,40) [30,70) [60,100): full coverage with 10-rune overlaps.
	if got := lengths(pieces); !equalInts(got, []int{40, 40, 40}) {
		t.Fatalf("expected lengths [40 40 40], got %v", got)
	}
	if pieces[2].Start != 60 || pieces[2].End != 100 {
		t.Errorf("last piece = [%d,%d), want [60,100)", pieces[2].Start, pieces[2].End)
	}
	shared := pieces[0].Text[30:]
	if !strings.HasPrefix(pieces[1].Text, shared) {
		t.Errorf("second piece should start with %q", shared)
	}
	if Join(pieces) != text {
		t.Error("joined pieces do not reproduce the text")
	}
}

func TestSplit_ShorterThanSize(t *testing.T) {
	pieces, err := Split("short", 40, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pieces) != 1 || pieces[0].Text != "short" || pieces[0].Overlap != 0 {
		t.Errorf("unexpected pieces: %+v", pieces)
	}
}

func TestSplit_ExactSize(t *testing.T) {
	pieces, err := Split(strings.Repeat("x", 40), 40, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pieces) != 1 {
		t.Errorf("expected 1 piece, got %d", len(pieces))
	}
}

func TestSplit_CountsRunes(t *testing.T) {
	text := strings.Repeat("知识", 25)

	pieces, err := Split(text, 20, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, p := range pieces[:len(pieces)-1] {
		if n := len([]rune(p.Text)); n != 20 {
			t.Errorf("piece %d has %d runes, want 20", i, n)
		}
	}
	if Join(pieces) != text {
		t.Error("joined pieces do not reproduce the text")
	}
}

func TestSplit_Deterministic(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 20)

	a, _ := Split(text, 64, 16)
	b, _ := Split(text, 64, 16)
	if len(a) != len(b) {
		t.Fatalf("different piece counts: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("piece %d differs", i)
		}
	}
}

func TestSplit_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	alphabet := []rune("abc xyz\n\tüé知")

	for iter := 0; iter < 300; iter++ {
		n := rng.Intn(400)
		runes := make([]rune, n)
		for i := range runes {
			runes[i] = alphabet[rng.Intn(len(alphabet))]
		}
		text := string(runes)
		size := 1 + rng.Intn(60)
		overlap := rng.Intn(size)

		pieces, err := Split(text, size, overlap)
		if err != nil {
			t.Fatalf("size=%d overlap=%d: unexpected error: %v", size, overlap, err)
		}
		if n == 0 {
			if len(pieces) != 0 {
				t.Fatalf("expected no pieces for empty text")
			}
			continue
		}
		if pieces[0].Start != 0 || pieces[len(pieces)-1].End != n {
			t.Fatalf("size=%d overlap=%d: pieces do not cover the text", size, overlap)
		}
		for i, p := range pieces {
			l := p.End - p.Start
			if l > size || l <= 0 {
				t.Fatalf("piece %d has length %d (size %d)", i, l, size)
			}
			if i < len(pieces)-1 && l != size {
				t.Fatalf("non-final piece %d has length %d, want %d", i, l, size)
			}
			if i > 0 {
				if got := pieces[i-1].End - p.Start; got != overlap {
					t.Fatalf("pieces %d/%d overlap by %d, want %d", i-1, i, got, overlap)
				}
				if p.Overlap != overlap || l <= overlap {
					t.Fatalf("piece %d overlap metadata invalid", i)
				}
			}
		}
		if Join(pieces) != text {
			t.Fatalf("size=%d overlap=%d: reassembly mismatch", size, overlap)
		}
	}
}
