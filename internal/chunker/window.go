package chunker

import (
	"fmt"
)

// Segment is a span of source text. Page is 1-based; zero means the text has no page.
type Segment struct {
	Text string
	Page int
}

// Piece is one window of the joined segment text.
type Piece struct {
	Text  string
	Pages []int
	Start int
	End   int
}

// Window splits text into fixed-size rune windows where consecutive windows
// share exactly overlap runes.
type Window struct {
	size    int
	overlap int
}

type span struct {
	start, end, page int
}

func NewWindow(size, overlap int) (*Window, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &Window{size: size, overlap: overlap}, nil
}

func (w *Window) Size() int    { return w.size }
func (w *Window) Overlap() int { return w.overlap }

// SplitText windows a single page-less text.
func (w *Window) SplitText(text string) []Piece {
	return w.Split([]Segment{{Text: text}})
}

// Split joins non-empty segments with a single space and windows the result.
// Each piece lists every page whose text it overlaps, in ascending order.
func (w *Window) Split(segments []Segment) []Piece {
	var runes []rune
	var spans []span
	for _, seg := range segments {
		if seg.Text == "" {
			continue
		}
		if len(runes) > 0 {
			runes = append(runes, ' ')
		}
		start := len(runes)
		runes = append(runes, []rune(seg.Text)...)
		spans = append(spans, span{start: start, end: len(runes), page: seg.Page})
	}
	n := len(runes)
	if n == 0 {
		return nil
	}
	step := w.size - w.overlap
	var pieces []Piece
	for start := 0; ; start += step {
		end := start + w.size
		if end > n {
			end = n
		}
		pieces = append(pieces, Piece{
			Text:  string(runes[start:end]),
			Pages: pagesIn(spans, start, end),
			Start: start,
			End:   end,
		})
		if end == n {
			break
		}
	}
	return pieces
}

func pagesIn(spans []span, start, end int) []int {
	var pages []int
	for _, s := range spans {
		if s.page == 0 || s.end <= start || s.start >= end {
			continue
		}
		if len(pages) > 0 && pages[len(pages)-1] == s.page {
			continue
		}
		pages = append(pages, s.page)
	}
	return pages
}
