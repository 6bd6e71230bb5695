package document

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/phuslu/log"

	"finqa/internal/chunker"
	"finqa/internal/domain"
	"finqa/internal/logging"
)

// Processor turns financial filings into ordered, citable chunks.
type Processor struct {
	window *chunker.Window
	logger *log.Logger
}

func NewProcessor(window *chunker.Window, logger *log.Logger) *Processor {
	return &Processor{window: window, logger: logging.OrDiscard(logger)}
}

// Supported reports whether the file extension can be processed.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".xml", ".xbrl", ".htm", ".html":
		return true
	}
	return false
}

// Process reads the file at path and returns its chunks in document order.
// Chunk.Index is the position of the chunk within the document.
func (p *Processor) Process(ctx context.Context, path string) ([]domain.Chunk, error) {
	ext := strings.ToLower(filepath.Ext(path))
	var (
		chunks []domain.Chunk
		err    error
	)
	switch ext {
	case ".pdf":
		chunks, err = p.processPDF(ctx, path)
	case ".xml", ".xbrl":
		chunks, err = p.processXBRL(ctx, path, false)
	case ".htm", ".html":
		chunks, err = p.processXBRL(ctx, path, true)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}
	for i := range chunks {
		chunks[i].Index = i
	}
	p.logger.Info().
		Str("path", path).
		Int("chunks", len(chunks)).
		Msg("document processed")
	return chunks, nil
}

func parseErr(path string, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", domain.ErrParse, filepath.Base(path), fmt.Sprintf(format, args...))
}

// clean drops control characters and collapses whitespace runs into single spaces.
func clean(text string) string {
	text = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		if !unicode.IsPrint(r) {
			return -1
		}
		return r
	}, text)
	return strings.Join(strings.Fields(text), " ")
}
