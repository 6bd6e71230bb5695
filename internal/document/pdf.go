package document

import (
	"context"
	"os"

	"github.com/ledongthuc/pdf"

	"finqa/internal/chunker"
	"finqa/internal/domain"
)

func (p *Processor) processPDF(ctx context.Context, path string) ([]domain.Chunk, error) {
	pages, err := p.extractPages(ctx, path)
	if err != nil {
		return nil, err
	}
	pieces := p.window.Split(pages)
	if len(pieces) == 0 {
		return nil, parseErr(path, "no extractable text")
	}
	chunks := make([]domain.Chunk, 0, len(pieces))
	for _, piece := range pieces {
		chunks = append(chunks, domain.Chunk{
			Text:         piece.Text,
			Source:       path,
			Pages:        piece.Pages,
			DocumentType: domain.DocumentTypePDF,
		})
	}
	return chunks, nil
}

// extractPages returns the cleaned text of every non-blank page. The pdf
// package panics on some malformed inputs, so panics surface as parse errors.
func (p *Processor) extractPages(ctx context.Context, path string) (pages []chunker.Segment, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, parseErr(path, "%v", err)
	}
	if info.Size() == 0 {
		return nil, parseErr(path, "empty file")
	}

	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, parseErr(path, "malformed pdf: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, parseErr(path, "%v", err)
	}
	defer f.Close()

	total := reader.NumPage()
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			p.logger.Warn().Err(err).Str("path", path).Int("page", i).Msg("skipping unreadable page")
			continue
		}
		text = clean(text)
		if text == "" {
			continue
		}
		pages = append(pages, chunker.Segment{Text: text, Page: i})
	}
	if len(pages) == 0 {
		return nil, parseErr(path, "no text found in %d pages", total)
	}
	p.logger.Debug().Str("path", path).Int("pages", total).Int("text_pages", len(pages)).Msg("pdf text extracted")
	return pages, nil
}
