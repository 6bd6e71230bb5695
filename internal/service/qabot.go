package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/phuslu/log"

	"finqa/internal/domain"
	"finqa/internal/logging"
	"finqa/internal/rag"
	"finqa/internal/vectorstore"
)

// State is the lifecycle stage of a QABot.
type State int

const (
	StateEmpty State = iota
	StateProcessing
	StateIndexed
	StateAnsweringReady
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateProcessing:
		return "processing"
	case StateIndexed:
		return "indexed"
	case StateAnsweringReady:
		return "answering-ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// DocumentProcessor turns a file into chunks.
type DocumentProcessor interface {
	Process(ctx context.Context, path string) ([]domain.Chunk, error)
}

// Options tunes retrieval and the ingest summary.
type Options struct {
	TopK             int
	MaxContextChars  int
	SummarySentences int
}

// ProcessResult describes one ingested document.
type ProcessResult struct {
	Path    string
	Chunks  int
	Added   int
	Summary string
}

// BatchResult pairs a question with its answer or error.
type BatchResult struct {
	Question string
	Answer   *domain.Answer
	Err      error
}

// Stats is a snapshot of the bot and its vector store.
type Stats struct {
	vectorstore.Stats
	State     string   `json:"state"`
	Documents []string `json:"documents"`
	Generator string   `json:"generator,omitempty"`
}

// QABot coordinates document ingestion, persistence and question answering.
// State transitions are serialised; only one document is processed at a time.
type QABot struct {
	mu         sync.Mutex
	state      State
	documents  []string
	processor  DocumentProcessor
	store      *vectorstore.Store
	generator  domain.Generator
	summarizer domain.Summarizer
	pipeline   *rag.Pipeline
	opts       Options
	logger     *log.Logger
}

// NewQABot wires the bot. generator and summarizer may be nil; questions then
// fail with ErrGeneration and results carry no summary.
func NewQABot(processor DocumentProcessor, store *vectorstore.Store, generator domain.Generator, summarizer domain.Summarizer, opts Options, logger *log.Logger) *QABot {
	return &QABot{
		processor:  processor,
		store:      store,
		generator:  generator,
		summarizer: summarizer,
		opts:       opts,
		logger:     logging.OrDiscard(logger),
	}
}

// State returns the current lifecycle stage.
func (b *QABot) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// ProcessDocument chunks, embeds and indexes the file at path. On failure the
// bot returns to its previous state and the index is left as it was.
func (b *QABot) ProcessDocument(ctx context.Context, path string) (_ *ProcessResult, err error) {
	b.mu.Lock()
	if b.state == StateProcessing {
		b.mu.Unlock()
		return nil, domain.ErrBusy
	}
	prev := b.state
	b.state = StateProcessing
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if err != nil {
			b.state = prev
			return
		}
		b.state = StateIndexed
		b.documents = append(b.documents, path)
	}()

	b.logger.Info().Str("path", path).Msg("processing document")
	chunks, err := b.processor.Process(ctx, path)
	if err != nil {
		return nil, err
	}
	added, err := b.store.AddChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}
	if added == 0 {
		return nil, fmt.Errorf("%w: %s: no chunk could be embedded", domain.ErrParse, path)
	}

	res := &ProcessResult{Path: path, Chunks: len(chunks), Added: added}
	if b.summarizer != nil {
		texts := make([]string, len(chunks))
		for i, ch := range chunks {
			texts[i] = ch.Text
		}
		summary, serr := b.summarizer.Summarize(strings.Join(texts, "\n"), b.opts.SummarySentences)
		if serr != nil {
			b.logger.Warn().Err(serr).Str("path", path).Msg("summary failed")
		}
		res.Summary = summary
	}
	return res, nil
}

// AskQuestion answers one question from the indexed documents.
func (b *QABot) AskQuestion(ctx context.Context, question string) (*domain.Answer, error) {
	p, err := b.ready()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(question) == "" {
		return nil, domain.ErrEmptyQuestion
	}
	return p.Answer(ctx, question, b.opts.TopK)
}

// AskBatch answers the non-blank questions in order. A failed question does
// not stop the batch unless ctx is done.
func (b *QABot) AskBatch(ctx context.Context, questions []string) []BatchResult {
	var out []BatchResult
	for _, q := range questions {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			out = append(out, BatchResult{Question: q, Err: err})
			continue
		}
		ans, err := b.AskQuestion(ctx, q)
		out = append(out, BatchResult{Question: q, Answer: ans, Err: err})
	}
	return out
}

// ready returns the pipeline, building it on the first question after indexing.
func (b *QABot) ready() (*rag.Pipeline, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateEmpty:
		return nil, domain.ErrNotIndexed
	case StateProcessing:
		return nil, domain.ErrBusy
	}
	if b.generator == nil {
		return nil, fmt.Errorf("%w: no generator configured", domain.ErrGeneration)
	}
	if b.pipeline == nil {
		b.pipeline = rag.New(b.store, b.generator, rag.Config{
			TopK:            b.opts.TopK,
			MaxContextChars: b.opts.MaxContextChars,
		}, b.logger)
		b.logger.Debug().Str("generator", b.generator.Name()).Msg("pipeline ready")
	}
	b.state = StateAnsweringReady
	return b.pipeline, nil
}

// SaveVectorStore persists the index to path.index and path.meta.
func (b *QABot) SaveVectorStore(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateProcessing {
		return domain.ErrBusy
	}
	return b.store.Save(path)
}

// LoadVectorStore replaces the index with the one saved at path.
func (b *QABot) LoadVectorStore(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateProcessing {
		return domain.ErrBusy
	}
	if err := b.store.Load(path); err != nil {
		return err
	}
	if b.state == StateEmpty {
		b.state = StateIndexed
	}
	b.documents = []string{path}
	return nil
}

// Stats reports the bot state and store size.
func (b *QABot) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := Stats{
		Stats:     b.store.Stats(),
		State:     b.state.String(),
		Documents: append([]string(nil), b.documents...),
	}
	if b.generator != nil {
		st.Generator = b.generator.Name()
	}
	return st
}
