package domain

import "errors"

var (
	// ErrUnsupportedFormat is returned for files that are neither PDF nor XML/HTML.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrParse is returned when a document cannot be read or yields no content.
	ErrParse = errors.New("document parse failed")
	// ErrEmptyIndex is returned when searching or saving a store with no chunks.
	ErrEmptyIndex = errors.New("vector index is empty")
	// ErrCorruptStore is returned when a persisted index and its metadata disagree.
	ErrCorruptStore = errors.New("vector store is corrupt")
	// ErrStoreNotFound is returned when the persisted store files do not exist.
	ErrStoreNotFound = errors.New("vector store not found")
	// ErrIncompatibleStore is returned when a persisted store was built by another embedder.
	ErrIncompatibleStore = errors.New("vector store built with a different embedder")
	// ErrEmbedding is returned when a query cannot be embedded.
	ErrEmbedding = errors.New("embedding failed")
	// ErrGeneration is returned when the generation service fails.
	ErrGeneration = errors.New("answer generation failed")
	// ErrNotIndexed is returned when asking before any document is indexed.
	ErrNotIndexed = errors.New("no documents indexed")
	// ErrBusy is returned when a document is already being processed.
	ErrBusy = errors.New("document processing in progress")
	// ErrEmptyQuestion is returned for blank questions.
	ErrEmptyQuestion = errors.New("question is empty")
)
