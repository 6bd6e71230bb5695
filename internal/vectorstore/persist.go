package vectorstore

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"finqa/internal/domain"
	"finqa/internal/vectorstore/memory"
)

// indexFile is the gob payload of <path>.index.
type indexFile struct {
	Embedder  string
	Dimension int
	Vectors   [][]float64
}

// metaFile is the JSON payload of <path>.meta.
type metaFile struct {
	Embedder  string         `json:"embedder"`
	Dimension int            `json:"dimension"`
	Chunks    []domain.Chunk `json:"chunks"`
}

// IndexPath and MetaPath name the two files that make up a saved store.
func IndexPath(path string) string { return path + ".index" }
func MetaPath(path string) string  { return path + ".meta" }

// Save writes the index and chunk metadata next to path. Each file is written
// to a temporary sibling and renamed into place.
func (s *Store) Save(path string) error {
	chunks, vectors := s.current().Snapshot()
	if len(chunks) == 0 {
		return domain.ErrEmptyIndex
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	name, dim := s.embedder.Name(), s.embedder.Dimension()
	err := writeAtomic(IndexPath(path), func(w io.Writer) error {
		return gob.NewEncoder(w).Encode(indexFile{Embedder: name, Dimension: dim, Vectors: vectors})
	})
	if err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	err = writeAtomic(MetaPath(path), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(metaFile{Embedder: name, Dimension: dim, Chunks: chunks})
	})
	if err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	s.logger.Info().Str("path", path).Int("chunks", len(chunks)).Msg("vector store saved")
	return nil
}

// Load replaces the store contents with the files saved at path.
// The current index is kept if anything goes wrong.
func (s *Store) Load(path string) error {
	idxData, err := readStoreFile(IndexPath(path))
	if err != nil {
		return err
	}
	metaData, err := readStoreFile(MetaPath(path))
	if err != nil {
		return err
	}

	var idx indexFile
	if err := gob.NewDecoder(bytes.NewReader(idxData)).Decode(&idx); err != nil {
		return fmt.Errorf("%w: index: %w", domain.ErrCorruptStore, err)
	}
	var meta metaFile
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return fmt.Errorf("%w: metadata: %w", domain.ErrCorruptStore, err)
	}
	if len(idx.Vectors) != len(meta.Chunks) {
		return fmt.Errorf("%w: %d vectors but %d chunks", domain.ErrCorruptStore, len(idx.Vectors), len(meta.Chunks))
	}
	if idx.Embedder != meta.Embedder || idx.Dimension != meta.Dimension {
		return fmt.Errorf("%w: index and metadata disagree on embedder", domain.ErrCorruptStore)
	}
	if idx.Embedder != s.embedder.Name() || idx.Dimension != s.embedder.Dimension() {
		return fmt.Errorf("%w: saved with %s (dimension %d), configured %s (dimension %d)",
			domain.ErrIncompatibleStore, idx.Embedder, idx.Dimension, s.embedder.Name(), s.embedder.Dimension())
	}

	index, err := memory.NewIndex(idx.Dimension)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrCorruptStore, err)
	}
	if err := index.Append(meta.Chunks, idx.Vectors); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrCorruptStore, err)
	}

	s.mu.Lock()
	s.index = index
	s.mu.Unlock()
	s.logger.Info().Str("path", path).Int("chunks", index.Len()).Msg("vector store loaded")
	return nil
}

// Exists reports whether both store files are present at path.
func Exists(path string) bool {
	for _, p := range []string{IndexPath(path), MetaPath(path)} {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

func readStoreFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrStoreNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func writeAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
