package vectorstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finqa/internal/domain"
	"finqa/internal/embedding/hashing"
)

// flakyEmbedder wraps the hashing embedder and fails on texts containing "FAIL".
type flakyEmbedder struct {
	*hashing.Embedder
	short bool
}

func (f flakyEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if strings.Contains(text, "FAIL") {
		return nil, errors.New("boom")
	}
	v, err := f.Embedder.Embed(ctx, text)
	if f.short && strings.Contains(text, "SHORT") {
		return v[:1], err
	}
	return v, err
}

func filingChunks() []domain.Chunk {
	texts := []string{
		"Total net sales increased to 391 billion dollars driven by iPhone and Services revenue.",
		"Research and development expense grew as the company invested in new products.",
		"The company repurchased shares and paid dividends to shareholders during the year.",
		"Cash, cash equivalents and marketable securities totaled 156 billion dollars.",
	}
	chunks := make([]domain.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = domain.Chunk{Text: t, Source: "10k.pdf", Pages: []int{i + 1}, DocumentType: domain.DocumentTypePDF, Index: i}
	}
	return chunks
}

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(hashing.New(hashing.DefaultDimension), nil)
	require.NoError(t, err)
	return s
}

func TestStore_SearchEmpty(t *testing.T) {
	s := newStore(t)
	_, err := s.Search(context.Background(), "revenue", 3)
	assert.ErrorIs(t, err, domain.ErrEmptyIndex)
}

func TestStore_AddAndSearch(t *testing.T) {
	s := newStore(t)
	added, err := s.AddChunks(context.Background(), filingChunks())
	require.NoError(t, err)
	assert.Equal(t, 4, added)
	assert.Equal(t, 4, s.Len())

	res, err := s.Search(context.Background(), "net sales revenue", 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, 0, res[0].Chunk.Index)
	assert.GreaterOrEqual(t, res[0].Score, res[1].Score)

	res, err = s.Search(context.Background(), "net sales revenue", 10)
	require.NoError(t, err)
	assert.Len(t, res, 4)
}

func TestStore_AddChunksSkipsFailures(t *testing.T) {
	s, err := New(flakyEmbedder{Embedder: hashing.New(32), short: true}, nil)
	require.NoError(t, err)

	chunks := filingChunks()
	chunks[1].Text = "FAIL " + chunks[1].Text
	chunks[2].Text = "SHORT " + chunks[2].Text

	added, err := s.AddChunks(context.Background(), chunks)
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Equal(t, 2, s.Len())
}

func TestStore_AddChunksCancelled(t *testing.T) {
	s := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.AddChunks(ctx, filingChunks())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, s.Len())
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stores", "filing")
	s := newStore(t)
	_, err := s.AddChunks(context.Background(), filingChunks())
	require.NoError(t, err)
	require.NoError(t, s.Save(path))
	assert.True(t, Exists(path))

	before, err := s.Search(context.Background(), "dividends and share repurchases", 3)
	require.NoError(t, err)

	loaded := newStore(t)
	require.NoError(t, loaded.Load(path))
	assert.Equal(t, s.Stats(), loaded.Stats())

	after, err := loaded.Search(context.Background(), "dividends and share repurchases", 3)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestStore_SaveEmpty(t *testing.T) {
	s := newStore(t)
	err := s.Save(filepath.Join(t.TempDir(), "empty"))
	assert.ErrorIs(t, err, domain.ErrEmptyIndex)
}

func TestStore_LoadErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "filing")
	s := newStore(t)
	_, err := s.AddChunks(context.Background(), filingChunks())
	require.NoError(t, err)
	require.NoError(t, s.Save(path))

	t.Run("missing", func(t *testing.T) {
		err := newStore(t).Load(filepath.Join(dir, "nope"))
		assert.ErrorIs(t, err, domain.ErrStoreNotFound)
	})

	t.Run("incompatible embedder", func(t *testing.T) {
		other, err := New(hashing.New(128), nil)
		require.NoError(t, err)
		assert.ErrorIs(t, other.Load(path), domain.ErrIncompatibleStore)
		assert.Equal(t, 0, other.Len())
	})

	t.Run("count mismatch", func(t *testing.T) {
		short := newStore(t)
		_, err := short.AddChunks(context.Background(), filingChunks()[:2])
		require.NoError(t, err)
		shortPath := filepath.Join(dir, "short")
		require.NoError(t, short.Save(shortPath))

		// Pair four vectors with two chunks.
		meta, err := os.ReadFile(MetaPath(shortPath))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(MetaPath(path+"-mixed"), meta, 0o644))
		idx, err := os.ReadFile(IndexPath(path))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(IndexPath(path+"-mixed"), idx, 0o644))

		target := newStore(t)
		assert.ErrorIs(t, target.Load(path+"-mixed"), domain.ErrCorruptStore)
	})

	t.Run("garbage index", func(t *testing.T) {
		bad := filepath.Join(dir, "bad")
		require.NoError(t, os.WriteFile(IndexPath(bad), []byte("not gob"), 0o644))
		meta, err := os.ReadFile(MetaPath(path))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(MetaPath(bad), meta, 0o644))
		assert.ErrorIs(t, newStore(t).Load(bad), domain.ErrCorruptStore)
	})
}

func TestStore_LoadReplacesIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filing")
	s := newStore(t)
	_, err := s.AddChunks(context.Background(), filingChunks()[:2])
	require.NoError(t, err)
	require.NoError(t, s.Save(path))

	target := newStore(t)
	_, err = target.AddChunks(context.Background(), filingChunks())
	require.NoError(t, err)
	require.NoError(t, target.Load(path))
	assert.Equal(t, 2, target.Len())

	target.Clear()
	assert.Equal(t, 0, target.Stats().TotalChunks)
}
