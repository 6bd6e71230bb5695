package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"finqa/internal/embedding"
)

// Client is an OpenAI-compatible embeddings client implementing domain.Embedder.
type Client struct {
	client     *goopenai.Client
	model      string
	dimension  int
	requestDim int
}

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	// Dimension overrides the model's native width; text-embedding-3 models shorten to it.
	Dimension int
}

var nativeDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	oc := goopenai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	c := &Client{client: goopenai.NewClientWithConfig(oc), model: cfg.Model}
	native, known := nativeDimensions[cfg.Model]
	switch {
	case cfg.Dimension > 0:
		c.dimension = cfg.Dimension
		if strings.HasPrefix(cfg.Model, "text-embedding-3") && cfg.Dimension != native {
			c.requestDim = cfg.Dimension
		}
	case known:
		c.dimension = native
	default:
		return nil, fmt.Errorf("unknown dimension for embedding model %q; set embedder.dimension", cfg.Model)
	}
	return c, nil
}

// Name returns the model identifier; stores built with another model are incompatible.
func (c *Client) Name() string { return "openai/" + c.model }

func (c *Client) Dimension() int { return c.dimension }

func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("cannot embed empty text")
	}
	resp, err := c.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input:      []string{text},
		Model:      goopenai.EmbeddingModel(c.model),
		Dimensions: c.requestDim,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errors.New("openai embeddings: empty response")
	}
	v := embedding.Float64s(resp.Data[0].Embedding)
	if len(v) != c.dimension {
		return nil, fmt.Errorf("openai embeddings: got dimension %d, want %d", len(v), c.dimension)
	}
	return v, nil
}
