package gemini

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"

	"finqa/internal/embedding"
)

const (
	defaultModel     = "text-embedding-004"
	defaultDimension = 768
)

// Config configures the Gemini embeddings client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	Dimension int
}

// Client embeds text with the Gemini API.
type Client struct {
	client    *genai.Client
	model     string
	dimension int
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "GEMINI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = defaultDimension
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      key,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Client{client: client, model: cfg.Model, dimension: cfg.Dimension}, nil
}

func (c *Client) Name() string   { return "gemini/" + c.model }
func (c *Client) Dimension() int { return c.dimension }

func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("cannot embed empty text")
	}
	dim := int32(c.dimension)
	resp, err := c.client.Models.EmbedContent(ctx, c.model, genai.Text(text), &genai.EmbedContentConfig{
		OutputDimensionality: &dim,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embeddings: %w", err)
	}
	if len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil || len(resp.Embeddings[0].Values) == 0 {
		return nil, errors.New("gemini embeddings: empty response")
	}
	v := embedding.Float64s(resp.Embeddings[0].Values)
	if len(v) != c.dimension {
		return nil, fmt.Errorf("gemini embeddings: got dimension %d, want %d", len(v), c.dimension)
	}
	return v, nil
}
