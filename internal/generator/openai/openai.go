package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"
)

const defaultModel = goopenai.GPT3Dot5Turbo

// Config configures the OpenAI-compatible chat client.
type Config struct {
	BaseURL     string
	APIKeyEnv   string
	Model       string
	MaxTokens   int
	Temperature float32
}

// Client generates answers with the chat completions API.
type Client struct {
	client      *goopenai.Client
	model       string
	maxTokens   int
	temperature float32
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	oc := goopenai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	// The request omits a zero temperature, which the API reads as 1.
	temp := cfg.Temperature
	if temp == 0 {
		temp = math.SmallestNonzeroFloat32
	}
	return &Client{
		client:      goopenai.NewClientWithConfig(oc),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: temp,
	}, nil
}

func (c *Client) Name() string { return "openai/" + c.model }

// Generate sends the whole prompt as a single system message.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: c.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: prompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai chat: no choices returned")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("openai chat: empty response")
	}
	return text, nil
}
