package main

import (
	"context"
	"fmt"

	"github.com/phuslu/log"

	"finqa/internal/chunker"
	"finqa/internal/config"
	"finqa/internal/document"
	"finqa/internal/domain"
	"finqa/internal/embedding/gemini"
	"finqa/internal/embedding/hashing"
	"finqa/internal/embedding/openai"
	anthropicgen "finqa/internal/generator/anthropic"
	geminigen "finqa/internal/generator/gemini"
	openaigen "finqa/internal/generator/openai"
	"finqa/internal/service"
	"finqa/internal/summarizer"
	"finqa/internal/vectorstore"
)

// buildBot assembles the bot from config. The generator is only created when
// answers are needed, so indexing works without a model API key.
func buildBot(ctx context.Context, cfg *config.AppConfig, withGenerator bool, logger *log.Logger) (*service.QABot, error) {
	window, err := chunker.NewWindow(cfg.Chunker.Size, cfg.Chunker.Overlap)
	if err != nil {
		return nil, err
	}
	emb, err := newEmbedder(ctx, cfg.Embedder)
	if err != nil {
		return nil, fmt.Errorf("%s embedder init failed: %w", cfg.Embedder.Type, err)
	}
	store, err := vectorstore.New(emb, logger)
	if err != nil {
		return nil, err
	}
	var gen domain.Generator
	if withGenerator {
		if gen, err = newGenerator(ctx, cfg.Generator); err != nil {
			return nil, fmt.Errorf("%s generator init failed: %w", cfg.Generator.Type, err)
		}
	}
	logStartup(logger, cfg, emb, gen)

	return service.NewQABot(
		document.NewProcessor(window, logger),
		store,
		gen,
		summarizer.NewFrequency(),
		service.Options{
			TopK:             cfg.Retrieval.TopK,
			MaxContextChars:  cfg.Retrieval.MaxContextChars,
			SummarySentences: cfg.Summarizer.MaxSentences,
		},
		logger,
	), nil
}

func newEmbedder(ctx context.Context, cfg config.EmbedderConfig) (domain.Embedder, error) {
	switch cfg.Type {
	case "hashing", "":
		return hashing.New(cfg.Dimension), nil
	case "openai":
		return openai.NewClient(openai.Config{
			BaseURL:   cfg.BaseURL,
			APIKeyEnv: cfg.APIKeyEnv,
			Model:     cfg.Model,
			Dimension: cfg.Dimension,
		})
	case "gemini":
		return gemini.NewClient(ctx, gemini.Config{
			BaseURL:   cfg.BaseURL,
			APIKeyEnv: cfg.APIKeyEnv,
			Model:     cfg.Model,
			Dimension: cfg.Dimension,
		})
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
}

func newGenerator(ctx context.Context, cfg config.GeneratorConfig) (domain.Generator, error) {
	switch cfg.Type {
	case "openai", "":
		return openaigen.NewClient(openaigen.Config{
			BaseURL:     cfg.BaseURL,
			APIKeyEnv:   cfg.APIKeyEnv,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: float32(cfg.Temperature),
		})
	case "anthropic":
		return anthropicgen.NewClient(anthropicgen.Config{
			BaseURL:     cfg.BaseURL,
			APIKeyEnv:   cfg.APIKeyEnv,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		})
	case "gemini":
		return geminigen.NewClient(ctx, geminigen.Config{
			BaseURL:     cfg.BaseURL,
			APIKeyEnv:   cfg.APIKeyEnv,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: float32(cfg.Temperature),
		})
	default:
		return nil, fmt.Errorf("unknown generator: %s", cfg.Type)
	}
}
