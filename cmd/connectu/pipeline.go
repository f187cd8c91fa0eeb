package main

import (
	"context"
	"fmt"

	"github.com/connectu/connectu/internal/config"
	"github.com/connectu/connectu/internal/embedding"
	"github.com/connectu/connectu/internal/llm"
	"github.com/connectu/connectu/internal/matching"
	"github.com/connectu/connectu/internal/pipeline"
	"github.com/connectu/connectu/internal/storage"
	"github.com/connectu/connectu/internal/synthesis"
	"github.com/connectu/connectu/internal/vectorindex"
)

type pipelineDeps struct {
	index     vectorindex.Index
	processor *pipeline.Processor
}

// buildPipeline wires the LLM client, vector index, and processor from
// config. The index collection is created here so every command starts from
// a usable state.
func buildPipeline(ctx context.Context, cfg config.Config, store *storage.Store) (*pipelineDeps, error) {
	client := llm.NewWithBaseURL(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL)

	var index vectorindex.Index
	switch cfg.Index.Backend {
	case "qdrant":
		index = vectorindex.NewQdrant(cfg.Qdrant.URL, cfg.Qdrant.APIKey, cfg.Qdrant.Collection, cfg.OpenAI.EmbedDimensions)
	default:
		index = vectorindex.NewSQLiteIndex(store.DB(), cfg.OpenAI.EmbedDimensions)
	}

	synthesizer := synthesis.New(client, cfg.OpenAI.ChatModel, cfg.OpenAI.Temperature,
		cfg.OpenAI.SummaryMinWords, cfg.OpenAI.SummaryMaxWords)
	embedder := embedding.NewEmbedder(client, cfg.OpenAI.EmbedModel, cfg.OpenAI.EmbedDimensions)
	embStore := embedding.NewStore(embedder, index)
	if err := embStore.Init(ctx); err != nil {
		return nil, fmt.Errorf("initializing vector index: %w", err)
	}
	ranker := matching.NewRanker(embStore)

	return &pipelineDeps{
		index:     index,
		processor: pipeline.New(store, synthesizer, embStore, ranker, cfg.Processing.Concurrency),
	}, nil
}
