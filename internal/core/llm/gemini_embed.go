package llm

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/boediario/boediario/internal/config"
	"github.com/boediario/boediario/internal/core"
)

var _ core.EmbeddingProvider = (*Embedder)(nil)

type Embedder struct {
	client    *genai.Client
	modelName string
}

func NewEmbedder(ctx context.Context, cfg *config.Config) (*Embedder, error) {
	cl, err := genai.NewClient(ctx, option.WithAPIKey(cfg.AIAPIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini embedder: %w", err)
	}
	return &Embedder{client: cl, modelName: cfg.EmbedModel}, nil
}

func (g *Embedder) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	em := g.client.EmbeddingModel(g.modelName)
	resp, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if resp.Embedding == nil {
		return nil, fmt.Errorf("gemini embed: empty response")
	}
	return resp.Embedding.Values, nil
}
