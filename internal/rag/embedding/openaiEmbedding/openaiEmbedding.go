package openaiEmbedding

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/imfeniljikadara/nexus-ai/internal/config"
	"github.com/imfeniljikadara/nexus-ai/internal/customHttpClient"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/errorModel"
	"github.com/imfeniljikadara/nexus-ai/internal/metrics"
	"github.com/imfeniljikadara/nexus-ai/internal/rag/embedding"
	"github.com/imfeniljikadara/nexus-ai/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type embedFunc func(ctx context.Context, params openai.EmbeddingNewParams) (*openai.CreateEmbeddingResponse, error)

// Client talks to any OpenAI compatible /embeddings endpoint.
type Client struct {
	embed      embedFunc
	model      string
	dimensions int
	timeout    time.Duration
	logger     *logger_i.Logger
}

var _ embedding.Embedder = (*Client)(nil)

func NewOpenAIEmbeddingClient(cfg config.EmbeddingConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai embedding: missing api key")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0),
		option.WithHTTPClient(customHttpClient.NewClient(0))}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)
	return newClient(func(ctx context.Context, params openai.EmbeddingNewParams) (*openai.CreateEmbeddingResponse, error) {
		return client.Embeddings.New(ctx, params)
	}, cfg), nil
}

func newClient(embed embedFunc, cfg config.EmbeddingConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.EmbeddingTimeout
	}
	return &Client{
		embed:      embed,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		timeout:    timeout,
		logger:     logger_i.NewLogger("openai_embedding"),
	}
}

func (c *Client) Dimensions() int { return c.dimensions }

func (c *Client) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	vectors, err := c.BatchEmbedding(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *Client) BatchEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	log := c.logger.WithTrace(ctx)
	defer metrics.Since("embedding", time.Now())

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(c.model),
	}
	// only the v3 family accepts a custom output size
	if strings.HasPrefix(c.model, "text-embedding-3") {
		params.Dimensions = openai.Int(int64(c.dimensions))
	}

	res, err := c.embed(callCtx, params)
	if err != nil {
		log.Error("Error getting Embeddings from OpenAI", "error", err, "inputs", len(texts))
		return nil, errorModel.Classify(errorModel.EmbeddingUnavailable, "embedding.openai", err)
	}
	if res == nil {
		return nil, errorModel.New(errorModel.EmbeddingUnavailable, "embedding.openai", errors.New("empty response"))
	}

	data := append([]openai.Embedding(nil), res.Data...)
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	vectors := make([][]float32, len(data))
	for i, d := range data {
		vectors[i] = toFloat32(d.Embedding)
	}
	if err := embedding.CheckBatch("embedding.openai", len(texts), vectors); err != nil {
		log.Error("Incomplete embedding response", "error", err)
		return nil, err
	}
	return vectors, nil
}

func toFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
