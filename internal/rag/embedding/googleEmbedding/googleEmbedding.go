package googleEmbedding

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/imfeniljikadara/nexus-ai/internal/config"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/errorModel"
	"github.com/imfeniljikadara/nexus-ai/internal/metrics"
	"github.com/imfeniljikadara/nexus-ai/internal/rag/embedding"
	"github.com/imfeniljikadara/nexus-ai/pkg/logger_i"
	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	taskDocument  = "RETRIEVAL_DOCUMENT"
	taskQuery     = "RETRIEVAL_QUERY"
	rateLimitWait = 5 * time.Second
)

type embedFunc func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)

type Client struct {
	embed     embedFunc
	model     string
	dimension int32
	timeout   time.Duration
	logger    *logger_i.Logger
}

var _ embedding.Embedder = (*Client)(nil)

// NewGoogleEmbeddingClient shares the genai client with the gemini generation adapter.
func NewGoogleEmbeddingClient(genAi *genai.Client, cfg config.EmbeddingConfig) (*Client, error) {
	if genAi == nil {
		return nil, errors.New("google embedding: nil genai client")
	}
	return newClient(genAi.Models.EmbedContent, cfg), nil
}

func newClient(embed embedFunc, cfg config.EmbeddingConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.EmbeddingTimeout
	}
	c := &Client{
		embed:     embed,
		model:     cfg.Model,
		dimension: int32(cfg.Dimensions),
		timeout:   timeout,
		logger:    logger_i.NewLogger("google_embedding"),
	}
	c.logger.Info("Google Embedding client created", "model", c.model, "dimension", c.dimension)
	return c
}

func (c *Client) Dimensions() int { return int(c.dimension) }

func (c *Client) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	vectors, err := c.doCall(ctx, []string{query}, taskQuery)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *Client) BatchEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	return c.doCall(ctx, texts, taskDocument)
}

func (c *Client) doCall(ctx context.Context, texts []string, task string) ([][]float32, error) {
	log := c.logger.WithTrace(ctx)
	defer metrics.Since("embedding", time.Now())

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conf := &genai.EmbedContentConfig{OutputDimensionality: &c.dimension, TaskType: task}
	res, err := c.embed(callCtx, c.model, getContent(texts), conf)
	if err != nil && doRetry(err, log) {
		log.Debug("Retrying after rate limit", "wait", rateLimitWait)
		select {
		case <-time.After(rateLimitWait):
			res, err = c.embed(callCtx, c.model, getContent(texts), conf)
		case <-callCtx.Done():
			err = callCtx.Err()
		}
	}
	if err != nil {
		log.Error("Error getting Embeddings from Google", "error", err, "inputs", len(texts))
		return nil, errorModel.Classify(errorModel.EmbeddingUnavailable, "embedding.google", err)
	}
	if res == nil {
		return nil, errorModel.New(errorModel.EmbeddingUnavailable, "embedding.google", errors.New("empty response"))
	}

	vectors := make([][]float32, 0, len(res.Embeddings))
	for _, e := range res.Embeddings {
		if e == nil {
			vectors = append(vectors, nil)
			continue
		}
		vectors = append(vectors, e.Values)
	}
	if err := embedding.CheckBatch("embedding.google", len(texts), vectors); err != nil {
		log.Error("Incomplete embedding response", "error", err)
		return nil, err
	}
	return vectors, nil
}

func getContent(texts []string) []*genai.Content {
	contentsToSend := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contentsToSend = append(contentsToSend, &genai.Content{
			Parts: []*genai.Part{{Text: text}},
		})
	}
	return contentsToSend
}

// doRetry reports a provider rate limit, the only failure worth one delayed retry.
func doRetry(err error, log *logger_i.Logger) bool {
	if s, ok := status.FromError(err); ok && s.Code() == codes.ResourceExhausted {
		log.Warn("Rate limit hit", "error", err)
		return true
	}
	if strings.Contains(err.Error(), "RESOURCE_EXHAUSTED") {
		log.Warn("Rate limit hit", "error", err)
		return true
	}
	return false
}
