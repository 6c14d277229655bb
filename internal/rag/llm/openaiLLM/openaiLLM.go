package openaiLLM

import (
	"context"
	"errors"
	"time"

	"github.com/imfeniljikadara/nexus-ai/internal/config"
	"github.com/imfeniljikadara/nexus-ai/internal/customHttpClient"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/chatModel"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/errorModel"
	"github.com/imfeniljikadara/nexus-ai/internal/metrics"
	"github.com/imfeniljikadara/nexus-ai/internal/rag/llm"
	"github.com/imfeniljikadara/nexus-ai/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const finishContentFilter = "content_filter"

type completeFunc func(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)

type llmClient struct {
	complete    completeFunc
	modelName   string
	instruction string
	temperature float32
	maxTokens   int32
	timeout     time.Duration
	logger      *logger_i.Logger
}

var _ llm.Provider = (*llmClient)(nil)

func NewClient(cfg config.GenerationConfig) (llm.Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: missing api key")
	}
	// retries belong to the caller, a timed out turn is reported not repeated
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0),
		option.WithHTTPClient(customHttpClient.NewClient(0))}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)
	return newClient(func(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
		return client.Chat.Completions.New(ctx, params)
	}, cfg), nil
}

func newClient(complete completeFunc, cfg config.GenerationConfig) *llmClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.GenerationTimeout
	}
	return &llmClient{
		complete:    complete,
		modelName:   cfg.Model,
		instruction: config.ModelContext,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxOutputTokens,
		timeout:     timeout,
		logger:      logger_i.NewLogger("llm_openai"),
	}
}

func (c *llmClient) Generate(ctx context.Context, prompt string, history []chatModel.Turn) (chatModel.Reply, error) {
	log := c.logger.WithTrace(ctx)
	defer metrics.Since("llm_generation", time.Now())

	framing, dialogue := llm.SplitContext(history)
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(dialogue)+2)
	messages = append(messages, openai.SystemMessage(llm.SystemText(c.instruction, framing)))
	for _, turn := range dialogue {
		if turn.Role == chatModel.RoleAssistant {
			messages = append(messages, openai.AssistantMessage(turn.Text))
			continue
		}
		messages = append(messages, openai.UserMessage(turn.Text))
	}
	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Messages:    messages,
		Model:       openai.ChatModel(c.modelName),
		Temperature: openai.Float(float64(c.temperature)),
	}
	if c.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(c.maxTokens))
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	completion, err := c.complete(callCtx, params)
	if err != nil {
		log.Error("OpenAI completion failed", "error", err)
		return chatModel.Reply{}, errorModel.Classify(errorModel.GenerationUnavailable, "generate.openai", err)
	}
	if completion == nil || len(completion.Choices) == 0 {
		return chatModel.Reply{}, errorModel.New(errorModel.GenerationUnavailable, "generate.openai", errors.New("no choices returned"))
	}

	choice := completion.Choices[0]
	if choice.FinishReason == finishContentFilter || choice.Message.Refusal != "" {
		log.Warn("OpenAI declined to answer", "finish_reason", choice.FinishReason)
		return chatModel.Reply{Text: errorModel.BlockedFallback, Blocked: true},
			errorModel.New(errorModel.ContentBlocked, "generate.openai", errors.New(choice.FinishReason))
	}
	if choice.Message.Content == "" {
		return chatModel.Reply{}, errorModel.New(errorModel.GenerationUnavailable, "generate.openai", errors.New("empty completion"))
	}
	return chatModel.Reply{Text: choice.Message.Content}, nil
}
