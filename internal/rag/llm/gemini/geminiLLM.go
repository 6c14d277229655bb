package gemini

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imfeniljikadara/nexus-ai/internal/config"
	"github.com/imfeniljikadara/nexus-ai/internal/customHttpClient"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/chatModel"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/errorModel"
	"github.com/imfeniljikadara/nexus-ai/internal/metrics"
	"github.com/imfeniljikadara/nexus-ai/internal/rag/llm"
	"github.com/imfeniljikadara/nexus-ai/pkg/logger_i"
	"google.golang.org/genai"
)

type generateFunc func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

type llmClient struct {
	generate    generateFunc
	modelName   string
	instruction string
	temperature float32
	maxTokens   int32
	timeout     time.Duration
	logger      *logger_i.Logger
}

var _ llm.Provider = (*llmClient)(nil)

var safetySettings = []*genai.SafetySetting{
	{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
	{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
	{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
	{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
}

// NewClient creates the generation adapter on a (possibly shared) genai client.
func NewClient(genAi *genai.Client, cfg config.GenerationConfig) (llm.Provider, error) {
	if genAi == nil {
		return nil, errors.New("gemini: nil genai client")
	}
	return newClient(genAi.Models.GenerateContent, cfg), nil
}

// NewGenAIClient builds the genai client used by both the gemini generation and embedding adapters.
func NewGenAIClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: missing api key")
	}
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: customHttpClient.NewClient(0),
	})
}

func newClient(generate generateFunc, cfg config.GenerationConfig) *llmClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.GenerationTimeout
	}
	c := &llmClient{
		generate:    generate,
		modelName:   cfg.Model,
		instruction: config.ModelContext,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxOutputTokens,
		timeout:     timeout,
		logger:      logger_i.NewLogger("llm_gemini"),
	}
	c.logger.Info("Gemini client created", "model", c.modelName)
	return c
}

func (c *llmClient) Generate(ctx context.Context, prompt string, history []chatModel.Turn) (chatModel.Reply, error) {
	log := c.logger.WithTrace(ctx)
	defer metrics.Since("llm_generation", time.Now())

	framing, dialogue := llm.SplitContext(history)
	contents := make([]*genai.Content, 0, len(dialogue)+1)
	for _, turn := range dialogue {
		role := "user"
		if turn.Role == chatModel.RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []*genai.Part{{Text: turn.Text}}})
	}
	contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: prompt}}})

	contentConfig := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: llm.SystemText(c.instruction, framing)}},
		},
		Temperature:     genai.Ptr(c.temperature),
		TopP:            genai.Ptr[float32](1),
		TopK:            genai.Ptr[float32](1),
		MaxOutputTokens: c.maxTokens,
		SafetySettings:  safetySettings,
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.generate(callCtx, c.modelName, contents, contentConfig)
	if err != nil {
		log.Error("Gemini generation failed", "error", err)
		return chatModel.Reply{}, errorModel.Classify(errorModel.GenerationUnavailable, "generate.gemini", err)
	}
	if result == nil {
		return chatModel.Reply{}, errorModel.New(errorModel.GenerationUnavailable, "generate.gemini", errors.New("empty response"))
	}
	if reason, blocked := blockReason(result); blocked {
		log.Warn("Gemini declined to answer", "reason", reason)
		return chatModel.Reply{Text: errorModel.BlockedFallback, Blocked: true},
			errorModel.New(errorModel.ContentBlocked, "generate.gemini", fmt.Errorf("blocked: %s", reason))
	}

	text := result.Text()
	if text == "" {
		return chatModel.Reply{}, errorModel.New(errorModel.GenerationUnavailable, "generate.gemini", errors.New("response without text"))
	}
	return chatModel.Reply{Text: text}, nil
}

func blockReason(res *genai.GenerateContentResponse) (string, bool) {
	if fb := res.PromptFeedback; fb != nil && fb.BlockReason != "" && fb.BlockReason != genai.BlockedReasonUnspecified {
		return string(fb.BlockReason), true
	}
	if len(res.Candidates) == 0 || res.Candidates[0] == nil {
		return "", false
	}
	switch reason := res.Candidates[0].FinishReason; reason {
	case genai.FinishReasonSafety, genai.FinishReasonProhibitedContent, genai.FinishReasonBlocklist, genai.FinishReasonSPII:
		return string(reason), true
	}
	return "", false
}
