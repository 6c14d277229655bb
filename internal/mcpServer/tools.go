package mcpServer

import (
	"context"
	"fmt"
	"strings"

	"github.com/imfeniljikadara/nexus-ai/internal/domain/errorModel"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type AskInput struct {
	Source   string `json:"source" jsonschema:"path of a local PDF or an http(s) url"`
	Question string `json:"question" jsonschema:"the question to ask about the document"`
}

type AskOutput struct {
	DocumentId string   `json:"document_id"`
	Answer     string   `json:"answer"`
	Blocked    bool     `json:"blocked"`
	Sources    []string `json:"sources,omitempty"`
}

type ForgetInput struct {
	Source string `json:"source" jsonschema:"path or url previously passed to ask_pdf"`
}

type ForgetOutput struct {
	DocumentId string `json:"document_id"`
	Forgotten  bool   `json:"forgotten"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask_pdf",
		Description: "Ask a question about a PDF. Follow-up questions on the same source continue the conversation",
	}, s.handleAsk)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "forget_pdf",
		Description: "End the conversation about a PDF and drop its cached text",
	}, s.handleForget)
}

func (s *Server) handleAsk(ctx context.Context, _ *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, AskOutput, error) {
	if strings.TrimSpace(input.Question) == "" {
		return nil, AskOutput{}, toolError(errorModel.New(errorModel.InvalidRequest, "mcp.ask", fmt.Errorf("question is empty")))
	}
	ref, err := s.references.Reference(strings.TrimSpace(input.Source))
	if err != nil {
		return nil, AskOutput{}, toolError(err)
	}
	answer, err := s.sessions.Ask(ctx, ref, input.Question)
	if err != nil {
		s.logger.WithTrace(ctx).Warn("ask_pdf failed", "documentId", ref.Id, "error", err)
		return nil, AskOutput{}, toolError(err)
	}
	return nil, AskOutput{
		DocumentId: answer.DocumentId,
		Answer:     answer.Text,
		Blocked:    answer.Blocked,
		Sources:    answer.Sources,
	}, nil
}

func (s *Server) handleForget(ctx context.Context, _ *mcp.CallToolRequest, input ForgetInput) (*mcp.CallToolResult, ForgetOutput, error) {
	ref, err := s.references.Reference(strings.TrimSpace(input.Source))
	if err != nil {
		return nil, ForgetOutput{}, toolError(err)
	}
	if err := s.sessions.Close(ctx, ref.Id); err != nil {
		return nil, ForgetOutput{DocumentId: ref.Id}, toolError(err)
	}
	return nil, ForgetOutput{DocumentId: ref.Id, Forgotten: true}, nil
}

// toolError keeps the caller facing message and the kind, the cause stays in the logs.
func toolError(err error) error {
	kind, info := errorModel.Describe(err)
	return fmt.Errorf("%s: %s", kind, info.Message)
}
