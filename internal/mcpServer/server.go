// Package mcpServer exposes the chat pipeline as MCP tools so an assistant can question local or remote PDFs.
package mcpServer

import (
	"context"
	"errors"

	"github.com/imfeniljikadara/nexus-ai/internal/domain/chatModel"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/docModel"
	"github.com/imfeniljikadara/nexus-ai/pkg/logger_i"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const Version = "0.1.0"

var (
	ErrMissingSessions   = errors.New("mcp: session manager is required")
	ErrMissingReferences = errors.New("mcp: reference resolver is required")
)

type Sessions interface {
	Ask(ctx context.Context, ref docModel.Reference, question string) (chatModel.Answer, error)
	Close(ctx context.Context, documentId string) error
}

// References turns a file path or url into a document reference.
type References interface {
	Reference(source string) (docModel.Reference, error)
}

type Server struct {
	sessions   Sessions
	references References
	server     *mcp.Server
	logger     *logger_i.Logger
}

func NewServer(sessions Sessions, references References) (*Server, error) {
	if sessions == nil {
		return nil, ErrMissingSessions
	}
	if references == nil {
		return nil, ErrMissingReferences
	}
	s := &Server{
		sessions:   sessions,
		references: references,
		server:     mcp.NewServer(&mcp.Implementation{Name: "pdfchat", Version: Version}, nil),
		logger:     logger_i.NewLogger("mcp"),
	}
	s.registerTools()
	return s, nil
}

// Run serves over stdio until the client disconnects or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server listening on stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}
