package handlers

import (
	"context"
	"io"
	"os"

	"github.com/imfeniljikadara/nexus-ai/internal/domain/chatModel"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/docModel"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/jobModel"
	"github.com/imfeniljikadara/nexus-ai/internal/rag/session"
	"github.com/imfeniljikadara/nexus-ai/pkg/logger_i"
)

type Sessions interface {
	Ask(ctx context.Context, ref docModel.Reference, question string) (chatModel.Answer, error)
	History(ctx context.Context, documentId string) ([]chatModel.Turn, bool, error)
	Close(ctx context.Context, documentId string) error
	State(documentId string) session.State
}

type Documents interface {
	Register(doc docModel.Document) (docModel.Document, bool, error)
	Get(id string) (docModel.Document, error)
	MarkReady(id string, pages int) (docModel.Document, error)
	MarkFailed(id string, cause error) (docModel.Document, error)
	Reset(id string) (docModel.Document, error)
	Delete(id string) error
}

type Blobs interface {
	Put(r io.Reader) (string, int64, error)
	Read(id string) ([]byte, error)
	Open(id string) (*os.File, error)
	Delete(id string) error
}

type Jobs interface {
	Enqueue(ctx context.Context, documentId string, payload jobModel.JobPayload) (jobModel.Job, error)
	Status(ctx context.Context, id string) (jobModel.Job, bool)
}

type References interface {
	Reference(rawURL string) (docModel.Reference, error)
}

type TextCache interface {
	Peek(documentId string) (docModel.Extraction, bool)
}

// Handler serves the document chat api. Every dependency is injected at bootstrap.
type Handler struct {
	sessions   Sessions
	documents  Documents
	blobs      Blobs
	jobs       Jobs
	references References
	texts      TextCache
	strategy   string
	maxUpload  int64
	logger     *logger_i.Logger
}

type Deps struct {
	Sessions       Sessions
	Documents      Documents
	Blobs          Blobs
	Jobs           Jobs
	References     References
	Texts          TextCache
	Strategy       string
	MaxUploadBytes int64
}

func New(d Deps) *Handler {
	return &Handler{
		sessions:   d.Sessions,
		documents:  d.Documents,
		blobs:      d.Blobs,
		jobs:       d.Jobs,
		references: d.References,
		texts:      d.Texts,
		strategy:   d.Strategy,
		maxUpload:  d.MaxUploadBytes,
		logger:     logger_i.NewLogger("RequestHandler"),
	}
}

// startWarmup queues the extraction of a freshly registered upload. A failure here is not fatal, the
// first chat request extracts the document itself.
func (h *Handler) startWarmup(ctx context.Context, doc docModel.Document) (jobModel.Job, bool) {
	queued, err := h.jobs.Enqueue(ctx, doc.Id, jobModel.JobPayload{DocumentName: doc.Name})
	if err != nil {
		h.logger.WithTrace(ctx).Warn("could not queue warm-up", "documentId", doc.Id, "error", err)
		return jobModel.Job{}, false
	}
	return queued, true
}

// recordOutcome keeps the registry in step with what the chat path learned about a document.
func (h *Handler) recordOutcome(ctx context.Context, documentId string, err error) {
	log := h.logger.WithTrace(ctx).With("documentId", documentId)
	doc, getErr := h.documents.Get(documentId)
	if getErr != nil {
		return
	}
	if err != nil {
		if _, markErr := h.documents.MarkFailed(documentId, err); markErr != nil {
			log.Warn("could not mark document failed", "error", markErr)
		}
		return
	}
	if doc.Status == docModel.StatusReady {
		return
	}
	pages := doc.Pages
	if extraction, ok := h.texts.Peek(documentId); ok {
		pages = extraction.PageCount
	}
	if _, markErr := h.documents.MarkReady(documentId, pages); markErr != nil {
		log.Warn("could not mark document ready", "error", markErr)
	}
}
