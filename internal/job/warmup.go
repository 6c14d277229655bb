package job

import (
	"context"

	"github.com/imfeniljikadara/nexus-ai/internal/domain/docModel"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/errorModel"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/jobModel"
	"github.com/imfeniljikadara/nexus-ai/internal/rag/cache"
	"github.com/imfeniljikadara/nexus-ai/pkg/logger_i"
)

type TextCache interface {
	GetOrCompute(ctx context.Context, documentId string, compute cache.ComputeFunc) (docModel.Extraction, error)
}

type Extractor interface {
	Extract(ctx context.Context, data []byte) (docModel.Extraction, error)
}

type Blobs interface {
	Read(id string) ([]byte, error)
}

type Documents interface {
	MarkReady(id string, pages int) (docModel.Document, error)
	MarkFailed(id string, cause error) (docModel.Document, error)
}

// Warmup fills the document cache right after an upload so the first question does not pay for
// extraction, and records the outcome on the document.
type Warmup struct {
	cache     TextCache
	extractor Extractor
	blobs     Blobs
	documents Documents
	logger    *logger_i.Logger
}

func NewWarmup(textCache TextCache, extractor Extractor, blobs Blobs, documents Documents) *Warmup {
	return &Warmup{
		cache:     textCache,
		extractor: extractor,
		blobs:     blobs,
		documents: documents,
		logger:    logger_i.NewLogger("Warmup"),
	}
}

func (w *Warmup) Run(ctx context.Context, j jobModel.Job) jobModel.Job {
	log := w.logger.WithTrace(ctx).With("jobId", j.Id, "documentId", j.DocumentId)

	j.CurrentStep = jobModel.ExtractionCall
	extraction, err := w.cache.GetOrCompute(ctx, j.DocumentId, func(ctx context.Context) (docModel.Extraction, error) {
		data, err := w.blobs.Read(j.DocumentId)
		if err != nil {
			return docModel.Extraction{}, err
		}
		return w.extractor.Extract(ctx, data)
	})

	j.CurrentStep = jobModel.RegistryCall
	if err != nil {
		log.Warn("warm-up failed", "error", err)
		if _, markErr := w.documents.MarkFailed(j.DocumentId, err); markErr != nil {
			log.Error("could not mark document failed", "error", markErr)
		}
		kind, info := errorModel.Describe(err)
		j.Status = jobModel.JobStatusError
		j.CurrentStep = jobModel.Error
		j.Error = jobModel.JobError{Code: info.Status, Kind: string(kind), Message: info.Message, Retry: info.Retry}
		return j
	}

	if _, err := w.documents.MarkReady(j.DocumentId, extraction.PageCount); err != nil {
		log.Error("could not mark document ready", "error", err)
	}
	j.JobPayload.Pages = extraction.PageCount
	j.JobPayload.Characters = len([]rune(extraction.Text))
	j.CurrentStep = jobModel.Complete
	log.Info("document warmed", "pages", extraction.PageCount)
	return j
}
