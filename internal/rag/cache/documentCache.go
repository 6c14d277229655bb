package cache

import (
	"context"
	"sync"

	"github.com/imfeniljikadara/nexus-ai/internal/domain/docModel"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/errorModel"
	"github.com/imfeniljikadara/nexus-ai/internal/metrics"
	"github.com/imfeniljikadara/nexus-ai/pkg/logger_i"
	"golang.org/x/sync/singleflight"
)

// Backing is an optional second level shared between processes.
type Backing interface {
	Load(ctx context.Context, documentId string) (docModel.Extraction, bool, error)
	Store(ctx context.Context, documentId string, extraction docModel.Extraction) error
	Delete(ctx context.Context, documentId string) error
}

type ComputeFunc func(ctx context.Context) (docModel.Extraction, error)

// DocumentCache memoizes extracted text per document id. Concurrent misses for one id share a single
// computation. Failures are never stored and entries only leave through Invalidate.
type DocumentCache struct {
	mu      sync.RWMutex
	entries map[string]docModel.Extraction
	// generation is bumped by Invalidate so a computation started before it cannot repopulate the entry
	generation map[string]uint64
	group      singleflight.Group
	backing    Backing
	logger     *logger_i.Logger
}

func New(backing Backing) *DocumentCache {
	return &DocumentCache{
		entries:    make(map[string]docModel.Extraction),
		generation: make(map[string]uint64),
		backing:    backing,
		logger:     logger_i.NewLogger("DocumentCache"),
	}
}

// GetOrCompute returns the cached extraction or runs compute once for all concurrent callers. The
// computation is detached from any single caller: a caller whose ctx ends gets a Timeout while the
// others keep waiting for the shared result.
func (c *DocumentCache) GetOrCompute(ctx context.Context, documentId string, compute ComputeFunc) (docModel.Extraction, error) {
	if extraction, ok := c.Peek(documentId); ok {
		metrics.CaptureCacheLookup("hit")
		return extraction, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(documentId, func() (any, error) {
		return c.fill(detached, documentId, compute)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return docModel.Extraction{}, res.Err
		}
		return res.Val.(docModel.Extraction), nil
	case <-ctx.Done():
		return docModel.Extraction{}, errorModel.New(errorModel.Timeout, "cache.get", ctx.Err())
	}
}

func (c *DocumentCache) fill(ctx context.Context, documentId string, compute ComputeFunc) (docModel.Extraction, error) {
	c.mu.RLock()
	extraction, ok := c.entries[documentId]
	gen := c.generation[documentId]
	c.mu.RUnlock()
	if ok {
		metrics.CaptureCacheLookup("hit")
		return extraction, nil
	}
	log := c.logger.WithTrace(ctx).With("documentId", documentId)

	if c.backing != nil {
		stored, found, err := c.backing.Load(ctx, documentId)
		switch {
		case err != nil:
			log.Warn("cache backing lookup failed", "error", err)
		case found:
			metrics.CaptureCacheLookup("backing_hit")
			c.put(documentId, gen, stored)
			return stored, nil
		}
	}

	metrics.CaptureCacheLookup("miss")
	extraction, err := compute(ctx)
	if err != nil {
		log.Warn("document extraction failed", "error", err)
		return docModel.Extraction{}, err
	}
	if !c.put(documentId, gen, extraction) {
		log.Debug("document invalidated during extraction, result not cached")
		return extraction, nil
	}
	if c.backing != nil {
		if err := c.backing.Store(ctx, documentId, extraction); err != nil {
			log.Warn("cache backing store failed", "error", err)
		}
	}
	log.Debug("document text cached", "pages", extraction.PageCount, "characters", len(extraction.Text))
	return extraction, nil
}

func (c *DocumentCache) put(documentId string, gen uint64, extraction docModel.Extraction) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation[documentId] != gen {
		return false
	}
	c.entries[documentId] = extraction
	return true
}

func (c *DocumentCache) Peek(documentId string) (docModel.Extraction, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	extraction, ok := c.entries[documentId]
	return extraction, ok
}

// Invalidate drops the entry from both levels.
func (c *DocumentCache) Invalidate(ctx context.Context, documentId string) error {
	c.mu.Lock()
	delete(c.entries, documentId)
	c.generation[documentId]++
	c.mu.Unlock()
	c.group.Forget(documentId)

	if c.backing != nil {
		return c.backing.Delete(ctx, documentId)
	}
	return nil
}

func (c *DocumentCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
