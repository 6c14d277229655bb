package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/imfeniljikadara/nexus-ai/internal/config"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/chatModel"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/docModel"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/errorModel"
	"github.com/imfeniljikadara/nexus-ai/internal/metrics"
	"github.com/imfeniljikadara/nexus-ai/internal/rag/cache"
	"github.com/imfeniljikadara/nexus-ai/internal/rag/llm"
	"github.com/imfeniljikadara/nexus-ai/internal/rag/strategy"
	"github.com/imfeniljikadara/nexus-ai/pkg/logger_i"
	"golang.org/x/sync/singleflight"
)

var (
	errShutdown = errors.New("session manager is shut down")
	errClosed   = errors.New("document closed during initialization")
)

type Extractor interface {
	Extract(ctx context.Context, data []byte) (docModel.Extraction, error)
}

type ManagerConfig struct {
	Cache     *cache.DocumentCache
	Extractor Extractor
	Strategy  strategy.Strategy
	Provider  llm.Provider
	// Transcripts is optional. When set, completed exchanges are mirrored there and replayed into
	// a session recreated after idle eviction.
	Transcripts chatModel.TranscriptStore
	Session     config.SessionConfig
}

// Manager owns every conversation, one per document id.
type Manager struct {
	cache       *cache.DocumentCache
	extractor   Extractor
	strategy    strategy.Strategy
	provider    llm.Provider
	transcripts chatModel.TranscriptStore
	deadline    time.Duration
	idleTTL     time.Duration

	mu           sync.Mutex
	sessions     map[string]*Session
	initializing map[string]int
	// closes counts Close calls per document; an initialization that started under an older count
	// must not install its session.
	closes   map[string]uint64
	shutdown bool
	group        singleflight.Group

	stopJanitor chan struct{}
	janitorDone chan struct{}
	now         func() time.Time
	logger      *logger_i.Logger
}

func NewManager(cfg ManagerConfig) *Manager {
	deadline := cfg.Session.ChatDeadline
	if deadline <= 0 {
		deadline = config.ChatDeadline
	}
	m := &Manager{
		cache:        cfg.Cache,
		extractor:    cfg.Extractor,
		strategy:     cfg.Strategy,
		provider:     cfg.Provider,
		transcripts:  cfg.Transcripts,
		deadline:     deadline,
		idleTTL:      cfg.Session.IdleTTL,
		sessions:     make(map[string]*Session),
		initializing: make(map[string]int),
		closes:       make(map[string]uint64),
		now:          time.Now,
		logger:       logger_i.NewLogger("SessionManager"),
	}
	if m.idleTTL > 0 {
		m.stopJanitor = make(chan struct{})
		m.janitorDone = make(chan struct{})
		go m.janitor()
	}
	return m
}

// Ask answers question about ref within the chat deadline. A safety refusal is not an error: the
// answer carries the fallback text with Blocked set and nothing is recorded. On any failure the
// history is left exactly as it was.
func (m *Manager) Ask(ctx context.Context, ref docModel.Reference, question string) (answer chatModel.Answer, err error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return answer, errorModel.New(errorModel.InvalidRequest, "session.ask", errors.New("empty question"))
	}
	if ref.Id == "" || ref.Loader == nil {
		return answer, errorModel.New(errorModel.InvalidRequest, "session.ask", errors.New("missing document reference"))
	}

	ctx, cancel := context.WithTimeout(ctx, m.deadline)
	defer cancel()
	start := time.Now()
	defer func() {
		outcome := "ok"
		switch {
		case err != nil:
			outcome = string(errorModel.CauseKind(err))
		case answer.Blocked:
			outcome = "blocked"
		}
		metrics.CaptureChatMetrics(outcome, time.Since(start))
	}()

	log := m.logger.WithTrace(ctx).With("documentId", ref.Id)
	for {
		s, err := m.session(ctx, ref)
		if err != nil {
			return answer, m.deadlineAware(ctx, err)
		}
		if err := s.acquire(ctx); err != nil {
			return answer, err
		}
		if s.closed {
			// closed while we waited, a fresh session will be created
			s.release()
			continue
		}
		answer, err = m.turn(ctx, s, question)
		s.release()
		if err != nil {
			log.Warn("chat turn failed", "kind", errorModel.CauseKind(err), "error", err)
		}
		return answer, err
	}
}

func (m *Manager) turn(ctx context.Context, s *Session, question string) (chatModel.Answer, error) {
	answer := chatModel.Answer{DocumentId: s.documentId}

	prompt, err := m.strategy.Prompt(ctx, s.documentId, question)
	if err != nil {
		return answer, m.deadlineAware(ctx, err)
	}

	genStart := time.Now()
	reply, err := m.provider.Generate(ctx, prompt.Text, s.snapshot())
	metrics.CaptureExecutionMetrics("llm_generation", time.Since(genStart))
	if errors.Is(err, errorModel.ErrContentBlocked) {
		answer.Text = reply.Text
		if answer.Text == "" {
			answer.Text = errorModel.BlockedFallback
		}
		answer.Blocked = true
		return answer, nil
	}
	if err != nil {
		return answer, m.deadlineAware(ctx, errorModel.Classify(errorModel.GenerationUnavailable, "session.generate", err))
	}

	now := m.now()
	s.history = append(s.history,
		chatModel.Turn{Role: chatModel.RoleUser, Text: prompt.Record, At: now},
		chatModel.Turn{Role: chatModel.RoleAssistant, Text: reply.Text, At: now},
	)
	s.touch(now)

	if m.transcripts != nil {
		exchange := chatModel.Exchange{Question: prompt.Record, Answer: reply.Text, At: now}
		if err := m.transcripts.Append(ctx, s.documentId, exchange); err != nil {
			m.logger.WithTrace(ctx).Warn("transcript append failed", "documentId", s.documentId, "error", err)
		}
	}

	answer.Text = reply.Text
	answer.Sources = prompt.Sources
	return answer, nil
}

// deadlineAware reports Timeout when the overall chat deadline is what ended the request.
func (m *Manager) deadlineAware(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, errorModel.ErrTimeout) {
		return errorModel.New(errorModel.Timeout, "session.ask", err)
	}
	return err
}

// session returns the ready session for ref, initializing it at most once across concurrent callers.
func (m *Manager) session(ctx context.Context, ref docModel.Reference) (*Session, error) {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return nil, errorModel.New(errorModel.Internal, "session.get", errShutdown)
	}
	if s, ok := m.sessions[ref.Id]; ok {
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	// detached so one impatient caller cannot fail initialization for everyone else
	detached := context.WithoutCancel(ctx)
	ch := m.group.DoChan(ref.Id, func() (any, error) {
		initCtx, cancel := context.WithTimeout(detached, m.deadline)
		defer cancel()
		return m.initialize(initCtx, ref)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Session), nil
	case <-ctx.Done():
		return nil, errorModel.New(errorModel.Timeout, "session.init", ctx.Err())
	}
}

func (m *Manager) initialize(ctx context.Context, ref docModel.Reference) (*Session, error) {
	m.mu.Lock()
	if s, ok := m.sessions[ref.Id]; ok {
		m.mu.Unlock()
		return s, nil
	}
	m.initializing[ref.Id]++
	generation := m.closes[ref.Id]
	m.mu.Unlock()

	log := m.logger.WithTrace(ctx).With("documentId", ref.Id, "strategy", m.strategy.Name())
	log.Debug("initializing session")

	s, err := m.build(ctx, ref)

	m.mu.Lock()
	if m.initializing[ref.Id]--; m.initializing[ref.Id] <= 0 {
		delete(m.initializing, ref.Id)
	}
	stale := m.closes[ref.Id] != generation
	// a newer initialization owns the artifacts now, leave them alone
	discard := stale && err == nil && m.sessions[ref.Id] == nil && m.initializing[ref.Id] == 0
	if err == nil && m.shutdown {
		err = errShutdown
	}
	if err == nil && stale {
		err = errorModel.New(errorModel.NotFound, "session.init", errClosed)
	}
	if err == nil {
		m.sessions[ref.Id] = s
		metrics.IncrementActiveSessions()
	}
	m.mu.Unlock()

	if discard {
		m.discardArtifacts(context.WithoutCancel(ctx), ref.Id, log)
	}
	if err != nil {
		log.Error("session initialization failed", "error", err)
		return nil, errorModel.New(errorModel.SessionInitFailed, "session.init", err)
	}
	log.Info("session ready", "seedTurns", len(s.history))
	return s, nil
}

// discardArtifacts undoes what an initialization overtaken by Close wrote after Close had cleaned up.
func (m *Manager) discardArtifacts(ctx context.Context, documentId string, log *logger_i.Logger) {
	if err := m.strategy.Forget(ctx, documentId); err != nil {
		log.Warn("could not drop index entries of a closed document", "error", err)
	}
	if m.cache != nil {
		if err := m.cache.Invalidate(ctx, documentId); err != nil {
			log.Warn("could not drop cached text of a closed document", "error", err)
		}
	}
}

func (m *Manager) build(ctx context.Context, ref docModel.Reference) (*Session, error) {
	_, cachedBefore := m.cache.Peek(ref.Id)
	extraction, err := m.cache.GetOrCompute(ctx, ref.Id, func(ctx context.Context) (docModel.Extraction, error) {
		data, err := ref.Loader.Load(ctx)
		if err != nil {
			return docModel.Extraction{}, err
		}
		return m.extractor.Extract(ctx, data)
	})
	if err != nil {
		return nil, err
	}

	seed, err := m.strategy.Seed(ctx, ref.Id, extraction)
	if err != nil {
		// a failed initialization leaves no cache entry behind unless one was already there
		if !cachedBefore {
			if invErr := m.cache.Invalidate(context.WithoutCancel(ctx), ref.Id); invErr != nil {
				m.logger.WithTrace(ctx).Warn("could not drop cached text after failed seed", "documentId", ref.Id, "error", invErr)
			}
		}
		return nil, err
	}
	history := append(seed, m.replay(ctx, ref.Id)...)
	return newSession(ref.Id, history, m.now()), nil
}

// replay turns persisted exchanges back into history.
func (m *Manager) replay(ctx context.Context, documentId string) []chatModel.Turn {
	if m.transcripts == nil {
		return nil
	}
	exchanges, err := m.transcripts.History(ctx, documentId)
	if err != nil {
		m.logger.WithTrace(ctx).Warn("transcript replay failed", "documentId", documentId, "error", err)
		return nil
	}
	turns := make([]chatModel.Turn, 0, 2*len(exchanges))
	for _, ex := range exchanges {
		turns = append(turns,
			chatModel.Turn{Role: chatModel.RoleUser, Text: ex.Question, At: ex.At},
			chatModel.Turn{Role: chatModel.RoleAssistant, Text: ex.Answer, At: ex.At},
		)
	}
	return turns
}

func (m *Manager) State(documentId string) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.shutdown:
		return Closed
	case m.sessions[documentId] != nil:
		return Ready
	case m.initializing[documentId] > 0:
		return Initializing
	}
	return NoSession
}

// History returns the dialogue of a document, context framing excluded. Without a live session it
// falls back to the persisted transcript.
func (m *Manager) History(ctx context.Context, documentId string) ([]chatModel.Turn, bool, error) {
	m.mu.Lock()
	s, ok := m.sessions[documentId]
	m.mu.Unlock()
	if !ok {
		// an evicted session still has its transcript
		turns := m.replay(ctx, documentId)
		return turns, len(turns) > 0, nil
	}
	if err := s.acquire(ctx); err != nil {
		return nil, true, err
	}
	defer s.release()
	return dialogue(s.history), true, nil
}

// Close ends the document's session and drops everything derived from it: cached text, index
// entries and the transcript. It waits for an in-flight turn to finish.
func (m *Manager) Close(ctx context.Context, documentId string) error {
	m.mu.Lock()
	s, ok := m.sessions[documentId]
	delete(m.sessions, documentId)
	m.closes[documentId]++
	m.mu.Unlock()
	m.group.Forget(documentId)

	var errs []error
	if ok {
		if err := s.acquire(ctx); err != nil {
			errs = append(errs, err)
		} else {
			s.closed = true
			s.release()
		}
		metrics.DecrementActiveSessions()
	}
	errs = append(errs, m.strategy.Forget(ctx, documentId))
	if m.cache != nil {
		errs = append(errs, m.cache.Invalidate(ctx, documentId))
	}
	if m.transcripts != nil {
		errs = append(errs, m.transcripts.Clear(ctx, documentId))
	}
	return errors.Join(errs...)
}

// evict closes a session without dropping the document's artifacts.
func (m *Manager) evict(documentId string, s *Session) {
	m.mu.Lock()
	if m.sessions[documentId] != s {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, documentId)
	m.mu.Unlock()
	s.closed = true
	metrics.DecrementActiveSessions()
	m.logger.Debug("evicted idle session", "documentId", documentId)
}

func (m *Manager) janitor() {
	defer close(m.janitorDone)
	interval := max(m.idleTTL/2, 10*time.Millisecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopJanitor:
			return
		case <-ticker.C:
			m.evictIdle()
		}
	}
}

func (m *Manager) evictIdle() {
	cutoff := m.now().Add(-m.idleTTL)
	m.mu.Lock()
	candidates := make(map[string]*Session)
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			candidates[id] = s
		}
	}
	m.mu.Unlock()

	for id, s := range candidates {
		// a session in the middle of a turn is not idle
		if !s.tryAcquire() {
			continue
		}
		m.evict(id, s)
		s.release()
	}
}

// Shutdown closes every session. Later calls to Ask fail.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return
	}
	m.shutdown = true
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	if m.stopJanitor != nil {
		close(m.stopJanitor)
		<-m.janitorDone
	}
	for range sessions {
		metrics.DecrementActiveSessions()
	}
	m.logger.Info("session manager shut down", "closedSessions", len(sessions))
}
