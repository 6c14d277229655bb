package session

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/imfeniljikadara/nexus-ai/internal/domain/chatModel"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/errorModel"
)

type State string

const (
	NoSession    State = "no_session"
	Initializing State = "initializing"
	Ready        State = "ready"
	Closed       State = "closed"
)

// Session is one dialogue about one document. turn is a one slot semaphore rather than a mutex so
// waiting for it honours the request deadline.
type Session struct {
	documentId string
	turn       chan struct{}
	history    []chatModel.Turn
	closed     bool
	lastUsed   atomic.Int64
}

func newSession(documentId string, seed []chatModel.Turn, now time.Time) *Session {
	s := &Session{
		documentId: documentId,
		turn:       make(chan struct{}, 1),
		history:    seed,
	}
	s.touch(now)
	return s
}

func (s *Session) acquire(ctx context.Context) error {
	select {
	case s.turn <- struct{}{}:
		return nil
	case <-ctx.Done():
		return errorModel.New(errorModel.Timeout, "session.turn", ctx.Err())
	}
}

func (s *Session) tryAcquire() bool {
	select {
	case s.turn <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *Session) release() { <-s.turn }

func (s *Session) touch(now time.Time) { s.lastUsed.Store(now.UnixNano()) }

func (s *Session) idleSince() time.Time { return time.Unix(0, s.lastUsed.Load()) }

// snapshot copies the history so providers never see later appends. Caller holds the turn.
func (s *Session) snapshot() []chatModel.Turn {
	out := make([]chatModel.Turn, len(s.history))
	copy(out, s.history)
	return out
}

func dialogue(history []chatModel.Turn) []chatModel.Turn {
	out := make([]chatModel.Turn, 0, len(history))
	for _, turn := range history {
		if turn.Role != chatModel.RoleContext {
			out = append(out, turn)
		}
	}
	return out
}
