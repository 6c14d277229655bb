package chatModel

import (
	"context"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleContext frames the conversation, providers send it as system text.
	RoleContext Role = "context"
)

type Turn struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

type Reply struct {
	Text    string
	Blocked bool
}

type Answer struct {
	DocumentId string   `json:"document_id"`
	Text       string   `json:"text"`
	Blocked    bool     `json:"blocked"`
	Sources    []string `json:"sources,omitempty"`
}

// Exchange is one completed user/assistant pair as persisted by a transcript store.
type Exchange struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	Blocked  bool      `json:"blocked,omitempty"`
	At       time.Time `json:"at"`
}

// TranscriptStore mirrors completed exchanges per document so history survives a session close.
type TranscriptStore interface {
	Append(ctx context.Context, documentId string, exchange Exchange) error
	History(ctx context.Context, documentId string) ([]Exchange, error)
	Clear(ctx context.Context, documentId string) error
}
