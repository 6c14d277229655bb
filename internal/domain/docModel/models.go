package docModel

import (
	"context"
	"time"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

type Origin string

const (
	OriginUpload Origin = "upload"
	OriginURL    Origin = "url"
)

// Document is keyed by the sha256 of its bytes (uploads) or its canonical url (references).
type Document struct {
	Id        string    `json:"id"`
	Name      string    `json:"name"`
	Origin    Origin    `json:"origin"`
	Size      int64     `json:"size"`
	Pages     int       `json:"pages"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Chunk spans runes [Start, End) of the extracted text. Overlap is the number of runes shared with
// the next chunk, zero for the last one.
type Chunk struct {
	DocumentId string `json:"document_id"`
	Seq        int    `json:"seq"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
	Overlap    int    `json:"overlap"`
	Text       string `json:"text"`
}

type ScoredChunk struct {
	Chunk
	Score float32 `json:"score"`
}

type Extraction struct {
	Text      string `json:"text"`
	PageCount int    `json:"page_count"`
}

// Loader produces the raw bytes of a document on a cache miss.
type Loader interface {
	Load(ctx context.Context) ([]byte, error)
}

type LoaderFunc func(ctx context.Context) ([]byte, error)

func (f LoaderFunc) Load(ctx context.Context) ([]byte, error) { return f(ctx) }

// Reference is what the chat path hands to the session manager.
type Reference struct {
	Id     string
	Name   string
	Loader Loader
}
