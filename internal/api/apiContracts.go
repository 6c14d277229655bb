package api

import "time"

type ErrorBody struct {
	Code    int    `json:"code" example:"422"`
	Kind    string `json:"kind" example:"ExtractionFailed"`
	Message string `json:"message" example:"The PDF could not be read."`
	Retry   bool   `json:"can_retry" example:"false"`
}

type ChatResponse struct {
	DocumentId string     `json:"document_id,omitempty" example:"9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"`
	Response   string     `json:"response" example:"Bob is the designer."`
	Blocked    bool       `json:"blocked" example:"false"`
	Sources    []string   `json:"sources,omitempty"`
	Error      *ErrorBody `json:"error,omitempty"`
}

type UploadResponse struct {
	DocumentId string `json:"document_id"`
	Name       string `json:"name" example:"handbook.pdf"`
	Size       int64  `json:"size" example:"52344"`
	Status     string `json:"status" example:"pending"`
	JobId      string `json:"job_id,omitempty"`
	StatusURL  string `json:"status_url,omitempty" example:"/status/6f1c2d3e"`
	PdfURL     string `json:"pdf_url" example:"/pdf/9f86d081"`
}

type DocumentResponse struct {
	Id        string    `json:"id"`
	Name      string    `json:"name"`
	Origin    string    `json:"origin" example:"upload"`
	Size      int64     `json:"size"`
	Pages     int       `json:"pages"`
	Status    string    `json:"status" example:"ready"`
	Session   string    `json:"session" example:"ready"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Message struct {
	Role string    `json:"role" example:"user"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

type HistoryResponse struct {
	DocumentId string    `json:"document_id"`
	Messages   []Message `json:"messages"`
}

type JobResponse struct {
	Id         string     `json:"id" example:"6f1c2d3e-0000-4000-8000-000000000000"`
	DocumentId string     `json:"document_id"`
	Status     string     `json:"status" example:"COMPLETE"`
	Step       string     `json:"step" example:"Complete"`
	Pages      int        `json:"pages,omitempty"`
	Characters int        `json:"characters,omitempty"`
	Error      *ErrorBody `json:"error,omitempty"`
	StartTime  time.Time  `json:"start_time"`
	EndTime    *time.Time `json:"end_time,omitempty"`
}

type ServiceInfo struct {
	Service  string `json:"service" example:"nexus-ai"`
	Strategy string `json:"strategy" example:"full_context"`
	Status   string `json:"status" example:"ok"`
}

// requests---------------------

// ChatRequest names exactly one of DocumentId and PdfURL.
type ChatRequest struct {
	Message    string `json:"message" validate:"required"`
	DocumentId string `json:"document_id,omitempty"`
	PdfURL     string `json:"pdf_url,omitempty"`
}
