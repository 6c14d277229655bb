package adapter

import (
	"fmt"

	"github.com/imfeniljikadara/nexus-ai/internal/api"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/chatModel"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/docModel"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/errorModel"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/jobModel"
)

func StatusURL(jobId string) string { return fmt.Sprintf("/status/%s", jobId) }

func PdfURL(documentId string) string { return fmt.Sprintf("/pdf/%s", documentId) }

func ToJobResponse(job jobModel.Job) api.JobResponse {
	var errorPtr *api.ErrorBody
	if job.Error.Message != "" || job.Error.Code != 0 {
		errorPtr = &api.ErrorBody{
			Code:    job.Error.Code,
			Kind:    job.Error.Kind,
			Message: job.Error.Message,
			Retry:   job.Error.Retry,
		}
	}
	res := api.JobResponse{
		Id:         job.Id,
		DocumentId: job.DocumentId,
		Status:     string(job.Status),
		Step:       string(job.CurrentStep),
		Pages:      job.JobPayload.Pages,
		Characters: job.JobPayload.Characters,
		Error:      errorPtr,
		StartTime:  job.CreatedTime,
	}
	if !job.EndTime.IsZero() {
		end := job.EndTime
		res.EndTime = &end
	}
	return res
}

// ToErrorBody describes err for clients. Untagged errors come out as a generic 500.
func ToErrorBody(err error) api.ErrorBody {
	kind, info := errorModel.Describe(err)
	return api.ErrorBody{Code: info.Status, Kind: string(kind), Message: info.Message, Retry: info.Retry}
}

func BadRequest(message string) api.ErrorBody {
	_, info := errorModel.Describe(errorModel.ErrInvalidRequest)
	if message == "" {
		message = info.Message
	}
	return api.ErrorBody{Code: info.Status, Kind: string(errorModel.InvalidRequest), Message: message}
}

func ToChatResponse(answer chatModel.Answer) api.ChatResponse {
	return api.ChatResponse{
		DocumentId: answer.DocumentId,
		Response:   answer.Text,
		Blocked:    answer.Blocked,
		Sources:    answer.Sources,
	}
}

func ToDocumentResponse(doc docModel.Document, session string) api.DocumentResponse {
	return api.DocumentResponse{
		Id:        doc.Id,
		Name:      doc.Name,
		Origin:    string(doc.Origin),
		Size:      doc.Size,
		Pages:     doc.Pages,
		Status:    string(doc.Status),
		Session:   session,
		Error:     doc.Error,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

func ToHistoryResponse(documentId string, turns []chatModel.Turn) api.HistoryResponse {
	messages := make([]api.Message, 0, len(turns))
	for _, turn := range turns {
		messages = append(messages, api.Message{Role: string(turn.Role), Text: turn.Text, At: turn.At})
	}
	return api.HistoryResponse{DocumentId: documentId, Messages: messages}
}
