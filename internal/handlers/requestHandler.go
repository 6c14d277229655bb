package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/imfeniljikadara/nexus-ai/internal/adapter"
	"github.com/imfeniljikadara/nexus-ai/internal/adapter/utils"
	"github.com/imfeniljikadara/nexus-ai/internal/api"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/docModel"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/errorModel"
	"github.com/imfeniljikadara/nexus-ai/internal/rag/extract"
)

const (
	maxChatBody        = 1 << 20
	multipartMemory    = 8 << 20
	multipartOverhead  = 1 << 20
	magicPrefixLength  = 4
	uploadFormFileName = "file"
)

// GetHandler godoc
// @Summary      Service banner
// @Tags         Service
// @Produce      json
// @Success      200  {object}  api.ServiceInfo
// @Router       / [get]
func (h *Handler) GetHandler(w http.ResponseWriter, r *http.Request) {
	writeJsonResponse(w, http.StatusOK, api.ServiceInfo{Service: "nexus-ai", Strategy: h.strategy, Status: "ok"})
}

// ChatHandler godoc
// @Summary      Ask a question about a document
// @Description  Answers a question about an uploaded document (document_id) or a PDF reachable by url (pdf_url). The first question on a document builds its session, later ones reuse it.
// @Tags         Chat
// @Accept       json
// @Produce      json
// @Param        request  body      api.ChatRequest   true  "Question and exactly one document reference"
// @Success      200      {object}  api.ChatResponse  "Answer, blocked answers included"
// @Failure      400      {object}  api.ChatResponse  "Malformed request or not a PDF"
// @Failure      404      {object}  api.ChatResponse  "Unknown document"
// @Failure      422      {object}  api.ChatResponse  "Unreadable or empty PDF"
// @Failure      503      {object}  api.ChatResponse  "Embedding or generation unavailable"
// @Failure      504      {object}  api.ChatResponse  "Timed out"
// @Router       /chat [post]
func (h *Handler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !validateContext(ctx) {
		return
	}
	log := h.logger.WithTrace(ctx)

	var requestData api.ChatRequest
	defer r.Body.Close()
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&requestData); err != nil {
		log.Warn("Bad chat request", "error", err)
		writeChatError(w, "", errorModel.New(errorModel.InvalidRequest, "chat.decode", err))
		return
	}
	if strings.TrimSpace(requestData.Message) == "" {
		body := adapter.BadRequest("message is required")
		writeJsonResponse(w, body.Code, api.ChatResponse{Error: &body})
		return
	}
	if (requestData.DocumentId == "") == (requestData.PdfURL == "") {
		body := adapter.BadRequest("exactly one of document_id and pdf_url is required")
		writeJsonResponse(w, body.Code, api.ChatResponse{Error: &body})
		return
	}

	ref, err := h.reference(ctx, requestData)
	if err != nil {
		writeChatError(w, requestData.DocumentId, err)
		return
	}

	answer, err := h.sessions.Ask(ctx, ref, requestData.Message)
	if err == nil || errors.Is(err, errorModel.ErrSessionInitFailed) {
		h.recordOutcome(ctx, ref.Id, err)
	}
	if err != nil {
		log.Warn("chat failed", "documentId", ref.Id, "error", err)
		writeChatError(w, ref.Id, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToChatResponse(answer))
}

// reference resolves the request to something the session manager can load on demand. Url
// documents are registered on first use so they can be inspected and deleted like uploads.
func (h *Handler) reference(ctx context.Context, req api.ChatRequest) (docModel.Reference, error) {
	if req.DocumentId != "" {
		doc, err := h.documents.Get(req.DocumentId)
		if err != nil {
			return docModel.Reference{}, err
		}
		if doc.Origin == docModel.OriginURL {
			return h.references.Reference(doc.Name)
		}
		id := doc.Id
		return docModel.Reference{
			Id:   id,
			Name: doc.Name,
			Loader: docModel.LoaderFunc(func(context.Context) ([]byte, error) {
				return h.blobs.Read(id)
			}),
		}, nil
	}

	ref, err := h.references.Reference(req.PdfURL)
	if err != nil {
		return docModel.Reference{}, err
	}
	if _, _, err := h.documents.Register(docModel.Document{Id: ref.Id, Name: ref.Name, Origin: docModel.OriginURL}); err != nil {
		h.logger.WithTrace(ctx).Warn("could not register url document", "documentId", ref.Id, "error", err)
	}
	return ref, nil
}

func writeChatError(w http.ResponseWriter, documentId string, err error) {
	body := adapter.ToErrorBody(err)
	writeJsonResponse(w, body.Code, api.ChatResponse{DocumentId: documentId, Error: &body})
}

// PostUploadHandler godoc
// @Summary      Upload a PDF
// @Description  Stores the PDF under the sha256 of its bytes and queues a warm-up job that extracts its text. Uploading the same bytes again returns the existing document.
// @Tags         Documents
// @Accept       multipart/form-data
// @Produce      json
// @Param        file  formData  file  true  "The PDF"
// @Success      200  {object}  api.UploadResponse  "Already known"
// @Success      202  {object}  api.UploadResponse  "Stored, warm-up queued"
// @Failure      400  {object}  api.ErrorBody       "Missing file or not a PDF"
// @Failure      413  {object}  api.ErrorBody       "File too large"
// @Failure      500  {object}  api.ErrorBody       "Storage error"
// @Router       /upload [post]
func (h *Handler) PostUploadHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !validateContext(ctx) {
		return
	}
	log := h.logger.WithTrace(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteErrorResponse(w, tooLargeBody())
			return
		}
		WriteErrorResponse(w, adapter.BadRequest("multipart form with a file field is required"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	fileReader, fileMetadata, err := r.FormFile(uploadFormFileName)
	if err != nil {
		WriteErrorResponse(w, adapter.BadRequest("file is required"))
		return
	}
	defer fileReader.Close()
	if h.maxUpload > 0 && fileMetadata.Size > h.maxUpload {
		WriteErrorResponse(w, tooLargeBody())
		return
	}

	// nothing touches the disk unless the bytes start like a pdf
	head := make([]byte, magicPrefixLength)
	n, _ := io.ReadFull(fileReader, head)
	if err := extract.CheckMagic(head[:n]); err != nil {
		log.Warn("rejected upload", "filename", fileMetadata.Filename)
		writeError(w, err)
		return
	}

	id, size, err := h.blobs.Put(io.MultiReader(bytes.NewReader(head[:n]), fileReader))
	if err != nil {
		log.Error("could not store upload", "error", err)
		writeError(w, err)
		return
	}

	doc, created, err := h.documents.Register(docModel.Document{
		Id:     id,
		Name:   filepath.Base(fileMetadata.Filename),
		Origin: docModel.OriginUpload,
		Size:   size,
	})
	if err != nil {
		log.Error("could not register upload", "documentId", id, "error", err)
		writeError(w, err)
		return
	}
	if !created && doc.Status == docModel.StatusFailed {
		if doc, err = h.documents.Reset(id); err != nil {
			writeError(w, err)
			return
		}
		created = true
	}

	res := api.UploadResponse{
		DocumentId: doc.Id,
		Name:       doc.Name,
		Size:       doc.Size,
		Status:     string(doc.Status),
		PdfURL:     adapter.PdfURL(doc.Id),
	}
	if !created {
		writeJsonResponse(w, http.StatusOK, res)
		return
	}
	if queued, ok := h.startWarmup(ctx, doc); ok {
		res.JobId = queued.Id
		res.StatusURL = adapter.StatusURL(queued.Id)
	}
	log.Info("document uploaded", "documentId", doc.Id, "size", size)
	writeJsonResponse(w, http.StatusAccepted, res)
}

func tooLargeBody() api.ErrorBody {
	return api.ErrorBody{
		Code:    http.StatusRequestEntityTooLarge,
		Kind:    string(errorModel.InvalidRequest),
		Message: "The file exceeds the upload limit.",
	}
}

// GetStatusHandler godoc
// @Summary      Get warm-up job status
// @Tags         Documents
// @Produce      json
// @Param        id   path      string  true  "Job ID"
// @Success      200  {object}  api.JobResponse
// @Failure      404  {object}  api.ErrorBody  "Job not found"
// @Router       /status/{id} [get]
func (h *Handler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !validateContext(ctx) {
		return
	}
	idString := utils.GetChiURLParam(r, "id")
	result, isFound := h.jobs.Status(ctx, idString)
	if !isFound {
		WriteErrorResponse(w, api.ErrorBody{Code: http.StatusNotFound, Kind: string(errorModel.NotFound), Message: "Job not found"})
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToJobResponse(result))
}
