package handlers

import (
	"errors"
	"mime"
	"net/http"

	"github.com/imfeniljikadara/nexus-ai/internal/adapter"
	"github.com/imfeniljikadara/nexus-ai/internal/adapter/utils"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/errorModel"
)

// GetPdfHandler godoc
// @Summary      Download an uploaded PDF
// @Tags         Documents
// @Produce      application/pdf
// @Param        id   path      string  true  "Document ID"
// @Success      200  {file}    binary
// @Failure      404  {object}  api.ErrorBody
// @Router       /pdf/{id} [get]
func (h *Handler) GetPdfHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	id := utils.GetChiURLParam(r, "id")
	file, err := h.blobs.Open(id)
	if err != nil {
		writeError(w, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		writeError(w, err)
		return
	}
	name := id + ".pdf"
	if doc, err := h.documents.Get(id); err == nil && doc.Name != "" {
		name = doc.Name
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": name}))
	http.ServeContent(w, r, name, info.ModTime(), file)
}

// GetDocumentHandler godoc
// @Summary      Document metadata and session state
// @Tags         Documents
// @Produce      json
// @Param        id   path      string  true  "Document ID"
// @Success      200  {object}  api.DocumentResponse
// @Failure      404  {object}  api.ErrorBody
// @Router       /documents/{id} [get]
func (h *Handler) GetDocumentHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	id := utils.GetChiURLParam(r, "id")
	doc, err := h.documents.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToDocumentResponse(doc, string(h.sessions.State(id))))
}

// DeleteDocumentHandler godoc
// @Summary      Remove a document
// @Description  Closes the session and drops the cached text, index entries, transcript and stored bytes.
// @Tags         Documents
// @Param        id   path      string  true  "Document ID"
// @Success      204
// @Failure      404  {object}  api.ErrorBody
// @Router       /documents/{id} [delete]
func (h *Handler) DeleteDocumentHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !validateContext(ctx) {
		return
	}
	log := h.logger.WithTrace(ctx)
	id := utils.GetChiURLParam(r, "id")
	if _, err := h.documents.Get(id); err != nil {
		writeError(w, err)
		return
	}

	if err := h.sessions.Close(ctx, id); err != nil {
		log.Warn("session close left residue", "documentId", id, "error", err)
	}
	if err := h.blobs.Delete(id); err != nil && !errors.Is(err, errorModel.ErrNotFound) {
		log.Error("could not delete stored pdf", "documentId", id, "error", err)
		writeError(w, err)
		return
	}
	if err := h.documents.Delete(id); err != nil {
		writeError(w, err)
		return
	}
	log.Info("document deleted", "documentId", id)
	w.WriteHeader(http.StatusNoContent)
}

// GetHistoryHandler godoc
// @Summary      Chat history of a document
// @Tags         Chat
// @Produce      json
// @Param        id   path      string  true  "Document ID"
// @Success      200  {object}  api.HistoryResponse
// @Failure      404  {object}  api.ErrorBody
// @Router       /chat/{id}/history [get]
func (h *Handler) GetHistoryHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !validateContext(ctx) {
		return
	}
	id := utils.GetChiURLParam(r, "id")
	turns, found, err := h.sessions.History(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !found {
		if _, err := h.documents.Get(id); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToHistoryResponse(id, turns))
}
