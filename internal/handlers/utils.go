package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/imfeniljikadara/nexus-ai/internal/adapter"
	"github.com/imfeniljikadara/nexus-ai/internal/api"
	"github.com/imfeniljikadara/nexus-ai/pkg/logger_i"
)

func writeJsonResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// headers are gone already, nothing left but to log
		logger_i.NewLogger("RequestHandler").Error("Error encoding response", "error", err)
	}
}

// WriteErrorResponse writes body with its own code as the status.
func WriteErrorResponse(w http.ResponseWriter, body api.ErrorBody) {
	writeJsonResponse(w, body.Code, body)
}

func writeError(w http.ResponseWriter, err error) {
	WriteErrorResponse(w, adapter.ToErrorBody(err))
}

func validateContext(ctx context.Context) bool {
	if ctx.Err() != nil {
		logger_i.NewLogger("RequestHandler").WithTrace(ctx).Warn("context error", "error", ctx.Err())
		return false
	}
	return true
}
