package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/betanery/easy-doc-signer-sub000/internal/logger"
	"github.com/betanery/easy-doc-signer-sub000/internal/services"
)

// maxRequestBody bounds JSON request bodies. Document uploads carry base64
// content, so the action endpoint sizes its own limit from configuration.
const maxRequestBody = 1 << 20

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error     string      `json:"error"`
	Code      string      `json:"code,omitempty"`
	Details   interface{} `json:"details,omitempty"`
	Status    int         `json:"status"`
	Timestamp string      `json:"timestamp"`
}

func writeJSONResponse(w http.ResponseWriter, log *logger.Logger, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Warn("Failed to encode response")
	}
}

// writeErrorResponse classifies err and writes it with the matching status
func writeErrorResponse(w http.ResponseWriter, r *http.Request, log *logger.Logger, eh *services.ErrorHandler, err error, context map[string]interface{}) {
	if context == nil {
		context = make(map[string]interface{})
	}
	context["path"] = r.URL.Path
	context["method"] = r.Method

	classified := eh.HandleError(err, context)
	writeJSONResponse(w, log, classified.StatusCode, ErrorResponse{
		Error:     classified.Message,
		Code:      classified.Code,
		Details:   classified.Details,
		Status:    classified.StatusCode,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// writeBadRequest reports a body that could not be decoded
func writeBadRequest(w http.ResponseWriter, log *logger.Logger, message string, err error) {
	response := ErrorResponse{
		Error:     message,
		Status:    http.StatusBadRequest,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if err != nil {
		response.Details = err.Error()
	}
	writeJSONResponse(w, log, http.StatusBadRequest, response)
}
