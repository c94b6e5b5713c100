package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/ignite/listsync/internal/pkg/logger"
)

// ProblemType is the documentation link carried by every error document.
const ProblemType = "https://mailchimp.com/developer/marketing/docs/errors/"

// Problem is an RFC 7807 style error document.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("json encode failed", "error", err.Error())
	}
}

// OK writes a 200 response with the given data.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// NoContent writes a 204 response with no body.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteProblem writes an error document.
func WriteProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json; charset=utf-8")
	w.WriteHeader(status)
	p := Problem{Type: ProblemType, Title: title, Status: status, Detail: detail}
	if err := json.NewEncoder(w).Encode(p); err != nil {
		logger.Error("json encode failed", "error", err.Error())
	}
}

// NotFound writes the API's 404 document.
func NotFound(w http.ResponseWriter) {
	WriteProblem(w, http.StatusNotFound, "Resource Not Found", "The requested resource could not be found.")
}

// Invalid writes the API's 400 document.
func Invalid(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusBadRequest, "Invalid Resource", detail)
}

// Decode reads JSON from the request body into dst.
// Returns false and writes a 400 document if parsing fails.
func Decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		Invalid(w, err.Error())
		return false
	}
	return true
}
