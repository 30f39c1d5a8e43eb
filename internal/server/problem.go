package server

import (
	"encoding/json"
	"net/http"
)

// Problem types for RFC 7807 Problem Details responses.
const (
	ProblemTypeNotFound         = "https://newslens.dev/problems/not-found"
	ProblemTypeBadRequest       = "https://newslens.dev/problems/bad-request"
	ProblemTypeInternal         = "https://newslens.dev/problems/internal-error"
	ProblemTypeUnauthorized     = "https://newslens.dev/problems/unauthorized"
	ProblemTypeMethodNotAllowed = "https://newslens.dev/problems/method-not-allowed"
	ProblemTypeConflict         = "https://newslens.dev/problems/conflict"
)

// Problem codes carried in the "code" extension member. Clients branch
// on the code rather than on the human-readable detail.
const (
	CodeInvalidCredentials = "InvalidCredentials"
	CodeDuplicateLogin     = "DuplicateLogin"
	CodeDuplicateEmail     = "DuplicateEmail"
	CodeUnknownError       = "UnknownError"
	CodeInvalidRequest     = "InvalidRequest"
	CodeNotFound           = "NotFound"
	CodeMethodNotAllowed   = "MethodNotAllowed"
	CodeInternal           = "Internal"
)

// Problem represents an RFC 7807 Problem Details response.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	Code     string `json:"code,omitempty"`
}

// WriteProblem writes an RFC 7807 Problem Details JSON response.
func WriteProblem(w http.ResponseWriter, p Problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// NotFound writes a 404 problem response.
func NotFound(w http.ResponseWriter, detail, instance string) {
	WriteProblem(w, Problem{
		Type:     ProblemTypeNotFound,
		Title:    "Not Found",
		Status:   http.StatusNotFound,
		Detail:   detail,
		Instance: instance,
		Code:     CodeNotFound,
	})
}

// MethodNotAllowed writes a 405 problem response.
func MethodNotAllowed(w http.ResponseWriter, detail, instance string) {
	WriteProblem(w, Problem{
		Type:     ProblemTypeMethodNotAllowed,
		Title:    "Method Not Allowed",
		Status:   http.StatusMethodNotAllowed,
		Detail:   detail,
		Instance: instance,
		Code:     CodeMethodNotAllowed,
	})
}

// BadRequest writes a 400 problem response with the given code.
func BadRequest(w http.ResponseWriter, code, detail, instance string) {
	WriteProblem(w, Problem{
		Type:     ProblemTypeBadRequest,
		Title:    "Bad Request",
		Status:   http.StatusBadRequest,
		Detail:   detail,
		Instance: instance,
		Code:     code,
	})
}

// Unauthorized writes a 401 problem response with the given code.
func Unauthorized(w http.ResponseWriter, code, detail, instance string) {
	WriteProblem(w, Problem{
		Type:     ProblemTypeUnauthorized,
		Title:    "Unauthorized",
		Status:   http.StatusUnauthorized,
		Detail:   detail,
		Instance: instance,
		Code:     code,
	})
}

// InternalError writes a 500 problem response.
func InternalError(w http.ResponseWriter, detail, instance string) {
	WriteProblem(w, Problem{
		Type:     ProblemTypeInternal,
		Title:    "Internal Server Error",
		Status:   http.StatusInternalServerError,
		Detail:   detail,
		Instance: instance,
		Code:     CodeInternal,
	})
}
