package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/HerbHall/newslens/internal/server"
)

// ErrUnavailable wraps transport failures: the API could not be reached
// or the request was canceled before a response arrived.
var ErrUnavailable = errors.New("api unavailable")

// ProblemError is an API failure response. Code carries the problem code
// ("InvalidCredentials", "DuplicateLogin", ...) when the server sent one.
type ProblemError struct {
	Status int
	Code   string
	Title  string
	Detail string
}

func (e *ProblemError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api: %d %s: %s", e.Status, e.Code, e.Detail)
	}
	return fmt.Sprintf("api: %d %s", e.Status, e.Title)
}

// IsCode reports whether err is a ProblemError carrying code.
func IsCode(err error, code string) bool {
	var pe *ProblemError
	return errors.As(err, &pe) && pe.Code == code
}

// problemFromResponse builds a ProblemError from a non-2xx response.
// Bodies that are not problem documents keep their leading text as the
// detail.
func problemFromResponse(resp *http.Response) *ProblemError {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	pe := &ProblemError{Status: resp.StatusCode, Title: http.StatusText(resp.StatusCode)}

	if strings.Contains(resp.Header.Get("Content-Type"), "json") {
		var p server.Problem
		if err := json.Unmarshal(b, &p); err == nil {
			pe.Code = p.Code
			pe.Detail = p.Detail
			if p.Title != "" {
				pe.Title = p.Title
			}
			return pe
		}
	}
	pe.Detail = strings.TrimSpace(string(b))
	return pe
}

// mapError translates transport errors into ErrUnavailable while keeping
// context errors matchable with errors.Is.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}
