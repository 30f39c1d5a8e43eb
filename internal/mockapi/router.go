// Package mockapi serves the newslens API from the in-process store.
//
// A Router is both an http.RoundTripper and an http.Handler. Installed as
// a client transport it answers calls addressed to the API base URL
// locally and forwards every other call to the real network; mounted on
// a server it answers the same operations over HTTP. Operations that
// write to the store are followed by a snapshot write, and the response
// is produced only after that write has finished.
package mockapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/HerbHall/newslens/internal/auth"
	"github.com/HerbHall/newslens/internal/event"
	"github.com/HerbHall/newslens/internal/history"
	"github.com/HerbHall/newslens/internal/server"
	"github.com/HerbHall/newslens/internal/store"
)

// Compile-time interface guards.
var (
	_ http.RoundTripper    = (*Router)(nil)
	_ http.Handler         = (*Router)(nil)
	_ server.RouteProvider = (*Router)(nil)
)

// Messages carried in problem details, matching what the web client shows.
const (
	msgDuplicateLogin = "User already exist!"
	msgDuplicateEmail = "Email already used"
	msgUnknown        = "Unknown error"
)

// maxBodyBytes bounds the request bodies the router decodes.
const maxBodyBytes = 8 << 20

// SignInRequest is the body of a sign-in call.
type SignInRequest struct {
	LoginName        string `json:"loginName"`
	CredentialSecret string `json:"credentialSecret"`
}

// Router dispatches API operations to the auth and history services.
type Router struct {
	base     *url.URL
	basePath string

	store   *store.Store
	auth    *auth.Service
	history *history.Service

	next     http.RoundTripper
	events   event.Publisher
	registry *prometheus.Registry
	metrics  *metrics
	logger   *zap.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithTransport sets the transport used for passthrough calls.
// Defaults to http.DefaultTransport.
func WithTransport(rt http.RoundTripper) Option {
	return func(r *Router) { r.next = rt }
}

// WithEvents publishes an event after each successful store write.
func WithEvents(p event.Publisher) Option {
	return func(r *Router) { r.events = p }
}

// NewRouter creates a Router answering calls under baseURL, for example
// "http://localhost:8080/api".
func NewRouter(baseURL string, st *store.Store, authSvc *auth.Service, historySvc *history.Service, logger *zap.Logger, opts ...Option) (*Router, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("api base url %q has no host", baseURL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	reg := prometheus.NewRegistry()
	r := &Router{
		base:     base,
		basePath: strings.TrimSuffix(base.Path, "/"),
		store:    st,
		auth:     authSvc,
		history:  historySvc,
		next:     http.DefaultTransport,
		registry: reg,
		metrics:  newMetrics(reg),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Registry returns the registry holding the router's metrics.
func (r *Router) Registry() *prometheus.Registry {
	return r.registry
}

// Client returns an HTTP client whose calls go through the router.
func (r *Router) Client() *http.Client {
	return &http.Client{Transport: r}
}

// BaseURL returns the API base URL the router answers.
func (r *Router) BaseURL() string {
	return r.base.String()
}

// Routes returns one server route per operation.
func (r *Router) Routes() []server.Route {
	routes := make([]server.Route, 0, len(Operations))
	for _, op := range Operations {
		routes = append(routes, server.Route{
			Method: op.Method(),
			Path:   r.basePath + op.Path(),
			Handler: func(w http.ResponseWriter, req *http.Request) {
				r.serveOp(w, req, op)
			},
		})
	}
	return routes
}

// RoundTrip answers calls addressed to the API host locally and forwards
// the rest to the next transport unmodified.
func (r *Router) RoundTrip(req *http.Request) (*http.Response, error) {
	rel, local := r.relPath(req.URL)
	if !local {
		r.metrics.passthrough.Inc()
		return r.next.RoundTrip(req)
	}
	if req.Body != nil {
		defer req.Body.Close()
	}
	if err := req.Context().Err(); err != nil {
		return nil, err
	}

	res := r.handle(req.Context(), req.Method, rel, req.Body, req.URL.Path)

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(res.body); err != nil {
		return nil, fmt.Errorf("encode %s response: %w", res.op, err)
	}
	header := make(http.Header)
	header.Set("Content-Type", res.contentType())
	return &http.Response{
		Status:        strconv.Itoa(res.status) + " " + http.StatusText(res.status),
		StatusCode:    res.status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(&buf),
		ContentLength: int64(buf.Len()),
		Request:       req,
	}, nil
}

// ServeHTTP answers any operation under the API base path.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	rel, ok := strings.CutPrefix(req.URL.Path, r.basePath)
	if !ok {
		server.NotFound(w, "no such endpoint", req.URL.Path)
		return
	}
	r.write(w, r.handle(req.Context(), req.Method, rel, req.Body, req.URL.Path))
}

func (r *Router) serveOp(w http.ResponseWriter, req *http.Request, op Operation) {
	r.write(w, r.handle(req.Context(), req.Method, op.Path(), req.Body, req.URL.Path))
}

func (r *Router) write(w http.ResponseWriter, res result) {
	if p, ok := res.body.(server.Problem); ok {
		server.WriteProblem(w, p)
		return
	}
	server.WriteJSON(w, res.status, res.body)
}

// relPath reports whether u addresses the API and returns its path
// relative to the API base path. Calls to other hosts, and to paths
// outside the base path on the API host, are not handled locally.
func (r *Router) relPath(u *url.URL) (string, bool) {
	if !strings.EqualFold(u.Host, r.base.Host) {
		return "", false
	}
	if u.Scheme != "" && r.base.Scheme != "" && !strings.EqualFold(u.Scheme, r.base.Scheme) {
		return "", false
	}
	rel, ok := strings.CutPrefix(u.Path, r.basePath)
	if !ok || (rel != "" && !strings.HasPrefix(rel, "/")) {
		return "", false
	}
	return rel, true
}

type result struct {
	op     Operation
	status int
	body   any
}

func (res result) contentType() string {
	if _, ok := res.body.(server.Problem); ok {
		return "application/problem+json"
	}
	return "application/json"
}

func problemResult(op Operation, p server.Problem) result {
	return result{op: op, status: p.Status, body: p}
}

// handle resolves and runs one call. Store-writing operations run under
// the store's writer lock and return only after the snapshot is saved;
// rejected writes save nothing, and a failed save rolls the write back.
func (r *Router) handle(ctx context.Context, method, rel string, body io.Reader, instance string) result {
	op, found, methodOK := lookup(method, rel)
	res := func() result {
		switch {
		case !found:
			return problemResult(op, server.Problem{
				Type: server.ProblemTypeNotFound, Title: "Not Found", Status: http.StatusNotFound,
				Detail: "no such endpoint", Instance: instance, Code: server.CodeNotFound,
			})
		case !methodOK:
			return problemResult(op, server.Problem{
				Type: server.ProblemTypeMethodNotAllowed, Title: "Method Not Allowed", Status: http.StatusMethodNotAllowed,
				Detail: op.String() + " requires " + op.Method(), Instance: instance, Code: server.CodeMethodNotAllowed,
			})
		}

		payload, err := readBody(body)
		if err != nil {
			return problemResult(op, badRequest(err, instance))
		}

		if !op.Writes() {
			out, err := r.dispatch(ctx, op, payload)
			return r.resultFor(op, out, err, instance)
		}

		var out any
		start := time.Now()
		err = r.store.Mutate(ctx, func(ctx context.Context) error {
			var opErr error
			out, opErr = r.dispatch(ctx, op, payload)
			return opErr
		})
		if errors.Is(err, store.ErrCheckpoint) {
			r.metrics.observeSnapshot(start, err)
			r.logger.Error("snapshot write failed",
				zap.String("operation", op.String()),
				zap.Error(err),
			)
			return problemResult(op, server.Problem{
				Type: server.ProblemTypeInternal, Title: "Internal Server Error", Status: http.StatusInternalServerError,
				Detail: "state could not be saved", Instance: instance, Code: server.CodeInternal,
			})
		}
		if err == nil {
			r.metrics.observeSnapshot(start, nil)
			r.publish(ctx, op, out)
		}
		return r.resultFor(op, out, err, instance)
	}()

	r.metrics.observe(res.op, res.status)
	return res
}

// publish announces a persisted write. It runs after the store lock is
// released, so handlers may read the store.
func (r *Router) publish(ctx context.Context, op Operation, out any) {
	if r.events == nil {
		return
	}
	var topic string
	switch op {
	case OpSignUp:
		topic = event.TopicUserSignedUp
	case OpAddQueryHistory:
		topic = event.TopicHistoryAdded
	default:
		return
	}
	if err := r.events.Publish(ctx, event.Event{Topic: topic, Source: "api", Payload: out}); err != nil {
		r.logger.Warn("event publish failed", zap.String("topic", topic), zap.Error(err))
	}
}

// dispatch decodes the payload for op and invokes its handler.
func (r *Router) dispatch(ctx context.Context, op Operation, payload []byte) (any, error) {
	switch op {
	case OpSignIn:
		var req SignInRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		return r.auth.SignIn(ctx, req.LoginName, req.CredentialSecret)
	case OpSignUp:
		var req auth.SignUpRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		return r.auth.SignUp(ctx, req)
	case OpSignOut:
		return r.auth.SignOut(ctx)
	case OpForgotPassword:
		return r.auth.ForgotPassword(ctx)
	case OpResetPassword:
		return r.auth.ResetPassword(ctx)
	case OpAddQueryHistory:
		var req history.AddRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		return r.history.AddEntry(ctx, req)
	case OpGetQueryHistory:
		var req history.GetRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		return r.history.GetHistory(ctx, req.UserID, req.RequestState)
	default:
		return nil, fmt.Errorf("operation %d has no handler", op)
	}
}

// errBadBody marks request bodies that could not be decoded.
var errBadBody = errors.New("malformed request body")

func readBody(body io.Reader) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(io.LimitReader(body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadBody, err)
	}
	if len(data) > maxBodyBytes {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", errBadBody, maxBodyBytes)
	}
	return data, nil
}

func decode(payload []byte, v any) error {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	return nil
}

func badRequest(err error, instance string) server.Problem {
	return server.Problem{
		Type: server.ProblemTypeBadRequest, Title: "Bad Request", Status: http.StatusBadRequest,
		Detail: err.Error(), Instance: instance, Code: server.CodeInvalidRequest,
	}
}

// resultFor maps a handler outcome to a response.
func (r *Router) resultFor(op Operation, out any, err error, instance string) result {
	if err == nil {
		return result{op: op, status: http.StatusOK, body: out}
	}

	unauthorized := func(code, detail string) result {
		return problemResult(op, server.Problem{
			Type: server.ProblemTypeUnauthorized, Title: "Unauthorized", Status: http.StatusUnauthorized,
			Detail: detail, Instance: instance, Code: code,
		})
	}
	conflict := func(code, detail string) result {
		return problemResult(op, server.Problem{
			Type: server.ProblemTypeBadRequest, Title: "Bad Request", Status: http.StatusBadRequest,
			Detail: detail, Instance: instance, Code: code,
		})
	}

	switch {
	case errors.Is(err, errBadBody), errors.Is(err, history.ErrInvalidEntry):
		return problemResult(op, badRequest(err, instance))
	case errors.Is(err, auth.ErrInvalidCredentials):
		return unauthorized(server.CodeInvalidCredentials, auth.SignInGuidance)
	case errors.Is(err, auth.ErrDuplicateLogin):
		return conflict(server.CodeDuplicateLogin, msgDuplicateLogin)
	case errors.Is(err, auth.ErrDuplicateEmail):
		return conflict(server.CodeDuplicateEmail, msgDuplicateEmail)
	case errors.Is(err, history.ErrUnknown):
		return unauthorized(server.CodeUnknownError, msgUnknown)
	default:
		r.logger.Error("operation failed", zap.String("operation", op.String()), zap.Error(err))
		return problemResult(op, server.Problem{
			Type: server.ProblemTypeInternal, Title: "Internal Server Error", Status: http.StatusInternalServerError,
			Detail: "internal error", Instance: instance, Code: server.CodeInternal,
		})
	}
}
