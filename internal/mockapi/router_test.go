package mockapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/crypto/bcrypt"

	"github.com/HerbHall/newslens/internal/auth"
	"github.com/HerbHall/newslens/internal/event"
	"github.com/HerbHall/newslens/internal/history"
	"github.com/HerbHall/newslens/internal/server"
	"github.com/HerbHall/newslens/internal/store"
	"github.com/HerbHall/newslens/internal/testutil"
	"github.com/HerbHall/newslens/pkg/models"
)

const testBaseURL = "http://app.test/api"

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

type failingBlobs struct{}

func (failingBlobs) Load(context.Context, string) ([]byte, error) { return nil, store.ErrBlobNotFound }
func (failingBlobs) Save(context.Context, string, []byte) error   { return errors.New("disk full") }
func (failingBlobs) Delete(context.Context, string) error         { return nil }

func newTestRouter(t *testing.T, blobs store.BlobStore, opts ...Option) (*Router, *store.Store) {
	t.Helper()
	st := store.New(blobs, testutil.Logger(), store.WithIDPrefix(history.Table, history.IDPrefix))
	authSvc := auth.NewService(st, nil, testutil.Logger(), auth.WithBcryptCost(bcrypt.MinCost))
	histSvc := history.NewService(st, nil, testutil.Logger(), history.WithClock(testutil.NewClock().Now))
	r, err := NewRouter(testBaseURL, st, authSvc, histSvc, testutil.Logger(), opts...)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return r, st
}

// doRequest sends a JSON request through the router's client transport.
func doRequest(t *testing.T, r *Router, method, path string, body any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, testBaseURL+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := r.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeProblem(t *testing.T, resp *http.Response) server.Problem {
	t.Helper()
	if ct := resp.Header.Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("content-type = %q, want problem+json", ct)
	}
	var p server.Problem
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	return p
}

func signUpBody(login, email string) auth.SignUpRequest {
	return auth.SignUpRequest{DisplayName: login, LoginName: login, CredentialSecret: "pw", Email: email}
}

func TestRoundTrip_PassesThroughOtherHosts(t *testing.T) {
	var forwarded []string
	next := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		forwarded = append(forwarded, req.URL.String())
		return &http.Response{StatusCode: http.StatusTeapot, Body: io.NopCloser(strings.NewReader("")), Request: req}, nil
	})
	blobs := store.NewMemoryBlobStore()
	r, _ := newTestRouter(t, blobs, WithTransport(next))

	for _, target := range []string{
		"https://newsapi.org/v2/everything?q=x",
		"http://localhost:5000/news-clustering/train-get-clusters",
		"http://app.test/img/avatars/thumb-1.jpg",
	} {
		resp, err := r.Client().Post(target, "application/json", strings.NewReader(`{}`))
		if err != nil {
			t.Fatalf("POST %s: %v", target, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusTeapot {
			t.Errorf("POST %s status = %d, want passthrough %d", target, resp.StatusCode, http.StatusTeapot)
		}
	}

	if len(forwarded) != 3 {
		t.Errorf("forwarded %d calls, want 3", len(forwarded))
	}
	if got := promtestutil.ToFloat64(r.metrics.passthrough); got != 3 {
		t.Errorf("passthrough_total = %v, want 3", got)
	}
	if blobs.Saves() != 0 {
		t.Errorf("snapshot saves = %d, want 0", blobs.Saves())
	}
}

func TestSignUp_SnapshotWrittenBeforeResponse(t *testing.T) {
	blobs := store.NewMemoryBlobStore()
	r, _ := newTestRouter(t, blobs)

	resp := doRequest(t, r, http.MethodPost, "/sign-up", signUpBody("alice", "alice@example.com"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if blobs.Saves() != 1 {
		t.Fatalf("snapshot saves = %d, want 1", blobs.Saves())
	}

	data, err := blobs.Load(context.Background(), store.SnapshotBlobName)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	snap, err := store.DecodeSnapshot(data)
	if err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(snap[auth.Table]) != 1 {
		t.Errorf("snapshot users = %d, want 1", len(snap[auth.Table]))
	}

	var sess auth.Session
	if err := json.NewDecoder(resp.Body).Decode(&sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if sess.Token != auth.PlaceholderToken {
		t.Errorf("token = %q, want placeholder", sess.Token)
	}
	if sess.User.AvatarRef != auth.DefaultAvatar {
		t.Errorf("avatarRef = %q, want %q", sess.User.AvatarRef, auth.DefaultAvatar)
	}
	if fmt.Sprint(sess.User.Roles) != "[admin user]" {
		t.Errorf("roles = %v, want [admin user]", sess.User.Roles)
	}
}

func TestReadOperations_DoNotWriteSnapshot(t *testing.T) {
	blobs := store.NewMemoryBlobStore()
	r, _ := newTestRouter(t, blobs)
	doRequest(t, r, http.MethodPost, "/sign-up", signUpBody("alice", "alice@example.com"))
	before := blobs.Saves()

	calls := []struct {
		method, path string
		body         any
	}{
		{http.MethodPost, "/sign-in", SignInRequest{LoginName: "alice", CredentialSecret: "pw"}},
		{http.MethodPost, "/sign-out", nil},
		{http.MethodPost, "/forgot-password", nil},
		{http.MethodPost, "/reset-password", nil},
		{http.MethodPost, "/get-query-history", history.GetRequest{UserID: "u1"}},
		{http.MethodGet, "/sign-in", nil},
		{http.MethodGet, "/nothing-here", nil},
	}
	for _, c := range calls {
		doRequest(t, r, c.method, c.path, c.body)
	}
	if blobs.Saves() != before {
		t.Errorf("snapshot saves = %d, want %d", blobs.Saves(), before)
	}
}

func TestSignUp_Conflicts(t *testing.T) {
	r, _ := newTestRouter(t, store.NewMemoryBlobStore())
	doRequest(t, r, http.MethodPost, "/sign-up", signUpBody("alice", "alice@example.com"))

	tests := []struct {
		name       string
		body       auth.SignUpRequest
		wantCode   string
		wantDetail string
	}{
		{"login and email taken", signUpBody("alice", "alice@example.com"), server.CodeDuplicateLogin, "User already exist!"},
		{"email taken", signUpBody("bob", "alice@example.com"), server.CodeDuplicateEmail, "Email already used"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, r, http.MethodPost, "/sign-up", tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
			p := decodeProblem(t, resp)
			if p.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", p.Code, tt.wantCode)
			}
			if p.Detail != tt.wantDetail {
				t.Errorf("detail = %q, want %q", p.Detail, tt.wantDetail)
			}
		})
	}
}

func TestRejectedWrites_DoNotWriteSnapshot(t *testing.T) {
	blobs := store.NewMemoryBlobStore()
	r, st := newTestRouter(t, blobs)
	doRequest(t, r, http.MethodPost, "/sign-up", signUpBody("alice", "alice@example.com"))

	doRequest(t, r, http.MethodPost, "/sign-up", signUpBody("alice", "other@example.com"))
	doRequest(t, r, http.MethodPost, "/add-query-history", history.AddRequest{UserID: "u1"})
	doRequest(t, r, http.MethodPost, "/add-query-history", "not an object")

	if blobs.Saves() != 1 {
		t.Errorf("snapshot saves = %d, want 1", blobs.Saves())
	}
	if st.Count(auth.Table) != 1 || st.Count(history.Table) != 0 {
		t.Errorf("users = %d, history = %d; want 1, 0", st.Count(auth.Table), st.Count(history.Table))
	}
}

func TestSignIn(t *testing.T) {
	r, _ := newTestRouter(t, store.NewMemoryBlobStore())
	doRequest(t, r, http.MethodPost, "/sign-up", signUpBody("alice", "alice@example.com"))

	resp := doRequest(t, r, http.MethodPost, "/sign-in", SignInRequest{LoginName: "alice", CredentialSecret: "pw"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var raw map[string]map[string]any
	json.NewDecoder(resp.Body).Decode(&raw)
	if _, leaked := raw["user"]["credentialSecret"]; leaked {
		t.Error("credentialSecret present in sign-in response")
	}

	resp = doRequest(t, r, http.MethodPost, "/sign-in", SignInRequest{LoginName: "alice", CredentialSecret: "nope"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	p := decodeProblem(t, resp)
	if p.Code != server.CodeInvalidCredentials {
		t.Errorf("code = %q, want %q", p.Code, server.CodeInvalidCredentials)
	}
	if p.Detail != auth.SignInGuidance {
		t.Errorf("detail = %q, want %q", p.Detail, auth.SignInGuidance)
	}
}

func TestQueryHistory_RoundTrip(t *testing.T) {
	blobs := store.NewMemoryBlobStore()
	r, _ := newTestRouter(t, blobs)

	for i := range 3 {
		resp := doRequest(t, r, http.MethodPost, "/add-query-history", history.AddRequest{
			UserID:           "u1",
			QueryLabel:       fmt.Sprintf("query %d", i),
			SearchedArticles: testutil.NewArticles(2),
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("add status = %d, want 200", resp.StatusCode)
		}
	}
	doRequest(t, r, http.MethodPost, "/add-query-history", history.AddRequest{UserID: "u2", QueryLabel: "other"})
	if blobs.Saves() != 4 {
		t.Errorf("snapshot saves = %d, want 4", blobs.Saves())
	}

	resp := doRequest(t, r, http.MethodPost, "/get-query-history", map[string]any{
		"userId":       "u1",
		"requestState": map[string]any{"pageIndex": 1, "pageSize": 2},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, want 200", resp.StatusCode)
	}
	var page struct {
		Page  []models.QueryHistoryEntry `json:"page"`
		Total int                        `json:"total"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if page.Total != 3 || len(page.Page) != 2 {
		t.Errorf("page = %d rows, total %d; want 2 rows, total 3", len(page.Page), page.Total)
	}
	for _, e := range page.Page {
		if e.UserID != "u1" {
			t.Errorf("entry %s belongs to %s", e.ID, e.UserID)
		}
	}
}

func TestRoundTrip_Errors(t *testing.T) {
	r, _ := newTestRouter(t, store.NewMemoryBlobStore())

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"unknown path", http.MethodPost, "/delete-everything", "{}", http.StatusNotFound, server.CodeNotFound},
		{"wrong method", http.MethodGet, "/sign-up", "", http.StatusMethodNotAllowed, server.CodeMethodNotAllowed},
		{"malformed body", http.MethodPost, "/sign-in", "{not json", http.StatusBadRequest, server.CodeInvalidRequest},
		{"missing owner", http.MethodPost, "/add-query-history", `{"queryLabel":"x"}`, http.StatusBadRequest, server.CodeInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(tt.method, testBaseURL+tt.path, strings.NewReader(tt.body))
			resp, err := r.Client().Do(req)
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if p := decodeProblem(t, resp); p.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", p.Code, tt.wantCode)
			}
		})
	}
}

func TestSnapshotFailure(t *testing.T) {
	bus := testutil.NewRecordingBus()
	r, st := newTestRouter(t, failingBlobs{}, WithEvents(bus))

	resp := doRequest(t, r, http.MethodPost, "/sign-up", signUpBody("alice", "alice@example.com"))
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	if p := decodeProblem(t, resp); p.Code != server.CodeInternal {
		t.Errorf("code = %q, want %q", p.Code, server.CodeInternal)
	}
	if st.Count(auth.Table) != 0 {
		t.Errorf("users = %d, want 0 (unsaved write rolled back)", st.Count(auth.Table))
	}

	// A retry after a failed save must not find a half-applied record.
	resp = doRequest(t, r, http.MethodPost, "/sign-up", signUpBody("alice", "alice@example.com"))
	if p := decodeProblem(t, resp); p.Code != server.CodeInternal {
		t.Errorf("retry code = %q, want %q (not a duplicate)", p.Code, server.CodeInternal)
	}
	if got := promtestutil.ToFloat64(r.metrics.snapshotErr); got != 2 {
		t.Errorf("snapshot_errors_total = %v, want 2", got)
	}
	if topics := bus.Topics(); len(topics) != 0 {
		t.Errorf("published %v for an unsaved write, want nothing", topics)
	}
}

func TestRoundTrip_CanceledContext(t *testing.T) {
	r, _ := newTestRouter(t, store.NewMemoryBlobStore())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, testBaseURL+"/sign-out", nil)
	if _, err := r.RoundTrip(req); !errors.Is(err, context.Canceled) {
		t.Errorf("RoundTrip error = %v, want context.Canceled", err)
	}
}

func TestServe_OverHTTP(t *testing.T) {
	r, _ := newTestRouter(t, store.NewMemoryBlobStore())
	srv := server.New(":0", []server.RouteProvider{r}, testutil.Logger())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	body, _ := json.Marshal(signUpBody("alice", "alice@example.com"))
	resp, err := http.Post(ts.URL+"/api/sign-up", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST sign-up: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Post(ts.URL+"/api/sign-in", "application/json",
		strings.NewReader(`{"loginName":"alice","credentialSecret":"bad"}`))
	if err != nil {
		t.Fatalf("POST sign-in: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestServeHTTP_Direct(t *testing.T) {
	r, _ := newTestRouter(t, store.NewMemoryBlobStore())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sign-out", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != "true" {
		t.Errorf("body = %q, want true", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/elsewhere/sign-out", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestOperations(t *testing.T) {
	seen := map[string]bool{}
	for _, op := range Operations {
		if op.String() == "unknown" {
			t.Errorf("operation %d has no name", op)
		}
		if seen[op.Path()] {
			t.Errorf("duplicate path %s", op.Path())
		}
		seen[op.Path()] = true

		got, found, methodOK := lookup(op.Method(), op.Path())
		if got != op || !found || !methodOK {
			t.Errorf("lookup(%s) = %v, %v, %v", op.Path(), got, found, methodOK)
		}
	}
}

func TestEvents_PublishedAfterPersistedWrites(t *testing.T) {
	blobs := store.NewMemoryBlobStore()
	bus := event.NewBus(testutil.Logger())
	var topics []string
	var savesAtPublish []int
	bus.SubscribeAll(func(ctx context.Context, e event.Event) {
		topics = append(topics, e.Topic)
		savesAtPublish = append(savesAtPublish, blobs.Saves())
	})
	r, _ := newTestRouter(t, blobs, WithEvents(bus))

	doRequest(t, r, http.MethodPost, "/sign-up", signUpBody("ana", "ana@example.com"))
	doRequest(t, r, http.MethodPost, "/sign-up", signUpBody("ana", "other@example.com"))
	doRequest(t, r, http.MethodPost, "/sign-in", SignInRequest{LoginName: "ana", CredentialSecret: "pw"})
	doRequest(t, r, http.MethodPost, "/add-query-history", history.AddRequest{UserID: "u1", QueryLabel: "news"})

	want := []string{event.TopicUserSignedUp, event.TopicHistoryAdded}
	if fmt.Sprint(topics) != fmt.Sprint(want) {
		t.Errorf("topics = %v, want %v", topics, want)
	}
	if fmt.Sprint(savesAtPublish) != fmt.Sprint([]int{1, 2}) {
		t.Errorf("saves at publish = %v, want [1 2]", savesAtPublish)
	}
}
