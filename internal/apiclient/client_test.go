package apiclient_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/HerbHall/newslens/internal/apiclient"
	"github.com/HerbHall/newslens/internal/auth"
	"github.com/HerbHall/newslens/internal/history"
	"github.com/HerbHall/newslens/internal/listing"
	"github.com/HerbHall/newslens/internal/mockapi"
	"github.com/HerbHall/newslens/internal/server"
	"github.com/HerbHall/newslens/internal/testutil"
)

const baseURL = "http://app.test/api"

func newClient(t *testing.T) *apiclient.Client {
	t.Helper()
	st, _ := testutil.NewStore(t)
	authSvc := auth.NewService(st, nil, nil, auth.WithBcryptCost(bcrypt.MinCost))
	histSvc := history.NewService(st, nil, nil)
	router, err := mockapi.NewRouter(baseURL, st, authSvc, histSvc, testutil.Logger())
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return apiclient.New(baseURL, apiclient.WithTransport(router))
}

func TestClient_AuthFlow(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	sess, err := c.SignUp(ctx, auth.SignUpRequest{LoginName: "alice", Email: "a@example.com", CredentialSecret: "pw"})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if sess.User.LoginName != "alice" {
		t.Errorf("LoginName = %q, want alice", sess.User.LoginName)
	}

	_, err = c.SignUp(ctx, auth.SignUpRequest{LoginName: "alice", Email: "a@example.com", CredentialSecret: "pw"})
	if !apiclient.IsCode(err, server.CodeDuplicateLogin) {
		t.Errorf("duplicate SignUp error = %v, want DuplicateLogin", err)
	}

	if _, err := c.SignIn(ctx, "alice", "pw"); err != nil {
		t.Errorf("SignIn: %v", err)
	}

	_, err = c.SignIn(ctx, "alice", "wrong")
	var pe *apiclient.ProblemError
	if !errors.As(err, &pe) {
		t.Fatalf("SignIn error = %v, want *ProblemError", err)
	}
	if pe.Status != http.StatusUnauthorized || pe.Code != server.CodeInvalidCredentials {
		t.Errorf("problem = %d %s, want 401 InvalidCredentials", pe.Status, pe.Code)
	}

	for name, fn := range map[string]func(context.Context) error{
		"SignOut": c.SignOut, "ForgotPassword": c.ForgotPassword, "ResetPassword": c.ResetPassword,
	} {
		if err := fn(ctx); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
}

func TestClient_History(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	res, err := c.AddQueryHistory(ctx, history.AddRequest{
		UserID: "u1", QueryLabel: "markets", SearchedArticles: testutil.NewArticles(3),
	})
	if err != nil {
		t.Fatalf("AddQueryHistory: %v", err)
	}
	if res.Entry.ArticlesCount() != 3 {
		t.Errorf("ArticlesCount = %d, want 3", res.Entry.ArticlesCount())
	}
	if res.Token == "" {
		t.Error("Token is empty")
	}

	page, err := c.GetQueryHistory(ctx, "u1", listing.DefaultRequestState())
	if err != nil {
		t.Fatalf("GetQueryHistory: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 || page.Items[0].ID != res.Entry.ID {
		t.Errorf("page = %+v, want the added entry", page)
	}
}

func TestClient_NonProblemFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer ts.Close()

	c := apiclient.New(ts.URL + "/api")
	err := c.SignOut(context.Background())
	var pe *apiclient.ProblemError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *ProblemError", err)
	}
	if pe.Status != http.StatusBadGateway || pe.Detail != "upstream exploded" {
		t.Errorf("problem = %d %q, want 502 %q", pe.Status, pe.Detail, "upstream exploded")
	}
}

func TestClient_Unavailable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newClient(t)
	err := c.SignOut(ctx)
	if !errors.Is(err, apiclient.ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
