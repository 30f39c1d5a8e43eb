// Package apiclient is a typed client for the newslens API. It speaks
// to a real server or, with the mock router as its transport, to the
// in-process store.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/HerbHall/newslens/internal/auth"
	"github.com/HerbHall/newslens/internal/history"
	"github.com/HerbHall/newslens/internal/listing"
	"github.com/HerbHall/newslens/internal/version"
	"github.com/HerbHall/newslens/pkg/models"
)

// Client calls the newslens API.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTransport sets the transport of the underlying HTTP client, for
// example a mock router.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.http = &http.Client{Transport: rt, Timeout: c.http.Timeout} }
}

// New returns a Client for the API at baseURL, e.g. "http://localhost:8080/api".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SignIn authenticates with a login name and secret.
func (c *Client) SignIn(ctx context.Context, loginName, secret string) (*auth.Session, error) {
	var sess auth.Session
	body := map[string]string{"loginName": loginName, "credentialSecret": secret}
	if err := c.post(ctx, "sign-in", body, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// SignUp creates an account.
func (c *Client) SignUp(ctx context.Context, req auth.SignUpRequest) (*auth.Session, error) {
	var sess auth.Session
	if err := c.post(ctx, "sign-up", req, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// SignOut ends the session.
func (c *Client) SignOut(ctx context.Context) error {
	var ok bool
	return c.post(ctx, "sign-out", struct{}{}, &ok)
}

// ForgotPassword requests a password reset.
func (c *Client) ForgotPassword(ctx context.Context) error {
	var ok bool
	return c.post(ctx, "forgot-password", struct{}{}, &ok)
}

// ResetPassword completes a password reset.
func (c *Client) ResetPassword(ctx context.Context) error {
	var ok bool
	return c.post(ctx, "reset-password", struct{}{}, &ok)
}

// AddQueryHistory records a search.
func (c *Client) AddQueryHistory(ctx context.Context, req history.AddRequest) (*history.AddResult, error) {
	var res history.AddResult
	if err := c.post(ctx, "add-query-history", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetQueryHistory fetches one page of userID's history.
func (c *Client) GetQueryHistory(ctx context.Context, userID string, state listing.RequestState) (listing.Page[models.QueryHistoryEntry], error) {
	var page listing.Page[models.QueryHistoryEntry]
	req := history.GetRequest{UserID: userID, RequestState: state}
	if err := c.post(ctx, "get-query-history", req, &page); err != nil {
		return listing.Page[models.QueryHistoryEntry]{}, err
	}
	return page, nil
}

func (c *Client) post(ctx context.Context, op string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+op, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.http.Do(req)
	if err != nil {
		return mapError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return problemFromResponse(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}
