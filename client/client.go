// Package client is the SDK for the document extraction backend: auth,
// documents and document chat over HTTP.
package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/satishkumarchitti/AI-Chat-Bot/client/internal/api"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	defaultUserAgent   = "docupilot-client"
)

// Client talks to one backend. It is safe for concurrent use.
type Client struct {
	baseURL   string
	http      *http.Client
	rc        *resty.Client
	token     func() string
	retry     api.Retry
	userAgent string

	closedOnce uint32 // ensures Close is idempotent
}

// New constructs a Client for baseURL (for example http://localhost:8000/api).
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		return nil, errors.New("baseURL cannot be empty")
	}

	c := &Client{
		baseURL:   baseURL,
		http:      &http.Client{Timeout: defaultHTTPTimeout},
		token:     func() string { return "" },
		retry:     api.Retry{InitialInterval: 200 * time.Millisecond, MaxElapsed: 10 * time.Second},
		userAgent: defaultUserAgent,
	}

	// Auto-enable debug via env variable without changing code.
	if debugLoggingRequested() {
		opts = append(opts, WithDebugLogging(true))
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	c.wrapTransportWithToken()
	c.rc = resty.NewWithClient(c.http).
		SetBaseURL(c.baseURL).
		SetHeader("Accept", "application/json")
	return c, nil
}

// wrapTransportWithToken installs the bearer-token transport on top of
// whatever the options configured.
func (c *Client) wrapTransportWithToken() {
	base := c.http.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	c.http.Transport = &tokenTransport{base: base, token: c.token, userAgent: c.userAgent}
}

// tokenTransport adds a request id and, when a token is available and the
// caller did not set one, the Authorization header.
type tokenTransport struct {
	base      http.RoundTripper
	token     func() string
	userAgent string
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	cloned := req.Clone(req.Context())
	if cloned.Header.Get("X-Request-ID") == "" {
		cloned.Header.Set("X-Request-ID", uuid.NewString())
	}
	if cloned.Header.Get("Authorization") == "" {
		if tok := t.token(); tok != "" {
			cloned.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	if t.userAgent != "" {
		cloned.Header.Set("User-Agent", t.userAgent)
	}
	return t.base.RoundTrip(cloned)
}

// BaseURL returns the backend root the client was built for.
func (c *Client) BaseURL() string { return c.baseURL }

// Close releases idle connections. Safe to call multiple times.
func (c *Client) Close() error {
	if !atomic.CompareAndSwapUint32(&c.closedOnce, 0, 1) {
		return nil
	}
	c.http.CloseIdleConnections()
	return nil
}

// --------------------------------------------------------------------
// Auth
// --------------------------------------------------------------------

// Register creates an account.
func (c *Client) Register(ctx context.Context, name, email, password string) (*AuthResponse, error) {
	out, err := api.Register(ctx, c.rc, RegisterRequest{Name: name, Email: email, Password: password})
	observe("register", err)
	return out, err
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	out, err := api.Login(ctx, c.rc, LoginRequest{Email: email, Password: password})
	observe("login", err)
	return out, err
}

// Logout revokes token on the backend.
func (c *Client) Logout(ctx context.Context, token string) error {
	err := api.Logout(ctx, c.rc, token)
	observe("logout", err)
	return err
}

// Profile returns the account behind the current token.
func (c *Client) Profile(ctx context.Context) (*User, error) {
	out, err := api.Profile(ctx, c.rc, c.retry)
	observe("profile", err)
	return out, err
}

// --------------------------------------------------------------------
// Documents
// --------------------------------------------------------------------

// ListDocuments returns every document of the current user.
func (c *Client) ListDocuments(ctx context.Context) ([]Document, error) {
	out, err := api.ListDocuments(ctx, c.rc, c.retry)
	observe("list_documents", err)
	return out, err
}

// GetDocument returns one document.
func (c *Client) GetDocument(ctx context.Context, id string) (*Document, error) {
	out, err := api.GetDocument(ctx, c.rc, c.retry, id)
	observe("get_document", err)
	return out, err
}

// Upload sends a file for extraction.
func (c *Client) Upload(ctx context.Context, filename, contentType string, content io.Reader) (*Document, error) {
	out, err := api.UploadDocument(ctx, c.rc, filename, contentType, content)
	observe("upload", err)
	return out, err
}

// ExtractedData returns the extraction result of a document. IsNotFound(err)
// means no result exists yet.
func (c *Client) ExtractedData(ctx context.Context, id string) (map[string]any, error) {
	out, err := api.GetExtractedData(ctx, c.rc, c.retry, id)
	observe("extracted_data", err)
	return out, err
}

// UpdateExtractedData merges changes into the stored extraction result.
func (c *Client) UpdateExtractedData(ctx context.Context, id string, changes map[string]any) error {
	err := api.UpdateExtractedData(ctx, c.rc, id, changes)
	observe("update_extracted_data", err)
	return err
}

// DeleteDocument removes a document.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	err := api.DeleteDocument(ctx, c.rc, id)
	observe("delete_document", err)
	return err
}

// Export writes the extraction result of a document to w in format "json"
// or "csv" and returns the number of bytes written.
func (c *Client) Export(ctx context.Context, id, format string, w io.Writer) (int64, error) {
	n, err := api.ExportData(ctx, c.rc, id, format, w)
	observe("export", err)
	return n, err
}

// --------------------------------------------------------------------
// Chat
// --------------------------------------------------------------------

// SendMessage asks the assistant a question about a document.
func (c *Client) SendMessage(ctx context.Context, documentID, message string) (*ChatResponse, error) {
	out, err := api.SendMessage(ctx, c.rc, documentID, message)
	observe("send_message", err)
	return out, err
}

// ChatHistory returns the stored conversation of a document.
func (c *Client) ChatHistory(ctx context.Context, documentID string) ([]HistoryItem, error) {
	out, err := api.ChatHistory(ctx, c.rc, c.retry, documentID)
	observe("chat_history", err)
	return out, err
}

// ClearChatHistory deletes the stored conversation of a document.
func (c *Client) ClearChatHistory(ctx context.Context, documentID string) error {
	err := api.ClearChatHistory(ctx, c.rc, documentID)
	observe("clear_chat_history", err)
	return err
}
