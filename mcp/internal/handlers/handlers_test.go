package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/satishkumarchitti/AI-Chat-Bot/internal/config"
	"github.com/satishkumarchitti/AI-Chat-Bot/internal/fakeapi"
	"github.com/satishkumarchitti/AI-Chat-Bot/workspace"
)

type harness struct {
	api  *fakeapi.Server
	b    *Bridge
	sess *SessionHandler
	docs *DocumentHandler
	chat *ChatHandler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	api := fakeapi.New(fakeapi.WithBcryptCost(bcrypt.MinCost))
	_, err := api.SeedUser("Ada", "ada@example.com", "secret1")
	require.NoError(t, err)
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	t.Cleanup(api.Close)

	cfg := &config.Config{
		APIURL:           srv.URL + "/api",
		HTTPTimeout:      5 * time.Second,
		PersistDriver:    config.DriverMemory,
		PersistNamespace: "persist:root",
		Shards:           2,
		QueueSize:        16,
	}
	ws, err := workspace.Open(context.Background(), cfg, workspace.Options{Logger: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })

	b := NewBridge(ws)
	return &harness{
		api:  api,
		b:    b,
		sess: NewSessionHandler(b),
		docs: NewDocumentHandler(b),
		chat: NewChatHandler(b),
	}
}

func call(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: args}}
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", res.Content[0])
	return tc.Text
}

func ok(t *testing.T, res *mcp.CallToolResult, err error) string {
	t.Helper()
	require.NoError(t, err)
	out := text(t, res)
	require.False(t, res.IsError, out)
	return out
}

func failed(t *testing.T, res *mcp.CallToolResult, err error) string {
	t.Helper()
	require.NoError(t, err)
	out := text(t, res)
	require.True(t, res.IsError, out)
	return out
}

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &m), s)
	return m
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	res, err := h.sess.handleLogin(context.Background(), call(map[string]any{
		"email": "ada@example.com", "password": "secret1",
	}))
	out := decode(t, ok(t, res, err))
	require.Equal(t, true, out["authenticated"])
}

// uploadProcessed uploads a receipt through the workspace and finishes its
// extraction on the backend.
func (h *harness) uploadProcessed(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	p, err := h.b.ws.Upload(ctx, workspace.UploadForm{
		Filename:    "receipt.pdf",
		ContentType: "application/pdf",
		Content:     strings.NewReader("%PDF-1.4 receipt"),
	})
	require.NoError(t, err)
	require.NoError(t, p.Wait(ctx))
	id := string(h.b.ws.Documents().State().Current.ID)
	require.NoError(t, h.api.ProcessString(id))
	return id
}

func TestSessionTools(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.sess.handleWhoami(ctx, call(nil))
	assert.Equal(t, false, decode(t, ok(t, res, err))["authenticated"])

	res, err = h.sess.handleLogin(ctx, call(map[string]any{"email": "ada@example.com", "password": "nope"}))
	assert.Contains(t, failed(t, res, err), "Incorrect email or password")

	res, err = h.sess.handleLogin(ctx, call(map[string]any{"email": "not-an-email", "password": "x"}))
	assert.Contains(t, failed(t, res, err), "Please enter a valid email address")

	res, err = h.sess.handleLogin(ctx, call(map[string]any{"email": "ada@example.com"}))
	assert.Contains(t, failed(t, res, err), "password")

	h.login(t)
	res, err = h.sess.handleWhoami(ctx, call(nil))
	out := decode(t, ok(t, res, err))
	assert.Equal(t, "Ada", out["name"])
	assert.Equal(t, "ada@example.com", out["email"])

	res, err = h.sess.handleLogout(ctx, call(nil))
	assert.Equal(t, "Logged out", ok(t, res, err))
	assert.False(t, h.b.ws.Session().State().IsAuthenticated())
}

func TestDocumentTools_RequireLogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.docs.handleList(ctx, call(nil))
	assert.Contains(t, failed(t, res, err), "not logged in")

	res, err = h.chat.handleAsk(ctx, call(map[string]any{"document_id": "1", "question": "total?"}))
	assert.Contains(t, failed(t, res, err), "not logged in")
}

func TestListDocuments(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	id := h.uploadProcessed(t)
	ctx := context.Background()

	res, err := h.docs.handleList(ctx, call(map[string]any{"search": "RECEIPT"}))
	out := decode(t, ok(t, res, err))
	assert.EqualValues(t, 1, out["count"])
	docs := out["documents"].([]any)
	first := docs[0].(map[string]any)
	assert.Equal(t, id, first["id"])
	assert.Equal(t, "processed", first["status"])
	assert.Equal(t, "pdf", first["fileType"])

	res, err = h.docs.handleList(ctx, call(map[string]any{"search": "invoice"}))
	assert.EqualValues(t, 0, decode(t, ok(t, res, err))["count"])

	res, err = h.docs.handleList(ctx, call(map[string]any{"sort_by": "size"}))
	failed(t, res, err)
}

func TestGetExtractionAndUpdate(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	id := h.uploadProcessed(t)
	ctx := context.Background()

	res, err := h.docs.handleGetExtraction(ctx, call(map[string]any{"document_id": id}))
	out := decode(t, ok(t, res, err))
	extraction := out["extraction"].(map[string]any)
	assert.Equal(t, "100.00", extraction["total_amount"])
	assert.Equal(t, "receipt.pdf", out["document"].(map[string]any)["filename"])

	res, err = h.docs.handleUpdateFields(ctx, call(map[string]any{
		"document_id": id,
		"fields":      map[string]any{"vendor_address.city": "Shelbyville"},
	}))
	out = decode(t, ok(t, res, err))
	addr := out["extraction"].(map[string]any)["vendor_address"].(map[string]any)
	assert.Equal(t, "Shelbyville", addr["city"])
	assert.Equal(t, "1 Main Street", addr["street"])

	assert.Equal(t, id, string(h.b.ws.Documents().State().Current.ID))

	res, err = h.docs.handleUpdateFields(ctx, call(map[string]any{"document_id": id}))
	assert.Contains(t, failed(t, res, err), "fields must be a non-empty object")

	res, err = h.docs.handleGetExtraction(ctx, call(map[string]any{"document_id": "999"}))
	assert.Contains(t, failed(t, res, err), "Document not found")
}

func TestGetExtraction_Pending(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	ctx := context.Background()

	p, err := h.b.ws.Upload(ctx, workspace.UploadForm{
		Filename:    "scan.png",
		ContentType: "image/png",
		Content:     strings.NewReader("\x89PNG\r\n\x1a\n"),
	})
	require.NoError(t, err)
	require.NoError(t, p.Wait(ctx))
	id := string(h.b.ws.Documents().State().Current.ID)

	res, err := h.docs.handleGetExtraction(ctx, call(map[string]any{"document_id": id}))
	out := decode(t, ok(t, res, err))
	assert.Nil(t, out["extraction"])
	assert.Equal(t, "pending", out["document"].(map[string]any)["status"])

	res, err = h.docs.handleUpdateFields(ctx, call(map[string]any{
		"document_id": id,
		"fields":      map[string]any{"total_amount": "1"},
	}))
	assert.Contains(t, failed(t, res, err), "no extracted data yet")
}

func TestExportAndDelete(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	id := h.uploadProcessed(t)
	ctx := context.Background()

	res, err := h.docs.handleExport(ctx, call(map[string]any{"document_id": id}))
	assert.Equal(t, "100.00", decode(t, ok(t, res, err))["total_amount"])

	res, err = h.docs.handleExport(ctx, call(map[string]any{"document_id": id, "format": "csv"}))
	assert.Contains(t, ok(t, res, err), "total_amount")

	res, err = h.docs.handleExport(ctx, call(map[string]any{"document_id": id, "format": "xml"}))
	assert.Contains(t, failed(t, res, err), "Invalid format")

	res, err = h.docs.handleDelete(ctx, call(map[string]any{"document_id": id}))
	assert.Contains(t, ok(t, res, err), "Deleted document "+id)
	assert.Equal(t, 1, h.api.Hits(fakeapi.RouteDelete))

	res, err = h.docs.handleList(ctx, call(nil))
	assert.EqualValues(t, 0, decode(t, ok(t, res, err))["count"])
}

func TestChatTools(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	id := h.uploadProcessed(t)
	ctx := context.Background()

	res, err := h.chat.handleAsk(ctx, call(map[string]any{"document_id": id, "question": "What is the total amount?"}))
	assert.Equal(t, "The total amount is 100.00.", ok(t, res, err))

	res, err = h.chat.handleAsk(ctx, call(map[string]any{"document_id": id, "question": "   "}))
	assert.Contains(t, failed(t, res, err), "Message cannot be empty")

	res, err = h.chat.handleAsk(ctx, call(map[string]any{"document_id": id}))
	assert.Contains(t, failed(t, res, err), "question")

	res, err = h.chat.handleHistory(ctx, call(map[string]any{"document_id": id}))
	out := decode(t, ok(t, res, err))
	assert.EqualValues(t, 2, out["count"])
	msgs := out["messages"].([]any)
	assert.Equal(t, "user", msgs[0].(map[string]any)["sender"])
	assert.Equal(t, "assistant", msgs[1].(map[string]any)["sender"])

	h.api.FailNext(fakeapi.RouteSend, http.StatusBadGateway, "")
	res, err = h.chat.handleAsk(ctx, call(map[string]any{"document_id": id, "question": "vendor?"}))
	assert.Contains(t, failed(t, res, err), "Failed to send message")

	res, err = h.chat.handleClear(ctx, call(map[string]any{"document_id": id}))
	assert.Contains(t, ok(t, res, err), "Cleared chat history")
	assert.Equal(t, 0, h.api.ChatLength(id))
}
