package fakeapi

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type harness struct {
	t     *testing.T
	s     *Server
	srv   *httptest.Server
	token string
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	s := New(append([]Option{WithBcryptCost(bcrypt.MinCost)}, opts...)...)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	t.Cleanup(s.Close)
	return &harness{t: t, s: s, srv: srv}
}

func (h *harness) do(method, path string, body io.Reader, header http.Header) (*http.Response, []byte) {
	h.t.Helper()
	req, err := http.NewRequest(method, h.srv.URL+"/api"+path, body)
	require.NoError(h.t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	if h.token != "" && req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := h.srv.Client().Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)
	return resp, b
}

func (h *harness) json(method, path string, v any) (int, map[string]any) {
	h.t.Helper()
	var body io.Reader
	if v != nil {
		b, err := json.Marshal(v)
		require.NoError(h.t, err)
		body = bytes.NewReader(b)
	}
	resp, raw := h.do(method, path, body, nil)
	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out
}

func (h *harness) login(email, password string) {
	h.t.Helper()
	status, out := h.json(http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password})
	require.Equal(h.t, http.StatusOK, status, out)
	h.token = out["token"].(string)
}

func (h *harness) upload(filename, ctype, content string) map[string]any {
	h.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	hdr.Set("Content-Type", ctype)
	part, err := mw.CreatePart(hdr)
	require.NoError(h.t, err)
	_, _ = io.WriteString(part, content)
	require.NoError(h.t, mw.Close())

	resp, raw := h.do(http.MethodPost, "/documents/upload", &buf, http.Header{"Content-Type": {mw.FormDataContentType()}})
	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	out["_status"] = resp.StatusCode
	return out
}

func TestRegisterLoginProfile(t *testing.T) {
	h := newHarness(t)

	status, out := h.json(http.MethodPost, "/auth/register", map[string]string{"name": "Ann", "email": "ann@x.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, out["token"])
	assert.Equal(t, "ann@x.com", out["user"].(map[string]any)["email"])

	status, out = h.json(http.MethodPost, "/auth/register", map[string]string{"name": "Ann", "email": "ann@x.com", "password": "secret1"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Email already registered", out["detail"])

	status, out = h.json(http.MethodPost, "/auth/login", map[string]string{"email": "ann@x.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Incorrect email or password", out["detail"])

	h.login("ann@x.com", "secret1")
	status, out = h.json(http.MethodGet, "/auth/profile", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Ann", out["name"])
}

func TestRegisterValidation(t *testing.T) {
	h := newHarness(t)
	status, out := h.json(http.MethodPost, "/auth/register", map[string]string{"name": "A", "email": "nope", "password": "123"})
	require.Equal(t, http.StatusUnprocessableEntity, status)
	detail := out["detail"].([]any)
	require.Len(t, detail, 2)
	msgs := []string{detail[0].(map[string]any)["msg"].(string), detail[1].(map[string]any)["msg"].(string)}
	assert.ElementsMatch(t, []string{"value is not a valid email address", "String should have at least 6 characters"}, msgs)
}

func TestAuthRequired(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	h := newHarness(t, WithClock(func() time.Time { return now }))
	_, err := h.s.SeedUser("A", "a@x.com", "secret1")
	require.NoError(t, err)

	status, out := h.json(http.MethodGet, "/documents", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Could not validate credentials", out["detail"])

	expired, err := h.s.IssueToken("a@x.com", -time.Minute)
	require.NoError(t, err)
	h.token = expired
	status, _ = h.json(http.MethodGet, "/documents", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	other := New(WithSecret([]byte("other")))
	forged, err := other.IssueToken("a@x.com", time.Hour)
	require.NoError(t, err)
	h.token = forged
	status, _ = h.json(http.MethodGet, "/documents", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestDocumentLifecycle(t *testing.T) {
	h := newHarness(t)
	_, err := h.s.SeedUser("A", "a@x.com", "secret1")
	require.NoError(t, err)
	h.login("a@x.com", "secret1")

	bad := h.upload("notes.txt", "text/plain", "hello")
	assert.Equal(t, http.StatusBadRequest, bad["_status"])
	assert.Equal(t, "Invalid file type. Only JPEG, PNG, and PDF are allowed.", bad["detail"])

	doc := h.upload("acme_power.pdf", "application/pdf", "%PDF-1.4")
	require.Equal(t, http.StatusOK, doc["_status"])
	assert.Equal(t, "pending", doc["status"])
	assert.Equal(t, "pdf", doc["file_type"])
	id := int64(doc["id"].(float64))
	path := "/documents/" + jsonNumber(id)

	status, out := h.json(http.MethodGet, path+"/extracted-data", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Extracted data not available yet", out["detail"])

	require.NoError(t, h.s.Process(id))
	status, out = h.json(http.MethodGet, path+"/extracted-data", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "acme power", out["vendor_name"])

	status, _ = h.json(http.MethodPut, path+"/extracted-data", map[string]any{"total_amount": "42.00"})
	require.Equal(t, http.StatusOK, status)
	data, ok := h.s.Extraction(id)
	require.True(t, ok)
	assert.Equal(t, "42.00", data["total_amount"])
	assert.Equal(t, "USD", data["currency"], "update merges, never replaces")

	resp, body := h.do(http.MethodGet, path+"/export/csv", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(string(body), "Field,Value\n"))
	assert.Contains(t, string(body), "total_amount,42.00")

	resp, body = h.do(http.MethodGet, path+"/export/json", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "\n  \"currency\": \"USD\"")

	status, out = h.json(http.MethodGet, path+"/export/xml", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid format. Use 'json' or 'csv'", out["detail"])

	status, _ = h.json(http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = h.json(http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestUploadIdempotencyKey(t *testing.T) {
	h := newHarness(t)
	_, err := h.s.SeedUser("A", "a@x.com", "secret1")
	require.NoError(t, err)
	h.login("a@x.com", "secret1")

	send := func() float64 {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", `form-data; name="file"; filename="a.png"`)
		hdr.Set("Content-Type", "image/png")
		part, _ := mw.CreatePart(hdr)
		_, _ = io.WriteString(part, "png")
		_ = mw.Close()
		_, raw := h.do(http.MethodPost, "/documents/upload", &buf, http.Header{
			"Content-Type":    {mw.FormDataContentType()},
			"Idempotency-Key": {"k1"},
		})
		var out map[string]any
		require.NoError(t, json.Unmarshal(raw, &out))
		return out["id"].(float64)
	}
	assert.Equal(t, send(), send())

	_, raw := h.do(http.MethodGet, "/documents", nil, nil)
	var list []any
	require.NoError(t, json.Unmarshal(raw, &list))
	assert.Len(t, list, 1)
}

func TestDocumentsAreScopedToOwner(t *testing.T) {
	h := newHarness(t)
	_, _ = h.s.SeedUser("A", "a@x.com", "secret1")
	_, _ = h.s.SeedUser("B", "b@x.com", "secret1")
	h.login("a@x.com", "secret1")
	doc := h.upload("a.pdf", "application/pdf", "x")
	id := int64(doc["id"].(float64))

	h.login("b@x.com", "secret1")
	status, _ := h.json(http.MethodGet, "/documents/"+jsonNumber(id), nil)
	assert.Equal(t, http.StatusNotFound, status)
	_, raw := h.do(http.MethodGet, "/documents", nil, nil)
	assert.JSONEq(t, `[]`, string(raw))
}

func TestChat(t *testing.T) {
	h := newHarness(t)
	_, _ = h.s.SeedUser("A", "a@x.com", "secret1")
	h.login("a@x.com", "secret1")
	doc := h.upload("bill.pdf", "application/pdf", "x")
	id := int64(doc["id"].(float64))

	status, out := h.json(http.MethodPost, "/chat/message", map[string]any{"document_id": id, "message": "What is the total amount?"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "No extracted data available for this document", out["detail"])

	require.NoError(t, h.s.Process(id))
	status, out = h.json(http.MethodPost, "/chat/message", map[string]any{"document_id": id, "message": "What is the total amount?"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "The total amount is 100.00.", out["response"])
	assert.NotZero(t, out["message_id"])

	_, raw := h.do(http.MethodGet, "/chat/history/"+jsonNumber(id), nil, nil)
	var items []map[string]any
	require.NoError(t, json.Unmarshal(raw, &items))
	require.Len(t, items, 2)
	assert.Equal(t, "user", items[0]["sender"])
	assert.Equal(t, "ai", items[1]["sender"])

	status, _ = h.json(http.MethodDelete, "/chat/history/"+jsonNumber(id), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Zero(t, h.s.ChatLength(jsonNumber(id)))
}

func TestFailNextAndHold(t *testing.T) {
	h := newHarness(t)
	_, _ = h.s.SeedUser("A", "a@x.com", "secret1")
	h.login("a@x.com", "secret1")

	h.s.FailNext(RouteListDocuments, http.StatusInternalServerError, "boom")
	status, out := h.json(http.MethodGet, "/documents", nil)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "boom", out["detail"])
	status, _ = h.json(http.MethodGet, "/documents", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, h.s.Hits(RouteListDocuments))

	release := h.s.Hold(RouteProfile)
	done := make(chan int)
	go func() {
		status, _ := h.json(http.MethodGet, "/auth/profile", nil)
		done <- status
	}()
	select {
	case <-done:
		t.Fatal("held request completed before release")
	case <-time.After(50 * time.Millisecond):
	}
	release()
	release()
	assert.Equal(t, http.StatusOK, <-done)
}

func TestProcessingDelay(t *testing.T) {
	h := newHarness(t, WithProcessing(10*time.Millisecond))
	_, _ = h.s.SeedUser("A", "a@x.com", "secret1")
	h.login("a@x.com", "secret1")
	doc := h.upload("a.png", "image/png", "x")
	id := int64(doc["id"].(float64))

	assert.Eventually(t, func() bool {
		_, ok := h.s.Extraction(id)
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestAnswer(t *testing.T) {
	data := map[string]any{
		"total_amount":   "12.50",
		"vendor_address": map[string]any{"city": "Springfield"},
	}
	assert.Equal(t, "The total amount is 12.50.", answer("total amount?", data))
	assert.Equal(t, "The vendor address city is Springfield.", answer("Which city?", data))
	assert.Contains(t, answer("Summarize please", data), "total_amount: 12.50")
	assert.Contains(t, answer("weather?", data), "I could not find that")
}

func TestEncodeExportEmpty(t *testing.T) {
	body, ctype, err := encodeExport("csv", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "text/csv", ctype)
	assert.Empty(t, body)
}

func jsonNumber(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
