package main

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/satishkumarchitti/AI-Chat-Bot/internal/fakeapi"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func setupCLI(t *testing.T) *fakeapi.Server {
	t.Helper()
	color.NoColor = true

	api := fakeapi.New(fakeapi.WithBcryptCost(bcrypt.MinCost))
	_, err := api.SeedUser("Ada", "ada@example.com", "secret1")
	require.NoError(t, err)
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	t.Cleanup(api.Close)

	t.Setenv("DOCUPILOT_API_URL", srv.URL+"/api")
	t.Setenv("DOCUPILOT_DATA_DIR", t.TempDir())
	t.Setenv("DOCUPILOT_PERSIST_DRIVER", "sqlite")
	t.Setenv("DOCUPILOT_RETRY_MAX_ELAPSED", "0s")
	return api
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func mustExecute(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execute(t, args...)
	require.NoError(t, err, "docupilot %v", args)
	return out
}

func TestCLI_DocumentWorkflow(t *testing.T) {
	api := setupCLI(t)

	assert.Contains(t, mustExecute(t, "whoami"), "Not logged in")
	assert.Contains(t, mustExecute(t, "login", "--email", "ada@example.com", "--password", "secret1"), "Logged in as Ada <ada@example.com>")
	assert.Contains(t, mustExecute(t, "whoami"), "ada@example.com")

	file := filepath.Join(t.TempDir(), "receipt.png")
	require.NoError(t, os.WriteFile(file, pngHeader, 0o600))
	out := mustExecute(t, "docs", "upload", file)
	m := regexp.MustCompile(`document (\d+)`).FindStringSubmatch(out)
	require.Len(t, m, 2, out)
	id := m[1]
	assert.Contains(t, out, "pending")

	out = mustExecute(t, "docs", "show", id)
	assert.Contains(t, out, "receipt.png")
	assert.Contains(t, out, "not available yet")

	require.NoError(t, api.ProcessString(id))

	out = mustExecute(t, "docs", "list", "--search", "RECEIPT")
	assert.Contains(t, out, "receipt.png")
	assert.Contains(t, out, "processed")
	assert.Contains(t, mustExecute(t, "docs", "list", "--search", "invoice"), "No documents")

	out = mustExecute(t, "docs", "show", id)
	assert.Contains(t, out, "total_amount")
	assert.Contains(t, out, "vendor_address.city")
	assert.Contains(t, out, "line_items[0].description")

	assert.Contains(t, mustExecute(t, "docs", "set", id, "total_amount=120.00"), "Saved 1 field(s)")
	n, err := strconv.ParseInt(id, 10, 64)
	require.NoError(t, err)
	data, ok := api.Extraction(n)
	require.True(t, ok)
	assert.Equal(t, "120.00", data["total_amount"])

	out = mustExecute(t, "chat", "ask", id, "What", "is", "the", "total?")
	assert.Contains(t, out, "You: What is the total?")
	assert.Contains(t, out, "Assistant: ")

	assert.Contains(t, mustExecute(t, "chat", "history", id), "You: What is the total?")
	assert.Equal(t, 2, api.ChatLength(id))

	csvPath := filepath.Join(t.TempDir(), "out.csv")
	assert.Contains(t, mustExecute(t, "docs", "export", id, "--format", "csv", "--output", csvPath), "Exported to")
	raw, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "total_amount")

	assert.Contains(t, mustExecute(t, "chat", "clear", id), "Cleared chat history")
	assert.Equal(t, 0, api.ChatLength(id))

	assert.Contains(t, mustExecute(t, "docs", "delete", id), "Deleted document "+id)
	assert.Contains(t, mustExecute(t, "docs", "list"), "No documents")

	assert.Contains(t, mustExecute(t, "logout"), "Logged out")
	assert.Contains(t, mustExecute(t, "whoami"), "Not logged in")
}

func TestCLI_LoginRejected(t *testing.T) {
	setupCLI(t)

	_, err := execute(t, "login", "--email", "ada@example.com", "--password", "wrong-password")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Incorrect email or password")
	assert.Contains(t, mustExecute(t, "whoami"), "Not logged in")
}

func TestCLI_RegisterValidation(t *testing.T) {
	setupCLI(t)

	_, err := execute(t, "register", "--name", "Grace", "--email", "grace@example.com",
		"--password", "secret1", "--confirm-password", "secret2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Passwords do not match")

	out := mustExecute(t, "register", "--name", "Grace", "--email", "grace@example.com", "--password", "secret1")
	assert.Contains(t, out, "Welcome, Grace!")
	assert.Contains(t, mustExecute(t, "whoami"), "grace@example.com")
}

func TestCLI_RequiresLogin(t *testing.T) {
	setupCLI(t)

	_, err := execute(t, "docs", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")

	_, err = execute(t, "chat", "ask", "1", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")
}

func TestCLI_ThemePersists(t *testing.T) {
	setupCLI(t)

	assert.Contains(t, mustExecute(t, "theme"), "Theme: light")
	assert.Contains(t, mustExecute(t, "theme", "dark"), "Theme: dark")
	assert.Contains(t, mustExecute(t, "theme"), "Theme: dark")
	assert.Contains(t, mustExecute(t, "theme", "toggle"), "Theme: light")

	_, err := execute(t, "theme", "sepia")
	require.Error(t, err)
}

func TestCLI_Reset(t *testing.T) {
	setupCLI(t)

	mustExecute(t, "login", "--email", "ada@example.com", "--password", "secret1")
	mustExecute(t, "theme", "dark")

	_, err := execute(t, "reset")
	require.Error(t, err)

	assert.Contains(t, mustExecute(t, "reset", "--yes"), "Local state erased")
	assert.Contains(t, mustExecute(t, "whoami"), "Not logged in")
	assert.Contains(t, mustExecute(t, "theme"), "Theme: light")
}

func TestCLI_InvalidConfig(t *testing.T) {
	setupCLI(t)

	_, err := execute(t, "--persist", "etcd", "whoami")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported PERSIST_DRIVER")
}

func TestHumanSize(t *testing.T) {
	assert.Equal(t, "512 B", humanSize(512))
	assert.Equal(t, "1.5 KB", humanSize(1536))
	assert.Equal(t, "2.0 MB", humanSize(2<<20))
}
