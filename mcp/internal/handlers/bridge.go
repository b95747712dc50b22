package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/satishkumarchitti/AI-Chat-Bot/store"
	"github.com/satishkumarchitti/AI-Chat-Bot/workspace"
)

// DefaultToolTimeout bounds one tool call, queueing included.
const DefaultToolTimeout = 60 * time.Second

// Bridge serialises tool calls over a single workspace. The workspace has
// one current document, so two calls about different documents must not
// interleave.
type Bridge struct {
	ws      *workspace.Workspace
	mu      sync.Mutex
	timeout time.Duration
}

func NewBridge(ws *workspace.Workspace) *Bridge {
	return &Bridge{ws: ws, timeout: DefaultToolTimeout}
}

func (b *Bridge) call(ctx context.Context, fn func(ctx context.Context) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return fn(ctx)
}

// settle waits for p and replaces a failure with the message the stores
// recorded for it.
func settle(ctx context.Context, p *workspace.Pending, err error, recorded func() string) error {
	if err != nil {
		return err
	}
	if err := p.Wait(ctx); err != nil {
		if msg := recorded(); msg != "" && ctx.Err() == nil {
			return errors.New(msg)
		}
		return err
	}
	return nil
}

var errNotLoggedIn = errors.New("not logged in; call the login tool first")

func (b *Bridge) requireLogin() error {
	if !b.ws.Session().State().IsAuthenticated() {
		return errNotLoggedIn
	}
	return nil
}

// open makes id the current document with extraction and history loaded.
func (b *Bridge) open(ctx context.Context, id string) error {
	if err := b.requireLogin(); err != nil {
		return err
	}
	err := b.ws.OpenDocument(ctx, store.DocumentID(id)).Wait(ctx)
	if err == nil || ctx.Err() != nil {
		return err
	}
	if msg := b.ws.Documents().State().Error; msg != "" {
		return errors.New(msg)
	}
	if msg := b.ws.Conversations().State().Error; msg != "" {
		return errors.New(msg)
	}
	return err
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

type documentView struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	FileType  string `json:"fileType"`
	Status    string `json:"status"`
	FileSize  int64  `json:"fileSize"`
	CreatedAt string `json:"createdAt"`
}

func viewDocument(d store.Document) documentView {
	return documentView{
		ID:        string(d.ID),
		Filename:  d.Filename,
		FileType:  string(d.FileType),
		Status:    string(d.Status),
		FileSize:  d.FileSize,
		CreatedAt: d.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type entryView struct {
	ID        int64  `json:"id"`
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

func viewEntries(entries []store.Entry) []entryView {
	out := make([]entryView, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryView{
			ID:        e.ID,
			Sender:    string(e.Sender),
			Text:      e.Text,
			Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
		})
	}
	return out
}
