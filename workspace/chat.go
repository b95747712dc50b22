package workspace

import (
	"context"
	"strings"

	"github.com/satishkumarchitti/AI-Chat-Bot/client"
	"github.com/satishkumarchitti/AI-Chat-Bot/store"
)

const (
	msgHistoryFailed = "Failed to load chat history"
	msgSendFailed    = "Failed to send message"
	msgClearFailed   = "Failed to clear chat history"
)

// LoadHistory overwrites id's conversation log with the backend history and
// activates it unless another log was activated meanwhile. A document
// without history reads as an empty log.
func (w *Workspace) LoadHistory(ctx context.Context, id store.DocumentID) *Pending {
	t := w.conversations.BeginLoadHistory(id)
	return w.run(ctx, chatKey(id), func(ctx context.Context) error {
		items, err := w.backend.ChatHistory(ctx, string(id))
		if err != nil && !client.IsNotFound(err) {
			return w.fail("load_history", err, msgHistoryFailed, func(msg string) bool {
				return w.conversations.FailLoadHistory(t, msg)
			})
		}
		return superseded(w.conversations.CompleteLoadHistory(t, id, toEntries(items)))
	}, func(error) { w.conversations.FailLoadHistory(t, msgHistoryFailed) })
}

// Send appends text to the active conversation at once and asks the
// assistant. The reply is filed under the document that was active when
// Send was called. On failure the optimistic entry is withdrawn.
func (w *Workspace) Send(ctx context.Context, text string) (*Pending, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, invalid("Message", "Message cannot be empty")
	}
	t, id, undo, err := w.conversations.BeginSend(text)
	if err != nil {
		return nil, err
	}
	return w.run(ctx, chatKey(id), func(ctx context.Context) error {
		resp, err := w.backend.SendMessage(ctx, string(id), text)
		if err != nil {
			return w.fail("send", err, msgSendFailed, func(msg string) bool {
				return w.conversations.FailSend(t, undo, msg)
			})
		}
		return superseded(w.conversations.CompleteSend(t, id, resp.Response))
	}, func(error) { w.conversations.FailSend(t, undo, msgSendFailed) }), nil
}

// ClearHistory deletes id's history on the backend, then its local log.
func (w *Workspace) ClearHistory(ctx context.Context, id store.DocumentID) *Pending {
	t := w.conversations.BeginClear(id)
	return w.run(ctx, chatKey(id), func(ctx context.Context) error {
		if err := w.backend.ClearChatHistory(ctx, string(id)); err != nil {
			return w.fail("clear_history", err, msgClearFailed, func(msg string) bool {
				return w.conversations.FailClear(t, msg)
			})
		}
		return superseded(w.conversations.CompleteClear(t, id))
	}, func(error) { w.conversations.FailClear(t, msgClearFailed) })
}
