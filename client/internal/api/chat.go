package api

import (
	"context"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/satishkumarchitti/AI-Chat-Bot/client/internal/types"
)

// SendMessage asks the assistant about a document.
func SendMessage(ctx context.Context, rc *resty.Client, documentID, message string) (*types.ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	const op = "send message"
	resp, err := rc.R().
		SetContext(ctx).
		SetHeader(headerIdempotencyKey, uuid.NewString()).
		SetBody(types.ChatRequest{DocumentID: types.ID(documentID), Message: message}).
		Post("/chat/message")
	if err := check(ctx, op, resp, err); err != nil {
		return nil, err
	}
	var out types.ChatResponse
	if err := decode(op, resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChatHistory returns the stored conversation of a document, oldest first.
func ChatHistory(ctx context.Context, rc *resty.Client, r Retry, documentID string) ([]types.HistoryItem, error) {
	var items []types.HistoryItem
	if err := getJSON(ctx, rc, r, "chat history", "/chat/history/{id}", map[string]string{"id": documentID}, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []types.HistoryItem{}
	}
	return items, nil
}

// ClearChatHistory deletes the stored conversation of a document.
func ClearChatHistory(ctx context.Context, rc *resty.Client, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	resp, err := rc.R().SetContext(ctx).SetPathParam("id", documentID).Delete("/chat/history/{id}")
	return check(ctx, "clear chat history", resp, err)
}
