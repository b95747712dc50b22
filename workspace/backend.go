package workspace

import (
	"context"
	"io"
	"strings"

	"github.com/satishkumarchitti/AI-Chat-Bot/client"
	"github.com/satishkumarchitti/AI-Chat-Bot/store"
)

// AuthService is the auth collaborator.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*client.AuthResponse, error)
	Register(ctx context.Context, name, email, password string) (*client.AuthResponse, error)
	Logout(ctx context.Context, token string) error
}

// DocumentService is the document collaborator.
type DocumentService interface {
	ListDocuments(ctx context.Context) ([]client.Document, error)
	GetDocument(ctx context.Context, id string) (*client.Document, error)
	Upload(ctx context.Context, filename, contentType string, content io.Reader) (*client.Document, error)
	ExtractedData(ctx context.Context, id string) (map[string]any, error)
	UpdateExtractedData(ctx context.Context, id string, changes map[string]any) error
	DeleteDocument(ctx context.Context, id string) error
	Export(ctx context.Context, id, format string, w io.Writer) (int64, error)
}

// ChatService is the chat collaborator.
type ChatService interface {
	SendMessage(ctx context.Context, documentID, message string) (*client.ChatResponse, error)
	ChatHistory(ctx context.Context, documentID string) ([]client.HistoryItem, error)
	ClearChatHistory(ctx context.Context, documentID string) error
}

// Backend bundles the three collaborators. *client.Client implements it.
type Backend interface {
	AuthService
	DocumentService
	ChatService
}

var _ Backend = (*client.Client)(nil)

func toUser(u client.User) store.User {
	return store.User{ID: string(u.ID), Name: u.Name, Email: u.Email}
}

func toDocument(d client.Document) store.Document {
	return store.Document{
		ID:        store.DocumentID(d.ID),
		Filename:  d.Filename,
		FileType:  store.FileType(strings.ToLower(d.FileType)),
		Status:    store.DocumentStatus(strings.ToLower(d.Status)),
		CreatedAt: d.CreatedAt.Time,
		FilePath:  d.FilePath,
		FileSize:  d.FileSize,
	}
}

func toDocuments(list []client.Document) []store.Document {
	out := make([]store.Document, 0, len(list))
	for _, d := range list {
		out = append(out, toDocument(d))
	}
	return out
}

func toEntries(items []client.HistoryItem) []store.Entry {
	out := make([]store.Entry, 0, len(items))
	for _, it := range items {
		sender := store.SenderAssistant
		if it.Sender == client.SenderUser {
			sender = store.SenderUser
		}
		out = append(out, store.Entry{ID: it.ID, Text: it.Text, Sender: sender, Timestamp: it.Timestamp.Time})
	}
	return out
}
