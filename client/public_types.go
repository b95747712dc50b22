package client

import "github.com/satishkumarchitti/AI-Chat-Bot/client/internal/types"

// Public type aliases so SDK consumers can import only the client package.
type (
	// Requests
	LoginRequest    = types.LoginRequest
	RegisterRequest = types.RegisterRequest

	// Domain entities
	ID          = types.ID
	User        = types.User
	Document    = types.Document
	HistoryItem = types.HistoryItem
	Sender      = types.Sender
	Timestamp   = types.Timestamp

	// Responses
	AuthResponse = types.AuthResponse
	ChatResponse = types.ChatResponse
)

const (
	SenderUser      = types.SenderUser
	SenderAssistant = types.SenderAssistant
)
