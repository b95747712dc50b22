package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ------------------------------
// Scalars with lenient decoding
// ------------------------------

// ID is a resource identifier. The backend emits integers; the SDK carries
// them as strings so callers never depend on the numeric form.
type ID string

// UnmarshalJSON accepts a JSON number or string.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON writes numeric ids as numbers, anything else as a string.
func (id ID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(strconv.FormatInt(n, 10)), nil
	}
	return json.Marshal(string(id))
}

// Timestamp decodes RFC 3339 and zone-less ISO 8601 timestamps. Zone-less
// values are taken as UTC.
type Timestamp struct{ time.Time }

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if v, err := time.Parse(layout, s); err == nil {
			t.Time = v.UTC()
			return nil
		}
	}
	return fmt.Errorf("timestamp: unrecognised format %q", s)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// Sender identifies the author of a chat entry.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// UnmarshalJSON maps the backend's "ai" to SenderAssistant.
func (s *Sender) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch strings.ToLower(v) {
	case "user":
		*s = SenderUser
	case "ai", "assistant":
		*s = SenderAssistant
	default:
		return fmt.Errorf("sender: unknown value %q", v)
	}
	return nil
}

// ------------------------------
// Entities
// ------------------------------

// User is the authenticated account.
type User struct {
	ID        ID        `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	IsActive  bool      `json:"is_active"`
	CreatedAt Timestamp `json:"created_at"`
}

// Document is an uploaded file and its processing status.
type Document struct {
	ID        ID        `json:"id"`
	Filename  string    `json:"filename"`
	FileType  string    `json:"file_type"`
	FilePath  string    `json:"file_path"`
	FileSize  int64     `json:"file_size"`
	Status    string    `json:"status"`
	CreatedAt Timestamp `json:"created_at"`
}

// HistoryItem is one persisted chat message.
type HistoryItem struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp Timestamp `json:"timestamp"`
}

// ------------------------------
// Requests
// ------------------------------

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ChatRequest struct {
	DocumentID ID     `json:"document_id"`
	Message    string `json:"message"`
}

// ------------------------------
// Responses
// ------------------------------

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// ChatResponse carries the assistant's reply to one message.
type ChatResponse struct {
	Response  string `json:"response"`
	MessageID ID     `json:"message_id"`
}

// MessageResponse is the plain confirmation returned by mutations.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the error envelope. Detail is either a string or a list
// of validation problems carrying a "msg" field.
type ErrorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

// Message returns a human-readable rendering of Detail, or "" when absent.
func (e ErrorResponse) Message() string {
	if len(e.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(e.Detail, &s); err == nil {
		return s
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(e.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}

// ParseErrorDetail extracts the human-readable detail from an error body.
func ParseErrorDetail(body []byte) string {
	var e ErrorResponse
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	return e.Message()
}
