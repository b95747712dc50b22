package fakeapi

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

type chatBody struct {
	DocumentID int64  `json:"document_id" validate:"required"`
	Message    string `json:"message" validate:"required"`
}

type historyView struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var body chatBody
	if !s.decodeBody(w, r, &body) {
		return
	}
	uid := currentUser(r).ID

	s.mu.Lock()
	d := s.docs[body.DocumentID]
	if d == nil || d.UserID != uid {
		s.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "Document not found")
		return
	}
	data, ok := s.extractions[d.ID]
	if !ok {
		s.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "No extracted data available for this document")
		return
	}
	reply := answer(body.Message, data)
	now := s.now().UTC()
	q := message{ID: s.allocID(), Sender: "user", Text: body.Message, CreatedAt: now}
	a := message{ID: s.allocID(), Sender: "ai", Text: reply, CreatedAt: now}
	s.chats[d.ID] = append(s.chats[d.ID], q, a)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"response": reply, "message_id": a.ID})
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	d, err := s.ownedDocument(r)
	out := make([]historyView, 0)
	if err == nil {
		for _, m := range s.chats[d.ID] {
			out = append(out, historyView{ID: m.ID, Text: m.Text, Sender: m.Sender, Timestamp: m.CreatedAt})
		}
	}
	s.mu.Unlock()
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Document not found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) clearHistory(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	d, err := s.ownedDocument(r)
	if err == nil {
		delete(s.chats, d.ID)
	}
	s.mu.Unlock()
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Document not found")
		return
	}
	writeMessage(w, "Chat history cleared successfully")
}

// ChatLength returns the number of stored messages for a document id given
// in decimal.
func (s *Server) ChatLength(id string) int {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chats[n])
}

// answer is a keyword assistant: it quotes every field whose name appears in
// the question and falls back to listing what it knows.
func answer(question string, data map[string]any) string {
	q := strings.ToLower(question)
	fields := flatten(data)

	var hits []string
	for _, f := range fields {
		words := strings.NewReplacer("_", " ", ".", " ").Replace(f.path)
		leaf := words
		if _, child, nested := strings.Cut(f.path, "."); nested {
			leaf = strings.ReplaceAll(child, "_", " ")
		}
		if strings.Contains(q, words) || strings.Contains(q, leaf) {
			hits = append(hits, fmt.Sprintf("The %s is %v.", words, f.value))
		}
	}
	if len(hits) > 0 {
		return strings.Join(hits, " ")
	}
	if strings.Contains(q, "summar") || strings.Contains(q, "overview") {
		parts := make([]string, 0, len(fields))
		for _, f := range fields {
			parts = append(parts, fmt.Sprintf("%s: %v", f.path, f.value))
		}
		return "Here is what I extracted. " + strings.Join(parts, "; ") + "."
	}
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.path)
	}
	return "I could not find that in this document. I can answer questions about: " + strings.Join(names, ", ") + "."
}

type flatField struct {
	path  string
	value any
}

func flatten(data map[string]any) []flatField {
	var out []flatField
	for k, v := range data {
		if m, ok := v.(map[string]any); ok {
			for ik, iv := range m {
				out = append(out, flatField{path: k + "." + ik, value: iv})
			}
			continue
		}
		out = append(out, flatField{path: k, value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out
}
