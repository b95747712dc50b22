package fakeapi

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
)

var allowedUploadTypes = map[string]string{
	"image/jpeg":      "image",
	"image/jpg":       "image",
	"image/png":       "image",
	"application/pdf": "pdf",
}

var errNoDocument = errors.New("document not found")

type documentView struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	Filename  string     `json:"filename"`
	FileType  string     `json:"file_type"`
	FilePath  string     `json:"file_path"`
	FileSize  int64      `json:"file_size"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

func (d *document) view() documentView {
	return documentView{
		ID: d.ID, UserID: d.UserID, Filename: d.Filename, FileType: d.FileType,
		FilePath: d.FilePath, FileSize: d.FileSize, Status: d.Status,
		CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}
}

// ownedDocument must be called with mu held.
func (s *Server) ownedDocument(r *http.Request) (*document, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return nil, errNoDocument
	}
	d := s.docs[id]
	if d == nil || d.UserID != currentUser(r).ID {
		return nil, errNoDocument
	}
	return d, nil
}

func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	uid := currentUser(r).ID
	s.mu.Lock()
	out := make([]documentView, 0)
	for _, d := range s.docs {
		if d.UserID == uid {
			out = append(out, d.view())
		}
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	d, err := s.ownedDocument(r)
	var v documentView
	if err == nil {
		v = d.view()
	}
	s.mu.Unlock()
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Document not found")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize+1<<20)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeDetail(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		writeProblems(w, []problem{{Loc: []string{"body", "file"}, Msg: "Field required", Type: "missing"}})
		return
	}
	defer func() { _ = file.Close() }()

	fileType, ok := allowedUploadTypes[hdr.Header.Get("Content-Type")]
	if !ok {
		writeDetail(w, http.StatusBadRequest, "Invalid file type. Only JPEG, PNG, and PDF are allowed.")
		return
	}
	size, err := io.Copy(io.Discard, file)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to save file: "+err.Error())
		return
	}
	if size > MaxUploadSize {
		writeDetail(w, http.StatusRequestEntityTooLarge, "File too large")
		return
	}

	u := currentUser(r)
	key := r.Header.Get("Idempotency-Key")

	s.mu.Lock()
	if key != "" {
		if id, seen := s.idempotent[idemKey(u.ID, key)]; seen && s.docs[id] != nil {
			v := s.docs[id].view()
			s.mu.Unlock()
			writeJSON(w, http.StatusOK, v)
			return
		}
	}
	id := s.allocID()
	d := &document{
		ID:        id,
		UserID:    u.ID,
		Filename:  hdr.Filename,
		FileType:  fileType,
		FilePath:  fmt.Sprintf("/uploads/%d_%d_%s", u.ID, id, hdr.Filename),
		FileSize:  size,
		Status:    "pending",
		CreatedAt: s.now().UTC(),
	}
	s.docs[id] = d
	if key != "" {
		s.idempotent[idemKey(u.ID, key)] = id
	}
	if s.processDelay > 0 {
		s.timers = append(s.timers, time.AfterFunc(s.processDelay, func() { _ = s.Process(id) }))
	}
	v := d.view()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, v)
}

func idemKey(uid int64, key string) string { return strconv.FormatInt(uid, 10) + ":" + key }

// Process runs the canned extraction for a document and marks it processed.
func (s *Server) Process(id int64) error {
	s.mu.Lock()
	d := s.docs[id]
	if d == nil {
		s.mu.Unlock()
		return errNoDocument
	}
	filename, created := d.Filename, d.CreatedAt
	d.Status = "processing"
	s.mu.Unlock()

	data := s.extract(id, filename, created)
	return s.SetExtraction(id, data)
}

// ProcessString is Process for a decimal document id.
func (s *Server) ProcessString(id string) error {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return errNoDocument
	}
	return s.Process(n)
}

// SetExtraction stores data as the extraction result of id and marks the
// document processed.
func (s *Server) SetExtraction(id int64, data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.docs[id]
	if d == nil {
		return errNoDocument
	}
	s.extractions[id] = cloneData(data)
	d.Status = "processed"
	now := s.now().UTC()
	d.UpdatedAt = &now
	return nil
}

// MarkFailed flags a document whose extraction failed.
func (s *Server) MarkFailed(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.docs[id]
	if d == nil {
		return errNoDocument
	}
	d.Status = "failed"
	return nil
}

// Extraction returns a copy of the stored extraction result of id.
func (s *Server) Extraction(id int64) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.extractions[id]
	return cloneData(data), ok
}

func (s *Server) getExtracted(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	d, err := s.ownedDocument(r)
	var data map[string]any
	var ok bool
	if err == nil {
		data, ok = s.extractions[d.ID]
		data = cloneData(data)
	}
	s.mu.Unlock()
	switch {
	case err != nil:
		writeDetail(w, http.StatusNotFound, "Document not found")
	case !ok:
		writeDetail(w, http.StatusNotFound, "Extracted data not available yet")
	default:
		writeJSON(w, http.StatusOK, data)
	}
}

// updateExtracted merges the body into the stored result at the top level.
func (s *Server) updateExtracted(w http.ResponseWriter, r *http.Request) {
	var changes map[string]any
	if err := json.NewDecoder(r.Body).Decode(&changes); err != nil {
		writeProblems(w, []problem{{Loc: []string{"body"}, Msg: "Invalid JSON", Type: "json_invalid"}})
		return
	}
	s.mu.Lock()
	d, err := s.ownedDocument(r)
	if err != nil {
		s.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "Document not found")
		return
	}
	data, ok := s.extractions[d.ID]
	if !ok {
		s.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "Extracted data not found")
		return
	}
	for k, v := range changes {
		data[k] = v
	}
	s.mu.Unlock()
	writeMessage(w, "Data updated successfully")
}

func (s *Server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	d, err := s.ownedDocument(r)
	if err == nil {
		delete(s.docs, d.ID)
		delete(s.extractions, d.ID)
		delete(s.chats, d.ID)
	}
	s.mu.Unlock()
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Document not found")
		return
	}
	writeMessage(w, "Document deleted successfully")
}

func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	format := mux.Vars(r)["format"]
	if format != "json" && format != "csv" {
		writeDetail(w, http.StatusBadRequest, "Invalid format. Use 'json' or 'csv'")
		return
	}
	s.mu.Lock()
	d, err := s.ownedDocument(r)
	var data map[string]any
	var ok bool
	if err == nil {
		data, ok = s.extractions[d.ID]
		data = cloneData(data)
	}
	s.mu.Unlock()
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Document not found")
		return
	}
	if !ok {
		writeDetail(w, http.StatusNotFound, "No data to export")
		return
	}

	body, ctype, err := encodeExport(format, data)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=extracted_data_%d.%s", d.ID, format))
	_, _ = w.Write(body)
}

// encodeExport renders data as indented JSON, or as Field,Value rows with
// one row per top-level key.
func encodeExport(format string, data map[string]any) ([]byte, string, error) {
	if format == "json" {
		b, err := json.MarshalIndent(data, "", "  ")
		return b, "application/json", err
	}
	var buf bytes.Buffer
	if len(data) == 0 {
		return nil, "text/csv", nil
	}
	cw := csv.NewWriter(&buf)
	_ = cw.Write([]string{"Field", "Value"})
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_ = cw.Write([]string{k, cellValue(data[k])})
	}
	cw.Flush()
	return buf.Bytes(), "text/csv", cw.Error()
}

func cellValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case map[string]any, []any:
		b, _ := json.Marshal(t)
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}

// cloneData deep-copies an extraction result, lists of line items included.
func cloneData(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneAny(v)
	}
	return out
}

func cloneAny(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneData(t)
	case []any:
		l := make([]any, len(t))
		for i, iv := range t {
			l[i] = cloneAny(iv)
		}
		return l
	}
	return v
}

// sampleExtraction is the canned result of the default extractor.
func sampleExtraction(id int64, filename string, created time.Time) map[string]any {
	stem := filename
	if i := strings.LastIndexByte(stem, '.'); i > 0 {
		stem = stem[:i]
	}
	vendor := strings.TrimSpace(strings.NewReplacer("_", " ", "-", " ").Replace(stem))
	if vendor == "" {
		vendor = "Unknown Vendor"
	}
	return map[string]any{
		"vendor_name":     vendor,
		"document_type":   "invoice",
		"document_number": fmt.Sprintf("INV-%05d", id),
		"date":            created.Format("2006-01-02"),
		"total_amount":    "100.00",
		"tax_amount":      "8.00",
		"subtotal":        "92.00",
		"currency":        "USD",
		"vendor_address": map[string]any{
			"street": "1 Main Street",
			"city":   "Springfield",
		},
		"line_items": []any{
			map[string]any{"description": "Professional services", "amount": "92.00"},
		},
	}
}
