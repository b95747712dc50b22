package store

import (
	"slices"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// DocumentID is the backend-assigned identity of a document.
type DocumentID string

type FileType string

const (
	FileTypeImage FileType = "image"
	FileTypePDF   FileType = "pdf"
)

type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusProcessed  DocumentStatus = "processed"
	StatusFailed     DocumentStatus = "failed"
)

type Document struct {
	ID        DocumentID
	Filename  string
	FileType  FileType
	Status    DocumentStatus
	CreatedAt time.Time
	FilePath  string
	FileSize  int64
}

// DocumentState is the value held by a DocumentStore.
//
// Extraction is owned by Current: whenever Current changes identity or is
// cleared, Extraction is cleared in the same transition.
type DocumentState struct {
	Documents  []Document
	Current    *Document
	Extraction ExtractionResult
	Filters    FilterCriteria

	Loading           bool
	Uploading         bool
	Deleting          bool
	Opening           bool
	LoadingExtraction bool
	Saving            bool
	Exporting         bool
	Error             string
}

// NewDocumentState returns the defaults: an empty collection, nothing
// selected, newest first.
func NewDocumentState() DocumentState {
	return DocumentState{Documents: []Document{}, Filters: DefaultFilters()}
}

func (s DocumentState) clone() DocumentState {
	s.Documents = slices.Clone(s.Documents)
	if s.Documents == nil {
		s.Documents = []Document{}
	}
	if s.Current != nil {
		d := *s.Current
		s.Current = &d
	}
	s.Extraction = s.Extraction.Clone()
	return s
}

// CurrentID returns the selected document id, or "" when nothing is selected.
func (s DocumentState) CurrentID() DocumentID {
	if s.Current == nil {
		return ""
	}
	return s.Current.ID
}

// Find returns the document with id from the collection.
func (s DocumentState) Find(id DocumentID) (Document, bool) {
	i := slices.IndexFunc(s.Documents, func(d Document) bool { return d.ID == id })
	if i < 0 {
		return Document{}, false
	}
	return s.Documents[i], true
}

// Visible is the filtered and sorted collection view.
func (s DocumentState) Visible() []Document { return s.Filters.Apply(s.Documents) }

// ReplaceAll replaces the collection wholesale. A selected document present in
// list is refreshed from it.
func (s DocumentState) ReplaceAll(list []Document) DocumentState {
	s.Documents = slices.Clone(list)
	if s.Documents == nil {
		s.Documents = []Document{}
	}
	if s.Current != nil {
		if d, ok := s.Find(s.Current.ID); ok {
			s.Current = &d
		}
	}
	return s
}

// Prepend puts d first in the collection.
func (s DocumentState) Prepend(d Document) DocumentState {
	s.Documents = append([]Document{d}, s.Documents...)
	return s
}

// Select makes d current. A different id drops the extraction result.
func (s DocumentState) Select(d Document) DocumentState {
	if s.Current == nil || s.Current.ID != d.ID {
		s.Extraction = nil
		s.LoadingExtraction = false
		s.Saving = false
	}
	s.Current = &d
	return s
}

// ClearCurrent drops the selection together with its extraction result.
func (s DocumentState) ClearCurrent() DocumentState {
	s.Current = nil
	s.Extraction = nil
	s.LoadingExtraction = false
	s.Saving = false
	return s
}

// Remove deletes id from the collection, cascading to the selection when id
// is current.
func (s DocumentState) Remove(id DocumentID) DocumentState {
	s.Documents = slices.DeleteFunc(slices.Clone(s.Documents), func(d Document) bool { return d.ID == id })
	if s.CurrentID() == id {
		s = s.ClearCurrent()
	}
	return s
}

// DocumentStore owns the collection, the current document, its extraction
// result and the view filters.
type DocumentStore struct {
	c *container[DocumentState]
}

func NewDocumentStore(log zerolog.Logger) *DocumentStore {
	return &DocumentStore{c: newContainer("documents", NewDocumentState(), log)}
}

func (s *DocumentStore) State() DocumentState { return s.c.snapshot() }

// Visible returns the filtered and sorted view of the collection.
func (s *DocumentStore) Visible() []Document { return s.State().Visible() }

func (s *DocumentStore) Subscribe(fn func(DocumentState)) (cancel func()) { return s.c.subscribe(fn) }

func (s *DocumentStore) BeginFetch() Ticket {
	return s.c.begin("fetch", "fetch", func(st DocumentState) DocumentState {
		st.Loading = true
		st.Error = ""
		return st
	})
}

// CompleteFetch replaces the collection; it never merges.
func (s *DocumentStore) CompleteFetch(t Ticket, list []Document) bool {
	return s.c.resolve("fetch", PhaseSuccess, t, func(st DocumentState) DocumentState {
		st = st.ReplaceAll(list)
		st.Loading = false
		st.Error = ""
		return st
	})
}

// FailFetch records msg and resolves to a defined empty collection.
func (s *DocumentStore) FailFetch(t Ticket, msg string) bool {
	return s.c.resolve("fetch", PhaseFailure, t, func(st DocumentState) DocumentState {
		st = st.ReplaceAll(nil)
		st.Loading = false
		st.Error = msg
		return st
	})
}

func (s *DocumentStore) BeginUpload() Ticket {
	return s.c.beginUnique("upload", "upload", func(st DocumentState) DocumentState {
		st.Uploading = true
		st.Error = ""
		return st
	})
}

// CompleteUpload prepends d and makes it current.
func (s *DocumentStore) CompleteUpload(t Ticket, d Document) bool {
	return s.c.commit("upload", PhaseSuccess, func(g *generations, st DocumentState) (DocumentState, bool) {
		if !g.current(t) {
			return st, false
		}
		g.retire(t)
		s.switchContext(g, st, d.ID)
		st = st.Prepend(d).Select(d)
		st.Uploading = g.pending("upload#")
		st.Error = ""
		return st, true
	})
}

func (s *DocumentStore) FailUpload(t Ticket, msg string) bool {
	return s.c.settle("upload", PhaseFailure, t, "upload#", func(st DocumentState, busy bool) DocumentState {
		st.Uploading = busy
		st.Error = msg
		return st
	})
}

// SelectDocument makes d current. Selecting a different document clears the
// extraction result and retires every context-sensitive request still in
// flight for the previous one.
func (s *DocumentStore) SelectDocument(d Document) {
	s.c.commit("select", PhaseLocal, func(g *generations, st DocumentState) (DocumentState, bool) {
		s.switchContext(g, st, d.ID)
		return st.Select(d), true
	})
}

func (s *DocumentStore) BeginOpen() Ticket {
	return s.c.begin("open", "open", func(st DocumentState) DocumentState {
		st.Opening = true
		st.Error = ""
		return st
	})
}

// CompleteOpen selects d unless a later open superseded this one.
func (s *DocumentStore) CompleteOpen(t Ticket, d Document) bool {
	return s.c.commit("open", PhaseSuccess, func(g *generations, st DocumentState) (DocumentState, bool) {
		if !g.current(t) {
			return st, false
		}
		g.retire(t)
		s.switchContext(g, st, d.ID)
		st = st.Select(d)
		st.Opening = false
		return st, true
	})
}

func (s *DocumentStore) FailOpen(t Ticket, msg string) bool {
	return s.c.resolve("open", PhaseFailure, t, func(st DocumentState) DocumentState {
		st.Opening = false
		st.Error = msg
		return st
	})
}

// ClearCurrentDocument drops the selection and its extraction result.
func (s *DocumentStore) ClearCurrentDocument() {
	s.c.commit("clear_current", PhaseLocal, func(g *generations, st DocumentState) (DocumentState, bool) {
		s.switchContext(g, st, "")
		return st.ClearCurrent(), true
	})
}

// switchContext advances the epoch when the selection changes identity.
func (s *DocumentStore) switchContext(g *generations, st DocumentState, next DocumentID) {
	if st.CurrentID() == next {
		return
	}
	g.advance()
	g.invalidate("extraction")
	g.invalidatePrefix("save")
}

// BeginLoadExtraction starts loading the extraction result of the current
// document.
func (s *DocumentStore) BeginLoadExtraction() Ticket {
	return s.c.begin("load_extraction", "extraction", func(st DocumentState) DocumentState {
		st.LoadingExtraction = true
		st.Error = ""
		return st
	})
}

// SetExtractionResult replaces the extraction result wholesale. It commits
// only if id is still current and no selection change happened since t was
// issued.
func (s *DocumentStore) SetExtractionResult(t Ticket, id DocumentID, r ExtractionResult) bool {
	return s.resolveExtraction("set_extraction", PhaseSuccess, t, id, func(st DocumentState) DocumentState {
		st.Extraction = r.Clone()
		if st.Extraction == nil {
			st.Extraction = ExtractionResult{}
		}
		return st
	})
}

// ExtractionUnavailable resolves an extraction load to an absent result
// without recording an error. The caller may poll again later.
func (s *DocumentStore) ExtractionUnavailable(t Ticket, id DocumentID) bool {
	return s.resolveExtraction("set_extraction", PhaseSuccess, t, id, func(st DocumentState) DocumentState {
		st.Extraction = nil
		return st
	})
}

func (s *DocumentStore) FailLoadExtraction(t Ticket, id DocumentID, msg string) bool {
	return s.resolveExtraction("load_extraction", PhaseFailure, t, id, func(st DocumentState) DocumentState {
		st.Error = msg
		return st
	})
}

func (s *DocumentStore) resolveExtraction(op string, phase Phase, t Ticket, id DocumentID, fn func(DocumentState) DocumentState) bool {
	return s.c.commit(op, phase, func(g *generations, st DocumentState) (DocumentState, bool) {
		if !g.current(t) || !g.sameEpoch(t) || st.CurrentID() != id {
			return st, false
		}
		g.retire(t)
		st = fn(st)
		st.LoadingExtraction = false
		return st, true
	})
}

// UpdateExtractionField sets one path of the current extraction result
// without a collaborator round trip.
func (s *DocumentStore) UpdateExtractionField(path string, v any) error {
	var err error
	s.c.commit("update_field", PhaseLocal, func(_ *generations, st DocumentState) (DocumentState, bool) {
		if st.Extraction == nil {
			err = ErrNoExtraction
			return st, false
		}
		next, werr := st.Extraction.With(path, v)
		if werr != nil {
			err = werr
			return st, false
		}
		st.Extraction = next
		return st, true
	})
	return err
}

// BeginSaveFields optimistically applies changes to the current extraction
// result. The returned Undo restores every touched path to its prior value
// (or absence) and is a no-op once a different document is current. No
// transition happens when any change is invalid.
func (s *DocumentStore) BeginSaveFields(changes map[string]any) (Ticket, Undo[DocumentState], error) {
	var (
		t    Ticket
		undo Undo[DocumentState]
		err  error
	)
	s.c.commit("save_fields", PhaseStart, func(g *generations, st DocumentState) (DocumentState, bool) {
		if st.Current == nil || st.Extraction == nil {
			err = ErrNoExtraction
			return st, false
		}
		paths := make([]string, 0, len(changes))
		for p := range changes {
			paths = append(paths, p)
		}
		sort.Strings(paths)

		next := st.Extraction
		var priors []fieldPrior
		for _, p := range paths {
			prior := captureField(next, p)
			n, werr := next.With(p, changes[p])
			if werr != nil {
				err = werr
				return st, false
			}
			next = n
			priors = append(priors, prior)
		}

		id := st.Current.ID
		undo = NewUndo(func(cur DocumentState) DocumentState {
			if cur.CurrentID() != id || cur.Extraction == nil {
				return cur
			}
			r := cur.Extraction
			for i := len(priors) - 1; i >= 0; i-- {
				r = priors[i].restore(r)
			}
			cur.Extraction = r
			return cur
		})
		t = g.issueUnique("save")
		st.Extraction = next
		st.Saving = true
		st.Error = ""
		return st, true
	})
	return t, undo, err
}

func (s *DocumentStore) CompleteSaveFields(t Ticket) bool {
	return s.c.settle("save_fields", PhaseSuccess, t, "save#", func(st DocumentState, busy bool) DocumentState {
		st.Saving = busy
		st.Error = ""
		return st
	})
}

// FailSaveFields reverts the optimistic edit captured by undo.
func (s *DocumentStore) FailSaveFields(t Ticket, undo Undo[DocumentState], msg string) bool {
	return s.c.settle("save_fields", PhaseFailure, t, "save#", func(st DocumentState, busy bool) DocumentState {
		st = undo.Apply(st)
		st.Saving = busy
		st.Error = msg
		return st
	})
}

type fieldPrior struct {
	path          string
	value         any
	existed       bool
	parent        string
	parentCreated bool
}

func captureField(r ExtractionResult, path string) fieldPrior {
	v, ok := r.Get(path)
	p := fieldPrior{path: path, value: v, existed: ok}
	if parent, _, nested, err := splitPath(path); err == nil && nested {
		p.parent = parent
		_, has := r[parent]
		p.parentCreated = !has || r[parent] == nil
	}
	return p
}

func (p fieldPrior) restore(r ExtractionResult) ExtractionResult {
	if p.parentCreated {
		out := r.Clone()
		delete(out, p.parent)
		return out
	}
	if !p.existed {
		return r.Without(p.path)
	}
	out, err := r.With(p.path, p.value)
	if err != nil {
		return r
	}
	return out
}

func (s *DocumentStore) BeginDelete(id DocumentID) Ticket {
	return s.c.beginUnique("delete", "delete:"+string(id), func(st DocumentState) DocumentState {
		st.Deleting = true
		st.Error = ""
		return st
	})
}

// CompleteDelete removes id. When id is current, the selection and the
// extraction result are cleared in the same transition.
func (s *DocumentStore) CompleteDelete(t Ticket, id DocumentID) bool {
	return s.c.commit("delete", PhaseSuccess, func(g *generations, st DocumentState) (DocumentState, bool) {
		if !g.current(t) {
			return st, false
		}
		g.retire(t)
		if st.CurrentID() == id {
			s.switchContext(g, st, "")
		}
		st = st.Remove(id)
		st.Deleting = g.pending("delete:")
		st.Error = ""
		return st, true
	})
}

func (s *DocumentStore) FailDelete(t Ticket, msg string) bool {
	return s.c.settle("delete", PhaseFailure, t, "delete:", func(st DocumentState, busy bool) DocumentState {
		st.Deleting = busy
		st.Error = msg
		return st
	})
}

func (s *DocumentStore) BeginExport() Ticket {
	return s.c.beginUnique("export", "export", func(st DocumentState) DocumentState {
		st.Exporting = true
		st.Error = ""
		return st
	})
}

func (s *DocumentStore) CompleteExport(t Ticket) bool {
	return s.c.settle("export", PhaseSuccess, t, "export#", func(st DocumentState, busy bool) DocumentState {
		st.Exporting = busy
		st.Error = ""
		return st
	})
}

func (s *DocumentStore) FailExport(t Ticket, msg string) bool {
	return s.c.settle("export", PhaseFailure, t, "export#", func(st DocumentState, busy bool) DocumentState {
		st.Exporting = busy
		st.Error = msg
		return st
	})
}

// UpdateFilters merges a partial filter update. Invalid values leave the
// filters unchanged.
func (s *DocumentStore) UpdateFilters(u FilterUpdate) error {
	var err error
	s.c.commit("update_filters", PhaseLocal, func(_ *generations, st DocumentState) (DocumentState, bool) {
		f, merr := st.Filters.Merge(u)
		if merr != nil {
			err = merr
			return st, false
		}
		st.Filters = f
		return st, true
	})
	return err
}

func (s *DocumentStore) ClearError() {
	s.c.apply("clear_error", PhaseLocal, func(st DocumentState) DocumentState {
		st.Error = ""
		return st
	})
}

// Reset restores defaults and retires every request in flight.
func (s *DocumentStore) Reset() {
	s.c.commit("reset", PhaseLocal, func(g *generations, _ DocumentState) (DocumentState, bool) {
		g.reset()
		return NewDocumentState(), true
	})
}

