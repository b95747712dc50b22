package workspace

import (
	"context"
	"io"
	"maps"
	"strings"

	"github.com/satishkumarchitti/AI-Chat-Bot/client"
	"github.com/satishkumarchitti/AI-Chat-Bot/store"
)

const (
	msgFetchFailed      = "Failed to load documents"
	msgUploadFailed     = "Upload failed"
	msgDeleteFailed     = "Failed to delete document"
	msgOpenFailed       = "Failed to load document"
	msgExtractionFailed = "Failed to load extracted data"
	msgSaveFailed       = "Failed to save changes"
	msgExportFailed     = "Failed to export data"
)

// Export formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// FetchDocuments replaces the collection with the backend's list.
func (w *Workspace) FetchDocuments(ctx context.Context) *Pending {
	t := w.documents.BeginFetch()
	return w.run(ctx, keyDocuments, func(ctx context.Context) error {
		list, err := w.backend.ListDocuments(ctx)
		if err != nil {
			return w.fail("fetch", err, msgFetchFailed, func(msg string) bool {
				return w.documents.FailFetch(t, msg)
			})
		}
		return superseded(w.documents.CompleteFetch(t, toDocuments(list)))
	}, func(error) { w.documents.FailFetch(t, msgFetchFailed) })
}

// Upload validates form and uploads its content. The new document is
// prepended and selected. form.Content is read on the executor, so it must
// stay readable until the Pending is done.
func (w *Workspace) Upload(ctx context.Context, form UploadForm) (*Pending, error) {
	form.ContentType = strings.ToLower(strings.TrimSpace(form.ContentType))
	if err := check(form); err != nil {
		return nil, err
	}
	if form.Content == nil {
		return nil, invalid("Content", "Please select a file to upload")
	}
	t := w.documents.BeginUpload()
	return w.run(ctx, keyDocuments, func(ctx context.Context) error {
		d, err := w.backend.Upload(ctx, form.Filename, form.ContentType, form.Content)
		if err != nil {
			return w.fail("upload", err, msgUploadFailed, func(msg string) bool {
				return w.documents.FailUpload(t, msg)
			})
		}
		return superseded(w.documents.CompleteUpload(t, toDocument(*d)))
	}, func(error) { w.documents.FailUpload(t, msgUploadFailed) }), nil
}

// Delete removes id from the backend, then from the collection together with
// its conversation log. A document the backend no longer knows is removed
// locally as well.
func (w *Workspace) Delete(ctx context.Context, id store.DocumentID) *Pending {
	t := w.documents.BeginDelete(id)
	return w.run(ctx, keyDocuments, func(ctx context.Context) error {
		err := w.backend.DeleteDocument(ctx, string(id))
		if err != nil && !client.IsNotFound(err) {
			return w.fail("delete", err, msgDeleteFailed, func(msg string) bool {
				return w.documents.FailDelete(t, msg)
			})
		}
		if !w.documents.CompleteDelete(t, id) {
			return ErrSuperseded
		}
		w.conversations.Remove(id)
		return nil
	}, func(error) { w.documents.FailDelete(t, msgDeleteFailed) })
}

// OpenDocument loads id and makes it current, points the conversation at it,
// then loads its extraction result and its chat history. A missing
// extraction result is not an error: the document may still be processing.
func (w *Workspace) OpenDocument(ctx context.Context, id store.DocumentID) *Pending {
	t := w.documents.BeginOpen()
	p := newPending(documentKey(id))
	w.enqueue(ctx, p, func(jctx context.Context) error {
		d, err := w.backend.GetDocument(jctx, string(id))
		if err != nil {
			err = w.fail("open", err, msgOpenFailed, func(msg string) bool {
				return w.documents.FailOpen(t, msg)
			})
			p.finish(err)
			return err
		}
		if !w.documents.CompleteOpen(t, toDocument(*d)) {
			p.finish(ErrSuperseded)
			return ErrSuperseded
		}
		w.conversations.SetActive(id)
		history := w.LoadHistory(jctx, id)

		et := w.documents.BeginLoadExtraction()
		err = w.loadExtraction(jctx, et, id)
		p.follow(history, err)
		return err
	}, func(error) { w.documents.FailOpen(t, msgOpenFailed) })
	return p
}

// RefreshExtraction reloads the extraction result of the current document,
// for polling while it is processed.
func (w *Workspace) RefreshExtraction(ctx context.Context) (*Pending, error) {
	id := w.documents.State().CurrentID()
	if id == "" {
		return nil, ErrNoDocument
	}
	t := w.documents.BeginLoadExtraction()
	return w.run(ctx, documentKey(id), func(ctx context.Context) error {
		return w.loadExtraction(ctx, t, id)
	}, func(error) { w.documents.FailLoadExtraction(t, id, msgExtractionFailed) }), nil
}

func (w *Workspace) loadExtraction(ctx context.Context, t store.Ticket, id store.DocumentID) error {
	data, err := w.backend.ExtractedData(ctx, string(id))
	if client.IsNotFound(err) {
		return superseded(w.documents.ExtractionUnavailable(t, id))
	}
	if err != nil {
		return w.fail("load_extraction", err, msgExtractionFailed, func(msg string) bool {
			return w.documents.FailLoadExtraction(t, id, msg)
		})
	}
	return superseded(w.documents.SetExtractionResult(t, id, store.ExtractionResult(data)))
}

// SaveFields applies changes (dot path → scalar) to the current extraction
// result at once and sends them to the backend. A failed save restores every
// touched path. Invalid changes are returned without any state change.
func (w *Workspace) SaveFields(ctx context.Context, changes map[string]any) (*Pending, error) {
	st := w.documents.State()
	id := st.CurrentID()
	if id == "" {
		return nil, ErrNoDocument
	}
	if len(changes) == 0 {
		return resolved(documentKey(id), nil), nil
	}
	t, undo, err := w.documents.BeginSaveFields(changes)
	if err != nil {
		return nil, err
	}
	payload := topLevel(w.documents.State().Extraction, changes)
	return w.run(ctx, documentKey(id), func(ctx context.Context) error {
		if err := w.backend.UpdateExtractedData(ctx, string(id), payload); err != nil {
			return w.fail("save_fields", err, msgSaveFailed, func(msg string) bool {
				return w.documents.FailSaveFields(t, undo, msg)
			})
		}
		return superseded(w.documents.CompleteSaveFields(t))
	}, func(error) { w.documents.FailSaveFields(t, undo, msgSaveFailed) }), nil
}

// topLevel builds the update body. The backend merges only top-level keys,
// so a nested path sends its whole parent object.
func topLevel(r store.ExtractionResult, changes map[string]any) map[string]any {
	out := make(map[string]any, len(changes))
	for path := range changes {
		parent, _, _ := strings.Cut(path, ".")
		v := r[parent]
		if m, ok := v.(map[string]any); ok {
			v = maps.Clone(m)
		}
		out[parent] = v
	}
	return out
}

// Export writes the current document's extraction result to out as JSON or
// CSV.
func (w *Workspace) Export(ctx context.Context, format string, out io.Writer) (*Pending, error) {
	format = strings.ToLower(format)
	if format != FormatJSON && format != FormatCSV {
		return nil, invalid("Format", "Invalid format. Use 'json' or 'csv'")
	}
	id := w.documents.State().CurrentID()
	if id == "" {
		return nil, ErrNoDocument
	}
	t := w.documents.BeginExport()
	return w.run(ctx, documentKey(id), func(ctx context.Context) error {
		n, err := w.backend.Export(ctx, string(id), format, out)
		if err != nil {
			return w.fail("export", err, msgExportFailed, func(msg string) bool {
				return w.documents.FailExport(t, msg)
			})
		}
		w.log.Debug().Str("document", string(id)).Str("format", format).Int64("bytes", n).Msg("exported")
		return superseded(w.documents.CompleteExport(t))
	}, func(error) { w.documents.FailExport(t, msgExportFailed) }), nil
}
