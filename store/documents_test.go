package store

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doc(id, name string, created time.Time) Document {
	return Document{ID: DocumentID(id), Filename: name, FileType: FileTypePDF, Status: StatusProcessed, CreatedAt: created}
}

func ids(docs []Document) []DocumentID {
	out := make([]DocumentID, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ID)
	}
	return out
}

func TestDocumentStore_Defaults(t *testing.T) {
	s := NewDocumentStore(zerolog.Nop())
	st := s.State()
	require.NotNil(t, st.Documents)
	assert.Empty(t, st.Documents)
	assert.Nil(t, st.Current)
	assert.Nil(t, st.Extraction)
	assert.Equal(t, FilterCriteria{SortBy: SortByDate, SortOrder: SortDesc}, st.Filters)
}

func TestDocumentStore_FetchReplacesNeverMerges(t *testing.T) {
	s := NewDocumentStore(zerolog.Nop())
	now := time.Now()

	tk := s.BeginFetch()
	assert.True(t, s.State().Loading)
	require.True(t, s.CompleteFetch(tk, []Document{doc("1", "a.pdf", now), doc("2", "b.pdf", now)}))

	tk = s.BeginFetch()
	require.True(t, s.CompleteFetch(tk, []Document{doc("3", "c.pdf", now)}))

	st := s.State()
	assert.Equal(t, []DocumentID{"3"}, ids(st.Documents))
	assert.False(t, st.Loading)
	assert.Empty(t, st.Error)
}

func TestDocumentStore_FailFetchResolvesToEmpty(t *testing.T) {
	s := NewDocumentStore(zerolog.Nop())
	tk := s.BeginFetch()
	require.True(t, s.CompleteFetch(tk, []Document{doc("1", "a.pdf", time.Now())}))

	tk = s.BeginFetch()
	require.True(t, s.FailFetch(tk, "Failed to load documents"))

	st := s.State()
	assert.False(t, st.Loading)
	require.NotNil(t, st.Documents)
	assert.Empty(t, st.Documents)
	assert.Equal(t, "Failed to load documents", st.Error)

	// The next start clears the error.
	s.BeginFetch()
	assert.Empty(t, s.State().Error)
}

func TestDocumentStore_SupersededFetchIsDiscarded(t *testing.T) {
	s := NewDocumentStore(zerolog.Nop())
	now := time.Now()
	first := s.BeginFetch()
	second := s.BeginFetch()

	require.True(t, s.CompleteFetch(second, []Document{doc("2", "new.pdf", now)}))
	assert.False(t, s.CompleteFetch(first, []Document{doc("1", "old.pdf", now)}))
	assert.Equal(t, []DocumentID{"2"}, ids(s.State().Documents))

	// A resolution commits at most once.
	assert.False(t, s.CompleteFetch(second, nil))
}

func TestDocumentStore_UploadPrependsAndSelects(t *testing.T) {
	s := NewDocumentStore(zerolog.Nop())
	now := time.Now()
	tk := s.BeginFetch()
	s.CompleteFetch(tk, []Document{doc("1", "old.pdf", now)})

	up := s.BeginUpload()
	assert.True(t, s.State().Uploading)
	fresh := Document{ID: "9", Filename: "invoice.pdf", FileType: FileTypePDF, Status: StatusPending, CreatedAt: now}
	require.True(t, s.CompleteUpload(up, fresh))

	st := s.State()
	assert.Equal(t, []DocumentID{"9", "1"}, ids(st.Documents))
	require.NotNil(t, st.Current)
	assert.Equal(t, DocumentID("9"), st.Current.ID)
	assert.Equal(t, StatusPending, st.Current.Status)
	assert.False(t, st.Uploading)
}

func TestDocumentStore_ConcurrentUploadsBothLand(t *testing.T) {
	s := NewDocumentStore(zerolog.Nop())
	now := time.Now()
	a := s.BeginUpload()
	b := s.BeginUpload()
	require.True(t, s.CompleteUpload(a, doc("1", "a.pdf", now)))
	assert.True(t, s.State().Uploading, "second upload still in flight")
	require.True(t, s.CompleteUpload(b, doc("2", "b.pdf", now)))
	assert.Equal(t, []DocumentID{"2", "1"}, ids(s.State().Documents))
	assert.False(t, s.State().Uploading)
}

func TestDocumentStore_PendingFlagsTrackSiblings(t *testing.T) {
	s := NewDocumentStore(zerolog.Nop())
	s.SelectDocument(doc("a", "a.pdf", time.Now()))
	lt := s.BeginLoadExtraction()
	s.SetExtractionResult(lt, "a", ExtractionResult{"total": "1", "tax": "0"})

	s1, _, err := s.BeginSaveFields(map[string]any{"total": "2"})
	require.NoError(t, err)
	s2, undo2, err := s.BeginSaveFields(map[string]any{"tax": "1"})
	require.NoError(t, err)
	require.True(t, s.CompleteSaveFields(s1))
	assert.True(t, s.State().Saving)
	require.True(t, s.FailSaveFields(s2, undo2, "Failed to save changes"))
	assert.False(t, s.State().Saving)
	assert.Equal(t, ExtractionResult{"total": "2", "tax": "0"}, s.State().Extraction)

	e1, e2 := s.BeginExport(), s.BeginExport()
	require.True(t, s.FailExport(e1, "Export failed"))
	assert.True(t, s.State().Exporting)
	require.True(t, s.CompleteExport(e2))
	assert.False(t, s.State().Exporting)

	d1, d2 := s.BeginDelete("x"), s.BeginDelete("y")
	require.True(t, s.CompleteDelete(d1, "x"))
	assert.True(t, s.State().Deleting)
	require.True(t, s.FailDelete(d2, "Failed to delete document"))
	assert.False(t, s.State().Deleting)
}

func TestDocumentStore_SnapshotSharesNoLineItems(t *testing.T) {
	s := NewDocumentStore(zerolog.Nop())
	s.SelectDocument(doc("a", "a.pdf", time.Now()))
	lt := s.BeginLoadExtraction()
	require.True(t, s.SetExtractionResult(lt, "a", ExtractionResult{
		"total": "92.00",
		"line_items": []any{
			map[string]any{"description": "Services", "amount": "92.00"},
		},
	}))

	var seen ExtractionResult
	cancel := s.Subscribe(func(st DocumentState) { seen = st.Extraction })
	defer cancel()
	require.NoError(t, s.UpdateExtractionField("total", "93.00"))
	require.NotNil(t, seen)

	snap := s.State().Extraction
	items := snap["line_items"].([]any)
	items[0].(map[string]any)["amount"] = "0.00"
	items[0] = "replaced"
	seen["line_items"].([]any)[0].(map[string]any)["description"] = "tampered"

	item := s.State().Extraction["line_items"].([]any)[0].(map[string]any)
	assert.Equal(t, "92.00", item["amount"])
	assert.Equal(t, "Services", item["description"])
}

func TestDocumentStore_FailUploadKeepsCollection(t *testing.T) {
	s := NewDocumentStore(zerolog.Nop())
	up := s.BeginUpload()
	require.True(t, s.FailUpload(up, "Upload failed"))
	st := s.State()
	assert.Empty(t, st.Documents)
	assert.Nil(t, st.Current)
	assert.Equal(t, "Upload failed", st.Error)
}

func TestDocumentStore_SelectDifferentClearsExtraction(t *testing.T) {
	s := NewDocumentStore(zerolog.Nop())
	a, b := doc("a", "a.pdf", time.Now()), doc("b", "b.pdf", time.Now())

	s.SelectDocument(a)
	tk := s.BeginLoadExtraction()
	require.True(t, s.SetExtractionResult(tk, "a", ExtractionResult{"total": 10.0}))

	// Re-selecting the same document keeps the result.
	s.SelectDocument(a)
	assert.Equal(t, ExtractionResult{"total": 10.0}, s.State().Extraction)

	s.SelectDocument(b)
	st := s.State()
	assert.Equal(t, DocumentID("b"), st.CurrentID())
	assert.Nil(t, st.Extraction)
}

func TestDocumentStore_StaleExtractionIsDiscarded(t *testing.T) {
	s := NewDocumentStore(zerolog.Nop())
	a, b := doc("a", "a.pdf", time.Now()), doc("b", "b.pdf", time.Now())

	s.SelectDocument(a)
	tk := s.BeginLoadExtraction()
	s.SelectDocument(b)

	assert.False(t, s.SetExtractionResult(tk, "a", ExtractionResult{"total": 1.0}))
	st := s.State()
	assert.Nil(t, st.Extraction)
	assert.False(t, st.LoadingExtraction)

	// Switching away and back still retires the old request.
	s.SelectDocument(a)
	assert.False(t, s.SetExtractionResult(tk, "a", ExtractionResult{"total": 1.0}))
	assert.Nil(t, s.State().Extraction)
}

func TestDocumentStore_ExtractionUnavailableIsNotAnError(t *testing.T) {
	s := NewDocumentStore(zerolog.Nop())
	s.SelectDocument(doc("a", "a.pdf", time.Now()))
	tk := s.BeginLoadExtraction()
	require.True(t, s.ExtractionUnavailable(tk, "a"))
	st := s.State()
	assert.Nil(t, st.Extraction)
	assert.Empty(t, st.Error)
	assert.False(t, st.LoadingExtraction)
}

func TestDocumentStore_UpdateExtractionFieldTouchesOnlyPath(t *testing.T) {
	s := NewDocumentStore(zerolog.Nop())
	require.ErrorIs(t, s.UpdateExtractionField("total", 1), ErrNoExtraction)

	s.SelectDocument(doc("a", "a.pdf", time.Now()))
	tk := s.BeginLoadExtraction()
	s.SetExtractionResult(tk, "a", ExtractionResult{
		"total":  "12.00",
		"date":   "2024-10-01",
		"vendor": map[string]any{"name": "ACME", "city": "Oslo"},
	})

	require.NoError(t, s.UpdateExtractionField("vendor.name", "Acme Corp"))
	require.NoError(t, s.UpdateExtractionField("tax.rate", 0.25))

	got := s.State().Extraction
	assert.Equal(t, "12.00", got["total"])
	assert.Equal(t, "2024-10-01", got["date"])
	assert.Equal(t, map[string]any{"name": "Acme Corp", "city": "Oslo"}, got["vendor"])
	assert.Equal(t, map[string]any{"rate": 0.25}, got["tax"])

	before := s.State().Extraction
	require.ErrorIs(t, s.UpdateExtractionField("total.cents", 5), ErrInvalidPath)
	require.ErrorIs(t, s.UpdateExtractionField("a.b.c", 5), ErrInvalidPath)
	assert.Equal(t, before, s.State().Extraction)
}

func TestDocumentStore_SaveFieldsRollsBackExactly(t *testing.T) {
	s := NewDocumentStore(zerolog.Nop())
	s.SelectDocument(doc("a", "a.pdf", time.Now()))
	lt := s.BeginLoadExtraction()
	original := ExtractionResult{
		"total":  "12.00",
		"vendor": map[string]any{"name": "ACME"},
	}
	s.SetExtractionResult(lt, "a", original)

	tk, undo, err := s.BeginSaveFields(map[string]any{
		"total":        "13.00",
		"vendor.name":  "Acme",
		"vendor.vat":   "NO123",
		"buyer.name":   "Me",
		"payment_type": "card",
	})
	require.NoError(t, err)
	st := s.State()
	assert.True(t, st.Saving)
	assert.Equal(t, "13.00", st.Extraction["total"])
	assert.Equal(t, map[string]any{"name": "Me"}, st.Extraction["buyer"])

	require.True(t, s.FailSaveFields(tk, undo, "Failed to save changes"))
	st = s.State()
	assert.Equal(t, original, st.Extraction)
	assert.False(t, st.Saving)
	assert.Equal(t, "Failed to save changes", st.Error)
}

func TestDocumentStore_SaveFieldsInvalidChangeIsRejected(t *testing.T) {
	s := NewDocumentStore(zerolog.Nop())
	s.SelectDocument(doc("a", "a.pdf", time.Now()))
	lt := s.BeginLoadExtraction()
	s.SetExtractionResult(lt, "a", ExtractionResult{"total": "1"})

	_, undo, err := s.BeginSaveFields(map[string]any{"ok": "x", "total.sub": "y"})
	require.ErrorIs(t, err, ErrInvalidPath)
	assert.True(t, undo.IsZero())
	assert.Equal(t, ExtractionResult{"total": "1"}, s.State().Extraction)
	assert.False(t, s.State().Saving)
}

func TestDocumentStore_SaveUndoIgnoresOtherDocument(t *testing.T) {
	s := NewDocumentStore(zerolog.Nop())
	s.SelectDocument(doc("a", "a.pdf", time.Now()))
	lt := s.BeginLoadExtraction()
	s.SetExtractionResult(lt, "a", ExtractionResult{"total": "1"})

	_, undo, err := s.BeginSaveFields(map[string]any{"total": "2"})
	require.NoError(t, err)

	s.SelectDocument(doc("b", "b.pdf", time.Now()))
	lt = s.BeginLoadExtraction()
	s.SetExtractionResult(lt, "b", ExtractionResult{"total": "99"})

	st := undo.Apply(s.State())
	assert.Equal(t, ExtractionResult{"total": "99"}, st.Extraction)
}

func TestDocumentStore_DeleteCascade(t *testing.T) {
	now := time.Now()
	setup := func() *DocumentStore {
		s := NewDocumentStore(zerolog.Nop())
		tk := s.BeginFetch()
		s.CompleteFetch(tk, []Document{doc("1", "a.pdf", now), doc("2", "b.pdf", now)})
		s.SelectDocument(doc("1", "a.pdf", now))
		lt := s.BeginLoadExtraction()
		s.SetExtractionResult(lt, "1", ExtractionResult{"total": "5"})
		return s
	}

	t.Run("current", func(t *testing.T) {
		s := setup()
		tk := s.BeginDelete("1")
		assert.True(t, s.State().Deleting)
		require.True(t, s.CompleteDelete(tk, "1"))
		st := s.State()
		assert.Nil(t, st.Current)
		assert.Nil(t, st.Extraction)
		assert.Equal(t, []DocumentID{"2"}, ids(st.Documents))
	})

	t.Run("non-current", func(t *testing.T) {
		s := setup()
		tk := s.BeginDelete("2")
		require.True(t, s.CompleteDelete(tk, "2"))
		st := s.State()
		require.NotNil(t, st.Current)
		assert.Equal(t, DocumentID("1"), st.Current.ID)
		assert.Equal(t, ExtractionResult{"total": "5"}, st.Extraction)
		assert.Equal(t, []DocumentID{"1"}, ids(st.Documents))
	})

	t.Run("failure", func(t *testing.T) {
		s := setup()
		tk := s.BeginDelete("1")
		require.True(t, s.FailDelete(tk, "Failed to delete document"))
		st := s.State()
		assert.Len(t, st.Documents, 2)
		assert.Equal(t, DocumentID("1"), st.CurrentID())
		assert.Equal(t, "Failed to delete document", st.Error)
	})
}

func TestDocumentStore_ResetRetiresInFlight(t *testing.T) {
	s := NewDocumentStore(zerolog.Nop())
	tk := s.BeginFetch()
	s.Reset()
	assert.False(t, s.CompleteFetch(tk, []Document{doc("1", "a.pdf", time.Now())}))
	assert.Empty(t, s.State().Documents)
}

func TestDocumentStore_UpdateFilters(t *testing.T) {
	s := NewDocumentStore(zerolog.Nop())
	search := "inv"
	require.NoError(t, s.UpdateFilters(FilterUpdate{Search: &search}))
	assert.Equal(t, FilterCriteria{Search: "inv", SortBy: SortByDate, SortOrder: SortDesc}, s.State().Filters)

	bad := SortKey("size")
	require.ErrorIs(t, s.UpdateFilters(FilterUpdate{SortBy: &bad}), ErrInvalidFilter)
	assert.Equal(t, "inv", s.State().Filters.Search)
}

func TestFilter_SearchScenario(t *testing.T) {
	now := time.Now()
	s := NewDocumentStore(zerolog.Nop())
	tk := s.BeginFetch()
	s.CompleteFetch(tk, []Document{doc("1", "Invoice_Oct.pdf", now), doc("2", "receipt.png", now)})
	search := "inv"
	require.NoError(t, s.UpdateFilters(FilterUpdate{Search: &search}))

	var names []string
	for _, d := range s.Visible() {
		names = append(names, d.Filename)
	}
	assert.Equal(t, []string{"Invoice_Oct.pdf"}, names)
}

func TestFilter_MatchesIffCaseFoldedSubstring(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	alphabet := []rune("aAbBcC._")
	word := func(n int) string {
		var b strings.Builder
		for i := 0; i < n; i++ {
			b.WriteRune(alphabet[r.Intn(len(alphabet))])
		}
		return b.String()
	}
	for i := 0; i < 500; i++ {
		name, search := word(r.Intn(8)), word(r.Intn(3))
		f := FilterCriteria{Search: search}
		want := strings.Contains(strings.ToLower(name), strings.ToLower(search))
		assert.Equal(t, want, f.Matches(Document{Filename: name}), "name=%q search=%q", name, search)
	}
	assert.True(t, FilterCriteria{}.Matches(Document{Filename: "anything"}))
}

func TestFilter_MatchesUnicodeCaseFolding(t *testing.T) {
	assert.True(t, FilterCriteria{Search: "STRASSE"}.Matches(Document{Filename: "straße.pdf"}))
	assert.True(t, FilterCriteria{Search: "\u212a"}.Matches(Document{Filename: "kelvin.pdf"}))
	assert.True(t, FilterCriteria{Search: "σ"}.Matches(Document{Filename: "ΟΔΟΣ.pdf"}))
	assert.False(t, FilterCriteria{Search: "strasse"}.Matches(Document{Filename: "strase.pdf"}))
}

func TestFilter_StableForEqualKeys(t *testing.T) {
	same := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)
	var docs []Document
	for i := 0; i < 6; i++ {
		docs = append(docs, doc(fmt.Sprint(i), "x.pdf", same))
	}
	docs = append(docs, doc("late", "y.pdf", same.Add(time.Hour)))

	desc := FilterCriteria{SortBy: SortByDate, SortOrder: SortDesc}.Apply(docs)
	assert.Equal(t, []DocumentID{"late", "0", "1", "2", "3", "4", "5"}, ids(desc))

	asc := FilterCriteria{SortBy: SortByName, SortOrder: SortAsc}.Apply(docs)
	assert.Equal(t, []DocumentID{"0", "1", "2", "3", "4", "5", "late"}, ids(asc))

	// The stored collection keeps its order.
	assert.Equal(t, DocumentID("0"), docs[0].ID)
}
