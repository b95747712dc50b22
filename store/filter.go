package store

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

type SortKey string

const (
	SortByDate   SortKey = "date"
	SortByName   SortKey = "name"
	SortByStatus SortKey = "status"
)

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// FilterCriteria shapes the document collection view. It never mutates the
// stored collection.
type FilterCriteria struct {
	Search    string
	SortBy    SortKey
	SortOrder SortOrder
}

// DefaultFilters is newest first with no search.
func DefaultFilters() FilterCriteria {
	return FilterCriteria{SortBy: SortByDate, SortOrder: SortDesc}
}

// FilterUpdate is a partial update; nil fields are left unchanged.
type FilterUpdate struct {
	Search    *string
	SortBy    *SortKey
	SortOrder *SortOrder
}

// Merge applies u to f.
func (f FilterCriteria) Merge(u FilterUpdate) (FilterCriteria, error) {
	if u.Search != nil {
		f.Search = *u.Search
	}
	if u.SortBy != nil {
		switch *u.SortBy {
		case SortByDate, SortByName, SortByStatus:
			f.SortBy = *u.SortBy
		default:
			return f, fmt.Errorf("%w: sort key %q", ErrInvalidFilter, *u.SortBy)
		}
	}
	if u.SortOrder != nil {
		switch *u.SortOrder {
		case SortAsc, SortDesc:
			f.SortOrder = *u.SortOrder
		default:
			return f, fmt.Errorf("%w: sort order %q", ErrInvalidFilter, *u.SortOrder)
		}
	}
	return f, nil
}

// Matches reports whether d's case-folded filename contains the case-folded
// search string. The empty search matches everything.
func (f FilterCriteria) Matches(d Document) bool {
	return f.matcher()(d)
}

func (f FilterCriteria) matcher() func(Document) bool {
	if f.Search == "" {
		return func(Document) bool { return true }
	}
	fold := cases.Fold()
	needle := fold.String(f.Search)
	return func(d Document) bool {
		return strings.Contains(fold.String(d.Filename), needle)
	}
}

// Apply returns the matching documents in view order. Documents with equal
// sort keys keep their collection order in both directions.
func (f FilterCriteria) Apply(docs []Document) []Document {
	match := f.matcher()
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if match(d) {
			out = append(out, d)
		}
	}
	compare := f.compare()
	slices.SortStableFunc(out, func(a, b Document) int {
		c := compare(a, b)
		if f.SortOrder == SortDesc {
			return -c
		}
		return c
	})
	return out
}

func (f FilterCriteria) compare() func(a, b Document) int {
	switch f.SortBy {
	case SortByName:
		fold := cases.Fold()
		return func(a, b Document) int {
			return cmp.Compare(fold.String(a.Filename), fold.String(b.Filename))
		}
	case SortByStatus:
		return func(a, b Document) int { return cmp.Compare(a.Status, b.Status) }
	default:
		return func(a, b Document) int { return a.CreatedAt.Compare(b.CreatedAt) }
	}
}
