package core

import (
	"net/url"
	"strings"
)

// ViewState is the per-session presentation state: the search term and
// which category sections are expanded. It is a value type; every method
// returns a new ViewState and leaves the receiver untouched.
type ViewState struct {
	Search   string
	Expanded CategorySet

	// prePrint holds the expansion in effect before ForPrint, if any.
	prePrint    CategorySet
	hasPrePrint bool
}

// defaultExpanded are the sections open when results first load.
var defaultExpanded = NewCategorySet(CategoryRemoved, CategoryNew, CategoryModified)

// DefaultViewState returns the state shown right after a comparison.
func DefaultViewState() ViewState {
	return ViewState{Expanded: defaultExpanded}
}

// WithSearch returns a copy with the search term replaced.
func (v ViewState) WithSearch(term string) ViewState {
	v.Search = term
	return v
}

// Toggle returns a copy with the section for c opened or closed.
func (v ViewState) Toggle(c Category) ViewState {
	if v.Expanded.Has(c) {
		v.Expanded = v.Expanded.Without(c)
	} else {
		v.Expanded = v.Expanded.With(c)
	}
	return v
}

// ForPrint returns a copy with every section expanded, remembering the
// current expansion so AfterPrint can restore it.
func (v ViewState) ForPrint() ViewState {
	v.prePrint = v.Expanded
	v.hasPrePrint = true
	v.Expanded = NewCategorySet(Categories...)
	return v
}

// AfterPrint restores the expansion saved by ForPrint. Without a saved
// expansion it returns v unchanged.
func (v ViewState) AfterPrint() ViewState {
	if !v.hasPrePrint {
		return v
	}
	v.Expanded = v.prePrint
	v.prePrint = 0
	v.hasPrePrint = false
	return v
}

// Printing reports whether the state came from ForPrint.
func (v ViewState) Printing() bool {
	return v.hasPrePrint
}

// Query encodes the state as URL query parameters (q, open).
func (v ViewState) Query() url.Values {
	q := url.Values{}
	if v.Search != "" {
		q.Set("q", v.Search)
	}
	members := v.Expanded.Members()
	keys := make([]string, len(members))
	for i, c := range members {
		keys[i] = c.String()
	}
	q.Set("open", strings.Join(keys, ","))
	return q
}

// ViewStateFromQuery decodes parameters written by Query. A missing open
// parameter yields the default expansion; an empty one collapses everything.
func ViewStateFromQuery(q url.Values) ViewState {
	v := DefaultViewState().WithSearch(q.Get("q"))
	if !q.Has("open") {
		return v
	}
	v.Expanded = 0
	for _, key := range strings.Split(q.Get("open"), ",") {
		if c, ok := ParseCategory(key); ok {
			v.Expanded = v.Expanded.With(c)
		}
	}
	return v
}
