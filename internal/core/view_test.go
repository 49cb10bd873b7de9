package core

import (
	"net/url"
	"reflect"
	"testing"
)

func TestDefaultViewState(t *testing.T) {
	v := DefaultViewState()
	if v.Search != "" {
		t.Errorf("Search = %q, want empty", v.Search)
	}
	want := []Category{CategoryRemoved, CategoryNew, CategoryModified}
	if got := v.Expanded.Members(); !reflect.DeepEqual(got, want) {
		t.Errorf("Expanded = %v, want %v", got, want)
	}
}

func TestViewState_Toggle(t *testing.T) {
	v := DefaultViewState()

	closed := v.Toggle(CategoryNew)
	if closed.Expanded.Has(CategoryNew) {
		t.Error("Toggle did not collapse an open section")
	}
	if !v.Expanded.Has(CategoryNew) {
		t.Error("Toggle modified its receiver")
	}

	reopened := closed.Toggle(CategoryNew)
	if reopened.Expanded != v.Expanded {
		t.Errorf("double Toggle = %v, want %v", reopened.Expanded.Members(), v.Expanded.Members())
	}
}

func TestViewState_PrintRoundTrip(t *testing.T) {
	before := DefaultViewState().Toggle(CategoryNew).Toggle(CategoryUnchanged).WithSearch("R5")

	printing := before.ForPrint()
	if !printing.Printing() {
		t.Fatal("Printing() = false after ForPrint")
	}
	for _, c := range Categories {
		if !printing.Expanded.Has(c) {
			t.Errorf("ForPrint left %s collapsed", c)
		}
	}

	after := printing.AfterPrint()
	if after.Expanded != before.Expanded {
		t.Errorf("AfterPrint expanded = %v, want %v", after.Expanded.Members(), before.Expanded.Members())
	}
	if after.Search != "R5" {
		t.Errorf("AfterPrint search = %q, want %q", after.Search, "R5")
	}
	if after.Printing() {
		t.Error("Printing() = true after AfterPrint")
	}
}

func TestViewState_AfterPrintWithoutSnapshot(t *testing.T) {
	v := DefaultViewState().Toggle(CategoryRemoved)
	if got := v.AfterPrint(); got != v {
		t.Errorf("AfterPrint without ForPrint = %+v, want %+v", got, v)
	}
}

func TestViewStateFromQuery(t *testing.T) {
	tests := []struct {
		name       string
		query      url.Values
		wantSearch string
		wantOpen   []Category
	}{
		{
			name:     "no params gives default",
			query:    url.Values{},
			wantOpen: []Category{CategoryRemoved, CategoryNew, CategoryModified},
		},
		{
			name:     "empty open collapses all",
			query:    url.Values{"open": {""}},
			wantOpen: nil,
		},
		{
			name:       "search and explicit sections",
			query:      url.Values{"q": {"c100"}, "open": {"unchanged,change"}},
			wantSearch: "c100",
			wantOpen:   []Category{CategoryModified, CategoryUnchanged},
		},
		{
			name:     "unknown keys ignored",
			query:    url.Values{"open": {"add,bogus, DELETE "}},
			wantOpen: []Category{CategoryRemoved, CategoryNew},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ViewStateFromQuery(tt.query)
			if v.Search != tt.wantSearch {
				t.Errorf("Search = %q, want %q", v.Search, tt.wantSearch)
			}
			if got := v.Expanded.Members(); !reflect.DeepEqual(got, tt.wantOpen) {
				t.Errorf("Expanded = %v, want %v", got, tt.wantOpen)
			}
		})
	}
}

func TestViewState_QueryRoundTrip(t *testing.T) {
	states := []ViewState{
		DefaultViewState(),
		DefaultViewState().WithSearch("U1"),
		DefaultViewState().Toggle(CategoryRemoved).Toggle(CategoryNew).Toggle(CategoryModified),
		DefaultViewState().Toggle(CategoryUnrecognized),
	}
	for _, v := range states {
		got := ViewStateFromQuery(v.Query())
		if got.Search != v.Search || got.Expanded != v.Expanded {
			t.Errorf("round trip of %+v gave %+v", v, got)
		}
	}
}

func TestParseCategory(t *testing.T) {
	for _, c := range Categories {
		got, ok := ParseCategory(c.String())
		if !ok || got != c {
			t.Errorf("ParseCategory(%q) = %v, %v, want %v, true", c.String(), got, ok, c)
		}
	}
	if _, ok := ParseCategory("modified"); ok {
		t.Error(`ParseCategory("modified") should fail`)
	}
}

func TestRow_ModifiedUsesFile1Side(t *testing.T) {
	r := Row{Category: CategoryModified, Change: ModifiedPart{
		MPN: "X", File1RefDes: "R1", File2RefDes: "R9", File1Qty: "1", File2Qty: "2",
	}}
	if r.RefDes() != "R1" || r.Qty() != "1" {
		t.Errorf("RefDes, Qty = %q, %q, want R1, 1", r.RefDes(), r.Qty())
	}
	if r.Matches("r9") {
		t.Error("Matches should ignore the File2 side")
	}
	if !r.Matches("x") {
		t.Error("Matches should find the MPN")
	}
}

func TestComparisonResult_Rows(t *testing.T) {
	r := sampleResult()
	for _, c := range Categories {
		rows := r.Rows(c)
		if len(rows) != r.Count(c) {
			t.Errorf("%s: %d rows, count %d", c, len(rows), r.Count(c))
		}
		for _, row := range rows {
			if row.Category != c {
				t.Errorf("%s row tagged %s", c, row.Category)
			}
		}
	}
}
