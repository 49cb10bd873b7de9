package core

import (
	"errors"
	"reflect"
	"testing"
)

// sampleResult returns a consistent result with rows in every category.
func sampleResult() *ComparisonResult {
	r := &ComparisonResult{
		NewParts: []BOMPart{
			{MPN: "C100", RefDes: "R5,R6", Qty: "2"},
			{MPN: "C200", RefDes: "R7", Qty: "1"},
		},
		RemovedParts: []BOMPart{
			{MPN: "LM358", RefDes: "U1", Qty: "1"},
		},
		ModifiedParts: []ModifiedPart{
			{MPN: "GRM155", File1RefDes: "C1,C2", File2RefDes: "C1,C2,C3", File1Qty: "2", File2Qty: "3"},
			{MPN: "RC0402", File1RefDes: "R1", File2RefDes: "R5", File1Qty: "1", File2Qty: "1"},
		},
		UnchangedParts: []BOMPart{
			{MPN: "BAT54", RefDes: "D1", Qty: "1"},
			{MPN: "c100-alt", RefDes: "D2", Qty: "1"},
		},
		UnrecognizedParts: []BOMPart{
			{MPN: "N/A", RefDes: "r55", Qty: ""},
		},
		SummaryStats: SummaryStats{TotalPartsFile1: 6, TotalPartsFile2: 7},
	}
	r.Resync()
	return r
}

func TestFilter_NilResult(t *testing.T) {
	_, err := Filter(nil, "R5")
	if !errors.Is(err, ErrNoResult) {
		t.Fatalf("Filter(nil) error = %v, want ErrNoResult", err)
	}
}

func TestFilter_BlankTermIsIdentity(t *testing.T) {
	for _, term := range []string{"", " ", "\t\n"} {
		in := sampleResult()
		got, err := Filter(in, term)
		if err != nil {
			t.Fatalf("Filter(%q) error = %v", term, err)
		}
		if !reflect.DeepEqual(got, sampleResult()) {
			t.Errorf("Filter(%q) = %+v, want value-equal input", term, got)
		}
		if got == in {
			t.Errorf("Filter(%q) returned the input pointer, want an independent copy", term)
		}
	}
}

func TestFilter_BlankTermNilLists(t *testing.T) {
	in := &ComparisonResult{
		NewParts:     []BOMPart{{MPN: "C100", RefDes: "R5", Qty: "1"}},
		SummaryStats: SummaryStats{TotalPartsFile1: 0, TotalPartsFile2: 1},
	}
	in.Resync()

	got, err := Filter(in, "")
	if err != nil {
		t.Fatal(err)
	}

	if got.RemovedParts == nil || got.ModifiedParts == nil || got.UnchangedParts == nil || got.UnrecognizedParts == nil {
		t.Fatalf("Filter(\"\") = %+v, want nil lists returned as empty lists", got)
	}
	if len(got.RemovedParts)+len(got.ModifiedParts)+len(got.UnchangedParts)+len(got.UnrecognizedParts) != 0 {
		t.Errorf("Filter(\"\") added rows: %+v", got)
	}
	if !reflect.DeepEqual(got.NewParts, in.NewParts) {
		t.Errorf("NewParts = %v, want %v", got.NewParts, in.NewParts)
	}
	if got.SummaryStats != in.SummaryStats {
		t.Errorf("SummaryStats = %+v, want %+v", got.SummaryStats, in.SummaryStats)
	}
	if in.RemovedParts != nil {
		t.Error("Filter modified its input")
	}
}

func TestFilter_ByRefDes(t *testing.T) {
	got, err := Filter(sampleResult(), "R5")
	if err != nil {
		t.Fatal(err)
	}

	if got.SummaryStats.NewPartsCount != 1 || len(got.NewParts) != 1 {
		t.Fatalf("new parts = %d (count %d), want 1", len(got.NewParts), got.SummaryStats.NewPartsCount)
	}
	if got.NewParts[0].MPN != "C100" {
		t.Errorf("new part MPN = %q, want %q", got.NewParts[0].MPN, "C100")
	}

	// Modified rows match on the File1 side only: RC0402 has R5 in File2.
	if len(got.ModifiedParts) != 0 {
		t.Errorf("modified parts = %v, want none", got.ModifiedParts)
	}

	// Substring, case-insensitive: "r55" contains "r5".
	if len(got.UnrecognizedParts) != 1 {
		t.Errorf("unrecognized parts = %v, want r55 row", got.UnrecognizedParts)
	}
}

func TestFilter_ByMPNCaseInsensitive(t *testing.T) {
	got, err := Filter(sampleResult(), "c100")
	if err != nil {
		t.Fatal(err)
	}

	wantNew := []BOMPart{{MPN: "C100", RefDes: "R5,R6", Qty: "2"}}
	if !reflect.DeepEqual(got.NewParts, wantNew) {
		t.Errorf("NewParts = %v, want %v", got.NewParts, wantNew)
	}
	if len(got.UnchangedParts) != 1 || got.UnchangedParts[0].MPN != "c100-alt" {
		t.Errorf("UnchangedParts = %v, want [c100-alt]", got.UnchangedParts)
	}
	if len(got.RemovedParts) != 0 {
		t.Errorf("RemovedParts = %v, want none", got.RemovedParts)
	}
}

func TestFilter_PreservesOrder(t *testing.T) {
	in := &ComparisonResult{
		NewParts: []BOMPart{
			{MPN: "Z-1", RefDes: "X1"},
			{MPN: "A-1", RefDes: "X2"},
			{MPN: "M-1", RefDes: "Y1"},
			{MPN: "B-1", RefDes: "X3"},
		},
	}
	in.Resync()

	got, err := Filter(in, "x")
	if err != nil {
		t.Fatal(err)
	}
	var mpns []string
	for _, p := range got.NewParts {
		mpns = append(mpns, p.MPN)
	}
	want := []string{"Z-1", "A-1", "B-1"}
	if !reflect.DeepEqual(mpns, want) {
		t.Errorf("order = %v, want %v", mpns, want)
	}
}

func TestFilter_CountsAlwaysConsistent(t *testing.T) {
	terms := []string{"R", "r5", "C", "U1", "zzz", "1", "N/A", "grm", "-"}
	for _, term := range terms {
		got, err := Filter(sampleResult(), term)
		if err != nil {
			t.Fatalf("Filter(%q) error = %v", term, err)
		}
		if !got.Consistent() {
			t.Errorf("Filter(%q) counts %+v inconsistent with lists", term, got.SummaryStats)
		}
		if got.SummaryStats.TotalPartsFile1 != 6 || got.SummaryStats.TotalPartsFile2 != 7 {
			t.Errorf("Filter(%q) changed file totals: %+v", term, got.SummaryStats)
		}
	}
}

func TestFilter_DoesNotMutateInput(t *testing.T) {
	in := sampleResult()
	in.ModifiedParts[0].Diffs = &Diffs{Qty: true}

	got, err := Filter(in, "grm")
	if err != nil {
		t.Fatal(err)
	}
	got.ModifiedParts[0].Diffs.Qty = false
	got.ModifiedParts[0].MPN = "changed"

	if !in.ModifiedParts[0].Diffs.Qty || in.ModifiedParts[0].MPN != "GRM155" {
		t.Error("Filter result shares memory with its input")
	}
	if len(in.NewParts) != 2 || in.SummaryStats.NewPartsCount != 2 {
		t.Error("Filter modified input lists or counts")
	}
}

func TestFilter_RepeatedCallsAgree(t *testing.T) {
	in := sampleResult()
	a, _ := Filter(in, "C1")
	b, _ := Filter(in, "C1")
	if !reflect.DeepEqual(a, b) {
		t.Errorf("repeated Filter calls disagree:\n%+v\n%+v", a, b)
	}
}
