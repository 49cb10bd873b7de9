package core

import (
	"errors"
	"slices"
)

// ErrNoResult is returned when an operation that requires a comparison
// result is handed nil. An absent result must never look like "no matches".
var ErrNoResult = errors.New("no comparison result")

// BOMPart is one line item from a single BOM file.
// Qty and LineNumber stay raw strings; upstream does not guarantee numbers.
type BOMPart struct {
	MPN         string `json:"MPN"`
	RefDes      string `json:"Ref Des/LOC"`
	Qty         string `json:"Qty"`
	Description string `json:"Description"`
	LineNumber  string `json:"Line Number"`
}

// Diffs flags which fields of a modified part differ in a meaningful way.
// It is derived for presentation and always recomputable via Annotate.
type Diffs struct {
	Qty         bool `json:"Qty"`
	Description bool `json:"Description"`
	RefDes      bool `json:"RefDes"`
	Line        bool `json:"Line"`
}

// Any reports whether at least one field differs.
func (d Diffs) Any() bool {
	return d.Qty || d.Description || d.RefDes || d.Line
}

// ModifiedPart pairs the File1 and File2 variants of one matched MPN.
type ModifiedPart struct {
	MPN              string `json:"MPN"`
	File1RefDes      string `json:"File1 Ref Des"`
	File2RefDes      string `json:"File2 Ref Des"`
	File1Qty         string `json:"File1 Qty"`
	File2Qty         string `json:"File2 Qty"`
	File1Description string `json:"File1 Description"`
	File2Description string `json:"File2 Description"`
	File1Line        string `json:"File1 Line"`
	File2Line        string `json:"File2 Line"`
	Diffs            *Diffs `json:"diffs,omitempty"`
}

// SummaryStats holds aggregate counts for a ComparisonResult.
// The per-category counts must equal the length of the matching list;
// the file totals describe the source files and are carried through as-is.
type SummaryStats struct {
	TotalPartsFile1        int `json:"total_parts_file1"`
	TotalPartsFile2        int `json:"total_parts_file2"`
	NewPartsCount          int `json:"new_parts_count"`
	RemovedPartsCount      int `json:"removed_parts_count"`
	ModifiedPartsCount     int `json:"modified_parts_count"`
	UnchangedPartsCount    int `json:"unchanged_parts_count"`
	UnrecognizedPartsCount int `json:"unrecognized_parts_count"`
}

// ComparisonResult is the five-way classified output of the comparison backend.
type ComparisonResult struct {
	NewParts          []BOMPart      `json:"new_parts"`
	RemovedParts      []BOMPart      `json:"removed_parts"`
	ModifiedParts     []ModifiedPart `json:"modified_parts"`
	UnchangedParts    []BOMPart      `json:"unchanged_parts"`
	UnrecognizedParts []BOMPart      `json:"unrecognized_parts"`
	SummaryStats      SummaryStats   `json:"summary_stats"`
}

// Clone returns a deep copy that shares no slices with r.
// Nil lists are normalised to empty lists so JSON output never carries null.
func (r *ComparisonResult) Clone() *ComparisonResult {
	if r == nil {
		return nil
	}
	out := &ComparisonResult{
		NewParts:          clonePart(r.NewParts),
		RemovedParts:      clonePart(r.RemovedParts),
		ModifiedParts:     make([]ModifiedPart, len(r.ModifiedParts)),
		UnchangedParts:    clonePart(r.UnchangedParts),
		UnrecognizedParts: clonePart(r.UnrecognizedParts),
		SummaryStats:      r.SummaryStats,
	}
	for i, p := range r.ModifiedParts {
		if p.Diffs != nil {
			d := *p.Diffs
			p.Diffs = &d
		}
		out.ModifiedParts[i] = p
	}
	return out
}

func clonePart(parts []BOMPart) []BOMPart {
	if parts == nil {
		return []BOMPart{}
	}
	return slices.Clone(parts)
}

// Resync sets every per-category count to the length of its list.
func (r *ComparisonResult) Resync() {
	r.SummaryStats.NewPartsCount = len(r.NewParts)
	r.SummaryStats.RemovedPartsCount = len(r.RemovedParts)
	r.SummaryStats.ModifiedPartsCount = len(r.ModifiedParts)
	r.SummaryStats.UnchangedPartsCount = len(r.UnchangedParts)
	r.SummaryStats.UnrecognizedPartsCount = len(r.UnrecognizedParts)
}

// Consistent reports whether every per-category count matches its list.
func (r *ComparisonResult) Consistent() bool {
	s := r.SummaryStats
	return s.NewPartsCount == len(r.NewParts) &&
		s.RemovedPartsCount == len(r.RemovedParts) &&
		s.ModifiedPartsCount == len(r.ModifiedParts) &&
		s.UnchangedPartsCount == len(r.UnchangedParts) &&
		s.UnrecognizedPartsCount == len(r.UnrecognizedParts)
}

// Count returns the summary count for a category.
func (r *ComparisonResult) Count(c Category) int {
	switch c {
	case CategoryRemoved:
		return r.SummaryStats.RemovedPartsCount
	case CategoryNew:
		return r.SummaryStats.NewPartsCount
	case CategoryModified:
		return r.SummaryStats.ModifiedPartsCount
	case CategoryUnchanged:
		return r.SummaryStats.UnchangedPartsCount
	case CategoryUnrecognized:
		return r.SummaryStats.UnrecognizedPartsCount
	}
	return 0
}

// Rows returns the rows of one category as tagged variants, in list order.
func (r *ComparisonResult) Rows(c Category) []Row {
	if c == CategoryModified {
		rows := make([]Row, len(r.ModifiedParts))
		for i, p := range r.ModifiedParts {
			rows[i] = Row{Category: c, Change: p}
		}
		return rows
	}
	parts := r.parts(c)
	rows := make([]Row, len(parts))
	for i, p := range parts {
		rows[i] = Row{Category: c, Part: p}
	}
	return rows
}

// parts returns the BOMPart list backing a single-file category.
func (r *ComparisonResult) parts(c Category) []BOMPart {
	switch c {
	case CategoryRemoved:
		return r.RemovedParts
	case CategoryNew:
		return r.NewParts
	case CategoryUnchanged:
		return r.UnchangedParts
	case CategoryUnrecognized:
		return r.UnrecognizedParts
	}
	return nil
}

// SourceFile is one uploaded BOM spreadsheet handed to the comparison backend.
type SourceFile struct {
	Name string
	Data []byte
}

// DisplayNames carries the user-facing names of the two compared files.
type DisplayNames struct {
	File1 string
	File2 string
}
