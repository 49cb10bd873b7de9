package core

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestBuildSheets_Nil(t *testing.T) {
	if got := BuildSheets(nil, DisplayNames{}); got != nil {
		t.Errorf("BuildSheets(nil) = %v, want nil", got)
	}
}

func TestBuildSheets_Rows(t *testing.T) {
	result := &ComparisonResult{
		RemovedParts: []BOMPart{{MPN: "C100", RefDes: "R5", Qty: "2", Description: "ignored"}},
		NewParts:     []BOMPart{{MPN: "D7", RefDes: "U9", Qty: "1"}},
		ModifiedParts: []ModifiedPart{
			{MPN: "C300", File1RefDes: "C1", File1Qty: "1", File2RefDes: "C1,C2", File2Qty: "2"},
			{MPN: "C100", File1RefDes: "R1,R2", File1Qty: "2", File2RefDes: "R2,R1", File2Qty: "2.0"},
		},
	}
	result.Resync()

	sheets := BuildSheets(result, DisplayNames{File1: "old.xlsx", File2: "new.xlsx"})
	if len(sheets) != 3 {
		t.Fatalf("len(sheets) = %d, want 3", len(sheets))
	}

	names := []string{sheets[0].Name, sheets[1].Name, sheets[2].Name}
	if want := []string{SheetChange, SheetDelete, SheetAdd}; !reflect.DeepEqual(names, want) {
		t.Errorf("sheet names = %v, want %v", names, want)
	}

	wantBanner := []string{"MPN", "File 1: old.xlsx", "", "File 2: new.xlsx", ""}
	for _, s := range sheets {
		if !reflect.DeepEqual(s.Banner, wantBanner) {
			t.Errorf("%s banner = %v, want %v", s.Name, s.Banner, wantBanner)
		}
	}

	change := sheets[0]
	wantChange := [][]string{
		{"C100", "R1,R2", "2", "R2,R1", "2.0"},
		{"C300", "C1", "1", "C1,C2", "2"},
	}
	if !reflect.DeepEqual(change.Rows, wantChange) {
		t.Errorf("Change rows = %v, want %v", change.Rows, wantChange)
	}
	if change.Marks[0].Any() {
		t.Errorf("C100 marks = %+v, want none", change.Marks[0])
	}
	if !change.Marks[1].Qty || !change.Marks[1].RefDes {
		t.Errorf("C300 marks = %+v, want Qty and RefDes", change.Marks[1])
	}

	if want := [][]string{{"C100", "R5", "2", "", ""}}; !reflect.DeepEqual(sheets[1].Rows, want) {
		t.Errorf("Delete rows = %v, want %v", sheets[1].Rows, want)
	}
	if want := [][]string{{"D7", "", "", "U9", "1"}}; !reflect.DeepEqual(sheets[2].Rows, want) {
		t.Errorf("Add rows = %v, want %v", sheets[2].Rows, want)
	}

	// Sorting the Change sheet must not reorder the caller's slice.
	if result.ModifiedParts[0].MPN != "C300" {
		t.Error("BuildSheets reordered the input")
	}
}

func TestBuildSheets_PlaceholderNames(t *testing.T) {
	sheets := BuildSheets(&ComparisonResult{}, DisplayNames{})
	want := []string{"MPN", "File 1: File 1", "", "File 2: File 2", ""}
	if !reflect.DeepEqual(sheets[0].Banner, want) {
		t.Errorf("banner = %v, want %v", sheets[0].Banner, want)
	}
	for _, s := range sheets {
		if len(s.Rows) != 0 {
			t.Errorf("%s rows = %v, want none", s.Name, s.Rows)
		}
	}
}

func TestExportFileName(t *testing.T) {
	tests := []struct {
		name   string
		n1, n2 string
		want   string
	}{
		{"plain", "a.xlsx", "b.xlsx", "bom_comparison_a.xlsx_vs_b.xlsx.xlsx"},
		{"spaces and parens", "Rev A (final).xlsx", "rev-b.xlsx", "bom_comparison_Rev_A__final_.xlsx_vs_rev-b.xlsx.xlsx"},
		{"empty names", "", "", "bom_comparison_File1_vs_File2.xlsx"},
		{"one empty", "x.xls", "", "bom_comparison_x.xls_vs_File2.xlsx"},
		{"path separators", "../etc/p", "a\\b", "bom_comparison_.._etc_p_vs_a_b.xlsx"},
		{"non ascii", "Stückliste.xlsx", "b", "bom_comparison_St_ckliste.xlsx_vs_b.xlsx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExportFileName(tt.n1, tt.n2); got != tt.want {
				t.Errorf("ExportFileName(%q, %q) = %q, want %q", tt.n1, tt.n2, got, tt.want)
			}
		})
	}
}

func TestExport_Nil(t *testing.T) {
	a, err := Export(nil, DisplayNames{File1: "a", File2: "b"})
	if err != nil || a != nil {
		t.Errorf("Export(nil) = %v, %v, want nil, nil", a, err)
	}
}

func TestExport_Workbook(t *testing.T) {
	result := sampleResult()
	names := DisplayNames{File1: "old bom.xlsx", File2: "new.xlsx"}

	a, err := Export(result, names)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if a.FileName != "bom_comparison_old_bom.xlsx_vs_new.xlsx.xlsx" {
		t.Errorf("FileName = %q", a.FileName)
	}
	if a.ContentType != XLSXContentType {
		t.Errorf("ContentType = %q, want %q", a.ContentType, XLSXContentType)
	}

	f, err := excelize.OpenReader(bytes.NewReader(a.Data))
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	if got, want := f.GetSheetList(), []string{SheetChange, SheetDelete, SheetAdd}; !reflect.DeepEqual(got, want) {
		t.Fatalf("sheets = %v, want %v", got, want)
	}

	for _, sheet := range BuildSheets(result, names) {
		rows, err := f.GetRows(sheet.Name)
		if err != nil {
			t.Fatalf("GetRows(%q) error = %v", sheet.Name, err)
		}
		want := append([][]string{sheet.Banner, ColumnLabels}, sheet.Rows...)
		if len(rows) != len(want) {
			t.Fatalf("%s: %d rows, want %d", sheet.Name, len(rows), len(want))
		}
		for i := range want {
			if got := pad(rows[i], 5); !reflect.DeepEqual(got, want[i]) {
				t.Errorf("%s row %d = %v, want %v", sheet.Name, i+1, got, want[i])
			}
		}

		merges, err := f.GetMergeCells(sheet.Name)
		if err != nil {
			t.Fatalf("GetMergeCells(%q) error = %v", sheet.Name, err)
		}
		var ranges []string
		for _, m := range merges {
			ranges = append(ranges, m.GetStartAxis()+":"+m.GetEndAxis())
		}
		if !reflect.DeepEqual(ranges, []string{"B1:C1", "D1:E1"}) {
			t.Errorf("%s merges = %v, want [B1:C1 D1:E1]", sheet.Name, ranges)
		}
	}

	// The input stays untouched and a second export carries the same cells.
	if !reflect.DeepEqual(result, sampleResult()) {
		t.Error("Export modified its input")
	}
	b, err := Export(result, names)
	if err != nil {
		t.Fatal(err)
	}
	g, err := excelize.OpenReader(bytes.NewReader(b.Data))
	if err != nil {
		t.Fatal(err)
	}
	defer g.Close()
	r1, _ := f.GetRows(SheetChange)
	r2, _ := g.GetRows(SheetChange)
	if !reflect.DeepEqual(r1, r2) {
		t.Errorf("second export differs:\n%v\n%v", r1, r2)
	}
}

func TestExport_FilteredResult(t *testing.T) {
	filtered, err := Filter(sampleResult(), "R5")
	if err != nil {
		t.Fatal(err)
	}
	a, err := Export(filtered, DisplayNames{})
	if err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(a.Data))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	add, _ := f.GetRows(SheetAdd)
	if len(add) != headerRows+1 {
		t.Fatalf("Add sheet rows = %d, want %d", len(add), headerRows+1)
	}
	if got := pad(add[2], 5); !reflect.DeepEqual(got, []string{"C100", "", "", "R5,R6", "2"}) {
		t.Errorf("Add data row = %v", got)
	}

	del, _ := f.GetRows(SheetDelete)
	if len(del) != headerRows {
		t.Errorf("Delete sheet rows = %d, want header only", len(del))
	}
}

// pad extends row with empty cells; GetRows drops trailing blanks.
func pad(row []string, n int) []string {
	out := make([]string, n)
	copy(out, row)
	return out
}
