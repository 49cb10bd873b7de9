package core

// export.go serializes a (possibly filtered) comparison result into a styled
// xlsx workbook that mirrors what the user sees on screen.
//
// Row construction (BuildSheets) is separate from rendering (Export) so the
// field selection and ordering can be checked without opening a workbook.

import (
	"bytes"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"
)

// XLSXContentType is the MIME type of the exported workbook.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Sheet names, in workbook order.
const (
	SheetChange = "Change"
	SheetDelete = "Delete (File1 only)"
	SheetAdd    = "Add (File2 only)"
)

// ColumnLabels is the second header row of every sheet.
var ColumnLabels = []string{"MPN", "Ref Des (F1)", "Qty (F1)", "Ref Des (F2)", "Qty (F2)"}

// columnWidths roughly follow the on-screen table.
var columnWidths = []float64{28, 24, 10, 24, 10}

// Header fill colours (blue for File1, green for File2) and the diff highlight.
const (
	fillFile1     = "DBEAFE"
	fillFile2     = "DCFCE7"
	fillHighlight = "FDE047"
)

// headerRows is the number of header rows above the data.
const headerRows = 2

// Sheet is the logical content of one exported worksheet.
type Sheet struct {
	Name   string
	Banner []string   // first header row; cells B:C and D:E are merged
	Rows   [][]string // data rows, five columns each
	Marks  []Diffs    // per-row highlight flags; only set on the Change sheet
}

// Artifact is a generated download.
type Artifact struct {
	FileName    string
	ContentType string
	Data        []byte
}

// BuildSheets builds the Change, Delete and Add sheets from result.
// It returns nil when result is nil. The input is not modified.
func BuildSheets(result *ComparisonResult, names DisplayNames) []Sheet {
	if result == nil {
		return nil
	}

	banner := []string{
		"MPN",
		"File 1: " + displayName(names.File1, "File 1"),
		"",
		"File 2: " + displayName(names.File2, "File 2"),
		"",
	}

	modified := slices.Clone(result.ModifiedParts)
	slices.SortStableFunc(modified, func(a, b ModifiedPart) int {
		return strings.Compare(a.MPN, b.MPN)
	})

	change := Sheet{Name: SheetChange, Banner: banner}
	for _, p := range modified {
		change.Rows = append(change.Rows, []string{p.MPN, p.File1RefDes, p.File1Qty, p.File2RefDes, p.File2Qty})
		change.Marks = append(change.Marks, Annotate(p))
	}

	del := Sheet{Name: SheetDelete, Banner: banner}
	for _, p := range result.RemovedParts {
		del.Rows = append(del.Rows, []string{p.MPN, p.RefDes, p.Qty, "", ""})
	}

	add := Sheet{Name: SheetAdd, Banner: banner}
	for _, p := range result.NewParts {
		add.Rows = append(add.Rows, []string{p.MPN, "", "", p.RefDes, p.Qty})
	}

	return []Sheet{change, del, add}
}

// Export renders result as an xlsx workbook.
//
// A nil result is a no-op: Export returns a nil artifact and no error, and
// nothing is produced. Calling Export twice on the same input yields
// equivalent workbooks.
func Export(result *ComparisonResult, names DisplayNames) (*Artifact, error) {
	if result == nil {
		return nil, nil
	}

	f := excelize.NewFile()
	defer f.Close()

	st, err := newExportStyles(f)
	if err != nil {
		return nil, fmt.Errorf("export styles: %w", err)
	}

	for i, sheet := range BuildSheets(result, names) {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sheet.Name); err != nil {
				return nil, fmt.Errorf("rename sheet %q: %w", sheet.Name, err)
			}
		} else if _, err := f.NewSheet(sheet.Name); err != nil {
			return nil, fmt.Errorf("add sheet %q: %w", sheet.Name, err)
		}
		if err := writeSheet(f, sheet, st); err != nil {
			return nil, fmt.Errorf("write sheet %q: %w", sheet.Name, err)
		}
	}
	f.SetActiveSheet(0)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	return &Artifact{
		FileName:    ExportFileName(names.File1, names.File2),
		ContentType: XLSXContentType,
		Data:        buf.Bytes(),
	}, nil
}

// exportStyles holds the style IDs registered on a workbook.
type exportStyles struct {
	header, bannerFile1, bannerFile2 int
	data, highlight                  int
}

func newExportStyles(f *excelize.File) (exportStyles, error) {
	thin := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	bold := &excelize.Font{Bold: true}
	wrap := &excelize.Alignment{WrapText: true, Vertical: "top"}
	fill := func(color string) excelize.Fill {
		return excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}}
	}

	var st exportStyles
	var err error
	styles := []struct {
		dst   *int
		style *excelize.Style
	}{
		{&st.header, &excelize.Style{Border: thin, Font: bold}},
		{&st.bannerFile1, &excelize.Style{Border: thin, Font: bold, Fill: fill(fillFile1)}},
		{&st.bannerFile2, &excelize.Style{Border: thin, Font: bold, Fill: fill(fillFile2)}},
		{&st.data, &excelize.Style{Border: thin, Alignment: wrap}},
		{&st.highlight, &excelize.Style{Border: thin, Alignment: wrap, Font: bold, Fill: fill(fillHighlight)}},
	}
	for _, s := range styles {
		if *s.dst, err = f.NewStyle(s.style); err != nil {
			return st, err
		}
	}
	return st, nil
}

func writeSheet(f *excelize.File, sheet Sheet, st exportStyles) error {
	name := sheet.Name

	for i, width := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(name, col, col, width); err != nil {
			return err
		}
	}

	if err := f.SetSheetRow(name, "A1", rowValues(sheet.Banner)); err != nil {
		return err
	}
	if err := f.SetSheetRow(name, "A2", rowValues(ColumnLabels)); err != nil {
		return err
	}
	for _, merge := range [][2]string{{"B1", "C1"}, {"D1", "E1"}} {
		if err := f.MergeCell(name, merge[0], merge[1]); err != nil {
			return err
		}
	}
	for _, s := range []struct {
		from, to string
		style    int
	}{
		{"A1", "E2", st.header},
		{"B1", "C1", st.bannerFile1},
		{"D1", "E1", st.bannerFile2},
	} {
		if err := f.SetCellStyle(name, s.from, s.to, s.style); err != nil {
			return err
		}
	}

	for i, row := range sheet.Rows {
		r := i + headerRows + 1
		if err := f.SetSheetRow(name, fmt.Sprintf("A%d", r), rowValues(row)); err != nil {
			return err
		}
		if err := f.SetCellStyle(name, fmt.Sprintf("A%d", r), fmt.Sprintf("E%d", r), st.data); err != nil {
			return err
		}
		if i < len(sheet.Marks) {
			if err := highlightRow(f, name, r, sheet.Marks[i], st.highlight); err != nil {
				return err
			}
		}
	}

	return f.SetPanes(name, &excelize.Panes{
		Freeze:      true,
		YSplit:      headerRows,
		TopLeftCell: fmt.Sprintf("A%d", headerRows+1),
		ActivePane:  "bottomLeft",
	})
}

// highlightRow marks the File1/File2 cells whose values differ.
func highlightRow(f *excelize.File, sheet string, r int, d Diffs, style int) error {
	var cols []string
	if d.RefDes {
		cols = append(cols, "B", "D")
	}
	if d.Qty {
		cols = append(cols, "C", "E")
	}
	for _, col := range cols {
		cell := fmt.Sprintf("%s%d", col, r)
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return err
		}
	}
	return nil
}

// rowValues adapts a string row to SetSheetRow. Empty strings are left as
// blank cells so merged banner ranges hold a single value.
func rowValues(row []string) *[]interface{} {
	vals := make([]interface{}, len(row))
	for i, v := range row {
		if v != "" {
			vals[i] = v
		}
	}
	return &vals
}

// unsafeFileChars matches every character not allowed in export file names.
var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_.\-]`)

// ExportFileName returns the download name for a comparison of two files.
// Empty names become File1/File2; every character outside [A-Za-z0-9_.-]
// is replaced with an underscore.
func ExportFileName(name1, name2 string) string {
	return fmt.Sprintf("bom_comparison_%s_vs_%s.xlsx",
		sanitizeFileName(displayName(name1, "File1")),
		sanitizeFileName(displayName(name2, "File2")),
	)
}

func sanitizeFileName(name string) string {
	return unsafeFileChars.ReplaceAllString(name, "_")
}

func displayName(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
