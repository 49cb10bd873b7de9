package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/bomdiff/internal/compare"
	"github.com/JonMunkholm/bomdiff/internal/core"
)

func sampleResult() *core.ComparisonResult {
	r := &core.ComparisonResult{
		RemovedParts: []core.BOMPart{{MPN: "LM358", RefDes: "U1", Qty: "1"}},
		NewParts:     []core.BOMPart{{MPN: "C100", RefDes: "R5,R6", Qty: "2"}},
		ModifiedParts: []core.ModifiedPart{
			{MPN: "GRM155", File1RefDes: "C1,C2", File2RefDes: "C1,C2,C3", File1Qty: "2", File2Qty: "3"},
			{MPN: "RC0402", File1RefDes: "R1,R2", File2RefDes: "R2,R1", File1Qty: "2", File2Qty: "2.0", File1Line: "4", File2Line: "7"},
		},
		UnchangedParts: []core.BOMPart{{MPN: "BAT54", RefDes: "D1", Qty: "1"}},
	}
	r.Resync()
	return r
}

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "result.json")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := writeResult(f, sampleResult()); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDecodeResult_Resyncs(t *testing.T) {
	body := `{"new_parts":[{"MPN":"A","Qty":2}],"summary_stats":{"new_parts_count":5,"total_parts_file2":1}}`
	r, err := decodeResult(strings.NewReader(body), "inline")
	if err != nil {
		t.Fatal(err)
	}
	if r.SummaryStats.NewPartsCount != 1 || r.SummaryStats.TotalPartsFile2 != 1 {
		t.Errorf("stats = %+v", r.SummaryStats)
	}
	if r.NewParts[0].Qty != "2" {
		t.Errorf("Qty = %q, want 2", r.NewParts[0].Qty)
	}

	if _, err := decodeResult(strings.NewReader("{"), "broken"); err == nil {
		t.Error("decodeResult accepted truncated JSON")
	}
}

func TestParseCategories(t *testing.T) {
	set, err := parseCategories([]string{"delete", " Change "})
	if err != nil {
		t.Fatal(err)
	}
	if !set.Has(core.CategoryRemoved) || !set.Has(core.CategoryModified) || set.Has(core.CategoryNew) {
		t.Errorf("set = %v", set.Members())
	}
	if _, err := parseCategories([]string{"modified"}); err == nil {
		t.Error("parseCategories accepted an unknown key")
	}
}

func TestPrintFiltered(t *testing.T) {
	tests := []struct {
		name    string
		term    string
		show    core.CategorySet
		want    []string
		notWant []string
	}{
		{
			name:    "all rows",
			show:    core.NewCategorySet(core.CategoryRemoved, core.CategoryNew, core.CategoryModified),
			want:    []string{"LM358", "C100", "GRM155", "ref des,qty", "RC0402", "line"},
			notWant: []string{"BAT54"},
		},
		{
			name:    "search narrows rows and shows totals",
			term:    "r5",
			show:    core.NewCategorySet(core.CategoryRemoved, core.CategoryNew, core.CategoryModified),
			want:    []string{"C100", "Delete (Parts only in File 1): 0 of 1", "Add (Parts only in File 2): 1 of 1"},
			notWant: []string{"LM358", "GRM155"},
		},
		{
			name: "unchanged on request",
			show: core.NewCategorySet(core.CategoryUnchanged),
			want: []string{"BAT54"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := printFiltered(&buf, sampleResult(), tt.term, tt.show); err != nil {
				t.Fatal(err)
			}
			out := buf.String()
			for _, s := range tt.want {
				if !strings.Contains(out, s) {
					t.Errorf("output missing %q:\n%s", s, out)
				}
			}
			for _, s := range tt.notWant {
				if strings.Contains(out, s) {
					t.Errorf("output contains %q:\n%s", s, out)
				}
			}
		})
	}
}

func TestExportResult(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	names := core.DisplayNames{File1: "rev a.xlsx", File2: "rev-b.xlsx"}

	path, err := exportResult(sampleResult(), names, "grm", dir)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "bom_comparison_rev_a.xlsx_vs_rev-b.xlsx.xlsx" {
		t.Errorf("path = %s", path)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := f.GetRows(core.SheetChange)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 || rows[2][0] != "GRM155" {
		t.Errorf("Change rows = %v", rows)
	}
}

func TestReadSource(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "Rev-A.XLSX")
	if err := os.WriteFile(good, []byte("PK"), 0o644); err != nil {
		t.Fatal(err)
	}

	src, err := readSource(good)
	if err != nil {
		t.Fatal(err)
	}
	if src.Name != "Rev-A.XLSX" || string(src.Data) != "PK" {
		t.Errorf("source = %+v", src)
	}

	if _, err := readSource(filepath.Join(dir, "bom.csv")); !errors.Is(err, compare.ErrUnsupportedFile) {
		t.Errorf("readSource(csv) error = %v, want ErrUnsupportedFile", err)
	}
}

func TestCompareThenFilterCommands(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/compare" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(sampleResult())
	}))
	defer backend.Close()

	dir := t.TempDir()
	for _, name := range []string{"a.xlsx", "b.xlsx"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("PK"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	out := filepath.Join(dir, "result.json")

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	rootCmd.SetArgs([]string{"compare", filepath.Join(dir, "a.xlsx"), filepath.Join(dir, "b.xlsx"), "--backend", backend.URL, "-o", out})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("compare: %v", err)
	}
	if !strings.Contains(stderr.String(), "Change: 2") {
		t.Errorf("summary = %q", stderr.String())
	}

	rootCmd.SetArgs([]string{"filter", out, "-q", "U1", "--show", "delete"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("filter: %v", err)
	}
	if !strings.Contains(stdout.String(), "LM358") {
		t.Errorf("filter output = %q", stdout.String())
	}
}

func TestFilterCommand_MissingFile(t *testing.T) {
	rootCmd.SetArgs([]string{"filter", filepath.Join(t.TempDir(), "nope.json")})
	if err := rootCmd.Execute(); err == nil {
		t.Error("filter on a missing file succeeded")
	}
}

func TestExportCommand(t *testing.T) {
	path := writeSample(t)
	dir := t.TempDir()

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	t.Cleanup(func() { rootCmd.SetOut(nil) })

	rootCmd.SetArgs([]string{"export", path, "-q", "", "--name1", "a.xlsx", "--name2", "b.xlsx", "-d", dir})
	if err := rootCmd.Execute(); err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dir, "bom_comparison_a.xlsx_vs_b.xlsx.xlsx")
	if strings.TrimSpace(stdout.String()) != want {
		t.Errorf("printed %q, want %q", stdout.String(), want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Error(err)
	}
}

func TestHistoryPurgeRequiresConfirmation(t *testing.T) {
	rootCmd.SetArgs([]string{"history", "purge", "--yes=false"})
	err := rootCmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "--yes") {
		t.Errorf("purge error = %v, want confirmation error", err)
	}
}
