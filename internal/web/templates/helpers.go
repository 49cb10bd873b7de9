// Package templates renders the HTML pages and HTMX fragments of the
// comparison UI. Components live in the .templ files; run templ generate
// after editing them.
package templates

//go:generate go run github.com/a-h/templ/cmd/templ@v0.3.960 generate

import (
	"net/url"
	"strings"

	"github.com/JonMunkholm/bomdiff/internal/core"
)

// HTMXSource is the script URL the layout loads htmx from.
const HTMXSource = "https://unpkg.com/htmx.org@1.9.12"

// summaryCategories get a card above the sections.
var summaryCategories = []core.Category{core.CategoryRemoved, core.CategoryNew, core.CategoryModified}

// ComparePath is the page URL of a session.
func ComparePath(id string) string {
	return "/compare/" + url.PathEscape(id)
}

// ViewURL is the page URL of a session rendered through state.
func ViewURL(id string, state core.ViewState) string {
	return ComparePath(id) + "?" + state.Query().Encode()
}

// ExportURL downloads the workbook for the session filtered by search.
func ExportURL(id, search string) string {
	u := "/api/compare/" + url.PathEscape(id) + "/export"
	if search != "" {
		u += "?" + url.Values{"q": {search}}.Encode()
	}
	return u
}

// PrintURL opens the print view for state.
func PrintURL(id string, state core.ViewState) string {
	return ComparePath(id) + "/print?" + state.Query().Encode()
}

func discardPath(id string) string {
	return ComparePath(id) + "/discard"
}

func pageTitle(v *core.View) string {
	return displayName(v.Names.File1, "File 1") + " vs " + displayName(v.Names.File2, "File 2") + " - BOM Comparison"
}

func displayName(name, placeholder string) string {
	if name == "" {
		return placeholder
	}
	return name
}

func cardTitle(c core.Category) string {
	switch c {
	case core.CategoryRemoved:
		return "Delete (in File 1 only)"
	case core.CategoryNew:
		return "Add (in File 2 only)"
	case core.CategoryModified:
		return "Change (data differences)"
	}
	return c.Label()
}

func unfilteredCount(s core.SummaryStats, c core.Category) int {
	return (&core.ComparisonResult{SummaryStats: s}).Count(c)
}

// diffsOf prefers the flags the view already computed.
func diffsOf(p core.ModifiedPart) core.Diffs {
	if p.Diffs != nil {
		return *p.Diffs
	}
	return core.Annotate(p)
}

func otherChanges(p core.ModifiedPart, d core.Diffs) string {
	var notes []string
	if d.Description {
		notes = append(notes, "Description: "+p.File1Description+" -> "+p.File2Description)
	}
	if d.Line {
		notes = append(notes, "Line: "+p.File1Line+" -> "+p.File2Line)
	}
	return strings.Join(notes, "; ")
}
