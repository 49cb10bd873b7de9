package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/bomdiff/internal/core"
)

var (
	filterQuery string
	filterShow  []string
)

var filterCmd = &cobra.Command{
	Use:   "filter <result.json>",
	Short: "Search a saved comparison result",
	Long: `Print per-category counts and the matching rows of a saved comparison.

The search term matches MPN and Ref Des case-insensitively. Change rows
list the fields that differ between File 1 and File 2.

Examples:
  bomdiff filter result.json
  bomdiff filter result.json -q R5
  bomdiff filter result.json --show delete,add,change,unchanged`,
	Args: cobra.ExactArgs(1),
	RunE: runFilter,
}

func init() {
	filterCmd.Flags().StringVarP(&filterQuery, "query", "q", "", "Search term (MPN or Ref Des)")
	filterCmd.Flags().StringSliceVar(&filterShow, "show", []string{"delete", "add", "change"}, "Categories whose rows are printed")
	rootCmd.AddCommand(filterCmd)
}

func runFilter(cmd *cobra.Command, args []string) error {
	result, err := readResult(args[0])
	if err != nil {
		return err
	}
	show, err := parseCategories(filterShow)
	if err != nil {
		return err
	}
	return printFiltered(cmd.OutOrStdout(), result, filterQuery, show)
}

func parseCategories(keys []string) (core.CategorySet, error) {
	var set core.CategorySet
	for _, k := range keys {
		c, ok := core.ParseCategory(strings.ToLower(strings.TrimSpace(k)))
		if !ok {
			return set, fmt.Errorf("unknown category %q (want delete, add, change, unchanged or unrecognized)", k)
		}
		set = set.With(c)
	}
	return set, nil
}

// printFiltered writes the counts of every category and the rows of the
// categories in show.
func printFiltered(w io.Writer, result *core.ComparisonResult, term string, show core.CategorySet) error {
	filtered, err := core.Filter(result, term)
	if err != nil {
		return err
	}
	filtered = core.WithDiffs(filtered)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, c := range core.Categories {
		if term != "" {
			fmt.Fprintf(tw, "%s: %d of %d\n", c.Label(), filtered.Count(c), result.Count(c))
		} else {
			fmt.Fprintf(tw, "%s: %d\n", c.Label(), filtered.Count(c))
		}
	}

	for _, c := range core.Categories {
		if !show.Has(c) || filtered.Count(c) == 0 {
			continue
		}
		fmt.Fprintf(tw, "\n%s\n", c.Label())
		if c == core.CategoryModified {
			fmt.Fprintln(tw, "MPN\tFILE 1 REF DES\tFILE 1 QTY\tFILE 2 REF DES\tFILE 2 QTY\tDIFFERS")
			for _, p := range filtered.ModifiedParts {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					p.MPN, p.File1RefDes, p.File1Qty, p.File2RefDes, p.File2Qty, diffFields(p.Diffs))
			}
			continue
		}
		fmt.Fprintln(tw, "MPN\tREF DES\tQTY")
		for _, row := range filtered.Rows(c) {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", row.MPN(), row.RefDes(), row.Qty())
		}
	}
	return tw.Flush()
}

func diffFields(d *core.Diffs) string {
	if d == nil || !d.Any() {
		return "-"
	}
	var fields []string
	if d.RefDes {
		fields = append(fields, "ref des")
	}
	if d.Qty {
		fields = append(fields, "qty")
	}
	if d.Description {
		fields = append(fields, "description")
	}
	if d.Line {
		fields = append(fields, "line")
	}
	return strings.Join(fields, ",")
}
