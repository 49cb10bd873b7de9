package core

import "strings"

// Filter returns the subset of result whose rows match term.
//
// A row matches when term occurs, case-insensitively, in its MPN or in its
// reference designators (the File1 side for modified parts). Each category
// is filtered independently and keeps its original order. The summary
// counts of the returned result always equal the filtered list lengths.
//
// A blank term returns an independent copy of result (see Clone): the rows
// are value-equal, but nil category lists come back as empty lists. A nil
// result is a caller error and yields ErrNoResult. The input is never
// modified, so Filter is safe to call on every keystroke and from several
// goroutines against the same snapshot.
func Filter(result *ComparisonResult, term string) (*ComparisonResult, error) {
	if result == nil {
		return nil, ErrNoResult
	}
	if strings.TrimSpace(term) == "" {
		return result.Clone(), nil
	}

	needle := strings.ToLower(term)
	out := &ComparisonResult{
		NewParts:          filterParts(result.NewParts, CategoryNew, needle),
		RemovedParts:      filterParts(result.RemovedParts, CategoryRemoved, needle),
		ModifiedParts:     filterModified(result.ModifiedParts, needle),
		UnchangedParts:    filterParts(result.UnchangedParts, CategoryUnchanged, needle),
		UnrecognizedParts: filterParts(result.UnrecognizedParts, CategoryUnrecognized, needle),
		SummaryStats:      result.SummaryStats,
	}
	out.Resync()
	return out, nil
}

func filterParts(parts []BOMPart, cat Category, needle string) []BOMPart {
	out := make([]BOMPart, 0, len(parts))
	for _, p := range parts {
		if (Row{Category: cat, Part: p}).Matches(needle) {
			out = append(out, p)
		}
	}
	return out
}

func filterModified(parts []ModifiedPart, needle string) []ModifiedPart {
	out := make([]ModifiedPart, 0, len(parts))
	for _, p := range parts {
		if (Row{Category: CategoryModified, Change: p}).Matches(needle) {
			if p.Diffs != nil {
				d := *p.Diffs
				p.Diffs = &d
			}
			out = append(out, p)
		}
	}
	return out
}
