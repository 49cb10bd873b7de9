package core

import "strings"

// Annotate computes the per-field difference flags for a modified part.
//
// It is a pure function of the raw File1/File2 values and is recomputed on
// every render and export rather than cached. The flags only drive
// highlighting: a part classified as modified stays modified even when all
// flags are false.
func Annotate(p ModifiedPart) Diffs {
	return Diffs{
		Qty:         NormalizeQty(p.File1Qty) != NormalizeQty(p.File2Qty),
		RefDes:      !SetsEqual(ParseRefSet(p.File1RefDes), ParseRefSet(p.File2RefDes)),
		Description: normalizeText(p.File1Description) != normalizeText(p.File2Description),
		Line:        strings.TrimSpace(p.File1Line) != strings.TrimSpace(p.File2Line),
	}
}

// WithDiffs returns a copy of result whose modified parts carry freshly
// computed Diffs. Any Diffs already present on the input are ignored.
func WithDiffs(result *ComparisonResult) *ComparisonResult {
	out := result.Clone()
	if out == nil {
		return nil
	}
	for i := range out.ModifiedParts {
		d := Annotate(out.ModifiedParts[i])
		out.ModifiedParts[i].Diffs = &d
	}
	return out
}
