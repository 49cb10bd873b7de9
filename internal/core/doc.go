// Package core is the reconciliation engine behind the BOM comparison
// service. It has no UI or transport dependencies and is shared by the web
// server and the command-line tool.
//
// # Results
//
// A [ComparisonResult] is the five-way classification produced by the
// comparison backend: parts only in File 1 (Delete), only in File 2 (Add),
// in both with differences (Change), unchanged, and unrecognized. The core
// never decides which parts correspond; it only presents, filters and
// exports what the backend classified.
//
// # Normalization and Diffs
//
// [NormalizeQty] and [ParseRefSet] canonicalize values so that "5" and
// "5.00", or "R1,R2" and "r2 r1", compare equal. [Annotate] uses them to
// flag which fields of a modified part really differ.
//
// # Filtering
//
// [Filter] narrows a result to rows whose MPN or reference designators
// contain a search term and keeps the summary counts in step with the lists:
//
//	filtered, err := core.Filter(result, "R5")
//	if err != nil {
//	    return err // core.ErrNoResult
//	}
//
// # Export
//
// [Export] writes the Change, Delete and Add rows of a (filtered) result to a
// three-sheet xlsx workbook named by [ExportFileName].
//
// # Sessions
//
// [Service] runs comparisons through a [Comparer], bounded by a
// [CompareLimiter], and keeps results in memory for a sliding TTL. Nothing
// about a session outlives the process except the optional metadata passed
// to a [HistoryRecorder].
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Codes: FILE (uploads), CMP (backend calls), SES (sessions), RATE
// (throttling) and ERR000 (anything else).
package core
