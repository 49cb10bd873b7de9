package core

// normalize.go canonicalizes quantity and reference-designator values so that
// formatting differences between source spreadsheets ("5" vs "5.0",
// "R1,R2" vs "R2, R1") do not show up as changes.
//
// Every function here is total: dirty input degrades to a pass-through,
// never to an error.

import (
	"math"
	"math/big"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// blankQty are quantity placeholders treated as "no value" (lower-cased).
var blankQty = map[string]bool{
	"na":   true,
	"n/a":  true,
	"none": true,
}

// blankRefDes are reference-designator placeholders treated as "no value" (upper-cased).
var blankRefDes = map[string]bool{
	"NA":        true,
	"N/A":       true,
	"NONE":      true,
	"NULL":      true,
	"UNDEFINED": true,
}

// maxQtyExponent bounds the decimal exponent we are willing to expand.
// "1e999999999" would otherwise allocate a billion-digit string; beyond it
// numbers keep a canonical scientific form.
const maxQtyExponent = 64

// refDesSeparators matches any run of commas, semicolons or whitespace.
var refDesSeparators = regexp.MustCompile(`[,;\s]+`)

// NormalizeQty returns the canonical form of a quantity.
//
// Blank values and the placeholders na, n/a and none become "". Finite
// numbers are rendered without trailing zeros or a trailing decimal point
// ("5.00" -> "5", "5.50" -> "5.5"). Numbers too large or small to expand
// are written as <digits>e<exponent> with trailing zeros moved into the
// exponent, so "1e65" and "10e64" agree. Anything else is returned trimmed
// but otherwise unchanged.
func NormalizeQty(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" || blankQty[strings.ToLower(s)] {
		return ""
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return s
	}
	if d.IsZero() {
		return "0"
	}
	if coef, exp := trimZeros(d.Coefficient(), d.Exponent()); exp > maxQtyExponent || exp < -maxQtyExponent {
		return coef.String() + "e" + strconv.Itoa(int(exp))
	}
	// String drops trailing fractional zeros and expands exponents.
	return d.String()
}

// trimZeros moves trailing zeros of a non-zero coefficient into the exponent.
func trimZeros(coef *big.Int, exp int32) (*big.Int, int32) {
	coef = new(big.Int).Set(coef)
	ten := big.NewInt(10)
	q, r := new(big.Int), new(big.Int)
	for exp < math.MaxInt32 {
		q.QuoRem(coef, ten, r)
		if r.Sign() != 0 {
			break
		}
		coef, q = q, coef
		exp++
	}
	return coef, exp
}

// RefSet is an unordered set of upper-cased reference designators.
type RefSet map[string]struct{}

// ParseRefSet splits a reference-designator field into a set.
// Order, case, duplicates and the choice of delimiter are all ignored.
func ParseRefSet(raw string) RefSet {
	set := RefSet{}
	text := strings.ToUpper(raw)
	if strings.TrimSpace(text) == "" || blankRefDes[strings.TrimSpace(text)] {
		return set
	}

	for _, tok := range refDesSeparators.Split(text, -1) {
		if tok != "" {
			set[tok] = struct{}{}
		}
	}
	return set
}

// Has reports whether the designator is in the set. The lookup is exact;
// callers pass upper-cased values.
func (s RefSet) Has(ref string) bool {
	_, ok := s[ref]
	return ok
}

// Sorted returns the designators in ascending order for stable display.
func (s RefSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for ref := range s {
		out = append(out, ref)
	}
	slices.Sort(out)
	return out
}

// SetsEqual reports whether a and b contain the same designators.
func SetsEqual(a, b RefSet) bool {
	if len(a) != len(b) {
		return false
	}
	for ref := range a {
		if !b.Has(ref) {
			return false
		}
	}
	return true
}

// blankText are description placeholders the backend emits for empty cells.
var blankText = map[string]bool{
	"nan":  true,
	"none": true,
	"null": true,
	"n/a":  true,
}

// normalizeText canonicalizes free text the way the comparison backend does
// before comparing descriptions: trimmed, upper-cased, placeholders blank.
func normalizeText(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" || blankText[strings.ToLower(s)] {
		return ""
	}
	return strings.ToUpper(s)
}
