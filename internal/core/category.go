package core

import "strings"

// Category is the classification the comparison backend assigned to a row.
type Category int

const (
	CategoryRemoved      Category = iota // File1 only ("Delete")
	CategoryNew                          // File2 only ("Add")
	CategoryModified                     // in both files, differing ("Change")
	CategoryUnchanged                    // in both files, identical
	CategoryUnrecognized                 // could not be classified
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryRemoved,
	CategoryNew,
	CategoryModified,
	CategoryUnchanged,
	CategoryUnrecognized,
}

// String returns the stable key used in URLs and logs.
func (c Category) String() string {
	switch c {
	case CategoryRemoved:
		return "delete"
	case CategoryNew:
		return "add"
	case CategoryModified:
		return "change"
	case CategoryUnchanged:
		return "unchanged"
	case CategoryUnrecognized:
		return "unrecognized"
	}
	return "unknown"
}

// Label returns the heading shown to users.
func (c Category) Label() string {
	switch c {
	case CategoryRemoved:
		return "Delete (Parts only in File 1)"
	case CategoryNew:
		return "Add (Parts only in File 2)"
	case CategoryModified:
		return "Change (Parts with data differences)"
	case CategoryUnchanged:
		return "Unchanged"
	case CategoryUnrecognized:
		return "Unrecognized"
	}
	return "Unknown"
}

// ParseCategory converts a key produced by String back to a Category.
func ParseCategory(s string) (Category, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, c := range Categories {
		if c.String() == s {
			return c, true
		}
	}
	return 0, false
}

// Row is a tagged variant over the two row shapes. Part is set for every
// category except CategoryModified, which uses Change.
type Row struct {
	Category Category
	Part     BOMPart
	Change   ModifiedPart
}

// MPN returns the manufacturer part number of the row.
func (r Row) MPN() string {
	if r.Category == CategoryModified {
		return r.Change.MPN
	}
	return r.Part.MPN
}

// RefDes returns the reference designators shown in the primary column.
// For modified rows this is the File1 side.
func (r Row) RefDes() string {
	if r.Category == CategoryModified {
		return r.Change.File1RefDes
	}
	return r.Part.RefDes
}

// Qty returns the quantity shown in the primary column.
// For modified rows this is the File1 side.
func (r Row) Qty() string {
	if r.Category == CategoryModified {
		return r.Change.File1Qty
	}
	return r.Part.Qty
}

// Matches reports whether the lower-cased needle occurs in the row's
// MPN or primary reference-designator field.
func (r Row) Matches(needle string) bool {
	return strings.Contains(strings.ToLower(r.MPN()), needle) ||
		strings.Contains(strings.ToLower(r.RefDes()), needle)
}

// CategorySet is an immutable set of categories stored as a bit mask.
type CategorySet uint8

// NewCategorySet builds a set from the given categories.
func NewCategorySet(cats ...Category) CategorySet {
	var s CategorySet
	for _, c := range cats {
		s = s.With(c)
	}
	return s
}

// Has reports whether c is in the set.
func (s CategorySet) Has(c Category) bool {
	return s&(1<<uint(c)) != 0
}

// With returns a copy of the set including c.
func (s CategorySet) With(c Category) CategorySet {
	return s | 1<<uint(c)
}

// Without returns a copy of the set excluding c.
func (s CategorySet) Without(c Category) CategorySet {
	return s &^ (1 << uint(c))
}

// Members returns the categories in display order.
func (s CategorySet) Members() []Category {
	var out []Category
	for _, c := range Categories {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}
