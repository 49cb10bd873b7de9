package core

import (
	"bytes"
	"encoding/json"
	"reflect"
)

// The backend builds rows from spreadsheet cells, so a quantity or line
// number may arrive as a JSON number and a blank cell as null. Rows keep
// every field as text; the decoders below accept any scalar.

// looseString decodes a JSON string, number, boolean or null as text.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*s = ""
	case b[0] == '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = looseString(v)
	case b[0] == '{' || b[0] == '[':
		return &json.UnmarshalTypeError{Value: "object", Type: reflect.TypeOf("")}
	default:
		*s = looseString(b)
	}
	return nil
}

func (p *BOMPart) UnmarshalJSON(b []byte) error {
	var w struct {
		MPN         looseString `json:"MPN"`
		RefDes      looseString `json:"Ref Des/LOC"`
		Qty         looseString `json:"Qty"`
		Description looseString `json:"Description"`
		LineNumber  looseString `json:"Line Number"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*p = BOMPart{
		MPN:         string(w.MPN),
		RefDes:      string(w.RefDes),
		Qty:         string(w.Qty),
		Description: string(w.Description),
		LineNumber:  string(w.LineNumber),
	}
	return nil
}

func (p *ModifiedPart) UnmarshalJSON(b []byte) error {
	var w struct {
		MPN              looseString `json:"MPN"`
		File1RefDes      looseString `json:"File1 Ref Des"`
		File2RefDes      looseString `json:"File2 Ref Des"`
		File1Qty         looseString `json:"File1 Qty"`
		File2Qty         looseString `json:"File2 Qty"`
		File1Description looseString `json:"File1 Description"`
		File2Description looseString `json:"File2 Description"`
		File1Line        looseString `json:"File1 Line"`
		File2Line        looseString `json:"File2 Line"`
		Diffs            *Diffs      `json:"diffs"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*p = ModifiedPart{
		MPN:              string(w.MPN),
		File1RefDes:      string(w.File1RefDes),
		File2RefDes:      string(w.File2RefDes),
		File1Qty:         string(w.File1Qty),
		File2Qty:         string(w.File2Qty),
		File1Description: string(w.File1Description),
		File2Description: string(w.File2Description),
		File1Line:        string(w.File1Line),
		File2Line:        string(w.File2Line),
		Diffs:            w.Diffs,
	}
	return nil
}
