// Package marc models a MARC 21 record (leader, control fields and data fields)
// and serializes it as MARC-in-JSON and as ISO 2709 transmission format.
package marc

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed indicates content that cannot be read as a MARC record.
	ErrMalformed = errors.New("marc: malformed record")
	// ErrTooLong indicates a field or record exceeding the ISO 2709 length fields.
	ErrTooLong = errors.New("marc: length exceeds ISO 2709 limits")
)

// Record is a leader plus an ordered, duplicate-tolerant sequence of fields.
type Record struct {
	Leader string
	Fields []Field
}

// Field is either a control field (Data) or a data field (indicators and subfields).
type Field struct {
	Tag       string
	Data      string
	Ind1      string
	Ind2      string
	Subfields []Subfield
}

// Subfield is one coded value of a data field.
type Subfield struct {
	Code  string
	Value string
}

// NewControlField returns a control field.
func NewControlField(tag, data string) Field {
	return Field{Tag: tag, Data: data}
}

// NewDataField returns a data field; empty indicators become blanks.
func NewDataField(tag, ind1, ind2 string, subfields ...Subfield) Field {
	return Field{Tag: tag, Ind1: indicator(ind1), Ind2: indicator(ind2), Subfields: subfields}
}

// IsControlTag reports whether tag lies in the control field range 001-009.
func IsControlTag(tag string) bool {
	return len(tag) == 3 && tag[0] == '0' && tag[1] == '0' && tag[2] >= '0' && tag[2] <= '9'
}

// ValidTag reports whether tag is three ASCII letters or digits.
func ValidTag(tag string) bool {
	if len(tag) != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		c := tag[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			return false
		}
	}
	return true
}

// IsControl reports whether f is a control field.
func (f Field) IsControl() bool {
	return IsControlTag(f.Tag)
}

// SubfieldValues returns the values of every subfield with the given code.
func (f Field) SubfieldValues(code string) []string {
	var out []string
	for _, sf := range f.Subfields {
		if sf.Code == code {
			out = append(out, sf.Value)
		}
	}
	return out
}

// FieldsByTag returns every field with tag, in record order.
func (r *Record) FieldsByTag(tag string) []Field {
	var out []Field
	for _, f := range r.Fields {
		if f.Tag == tag {
			out = append(out, f)
		}
	}
	return out
}

// ControlNumber returns the content of the first 001 field.
func (r *Record) ControlNumber() string {
	for _, f := range r.Fields {
		if f.Tag == "001" {
			return f.Data
		}
	}
	return ""
}

func indicator(s string) string {
	if s == "" {
		return " "
	}
	return s[:1]
}

func validate(f Field) error {
	if !ValidTag(f.Tag) {
		return fmt.Errorf("%w: invalid tag %q", ErrMalformed, f.Tag)
	}
	if f.IsControl() {
		return nil
	}
	if len(f.Ind1) > 1 || len(f.Ind2) > 1 {
		return fmt.Errorf("%w: field %s indicators must be single characters", ErrMalformed, f.Tag)
	}
	for _, sf := range f.Subfields {
		if len(sf.Code) != 1 {
			return fmt.Errorf("%w: field %s has subfield code %q", ErrMalformed, f.Tag, sf.Code)
		}
	}
	return nil
}
