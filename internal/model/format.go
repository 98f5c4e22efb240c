package model

import (
	"fmt"

	errordefs "github.com/RegistryAccord/registryaccord-qm-go/internal/errors"
)

// MarcFormat is the record format as the editing UI names it.
type MarcFormat string

const (
	FormatBibliographic MarcFormat = "BIBLIOGRAPHIC"
	FormatAuthority     MarcFormat = "AUTHORITY"
	FormatHoldings      MarcFormat = "HOLDINGS"
)

// RecordType is the record type enumeration of the record-storage boundary.
type RecordType string

const (
	RecordTypeBib       RecordType = "MARC_BIB"
	RecordTypeAuthority RecordType = "MARC_AUTHORITY"
	RecordTypeHolding   RecordType = "MARC_HOLDING"
)

// formatTypePairs is the closed universe of the format/type bijection.
var formatTypePairs = [...]struct {
	format MarcFormat
	typ    RecordType
}{
	{FormatBibliographic, RecordTypeBib},
	{FormatAuthority, RecordTypeAuthority},
	{FormatHoldings, RecordTypeHolding},
}

var (
	typeByFormat = make(map[MarcFormat]RecordType, len(formatTypePairs))
	formatByType = make(map[RecordType]MarcFormat, len(formatTypePairs))
)

func init() {
	for _, p := range formatTypePairs {
		if _, dup := typeByFormat[p.format]; dup {
			panic(fmt.Sprintf("model: format %s mapped twice", p.format))
		}
		if _, dup := formatByType[p.typ]; dup {
			panic(fmt.Sprintf("model: record type %s mapped twice", p.typ))
		}
		typeByFormat[p.format] = p.typ
		formatByType[p.typ] = p.format
	}
	for f, t := range typeByFormat {
		if formatByType[t] != f {
			panic(fmt.Sprintf("model: format %s and record type %s are not mutually inverse", f, t))
		}
	}
}

// Formats returns every defined format in table order.
func Formats() []MarcFormat {
	out := make([]MarcFormat, 0, len(formatTypePairs))
	for _, p := range formatTypePairs {
		out = append(out, p.format)
	}
	return out
}

// RecordTypes returns every defined record type in table order.
func RecordTypes() []RecordType {
	out := make([]RecordType, 0, len(formatTypePairs))
	for _, p := range formatTypePairs {
		out = append(out, p.typ)
	}
	return out
}

// RecordTypeOf maps a format to its record type.
func RecordTypeOf(f MarcFormat) (RecordType, error) {
	t, ok := typeByFormat[f]
	if !ok {
		return "", errordefs.Newf(errordefs.QM_UNSUPPORTED_FORMAT, "unsupported MARC format %q", string(f))
	}
	return t, nil
}

// FormatOf maps a record type to its format.
func FormatOf(t RecordType) (MarcFormat, error) {
	f, ok := formatByType[t]
	if !ok {
		return "", errordefs.Newf(errordefs.QM_UNSUPPORTED_FORMAT, "unsupported record type %q", string(t))
	}
	return f, nil
}

// Valid reports whether f is one of the defined formats.
func (f MarcFormat) Valid() bool {
	_, ok := typeByFormat[f]
	return ok
}
