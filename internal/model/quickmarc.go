// Package model defines the data structures exchanged by the quickMARC service:
// the QuickMarc editing model consumed by the record-editing UI and the
// parsed-record envelope owned by the record-storage boundary.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// QuickMarc is the editing-oriented representation of one MARC record.
type QuickMarc struct {
	ID                   string         `json:"id,omitempty"`             // Parsed record DTO identifier in storage
	ParsedRecordID       string         `json:"parsedRecordId,omitempty"` // Identifier of the parsed content
	ExternalID           string         `json:"externalId,omitempty"`     // Instance/holdings/authority identifier
	ExternalHrid         string         `json:"externalHrid,omitempty"`   // Human readable external identifier
	MarcFormat           MarcFormat     `json:"marcFormat"`
	Leader               string         `json:"leader"`
	Fields               []FieldItem    `json:"fields"`
	AdditionalInfo       AdditionalInfo `json:"additionalInfo"`
	RelatedRecordVersion string         `json:"relatedRecordVersion,omitempty"`
	Metadata             *Metadata      `json:"metadata,omitempty"`
}

// AdditionalInfo carries flags copied verbatim through conversion.
type AdditionalInfo struct {
	SuppressDiscovery bool `json:"suppressDiscovery"`
}

// Metadata describes the last update of a record.
type Metadata struct {
	UpdatedDate     *time.Time `json:"updatedDate,omitempty"`
	UpdatedByUserID string     `json:"updatedByUserId,omitempty"`
}

// FieldItem is one field of the editing model.
type FieldItem struct {
	Tag        string       `json:"tag"`
	Indicators string       `json:"indicators,omitempty"` // Two characters, data fields only
	Content    FieldContent `json:"content"`
}

// FieldsByTag returns every field carrying tag, in record order.
func (q *QuickMarc) FieldsByTag(tag string) []FieldItem {
	var out []FieldItem
	for _, f := range q.Fields {
		if f.Tag == tag {
			out = append(out, f)
		}
	}
	return out
}

// Subfield is one coded value of a data field.
type Subfield struct {
	Code  string `json:"code"`
	Value string `json:"value"`
}

// ContentKind discriminates the FieldContent union.
type ContentKind int

const (
	ContentEmpty     ContentKind = iota
	ContentText                  // flat string: control fields, or quickMARC "$a ..." text
	ContentSubfields             // ordered subfield pairs: data fields
	ContentPositions             // named positional values: fixed-length control fields
)

func (k ContentKind) String() string {
	switch k {
	case ContentText:
		return "text"
	case ContentSubfields:
		return "subfields"
	case ContentPositions:
		return "positions"
	default:
		return "empty"
	}
}

// FieldContent is the content of a FieldItem: exactly one of a flat string,
// an ordered subfield sequence or a set of named positional values.
type FieldContent struct {
	kind      ContentKind
	text      string
	subfields []Subfield
	positions map[string]string
}

// TextContent returns flat string content.
func TextContent(s string) FieldContent {
	return FieldContent{kind: ContentText, text: s}
}

// SubfieldContent returns ordered subfield content.
func SubfieldContent(subfields ...Subfield) FieldContent {
	return FieldContent{kind: ContentSubfields, subfields: subfields}
}

// PositionalContent returns named positional content.
func PositionalContent(positions map[string]string) FieldContent {
	return FieldContent{kind: ContentPositions, positions: positions}
}

// Kind reports which member of the union is set.
func (c FieldContent) Kind() ContentKind { return c.kind }

// Text returns the flat string content.
func (c FieldContent) Text() string { return c.text }

// Subfields returns the subfield sequence.
func (c FieldContent) Subfields() []Subfield { return c.subfields }

// Positions returns the positional values.
func (c FieldContent) Positions() map[string]string { return c.positions }

// Position returns one positional value.
func (c FieldContent) Position(name string) (string, bool) {
	v, ok := c.positions[name]
	return v, ok
}

// MarshalJSON encodes text as a JSON string, subfields as an array of
// {code, value} objects and positions as an object.
func (c FieldContent) MarshalJSON() ([]byte, error) {
	switch c.kind {
	case ContentText:
		return json.Marshal(c.text)
	case ContentSubfields:
		if c.subfields == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(c.subfields)
	case ContentPositions:
		return json.Marshal(c.positions)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a string, an array of subfields or an object of
// positional values. Positional values given as string arrays are joined.
func (c *FieldContent) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = FieldContent{}
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = TextContent(s)
	case '[':
		var sfs []Subfield
		if err := json.Unmarshal(data, &sfs); err != nil {
			return fmt.Errorf("field content: %w", err)
		}
		*c = SubfieldContent(sfs...)
	case '{':
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("field content: %w", err)
		}
		positions := make(map[string]string, len(raw))
		for name, v := range raw {
			var s string
			if err := json.Unmarshal(v, &s); err == nil {
				positions[name] = s
				continue
			}
			var parts []string
			if err := json.Unmarshal(v, &parts); err != nil {
				return fmt.Errorf("field content: position %q must be a string or string array", name)
			}
			positions[name] = strings.Join(parts, "")
		}
		*c = PositionalContent(positions)
	default:
		return fmt.Errorf("field content: unsupported JSON value %s", string(data))
	}
	return nil
}

// String renders the content for logs and diagnostics.
func (c FieldContent) String() string {
	switch c.kind {
	case ContentText:
		return c.text
	case ContentSubfields:
		var b strings.Builder
		for i, sf := range c.subfields {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString("$" + sf.Code + " " + sf.Value)
		}
		return b.String()
	case ContentPositions:
		names := make([]string, 0, len(c.positions))
		for n := range c.positions {
			names = append(names, n)
		}
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		for _, n := range names {
			parts = append(parts, n+"="+c.positions[n])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return ""
	}
}
