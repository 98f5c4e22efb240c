package marc

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MARC-in-JSON shapes. A record is {"leader": "...", "fields": [...]}, every
// field a single-key object: {"001": "data"} for control fields and
// {"245": {"subfields": [{"a": "..."}], "ind1": "1", "ind2": "0"}} for data fields.

type jsonRecord struct {
	Leader string            `json:"leader"`
	Fields []json.RawMessage `json:"fields"`
}

type jsonDataField struct {
	Subfields []json.RawMessage `json:"subfields"`
	Ind1      string            `json:"ind1"`
	Ind2      string            `json:"ind2"`
}

// MarshalJSON writes the record as MARC-in-JSON preserving field and subfield order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	leader, err := json.Marshal(r.Leader)
	if err != nil {
		return nil, err
	}
	buf.WriteString(`{"leader":`)
	buf.Write(leader)
	buf.WriteString(`,"fields":[`)
	for i, f := range r.Fields {
		if err := validate(f); err != nil {
			return nil, err
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		var value []byte
		if f.IsControl() {
			value, err = json.Marshal(f.Data)
		} else {
			value, err = marshalDataField(f)
		}
		if err != nil {
			return nil, fmt.Errorf("marc: field %s: %w", f.Tag, err)
		}
		buf.WriteString(`{"` + f.Tag + `":`)
		buf.Write(value)
		buf.WriteByte('}')
	}
	buf.WriteString("]}")
	return buf.Bytes(), nil
}

func marshalDataField(f Field) ([]byte, error) {
	df := jsonDataField{
		Subfields: make([]json.RawMessage, 0, len(f.Subfields)),
		Ind1:      indicator(f.Ind1),
		Ind2:      indicator(f.Ind2),
	}
	for _, sf := range f.Subfields {
		v, err := json.Marshal(map[string]string{sf.Code: sf.Value})
		if err != nil {
			return nil, err
		}
		df.Subfields = append(df.Subfields, v)
	}
	return json.Marshal(df)
}

// UnmarshalJSON reads MARC-in-JSON, rejecting any field that is not a single-key
// object holding either a string or a data field object.
func (r *Record) UnmarshalJSON(data []byte) error {
	var jr jsonRecord
	if err := json.Unmarshal(data, &jr); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	fields := make([]Field, 0, len(jr.Fields))
	for i, raw := range jr.Fields {
		f, err := unmarshalField(raw)
		if err != nil {
			return fmt.Errorf("%w: field #%d: %v", ErrMalformed, i, err)
		}
		fields = append(fields, f)
	}
	r.Leader = jr.Leader
	r.Fields = fields
	return nil
}

func unmarshalField(raw json.RawMessage) (Field, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return Field{}, err
	}
	if len(obj) != 1 {
		return Field{}, fmt.Errorf("expected exactly one tag, got %d", len(obj))
	}
	for tag, value := range obj {
		if !ValidTag(tag) {
			return Field{}, fmt.Errorf("invalid tag %q", tag)
		}
		value = bytes.TrimSpace(value)
		if len(value) > 0 && value[0] == '"' {
			if !IsControlTag(tag) {
				return Field{}, fmt.Errorf("data field %s must hold an object", tag)
			}
			var data string
			if err := json.Unmarshal(value, &data); err != nil {
				return Field{}, err
			}
			return NewControlField(tag, data), nil
		}
		var df jsonDataField
		if err := json.Unmarshal(value, &df); err != nil {
			return Field{}, fmt.Errorf("field %s: %v", tag, err)
		}
		if IsControlTag(tag) {
			return Field{}, fmt.Errorf("control field %s must hold a string", tag)
		}
		f := NewDataField(tag, df.Ind1, df.Ind2)
		for _, sfRaw := range df.Subfields {
			var sf map[string]string
			if err := json.Unmarshal(sfRaw, &sf); err != nil {
				return Field{}, fmt.Errorf("field %s subfield: %v", tag, err)
			}
			if len(sf) != 1 {
				return Field{}, fmt.Errorf("field %s: subfield must have exactly one code", tag)
			}
			for code, v := range sf {
				if len(code) != 1 {
					return Field{}, fmt.Errorf("field %s: invalid subfield code %q", tag, code)
				}
				f.Subfields = append(f.Subfields, Subfield{Code: code, Value: v})
			}
		}
		return f, nil
	}
	return Field{}, fmt.Errorf("empty field")
}

// ParseJSON parses MARC-in-JSON content.
func ParseJSON(data []byte) (*Record, error) {
	var r Record
	if err := r.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return &r, nil
}
