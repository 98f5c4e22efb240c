package marc

import (
	"bytes"
	"fmt"
	"strconv"
)

// ISO 2709 structural characters.
const (
	SubfieldDelimiter = 0x1F
	FieldTerminator   = 0x1E
	RecordTerminator  = 0x1D

	directoryEntryLength = 12
	maxFieldLength       = 9999
	maxRecordLength      = 99999
)

// MarshalISO2709 serializes r in transmission format. The leader written
// carries the recomputed record length and base address of data; every
// other leader position is taken from r.Leader.
func (r *Record) MarshalISO2709() ([]byte, error) {
	leader, err := ParseLeader(r.Leader)
	if err != nil {
		return nil, err
	}

	var dir, data bytes.Buffer
	for _, f := range r.Fields {
		if err := validate(f); err != nil {
			return nil, err
		}
		start := data.Len()
		if f.IsControl() {
			data.WriteString(f.Data)
		} else {
			data.WriteString(indicator(f.Ind1))
			data.WriteString(indicator(f.Ind2))
			for _, sf := range f.Subfields {
				data.WriteByte(SubfieldDelimiter)
				data.WriteString(sf.Code)
				data.WriteString(sf.Value)
			}
		}
		data.WriteByte(FieldTerminator)
		length := data.Len() - start
		if length > maxFieldLength {
			return nil, fmt.Errorf("%w: field %s is %d bytes", ErrTooLong, f.Tag, length)
		}
		fmt.Fprintf(&dir, "%s%04d%05d", f.Tag, length, start)
	}
	dir.WriteByte(FieldTerminator)

	leader.BaseAddress = LeaderLength + dir.Len()
	leader.RecordLength = leader.BaseAddress + data.Len() + 1
	if leader.RecordLength > maxRecordLength {
		return nil, fmt.Errorf("%w: record is %d bytes", ErrTooLong, leader.RecordLength)
	}

	out := make([]byte, 0, leader.RecordLength)
	out = append(out, leader.String()...)
	out = append(out, dir.Bytes()...)
	out = append(out, data.Bytes()...)
	out = append(out, RecordTerminator)
	return out, nil
}

// ISO2709Length returns the serialized byte length of r without keeping the bytes.
func (r *Record) ISO2709Length() (int, error) {
	b, err := r.MarshalISO2709()
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

// ParseISO2709 reads one record in transmission format.
func ParseISO2709(b []byte) (*Record, error) {
	if len(b) < LeaderLength+1 {
		return nil, fmt.Errorf("%w: %d bytes is shorter than a leader", ErrMalformed, len(b))
	}
	leader, err := ParseLeader(string(b[:LeaderLength]))
	if err != nil {
		return nil, err
	}
	base := leader.BaseAddress
	if base <= LeaderLength || base > len(b) {
		return nil, fmt.Errorf("%w: base address %d out of range", ErrMalformed, base)
	}
	dir := b[LeaderLength : base-1]
	if len(dir)%directoryEntryLength != 0 {
		return nil, fmt.Errorf("%w: directory length %d", ErrMalformed, len(dir))
	}

	rec := &Record{Leader: string(b[:LeaderLength])}
	for i := 0; i < len(dir); i += directoryEntryLength {
		entry := dir[i : i+directoryEntryLength]
		tag := string(entry[:3])
		length, err1 := strconv.Atoi(string(entry[3:7]))
		start, err2 := strconv.Atoi(string(entry[7:12]))
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("%w: directory entry %q", ErrMalformed, entry)
		}
		from, to := base+start, base+start+length
		if length < 1 || to > len(b) {
			return nil, fmt.Errorf("%w: field %s out of range", ErrMalformed, tag)
		}
		raw := b[from : to-1] // drop field terminator
		if IsControlTag(tag) {
			rec.Fields = append(rec.Fields, NewControlField(tag, string(raw)))
			continue
		}
		if len(raw) < 2 {
			return nil, fmt.Errorf("%w: field %s lacks indicators", ErrMalformed, tag)
		}
		f := NewDataField(tag, string(raw[0]), string(raw[1]))
		for _, part := range bytes.Split(raw[2:], []byte{SubfieldDelimiter}) {
			if len(part) == 0 {
				continue
			}
			f.Subfields = append(f.Subfields, Subfield{Code: string(part[0]), Value: string(part[1:])})
		}
		rec.Fields = append(rec.Fields, f)
	}
	return rec, nil
}
