package marc

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() *Record {
	return &Record{
		Leader: "00000nz  a2200000n  4500",
		Fields: []Field{
			NewControlField("001", "abc"),
			NewDataField("100", "1", "", Subfield{Code: "a", Value: "Name"}),
		},
	}
}

func TestParseLeader(t *testing.T) {
	l, err := ParseLeader("01725cz  a2200433n  4500")
	require.NoError(t, err)

	assert.Equal(t, 1725, l.RecordLength)
	assert.Equal(t, byte('c'), l.Status)
	assert.Equal(t, byte('z'), l.Type)
	assert.Equal(t, byte(' '), l.BibLevel)
	assert.Equal(t, byte('a'), l.CodingScheme)
	assert.Equal(t, byte('2'), l.IndicatorCount)
	assert.Equal(t, 433, l.BaseAddress)
	assert.Equal(t, byte('n'), l.EncodingLevel)
	assert.Equal(t, "4500", l.EntryMap)
	assert.Equal(t, "01725cz  a2200433n  4500", l.String())
}

func TestParseLeaderIrregularWidth(t *testing.T) {
	short, err := ParseLeader("00000cam")
	require.NoError(t, err)
	assert.Len(t, short.String(), LeaderLength)
	assert.Equal(t, byte('a'), short.Type)
	assert.Equal(t, byte('m'), short.BibLevel)

	long, err := ParseLeader("01750ccm a2200421   4500EXTRA")
	require.NoError(t, err)
	assert.Equal(t, "01750ccm a2200421   4500", long.String())

	junk, err := ParseLeader("xxxxxnam a22yyyyy   4500")
	require.NoError(t, err)
	assert.Equal(t, 0, junk.RecordLength)
	assert.Equal(t, 0, junk.BaseAddress)
}

func TestMarshalISO2709(t *testing.T) {
	rec := sampleRecord()
	b, err := rec.MarshalISO2709()
	require.NoError(t, err)

	assert.Len(t, b, 63)
	assert.Equal(t, "00063nz  a2200049n  4500", string(b[:LeaderLength]))
	assert.Equal(t, byte(RecordTerminator), b[len(b)-1])

	n, err := rec.ISO2709Length()
	require.NoError(t, err)
	assert.Equal(t, 63, n)

	back, err := ParseISO2709(b)
	require.NoError(t, err)
	assert.Equal(t, rec.Fields, back.Fields)
}

func TestMarshalISO2709CountsBytes(t *testing.T) {
	rec := &Record{
		Leader: "00000nam a2200000   4500",
		Fields: []Field{NewDataField("245", "0", "0", Subfield{Code: "a", Value: "Żółw"})},
	}
	b, err := rec.MarshalISO2709()
	require.NoError(t, err)
	l := MustParseLeader(string(b[:LeaderLength]))
	assert.Equal(t, len(b), l.RecordLength)
}

func TestParseISO2709RejectsTruncated(t *testing.T) {
	b, err := sampleRecord().MarshalISO2709()
	require.NoError(t, err)

	_, err = ParseISO2709(b[:30])
	assert.True(t, errors.Is(err, ErrMalformed))
	_, err = ParseISO2709([]byte("short"))
	assert.True(t, errors.Is(err, ErrMalformed))
}

func TestMarcJSONPreservesOrder(t *testing.T) {
	rec := &Record{
		Leader: "00000nam a2200000   4500",
		Fields: []Field{
			NewControlField("008", "800108s1899    ilu           000 0 eng  "),
			NewDataField("650", " ", "0", Subfield{Code: "a", Value: "Cats"}, Subfield{Code: "x", Value: "Behavior"}),
			NewControlField("001", "in00001"),
			NewDataField("650", " ", "0", Subfield{Code: "a", Value: "Dogs"}),
		},
	}
	b, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"leader":"00000nam a2200000   4500","fields":[
		{"008":"800108s1899    ilu           000 0 eng  "},
		{"650":{"subfields":[{"a":"Cats"},{"x":"Behavior"}],"ind1":" ","ind2":"0"}},
		{"001":"in00001"},
		{"650":{"subfields":[{"a":"Dogs"}],"ind1":" ","ind2":"0"}}]}`, string(b))

	back, err := ParseJSON(b)
	require.NoError(t, err)
	assert.Equal(t, rec, back)
}

func TestParseJSONRejectsMalformed(t *testing.T) {
	for name, input := range map[string]string{
		"syntax":            `{"leader":`,
		"two tags":          `{"leader":"","fields":[{"001":"a","002":"b"}]}`,
		"bad tag":           `{"leader":"","fields":[{"1":"a"}]}`,
		"number value":      `{"leader":"","fields":[{"245":12}]}`,
		"data as string":    `{"leader":"","fields":[{"245":"Title"}]}`,
		"control as object": `{"leader":"","fields":[{"001":{"subfields":[]}}]}`,
		"multi-code":        `{"leader":"","fields":[{"245":{"ind1":" ","ind2":" ","subfields":[{"a":"x","b":"y"}]}}]}`,
	} {
		_, err := ParseJSON([]byte(input))
		assert.True(t, errors.Is(err, ErrMalformed), "%s: %v", name, err)
	}
}

func TestRecordHelpers(t *testing.T) {
	rec := sampleRecord()
	assert.Equal(t, "abc", rec.ControlNumber())
	assert.Len(t, rec.FieldsByTag("100"), 1)
	assert.Equal(t, []string{"Name"}, rec.Fields[1].SubfieldValues("a"))
	assert.True(t, IsControlTag("009"))
	assert.False(t, IsControlTag("010"))
	assert.True(t, ValidTag("LDR"))
	assert.False(t, ValidTag("24"))
}
