package marcutil

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errordefs "github.com/RegistryAccord/registryaccord-qm-go/internal/errors"
)

func TestMarcDateTimeRoundTrip(t *testing.T) {
	times := []time.Time{
		time.Date(2021, 3, 4, 5, 6, 7, 800_000_000, time.UTC),
		time.Date(1999, 12, 31, 23, 59, 59, 900_000_000, time.UTC),
		time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, ts := range times {
		enc := EncodeToMarcDateTime(ts)
		require.Len(t, enc, 16)
		dec, err := DecodeFromMarcDateTime(enc)
		require.NoError(t, err)
		assert.True(t, ts.Equal(dec), "%s != %s", ts, dec)
	}
}

func TestEncodeToMarcDateTime(t *testing.T) {
	ts := time.Date(2013, 1, 2, 3, 4, 5, 670_000_000, time.UTC)
	assert.Equal(t, "20130102030405.6", EncodeToMarcDateTime(ts))
}

func TestDecodeFromMarcDateTimeRejectsMalformed(t *testing.T) {
	for _, s := range []string{
		"",
		"20130102030405",
		"20130102030405.",
		"20130102030405.67",
		"2013010203040.6",
		"2013010203040a.6",
		"20131302030405.6",
		"20130102030405,6",
	} {
		_, err := DecodeFromMarcDateTime(s)
		assert.True(t, errors.Is(err, errordefs.ErrFormat), "input %q: %v", s, err)
	}
}

func TestBlankMasquerading(t *testing.T) {
	assert.Equal(t, `a\\b\`, MasqueradeBlanks("a  b "))
	assert.Equal(t, "a  b ", RestoreBlanks(`a\\b\`))

	for _, s := range []string{"", " ", "abc", " a b c ", "   "} {
		assert.Equal(t, s, RestoreBlanks(MasqueradeBlanks(s)))
	}
	for _, s := range []string{"", `\`, "abc", `\a\b\`} {
		assert.Equal(t, s, MasqueradeBlanks(RestoreBlanks(s)))
	}
}

func TestNormalizeFixedLengthString(t *testing.T) {
	tests := []struct {
		in     string
		length int
		want   string
	}{
		{"ab", 5, `ab\\\`},
		{"abcdef", 3, "abc"},
		{"abc", 3, "abc"},
		{"  a b  ", 4, `a\b\`},
		{"", 2, `\\`},
	}
	for _, tt := range tests {
		got, err := NormalizeFixedLengthString(tt.in, tt.length)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestNormalizeFixedLengthStringLength(t *testing.T) {
	inputs := []string{"", "x", strings.Repeat("y", 50), " padded  "}
	for _, s := range inputs {
		for _, n := range []int{1, 2, 7, 40, 64} {
			got, err := NormalizeFixedLengthString(s, n)
			require.NoError(t, err)
			assert.Len(t, got, n)
		}
	}
}

func TestNormalizeFixedLengthStringRejectsIllegalLength(t *testing.T) {
	for _, n := range []int{0, -1, MaxLength} {
		_, err := NormalizeFixedLengthString("abc", n)
		assert.True(t, errors.Is(err, errordefs.ErrInvalidArgument), "length %d", n)
	}
}

func TestIsValidUUID(t *testing.T) {
	assert.True(t, IsValidUUID("123e4567-e89b-12d3-a456-426614174000"))
	assert.True(t, IsValidUUID("123E4567-E89B-12D3-A456-426614174000"))
	assert.False(t, IsValidUUID("123e4567-e89b-12d3-a456-42661417400"))
	assert.False(t, IsValidUUID("not-a-uuid"))
	assert.False(t, IsValidUUID("123e4567e89b12d3a456426614174000"))
	assert.False(t, IsValidUUID("{123e4567-e89b-12d3-a456-426614174000}"))
}
