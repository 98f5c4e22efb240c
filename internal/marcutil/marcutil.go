// Package marcutil holds the primitive helpers shared by the MARC codecs:
// blank masquerading, fixed-length normalization, MARC date-time encoding
// and identifier shape checks. Everything here is pure and safe for
// concurrent use.
package marcutil

import (
	"math"
	"regexp"
	"strings"
	"time"

	errordefs "github.com/RegistryAccord/registryaccord-qm-go/internal/errors"
)

const (
	// BlankMarker stands in for a literal space in fixed-field editing views.
	BlankMarker = '\\'

	// MaxLength is the "unbounded" sentinel rejected by NormalizeFixedLengthString.
	MaxLength = math.MaxInt32

	// marcDateTimeLayout renders yyyyMMddHHmmss.d (16 characters).
	marcDateTimeLayout = "20060102150405.0"
)

var (
	marcDateTimePattern = regexp.MustCompile(`^[0-9]{14}\.[0-9]$`)
	uuidPattern         = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
)

// EncodeToMarcDateTime formats t (in UTC) for the 005 field, truncated to deciseconds.
func EncodeToMarcDateTime(t time.Time) string {
	return t.UTC().Format(marcDateTimeLayout)
}

// DecodeFromMarcDateTime parses a 005 value. The result is in UTC.
func DecodeFromMarcDateTime(s string) (time.Time, error) {
	if !marcDateTimePattern.MatchString(s) {
		return time.Time{}, errordefs.Newf(errordefs.QM_FORMAT, "invalid MARC date-time %q: expected yyyyMMddHHmmss.d", s)
	}
	t, err := time.ParseInLocation(marcDateTimeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, errordefs.Wrap(errordefs.QM_FORMAT, "invalid MARC date-time "+s, err)
	}
	return t, nil
}

// MasqueradeBlanks replaces every space with the blank marker.
func MasqueradeBlanks(s string) string {
	return strings.ReplaceAll(s, " ", string(BlankMarker))
}

// RestoreBlanks replaces every blank marker with a space.
func RestoreBlanks(s string) string {
	return strings.ReplaceAll(s, string(BlankMarker), " ")
}

// NormalizeFixedLengthString trims s, masquerades its blanks and forces it to
// exactly length characters, truncating or padding with the blank marker.
func NormalizeFixedLengthString(s string, length int) (string, error) {
	if length <= 0 || length >= MaxLength {
		return "", errordefs.Newf(errordefs.QM_INVALID_ARGUMENT, "length must be > 0 and < %d, got %d", MaxLength, length)
	}
	return FitToLength(MasqueradeBlanks(strings.TrimSpace(s)), length), nil
}

// FitToLength truncates s to length characters or right-pads it with the blank
// marker. Unlike NormalizeFixedLengthString it keeps leading characters in place,
// which positional codecs rely on. Non-positive lengths yield "".
func FitToLength(s string, length int) string {
	if length <= 0 {
		return ""
	}
	r := []rune(s)
	switch {
	case len(r) == length:
		return s
	case len(r) > length:
		return string(r[:length])
	default:
		return s + strings.Repeat(string(BlankMarker), length-len(r))
	}
}

// IsValidUUID reports whether s has the canonical 8-4-4-4-12 hex shape.
func IsValidUUID(s string) bool {
	return uuidPattern.MatchString(s)
}
