package marc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ianlopshire/go-fixedwidth"
)

// LeaderLength is the fixed width of a MARC leader.
const LeaderLength = 24

// Leader is the decoded 24-character record header.
type Leader struct {
	RecordLength      int
	Status            byte
	Type              byte // record-type discriminator, position 06
	BibLevel          byte
	ControlType       byte
	CodingScheme      byte
	IndicatorCount    byte
	SubfieldCodeCount byte
	BaseAddress       int
	EncodingLevel     byte
	DescriptiveForm   byte
	MultipartLevel    byte
	EntryMap          string
}

// leaderLayout is the fixed-width wire layout of Leader (1-based inclusive ranges).
type leaderLayout struct {
	RecordLength      string `fixed:"1,5"`
	Status            string `fixed:"6,6"`
	Type              string `fixed:"7,7"`
	BibLevel          string `fixed:"8,8"`
	ControlType       string `fixed:"9,9"`
	CodingScheme      string `fixed:"10,10"`
	IndicatorCount    string `fixed:"11,11"`
	SubfieldCodeCount string `fixed:"12,12"`
	BaseAddress       string `fixed:"13,17"`
	EncodingLevel     string `fixed:"18,18"`
	DescriptiveForm   string `fixed:"19,19"`
	MultipartLevel    string `fixed:"20,20"`
	EntryMap          string `fixed:"21,24"`
}

// ParseLeader decodes s, padding short input with blanks and ignoring anything
// past position 23. Non-numeric length fields decode as zero.
func ParseLeader(s string) (Leader, error) {
	if n := len(s); n < LeaderLength {
		s += strings.Repeat(" ", LeaderLength-n)
	} else if n > LeaderLength {
		s = s[:LeaderLength]
	}
	var l leaderLayout
	if err := fixedwidth.Unmarshal([]byte(s), &l); err != nil {
		return Leader{}, fmt.Errorf("%w: leader %q: %v", ErrMalformed, s, err)
	}
	return Leader{
		RecordLength:      atoi(l.RecordLength),
		Status:            char(l.Status),
		Type:              char(l.Type),
		BibLevel:          char(l.BibLevel),
		ControlType:       char(l.ControlType),
		CodingScheme:      char(l.CodingScheme),
		IndicatorCount:    char(l.IndicatorCount),
		SubfieldCodeCount: char(l.SubfieldCodeCount),
		BaseAddress:       atoi(l.BaseAddress),
		EncodingLevel:     char(l.EncodingLevel),
		DescriptiveForm:   char(l.DescriptiveForm),
		MultipartLevel:    char(l.MultipartLevel),
		EntryMap:          l.EntryMap,
	}, nil
}

// MustParseLeader is ParseLeader for literals known to be well formed.
func MustParseLeader(s string) Leader {
	l, err := ParseLeader(s)
	if err != nil {
		panic(err)
	}
	return l
}

// String renders the leader as exactly 24 characters.
func (l Leader) String() string {
	layout := leaderLayout{
		RecordLength:      fmt.Sprintf("%05d", clamp(l.RecordLength, 99999)),
		Status:            string(blank(l.Status)),
		Type:              string(blank(l.Type)),
		BibLevel:          string(blank(l.BibLevel)),
		ControlType:       string(blank(l.ControlType)),
		CodingScheme:      string(blank(l.CodingScheme)),
		IndicatorCount:    string(blank(l.IndicatorCount)),
		SubfieldCodeCount: string(blank(l.SubfieldCodeCount)),
		BaseAddress:       fmt.Sprintf("%05d", clamp(l.BaseAddress, 99999)),
		EncodingLevel:     string(blank(l.EncodingLevel)),
		DescriptiveForm:   string(blank(l.DescriptiveForm)),
		MultipartLevel:    string(blank(l.MultipartLevel)),
		EntryMap:          l.EntryMap,
	}
	b, err := fixedwidth.Marshal(layout)
	if err != nil {
		// every member is a plain string; Marshal only fails on unsupported kinds
		panic(fmt.Sprintf("marc: leader layout: %v", err))
	}
	out := strings.TrimRight(string(b), "\r\n")
	if n := len(out); n < LeaderLength {
		out += strings.Repeat(" ", LeaderLength-n)
	}
	return out[:LeaderLength]
}

func char(s string) byte {
	if s == "" {
		return ' '
	}
	return s[0]
}

func blank(b byte) byte {
	if b == 0 {
		return ' '
	}
	return b
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func clamp(n, max int) int {
	if n < 0 {
		return 0
	}
	if n > max {
		return max
	}
	return n
}
