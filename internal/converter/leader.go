package converter

import (
	"fmt"
	"strings"

	"github.com/RegistryAccord/registryaccord-qm-go/internal/marc"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/marcutil"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/model"
)

// Default leaders for records created without one.
var defaultLeaders = map[model.MarcFormat]string{
	model.FormatBibliographic: "00000nam a2200000   4500",
	model.FormatAuthority:     "00000nz  a2200000n  4500",
	model.FormatHoldings:      "00000nx  a2200000zn 4500",
}

// Valid leader/06 record types per format.
var validRecordTypes = map[model.MarcFormat]string{
	model.FormatBibliographic: "acdefgijkmoprt",
	model.FormatAuthority:     "z",
	model.FormatHoldings:      "uvxy",
}

// BuildLeader restores the wire form of an edited leader (or the format's
// default when empty), verifies its record type against format and forces
// the structural positions. The record length is left for the caller.
func BuildLeader(edited string, format model.MarcFormat) (marc.Leader, error) {
	raw := marcutil.RestoreBlanks(edited)
	if strings.TrimSpace(raw) == "" {
		raw = defaultLeaders[format]
	}
	if n := len([]rune(raw)); n != marc.LeaderLength {
		return marc.Leader{}, fmt.Errorf("leader must be %d characters, got %d", marc.LeaderLength, n)
	}
	leader, err := marc.ParseLeader(raw)
	if err != nil {
		return marc.Leader{}, err
	}
	if !strings.ContainsRune(validRecordTypes[format], rune(leader.Type)) {
		return marc.Leader{}, fmt.Errorf("leader/06 %q is not a %s record type", leader.Type, format)
	}
	leader.IndicatorCount = '2'
	leader.SubfieldCodeCount = '2'
	leader.EntryMap = "4500"
	return leader, nil
}
