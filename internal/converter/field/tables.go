package field

import (
	"github.com/RegistryAccord/registryaccord-qm-go/internal/marc"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/model"
)

// Material types keying the bibliographic 008/18-34 and 006/01-17 blocks.
const (
	MaterialBooks          = "BOOKS"
	MaterialContinuing     = "CONTINUING"
	MaterialComputerFiles  = "COMPUTER_FILES"
	MaterialMaps           = "MAPS"
	MaterialMixedMaterials = "MIXED_MATERIALS"
	MaterialMusic          = "MUSIC"
	MaterialVisual         = "VISUAL"
	MaterialUnknown        = "UNKNOWN"
)

// materialByRecordType maps leader/06 (and 006/00) to a material type.
var materialByRecordType = map[byte]string{
	'a': MaterialBooks,
	't': MaterialBooks,
	's': MaterialContinuing, // 006/00 only
	'm': MaterialComputerFiles,
	'e': MaterialMaps,
	'f': MaterialMaps,
	'p': MaterialMixedMaterials,
	'c': MaterialMusic,
	'd': MaterialMusic,
	'i': MaterialMusic,
	'j': MaterialMusic,
	'g': MaterialVisual,
	'k': MaterialVisual,
	'o': MaterialVisual,
	'r': MaterialVisual,
}

// materialOverrides refines the type with leader/07 (bibliographic level).
var materialOverrides = map[[2]byte]string{
	{'a', 'b'}: MaterialContinuing,
	{'a', 'i'}: MaterialContinuing,
	{'a', 's'}: MaterialContinuing,
}

// MaterialType resolves the bibliographic material type from the leader.
func MaterialType(l marc.Leader) string {
	if m, ok := materialOverrides[[2]byte{l.Type, l.BibLevel}]; ok {
		return m
	}
	if l.Type == 's' {
		// 's' is a 006 form-of-material code, not a leader/06 value
		return MaterialUnknown
	}
	if m, ok := materialByRecordType[l.Type]; ok {
		return m
	}
	return MaterialUnknown
}

// Material-specific blocks at their 008 offsets (18-34).
var materialBlocks = map[string][]Position{
	MaterialBooks: {
		pos("Ills", 18, 4), pos("Audn", 22, 1), pos("Form", 23, 1), pos("Cont", 24, 4),
		pos("GPub", 28, 1), pos("Conf", 29, 1), pos("Fest", 30, 1), pos("Indx", 31, 1),
		pos("Undef_32", 32, 1), pos("LitF", 33, 1), pos("Biog", 34, 1),
	},
	MaterialContinuing: {
		pos("Freq", 18, 1), pos("Regl", 19, 1), pos("Undef_20", 20, 1), pos("SrTp", 21, 1),
		pos("Orig", 22, 1), pos("Form", 23, 1), pos("EntW", 24, 1), pos("Cont", 25, 3),
		pos("GPub", 28, 1), pos("Conf", 29, 1), pos("Undef_30", 30, 3), pos("Alph", 33, 1),
		pos("S/L", 34, 1),
	},
	MaterialComputerFiles: {
		pos("Undef_18", 18, 4), pos("Audn", 22, 1), pos("Form", 23, 1), pos("Undef_24", 24, 2),
		pos("File", 26, 1), pos("Undef_27", 27, 1), pos("GPub", 28, 1), pos("Undef_29", 29, 6),
	},
	MaterialMaps: {
		pos("Relf", 18, 4), pos("Proj", 22, 2), pos("Undef_24", 24, 1), pos("CrTp", 25, 1),
		pos("Undef_26", 26, 2), pos("GPub", 28, 1), pos("Form", 29, 1), pos("Undef_30", 30, 1),
		pos("Indx", 31, 1), pos("Undef_32", 32, 1), pos("SpFm", 33, 2),
	},
	MaterialMixedMaterials: {
		pos("Undef_18", 18, 5), pos("Form", 23, 1), pos("Undef_24", 24, 11),
	},
	MaterialMusic: {
		pos("Comp", 18, 2), pos("FMus", 20, 1), pos("Part", 21, 1), pos("Audn", 22, 1),
		pos("Form", 23, 1), pos("AccM", 24, 6), pos("LTxt", 30, 2), pos("Undef_32", 32, 1),
		pos("TrAr", 33, 1), pos("Undef_34", 34, 1),
	},
	MaterialVisual: {
		pos("Time", 18, 3), pos("Undef_21", 21, 1), pos("Audn", 22, 1), pos("Undef_23", 23, 5),
		pos("GPub", 28, 1), pos("Form", 29, 1), pos("Undef_30", 30, 3), pos("TMat", 33, 1),
		pos("Tech", 34, 1),
	},
	MaterialUnknown: {
		pos("Undef_18", 18, 17),
	},
}

var bib008Common = []Position{
	pos("Entered", 0, 6), pos("DtSt", 6, 1), pos("Date1", 7, 4), pos("Date2", 11, 4),
	pos("Ctry", 15, 3), pos("Lang", 35, 3), pos("MRec", 38, 1), pos("Srce", 39, 1),
}

// Tag008Bibliographic decodes 008 of bibliographic records; layout keyed by material type.
var Tag008Bibliographic = func() *FixedFieldCodec {
	layouts := make(map[string]Layout, len(materialBlocks))
	for material, block := range materialBlocks {
		layouts[material] = newLayout("008/"+material, 40, concat(bib008Common, block)...)
	}
	return &FixedFieldCodec{
		Tag:       "008",
		Format:    model.FormatBibliographic,
		layouts:   layouts,
		fallback:  layouts[MaterialUnknown],
		leaderKey: MaterialType,
	}
}()

// Tag006Bibliographic decodes 006 (additional material characteristics); the
// 008/18-34 blocks re-based to 006/01-17, keyed by 006/00.
var Tag006Bibliographic = func() *FixedFieldCodec {
	layouts := make(map[string]Layout, len(materialByRecordType))
	for code, material := range materialByRecordType {
		block := concat([]Position{pos("Type", 0, 1)}, shift(-17, materialBlocks[material]...))
		layouts[string(code)] = newLayout("006/"+material, 18, block...)
	}
	fallback := newLayout("006/"+MaterialUnknown, 18,
		concat([]Position{pos("Type", 0, 1)}, shift(-17, materialBlocks[MaterialUnknown]...))...)
	return &FixedFieldCodec{
		Tag:         "006",
		Format:      model.FormatBibliographic,
		layouts:     layouts,
		fallback:    fallback,
		keyPosition: "Type",
	}
}()

var authority008 = newLayout("008/AUTHORITY", 40,
	pos("Entered", 0, 6), pos("Geo Subd", 6, 1), pos("Roman", 7, 1), pos("Lang", 8, 1),
	pos("Kind rec", 9, 1), pos("Cat Rules", 10, 1), pos("SH Sys", 11, 1), pos("Series", 12, 1),
	pos("Numb Series", 13, 1), pos("Main use", 14, 1), pos("Subj use", 15, 1), pos("Series use", 16, 1),
	pos("Type Subd", 17, 1), pos("Undef_18", 18, 10), pos("Govt Ag", 28, 1), pos("RefEval", 29, 1),
	pos("Undef_30", 30, 1), pos("RecUpd", 31, 1), pos("Pers Name", 32, 1), pos("Level Est", 33, 1),
	pos("Undef_34", 34, 4), pos("Mod Rec", 38, 1), pos("Source", 39, 1),
)

// Tag008Authority decodes 008 of authority records (single layout).
var Tag008Authority = &FixedFieldCodec{
	Tag:       "008",
	Format:    model.FormatAuthority,
	layouts:   map[string]Layout{},
	fallback:  authority008,
	leaderKey: func(marc.Leader) string { return "" },
}

var holdings008 = newLayout("008/HOLDINGS", 32,
	pos("Entered", 0, 6), pos("AcqStatus", 6, 1), pos("AcqMethod", 7, 1), pos("AcqEndDate", 8, 4),
	pos("Gen Ret", 12, 1), pos("Spec Ret", 13, 3), pos("Compl", 16, 1), pos("Copies", 17, 3),
	pos("Lend", 20, 1), pos("Repro", 21, 1), pos("Lang", 22, 3), pos("Sep/comp", 25, 1),
	pos("Rept date", 26, 6),
)

// Tag008Holdings decodes 008 of holdings records (single layout).
var Tag008Holdings = &FixedFieldCodec{
	Tag:       "008",
	Format:    model.FormatHoldings,
	layouts:   map[string]Layout{},
	fallback:  holdings008,
	leaderKey: func(marc.Leader) string { return "" },
}
