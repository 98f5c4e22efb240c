package field

import "github.com/RegistryAccord/registryaccord-qm-go/internal/model"

// 007 (physical description) layouts keyed by 007/00, category of material.
// Every variant starts with Category and the specific material designation.
var physicalDescriptionLayouts = []struct {
	category  string
	name      string
	width     int
	positions []Position
}{
	{"a", "MAP", 8, []Position{
		pos("Undef_02", 2, 1), pos("Color", 3, 1), pos("PhysMedium", 4, 1),
		pos("TypeRepro", 5, 1), pos("ProdDetails", 6, 1), pos("Polarity", 7, 1),
	}},
	{"c", "ELECTRONIC_RESOURCE", 14, []Position{
		pos("Undef_02", 2, 1), pos("Color", 3, 1), pos("Dimensions", 4, 1), pos("Sound", 5, 1),
		pos("ImageBitDepth", 6, 3), pos("FileFormats", 9, 1), pos("QATarget", 10, 1),
		pos("Antecedent", 11, 1), pos("Compression", 12, 1), pos("ReformatQuality", 13, 1),
	}},
	{"d", "GLOBE", 6, []Position{
		pos("Undef_02", 2, 1), pos("Color", 3, 1), pos("PhysMedium", 4, 1), pos("TypeRepro", 5, 1),
	}},
	{"f", "TACTILE_MATERIAL", 10, []Position{
		pos("Undef_02", 2, 1), pos("BrailleClass", 3, 2), pos("Contraction", 5, 1),
		pos("MusicFormat", 6, 3), pos("SpecialChars", 9, 1),
	}},
	{"g", "PROJECTED_GRAPHIC", 9, []Position{
		pos("Undef_02", 2, 1), pos("Color", 3, 1), pos("EmulsionBase", 4, 1), pos("SoundOnMedium", 5, 1),
		pos("SoundMedium", 6, 1), pos("Dimensions", 7, 1), pos("SecondarySupport", 8, 1),
	}},
	{"h", "MICROFORM", 13, []Position{
		pos("Undef_02", 2, 1), pos("Polarity", 3, 1), pos("Dimensions", 4, 1), pos("ReductionRange", 5, 1),
		pos("ReductionRatio", 6, 3), pos("Color", 9, 1), pos("Emulsion", 10, 1),
		pos("Generation", 11, 1), pos("FilmBase", 12, 1),
	}},
	{"k", "NONPROJECTED_GRAPHIC", 6, []Position{
		pos("Undef_02", 2, 1), pos("Color", 3, 1), pos("PrimarySupport", 4, 1), pos("SecondarySupport", 5, 1),
	}},
	{"m", "MOTION_PICTURE", 23, []Position{
		pos("Undef_02", 2, 1), pos("Color", 3, 1), pos("PresentationFormat", 4, 1),
		pos("SoundOnMedium", 5, 1), pos("SoundMedium", 6, 1), pos("Dimensions", 7, 1),
		pos("PlaybackChannels", 8, 1), pos("ProductionElements", 9, 1), pos("Polarity", 10, 1),
		pos("Generation", 11, 1), pos("FilmBase", 12, 1), pos("RefinedColor", 13, 1),
		pos("ColorStock", 14, 1), pos("Deterioration", 15, 1), pos("Completeness", 16, 1),
		pos("InspectionDate", 17, 6),
	}},
	{"o", "KIT", 2, nil},
	{"q", "NOTATED_MUSIC", 2, nil},
	{"r", "REMOTE_SENSING_IMAGE", 11, []Position{
		pos("Undef_02", 2, 1), pos("SensorAltitude", 3, 1), pos("SensorAttitude", 4, 1),
		pos("CloudCover", 5, 1), pos("PlatformType", 6, 1), pos("PlatformUse", 7, 1),
		pos("SensorType", 8, 1), pos("DataType", 9, 2),
	}},
	{"s", "SOUND_RECORDING", 14, []Position{
		pos("Undef_02", 2, 1), pos("Speed", 3, 1), pos("PlaybackChannels", 4, 1),
		pos("GrooveWidth", 5, 1), pos("Dimensions", 6, 1), pos("TapeWidth", 7, 1),
		pos("TapeConfiguration", 8, 1), pos("DiscKind", 9, 1), pos("Material", 10, 1),
		pos("CuttingKind", 11, 1), pos("PlaybackCharacteristics", 12, 1), pos("CaptureStorage", 13, 1),
	}},
	{"t", "TEXT", 2, nil},
	{"v", "VIDEORECORDING", 9, []Position{
		pos("Undef_02", 2, 1), pos("Color", 3, 1), pos("VideoFormat", 4, 1), pos("SoundOnMedium", 5, 1),
		pos("SoundMedium", 6, 1), pos("Dimensions", 7, 1), pos("PlaybackChannels", 8, 1),
	}},
	{"z", "UNSPECIFIED", 2, nil},
}

var physicalDescriptionHead = []Position{pos("Category", 0, 1), pos("SMD", 1, 1)}

func newPhysicalDescriptionCodec(format model.MarcFormat) *FixedFieldCodec {
	layouts := make(map[string]Layout, len(physicalDescriptionLayouts))
	for _, v := range physicalDescriptionLayouts {
		layouts[v.category] = newLayout("007/"+v.name, v.width, concat(physicalDescriptionHead, v.positions)...)
	}
	return &FixedFieldCodec{
		Tag:         "007",
		Format:      format,
		layouts:     layouts,
		fallback:    openEnded(newLayout("007/UNKNOWN", 2, physicalDescriptionHead...), "Undef_02"),
		keyPosition: "Category",
	}
}

// Tag007Bibliographic and Tag007Holdings decode 007 for their formats; the
// layouts are shared.
var (
	Tag007Bibliographic = newPhysicalDescriptionCodec(model.FormatBibliographic)
	Tag007Holdings      = newPhysicalDescriptionCodec(model.FormatHoldings)
)
