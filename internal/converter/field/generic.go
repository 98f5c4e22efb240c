package field

import (
	"errors"
	"fmt"
	"strings"

	"github.com/RegistryAccord/registryaccord-qm-go/internal/marc"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/marcutil"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/model"
)

// ErrSubfieldText reports editing-model text that is not a "$a value" list.
var ErrSubfieldText = errors.New("field: malformed subfield text")

// ErrSubfieldCode reports a subfield code that is not a single character.
var ErrSubfieldCode = errors.New("field: malformed subfield code")

// dataFieldDecoder converts any variable data field.
var dataFieldDecoder = Handler[marc.Field, model.FieldItem]{
	Name: "data-field",
	CanProcess: func(f marc.Field, _ model.MarcFormat) bool {
		return !f.IsControl()
	},
	Convert: func(f marc.Field, _ marc.Leader) (model.FieldItem, error) {
		subs := make([]model.Subfield, len(f.Subfields))
		for i, s := range f.Subfields {
			subs[i] = model.Subfield{Code: s.Code, Value: s.Value}
		}
		return model.FieldItem{
			Tag:        f.Tag,
			Indicators: marcutil.MasqueradeBlanks(indicatorOrBlank(f.Ind1) + indicatorOrBlank(f.Ind2)),
			Content:    model.SubfieldContent(subs...),
		}, nil
	},
}

// decodePassthrough carries control fields without a codec as text.
func decodePassthrough(f marc.Field) (model.FieldItem, error) {
	if !f.IsControl() {
		return dataFieldDecoder.Convert(f, marc.Leader{})
	}
	return model.FieldItem{Tag: f.Tag, Content: model.TextContent(f.Data)}, nil
}

// dataFieldEncoder converts any editing-model field with a data-field tag.
var dataFieldEncoder = Handler[model.FieldItem, marc.Field]{
	Name: "data-field",
	CanProcess: func(item model.FieldItem, _ model.MarcFormat) bool {
		return !marc.IsControlTag(item.Tag)
	},
	Convert: func(item model.FieldItem, _ marc.Leader) (marc.Field, error) {
		var subs []marc.Subfield
		switch item.Content.Kind() {
		case model.ContentSubfields:
			for _, s := range item.Content.Subfields() {
				if len(s.Code) != 1 {
					return marc.Field{}, fmt.Errorf("field %s: %w %q", item.Tag, ErrSubfieldCode, s.Code)
				}
				subs = append(subs, marc.Subfield{Code: s.Code, Value: s.Value})
			}
		case model.ContentText:
			parsed, err := ParseSubfieldText(item.Content.Text())
			if err != nil {
				return marc.Field{}, fmt.Errorf("field %s: %w", item.Tag, err)
			}
			subs = parsed
		case model.ContentEmpty:
		default:
			return marc.Field{}, fmt.Errorf("field %s: positional content is only valid for fixed-length fields", item.Tag)
		}
		ind := []rune(marcutil.FitToLength(item.Indicators, 2))
		return marc.NewDataField(item.Tag,
			marcutil.RestoreBlanks(string(ind[0])),
			marcutil.RestoreBlanks(string(ind[1])),
			subs...), nil
	},
}

// encodePassthrough carries control fields without a codec verbatim.
func encodePassthrough(item model.FieldItem) (marc.Field, error) {
	switch item.Content.Kind() {
	case model.ContentText, model.ContentEmpty:
		return marc.NewControlField(item.Tag, item.Content.Text()), nil
	default:
		return marc.Field{}, fmt.Errorf("field %s: %s content is not valid for a control field", item.Tag, item.Content.Kind())
	}
}

// ParseSubfieldText splits "$a first $b second" into subfields. A code is a
// '$' followed by one letter or digit at the start of the text or after a
// space; the value runs to the next code with surrounding spaces trimmed.
func ParseSubfieldText(text string) ([]marc.Subfield, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	rs := []rune(text)
	if !isCodeAt(rs, 0) {
		return nil, fmt.Errorf("%w: %q does not start with a subfield code", ErrSubfieldText, text)
	}
	var out []marc.Subfield
	start := 0
	for i := 1; i <= len(rs); i++ {
		if i < len(rs) && !(rs[i-1] == ' ' && isCodeAt(rs, i)) {
			continue
		}
		out = append(out, marc.Subfield{
			Code:  string(rs[start+1]),
			Value: strings.TrimSpace(string(rs[start+2 : i])),
		})
		start = i
	}
	return out, nil
}

func isCodeAt(rs []rune, i int) bool {
	if i+1 >= len(rs) || rs[i] != '$' {
		return false
	}
	c := rs[i+1]
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}

func indicatorOrBlank(s string) string {
	if s == "" {
		return " "
	}
	return first(s)
}
