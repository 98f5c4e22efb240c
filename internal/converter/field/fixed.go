package field

import (
	"fmt"

	"github.com/RegistryAccord/registryaccord-qm-go/internal/marc"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/marcutil"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/model"
)

// FixedFieldCodec splits a fixed-length control field into named positional
// values and joins them back. One codec exists per (tag, format); the layout
// used is chosen from a table keyed either by the leader or by the field's own
// first character, with a documented fallback for keys the table lacks.
type FixedFieldCodec struct {
	Tag    string
	Format model.MarcFormat

	layouts  map[string]Layout
	fallback Layout

	// leaderKey selects the layout from the leader; nil for self-keyed fields.
	leaderKey func(marc.Leader) string
	// keyPosition names the one-character position at offset 0 that keys
	// self-keyed fields (006, 007).
	keyPosition string
}

// CanProcess reports whether the codec claims tag under format.
func (c *FixedFieldCodec) CanProcess(tag string, format model.MarcFormat) bool {
	return tag == c.Tag && format == c.Format
}

// LayoutForData picks the layout for raw wire content.
func (c *FixedFieldCodec) LayoutForData(data string, leader marc.Leader) Layout {
	if c.leaderKey != nil {
		return c.lookup(c.leaderKey(leader))
	}
	if data == "" {
		return c.fallback
	}
	return c.lookup(data[:1])
}

// LayoutForValues picks the layout for decoded positional values.
func (c *FixedFieldCodec) LayoutForValues(values map[string]string, leader marc.Leader) Layout {
	if c.leaderKey != nil {
		return c.lookup(c.leaderKey(leader))
	}
	return c.lookup(marcutil.RestoreBlanks(first(values[c.keyPosition])))
}

func (c *FixedFieldCodec) lookup(key string) Layout {
	if l, ok := c.layouts[key]; ok {
		return l
	}
	return c.fallback
}

// Decode normalizes data to the layout width (padding with the blank marker or
// truncating) and returns each position's masqueraded value. It never fails.
func (c *FixedFieldCodec) Decode(data string, leader marc.Leader) map[string]string {
	layout := c.LayoutForData(data, leader)
	normalized := []rune(layout.fit(marcutil.MasqueradeBlanks(data)))
	values := make(map[string]string, len(layout.Positions)+1)
	for _, p := range layout.Positions {
		values[p.Name] = string(normalized[p.Start : p.Start+p.Length])
	}
	if layout.Rest != "" && len(normalized) > layout.Width {
		values[layout.Rest] = string(normalized[layout.Width:])
	}
	return values
}

// Encode rebuilds exactly layout-width wire content from positional values.
// Missing or empty positions become blanks.
func (c *FixedFieldCodec) Encode(values map[string]string, leader marc.Leader) string {
	layout := c.LayoutForValues(values, leader)
	buf := []rune(marcutil.FitToLength("", layout.Width))
	for _, p := range layout.Positions {
		v := values[p.Name]
		if v == "" {
			continue
		}
		copy(buf[p.Start:p.Start+p.Length], []rune(marcutil.FitToLength(marcutil.MasqueradeBlanks(v), p.Length)))
	}
	if layout.Rest != "" {
		buf = append(buf, []rune(marcutil.MasqueradeBlanks(values[layout.Rest]))...)
	}
	return marcutil.RestoreBlanks(string(buf))
}

// EncodeRaw normalizes raw content supplied as text instead of positions.
func (c *FixedFieldCodec) EncodeRaw(data string, leader marc.Leader) string {
	restored := marcutil.RestoreBlanks(data)
	layout := c.LayoutForData(restored, leader)
	return marcutil.RestoreBlanks(layout.fit(marcutil.MasqueradeBlanks(restored)))
}

// Name identifies the codec in registries and logs.
func (c *FixedFieldCodec) Name() string {
	return fmt.Sprintf("tag%s-%s", c.Tag, c.Format)
}

// DecodeHandler wraps the codec for the decode registry.
func (c *FixedFieldCodec) DecodeHandler() Handler[marc.Field, model.FieldItem] {
	return Handler[marc.Field, model.FieldItem]{
		Name: c.Name(),
		CanProcess: func(f marc.Field, format model.MarcFormat) bool {
			return f.IsControl() && c.CanProcess(f.Tag, format)
		},
		Convert: func(f marc.Field, leader marc.Leader) (model.FieldItem, error) {
			return model.FieldItem{Tag: f.Tag, Content: model.PositionalContent(c.Decode(f.Data, leader))}, nil
		},
	}
}

// EncodeHandler wraps the codec for the encode registry.
func (c *FixedFieldCodec) EncodeHandler() Handler[model.FieldItem, marc.Field] {
	return Handler[model.FieldItem, marc.Field]{
		Name: c.Name(),
		CanProcess: func(item model.FieldItem, format model.MarcFormat) bool {
			return c.CanProcess(item.Tag, format)
		},
		Convert: func(item model.FieldItem, leader marc.Leader) (marc.Field, error) {
			switch item.Content.Kind() {
			case model.ContentPositions:
				return marc.NewControlField(item.Tag, c.Encode(item.Content.Positions(), leader)), nil
			case model.ContentText, model.ContentEmpty:
				return marc.NewControlField(item.Tag, c.EncodeRaw(item.Content.Text(), leader)), nil
			default:
				return marc.Field{}, fmt.Errorf("field %s: subfield content is not valid for a fixed-length field", item.Tag)
			}
		},
	}
}

func first(s string) string {
	for _, r := range s {
		return string(r)
	}
	return ""
}
