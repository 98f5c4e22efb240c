package field

import (
	"fmt"
	"unicode/utf8"

	"github.com/RegistryAccord/registryaccord-qm-go/internal/marcutil"
)

// Position names a run of characters inside a fixed-length field.
type Position struct {
	Name   string
	Start  int
	Length int
}

// Layout is the positional table of one fixed-length field variant.
type Layout struct {
	Name      string
	Width     int
	Positions []Position
	// Rest, when set, names an open position holding everything past Width.
	// Such layouts are minimum widths and never truncate.
	Rest string
}

// width returns the normalized width for content of n characters.
func (l Layout) width(n int) int {
	if l.Rest != "" && n > l.Width {
		return n
	}
	return l.Width
}

// fit pads s to the layout width, truncating only closed layouts.
func (l Layout) fit(s string) string {
	return marcutil.FitToLength(s, l.width(utf8.RuneCountInString(s)))
}

// openEnded returns l with a trailing open position named rest.
func openEnded(l Layout, rest string) Layout {
	l.Rest = rest
	return l
}

func pos(name string, start, length int) Position {
	return Position{Name: name, Start: start, Length: length}
}

// newLayout validates that positions tile [0, width) exactly once.
func newLayout(name string, width int, positions ...Position) Layout {
	covered := make([]bool, width)
	names := make(map[string]bool, len(positions))
	for _, p := range positions {
		if p.Length <= 0 || p.Start < 0 || p.Start+p.Length > width {
			panic(fmt.Sprintf("field: layout %s: position %s [%d,+%d) outside width %d", name, p.Name, p.Start, p.Length, width))
		}
		if names[p.Name] {
			panic(fmt.Sprintf("field: layout %s: duplicate position %s", name, p.Name))
		}
		names[p.Name] = true
		for i := p.Start; i < p.Start+p.Length; i++ {
			if covered[i] {
				panic(fmt.Sprintf("field: layout %s: position %s overlaps offset %d", name, p.Name, i))
			}
			covered[i] = true
		}
	}
	for i, ok := range covered {
		if !ok {
			panic(fmt.Sprintf("field: layout %s: offset %d not covered", name, i))
		}
	}
	return Layout{Name: name, Width: width, Positions: positions}
}

// shift re-bases a position block by delta offsets.
func shift(delta int, positions ...Position) []Position {
	out := make([]Position, len(positions))
	for i, p := range positions {
		out[i] = Position{Name: p.Name, Start: p.Start + delta, Length: p.Length}
	}
	return out
}

func concat(blocks ...[]Position) []Position {
	var out []Position
	for _, b := range blocks {
		out = append(out, b...)
	}
	return out
}
