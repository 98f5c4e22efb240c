// Package field converts individual MARC fields between the wire record and
// the QuickMarc editing model. Converters are plain values registered in an
// ordered list; the first one whose predicate claims a field converts it.
package field

import (
	"github.com/RegistryAccord/registryaccord-qm-go/internal/marc"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/model"
)

// Handler is one registered converter. Convert is only called for input that
// CanProcess claimed.
type Handler[In, Out any] struct {
	Name       string
	CanProcess func(in In, format model.MarcFormat) bool
	Convert    func(in In, leader marc.Leader) (Out, error)
}

// Registry dispatches each field to the first claiming handler and falls back
// to a passthrough conversion when no handler claims it.
type Registry[In, Out any] struct {
	handlers    []Handler[In, Out]
	passthrough func(in In) (Out, error)
}

// NewRegistry builds a registry. Handlers are consulted in the order given, so
// narrower predicates must come before broader ones.
func NewRegistry[In, Out any](passthrough func(In) (Out, error), handlers ...Handler[In, Out]) *Registry[In, Out] {
	hs := make([]Handler[In, Out], len(handlers))
	copy(hs, handlers)
	return &Registry[In, Out]{handlers: hs, passthrough: passthrough}
}

// Lookup returns the handler that would convert in, if any.
func (r *Registry[In, Out]) Lookup(in In, format model.MarcFormat) (Handler[In, Out], bool) {
	for _, h := range r.handlers {
		if h.CanProcess(in, format) {
			return h, true
		}
	}
	return Handler[In, Out]{}, false
}

// Convert converts one field.
func (r *Registry[In, Out]) Convert(in In, format model.MarcFormat, leader marc.Leader) (Out, error) {
	if h, ok := r.Lookup(in, format); ok {
		return h.Convert(in, leader)
	}
	return r.passthrough(in)
}

// Names lists the registered handlers in dispatch order.
func (r *Registry[In, Out]) Names() []string {
	names := make([]string, len(r.handlers))
	for i, h := range r.handlers {
		names[i] = h.Name
	}
	return names
}

// Decoder converts wire fields into editing-model fields.
type Decoder = Registry[marc.Field, model.FieldItem]

// Encoder converts editing-model fields into wire fields.
type Encoder = Registry[model.FieldItem, marc.Field]
