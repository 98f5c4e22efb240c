package field

import (
	"github.com/RegistryAccord/registryaccord-qm-go/internal/marc"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/model"
)

// FixedFieldCodecs lists every fixed-length codec in dispatch order.
func FixedFieldCodecs() []*FixedFieldCodec {
	return []*FixedFieldCodec{
		Tag008Bibliographic,
		Tag008Authority,
		Tag008Holdings,
		Tag006Bibliographic,
		Tag007Bibliographic,
		Tag007Holdings,
	}
}

// NewDecoder returns the wire-to-model registry: fixed-length codecs first,
// then the generic data-field converter.
func NewDecoder() *Decoder {
	codecs := FixedFieldCodecs()
	handlers := make([]Handler[marc.Field, model.FieldItem], 0, len(codecs)+1)
	for _, c := range codecs {
		handlers = append(handlers, c.DecodeHandler())
	}
	handlers = append(handlers, dataFieldDecoder)
	return NewRegistry(decodePassthrough, handlers...)
}

// NewEncoder returns the model-to-wire registry.
func NewEncoder() *Encoder {
	codecs := FixedFieldCodecs()
	handlers := make([]Handler[model.FieldItem, marc.Field], 0, len(codecs)+1)
	for _, c := range codecs {
		handlers = append(handlers, c.EncodeHandler())
	}
	handlers = append(handlers, dataFieldEncoder)
	return NewRegistry(encodePassthrough, handlers...)
}
