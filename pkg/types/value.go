// Package types defines the value/metadata data model and status/access
// vocabularies exchanged across the Channel Access client core, and the
// TypeSupport registry that maps a (value kind, metadata kind) pair to its
// wire representation.
package types

import "goca/pkg/wire"

// Kind is one of the semantic value types a Channel can be requested as,
// the type TypeSupport is keyed on, distinct from the CA wire TypeCode it
// is carried as.
type Kind int

const (
	KindByte Kind = iota
	KindShort
	KindInt
	KindFloat
	KindDouble
	KindString
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindByte:
		return "byte"
	case KindShort:
		return "short"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// WireType returns the base CA DBR type code carrying this kind.
func (k Kind) WireType() wire.TypeCode {
	switch k {
	case KindByte:
		return wire.TypeChar
	case KindShort:
		return wire.TypeShort
	case KindInt:
		return wire.TypeLong
	case KindFloat:
		return wire.TypeFloat
	case KindDouble:
		return wire.TypeDouble
	case KindString:
		return wire.TypeString
	default:
		return wire.TypeString
	}
}

// Value is a scalar or fixed-length array payload of one Kind. Exactly one
// of the typed fields is meaningful, selected by Kind; Count holds the
// element count for array values (1 for a scalar).
type Value struct {
	Kind   Kind
	Count  int
	Bytes  []byte
	Shorts []int16
	Ints   []int32
	Floats []float32
	Double []float64
	Strs   []string
}

// IsScalar reports whether this value carries exactly one element.
func (v Value) IsScalar() bool {
	return v.Count == 1
}

// NewByte returns a scalar byte Value.
func NewByte(b byte) Value { return Value{Kind: KindByte, Count: 1, Bytes: []byte{b}} }

// NewShort returns a scalar short Value.
func NewShort(s int16) Value { return Value{Kind: KindShort, Count: 1, Shorts: []int16{s}} }

// NewInt returns a scalar int Value.
func NewInt(i int32) Value { return Value{Kind: KindInt, Count: 1, Ints: []int32{i}} }

// NewFloat returns a scalar float Value.
func NewFloat(f float32) Value { return Value{Kind: KindFloat, Count: 1, Floats: []float32{f}} }

// NewDouble returns a scalar double Value.
func NewDouble(d float64) Value { return Value{Kind: KindDouble, Count: 1, Double: []float64{d}} }

// NewString returns a scalar string Value.
func NewString(s string) Value { return Value{Kind: KindString, Count: 1, Strs: []string{s}} }

// AsDouble returns the value widened to float64, for scalar numeric kinds.
// Non-numeric kinds return 0, false.
func (v Value) AsDouble() (float64, bool) {
	if v.Count == 0 {
		return 0, false
	}
	switch v.Kind {
	case KindByte:
		return float64(v.Bytes[0]), true
	case KindShort:
		return float64(v.Shorts[0]), true
	case KindInt:
		return float64(v.Ints[0]), true
	case KindFloat:
		return float64(v.Floats[0]), true
	case KindDouble:
		return v.Double[0], true
	default:
		return 0, false
	}
}
