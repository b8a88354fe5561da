package types

import "goca/pkg/wire"

// typeSupportKey identifies one (value kind, metadata kind) combination.
type typeSupportKey struct {
	Kind     Kind
	MetaKind MetaKind
}

// TypeSupport is an immutable, shared description of how one (value kind,
// metadata kind) combination is carried on the wire: which CA type code
// requests it, how large each element is, and the zero value a Request
// should report if a server drops a connection before delivering one.
type TypeSupport struct {
	Kind        Kind
	MetaKind    MetaKind
	WireType    wire.TypeCode
	ElementSize int
	Default     Bundle
}

// supportTable is built once at init and never mutated afterward; every
// Channel and Request consults the same shared instance.
var supportTable = buildSupportTable()

func buildSupportTable() map[typeSupportKey]TypeSupport {
	table := make(map[typeSupportKey]TypeSupport)
	kinds := []Kind{KindByte, KindShort, KindInt, KindFloat, KindDouble, KindString}
	metas := []MetaKind{MetaPlain, MetaAlarm, MetaTimestamped, MetaGraphic, MetaControl, MetaGraphicEnum}

	for _, k := range kinds {
		base := k.WireType()
		for _, m := range metas {
			if m == MetaGraphicEnum && k != KindShort {
				continue
			}
			table[typeSupportKey{k, m}] = TypeSupport{
				Kind:        k,
				MetaKind:    m,
				WireType:    wireTypeFor(base, m),
				ElementSize: base.ElementSize(),
				Default:     defaultBundle(k, m),
			}
		}
	}
	return table
}

// wireTypeFor maps a base DBR_ code plus a metadata variant to the CA
// status/time/graphic/control type code that carries it. GraphicEnum is
// the one variant that changes the base type itself, from DBR_SHORT to
// DBR_ENUM, since it is never valid over any other kind.
func wireTypeFor(base wire.TypeCode, m MetaKind) wire.TypeCode {
	if m == MetaGraphicEnum {
		return wire.TypeGrEnum
	}
	offset := wire.TypeCode(0)
	switch m {
	case MetaPlain:
		offset = 0
	case MetaAlarm:
		offset = wire.TypeStsString
	case MetaTimestamped:
		offset = wire.TypeTimeString
	case MetaGraphic:
		offset = wire.TypeGrString
	case MetaControl:
		offset = wire.TypeCtrlString
	}
	return base + offset
}

func defaultBundle(k Kind, m MetaKind) Bundle {
	zero := zeroValue(k)
	switch m {
	case MetaPlain:
		return PlainBundle{Val: zero}
	case MetaAlarm:
		return AlarmBundle{Val: zero, Status: NoAlarm, Severity: SeverityInvalid}
	case MetaTimestamped:
		return TimestampedBundle{Val: zero, Status: NoAlarm, Severity: SeverityInvalid}
	case MetaGraphic:
		return GraphicBundle{Val: zero, Status: NoAlarm, Severity: SeverityInvalid}
	case MetaControl:
		return ControlBundle{Val: zero, Status: NoAlarm, Severity: SeverityInvalid}
	case MetaGraphicEnum:
		return GraphicEnumBundle{Val: zero, Status: NoAlarm, Severity: SeverityInvalid}
	default:
		return PlainBundle{Val: zero}
	}
}

func zeroValue(k Kind) Value {
	switch k {
	case KindByte:
		return NewByte(0)
	case KindShort:
		return NewShort(0)
	case KindInt:
		return NewInt(0)
	case KindFloat:
		return NewFloat(0)
	case KindDouble:
		return NewDouble(0)
	case KindString:
		return NewString("")
	default:
		return Value{}
	}
}

// Lookup returns the TypeSupport for a (kind, metaKind) pair. ok is false
// for combinations that are never valid, such as GraphicEnum over a
// non-short kind.
func Lookup(k Kind, m MetaKind) (TypeSupport, bool) {
	ts, ok := supportTable[typeSupportKey{k, m}]
	return ts, ok
}

// LookupByWireType finds the TypeSupport whose WireType is t, the inverse
// of Lookup. Used by a request handler that must recover which metadata
// kind a client asked for from the DataType it put on the wire.
func LookupByWireType(t wire.TypeCode) (TypeSupport, bool) {
	for _, ts := range supportTable {
		if ts.WireType == t {
			return ts, true
		}
	}
	return TypeSupport{}, false
}
