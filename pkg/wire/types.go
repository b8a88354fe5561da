package wire

// TypeCode is a CA native/request data type code (DBR_* in the C API).
type TypeCode uint16

// Base scalar/array type codes.
const (
	TypeString TypeCode = 0
	TypeShort  TypeCode = 1 // DBR_INT / DBR_SHORT
	TypeFloat  TypeCode = 2
	TypeEnum   TypeCode = 3
	TypeChar   TypeCode = 4
	TypeLong   TypeCode = 5
	TypeDouble TypeCode = 6
)

// STS_* (value + alarm status/severity).
const (
	TypeStsString TypeCode = 7
	TypeStsShort  TypeCode = 8
	TypeStsFloat  TypeCode = 9
	TypeStsEnum   TypeCode = 10
	TypeStsChar   TypeCode = 11
	TypeStsLong   TypeCode = 12
	TypeStsDouble TypeCode = 13
)

// TIME_* (STS + epoch seconds/nanoseconds).
const (
	TypeTimeString TypeCode = 14
	TypeTimeShort  TypeCode = 15
	TypeTimeFloat  TypeCode = 16
	TypeTimeEnum   TypeCode = 17
	TypeTimeChar   TypeCode = 18
	TypeTimeLong   TypeCode = 19
	TypeTimeDouble TypeCode = 20
)

// GR_* (STS + display metadata: units, precision, limits, or enum labels).
const (
	TypeGrString TypeCode = 21
	TypeGrShort  TypeCode = 22
	TypeGrFloat  TypeCode = 23
	TypeGrEnum   TypeCode = 24
	TypeGrChar   TypeCode = 25
	TypeGrLong   TypeCode = 26
	TypeGrDouble TypeCode = 27
)

// CTRL_* (GR + control limits).
const (
	TypeCtrlString TypeCode = 28
	TypeCtrlShort  TypeCode = 29
	TypeCtrlFloat  TypeCode = 30
	TypeCtrlEnum   TypeCode = 31
	TypeCtrlChar   TypeCode = 32
	TypeCtrlLong   TypeCode = 33
	TypeCtrlDouble TypeCode = 34
)

// ElementSize returns the wire size, in bytes, of one element of the base
// scalar carried by t (ignoring any status/time/graphic/control prefix).
func (t TypeCode) ElementSize() int {
	switch baseOf(t) {
	case TypeString:
		return MaxStringLen
	case TypeShort, TypeEnum:
		return 2
	case TypeFloat:
		return 4
	case TypeChar:
		return 1
	case TypeLong:
		return 4
	case TypeDouble:
		return 8
	default:
		return 0
	}
}

// baseOf collapses a STS/TIME/GR/CTRL type code down to its base scalar
// kind (String/Short/Float/Enum/Char/Long/Double).
func baseOf(t TypeCode) TypeCode {
	switch {
	case t <= TypeDouble:
		return t
	case t <= TypeStsDouble:
		return t - TypeStsString
	case t <= TypeTimeDouble:
		return t - TypeTimeString
	case t <= TypeGrDouble:
		return t - TypeGrString
	case t <= TypeCtrlDouble:
		return t - TypeCtrlString
	default:
		return TypeString
	}
}

// String returns a human-readable lowercase type name, used for
// Channel.GetProperties()["nativeType"].
func (t TypeCode) String() string {
	switch baseOf(t) {
	case TypeString:
		return "string"
	case TypeShort:
		return "short"
	case TypeFloat:
		return "float"
	case TypeEnum:
		return "enum"
	case TypeChar:
		return "char"
	case TypeLong:
		return "long"
	case TypeDouble:
		return "double"
	default:
		return "unknown"
	}
}

// MaxStringLen is the maximum length, including the NUL terminator, of a
// standard CA string field.
const MaxStringLen = 40
