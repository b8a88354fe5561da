package types

import (
	"encoding/binary"
	"fmt"
	"math"

	"goca/pkg/wire"
)

// unitsFieldSize and enumStringSize mirror the fixed field widths CA uses
// for display units and enum state strings (db_access.h's MAX_UNITS_SIZE
// and MAX_ENUM_STRING_SIZE).
const (
	unitsFieldSize = 8
	enumStringSize = 26
)

// metaPrefixSize returns how many bytes of metadata precede the value
// array for the given (kind, metaKind), e.g. alarm status/severity,
// timestamp, or display/control limits.
func metaPrefixSize(elementSize int, m MetaKind) int {
	switch m {
	case MetaPlain:
		return 0
	case MetaAlarm:
		return 4 // status(2) + severity(2)
	case MetaTimestamped:
		return 4 + 8 // status/severity + epochSec(4) + nanos(4)
	case MetaGraphic:
		return 4 + unitsFieldSize + 2 + 6*elementSize // status/severity + units + precision + 6 limits
	case MetaControl:
		return 4 + unitsFieldSize + 2 + 8*elementSize // graphic prefix + 2 control limits
	case MetaGraphicEnum:
		return 4 + 2 + MaxEnumLabels*enumStringSize // status/severity + numStates + labels
	default:
		return 0
	}
}

// EncodeBundle renders b as a CA payload for its TypeSupport: a metadata
// prefix (if any) followed by the value array.
func EncodeBundle(ts TypeSupport, b Bundle) ([]byte, error) {
	val := b.Value()
	prefix := metaPrefixSize(ts.ElementSize, ts.MetaKind)
	body, err := encodeValue(val)
	if err != nil {
		return nil, err
	}
	out := make([]byte, prefix+len(body))

	switch bv := b.(type) {
	case PlainBundle:
	case AlarmBundle:
		binary.BigEndian.PutUint16(out[0:2], uint16(bv.Status))
		binary.BigEndian.PutUint16(out[2:4], uint16(bv.Severity))
	case TimestampedBundle:
		binary.BigEndian.PutUint16(out[0:2], uint16(bv.Status))
		binary.BigEndian.PutUint16(out[2:4], uint16(bv.Severity))
		binary.BigEndian.PutUint32(out[4:8], uint32(bv.EpochMilli/1000))
		binary.BigEndian.PutUint32(out[8:12], uint32(bv.Nanos))
	case GraphicBundle:
		encodeGraphicPrefix(out, bv.Status, bv.Severity, bv.Units, bv.Precision,
			[]float64{bv.UpperDisp, bv.LowerDisp, bv.UpperWarn, bv.LowerWarn, bv.UpperAlrm, bv.LowerAlrm}, ts.ElementSize)
	case ControlBundle:
		encodeGraphicPrefix(out, bv.Status, bv.Severity, bv.Units, bv.Precision,
			[]float64{bv.UpperDisp, bv.LowerDisp, bv.UpperWarn, bv.LowerWarn, bv.UpperAlrm, bv.LowerAlrm, bv.UpperCtrl, bv.LowerCtrl}, ts.ElementSize)
	case GraphicEnumBundle:
		binary.BigEndian.PutUint16(out[0:2], uint16(bv.Status))
		binary.BigEndian.PutUint16(out[2:4], uint16(bv.Severity))
		binary.BigEndian.PutUint16(out[4:6], uint16(len(bv.Labels)))
		for i, label := range bv.Labels {
			if i >= MaxEnumLabels {
				break
			}
			off := 6 + i*enumStringSize
			copy(out[off:off+enumStringSize], wire.PutString(label)[:enumStringSize])
		}
	default:
		return nil, fmt.Errorf("types: unsupported bundle type %T", b)
	}

	copy(out[prefix:], body)
	return out, nil
}

func encodeGraphicPrefix(out []byte, status AlarmStatus, severity AlarmSeverity, units string, precision int16, limits []float64, elementSize int) {
	binary.BigEndian.PutUint16(out[0:2], uint16(status))
	binary.BigEndian.PutUint16(out[2:4], uint16(severity))
	copy(out[4:4+unitsFieldSize], []byte(units))
	binary.BigEndian.PutUint16(out[4+unitsFieldSize:4+unitsFieldSize+2], uint16(precision))
	base := 4 + unitsFieldSize + 2
	for i, limit := range limits {
		off := base + i*elementSize
		encodeLimit(out[off:off+elementSize], limit, elementSize)
	}
}

func encodeLimit(dst []byte, v float64, elementSize int) {
	switch elementSize {
	case 1:
		dst[0] = byte(int8(v))
	case 2:
		binary.BigEndian.PutUint16(dst, uint16(int16(v)))
	case 4:
		binary.BigEndian.PutUint32(dst, math.Float32bits(float32(v)))
	case 8:
		binary.BigEndian.PutUint64(dst, math.Float64bits(v))
	}
}

func decodeLimit(src []byte, kind Kind, elementSize int) float64 {
	switch elementSize {
	case 1:
		return float64(int8(src[0]))
	case 2:
		return float64(int16(binary.BigEndian.Uint16(src)))
	case 4:
		if kind == KindFloat {
			return float64(math.Float32frombits(binary.BigEndian.Uint32(src)))
		}
		return float64(int32(binary.BigEndian.Uint32(src)))
	case 8:
		return math.Float64frombits(binary.BigEndian.Uint64(src))
	default:
		return 0
	}
}

// DecodeBundle parses payload (prefix + value array) into the Bundle
// variant named by ts.MetaKind, for count elements of ts.Kind.
func DecodeBundle(ts TypeSupport, payload []byte, count uint32) (Bundle, error) {
	prefix := metaPrefixSize(ts.ElementSize, ts.MetaKind)
	if len(payload) < prefix {
		return nil, fmt.Errorf("types: payload too short for %s metadata: have %d, want >= %d", ts.MetaKind, len(payload), prefix)
	}
	val, err := decodeValue(ts.Kind, payload[prefix:], count)
	if err != nil {
		return nil, err
	}

	switch ts.MetaKind {
	case MetaPlain:
		return PlainBundle{Val: val}, nil
	case MetaAlarm:
		status, severity := decodeAlarmPrefix(payload)
		return AlarmBundle{Val: val, Status: status, Severity: severity}, nil
	case MetaTimestamped:
		status, severity := decodeAlarmPrefix(payload)
		sec := binary.BigEndian.Uint32(payload[4:8])
		nanos := binary.BigEndian.Uint32(payload[8:12])
		return TimestampedBundle{Val: val, Status: status, Severity: severity, EpochMilli: int64(sec) * 1000, Nanos: int32(nanos)}, nil
	case MetaGraphic:
		status, severity, units, precision, limits := decodeGraphicPrefix(payload, ts.Kind, ts.ElementSize, 6)
		return GraphicBundle{
			Val: val, Status: status, Severity: severity, Units: units, Precision: precision,
			UpperDisp: limits[0], LowerDisp: limits[1], UpperWarn: limits[2], LowerWarn: limits[3], UpperAlrm: limits[4], LowerAlrm: limits[5],
		}, nil
	case MetaControl:
		status, severity, units, precision, limits := decodeGraphicPrefix(payload, ts.Kind, ts.ElementSize, 8)
		return ControlBundle{
			Val: val, Status: status, Severity: severity, Units: units, Precision: precision,
			UpperDisp: limits[0], LowerDisp: limits[1], UpperWarn: limits[2], LowerWarn: limits[3], UpperAlrm: limits[4], LowerAlrm: limits[5],
			UpperCtrl: limits[6], LowerCtrl: limits[7],
		}, nil
	case MetaGraphicEnum:
		status, severity := decodeAlarmPrefix(payload)
		numStates := int(binary.BigEndian.Uint16(payload[4:6]))
		if numStates > MaxEnumLabels {
			numStates = MaxEnumLabels
		}
		labels := make([]string, numStates)
		for i := 0; i < numStates; i++ {
			off := 6 + i*enumStringSize
			labels[i] = wire.GetString(payload[off : off+enumStringSize])
		}
		return GraphicEnumBundle{Val: val, Status: status, Severity: severity, Labels: labels}, nil
	default:
		return nil, fmt.Errorf("types: unsupported meta kind %s", ts.MetaKind)
	}
}

func decodeAlarmPrefix(payload []byte) (AlarmStatus, AlarmSeverity) {
	return AlarmStatus(binary.BigEndian.Uint16(payload[0:2])), AlarmSeverity(binary.BigEndian.Uint16(payload[2:4]))
}

func decodeGraphicPrefix(payload []byte, kind Kind, elementSize int, numLimits int) (AlarmStatus, AlarmSeverity, string, int16, []float64) {
	status, severity := decodeAlarmPrefix(payload)
	units := wire.GetString(payload[4 : 4+unitsFieldSize])
	precision := int16(binary.BigEndian.Uint16(payload[4+unitsFieldSize : 4+unitsFieldSize+2]))
	base := 4 + unitsFieldSize + 2
	limits := make([]float64, numLimits)
	for i := range limits {
		off := base + i*elementSize
		limits[i] = decodeLimit(payload[off:off+elementSize], kind, elementSize)
	}
	return status, severity, units, precision, limits
}

// encodeValue renders v's elements as a tightly packed big-endian array,
// with no padding; frame-level 8-byte padding is the caller's job.
func encodeValue(v Value) ([]byte, error) {
	switch v.Kind {
	case KindByte:
		return append([]byte{}, v.Bytes...), nil
	case KindShort:
		out := make([]byte, 2*len(v.Shorts))
		for i, s := range v.Shorts {
			binary.BigEndian.PutUint16(out[i*2:], uint16(s))
		}
		return out, nil
	case KindInt:
		out := make([]byte, 4*len(v.Ints))
		for i, n := range v.Ints {
			binary.BigEndian.PutUint32(out[i*4:], uint32(n))
		}
		return out, nil
	case KindFloat:
		out := make([]byte, 4*len(v.Floats))
		for i, f := range v.Floats {
			binary.BigEndian.PutUint32(out[i*4:], math.Float32bits(f))
		}
		return out, nil
	case KindDouble:
		out := make([]byte, 8*len(v.Double))
		for i, d := range v.Double {
			binary.BigEndian.PutUint64(out[i*8:], math.Float64bits(d))
		}
		return out, nil
	case KindString:
		out := make([]byte, wire.MaxStringLen*len(v.Strs))
		for i, s := range v.Strs {
			copy(out[i*wire.MaxStringLen:], wire.PutString(s))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("types: cannot encode value of kind %s", v.Kind)
	}
}

// decodeValue parses count elements of kind out of payload.
func decodeValue(kind Kind, payload []byte, count uint32) (Value, error) {
	n := int(count)
	if n == 0 {
		n = 1
	}
	switch kind {
	case KindByte:
		if len(payload) < n {
			return Value{}, fmt.Errorf("types: short byte payload: have %d, want %d", len(payload), n)
		}
		return Value{Kind: KindByte, Count: n, Bytes: append([]byte{}, payload[:n]...)}, nil
	case KindShort:
		if len(payload) < n*2 {
			return Value{}, fmt.Errorf("types: short short-array payload")
		}
		out := make([]int16, n)
		for i := range out {
			out[i] = int16(binary.BigEndian.Uint16(payload[i*2:]))
		}
		return Value{Kind: KindShort, Count: n, Shorts: out}, nil
	case KindInt:
		if len(payload) < n*4 {
			return Value{}, fmt.Errorf("types: short int-array payload")
		}
		out := make([]int32, n)
		for i := range out {
			out[i] = int32(binary.BigEndian.Uint32(payload[i*4:]))
		}
		return Value{Kind: KindInt, Count: n, Ints: out}, nil
	case KindFloat:
		if len(payload) < n*4 {
			return Value{}, fmt.Errorf("types: short float-array payload")
		}
		out := make([]float32, n)
		for i := range out {
			out[i] = math.Float32frombits(binary.BigEndian.Uint32(payload[i*4:]))
		}
		return Value{Kind: KindFloat, Count: n, Floats: out}, nil
	case KindDouble:
		if len(payload) < n*8 {
			return Value{}, fmt.Errorf("types: short double-array payload")
		}
		out := make([]float64, n)
		for i := range out {
			out[i] = math.Float64frombits(binary.BigEndian.Uint64(payload[i*8:]))
		}
		return Value{Kind: KindDouble, Count: n, Double: out}, nil
	case KindString:
		if len(payload) < n*wire.MaxStringLen {
			return Value{}, fmt.Errorf("types: short string-array payload")
		}
		out := make([]string, n)
		for i := range out {
			out[i] = wire.GetString(payload[i*wire.MaxStringLen : (i+1)*wire.MaxStringLen])
		}
		return Value{Kind: KindString, Count: n, Strs: out}, nil
	default:
		return Value{}, fmt.Errorf("types: cannot decode value of kind %s", kind)
	}
}
