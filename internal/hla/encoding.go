package hla

import (
	"encoding/binary"
	"fmt"
	"math"

	"golang.org/x/text/encoding/unicode"
)

// DecodeError reports a payload that does not match its declared data type.
type DecodeError struct {
	DataType string
	Reason   string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %s", e.DataType, e.Reason)
}

// HLAboolean is an HLAinteger32BE enumeration: HLAfalse = 0, HLAtrue = 1.
const (
	hlaFalse int32 = 0
	hlaTrue  int32 = 1
)

var utf16BE = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

// EncodeBoolean encodes v as HLAboolean.
func EncodeBoolean(v bool) []byte {
	out := make([]byte, 4)
	if v {
		binary.BigEndian.PutUint32(out, uint32(hlaTrue))
	}
	return out
}

// DecodeBoolean decodes an HLAboolean. Any value other than HLAfalse or
// HLAtrue is rejected.
func DecodeBoolean(data []byte) (bool, error) {
	if len(data) != 4 {
		return false, &DecodeError{DataType: "HLAboolean", Reason: fmt.Sprintf("length %d, want 4", len(data))}
	}
	switch int32(binary.BigEndian.Uint32(data)) {
	case hlaTrue:
		return true, nil
	case hlaFalse:
		return false, nil
	default:
		return false, &DecodeError{DataType: "HLAboolean", Reason: fmt.Sprintf("enumerator %d out of range", int32(binary.BigEndian.Uint32(data)))}
	}
}

// EncodeUnicodeString encodes s as HLAunicodeString: an HLAinteger32BE count
// of UTF-16 code units followed by the units in big-endian order.
func EncodeUnicodeString(s string) ([]byte, error) {
	units, err := utf16BE.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("encode HLAunicodeString: %w", err)
	}
	if len(units)/2 > math.MaxInt32 {
		return nil, fmt.Errorf("encode HLAunicodeString: %d code units exceed HLAinteger32BE", len(units)/2)
	}
	out := make([]byte, 4+len(units))
	binary.BigEndian.PutUint32(out, uint32(len(units)/2))
	copy(out[4:], units)
	return out, nil
}

// MustEncodeUnicodeString is EncodeUnicodeString for literals known to be valid.
func MustEncodeUnicodeString(s string) []byte {
	out, err := EncodeUnicodeString(s)
	if err != nil {
		panic(err)
	}
	return out
}

// DecodeUnicodeString decodes an HLAunicodeString. The element count must
// account for the whole payload.
func DecodeUnicodeString(data []byte) (string, error) {
	if len(data) < 4 {
		return "", &DecodeError{DataType: "HLAunicodeString", Reason: fmt.Sprintf("length %d shorter than count prefix", len(data))}
	}
	count := int32(binary.BigEndian.Uint32(data))
	if count < 0 {
		return "", &DecodeError{DataType: "HLAunicodeString", Reason: fmt.Sprintf("negative element count %d", count)}
	}
	if int64(len(data)-4) != 2*int64(count) {
		return "", &DecodeError{DataType: "HLAunicodeString", Reason: fmt.Sprintf("element count %d does not match %d payload bytes", count, len(data)-4)}
	}
	text, err := utf16BE.NewDecoder().Bytes(data[4:])
	if err != nil {
		return "", &DecodeError{DataType: "HLAunicodeString", Reason: err.Error()}
	}
	return string(text), nil
}

// EncodeHandle encodes raw handle bytes as HLAhandle (a variable array of HLAbyte).
func EncodeHandle(raw []byte) FederateHandle {
	out := make(FederateHandle, 4+len(raw))
	binary.BigEndian.PutUint32(out, uint32(len(raw)))
	copy(out[4:], raw)
	return out
}
