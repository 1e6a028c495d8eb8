package codec

import (
	"encoding/binary"
	"math"

	"github.com/unkn0wn-root/cachekit/internal/wire"
)

// packScalar handles the value kinds that never reach a Serializer.
func packScalar(v any) ([]byte, bool) {
	switch x := v.(type) {
	case nil:
		return wire.Encode(wire.KindNil, 0, nil), true
	case int:
		return wire.EncodeInt(int64(x)), true
	case int8:
		return wire.EncodeInt(int64(x)), true
	case int16:
		return wire.EncodeInt(int64(x)), true
	case int32:
		return wire.EncodeInt(int64(x)), true
	case int64:
		return wire.EncodeInt(x), true
	case uint:
		return wire.EncodeUint(uint64(x)), true
	case uint8:
		return wire.EncodeUint(uint64(x)), true
	case uint16:
		return wire.EncodeUint(uint64(x)), true
	case uint32:
		return wire.EncodeUint(uint64(x)), true
	case uint64:
		return wire.EncodeUint(x), true
	case string:
		return wire.Encode(wire.KindString, 0, []byte(x)), true
	case []byte:
		return wire.Encode(wire.KindBytes, 0, x), true
	case bool:
		b := byte(0)
		if x {
			b = 1
		}
		return wire.Encode(wire.KindBool, 0, []byte{b}), true
	case float32:
		return packFloat(float64(x)), true
	case float64:
		return packFloat(x), true
	}
	return nil, false
}

func packFloat(f float64) []byte {
	var u8 [8]byte
	binary.BigEndian.PutUint64(u8[:], math.Float64bits(f))
	return wire.Encode(wire.KindFloat, 0, u8[:])
}

func unpackScalar(kind byte, payload []byte) (any, error) {
	switch kind {
	case wire.KindNil:
		if len(payload) != 0 {
			return nil, ErrCorrupt
		}
		return nil, nil
	case wire.KindString:
		return string(payload), nil
	case wire.KindBytes:
		return append([]byte{}, payload...), nil
	case wire.KindBool:
		if len(payload) != 1 || payload[0] > 1 {
			return nil, ErrCorrupt
		}
		return payload[0] == 1, nil
	case wire.KindFloat:
		if len(payload) != 8 {
			return nil, ErrCorrupt
		}
		return math.Float64frombits(binary.BigEndian.Uint64(payload)), nil
	}
	return nil, ErrCorrupt
}

func unpackInteger(b []byte) (any, error) {
	if n, err := wire.ParseInt(b); err == nil {
		return n, nil
	}
	if u, err := wire.ParseUint(b); err == nil {
		return u, nil
	}
	return nil, ErrCorrupt
}
