// Package codec packs caller values into the bytes a backend stores and back.
//
// Integers are stored as bare base-10 text so that backends can increment them
// natively. Every other value is framed with a kind tag; structured values
// (structs, maps, slices, ...) additionally record which Serializer produced
// them so Unpack can pick the matching decoder.
package codec

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/unkn0wn-root/cachekit/internal/wire"
)

// Serializer ids recorded in structured frames. 0 is reserved for "none".
const (
	IDMsgpack  byte = 1
	IDJSON     byte = 2
	IDCBOR     byte = 3
	IDProtobuf byte = 4
)

var (
	// ErrCorrupt is returned when stored bytes are neither a valid frame nor a
	// bare integer.
	ErrCorrupt = wire.ErrCorrupt
	// ErrUnknownSerializer is returned when a structured frame names a
	// serializer this Packer was not configured with.
	ErrUnknownSerializer = errors.New("codec: unknown serializer")
)

// Serializer encodes structured values. Marshal must accept any value the
// application stores; Unmarshal decodes into dest, which is always a non-nil
// pointer (possibly *any).
type Serializer interface {
	ID() byte
	Marshal(v any) ([]byte, error)
	Unmarshal(b []byte, dest any) error
}

// Packer is the value codec used by the store. Safe for concurrent use.
type Packer struct {
	ser   Serializer
	known map[byte]Serializer
}

// NewPacker packs structured values with ser (Msgpack when nil). Frames written
// by JSON and Msgpack are always readable; pass extra serializers to read
// frames produced by other configurations.
func NewPacker(ser Serializer, extra ...Serializer) *Packer {
	if ser == nil {
		ser = Msgpack{}
	}
	p := &Packer{ser: ser, known: make(map[byte]Serializer, 2+len(extra))}
	p.known[IDMsgpack] = Msgpack{}
	p.known[IDJSON] = JSON{}
	for _, s := range extra {
		if s != nil {
			p.known[s.ID()] = s
		}
	}
	p.known[ser.ID()] = ser
	return p
}

// Default returns a Packer using Msgpack for structured values.
func Default() *Packer { return NewPacker(nil) }

// Pack encodes v. Integer kinds become bare decimal text; nil, strings, byte
// slices, bools and floats get their own frame kinds; anything else goes
// through the configured Serializer.
func (p *Packer) Pack(v any) ([]byte, error) {
	if b, ok := packScalar(v); ok {
		return b, nil
	}
	payload, err := p.ser.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: marshal %T: %w", v, err)
	}
	return wire.Encode(wire.KindStructured, p.ser.ID(), payload), nil
}

// Unpack decodes b. Integers come back as int64 (uint64 above MaxInt64),
// floats as float64. Structured values are decoded into an untyped any
// (maps/slices); use UnpackInto for typed reconstruction.
func (p *Packer) Unpack(b []byte) (any, error) {
	if !wire.IsFramed(b) {
		return unpackInteger(b)
	}
	kind, sid, payload, err := wire.Decode(b)
	if err != nil {
		return nil, err
	}
	if kind != wire.KindStructured {
		return unpackScalar(kind, payload)
	}
	ser, err := p.serializer(sid)
	if err != nil {
		return nil, err
	}
	var out any
	if err := ser.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("codec: unmarshal: %w", err)
	}
	return out, nil
}

// UnpackInto decodes b into dest, which must be a non-nil pointer. Structured
// values are decoded by their serializer straight into dest; scalars are
// assigned when dest's element type can hold them.
func (p *Packer) UnpackInto(b []byte, dest any) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("codec: destination must be a non-nil pointer, got %T", dest)
	}
	if wire.IsFramed(b) {
		kind, sid, payload, err := wire.Decode(b)
		if err != nil {
			return err
		}
		if kind == wire.KindStructured {
			ser, err := p.serializer(sid)
			if err != nil {
				return err
			}
			if err := ser.Unmarshal(payload, dest); err != nil {
				return fmt.Errorf("codec: unmarshal into %T: %w", dest, err)
			}
			return nil
		}
	}
	v, err := p.Unpack(b)
	if err != nil {
		return err
	}
	return assign(rv.Elem(), v)
}

func (p *Packer) serializer(id byte) (Serializer, error) {
	ser, ok := p.known[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownSerializer, id)
	}
	return ser, nil
}

// assign stores v into dst. Numeric values convert across numeric kinds;
// nothing converts to or from strings implicitly.
func assign(dst reflect.Value, v any) error {
	if v == nil {
		dst.SetZero()
		return nil
	}
	src := reflect.ValueOf(v)
	if src.Type().AssignableTo(dst.Type()) {
		dst.Set(src)
		return nil
	}
	if isNumeric(src.Kind()) && isNumeric(dst.Kind()) {
		dst.Set(src.Convert(dst.Type()))
		return nil
	}
	if src.Kind() == dst.Kind() && src.CanConvert(dst.Type()) {
		// named string/bool/[]byte types
		dst.Set(src.Convert(dst.Type()))
		return nil
	}
	return fmt.Errorf("codec: cannot assign %T to %s", v, dst.Type())
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
