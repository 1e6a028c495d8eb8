package codec

import "github.com/vmihailenco/msgpack/v5"

// Msgpack serializes structured values using vmihailenco/msgpack/v5.
// The zero value is ready to use and it is the Packer default.
//
// Msgpack is compact and fast; be mindful of struct tag differences vs JSON.
// Use `msgpack:"fieldName"` tags if you need explicit control.
type Msgpack struct{}

var _ Serializer = Msgpack{}

func (Msgpack) ID() byte { return IDMsgpack }

func (Msgpack) Marshal(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (Msgpack) Unmarshal(b []byte, dest any) error {
	return msgpack.Unmarshal(b, dest)
}
