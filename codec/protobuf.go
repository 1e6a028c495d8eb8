package codec

import (
	"fmt"

	"google.golang.org/protobuf/proto"
)

// Protobuf serializes a single message type T. Values passed to Marshal must
// be proto.Message; untyped decodes build a fresh T with the constructor.
type Protobuf[T proto.Message] struct {
	new func() T // constructor for a concrete message (e.g., func() *mypb.User { return &mypb.User{} })
}

func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{new: ctor}
}

func (Protobuf[T]) ID() byte { return IDProtobuf }

func (c Protobuf[T]) Marshal(v any) ([]byte, error) {
	m, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("protobuf: %T is not a proto.Message", v)
	}
	return proto.Marshal(m)
}

func (c Protobuf[T]) Unmarshal(b []byte, dest any) error {
	switch d := dest.(type) {
	case proto.Message:
		return proto.Unmarshal(b, d)
	case *T:
		m := c.new()
		if err := proto.Unmarshal(b, m); err != nil {
			return err
		}
		*d = m
		return nil
	case *any:
		m := c.new()
		if err := proto.Unmarshal(b, m); err != nil {
			return err
		}
		*d = m
		return nil
	}
	return fmt.Errorf("protobuf: cannot decode into %T", dest)
}
