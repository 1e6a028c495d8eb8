package codec

import "encoding/json"

// JSON serializes structured values with encoding/json. Untyped decodes
// follow encoding/json rules (numbers become float64).
type JSON struct{}

var _ Serializer = JSON{}

func (JSON) ID() byte                           { return IDJSON }
func (JSON) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSON) Unmarshal(b []byte, dest any) error { return json.Unmarshal(b, dest) }
