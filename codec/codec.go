// Package codec encodes entity payloads that travel as opaque bytes, such as
// the serialized character data of the rpc transport.
package codec

import (
	"encoding/json"
	"fmt"
)

// Codec encodes/decodes values V to []byte.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Names accepted by New.
const (
	NameMsgpack = "msgpack"
	NameCBOR    = "cbor"
	NameJSON    = "json"
)

// New returns the codec registered under name. An empty name selects
// msgpack.
func New[V any](name string) (Codec[V], error) {
	switch name {
	case "", NameMsgpack:
		return Msgpack[V]{}, nil
	case NameCBOR:
		return NewCBOR[V](false)
	case NameJSON:
		return JSON[V]{}, nil
	}
	return nil, fmt.Errorf("codec: unknown codec %q", name)
}

// JSON is a Codec backed by encoding/json.
type JSON[V any] struct{}

func (JSON[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }

func (JSON[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}

// Limit wraps another codec and rejects payloads larger than MaxDecode
// bytes at Decode time. MaxDecode <= 0 disables the check.
type Limit[V any] struct {
	Inner     Codec[V]
	MaxDecode int
}

func (c Limit[V]) Encode(v V) ([]byte, error) { return c.Inner.Encode(v) }

func (c Limit[V]) Decode(b []byte) (V, error) {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		var zero V
		return zero, fmt.Errorf("codec: payload too large: %d > %d", len(b), c.MaxDecode)
	}
	return c.Inner.Decode(b)
}
