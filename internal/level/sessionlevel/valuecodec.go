package sessionlevel

import "encoding/json"

// ValueCodec encodes cached values for persistence in the host store.
type ValueCodec interface {
	// Name identifies the codec.
	Name() string
	// Marshal encodes v.
	Marshal(v any) ([]byte, error)
	// Unmarshal decodes data into the value pointed to by v.
	Unmarshal(data []byte, v any) error
}

type jsonCodec struct{}

// JSON returns the default value codec, backed by encoding/json.
func JSON() ValueCodec {
	return jsonCodec{}
}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
