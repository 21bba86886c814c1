package persistence

import (
	"encoding/json"
	"fmt"
)

// JSONCodec encodes payloads as JSON, grounded on the teacher's JSONSerializer.
type JSONCodec struct{}

func NewJSONCodec() *JSONCodec { return &JSONCodec{} }

func (JSONCodec) Encode(v any) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json encode: %w", err)
	}
	return data, nil
}

func (JSONCodec) Decode(data []byte, target any) error {
	if target == nil {
		return fmt.Errorf("decode target cannot be nil")
	}
	if len(data) == 0 {
		return fmt.Errorf("decode: empty data")
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("json decode: %w", err)
	}
	return nil
}
