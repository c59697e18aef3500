package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// UnmarshalAs decodifica data en un T nuevo. Un cuerpo vacío o "null" es un error.
func UnmarshalAs[T any](data json.RawMessage) (T, error) {
	var out T
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return out, fmt.Errorf("empty payload")
	}
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return out, err
	}
	return out, nil
}
