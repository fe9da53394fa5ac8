package persistence

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FormatVersion is written into every stored blob.
const FormatVersion = 1

type envelope[T any] struct {
	Version int `json:"version"`
	Items   []T `json:"items"`
}

func encode[T any](items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	return json.Marshal(envelope[T]{Version: FormatVersion, Items: items})
}

// decode accepts the versioned envelope and the bare array written by
// earlier, unversioned releases.
func decode[T any](data []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty blob")
	}

	if trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decoding legacy array: %w", err)
		}
		return items, nil
	}

	var env envelope[T]
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("decoding envelope: %w", err)
	}
	if env.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported format version %d", env.Version)
	}
	return env.Items, nil
}
