package middleware

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// NewCompressionHooks compresses payloads with zstd.
func NewCompressionHooks() (Hooks, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return Hooks{}, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return Hooks{}, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	return Hooks{
		After: func(data []byte) ([]byte, error) {
			return enc.EncodeAll(data, nil), nil
		},
		Before: func(data []byte) ([]byte, error) {
			out, err := dec.DecodeAll(data, nil)
			if err != nil {
				return nil, fmt.Errorf("failed to decompress payload: %w", err)
			}
			return out, nil
		},
	}, nil
}
