// Package middleware provides serialization hook pairs for durable
// collections: payload encryption at rest and compression.
package middleware

import "github.com/aretw0/sessiondb/pkg/ports"

// Hooks is a matched pair of serialization hooks. Before must undo After.
type Hooks struct {
	After  ports.SerializationHook
	Before ports.SerializationHook
}

// Chain composes hook pairs. After runs in the given order, Before in reverse,
// so Chain(Compression, Encryption) compresses and then encrypts.
func Chain(pairs ...Hooks) Hooks {
	return Hooks{
		After: func(data []byte) ([]byte, error) {
			var err error
			for _, p := range pairs {
				if data, err = p.After(data); err != nil {
					return nil, err
				}
			}
			return data, nil
		},
		Before: func(data []byte) ([]byte, error) {
			var err error
			for i := len(pairs) - 1; i >= 0; i-- {
				if data, err = pairs[i].Before(data); err != nil {
					return nil, err
				}
			}
			return data, nil
		},
	}
}
