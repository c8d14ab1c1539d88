package cache

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// CBOR encoding/decoding options configured for security and determinism.
var (
	// encMode defines encoding options for serialization.
	// - Sort: SortCanonical ensures deterministic field ordering (same input → same bytes)
	encMode cbor.EncMode

	// decMode defines decoding options for deserialization.
	// - MaxArrayElements: 10000 prevents DoS from malicious large arrays
	// - MaxMapPairs: 10000 prevents DoS from malicious large maps
	// - MaxNestedLevels: 16 prevents stack overflow from deeply nested structures
	decMode cbor.DecMode
)

//nolint:gochecknoinits // Required for CBOR mode configuration at package load time
func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort: cbor.SortCanonical,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoding mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		MaxArrayElements: 10000,
		MaxMapPairs:      10000,
		MaxNestedLevels:  16,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoding mode: %v", err))
	}
}

// Marshal serializes a value to CBOR bytes.
//
//	data, err := cache.Marshal(user)
//
// Struct tags such as `cbor:"1,keyasint"` shrink the encoding.
func Marshal[T any](v T) ([]byte, error) {
	data, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cbor marshal failed: %w", err)
	}
	return data, nil
}

// Unmarshal deserializes CBOR bytes into a value of type T.
func Unmarshal[T any](data []byte) (T, error) {
	var v T
	if err := decMode.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("cbor unmarshal failed: %w", err)
	}
	return v, nil
}

// envelope is the stored form of an Entry. Payload and expiry travel in one
// value so a reader never observes one without the other.
type envelope struct {
	Payload []byte `cbor:"1,keyasint"`
	Expiry  int64  `cbor:"2,keyasint"` // unix nanoseconds
}

func encodeEntry(e Entry) ([]byte, error) {
	return Marshal(envelope{Payload: e.Payload, Expiry: e.Expiry.UnixNano()})
}

func decodeEntry(data []byte) (Entry, error) {
	env, err := Unmarshal[envelope](data)
	if err != nil {
		return Entry{}, err
	}
	if env.Expiry == 0 {
		return Entry{}, fmt.Errorf("cbor envelope has no expiry")
	}
	return Entry{Payload: env.Payload, Expiry: time.Unix(0, env.Expiry)}, nil
}
