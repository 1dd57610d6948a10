package typed

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Codec turns records into the bytes the engine stores.
type Codec[T any] interface {
	Marshal(v T) ([]byte, error)
	Unmarshal(data []byte) (T, error)
}

var encMode = mustEncMode()

func mustEncMode() cbor.EncMode {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("typed: invalid cbor options: %v", err))
	}
	return mode
}

// CBOR is the default codec. Encoding is deterministic, so equal records
// always produce equal bytes.
type CBOR[T any] struct{}

func (CBOR[T]) Marshal(v T) ([]byte, error) {
	return encMode.Marshal(v)
}

func (CBOR[T]) Unmarshal(data []byte) (T, error) {
	var v T
	err := cbor.Unmarshal(data, &v)
	return v, err
}
