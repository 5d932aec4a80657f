// Package batchid converts human-readable batch identifiers to and from
// their fixed-width on-ledger representation.
//
// The ledger contract stores batch identifiers as bytes32. Encode pads
// shorter identifiers with trailing zero bytes; Decode strips them. The
// codec performs no collision detection: callers are expected to validate
// identifier length before minting new batches.
package batchid

import (
	"bytes"

	"github.com/agritrace/provenance-node/errors"
)

// Width is the fixed on-ledger identifier width in bytes.
const Width = 32

// Encode converts an identifier string into its fixed-width representation.
// Fails with ErrCodeIdentifierTooLong when the input exceeds Width bytes.
func Encode(id string) ([Width]byte, error) {
	var out [Width]byte
	if len(id) > Width {
		return out, errors.Newf(errors.ErrCodeIdentifierTooLong,
			"batch identifier %q is %d bytes, maximum is %d", id, len(id), Width)
	}
	copy(out[:], id)
	return out, nil
}

// Decode converts a fixed-width representation back to the identifier
// string by stripping trailing zero padding.
func Decode(raw [Width]byte) string {
	return string(bytes.TrimRight(raw[:], "\x00"))
}
