// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ids defines the opaque identifier types shared across the
// consensus kernel: block hashes, node ids, and VDF checkpoints are
// all the same fixed-width Hash.
package ids

import (
	"bytes"
	"encoding/hex"
	"errors"
)

// HashLen is the fixed width of every Hash in the kernel.
const HashLen = 32

// ErrInvalidHashLen is returned by FromBytes when the input isn't 32 bytes.
var ErrInvalidHashLen = errors.New("ids: hash must be exactly 32 bytes")

// Hash is a fixed 32-byte opaque identifier. It is used as block id,
// node id, state root, and VDF checkpoint/output. Ordering is total
// and lexicographic on the raw bytes.
type Hash [HashLen]byte

// Empty is the zero hash, used as the sentinel "no parent" value for
// genesis.
var Empty Hash

// NodeID identifies a participant. It is a type alias of Hash, so node
// ids and block hashes are the same type and freely interchangeable.
type NodeID = Hash

// FromBytes copies b into a Hash, failing if the length is wrong.
func FromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashLen {
		return h, ErrInvalidHashLen
	}
	copy(h[:], b)
	return h, nil
}

// Bytes returns a copy of the hash as a byte slice.
func (h Hash) Bytes() []byte {
	out := make([]byte, HashLen)
	copy(out, h[:])
	return out
}

// IsEmpty reports whether h is the zero hash.
func (h Hash) IsEmpty() bool {
	return h == Empty
}

// String renders the hash as lowercase hex.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Less implements the lexicographic total order required for
// deterministic tie-breaking (PHANTOM blue/red ties, fork resolution).
func (h Hash) Less(o Hash) bool {
	return bytes.Compare(h[:], o[:]) < 0
}

// Compare returns -1, 0, or 1 following the same lexicographic order
// as Less; convenient for sort.Slice-free comparisons.
func (h Hash) Compare(o Hash) int {
	return bytes.Compare(h[:], o[:])
}

// ParseHex parses a hex string into a Hash.
func ParseHex(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		var z Hash
		return z, err
	}
	return FromBytes(b)
}

// SortHashes returns a new, ascending-sorted copy of hs.
func SortHashes(hs []Hash) []Hash {
	out := make([]Hash, len(hs))
	copy(out, hs)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Less(out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
