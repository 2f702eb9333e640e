// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package wire implements the block wire format of spec.md §6: a
// fixed-shape, big-endian header plus a varint-counted body. This is
// the one wire surface spec.md's Non-goals ("wire serialization
// beyond the consensus-critical fields") does not exclude, since the
// header layout is itself consensus-critical.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/luxfi/consensus/ids"
	"github.com/luxfi/consensus/utils/wrappers"
)

// FixedHeaderLen is the byte length of BlockHeader with zero parents
// (spec.md §6: "fixed portion is 194 bytes").
const FixedHeaderLen = 1 + 8 + 8 + 1 + 32 + 8 + 32 + 32 + 32 + 32 + 8

var (
	ErrTruncated      = errors.New("wire: truncated header")
	ErrTooManyParents = errors.New("wire: parent_count exceeds MAX_PARENTS")
	ErrTrailingBytes  = errors.New("wire: trailing bytes after header")
)

// MaxParents mirrors engine/dag.MaxParents without importing the dag
// package, so wire stays a leaf serialization layer with no
// consensus-logic dependency.
const MaxParents = 8

// BlockHeader is the exact field set of spec.md §3 BlockHeader,
// in wire order.
type BlockHeader struct {
	Version       uint8
	TimestampMS   uint64
	Height        uint64
	ParentHashes  []ids.Hash
	VDFOutput     ids.Hash
	VDFIterations uint64
	HeartbeatRoot ids.Hash
	TxRoot        ids.Hash
	StateRoot     ids.Hash
	ProducerID    ids.Hash
	Nonce         uint64
}

// Marshal serializes h per spec.md §6's fixed big-endian layout:
//
//	version:1 | timestamp_ms:8 | height:8 | parent_count:1 | parent_hashes:32·parent_count |
//	vdf_output:32 | vdf_iterations:8 | heartbeat_root:32 | tx_root:32 | state_root:32 |
//	producer_id:32 | nonce:8
func (h BlockHeader) Marshal() ([]byte, error) {
	if len(h.ParentHashes) > MaxParents {
		return nil, ErrTooManyParents
	}

	p := wrappers.NewPacker(FixedHeaderLen + 32*len(h.ParentHashes))
	p.PackByte(h.Version)
	p.PackLong(h.TimestampMS)
	p.PackLong(h.Height)
	p.PackByte(byte(len(h.ParentHashes)))
	for _, ph := range h.ParentHashes {
		p.PackBytes(ph.Bytes())
	}
	p.PackBytes(h.VDFOutput.Bytes())
	p.PackLong(h.VDFIterations)
	p.PackBytes(h.HeartbeatRoot.Bytes())
	p.PackBytes(h.TxRoot.Bytes())
	p.PackBytes(h.StateRoot.Bytes())
	p.PackBytes(h.ProducerID.Bytes())
	p.PackLong(h.Nonce)
	return p.Bytes, nil
}

// UnmarshalHeader parses a BlockHeader, rejecting anything truncated,
// oversized in parent count, or carrying trailing bytes.
func UnmarshalHeader(b []byte) (BlockHeader, error) {
	var h BlockHeader
	if len(b) < 1+8+8+1 {
		return h, ErrTruncated
	}

	off := 0
	h.Version = b[off]
	off++
	h.TimestampMS = binary.BigEndian.Uint64(b[off:])
	off += 8
	h.Height = binary.BigEndian.Uint64(b[off:])
	off += 8
	parentCount := int(b[off])
	off++
	if parentCount > MaxParents {
		return h, ErrTooManyParents
	}

	need := off + 32*parentCount + 32 + 8 + 32 + 32 + 32 + 32 + 8
	if len(b) < need {
		return h, ErrTruncated
	}

	if parentCount > 0 {
		h.ParentHashes = make([]ids.Hash, parentCount)
	}
	for i := 0; i < parentCount; i++ {
		ph, err := ids.FromBytes(b[off : off+32])
		if err != nil {
			return h, fmt.Errorf("wire: parent hash %d: %w", i, err)
		}
		h.ParentHashes[i] = ph
		off += 32
	}

	var err error
	if h.VDFOutput, err = ids.FromBytes(b[off : off+32]); err != nil {
		return h, err
	}
	off += 32
	h.VDFIterations = binary.BigEndian.Uint64(b[off:])
	off += 8
	if h.HeartbeatRoot, err = ids.FromBytes(b[off : off+32]); err != nil {
		return h, err
	}
	off += 32
	if h.TxRoot, err = ids.FromBytes(b[off : off+32]); err != nil {
		return h, err
	}
	off += 32
	if h.StateRoot, err = ids.FromBytes(b[off : off+32]); err != nil {
		return h, err
	}
	off += 32
	if h.ProducerID, err = ids.FromBytes(b[off : off+32]); err != nil {
		return h, err
	}
	off += 32
	h.Nonce = binary.BigEndian.Uint64(b[off:])
	off += 8

	if off != len(b) {
		return h, ErrTrailingBytes
	}
	return h, nil
}
