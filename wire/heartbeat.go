// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wire

import (
	"encoding/binary"
	"errors"

	"github.com/luxfi/consensus/ids"
	"github.com/luxfi/consensus/utils/wrappers"
)

// HeartbeatKind discriminates the two heartbeat variants of spec.md §9's
// design note ("model as a tagged variant with a common view... leading
// discriminator byte"), replacing dynamic dispatch over heartbeat types.
type HeartbeatKind uint8

const (
	// FullHeartbeat carries a storage-availability proof alongside the
	// common view, emitted periodically rather than every slot.
	FullHeartbeat HeartbeatKind = iota
	// LightHeartbeat carries only the common view: a cheap per-slot
	// liveness signal.
	LightHeartbeat
)

var (
	ErrUnknownHeartbeatKind  = errors.New("wire: unknown heartbeat discriminator")
	ErrHeartbeatTruncated    = errors.New("wire: truncated heartbeat")
	ErrHeartbeatTrailingData = errors.New("wire: trailing bytes after heartbeat")
)

// HeartbeatView is the common projection every heartbeat variant
// exposes, per spec.md §9: `{node_id, source_tier, timestamp, prev_hash}`.
type HeartbeatView struct {
	NodeID     ids.Hash
	SourceTier uint8
	Timestamp  uint64
	PrevHash   ids.Hash
}

// Heartbeat is the tagged variant itself. StorageProof is populated
// only for Kind == FullHeartbeat; LightHeartbeat carries none.
type Heartbeat struct {
	Kind       HeartbeatKind
	NodeID     ids.Hash
	SourceTier uint8
	Timestamp  uint64
	PrevHash   ids.Hash

	StorageProof []byte
}

// View returns the common projection shared by both variants.
func (h Heartbeat) View() HeartbeatView {
	return HeartbeatView{
		NodeID:     h.NodeID,
		SourceTier: h.SourceTier,
		Timestamp:  h.Timestamp,
		PrevHash:   h.PrevHash,
	}
}

// Encode serializes a Heartbeat as a leading discriminator byte
// followed by the common view, followed (for FullHeartbeat only) by a
// varint-length-prefixed storage proof.
func (h Heartbeat) Encode() []byte {
	p := wrappers.NewPacker(1 + 32 + 1 + 8 + 32)
	p.PackByte(byte(h.Kind))
	p.PackBytes(h.NodeID.Bytes())
	p.PackByte(h.SourceTier)
	p.PackLong(h.Timestamp)
	p.PackBytes(h.PrevHash.Bytes())

	out := p.Bytes
	if h.Kind == FullHeartbeat {
		var lenBuf [binary.MaxVarintLen64]byte
		n := binary.PutUvarint(lenBuf[:], uint64(len(h.StorageProof)))
		out = append(out, lenBuf[:n]...)
		out = append(out, h.StorageProof...)
	}
	return out
}

// DecodeHeartbeat parses a Heartbeat produced by Encode.
func DecodeHeartbeat(b []byte) (Heartbeat, error) {
	var h Heartbeat
	if len(b) < 1+32+1+8+32 {
		return h, ErrHeartbeatTruncated
	}

	off := 0
	kind := HeartbeatKind(b[off])
	off++
	if kind != FullHeartbeat && kind != LightHeartbeat {
		return h, ErrUnknownHeartbeatKind
	}
	h.Kind = kind

	nodeID, err := ids.FromBytes(b[off : off+32])
	if err != nil {
		return h, err
	}
	h.NodeID = nodeID
	off += 32

	h.SourceTier = b[off]
	off++
	h.Timestamp = binary.BigEndian.Uint64(b[off:])
	off += 8

	prevHash, err := ids.FromBytes(b[off : off+32])
	if err != nil {
		return h, err
	}
	h.PrevHash = prevHash
	off += 32

	if kind == LightHeartbeat {
		if off != len(b) {
			return h, ErrHeartbeatTrailingData
		}
		return h, nil
	}

	proofLen, n := binary.Uvarint(b[off:])
	if n <= 0 {
		return h, ErrHeartbeatTruncated
	}
	off += n
	if uint64(len(b)-off) < proofLen {
		return h, ErrHeartbeatTruncated
	}
	h.StorageProof = append([]byte(nil), b[off:off+int(proofLen)]...)
	off += int(proofLen)

	if off != len(b) {
		return h, ErrHeartbeatTrailingData
	}
	return h, nil
}
