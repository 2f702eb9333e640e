// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vdf

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/luxfi/consensus/ids"
)

// Proof is the wire-format VDF proof from spec.md §6:
//
//	"MAGIC":4 | num_checkpoints:u32 | checkpoint:32 x num_checkpoints
//
// plus a 1-byte discriminator distinguishing a sampled-checkpoint
// proof (KindCheckpoint) from a future succinct proof (KindSTARKReserved).
// Per spec.md §9's open question, sampled-checkpoint verification is
// the only binding semantics until a real succinct proof scheme is
// specified, so KindSTARKReserved is accepted for parsing but always
// rejected by VerifyProof.
type Proof struct {
	Kind        Kind
	Input       ids.Hash
	Output      ids.Hash
	Iterations  uint64
	Checkpoints []ids.Hash
}

// Kind discriminates the proof payload.
type Kind uint8

const (
	KindCheckpoint     Kind = 0
	KindSTARKReserved  Kind = 1
)

var magic = [4]byte{'R', 'V', 'D', 'F'}

// CreateProof packages a VDFOutput into the wire proof shape.
func (e *Engine) CreateProof(o Output) Proof {
	return Proof{
		Kind:        KindCheckpoint,
		Input:       o.Input,
		Output:      o.Output,
		Iterations:  o.Iterations,
		Checkpoints: append([]ids.Hash(nil), o.Checkpoints...),
	}
}

// VerifyProof verifies a Proof using sampled verification with the
// engine's default sample count. A KindSTARKReserved proof is always
// rejected: no succinct verifier exists yet.
func (e *Engine) VerifyProof(ctx context.Context, p Proof) (bool, error) {
	if p.Kind != KindCheckpoint {
		return false, nil
	}
	o := Output{Input: p.Input, Output: p.Output, Iterations: p.Iterations, Checkpoints: p.Checkpoints}
	return e.VerifySampled(ctx, o, 0)
}

// Serialize encodes the proof per spec.md §6's wire format, big-endian:
//
//	MAGIC:4 | num_checkpoints:u32 | kind:1 | iterations:u64 | checkpoint:32 x num_checkpoints
func (p Proof) Serialize() []byte {
	buf := make([]byte, 0, 4+4+1+8+8+len(p.Checkpoints)*ids.HashLen)
	buf = append(buf, magic[:]...)
	var numBuf [4]byte
	binary.BigEndian.PutUint32(numBuf[:], uint32(len(p.Checkpoints)))
	buf = append(buf, numBuf[:]...)
	buf = append(buf, byte(p.Kind))

	var iterBuf [8]byte
	binary.BigEndian.PutUint64(iterBuf[:], p.Iterations)
	buf = append(buf, iterBuf[:]...)

	for _, c := range p.Checkpoints {
		buf = append(buf, c[:]...)
	}
	return buf
}

// DeserializeProof parses the wire format produced by Serialize.
// Input/Output are recovered from the first/last checkpoint.
func DeserializeProof(b []byte) (Proof, error) {
	const headerLen = 4 + 4 + 1 + 8
	if len(b) < headerLen {
		return Proof{}, fmt.Errorf("%w: short buffer", ErrMalformedProof)
	}
	if [4]byte(b[0:4]) != magic {
		return Proof{}, fmt.Errorf("%w: bad magic", ErrMalformedProof)
	}
	numCheckpoints := binary.BigEndian.Uint32(b[4:8])
	kind := Kind(b[8])
	iterations := binary.BigEndian.Uint64(b[9:17])

	rest := b[headerLen:]
	want := int(numCheckpoints) * ids.HashLen
	if len(rest) != want {
		return Proof{}, fmt.Errorf("%w: checkpoint count mismatch", ErrMalformedProof)
	}

	checkpoints := make([]ids.Hash, numCheckpoints)
	for i := range checkpoints {
		h, err := ids.FromBytes(rest[i*ids.HashLen : (i+1)*ids.HashLen])
		if err != nil {
			return Proof{}, err
		}
		checkpoints[i] = h
	}

	p := Proof{Kind: kind, Iterations: iterations, Checkpoints: checkpoints}
	if len(checkpoints) > 0 {
		p.Input = checkpoints[0]
		p.Output = checkpoints[len(checkpoints)-1]
	}
	return p, nil
}
