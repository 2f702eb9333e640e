// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package chainkernel wires the six consensus components into the
// dominant data flow of spec.md §5: external clocks feed the
// Atomic-Time Oracle, a seed derived from the previous block's VDF
// output flows into the VDF engine, the resulting checkpoint plus the
// producer's key feed the lottery, a winning eligibility proof
// authorizes block production, the block is inserted into the DAG,
// and later checkpoints promote it through finality.
package chainkernel

import (
	"context"
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/luxfi/log"

	"github.com/luxfi/consensus/config"
	cryptosigner "github.com/luxfi/consensus/crypto/signer"
	"github.com/luxfi/consensus/engine/dag"
	"github.com/luxfi/consensus/finality"
	"github.com/luxfi/consensus/ids"
	"github.com/luxfi/consensus/lottery"
	"github.com/luxfi/consensus/reputation"
	"github.com/luxfi/consensus/timesync"
	"github.com/luxfi/consensus/vdf"
	"github.com/luxfi/consensus/wire"
)

// Storage is the abstract key/value collaborator of spec.md §6
// ("Storage: key/value with atomic block writes and a 'best block
// hash' pointer"). The kernel never imports a concrete storage
// engine — spec.md's Non-goals explicitly exclude on-disk chain
// storage engines.
type Storage interface {
	PutBlock(hash ids.Hash, header wire.BlockHeader, body wire.Body) error
	BestBlockHash() (ids.Hash, bool)
	SetBestBlockHash(ids.Hash) error
}

// Mempool yields a length-bounded batch of serialized transactions
// per slot (spec.md §6).
type Mempool interface {
	NextBatch(maxBytes int) [][]byte
}

var (
	ErrNotEligible        = errors.New("chainkernel: not eligible to produce in this slot")
	ErrNoParent           = errors.New("chainkernel: no known parent to extend")
	ErrTimeDegraded       = errors.New("chainkernel: atomic-time oracle has no fresh consensus")
	ErrInvalidSignature   = errors.New("chainkernel: consensus-invalid: producer signature does not verify")
	ErrInvalidEligibility = errors.New("chainkernel: consensus-invalid: eligibility proof does not verify")
	ErrBrokenVDFChain     = errors.New("chainkernel: consensus-invalid: vdf_output not reachable from selected parent")
)

// Kernel owns all six components and exposes the producer loop and
// block-ingest API.
type Kernel struct {
	params config.Params
	logger log.Logger

	clock      *timesync.Oracle
	vdfEngine  *vdf.Engine
	reputation *reputation.Engine
	dagStore   *dag.DAG
	accumulator *finality.Accumulator

	storage Storage
	mempool Mempool

	signer   ed25519.PrivateKey
	bodySign cryptosigner.Signer
	nodeID   ids.Hash
	tier     lottery.Tier
}

// New wires the six components together. acc is constructed by the
// caller and passed in (rather than built internally) so the caller
// can register an IrreversibleNotifier before the DAG exists — see
// dag.New's acc parameter.
func New(
	params config.Params,
	logger log.Logger,
	clock *timesync.Oracle,
	vdfEngine *vdf.Engine,
	rep *reputation.Engine,
	acc *finality.Accumulator,
	storage Storage,
	mempool Mempool,
	signer ed25519.PrivateKey,
	nodeID ids.Hash,
	tier lottery.Tier,
) *Kernel {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	d := dag.New(dag.Params{PhantomK: params.PhantomK, MaxReorgDepth: params.MaxReorgDepth}, acc, logger)
	return &Kernel{
		params:      params,
		logger:      logger,
		clock:       clock,
		vdfEngine:   vdfEngine,
		reputation:  rep,
		dagStore:    d,
		accumulator: acc,
		storage:     storage,
		mempool:     mempool,
		signer:      signer,
		bodySign:    cryptosigner.NewEd25519FromSeed(signer.Seed()),
		nodeID:      nodeID,
		// bodySign is derived from the same key as the VRF signer: one
		// producer identity, two signature roles (eligibility proof vs.
		// block body authenticity).
		tier:        tier,
	}
}

// DAG exposes the underlying DAG store for read-side queries (main
// chain, finality state) without re-exporting every method.
func (k *Kernel) DAG() *dag.DAG { return k.dagStore }

// Bootstrap installs the genesis block.
func (k *Kernel) Bootstrap(header dag.Header, hash ids.Hash) error {
	return k.dagStore.AddGenesis(header, hash)
}

// TryProduceBlock runs one pass of the producer loop for slot: checks
// the atomic-time oracle is fresh, checks lottery eligibility against
// the current main-chain tip, and — if eligible — computes the next
// VDF segment on top of that tip and builds and inserts a new block. It returns
// ErrNotEligible (not an error condition; a silent skip) when this
// node did not win the slot.
func (k *Kernel) TryProduceBlock(ctx context.Context, slot uint64) (ids.Hash, error) {
	if k.clock.Degraded() {
		return ids.Empty, ErrTimeDegraded
	}

	chain := k.dagStore.GetMainChain()
	if len(chain) == 0 {
		return ids.Empty, ErrNoParent
	}
	parentHash := chain[len(chain)-1]
	parent, ok := k.dagStore.Node(parentHash)
	if !ok {
		return ids.Empty, ErrNoParent
	}

	score := uint64(k.reputation.Score(k.nodeID) * 1_000_000)
	totalScore := uint64(1_000_000) // caller-supplied network total in a real deployment

	proof, won, err := lottery.Check(k.signer, k.nodeID, parent.Header.VDFOutput, slot, k.tier, score, totalScore)
	if err != nil {
		return ids.Empty, fmt.Errorf("chainkernel: lottery check: %w", err)
	}
	if !won {
		return ids.Empty, ErrNotEligible
	}

	out, err := k.vdfEngine.Compute(ctx, parent.Header.VDFOutput, k.params.VDFBaseIterations, true)
	if err != nil {
		return ids.Empty, fmt.Errorf("chainkernel: vdf compute: %w", err)
	}

	header := dag.Header{
		Version:       1,
		Height:        parent.Header.Height + 1,
		TimestampMS:   k.clock.CurrentTimeMS(),
		ParentHashes:  []ids.Hash{parentHash},
		VDFOutput:     out.Output,
		VDFIterations: out.Iterations,
		ProducerID:    k.nodeID,
		// Nonce ties the header to this slot's eligibility proof (the
		// first 8 bytes of beta are unique per node+slot+parent) so
		// header-only hashing still yields a unique block id, per
		// spec.md §3's nonce/"uniqueness tiebreaker" field.
		Nonce: binary.BigEndian.Uint64(proof.Beta[:8]),
	}

	wireHeader := toWireHeader(header)
	headerBytes, err := wireHeader.Marshal()
	if err != nil {
		return ids.Empty, fmt.Errorf("chainkernel: header marshal: %w", err)
	}
	hash := sumToHash(headerBytes)

	ok2, err := k.dagStore.AddBlock(header, hash)
	if err != nil {
		return ids.Empty, fmt.Errorf("chainkernel: add block: %w", err)
	}
	if !ok2 {
		return ids.Empty, fmt.Errorf("chainkernel: block %s was rejected as duplicate or orphan", hash)
	}

	if k.storage != nil {
		txs := k.batchTransactions()
		body := wire.Body{Transactions: txs}
		if sig, err := k.bodySign.Sign(headerBytes); err == nil {
			body.Signature = sig
		} else {
			k.logger.Warn("body signing failed", "block", hash.String(), "error", err)
		}
		if err := k.storage.PutBlock(hash, wireHeader, body); err != nil {
			k.logger.Warn("storage put failed", "block", hash.String(), "error", err)
		}
		if err := k.storage.SetBestBlockHash(hash); err != nil {
			k.logger.Warn("storage best-hash update failed", "block", hash.String(), "error", err)
		}
	}

	return hash, nil
}

func (k *Kernel) batchTransactions() [][]byte {
	if k.mempool == nil {
		return nil
	}
	return k.mempool.NextBatch(1 << 20)
}

// IngestBlock validates and inserts a remotely-produced block, per
// spec.md §7's "Consensus-invalid" checks: producer signature over the
// serialized header, the eligibility proof that authorized the slot,
// and VDF chaining from the selected (first) parent. Each rejection
// fires the matching reputation-engine event against the producer
// (spec.md §7 "Propagation policy") before the block is refused.
func (k *Kernel) IngestBlock(ctx context.Context, header dag.Header, hash ids.Hash, body wire.Body, proof lottery.Proof, producerPub ed25519.PublicKey, totalScore uint64) (bool, error) {
	wireHeader := toWireHeader(header)
	headerBytes, err := wireHeader.Marshal()
	if err != nil {
		return false, fmt.Errorf("chainkernel: header marshal: %w", err)
	}

	if !cryptosigner.VerifyEd25519(producerPub, headerBytes, body.Signature) {
		k.recordInvalid(header.ProducerID, reputation.EventBlockInvalid)
		return false, ErrInvalidSignature
	}

	if len(header.ParentHashes) == 0 {
		return false, ErrNoParent
	}
	parent, ok := k.dagStore.Node(header.ParentHashes[0])
	if !ok {
		return false, ErrNoParent
	}

	if !lottery.Verify(proof, producerPub, header.ProducerID, parent.Header.VDFOutput, totalScore) {
		k.recordInvalid(header.ProducerID, reputation.EventVRFInvalid)
		return false, ErrInvalidEligibility
	}

	chained, err := k.vdfEngine.VerifyFull(ctx, vdf.Output{
		Input:      parent.Header.VDFOutput,
		Output:     header.VDFOutput,
		Iterations: header.VDFIterations,
	})
	if err != nil {
		return false, fmt.Errorf("chainkernel: vdf chain verify: %w", err)
	}
	if !chained {
		k.recordInvalid(header.ProducerID, reputation.EventVDFInvalid)
		return false, ErrBrokenVDFChain
	}

	return k.dagStore.AddBlock(header, hash)
}

// recordInvalid fires a reputation-engine event against node, logging
// rather than failing ingest if the engine itself rejects it (e.g. a
// stale timestamp on the synthetic event) — the block's own rejection
// already happened independent of this bookkeeping.
func (k *Kernel) recordInvalid(node ids.Hash, kind reputation.EventKind) {
	if k.reputation == nil {
		return
	}
	if _, err := k.reputation.RecordEvent(node, reputation.Event{Kind: kind, Timestamp: time.Now()}); err != nil {
		k.logger.Warn("failed to record reputation event", "node", node.String(), "error", err)
	}
}

// AdvanceFinality feeds a new checkpoint to the finality accumulator
// for hash, verifying it with the kernel's own VDF engine.
func (k *Kernel) AdvanceFinality(ctx context.Context, hash ids.Hash, proof vdf.Proof) error {
	verify := func(p vdf.Proof) (bool, error) {
		return k.vdfEngine.VerifyProof(ctx, p)
	}
	return k.dagStore.UpdateFinality(hash, proof, verify)
}

// ApplyReorg computes and returns the reorg set for a candidate tip,
// without mutating any state (spec.md §4.E compute_reorg is pure).
func (k *Kernel) ApplyReorg(candidateTip ids.Hash) (toDisconnect, toConnect []ids.Hash) {
	return k.dagStore.ComputeReorg(candidateTip)
}

// SynchronizeClock runs one atomic-time consensus round.
func (k *Kernel) SynchronizeClock(ctx context.Context) timesync.Consensus {
	return k.clock.Synchronize(ctx)
}

func toWireHeader(h dag.Header) wire.BlockHeader {
	return wire.BlockHeader{
		Version:       h.Version,
		TimestampMS:   uint64(h.TimestampMS),
		Height:        h.Height,
		ParentHashes:  h.ParentHashes,
		VDFOutput:     h.VDFOutput,
		VDFIterations: h.VDFIterations,
		ProducerID:    h.ProducerID,
		Nonce:         h.Nonce,
	}
}

// sumToHash derives the canonical block hash from its serialized
// header (spec.md §3: "The canonical block hash equals the header
// hash"), reusing the VDF engine's extendable-output function so the
// kernel needs exactly one hash primitive end to end.
func sumToHash(b []byte) ids.Hash {
	return vdf.HashBytes(b)
}
