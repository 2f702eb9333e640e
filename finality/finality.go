// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package finality implements the progressive finality accumulator of
// spec.md §4.F (Layer 2's finality half): a one-way state machine
// (PENDING -> TENTATIVE -> CONFIRMED -> FINALIZED -> IRREVERSIBLE)
// driven by VDF checkpoints chaining on top of a block.
package finality

import (
	"sync"

	"github.com/luxfi/log"

	"github.com/luxfi/consensus/ids"
	"github.com/luxfi/consensus/vdf"
)

// State is a position in the monotone finality sequence.
type State int

const (
	Pending State = iota
	Tentative
	Confirmed
	Finalized
	Irreversible
)

func (s State) String() string {
	switch s {
	case Pending:
		return "PENDING"
	case Tentative:
		return "TENTATIVE"
	case Confirmed:
		return "CONFIRMED"
	case Finalized:
		return "FINALIZED"
	case Irreversible:
		return "IRREVERSIBLE"
	default:
		return "UNKNOWN"
	}
}

// Checkpoint-count thresholds (spec.md §6): {1, 100, 1000}.
const (
	TentativeThreshold = 1
	ConfirmedThreshold = 100
	FinalizedThreshold = 1000
)

// IrreversibleNotifier is called when a block crosses into
// IRREVERSIBLE, so collaborators (the DAG's reorg guard) can record
// it without the accumulator importing the dag package.
type IrreversibleNotifier func(hash ids.Hash)

type record struct {
	vdfOutput      ids.Hash
	checkpointCount uint64
	lastCheckpoint ids.Hash
	state          State
}

// Accumulator tracks, for every registered block, how many VDF
// checkpoints have chained on top of it, and its resulting finality
// state.
type Accumulator struct {
	mu     sync.RWMutex
	logger log.Logger

	blocks map[ids.Hash]*record

	onIrreversible IrreversibleNotifier
}

// New constructs an empty finality accumulator.
func New(logger log.Logger, onIrreversible IrreversibleNotifier) *Accumulator {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &Accumulator{
		blocks:         map[ids.Hash]*record{},
		logger:         logger,
		onIrreversible: onIrreversible,
	}
}

// RegisterBlock registers hash with its own vdf_output as the chain
// root for future checkpoints; O(1), per spec.md §4.F.
func (a *Accumulator) RegisterBlock(hash ids.Hash, vdfOutput ids.Hash) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.blocks[hash]; exists {
		return
	}
	a.blocks[hash] = &record{vdfOutput: vdfOutput, state: Pending}
}

// AddCheckpoint verifies proof, verifies chaining, and — if both
// succeed — increments hash's checkpoint counter and advances its
// finality state. Per spec.md §4.F: unknown block, invalid proof, or
// chaining mismatch are all silent no-ops.
func (a *Accumulator) AddCheckpoint(hash ids.Hash, proof vdf.Proof, verify func(vdf.Proof) (bool, error)) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	rec, ok := a.blocks[hash]
	if !ok {
		return nil // unknown block: no-op
	}

	ok2, err := verify(proof)
	if err != nil {
		return err
	}
	if !ok2 {
		return nil // invalid proof: no-op
	}

	expected := rec.vdfOutput
	if rec.checkpointCount > 0 {
		expected = rec.lastCheckpoint
	}
	if proof.Input != expected {
		return nil // chaining mismatch: no-op
	}

	rec.checkpointCount++
	rec.lastCheckpoint = proof.Output

	prev := rec.state
	rec.state = stateFor(rec.checkpointCount)
	if rec.state != prev {
		a.logger.Debug("finality state advanced", "block", hash.String(), "from", prev.String(), "to", rec.state.String())
		if rec.state == Irreversible && a.onIrreversible != nil {
			a.onIrreversible(hash)
		}
	}
	return nil
}

// stateFor maps a checkpoint count to its finality state. States only
// move forward: once FinalizedThreshold is reached the block is both
// FINALIZED and IRREVERSIBLE (spec.md: "IRREVERSIBLE is synonymous
// with FINALIZED for reorg-rejection purposes").
func stateFor(count uint64) State {
	switch {
	case count >= FinalizedThreshold:
		return Irreversible
	case count >= ConfirmedThreshold:
		return Confirmed
	case count >= TentativeThreshold:
		return Tentative
	default:
		return Pending
	}
}

// State returns the current finality state of hash, or Pending with
// ok=false if hash was never registered.
func (a *Accumulator) State(hash ids.Hash) (State, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	rec, ok := a.blocks[hash]
	if !ok {
		return Pending, false
	}
	return rec.state, true
}

// CheckpointCount returns the number of accepted checkpoints for hash.
func (a *Accumulator) CheckpointCount(hash ids.Hash) uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	rec, ok := a.blocks[hash]
	if !ok {
		return 0
	}
	return rec.checkpointCount
}

// CompareFinality compares two blocks by state first, then checkpoint
// counter, returning -1, 0, or 1 (a<b, a==b, a>b).
func (a *Accumulator) CompareFinality(x, y ids.Hash) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	rx, okx := a.blocks[x]
	ry, oky := a.blocks[y]
	if !okx && !oky {
		return 0
	}
	if !okx {
		return -1
	}
	if !oky {
		return 1
	}
	if rx.state != ry.state {
		if rx.state < ry.state {
			return -1
		}
		return 1
	}
	switch {
	case rx.checkpointCount < ry.checkpointCount:
		return -1
	case rx.checkpointCount > ry.checkpointCount:
		return 1
	default:
		return 0
	}
}

// SelectTip picks the best candidate by CompareFinality, a fork-choice
// helper for collaborators that want "most-final" rather than
// "heaviest" (spec.md §4.F select_tip()).
func (a *Accumulator) SelectTip(candidates []ids.Hash) (ids.Hash, bool) {
	if len(candidates) == 0 {
		var z ids.Hash
		return z, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if a.CompareFinality(c, best) > 0 {
			best = c
		}
	}
	return best, true
}
