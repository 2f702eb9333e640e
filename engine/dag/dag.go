// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package dag implements the block DAG and PHANTOM ordering rule of
// spec.md §4.E (Layer 2): multi-parent blocks, blue/red
// classification, deterministic main-chain extraction, and
// finality-bounded reorg computation.
package dag

import (
	"errors"
	"sync"

	"github.com/luxfi/log"

	"github.com/luxfi/consensus/finality"
	"github.com/luxfi/consensus/ids"
	"github.com/luxfi/consensus/vdf"
)

// Protocol constants (spec.md §6).
const (
	MaxParents     = 8
	DefaultPhantomK = 8
	MaxReorgDepth  = 100
)

// Errors per spec.md §4.E "Failure".
var (
	ErrUnknownParent       = errors.New("dag: parent block unknown")
	ErrTooManyParents      = errors.New("dag: parent count exceeds MAX_PARENTS")
	ErrZeroParentsNonGenesis = errors.New("dag: non-genesis block must have at least one parent")
	ErrHeightInconsistent  = errors.New("dag: height does not equal max(parent height)+1")
	ErrDuplicateGenesis    = errors.New("dag: genesis already set")
)

// Header is the subset of a block header the DAG needs to classify
// and order it (spec.md §3 BlockHeader).
type Header struct {
	Version       uint8
	Height        uint64
	TimestampMS   int64
	ParentHashes  []ids.Hash
	VDFOutput     ids.Hash
	VDFIterations uint64
	ProducerID    ids.Hash
	Nonce         uint64
}

// Node is the consensus view of a block (spec.md §3 DAGNode).
type Node struct {
	BlockHash   ids.Hash
	Header      Header
	ParentHashes []ids.Hash

	VDFWeight   uint64
	IsBlue      bool
	BlueScore   uint64

	children []ids.Hash
}

// Params tunes the PHANTOM/reorg rules.
type Params struct {
	PhantomK      uint64
	MaxReorgDepth int
}

// DefaultParams returns the protocol-constant parameter set.
func DefaultParams() Params {
	return Params{PhantomK: DefaultPhantomK, MaxReorgDepth: MaxReorgDepth}
}

// DAG is the arena of Nodes keyed by hash, with a separate children
// adjacency map (spec.md §9 "Cyclic DAG ownership": parents are
// stored by hash, not owning reference, to avoid ownership cycles and
// make pruning straightforward).
type DAG struct {
	mu sync.RWMutex

	params Params
	logger log.Logger

	nodes    map[ids.Hash]*Node
	genesis  ids.Hash
	hasGenesis bool

	mainChain []ids.Hash // genesis..tip, cached

	orphans *orphanPool

	finality *finality.Accumulator
	irreversible map[ids.Hash]struct{}
}

// New constructs an empty DAG.
func New(params Params, acc *finality.Accumulator, logger log.Logger) *DAG {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &DAG{
		params:       params,
		logger:       logger,
		nodes:        map[ids.Hash]*Node{},
		orphans:      newOrphanPool(10_000, 0),
		finality:     acc,
		irreversible: map[ids.Hash]struct{}{},
	}
}

// AddGenesis installs the unique genesis block. Genesis has zero
// parents by construction (spec.md invariant 4).
func (d *DAG) AddGenesis(h Header, blockHash ids.Hash) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.hasGenesis {
		return ErrDuplicateGenesis
	}
	node := &Node{BlockHash: blockHash, Header: h, VDFWeight: h.VDFIterations, IsBlue: true, BlueScore: 0}
	d.nodes[blockHash] = node
	d.genesis = blockHash
	d.hasGenesis = true
	d.mainChain = []ids.Hash{blockHash}

	if d.finality != nil {
		d.finality.RegisterBlock(blockHash, h.VDFOutput)
	}
	return nil
}

// AddBlock inserts a block per spec.md §4.E add_block(). If any
// parent is unknown the block is buffered in the orphan pool (a
// recoverable, silent state, not an error) and re-attempted once the
// missing parent arrives.
func (d *DAG) AddBlock(h Header, blockHash ids.Hash) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.addBlockLocked(h, blockHash)
}

func (d *DAG) addBlockLocked(h Header, blockHash ids.Hash) (bool, error) {
	if _, exists := d.nodes[blockHash]; exists {
		return false, nil // duplicate: no-op
	}
	if len(h.ParentHashes) == 0 {
		return false, ErrZeroParentsNonGenesis
	}
	if len(h.ParentHashes) > MaxParents {
		return false, ErrTooManyParents
	}

	missing := d.missingParents(h.ParentHashes)
	if len(missing) > 0 {
		d.orphans.add(blockHash, h, missing)
		return false, nil
	}

	maxParentHeight := uint64(0)
	for i, ph := range h.ParentHashes {
		p := d.nodes[ph]
		if i == 0 || p.Header.Height > maxParentHeight {
			maxParentHeight = p.Header.Height
		}
	}
	if h.Height != maxParentHeight+1 {
		return false, ErrHeightInconsistent
	}

	node := &Node{BlockHash: blockHash, Header: h, ParentHashes: append([]ids.Hash(nil), h.ParentHashes...)}
	node.VDFWeight = d.vdfWeight(h)
	d.nodes[blockHash] = node

	for _, ph := range h.ParentHashes {
		p := d.nodes[ph]
		p.children = append(p.children, blockHash)
	}

	if d.finality != nil {
		d.finality.RegisterBlock(blockHash, h.VDFOutput)
	}

	d.reclassifyBlueSet()
	d.rebuildMainChain()
	d.resolveOrphansIteratively(blockHash)

	return true, nil
}

func (d *DAG) missingParents(parents []ids.Hash) []ids.Hash {
	var missing []ids.Hash
	for _, p := range parents {
		if _, ok := d.nodes[p]; !ok {
			missing = append(missing, p)
		}
	}
	return missing
}

// vdfWeight computes max(vdf_weight(parent)) + vdf_iterations(B),
// per spec.md §4.E.
func (d *DAG) vdfWeight(h Header) uint64 {
	var best uint64
	for i, ph := range h.ParentHashes {
		p := d.nodes[ph]
		if i == 0 || p.VDFWeight > best {
			best = p.VDFWeight
		}
	}
	return best + h.VDFIterations
}

// resolveOrphansIteratively drains the orphan pool's work queue for
// blocks waiting on newHash, iteratively rather than recursively, per
// spec.md §5's bounded-recursion-depth suspension point.
func (d *DAG) resolveOrphansIteratively(newHash ids.Hash) {
	queue := []ids.Hash{newHash}
	for len(queue) > 0 {
		resolved := d.orphans.resolve(queue[0])
		queue = queue[1:]
		for _, o := range resolved {
			ok, err := d.addBlockLocked(o.header, o.hash)
			if err == nil && ok {
				queue = append(queue, o.hash)
			}
		}
	}
}

// Node returns the DAG's view of a block, if known.
func (d *DAG) Node(hash ids.Hash) (*Node, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, ok := d.nodes[hash]
	if !ok {
		return nil, false
	}
	cp := *n
	return &cp, true
}

// IsIrreversible reports whether hash has reached the IRREVERSIBLE
// finality level.
func (d *DAG) IsIrreversible(hash ids.Hash) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.irreversible[hash]
	return ok
}

// MarkIrreversible records hash as irreversible so that compute_reorg
// enforces invariant 6 ("an IRREVERSIBLE block cannot be removed from
// the main chain") for it. UpdateFinality records the promotions that
// pass through it on its own; the accumulator does not call this.
func (d *DAG) MarkIrreversible(hash ids.Hash) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.irreversible[hash] = struct{}{}
}

// GetMainChain returns the genesis-to-tip sequence (spec.md §4.E).
func (d *DAG) GetMainChain() []ids.Hash {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]ids.Hash(nil), d.mainChain...)
}

// UpdateFinality feeds a new VDF checkpoint proof to the finality
// accumulator for hash, and — if it promotes hash to IRREVERSIBLE —
// records that locally so ComputeReorg can enforce invariant 6
// (spec.md §4.E update_finality()).
func (d *DAG) UpdateFinality(hash ids.Hash, proof vdf.Proof, verify func(vdf.Proof) (bool, error)) error {
	if d.finality == nil {
		return nil
	}
	if err := d.finality.AddCheckpoint(hash, proof, verify); err != nil {
		return err
	}

	state, ok := d.finality.State(hash)
	if ok && state == finality.Irreversible {
		d.mu.Lock()
		d.irreversible[hash] = struct{}{}
		d.mu.Unlock()
	}
	return nil
}

// FinalityState returns hash's current finality state.
func (d *DAG) FinalityState(hash ids.Hash) (finality.State, bool) {
	if d.finality == nil {
		return finality.Pending, false
	}
	return d.finality.State(hash)
}
