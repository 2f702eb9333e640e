// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package vdf implements the strictly sequential hash-chain delay
// function described in spec.md §4.B (Layer 1). It computes
// y = H^T(x) with a SHAKE256 extendable-output function, recording a
// checkpoint every K iterations, and offers both full and sampled
// verification.
package vdf

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/sha3"

	"github.com/luxfi/consensus/ids"
)

// Errors returned by compute/verify per spec.md §4.B "Error conditions".
var (
	ErrIterationsTooLow  = errors.New("vdf: iterations below minimum T_min")
	ErrIterationsTooHigh = errors.New("vdf: iterations above maximum T_max")
	ErrBoundaryMismatch  = errors.New("vdf: first/last checkpoint does not match input/output")
	ErrMalformedProof    = errors.New("vdf: malformed checkpoint count or magic")
	ErrCancelled         = errors.New("vdf: computation cancelled at checkpoint boundary")
)

// Default protocol constants (spec.md §6). Callers may override T and
// K via Params for testing; production nodes use DefaultParams().
const (
	DefaultBaseIterations  = 1 << 24 // VDF_BASE_ITERATIONS
	DefaultCheckpointEvery = 1000    // CHECKPOINT_INTERVAL
	DefaultMinIterations   = 1000
	DefaultMaxIterations   = 1 << 30
	DefaultSampleSegments  = 5 // minimum k for verify_sampled
)

// Params bounds and tunes a VDF engine instance.
type Params struct {
	TMin             uint64
	TMax             uint64
	CheckpointEvery  uint64
	MinSampleSegments int
}

// DefaultParams returns the protocol-constant parameter set.
func DefaultParams() Params {
	return Params{
		TMin:              DefaultMinIterations,
		TMax:              DefaultMaxIterations,
		CheckpointEvery:   DefaultCheckpointEvery,
		MinSampleSegments: DefaultSampleSegments,
	}
}

// Output is the result of a compute() call: VDFOutput in spec.md §4.B.
type Output struct {
	Input       ids.Hash
	Output      ids.Hash
	Iterations  uint64
	Checkpoints []ids.Hash // first == Input, last == Output when collected
}

// NumSegments returns ceil(Iterations/K) for a given checkpoint period.
func (o Output) NumSegments(checkpointEvery uint64) int {
	if checkpointEvery == 0 {
		return 0
	}
	return int((o.Iterations + checkpointEvery - 1) / checkpointEvery)
}

// Engine is a single-threaded VDF evaluator. compute() is single
// threaded by contract: parallelizing the hash chain would let a
// prover cheat the sequentiality guarantee, so Engine never fans
// iterations out across goroutines.
type Engine struct {
	params Params
}

// New constructs a VDF engine with the given parameters.
func New(params Params) *Engine {
	return &Engine{params: params}
}

// shakeStep is one sequential iteration of the hash chain:
// state_{i+1} = SHAKE256(state_i), truncated/expanded to 32 bytes.
func shakeStep(state ids.Hash) ids.Hash {
	var next ids.Hash
	h := sha3.NewShake256()
	_, _ = h.Write(state[:])
	_, _ = h.Read(next[:])
	return next
}

// HashBytes applies the same extendable-output function the hash
// chain is built on to an arbitrary-length input, one-shot. It is the
// kernel's single hash primitive: block hashing (spec.md §3: "the
// canonical block hash equals the header hash") reuses it instead of
// introducing a second hash family.
func HashBytes(b []byte) ids.Hash {
	var out ids.Hash
	h := sha3.NewShake256()
	_, _ = h.Write(b)
	_, _ = h.Read(out[:])
	return out
}

// Compute evaluates y = H^T(seed) sequentially, recording a
// checkpoint every CheckpointEvery iterations when collectCheckpoints
// is true. The first and last checkpoints always equal input and
// output respectively.
//
// ctx is checked for cancellation only between checkpoints (never
// mid-segment), matching spec.md §5's suspension-point rule; on
// cancellation Compute returns ErrCancelled and no partial Output.
func (e *Engine) Compute(ctx context.Context, seed ids.Hash, iterations uint64, collectCheckpoints bool) (Output, error) {
	if iterations < e.params.TMin {
		return Output{}, fmt.Errorf("%w: T=%d < T_min=%d", ErrIterationsTooLow, iterations, e.params.TMin)
	}
	if iterations > e.params.TMax {
		return Output{}, fmt.Errorf("%w: T=%d > T_max=%d", ErrIterationsTooHigh, iterations, e.params.TMax)
	}

	state := seed
	var checkpoints []ids.Hash
	if collectCheckpoints {
		checkpoints = append(checkpoints, state)
	}

	every := e.params.CheckpointEvery
	if every == 0 {
		every = DefaultCheckpointEvery
	}

	var i uint64
	for i = 0; i < iterations; i++ {
		state = shakeStep(state)

		// Checkpoint boundary: the only point at which the honest
		// prover may observe cancellation.
		if (i+1)%every == 0 || i+1 == iterations {
			if collectCheckpoints && i+1 != iterations {
				checkpoints = append(checkpoints, state)
			}
			select {
			case <-ctx.Done():
				return Output{}, ErrCancelled
			default:
			}
		}
	}

	if collectCheckpoints {
		checkpoints = append(checkpoints, state)
	}

	return Output{
		Input:       seed,
		Output:      state,
		Iterations:  iterations,
		Checkpoints: checkpoints,
	}, nil
}

// VerifyFull recomputes the entire chain; O(T), used only as a
// fallback when sampled verification is unavailable or disputed.
func (e *Engine) VerifyFull(ctx context.Context, o Output) (bool, error) {
	recomputed, err := e.Compute(ctx, o.Input, o.Iterations, false)
	if err != nil {
		return false, err
	}
	return recomputed.Output == o.Output, nil
}

// VerifySampled checks both boundary checkpoints, then recomputes
// exactly one segment's worth of iterations for k uniformly-chosen
// segments (drawn with a cryptographic RNG), rejecting on any
// mismatch. k defaults to e.params.MinSampleSegments when k<=0.
func (e *Engine) VerifySampled(ctx context.Context, o Output, k int) (bool, error) {
	if k <= 0 {
		k = e.params.MinSampleSegments
	}
	every := e.params.CheckpointEvery
	if every == 0 {
		every = DefaultCheckpointEvery
	}
	numSegments := o.NumSegments(every)
	if numSegments == 0 || len(o.Checkpoints) != numSegments+1 {
		return false, ErrMalformedProof
	}
	if o.Checkpoints[0] != o.Input || o.Checkpoints[len(o.Checkpoints)-1] != o.Output {
		return false, ErrBoundaryMismatch
	}

	indices, err := sampleSegments(numSegments, k)
	if err != nil {
		return false, err
	}

	for _, seg := range indices {
		start := o.Checkpoints[seg]
		segLen := every
		if seg == numSegments-1 {
			// last segment may be shorter if T isn't a multiple of K
			segLen = o.Iterations - uint64(seg)*every
		}
		got, err := e.Compute(ctx, start, segLen, false)
		if err != nil {
			return false, err
		}
		if got.Output != o.Checkpoints[seg+1] {
			return false, nil
		}
	}
	return true, nil
}

// sampleSegments draws k distinct segment indices in [0, numSegments)
// using a cryptographic RNG.
func sampleSegments(numSegments, k int) ([]int, error) {
	if k > numSegments {
		k = numSegments
	}
	chosen := make(map[int]struct{}, k)
	out := make([]int, 0, k)
	for len(out) < k {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(numSegments)))
		if err != nil {
			return nil, err
		}
		idx := int(n.Int64())
		if _, ok := chosen[idx]; ok {
			continue
		}
		chosen[idx] = struct{}{}
		out = append(out, idx)
	}
	return out, nil
}
