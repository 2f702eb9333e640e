// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vdf

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/consensus/ids"
)

func testParams() Params {
	return Params{TMin: 1, TMax: 1 << 20, CheckpointEvery: 1000, MinSampleSegments: 5}
}

func TestComputeRoundTrip(t *testing.T) {
	e := New(testParams())
	seed := ids.Hash{1}

	out, err := e.Compute(context.Background(), seed, 10_000, true)
	require.NoError(t, err)
	require.Equal(t, seed, out.Input)
	require.Equal(t, out.Input, out.Checkpoints[0])
	require.Equal(t, out.Output, out.Checkpoints[len(out.Checkpoints)-1])
	require.Equal(t, 11, len(out.Checkpoints)) // 10 segments + boundary
}

func TestIterationsOutOfRange(t *testing.T) {
	e := New(testParams())
	_, err := e.Compute(context.Background(), ids.Hash{1}, 0, true)
	require.ErrorIs(t, err, ErrIterationsTooLow)

	_, err = e.Compute(context.Background(), ids.Hash{1}, 1<<30, true)
	require.ErrorIs(t, err, ErrIterationsTooHigh)
}

func TestVerifyFull(t *testing.T) {
	e := New(testParams())
	out, err := e.Compute(context.Background(), ids.Hash{2}, 5000, false)
	require.NoError(t, err)

	ok, err := e.VerifyFull(context.Background(), out)
	require.NoError(t, err)
	require.True(t, ok)

	tampered := out
	tampered.Output[0] ^= 0xff
	ok, err = e.VerifyFull(context.Background(), tampered)
	require.NoError(t, err)
	require.False(t, ok)
}

// TestVerifySampledTamperedSegment grounds spec.md §8 scenario 6:
// T=10000, K=1000 (10 segments), tamper segment 5, expect rejection
// with k=5 at probability >= 1 - (5/10)^1 = 0.5 per trial.
func TestVerifySampledTamperedSegment(t *testing.T) {
	e := New(testParams())
	out, err := e.Compute(context.Background(), ids.Hash{3}, 10_000, true)
	require.NoError(t, err)

	ok, err := e.VerifySampled(context.Background(), out, 5)
	require.NoError(t, err)
	require.True(t, ok)

	tampered := out
	tampered.Checkpoints = append([]ids.Hash(nil), out.Checkpoints...)
	tampered.Checkpoints[5][0] ^= 0xff // flip a bit in segment 5's checkpoint

	rejectedOnce := false
	for i := 0; i < 10; i++ {
		ok, err := e.VerifySampled(context.Background(), tampered, 5)
		require.NoError(t, err)
		if !ok {
			rejectedOnce = true
			break
		}
	}
	require.True(t, rejectedOnce, "expected at least one rejection across 10 trials")
}

func TestVerifySampledRejectsMalformedBoundaries(t *testing.T) {
	e := New(testParams())
	out, err := e.Compute(context.Background(), ids.Hash{4}, 3000, true)
	require.NoError(t, err)

	bad := out
	bad.Input[0] ^= 0xff
	_, err = e.VerifySampled(context.Background(), bad, 3)
	require.ErrorIs(t, err, ErrBoundaryMismatch)
}

func TestProofSerializeRoundTrip(t *testing.T) {
	e := New(testParams())
	out, err := e.Compute(context.Background(), ids.Hash{5}, 4000, true)
	require.NoError(t, err)

	p := e.CreateProof(out)
	raw := p.Serialize()

	got, err := DeserializeProof(raw)
	require.NoError(t, err)
	require.Equal(t, p.Kind, got.Kind)
	require.Equal(t, p.Iterations, got.Iterations)
	require.Equal(t, p.Checkpoints, got.Checkpoints)

	ok, err := e.VerifyProof(context.Background(), got)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSTARKReservedProofAlwaysRejected(t *testing.T) {
	e := New(testParams())
	out, err := e.Compute(context.Background(), ids.Hash{6}, 2000, true)
	require.NoError(t, err)

	p := e.CreateProof(out)
	p.Kind = KindSTARKReserved

	ok, err := e.VerifyProof(context.Background(), p)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCancellationAtCheckpointBoundary(t *testing.T) {
	e := New(testParams())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Compute(ctx, ids.Hash{7}, 5000, false)
	require.ErrorIs(t, err, ErrCancelled)
}
