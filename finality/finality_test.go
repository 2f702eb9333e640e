// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package finality

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/consensus/ids"
	"github.com/luxfi/consensus/vdf"
)

func alwaysValid(vdf.Proof) (bool, error) { return true, nil }

// TestSequentialFinality grounds spec.md §8 scenario 1: B1 registers
// with vdf_output=0x01..., then 1000 checkpoints chain on top; expect
// PENDING -> TENTATIVE (1) -> CONFIRMED (100) -> FINALIZED/IRREVERSIBLE (1000).
func TestSequentialFinality(t *testing.T) {
	a := New(nil, nil)
	b1 := ids.Hash{0xB1}
	rootOutput := ids.Hash{0x01}
	a.RegisterBlock(b1, rootOutput)

	state, ok := a.State(b1)
	require.True(t, ok)
	require.Equal(t, Pending, state)

	last := rootOutput
	for i := 0; i < 1000; i++ {
		next := ids.Hash{byte(i + 2)}
		err := a.AddCheckpoint(b1, vdf.Proof{Input: last, Output: next}, alwaysValid)
		require.NoError(t, err)
		last = next

		switch i + 1 {
		case 1:
			s, _ := a.State(b1)
			require.Equal(t, Tentative, s)
		case 100:
			s, _ := a.State(b1)
			require.Equal(t, Confirmed, s)
		case 1000:
			s, _ := a.State(b1)
			require.Equal(t, Irreversible, s)
		}
	}

	require.EqualValues(t, 1000, a.CheckpointCount(b1))
}

func TestChainingMismatchRejected(t *testing.T) {
	a := New(nil, nil)
	b1 := ids.Hash{1}
	a.RegisterBlock(b1, ids.Hash{0x01})

	err := a.AddCheckpoint(b1, vdf.Proof{Input: ids.Hash{0xFF}, Output: ids.Hash{2}}, alwaysValid)
	require.NoError(t, err)
	require.EqualValues(t, 0, a.CheckpointCount(b1))
}

func TestUnknownBlockIsNoOp(t *testing.T) {
	a := New(nil, nil)
	err := a.AddCheckpoint(ids.Hash{9}, vdf.Proof{}, alwaysValid)
	require.NoError(t, err)
}

func TestInvalidProofIsNoOp(t *testing.T) {
	a := New(nil, nil)
	b1 := ids.Hash{1}
	a.RegisterBlock(b1, ids.Hash{0x01})

	err := a.AddCheckpoint(b1, vdf.Proof{Input: ids.Hash{0x01}, Output: ids.Hash{2}}, func(vdf.Proof) (bool, error) { return false, nil })
	require.NoError(t, err)
	require.EqualValues(t, 0, a.CheckpointCount(b1))
}

func TestCompareFinalityAndSelectTip(t *testing.T) {
	a := New(nil, nil)
	x, y := ids.Hash{1}, ids.Hash{2}
	a.RegisterBlock(x, ids.Hash{0xA})
	a.RegisterBlock(y, ids.Hash{0xB})

	require.NoError(t, a.AddCheckpoint(x, vdf.Proof{Input: ids.Hash{0xA}, Output: ids.Hash{0xA, 1}}, alwaysValid))

	require.Equal(t, 1, a.CompareFinality(x, y))
	best, ok := a.SelectTip([]ids.Hash{x, y})
	require.True(t, ok)
	require.Equal(t, x, best)
}
