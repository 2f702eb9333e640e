// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dag

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/consensus/finality"
	"github.com/luxfi/consensus/ids"
	"github.com/luxfi/consensus/vdf"
)

func alwaysValid(vdf.Proof) (bool, error) { return true, nil }

func newTestDAG() *DAG {
	acc := finality.New(nil, nil)
	return New(DefaultParams(), acc, nil)
}

func genesisHash() ids.Hash { return ids.Hash{0xF0} }

func addGenesis(t *testing.T, d *DAG) ids.Hash {
	t.Helper()
	g := genesisHash()
	err := d.AddGenesis(Header{Height: 0, VDFOutput: ids.Hash{0x01}}, g)
	require.NoError(t, err)
	return g
}

// TestReorgRejectedPastIrreversible grounds spec.md §8 scenario 2:
// after B1 becomes IRREVERSIBLE, a sibling B1' declared as the new
// tip must produce an empty reorg.
func TestReorgRejectedPastIrreversible(t *testing.T) {
	d := newTestDAG()
	g := addGenesis(t, d)

	b1 := ids.Hash{0xB1}
	ok, err := d.AddBlock(Header{Height: 1, ParentHashes: []ids.Hash{g}, VDFOutput: ids.Hash{0x02}, VDFIterations: 1 << 24}, b1)
	require.NoError(t, err)
	require.True(t, ok)

	last := ids.Hash{0x02}
	for i := 0; i < 1000; i++ {
		next := ids.Hash{0x02, byte(i + 1)}
		require.NoError(t, d.UpdateFinality(b1, vdf.Proof{Input: last, Output: next}, alwaysValid))
		last = next
	}
	state, _ := d.FinalityState(b1)
	require.Equal(t, finality.Irreversible, state)

	b1prime := ids.Hash{0xB2}
	ok, err = d.AddBlock(Header{Height: 1, ParentHashes: []ids.Hash{g}, VDFOutput: ids.Hash{0x03}, VDFIterations: 1 << 24}, b1prime)
	require.NoError(t, err)
	require.True(t, ok)

	toDisconnect, toConnect := d.ComputeReorg(b1prime)
	require.Empty(t, toDisconnect)
	require.Empty(t, toConnect)
}

// TestPhantomBlueRed grounds spec.md §8 scenario 3: A is genesis; B, C
// extend A; D extends both B and C; E extends A only. With k=1, E is
// expected red (anticone >= 2 blue blocks), the rest blue, and the
// main chain includes exactly one of B/C chosen by VDF weight then
// lexicographic tie-break.
func TestPhantomBlueRed(t *testing.T) {
	params := Params{PhantomK: 1, MaxReorgDepth: MaxReorgDepth}
	acc := finality.New(nil, nil)
	d := New(params, acc, nil)

	a := ids.Hash{0xA}
	require.NoError(t, d.AddGenesis(Header{Height: 0, VDFOutput: ids.Hash{0x00}}, a))

	b := ids.Hash{0xB}
	c := ids.Hash{0xC}
	e := ids.Hash{0xE}

	mustAdd(t, d, Header{Height: 1, ParentHashes: []ids.Hash{a}, VDFIterations: 10}, b)
	mustAdd(t, d, Header{Height: 1, ParentHashes: []ids.Hash{a}, VDFIterations: 20}, c)
	mustAdd(t, d, Header{Height: 1, ParentHashes: []ids.Hash{a}, VDFIterations: 5}, e)

	dHash := ids.Hash{0xD}
	mustAdd(t, d, Header{Height: 2, ParentHashes: []ids.Hash{b, c}, VDFIterations: 1}, dHash)

	nodeA, _ := d.Node(a)
	nodeB, _ := d.Node(b)
	nodeC, _ := d.Node(c)
	nodeD, _ := d.Node(dHash)
	nodeE, _ := d.Node(e)

	require.True(t, nodeA.IsBlue)
	require.True(t, nodeB.IsBlue)
	require.True(t, nodeC.IsBlue)
	require.True(t, nodeD.IsBlue)
	require.False(t, nodeE.IsBlue, "E's anticone contains B and C, exceeding k=1")

	chain := d.GetMainChain()
	require.Contains(t, chain, c) // C has the higher VDF weight (20 > 10)
	require.NotContains(t, chain, b)
}

func mustAdd(t *testing.T, d *DAG, h Header, hash ids.Hash) {
	t.Helper()
	ok, err := d.AddBlock(h, hash)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestOrphanBlockBufferedThenResolved(t *testing.T) {
	d := newTestDAG()
	g := addGenesis(t, d)

	child := ids.Hash{0x10}
	grandchild := ids.Hash{0x11}

	// grandchild arrives first, referencing an unknown parent.
	ok, err := d.AddBlock(Header{Height: 2, ParentHashes: []ids.Hash{child}, VDFIterations: 1}, grandchild)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 1, d.orphans.Len())

	_, known := d.Node(grandchild)
	require.False(t, known)

	mustAdd(t, d, Header{Height: 1, ParentHashes: []ids.Hash{g}, VDFIterations: 1}, child)

	_, known = d.Node(grandchild)
	require.True(t, known, "grandchild should be attached once its parent arrives")
	require.Equal(t, 0, d.orphans.Len())
}

func TestDuplicateBlockIsNoOp(t *testing.T) {
	d := newTestDAG()
	g := addGenesis(t, d)

	b := ids.Hash{0x20}
	h := Header{Height: 1, ParentHashes: []ids.Hash{g}, VDFIterations: 1}
	mustAdd(t, d, h, b)

	ok, err := d.AddBlock(h, b)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTooManyParentsRejected(t *testing.T) {
	d := newTestDAG()
	g := addGenesis(t, d)
	mustAdd(t, d, Header{Height: 1, ParentHashes: []ids.Hash{g}, VDFIterations: 1}, ids.Hash{0x30})

	parents := make([]ids.Hash, 9)
	for i := range parents {
		parents[i] = ids.Hash{byte(0x40 + i)}
	}
	_, err := d.AddBlock(Header{Height: 1, ParentHashes: parents}, ids.Hash{0x50})
	require.ErrorIs(t, err, ErrTooManyParents)
}

func TestHeightInconsistencyRejected(t *testing.T) {
	d := newTestDAG()
	g := addGenesis(t, d)
	_, err := d.AddBlock(Header{Height: 5, ParentHashes: []ids.Hash{g}}, ids.Hash{0x60})
	require.ErrorIs(t, err, ErrHeightInconsistent)
}
