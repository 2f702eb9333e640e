// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dag

import "github.com/luxfi/consensus/ids"

// ComputeReorg computes the reorg set for a candidate new tip, per
// spec.md §4.E "Reorg policy". Reorg computation is pure (spec.md
// §5): it takes only a read lock and never mutates state.
func (d *DAG) ComputeReorg(newTip ids.Hash) (toDisconnect, toConnect []ids.Hash) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.computeReorgLocked(newTip)
}

func (d *DAG) computeReorgLocked(newTip ids.Hash) (toDisconnect, toConnect []ids.Hash) {
	if _, ok := d.nodes[newTip]; !ok {
		return nil, nil
	}

	ancestor := d.commonAncestor(d.mainChain, newTip)
	if ancestor.IsEmpty() && !d.hasGenesis {
		return nil, nil
	}

	disconnect := d.pathAfter(d.mainChain, ancestor)
	for _, h := range disconnect {
		if _, irr := d.irreversible[h]; irr {
			return nil, nil // reject: would cross an IRREVERSIBLE block
		}
	}
	if len(disconnect) > d.params.MaxReorgDepth {
		return nil, nil
	}

	connect := d.pathFromAncestorTo(ancestor, newTip)
	return disconnect, connect
}

// commonAncestor finds the most recent block in chain that is also an
// ancestor of (or equal to) target.
func (d *DAG) commonAncestor(chain []ids.Hash, target ids.Hash) ids.Hash {
	targetAnc := d.ancestors(target)
	targetAnc[target] = struct{}{}

	for i := len(chain) - 1; i >= 0; i-- {
		if _, ok := targetAnc[chain[i]]; ok {
			return chain[i]
		}
	}
	var empty ids.Hash
	return empty
}

// pathAfter returns the suffix of chain strictly after ancestor.
func (d *DAG) pathAfter(chain []ids.Hash, ancestor ids.Hash) []ids.Hash {
	for i, h := range chain {
		if h == ancestor {
			return append([]ids.Hash(nil), chain[i+1:]...)
		}
	}
	return nil
}

// pathFromAncestorTo walks parent-links from target back to ancestor
// and returns the ancestor-exclusive, target-inclusive path in
// forward order.
func (d *DAG) pathFromAncestorTo(ancestor, target ids.Hash) []ids.Hash {
	var rev []ids.Hash
	cur := target
	for cur != ancestor {
		rev = append(rev, cur)
		n, ok := d.nodes[cur]
		if !ok || len(n.ParentHashes) == 0 {
			break
		}
		cur = n.ParentHashes[0] // walk the selected-parent chain
	}
	out := make([]ids.Hash, len(rev))
	for i, h := range rev {
		out[len(rev)-1-i] = h
	}
	return out
}

// ResolveFork implements spec.md §4.E resolve_fork(): compares two
// chains by (1) count of blue blocks, (2) summed vdf_weight, (3)
// lexicographically smaller tip hash.
func (d *DAG) ResolveFork(chainA, chainB []ids.Hash) []ids.Hash {
	d.mu.RLock()
	defer d.mu.RUnlock()

	blueA, weightA := d.chainStats(chainA)
	blueB, weightB := d.chainStats(chainB)

	if blueA != blueB {
		if blueA > blueB {
			return chainA
		}
		return chainB
	}
	if weightA != weightB {
		if weightA > weightB {
			return chainA
		}
		return chainB
	}

	tipA, tipB := chainA[len(chainA)-1], chainB[len(chainB)-1]
	if tipA.Less(tipB) {
		return chainA
	}
	return chainB
}

func (d *DAG) chainStats(chain []ids.Hash) (blueCount int, weightSum uint64) {
	for _, h := range chain {
		n, ok := d.nodes[h]
		if !ok {
			continue
		}
		if n.IsBlue {
			blueCount++
		}
		weightSum += n.VDFWeight
	}
	return blueCount, weightSum
}
