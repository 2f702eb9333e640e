// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dag

import "github.com/luxfi/consensus/ids"

// ancestors returns the transitive closure of parents of hash,
// excluding hash itself (spec.md §4.E).
func (d *DAG) ancestors(hash ids.Hash) map[ids.Hash]struct{} {
	out := map[ids.Hash]struct{}{}
	queue := append([]ids.Hash(nil), d.nodes[hash].ParentHashes...)
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		if _, seen := out[h]; seen {
			continue
		}
		out[h] = struct{}{}
		if n, ok := d.nodes[h]; ok {
			queue = append(queue, n.ParentHashes...)
		}
	}
	return out
}

// descendants returns the transitive closure of children of hash,
// excluding hash itself.
func (d *DAG) descendants(hash ids.Hash) map[ids.Hash]struct{} {
	out := map[ids.Hash]struct{}{}
	queue := append([]ids.Hash(nil), d.nodes[hash].children...)
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		if _, seen := out[h]; seen {
			continue
		}
		out[h] = struct{}{}
		if n, ok := d.nodes[h]; ok {
			queue = append(queue, n.children...)
		}
	}
	return out
}

// anticone returns nodes that are neither ancestors nor descendants
// of hash, nor hash itself.
func (d *DAG) anticone(hash ids.Hash) map[ids.Hash]struct{} {
	anc := d.ancestors(hash)
	desc := d.descendants(hash)
	out := map[ids.Hash]struct{}{}
	for h := range d.nodes {
		if h == hash {
			continue
		}
		if _, in := anc[h]; in {
			continue
		}
		if _, in := desc[h]; in {
			continue
		}
		out[h] = struct{}{}
	}
	return out
}

// reclassifyBlueSet recomputes blue/red classification and blue_score
// for every node, per spec.md §4.E:
//
//	B is blue iff |anticone(B) ∩ blue_set| <= k
//	blue_score(B) = max(blue_score(parent)) + 1
//
// Nodes are processed in topological (height-ascending, then hash)
// order so that each node's classification only depends on
// already-classified ancestors/siblings.
func (d *DAG) reclassifyBlueSet() {
	order := d.topoOrder()
	blueSet := map[ids.Hash]struct{}{}

	for _, h := range order {
		n := d.nodes[h]
		if len(n.ParentHashes) == 0 {
			// genesis
			n.IsBlue = true
			n.BlueScore = 0
			blueSet[h] = struct{}{}
			continue
		}

		anti := d.anticone(h)
		blueAnti := 0
		for a := range anti {
			if _, isBlue := blueSet[a]; isBlue {
				blueAnti++
			}
		}
		n.IsBlue = uint64(blueAnti) <= d.params.PhantomK

		var bestParentScore uint64
		for i, ph := range n.ParentHashes {
			p := d.nodes[ph]
			if i == 0 || p.BlueScore > bestParentScore {
				bestParentScore = p.BlueScore
			}
		}
		n.BlueScore = bestParentScore + 1

		if n.IsBlue {
			blueSet[h] = struct{}{}
		}
	}
}

// topoOrder returns all known hashes ordered by ascending height,
// then lexicographic hash as a tie-break, which is a valid
// topological order since height is strictly parent-before-child.
func (d *DAG) topoOrder() []ids.Hash {
	out := make([]ids.Hash, 0, len(d.nodes))
	for h := range d.nodes {
		out = append(out, h)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && less(d, out[j], out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func less(d *DAG, a, b ids.Hash) bool {
	na, nb := d.nodes[a], d.nodes[b]
	if na.Header.Height != nb.Header.Height {
		return na.Header.Height < nb.Header.Height
	}
	return a.Less(b)
}

// rebuildMainChain re-derives the deterministic genesis-to-tip path
// per spec.md §4.E "Main chain extraction": at each step descend to
// the child with the highest vdf_weight that is in the blue set; if
// none is blue, pick the highest-weight child outright. Ties are
// broken by blue_score then lexicographic hash.
func (d *DAG) rebuildMainChain() {
	if !d.hasGenesis {
		return
	}
	chain := []ids.Hash{d.genesis}
	cur := d.genesis

	for {
		n := d.nodes[cur]
		if len(n.children) == 0 {
			break
		}

		var blueChildren, allChildren []ids.Hash
		for _, c := range n.children {
			allChildren = append(allChildren, c)
			if d.nodes[c].IsBlue {
				blueChildren = append(blueChildren, c)
			}
		}

		candidates := blueChildren
		if len(candidates) == 0 {
			candidates = allChildren
		}

		best := candidates[0]
		for _, c := range candidates[1:] {
			if betterChild(d, c, best) {
				best = c
			}
		}

		chain = append(chain, best)
		cur = best
	}

	d.mainChain = chain
}

// betterChild reports whether a ranks above b under the tie-break
// rule: vdf_weight desc, then blue_score desc, then hash asc.
func betterChild(d *DAG, a, b ids.Hash) bool {
	na, nb := d.nodes[a], d.nodes[b]
	if na.VDFWeight != nb.VDFWeight {
		return na.VDFWeight > nb.VDFWeight
	}
	if na.BlueScore != nb.BlueScore {
		return na.BlueScore > nb.BlueScore
	}
	return a.Less(b)
}

// GetOrderedBlocks returns the full topological order: blue blocks by
// weight descending, reds inserted between their blue ancestors and
// descendants (spec.md §4.E get_ordered_blocks()).
//
// Height ascending is already a valid topological order (a block's
// height is strictly greater than every parent's), so it is safe to
// refine ties within the same height band by (blue desc, vdf_weight
// desc, hash asc) without violating ancestor-before-descendant.
func (d *DAG) GetOrderedBlocks() []ids.Hash {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := d.topoOrder()
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && sameHeight(d, out[j], out[j-1]) && orderedBefore(d, out[j], out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func sameHeight(d *DAG, a, b ids.Hash) bool {
	return d.nodes[a].Header.Height == d.nodes[b].Header.Height
}

func orderedBefore(d *DAG, a, b ids.Hash) bool {
	na, nb := d.nodes[a], d.nodes[b]
	if na.IsBlue != nb.IsBlue {
		return na.IsBlue // blues sort first within the same height band
	}
	if na.VDFWeight != nb.VDFWeight {
		return na.VDFWeight > nb.VDFWeight
	}
	return a.Less(b)
}
