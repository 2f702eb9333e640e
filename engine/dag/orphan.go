// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dag

import (
	"time"

	"github.com/luxfi/consensus/ids"
)

const (
	defaultOrphanCapacity = 10_000
	defaultOrphanExpiry   = 10 * time.Minute
)

type orphanEntry struct {
	hash     ids.Hash
	header   Header
	missing  map[ids.Hash]struct{}
	addedAt  time.Time
}

// orphanPool buffers blocks whose parents are not yet known, keyed by
// their missing parent hashes, per spec.md §4.E "add_block ... if any
// parent is unknown the block enters an orphan pool keyed by its
// missing parents". It piggybacks on the DAG's write lock (spec.md
// §5), so it has no lock of its own.
type orphanPool struct {
	capacity int
	expiry   time.Duration

	byHash    map[ids.Hash]*orphanEntry
	byMissing map[ids.Hash]map[ids.Hash]struct{} // missing parent -> waiting orphans
	order     []ids.Hash                          // insertion order, for eviction
}

func newOrphanPool(capacity int, expiry time.Duration) *orphanPool {
	if capacity <= 0 {
		capacity = defaultOrphanCapacity
	}
	if expiry <= 0 {
		expiry = defaultOrphanExpiry
	}
	return &orphanPool{
		capacity:  capacity,
		expiry:    expiry,
		byHash:    map[ids.Hash]*orphanEntry{},
		byMissing: map[ids.Hash]map[ids.Hash]struct{}{},
	}
}

func (p *orphanPool) add(hash ids.Hash, h Header, missing []ids.Hash) {
	p.evictExpired()
	if _, exists := p.byHash[hash]; exists {
		return
	}
	if len(p.order) >= p.capacity {
		p.evictOldest()
	}

	missingSet := make(map[ids.Hash]struct{}, len(missing))
	for _, m := range missing {
		missingSet[m] = struct{}{}
		if p.byMissing[m] == nil {
			p.byMissing[m] = map[ids.Hash]struct{}{}
		}
		p.byMissing[m][hash] = struct{}{}
	}

	p.byHash[hash] = &orphanEntry{hash: hash, header: h, missing: missingSet, addedAt: time.Now()}
	p.order = append(p.order, hash)
}

// resolve returns every orphan whose missing-parent set becomes empty
// now that newlyKnown has arrived, removing them from the pool.
func (p *orphanPool) resolve(newlyKnown ids.Hash) []*orphanEntry {
	waiting, ok := p.byMissing[newlyKnown]
	if !ok {
		return nil
	}
	delete(p.byMissing, newlyKnown)

	var ready []*orphanEntry
	for hash := range waiting {
		e, ok := p.byHash[hash]
		if !ok {
			continue
		}
		delete(e.missing, newlyKnown)
		if len(e.missing) == 0 {
			ready = append(ready, e)
			p.remove(hash)
		}
	}
	return ready
}

func (p *orphanPool) remove(hash ids.Hash) {
	e, ok := p.byHash[hash]
	if !ok {
		return
	}
	delete(p.byHash, hash)
	for m := range e.missing {
		delete(p.byMissing[m], hash)
	}
	for i, h := range p.order {
		if h == hash {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

func (p *orphanPool) evictOldest() {
	if len(p.order) == 0 {
		return
	}
	p.remove(p.order[0])
}

func (p *orphanPool) evictExpired() {
	cutoff := time.Now().Add(-p.expiry)
	var expired []ids.Hash
	for h, e := range p.byHash {
		if e.addedAt.Before(cutoff) {
			expired = append(expired, h)
		}
	}
	for _, h := range expired {
		p.remove(h)
	}
}

// Len returns the number of currently buffered orphans.
func (p *orphanPool) Len() int {
	return len(p.byHash)
}
