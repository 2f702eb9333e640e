// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package reputation implements the "Five Fingers" reputation engine
// of spec.md §4.C: a per-node [0,1] aggregate score computed from
// five orthogonal, fixed-weight dimensions, fed by a stream of signed
// events.
package reputation

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/luxfi/log"

	"github.com/luxfi/consensus/ids"
	"github.com/luxfi/consensus/utils/wrappers"
)

// Dimension weights (spec.md §4.C, §6).
const (
	WeightTime        = 0.50
	WeightIntegrity   = 0.20
	WeightStorage     = 0.15
	WeightGeography   = 0.10
	WeightHandshake   = 0.05
)

// Dimension-specific constants (spec.md §4.C "Dimension semantics").
const (
	KTimeSeconds = 180 * 24 * 3600 // K_TIME = 180 days
	KHandshakes  = 10              // K_HS
	integrityHalfLife = 7 * 24 * time.Hour

	handshakeMinTime       = 0.9
	handshakeMinIntegrity  = 0.8
	handshakeMinStorage    = 0.9
	handshakeMinGeography  = 0.1

	defaultInactivityTTL = 365 * 24 * time.Hour

	maxVouchesPerDay = 20
)

// Penalty durations per event kind (spec.md §4.C "Penalties").
var penaltyDurations = map[EventKind]time.Duration{
	EventEquivocation: 180 * 24 * time.Hour,
	EventVDFInvalid:   30 * 24 * time.Hour,
	EventVRFInvalid:   14 * 24 * time.Hour,
	EventSpam:         7 * 24 * time.Hour,
}

// EventKind enumerates the signal kinds record_event accepts.
type EventKind int

const (
	EventBlockProduced EventKind = iota
	EventBlockInvalid
	EventUptimeTick
	EventDowntime
	EventStorageUpdate
	EventNewCountry
	EventNewCity
	EventHandshakeFormed
	EventHandshakeBroken
	EventEquivocation
	EventVDFInvalid
	EventVRFInvalid
	EventSpam
)

// dimension maps every event kind to exactly one of the five
// dimensions, per spec.md §4.C.
func (k EventKind) dimension() dimension {
	switch k {
	case EventUptimeTick, EventDowntime:
		return dimTime
	case EventBlockProduced, EventBlockInvalid, EventEquivocation, EventVDFInvalid, EventVRFInvalid, EventSpam:
		return dimIntegrity
	case EventStorageUpdate:
		return dimStorage
	case EventNewCountry, EventNewCity:
		return dimGeography
	case EventHandshakeFormed, EventHandshakeBroken:
		return dimHandshake
	default:
		return dimIntegrity
	}
}

// integrityImpact is the fixed signed impact a kind carries on the
// integrity EMA (positive events push toward 1, negative toward 0).
func (k EventKind) integrityImpact() (delta float64, isIntegrity bool) {
	switch k {
	case EventBlockProduced:
		return 1.0, true
	case EventBlockInvalid, EventEquivocation, EventVDFInvalid, EventVRFInvalid, EventSpam:
		return 0.0, true
	}
	return 0, false
}

type dimension int

const (
	dimTime dimension = iota
	dimIntegrity
	dimStorage
	dimGeography
	dimHandshake
)

// Errors surfaced by record_event / add_vouch / form_handshake.
var (
	ErrFutureTimestamp   = errors.New("reputation: event timestamp is in the future")
	ErrStaleTimestamp    = errors.New("reputation: event timestamp is stale")
	ErrHeightTooFar      = errors.New("reputation: event height too far ahead")
	ErrSelfVouch         = errors.New("reputation: self-vouch rejected")
	ErrVouchRateLimited  = errors.New("reputation: vouch rate limit exceeded")
	ErrHandshakeIneligible = errors.New("reputation: handshake eligibility predicate failed")
	ErrSameCountry       = errors.New("reputation: handshake requires different countries")
	ErrNoHandshake       = errors.New("reputation: no handshake exists between these nodes")
)

// DimensionScore is one of the five finger's running value.
type DimensionScore struct {
	Value      float64
	Confidence float64
	Samples    uint64
	LastUpdate time.Time
}

// Event is a signed, timestamped signal about a node (spec.md §4.C
// record_event's {height, timestamp, source, evidence}).
type Event struct {
	Kind      EventKind
	Height    uint64
	Timestamp time.Time
	Source    ids.Hash
	Evidence  []byte
}

// Profile is the per-node reputation state (spec.md §3 ReputationProfile).
type Profile struct {
	NodeID            ids.Hash
	CountryCode       string
	CityHash          ids.Hash
	Time              DimensionScore
	Integrity         DimensionScore
	Storage           DimensionScore
	Geography         DimensionScore
	Handshake         DimensionScore
	AggregateScore    float64
	History           []Event // bounded ring, oldest evicted first
	TrustedBy         map[ids.Hash]struct{}
	Trusts            map[ids.Hash]struct{}
	HandshakePartners map[ids.Hash]struct{}
	PenaltyUntil      time.Time
	LastActivity      time.Time

	uptimeSeconds    float64
	vouchesToday     int
	vouchDayStart    time.Time
	handshakeCount   int
}

const historyRingSize = 256

func newProfile(node ids.Hash) *Profile {
	now := time.Now()
	return &Profile{
		NodeID:            node,
		TrustedBy:         map[ids.Hash]struct{}{},
		Trusts:            map[ids.Hash]struct{}{},
		HandshakePartners: map[ids.Hash]struct{}{},
		LastActivity:      now,
	}
}

func (p *Profile) isPenalized(now time.Time) bool {
	return now.Before(p.PenaltyUntil)
}

// Engine is the thread-safe Five Fingers reputation tracker. It owns
// a single write lock; readers snapshot under the same lock (teacher
// idiom: compare validators.Manager's map guard).
type Engine struct {
	mu       sync.RWMutex
	profiles map[ids.Hash]*Profile
	logger   log.Logger

	currentHeight uint64
	maxDrift      time.Duration

	countryPopulation map[string]int
	cityPopulation    map[ids.Hash]int
	totalCountries    int
}

// NewEngine constructs an empty reputation engine.
func NewEngine(logger log.Logger) *Engine {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &Engine{
		profiles:          map[ids.Hash]*Profile{},
		logger:            logger,
		maxDrift:          2 * time.Hour,
		countryPopulation: map[string]int{},
		cityPopulation:    map[ids.Hash]int{},
	}
}

// SetCurrentHeight updates the reference height used to bound event
// heights (spec.md §4.C: "heights more than 10 beyond ... rejected").
func (e *Engine) SetCurrentHeight(h uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.currentHeight = h
}

func (e *Engine) getOrCreate(node ids.Hash) *Profile {
	p, ok := e.profiles[node]
	if !ok {
		p = newProfile(node)
		e.profiles[node] = p
	}
	return p
}

// RecordEvent validates and applies ev to node's profile, returning
// the new aggregate score.
func (e *Engine) RecordEvent(node ids.Hash, ev Event) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	if ev.Timestamp.After(now.Add(e.maxDrift)) {
		return 0, ErrFutureTimestamp
	}
	if now.Sub(ev.Timestamp) > 24*time.Hour {
		return 0, ErrStaleTimestamp
	}
	if ev.Height > e.currentHeight+10 {
		return 0, ErrHeightTooFar
	}

	p := e.getOrCreate(node)
	p.LastActivity = now
	e.appendHistory(p, ev)

	if delta, isIntegrity := ev.Kind.integrityImpact(); isIntegrity {
		applyEMA(&p.Integrity, delta, now)
	}

	switch ev.Kind {
	case EventUptimeTick:
		applyEMA(&p.Time, 1, now)
	case EventDowntime:
		applyEMA(&p.Time, 0, now)
	case EventStorageUpdate:
		// storage value/confidence are set via UpdateStorage directly;
		// a bare event just timestamps the dimension.
		p.Storage.LastUpdate = now
	case EventNewCountry:
		applyEMA(&p.Geography, 1, now)
	case EventNewCity:
		applyEMA(&p.Geography, 0.5, now)
	case EventHandshakeFormed:
		applyEMA(&p.Handshake, 1, now)
	case EventHandshakeBroken:
		applyEMA(&p.Handshake, 0, now)
	}

	if dur, ok := penaltyDurations[ev.Kind]; ok {
		until := now.Add(dur)
		if until.After(p.PenaltyUntil) {
			p.PenaltyUntil = until
		}
	}

	e.recomputeAggregate(p, now)
	return p.AggregateScore, nil
}

// RecordEvents applies a batch of events for node in order, collecting
// every rejection instead of stopping at the first one (teacher
// idiom: utils/wrappers.Errs), and returns the final aggregate score
// alongside the joined error, if any. Used when a heartbeat or block
// ingest produces several signals for the same node at once.
func (e *Engine) RecordEvents(node ids.Hash, evs []Event) (float64, error) {
	var errs wrappers.Errs
	var score float64
	for _, ev := range evs {
		s, err := e.RecordEvent(node, ev)
		if err != nil {
			errs.Add(err)
			continue
		}
		score = s
	}
	return score, errs.Err()
}

func (e *Engine) appendHistory(p *Profile, ev Event) {
	p.History = append(p.History, ev)
	if len(p.History) > historyRingSize {
		p.History = p.History[len(p.History)-historyRingSize:]
	}
}

// applyEMA folds a new sample into an exponentially-decayed dimension
// score with half-life integrityHalfLife, per spec.md's "EMA of
// positive/negative events with exponential decay (half-life ~ 1 week)".
func applyEMA(d *DimensionScore, sample float64, now time.Time) {
	if d.Samples == 0 {
		d.Value = sample
		d.Confidence = 0.5
	} else {
		elapsed := now.Sub(d.LastUpdate)
		decay := math.Pow(0.5, elapsed.Hours()/integrityHalfLife.Hours())
		d.Value = decay*d.Value + (1-decay)*sample
		d.Confidence = math.Min(1, d.Confidence+0.05)
	}
	d.Samples++
	d.LastUpdate = now
}

// UpdateTime updates the TIME dimension: saturating uptime_seconds/K_TIME.
func (e *Engine) UpdateTime(node ids.Hash, uptimeSeconds float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := time.Now()
	p := e.getOrCreate(node)
	p.uptimeSeconds = uptimeSeconds
	p.Time.Value = math.Min(1, uptimeSeconds/KTimeSeconds)
	p.Time.Confidence = 1
	p.Time.Samples++
	p.Time.LastUpdate = now
	p.LastActivity = now
	e.recomputeAggregate(p, now)
}

// UpdateStorage updates the STORAGE dimension: saturating
// stored_blocks/total_blocks.
func (e *Engine) UpdateStorage(node ids.Hash, storedBlocks, totalBlocks uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := time.Now()
	p := e.getOrCreate(node)
	if totalBlocks == 0 {
		p.Storage.Value = 0
	} else {
		p.Storage.Value = math.Min(1, float64(storedBlocks)/float64(totalBlocks))
	}
	p.Storage.Confidence = 1
	p.Storage.Samples++
	p.Storage.LastUpdate = now
	p.LastActivity = now
	e.recomputeAggregate(p, now)
}

// RegisterLocation updates the GEOGRAPHY dimension by combining
// country and city rarity/diversity, per spec.md §4.C.
func (e *Engine) RegisterLocation(node ids.Hash, countryCode string, cityHash ids.Hash) {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := time.Now()
	p := e.getOrCreate(node)

	if p.CountryCode != "" && p.CountryCode != countryCode {
		e.countryPopulation[p.CountryCode]--
	}
	if _, seen := e.countryPopulation[countryCode]; !seen {
		e.totalCountries++
	}
	e.countryPopulation[countryCode]++
	e.cityPopulation[cityHash]++

	p.CountryCode = countryCode
	p.CityHash = cityHash

	country := geographyScore(e.countryPopulation[countryCode], e.totalCountries, 50)
	city := geographyScore(e.cityPopulation[cityHash], len(e.cityPopulation), 50)

	p.Geography.Value = 0.6*country + 0.4*city
	p.Geography.Confidence = 1
	p.Geography.Samples++
	p.Geography.LastUpdate = now
	p.LastActivity = now

	e.recomputeAggregate(p, now)
}

// geographyScore computes 0.6*rarity + 0.4*diversity for a population
// count against a diversity cap, per spec.md's GEOGRAPHY formula.
// populationInGroup includes the node being scored.
func geographyScore(populationInGroup, totalGroups, diversityCap int) float64 {
	if populationInGroup <= 1 {
		return 1 // first from the group: strong bonus
	}
	rarity := 1 / (1 + math.Log10(float64(populationInGroup)))
	diversity := math.Min(1, float64(totalGroups)/float64(diversityCap))
	return 0.6*rarity + 0.4*diversity
}

// AddVouch records an advisory-only directed trust edge; it never
// moves the five-finger score directly.
func (e *Engine) AddVouch(voucher, vouchee ids.Hash) error {
	if voucher == vouchee {
		return ErrSelfVouch
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	now := time.Now()

	v := e.getOrCreate(voucher)
	if now.Sub(v.vouchDayStart) > 24*time.Hour {
		v.vouchDayStart = now
		v.vouchesToday = 0
	}
	if v.vouchesToday >= maxVouchesPerDay {
		return ErrVouchRateLimited
	}
	v.vouchesToday++
	v.Trusts[vouchee] = struct{}{}

	t := e.getOrCreate(vouchee)
	t.TrustedBy[voucher] = struct{}{}
	return nil
}

// eligibleForHandshake checks the predicate from spec.md §4.C:
// TIME>=0.9, INTEGRITY>=0.8, STORAGE>=0.9, GEOGRAPHY>0.1, not penalized.
func eligibleForHandshake(p *Profile, now time.Time) bool {
	return !p.isPenalized(now) &&
		p.Time.Value >= handshakeMinTime &&
		p.Integrity.Value >= handshakeMinIntegrity &&
		p.Storage.Value >= handshakeMinStorage &&
		p.Geography.Value > handshakeMinGeography
}

// FormHandshake forms a mutual attestation between a and b iff both
// satisfy the eligibility predicate and sit in different countries.
// Signatures are verified by the caller's collaborator signer; this
// engine only records state, matching spec.md's abstraction boundary.
func (e *Engine) FormHandshake(a, b ids.Hash, height uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := time.Now()

	pa, pb := e.getOrCreate(a), e.getOrCreate(b)
	if !eligibleForHandshake(pa, now) || !eligibleForHandshake(pb, now) {
		return ErrHandshakeIneligible
	}
	if pa.CountryCode == pb.CountryCode {
		return ErrSameCountry
	}

	pa.HandshakePartners[b] = struct{}{}
	pb.HandshakePartners[a] = struct{}{}
	pa.handshakeCount++
	pb.handshakeCount++

	updateHandshakeDimension(pa, now)
	updateHandshakeDimension(pb, now)

	e.recomputeAggregate(pa, now)
	e.recomputeAggregate(pb, now)
	return nil
}

// BreakHandshake tears down a mutual attestation between a and b, the
// inverse of FormHandshake, per spec.md §4.C's handshake-broken event.
func (e *Engine) BreakHandshake(a, b ids.Hash) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := time.Now()

	pa, ok := e.profiles[a]
	if !ok {
		return ErrNoHandshake
	}
	pb, ok := e.profiles[b]
	if !ok {
		return ErrNoHandshake
	}
	if _, linked := pa.HandshakePartners[b]; !linked {
		return ErrNoHandshake
	}

	delete(pa.HandshakePartners, b)
	delete(pb.HandshakePartners, a)
	if pa.handshakeCount > 0 {
		pa.handshakeCount--
	}
	if pb.handshakeCount > 0 {
		pb.handshakeCount--
	}

	updateHandshakeDimension(pa, now)
	updateHandshakeDimension(pb, now)

	e.recomputeAggregate(pa, now)
	e.recomputeAggregate(pb, now)
	return nil
}

func updateHandshakeDimension(p *Profile, now time.Time) {
	p.Handshake.Value = math.Min(1, float64(p.handshakeCount)/KHandshakes)
	p.Handshake.Confidence = 1
	p.Handshake.Samples++
	p.Handshake.LastUpdate = now
}

// recomputeAggregate folds the five dimensions into the bounded
// aggregate score, per spec.md §4.C:
//
//	sum(weight_i * value_i * confidence_i) / sum(weight_i * confidence_i)
//
// with an active penalty multiplying the result by 0.1.
func (e *Engine) recomputeAggregate(p *Profile, now time.Time) {
	type wv struct {
		w float64
		d DimensionScore
	}
	dims := []wv{
		{WeightTime, p.Time},
		{WeightIntegrity, p.Integrity},
		{WeightStorage, p.Storage},
		{WeightGeography, p.Geography},
		{WeightHandshake, p.Handshake},
	}

	var num, den float64
	for _, dv := range dims {
		num += dv.w * dv.d.Value * dv.d.Confidence
		den += dv.w * dv.d.Confidence
	}

	var agg float64
	if den > 0 {
		agg = num / den
	}
	if agg < 0 {
		agg = 0
	}
	if agg > 1 {
		agg = 1
	}
	if p.isPenalized(now) {
		agg *= 0.1
	}
	p.AggregateScore = agg
}

// Score returns node's current aggregate score in [0,1].
func (e *Engine) Score(node ids.Hash) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.profiles[node]
	if !ok {
		return 0
	}
	return p.AggregateScore
}

// Multiplier maps the aggregate score to a lottery weight multiplier
// in [0.1, 2.0].
func (e *Engine) Multiplier(node ids.Hash) float64 {
	s := e.Score(node)
	return 0.1 + s*1.9
}

// TopScores returns up to n profiles ranked by aggregate score
// descending; supplements spec.md per SPEC_FULL.md §4, grounded in
// the original ScoreTracker.get_top_scores.
func (e *Engine) TopScores(n int) []*Profile {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Profile, 0, len(e.profiles))
	for _, p := range e.profiles {
		out = append(out, p)
	}
	sortProfilesByScoreDesc(out)
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

func sortProfilesByScoreDesc(ps []*Profile) {
	for i := 1; i < len(ps); i++ {
		for j := i; j > 0 && ps[j].AggregateScore > ps[j-1].AggregateScore; j-- {
			ps[j], ps[j-1] = ps[j-1], ps[j]
		}
	}
}

// ActiveCount returns the number of profiles whose last activity lies
// within window of the current wall-clock time; supplements spec.md
// per SPEC_FULL.md §4.
func (e *Engine) ActiveCount(window time.Duration) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	now := time.Now()
	n := 0
	for _, p := range e.profiles {
		if now.Sub(p.LastActivity) <= window {
			n++
		}
	}
	return n
}

// GC evicts profiles inactive for more than ttl, never evicting a
// penalized profile.
func (e *Engine) GC(ttl time.Duration) int {
	if ttl <= 0 {
		ttl = defaultInactivityTTL
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	now := time.Now()
	evicted := 0
	for id, p := range e.profiles {
		if p.isPenalized(now) {
			continue
		}
		if now.Sub(p.LastActivity) > ttl {
			delete(e.profiles, id)
			evicted++
		}
	}
	return evicted
}
