// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package timesync implements the Atomic-Time Oracle of spec.md §4.A:
// a fault-tolerant consensus UTC offset derived from N external time
// sources via Byzantine-median aggregation.
package timesync

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/luxfi/log"
)

// Status mirrors spec.md §4.A's synchronize() outcomes.
type Status int

const (
	StatusValid Status = iota
	StatusInsufficient
	StatusDivergent
)

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "VALID"
	case StatusInsufficient:
		return "INSUFFICIENT"
	case StatusDivergent:
		return "DIVERGENT"
	default:
		return "UNKNOWN"
	}
}

// Sample is one external time source's response.
type Sample struct {
	QueryID   uuid.UUID
	Source    string
	Region    string
	OffsetMS  float64
	RTTMS     float64
	Success   bool
}

// Source is an external time collaborator queried in parallel.
type Source interface {
	Name() string
	Region() string
	Query(ctx context.Context) (offsetMS, rttMS float64, err error)
}

// Consensus is the result of one synchronize() round.
type Consensus struct {
	Status        Status
	OffsetMS      float64
	Responding    int
	Agreeing      int
	RegionsCovered int
	Samples       []Sample
	At            time.Time
}

// Params tunes the Byzantine-median algorithm (spec.md §4.A / §6).
type Params struct {
	QMin         int           // minimum successful responses
	RMin         int           // minimum distinct regions in the winning cluster
	MaxDriftMS   float64       // Delta: clustering tolerance
	QueryTimeout time.Duration
	StaleAfter   time.Duration // how long a retained consensus stays usable
}

// DefaultParams matches spec.md's worked example (5 sources, MAX_DRIFT_MS=50).
func DefaultParams() Params {
	return Params{
		QMin:         3,
		RMin:         2,
		MaxDriftMS:   50,
		QueryTimeout: 2 * time.Second,
		StaleAfter:   5 * time.Minute,
	}
}

// Oracle runs the Byzantine-median time consensus algorithm across a
// fixed set of Sources.
type Oracle struct {
	params  Params
	sources []Source
	logger  log.Logger

	mu       sync.RWMutex
	last     *Consensus
	degraded bool
}

// New constructs an Oracle over the given sources.
func New(params Params, sources []Source, logger log.Logger) *Oracle {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &Oracle{params: params, sources: sources, logger: logger}
}

// Synchronize queries all configured sources in parallel and reduces
// the result per spec.md §4.A's four-step algorithm.
func (o *Oracle) Synchronize(ctx context.Context) Consensus {
	samples := o.queryAll(ctx)

	var ok []Sample
	for _, s := range samples {
		if s.Success {
			ok = append(ok, s)
		}
	}

	result := Consensus{Samples: samples, At: time.Now()}

	if len(ok) < o.params.QMin {
		result.Status = StatusInsufficient
		result.Responding = len(ok)
		o.retainOrDegrade(result)
		return result
	}

	cluster := largestCluster(ok, o.params.MaxDriftMS)
	regions := distinctRegions(cluster)

	result.Responding = len(ok)
	result.Agreeing = len(cluster)
	result.RegionsCovered = regions

	if len(cluster) < o.params.QMin || regions < o.params.RMin {
		result.Status = StatusDivergent
		o.retainOrDegrade(result)
		return result
	}

	result.Status = StatusValid
	result.OffsetMS = medianOffset(cluster)

	o.mu.Lock()
	o.last = &result
	o.degraded = false
	o.mu.Unlock()

	return result
}

// retainOrDegrade keeps the previous valid consensus if it isn't
// stale, per spec.md §4.A's failure semantics; otherwise it flags the
// oracle as degraded.
func (o *Oracle) retainOrDegrade(failed Consensus) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.last != nil && time.Since(o.last.At) <= o.params.StaleAfter {
		o.logger.Warn("time consensus degraded, retaining previous offset",
			"status", failed.Status.String(), "age", time.Since(o.last.At).String())
		return
	}
	o.degraded = true
	o.logger.Warn("time consensus unavailable and previous offset stale", "status", failed.Status.String())
}

// CurrentTimeMS returns the local monotonic clock corrected by the
// last valid consensus offset.
func (o *Oracle) CurrentTimeMS() int64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	nowMS := time.Now().UnixMilli()
	if o.last == nil {
		return nowMS
	}
	return nowMS + int64(o.last.OffsetMS)
}

// Degraded reports whether the oracle is operating without a fresh
// consensus; consumers may keep operating but must still enforce
// spec.md's MAX_TIME_DRIFT check against the retained offset.
func (o *Oracle) Degraded() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.degraded
}

func (o *Oracle) queryAll(ctx context.Context) []Sample {
	samples := make([]Sample, len(o.sources))
	var wg sync.WaitGroup
	for i, src := range o.sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			qctx, cancel := context.WithTimeout(ctx, o.params.QueryTimeout)
			defer cancel()

			offset, rtt, err := src.Query(qctx)
			samples[i] = Sample{
				QueryID: uuid.New(),
				Source:  src.Name(),
				Region:  src.Region(),
				Success: err == nil,
			}
			if err == nil {
				samples[i].OffsetMS = offset
				samples[i].RTTMS = rtt
			}
		}(i, src)
	}
	wg.Wait()
	return samples
}

// largestCluster finds, for every response, how many others fall
// within +/-delta of its offset, and returns the largest such
// cluster (spec.md §4.A step 2).
func largestCluster(samples []Sample, delta float64) []Sample {
	var best []Sample
	for _, center := range samples {
		var cluster []Sample
		for _, s := range samples {
			if abs(s.OffsetMS-center.OffsetMS) <= delta {
				cluster = append(cluster, s)
			}
		}
		if len(cluster) > len(best) {
			best = cluster
		}
	}
	return best
}

func distinctRegions(samples []Sample) int {
	seen := make(map[string]struct{})
	for _, s := range samples {
		seen[s.Region] = struct{}{}
	}
	return len(seen)
}

func medianOffset(samples []Sample) float64 {
	offsets := make([]float64, len(samples))
	for i, s := range samples {
		offsets[i] = s.OffsetMS
	}
	sort.Float64s(offsets)
	n := len(offsets)
	if n%2 == 1 {
		return offsets[n/2]
	}
	return (offsets[n/2-1] + offsets[n/2]) / 2
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
