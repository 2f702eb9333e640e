// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package timesync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type fixedSource struct {
	name, region string
	offsetMS     float64
	fail         bool
}

func (f fixedSource) Name() string   { return f.name }
func (f fixedSource) Region() string { return f.region }
func (f fixedSource) Query(ctx context.Context) (float64, float64, error) {
	if f.fail {
		return 0, 0, context.DeadlineExceeded
	}
	return f.offsetMS, 10, nil
}

// TestByzantineMedianClustering grounds spec.md §8 scenario 5:
// offsets {+10,+12,+11,+9,+900} with MAX_DRIFT_MS=50 yields
// consensus offset = median({+10,+12,+11,+9}) = +10.5; +900 excluded.
func TestByzantineMedianClustering(t *testing.T) {
	sources := []Source{
		fixedSource{name: "a", region: "us", offsetMS: 10},
		fixedSource{name: "b", region: "eu", offsetMS: 12},
		fixedSource{name: "c", region: "asia", offsetMS: 11},
		fixedSource{name: "d", region: "sa", offsetMS: 9},
		fixedSource{name: "e", region: "af", offsetMS: 900},
	}
	params := DefaultParams()
	params.MaxDriftMS = 50
	params.QMin = 3
	params.RMin = 2

	o := New(params, sources, nil)
	result := o.Synchronize(context.Background())

	require.Equal(t, StatusValid, result.Status)
	require.Equal(t, 4, result.Agreeing)
	require.InDelta(t, 10.5, result.OffsetMS, 0.0001)
}

func TestInsufficientSources(t *testing.T) {
	sources := []Source{
		fixedSource{name: "a", region: "us", offsetMS: 10},
		fixedSource{name: "b", region: "eu", fail: true},
		fixedSource{name: "c", region: "asia", fail: true},
	}
	o := New(DefaultParams(), sources, nil)
	result := o.Synchronize(context.Background())
	require.Equal(t, StatusInsufficient, result.Status)
}

func TestDivergentSources(t *testing.T) {
	// All in the same region: cluster size satisfies QMin but region
	// coverage does not satisfy RMin.
	sources := []Source{
		fixedSource{name: "a", region: "us", offsetMS: 10},
		fixedSource{name: "b", region: "us", offsetMS: 11},
		fixedSource{name: "c", region: "us", offsetMS: 12},
	}
	params := DefaultParams()
	params.RMin = 2
	o := New(params, sources, nil)
	result := o.Synchronize(context.Background())
	require.Equal(t, StatusDivergent, result.Status)
}

func TestRetainsPreviousValidOffsetOnDegrade(t *testing.T) {
	good := []Source{
		fixedSource{name: "a", region: "us", offsetMS: 5},
		fixedSource{name: "b", region: "eu", offsetMS: 6},
		fixedSource{name: "c", region: "asia", offsetMS: 5},
	}
	o := New(DefaultParams(), good, nil)
	first := o.Synchronize(context.Background())
	require.Equal(t, StatusValid, first.Status)
	require.False(t, o.Degraded())

	o.sources = []Source{fixedSource{name: "a", region: "us", fail: true}}
	second := o.Synchronize(context.Background())
	require.Equal(t, StatusInsufficient, second.Status)
	require.False(t, o.Degraded(), "should retain previous valid offset, not degrade, while fresh")
}
