// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultParamsAreInternallyConsistent(t *testing.T) {
	p := Default()

	require.Less(t, p.TentativeThreshold, p.ConfirmedThreshold)
	require.Less(t, p.ConfirmedThreshold, p.FinalizedThreshold)
	require.Greater(t, p.MaxParents, 0)
	require.LessOrEqual(t, p.MaxParents, 8)
	require.Greater(t, p.PhantomK, uint64(0))

	sum := p.WeightTime + p.WeightIntegrity + p.WeightStorage + p.WeightGeography + p.WeightHandshake
	require.InDelta(t, 1.0, sum, 0.001)
}

func TestValidateDoesNotPanicOnDefaults(t *testing.T) {
	p := Default()
	require.NotPanics(t, func() { p.Validate(nil) })
}

func TestValidateWarnsOnBrokenThresholds(t *testing.T) {
	p := Default()
	p.ConfirmedThreshold = p.TentativeThreshold // no longer strictly increasing
	require.NotPanics(t, func() { p.Validate(nil) })
}
