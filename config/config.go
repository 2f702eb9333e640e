// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config holds the protocol-constant parameters of the
// consensus kernel (spec.md §6), following the teacher's
// config/validator.go shape: a typed Params struct plus a Validate()
// that logs warnings for out-of-range tuning rather than failing hard.
package config

import (
	"time"

	"github.com/luxfi/log"

	"github.com/luxfi/consensus/engine/dag"
	"github.com/luxfi/consensus/lottery"
	"github.com/luxfi/consensus/reputation"
	"github.com/luxfi/consensus/timesync"
	"github.com/luxfi/consensus/vdf"
)

// Params collects every tunable constant the six components need.
// Each group of fields names the spec.md sections it mirrors.
type Params struct {
	// VDF (spec.md §4.B, §6).
	VDFMinIterations   uint64
	VDFMaxIterations   uint64
	VDFBaseIterations  uint64
	VDFCheckpointEvery uint64

	// DAG + PHANTOM (spec.md §4.E, §6).
	MaxParents    int
	PhantomK      uint64
	MaxReorgDepth int

	// Finality (spec.md §4.F, §6).
	TentativeThreshold uint64
	ConfirmedThreshold uint64
	FinalizedThreshold uint64

	// Lottery tier weights (spec.md §4.D, §6).
	TierWeights map[lottery.Tier]float64

	// Five Fingers reputation dimension weights (spec.md §4.C, §6).
	WeightTime      float64
	WeightIntegrity float64
	WeightStorage   float64
	WeightGeography float64
	WeightHandshake float64

	// Atomic-Time Oracle (spec.md §4.A, §6).
	MinSources   int
	MinRegions   int
	MaxTimeDrift time.Duration
}

// Default returns the protocol-constant parameter set spec.md §6
// specifies, assembled from each component's own DefaultParams and
// exported constants. The finality thresholds are the one exception:
// they come from the local copies below.
func Default() Params {
	vdfParams := vdf.DefaultParams()
	dagParams := dag.DefaultParams()
	timeParams := timesync.DefaultParams()

	return Params{
		VDFMinIterations:   vdfParams.TMin,
		VDFMaxIterations:   vdfParams.TMax,
		VDFBaseIterations:  vdf.DefaultBaseIterations,
		VDFCheckpointEvery: vdfParams.CheckpointEvery,

		MaxParents:    dag.MaxParents,
		PhantomK:      dagParams.PhantomK,
		MaxReorgDepth: dagParams.MaxReorgDepth,

		TentativeThreshold: finalityTentative,
		ConfirmedThreshold: finalityConfirmed,
		FinalizedThreshold: finalityFinalized,

		TierWeights: lottery.TierWeights,

		WeightTime:      reputation.WeightTime,
		WeightIntegrity: reputation.WeightIntegrity,
		WeightStorage:   reputation.WeightStorage,
		WeightGeography: reputation.WeightGeography,
		WeightHandshake: reputation.WeightHandshake,

		MinSources:   timeParams.QMin,
		MinRegions:   timeParams.RMin,
		MaxTimeDrift: time.Duration(timeParams.MaxDriftMS) * time.Millisecond,
	}
}

// Copies of finality.TentativeThreshold, ConfirmedThreshold and
// FinalizedThreshold. config does not import the finality package, so
// these are kept equal to those constants by hand.
const (
	finalityTentative = 1
	finalityConfirmed = 100
	finalityFinalized = 1000
)

// Validate checks Params against the ranges spec.md §6 documents and
// logs a warning (never an error) for anything outside them, mirroring
// the teacher's low/high MinRoundInterval warnings: tuning mistakes
// should be visible, not fatal, since a kernel operator may have a
// deliberate reason to deviate.
func (p Params) Validate(logger log.Logger) {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}

	if p.VDFBaseIterations == 0 {
		logger.Warn("vdf base iterations is zero, VDF segments will be instant")
	}
	if p.VDFMinIterations > p.VDFMaxIterations {
		logger.Warn("vdf min iterations exceeds max iterations", "min", p.VDFMinIterations, "max", p.VDFMaxIterations)
	}
	if p.VDFCheckpointEvery == 0 {
		logger.Warn("vdf checkpoint interval is zero, the VDF engine falls back to its default interval")
	}
	if p.MaxParents <= 0 || p.MaxParents > dag.MaxParents {
		logger.Warn("max parents outside protocol range", "value", p.MaxParents, "protocolMax", dag.MaxParents)
	}
	if p.PhantomK == 0 {
		logger.Warn("phantom k is zero, every non-ancestor block will be red")
	}
	if p.MaxReorgDepth <= 0 {
		logger.Warn("max reorg depth is non-positive, all reorgs will be rejected")
	}
	if !(p.TentativeThreshold < p.ConfirmedThreshold && p.ConfirmedThreshold < p.FinalizedThreshold) {
		logger.Warn("finality thresholds are not strictly increasing",
			"tentative", p.TentativeThreshold, "confirmed", p.ConfirmedThreshold, "finalized", p.FinalizedThreshold)
	}
	if p.MinSources < 1 {
		logger.Warn("min time sources below 1, atomic-time consensus can never reach quorum")
	}
	if p.MinRegions < 1 {
		logger.Warn("min distinct regions below 1, region-diversity check is disabled")
	}
	if p.MaxTimeDrift <= 0 {
		logger.Warn("max time drift is non-positive, every sample will be treated as divergent")
	}

	sum := p.WeightTime + p.WeightIntegrity + p.WeightStorage + p.WeightGeography + p.WeightHandshake
	if sum < 0.99 || sum > 1.01 {
		logger.Warn("five-finger dimension weights do not sum to 1.0", "sum", sum)
	}
}
