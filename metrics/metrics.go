// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics wires the consensus kernel's operational counters
// and gauges to Prometheus, following the teacher's thin
// Metrics{Registry} holder shape.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects the kernel's Prometheus instrumentation: one
// gauge/counter per component that has an operator-visible signal
// worth exporting (spec.md §2's component table maps directly onto
// these).
type Metrics struct {
	Registry prometheus.Registerer

	// E: DAG + PHANTOM / F: Finality Accumulator.
	IrreversibleBlocks prometheus.Counter
	FinalityDepth      prometheus.Gauge
	MainChainLength    prometheus.Gauge

	// A: Atomic-Time Oracle.
	TimeSyncStatus prometheus.Gauge

	// B: VDF Engine.
	VDFThroughput Averager

	// D: Lottery.
	EligibleSlots prometheus.Counter
}

// New constructs and registers a Metrics instance against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Registry: reg,
		IrreversibleBlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "consensus_irreversible_blocks_total",
			Help: "Number of blocks that reached IRREVERSIBLE finality.",
		}),
		FinalityDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "consensus_finality_depth",
			Help: "Checkpoint count of the most recently updated block.",
		}),
		MainChainLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "consensus_main_chain_length",
			Help: "Number of blocks on the current main chain.",
		}),
		TimeSyncStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "consensus_timesync_status",
			Help: "Atomic-time oracle consensus status (0=valid, 1=insufficient, 2=divergent).",
		}),
		EligibleSlots: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "consensus_eligible_slots_total",
			Help: "Number of slots this node won the producer lottery for.",
		}),
	}
	reg.MustRegister(m.IrreversibleBlocks, m.FinalityDepth, m.MainChainLength, m.TimeSyncStatus, m.EligibleSlots)

	throughput, err := NewAverager("consensus_vdf_iterations_per_second", "VDF iterations computed per second", reg)
	if err == nil {
		m.VDFThroughput = throughput
	}
	return m
}

// NewMetrics is an alias for New, kept for callers that only need the
// bare registry holder (teacher idiom: metrics.NewMetrics(reg)).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return New(reg)
}

// Register registers an additional collector against m's registry.
func (m *Metrics) Register(collector prometheus.Collector) error {
	return m.Registry.Register(collector)
}
