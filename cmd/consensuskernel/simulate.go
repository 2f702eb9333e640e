// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"crypto/ed25519"
	"time"

	"github.com/spf13/cobra"

	"github.com/luxfi/log"

	"github.com/luxfi/consensus/chainkernel"
	"github.com/luxfi/consensus/config"
	"github.com/luxfi/consensus/engine/dag"
	"github.com/luxfi/consensus/finality"
	"github.com/luxfi/consensus/ids"
	"github.com/luxfi/consensus/lottery"
	"github.com/luxfi/consensus/reputation"
	"github.com/luxfi/consensus/timesync"
	"github.com/luxfi/consensus/vdf"
)

func simulateCmd() *cobra.Command {
	var slots int
	var iterations uint64

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Drive a synthetic single-node DAG + VDF run",
		Long: `Runs a local producer loop against an in-memory DAG: every slot is
attempted in turn, and any slot this node wins extends the main chain
with a fresh VDF checkpoint. Useful for exercising the kernel's
dominant data flow without a network.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := log.NewLogger("simulate")
			params := config.Default()
			if iterations > 0 {
				params.VDFBaseIterations = iterations
			}

			clock := timesync.New(timesync.DefaultParams(), nil, logger)
			vdfEngine := vdf.New(vdf.Params{
				TMin:             params.VDFMinIterations,
				TMax:             params.VDFMaxIterations,
				CheckpointEvery:  params.VDFCheckpointEvery,
				MinSampleSegments: vdf.DefaultSampleSegments,
			})
			rep := reputation.NewEngine(logger)
			acc := finality.New(logger, nil)

			_, priv, err := ed25519.GenerateKey(nil)
			if err != nil {
				return err
			}
			nodeID := ids.Hash{0x01}
			_, _ = rep.RecordEvent(nodeID, reputation.Event{Kind: reputation.EventBlockProduced, Timestamp: time.Now()})

			k := chainkernel.New(params, logger, clock, vdfEngine, rep, acc, nil, nil, priv, nodeID, lottery.Tier1)
			if err := k.Bootstrap(dag.Header{Height: 0}, ids.Hash{0xFF}); err != nil {
				return err
			}

			ctx := context.Background()
			produced := 0
			for slot := 0; slot < slots; slot++ {
				hash, err := k.TryProduceBlock(ctx, uint64(slot))
				if err == chainkernel.ErrNotEligible {
					continue
				}
				if err != nil {
					logger.Warn("slot failed", "slot", slot, "error", err)
					continue
				}
				produced++
				logger.Info("produced block", "slot", slot, "hash", hash.String())
			}

			chain := k.DAG().GetMainChain()
			logger.Info("simulation complete", "slotsAttempted", slots, "blocksProduced", produced, "mainChainLength", len(chain))
			return nil
		},
	}

	cmd.Flags().IntVar(&slots, "slots", 100, "number of slots to attempt")
	cmd.Flags().Uint64Var(&iterations, "iterations", 0, "override VDF iterations per block (0 = use the default)")
	return cmd
}
