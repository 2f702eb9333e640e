// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "consensuskernel",
	Short: "Temporal-VDF consensus kernel tools for validation, simulation, and serving",
	Long: `consensuskernel provides tools for working with the temporal-VDF consensus
kernel: parameter validation, a synthetic driver that exercises the VDF
engine, DAG, and finality accumulator together, and a local server that
runs the atomic-time oracle loop and exposes health/metrics for operators.`,
}

func main() {
	rootCmd.AddCommand(
		checkCmd(),
		simulateCmd(),
		serveCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
