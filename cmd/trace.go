// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/Thermoquad/sbusctl/pkg/sbus"
	"github.com/Thermoquad/sbusctl/pkg/trace"
	"github.com/spf13/cobra"
)

var (
	traceShowFrames bool
	tracePhasesOnly bool
)

var traceCmd = &cobra.Command{
	Use:   "trace <file>",
	Short: "Display a recorded arm_test trace",
	Long: `Decode a CBOR trace written by arm_test --record and print it.

Each frame record shows its tick, phase and the control channels. Phase
boundaries are marked. Use --frames to include the raw frame bytes.`,
	Args: cobra.ExactArgs(1),
	// Reading a trace needs no connection or config
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE:              runTrace,
}

func init() {
	rootCmd.AddCommand(traceCmd)
	traceCmd.Flags().BoolVar(&traceShowFrames, "frames", false, "Print raw frame bytes")
	traceCmd.Flags().BoolVar(&tracePhasesOnly, "phases", false, "Print phase boundaries only")
}

func runTrace(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	reader := trace.NewReader(bufio.NewReader(f))
	frames := 0
	for {
		rec, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		if rec.Kind == trace.KindFrame {
			frames++
			if tracePhasesOnly {
				continue
			}
		}

		fmt.Println(trace.FormatRecord(rec))
		if traceShowFrames && rec.Kind == trace.KindFrame {
			var fr sbus.Frame
			copy(fr[:], rec.Frame)
			fmt.Printf("         %s\n", sbus.FormatFrame(fr))
		}
	}

	fmt.Printf("\n%d frames\n", frames)
	return nil
}
