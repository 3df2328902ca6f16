// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Thermoquad/sbusctl/pkg/sbus"
	"github.com/Thermoquad/sbusctl/pkg/sequence"
	"github.com/spf13/cobra"
)

var (
	frameStrict bool
	frameSend   int
)

var frameCmd = &cobra.Command{
	Use:   "frame [value...]",
	Short: "Encode channel values into an SBUS frame",
	Long: `Encode up to 16 channel values and print the resulting 25-byte frame.

Values are given in channel order (roll, pitch, throttle, yaw, aux1, ...).
Missing channels are centered (992). Values outside 172-1811 are clamped
unless --strict is given, in which case they are rejected.

With --send N the frame is also streamed N times at the configured frame
interval over the serial port or WebSocket bridge.

Examples:
  # Safe neutral: sticks centered, throttle and aux low
  sbusctl frame 992 992 172 992 172 172

  # Hold neutral for ~2 seconds on a real link
  sbusctl frame 992 992 172 992 --send 140 --port /dev/ttyUSB0`,
	Args: cobra.MaximumNArgs(sbus.NumChannels),
	RunE: runFrame,
}

func init() {
	rootCmd.AddCommand(frameCmd)
	frameCmd.Flags().BoolVar(&frameStrict, "strict", false, "Reject out-of-range values instead of clamping")
	frameCmd.Flags().IntVar(&frameSend, "send", 0, "Send the frame this many times over the connection")
}

// parseChannels builds a channel bank from positional arguments
func parseChannels(args []string, strict bool) (*sbus.ChannelBank, error) {
	bank := sbus.NewChannelBank()
	for i, arg := range args {
		v, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("channel %d (%s): invalid value %q", i+1, sbus.ChannelName(i), arg)
		}
		if strict {
			if err := bank.SetStrict(i, v); err != nil {
				return nil, err
			}
			continue
		}
		bank.Set(i, v)
	}
	return bank, nil
}

func runFrame(cmd *cobra.Command, args []string) error {
	bank, err := parseChannels(args, frameStrict)
	if err != nil {
		return err
	}

	snapshot := bank.Snapshot()
	frame := sbus.Encode(snapshot)

	fmt.Printf("Channels: %s\n", sbus.FormatChannels(snapshot))
	fmt.Printf("Frame:    %s\n", sbus.FormatFrame(frame))

	if frameSend <= 0 {
		return nil
	}

	conn, connInfo, err := OpenConnection(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A single hold stage streams the same frame at the sequencer's cadence
	var values []sequence.Assignment
	for i, v := range snapshot {
		values = append(values, sequence.Assignment{Channel: i, Value: int(v)})
	}
	seq, err := sequence.New(conn,
		sequence.WithBank(bank),
		sequence.WithStages([]sequence.Stage{{Phase: sequence.PhaseNeutral, Set: values, Hold: frameSend}}),
		sequence.WithTicker(sequence.NewIntervalTicker(cfg.TickInterval())),
	)
	if err != nil {
		return err
	}

	fmt.Printf("\nSending %d frames to %s...\n", frameSend, connInfo)
	report, err := seq.Run(ctx)
	if report != nil {
		fmt.Printf("Sent %d frames in %s\n", report.Frames, report.Elapsed.Round(time.Millisecond))
	}
	return err
}
