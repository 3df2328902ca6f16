// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Thermoquad/sbusctl/internal/config"
	"github.com/Thermoquad/sbusctl/pkg/sbus"
	"github.com/Thermoquad/sbusctl/pkg/sequence"
	"github.com/Thermoquad/sbusctl/pkg/trace"
	"github.com/spf13/cobra"
)

var (
	armDryRun bool
	armFast   bool
	armTUI    bool
	armRecord string
	armTickMs int
	armDelay  int
	armLED    string
)

var armTestCmd = &cobra.Command{
	Use:   "arm_test",
	Short: "Arm, spin up, spin down and disarm over SBUS",
	Long: `Run the scripted motor bench test.

The maneuver streams one SBUS frame per tick (14 ms by default):

  NEUTRAL              sticks centered, throttle and aux low   140 frames
  ARMING               throttle low + yaw right                150 frames
  ARMED_HOLD           yaw centered                             70 frames
  THROTTLE_RAMP_UP     throttle 172 -> 1400 in steps of 5     1230 frames
  THROTTLE_HOLD        throttle 1400                           140 frames
  THROTTLE_RAMP_DOWN   throttle 1400 -> 172 in steps of 5     1230 frames
  THROTTLE_FLOOR_HOLD  throttle low                             70 frames
  DISARMING            throttle low + yaw left                 150 frames
  DISARMED_HOLD        yaw centered                             70 frames

REMOVE PROPELLERS before running this against real hardware. Close the
flight controller configurator first: it holds the controller in a state
that ignores RC input.

A transport write failure aborts the run immediately. Ctrl+C stops sending;
the flight controller's own failsafe handles the lost signal.

Exit codes:
  0 - Maneuver completed
  1 - Aborted (transport failure, interrupt or bad configuration)`,
	RunE: runArmTest,
}

func init() {
	rootCmd.AddCommand(armTestCmd)
	armTestCmd.Flags().BoolVar(&armDryRun, "dry-run", false, "Encode and pace frames without opening a connection")
	armTestCmd.Flags().BoolVar(&armFast, "fast", false, "Do not wait between frames (requires --dry-run)")
	armTestCmd.Flags().BoolVar(&armTUI, "tui", false, "Show an interactive progress view")
	armTestCmd.Flags().StringVar(&armRecord, "record", "", "Record every frame to a CBOR trace file")
	armTestCmd.Flags().IntVar(&armTickMs, "tick", 0, "Frame interval in milliseconds (default from config, 14)")
	armTestCmd.Flags().IntVar(&armDelay, "delay", -1, "Seconds to wait before the first frame (default from config, 3)")
	armTestCmd.Flags().StringVar(&armLED, "led", "", "Status LED brightness file, e.g. /sys/class/leds/led0/brightness")
}

func runArmTest(cmd *cobra.Command, args []string) error {
	if armFast && !armDryRun {
		return fmt.Errorf("--fast requires --dry-run")
	}
	if cmd.Flags().Changed("tick") {
		cfg.Sequence.TickIntervalMs = armTickMs
	}
	if cmd.Flags().Changed("delay") {
		cfg.Sequence.StartDelaySec = armDelay
	}
	if cmd.Flags().Changed("led") {
		cfg.Indicator.LEDPath = armLED
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	var (
		conn     Connection
		connInfo string
		err      error
	)
	if armDryRun {
		conn, connInfo = &DiscardConnection{}, "dry run (no output)"
	} else {
		conn, connInfo, err = OpenConnection(cfg)
		if err != nil {
			return err
		}
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []sequence.Option{}
	switch {
	case armFast:
		opts = append(opts, sequence.WithTicker(&sequence.ImmediateTicker{}))
	default:
		opts = append(opts, sequence.WithTicker(sequence.NewIntervalTicker(cfg.TickInterval())))
	}
	if cfg.Indicator.LEDPath != "" {
		opts = append(opts, sequence.WithIndicator(sequence.NewFileIndicator(cfg.Indicator.LEDPath)))
	}

	var (
		recorder  *trace.Recorder
		traceFile *os.File
		traceBuf  *bufio.Writer
	)
	if armRecord != "" {
		traceFile, err = os.Create(armRecord)
		if err != nil {
			return fmt.Errorf("failed to create trace file: %w", err)
		}
		defer traceFile.Close()
		traceBuf = bufio.NewWriter(traceFile)

		recorder = trace.NewRecorder(traceBuf)
		opts = append(opts, sequence.WithObserver(recorder))
	}

	fmt.Printf("sbusctl - Arm and Spin Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Frame interval: %s\n", cfg.TickInterval())
	fmt.Printf("Frames: %d\n\n", sequence.TotalTicks(sequence.DefaultStages()))

	if !armDryRun && cfg.StartDelay() > 0 {
		fmt.Printf("Close the flight controller configurator now!\n")
		fmt.Printf("Starting in %s (Ctrl+C to cancel)...\n\n", cfg.StartDelay())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.StartDelay()):
		}
	}

	var report *sequence.Report
	if armTUI {
		report, err = runArmTUI(ctx, conn, connInfo, opts)
	} else {
		opts = append(opts, sequence.WithObserver(consoleObserver()))
		var seq *sequence.Sequencer
		seq, err = sequence.New(conn, opts...)
		if err != nil {
			return err
		}
		report, err = seq.Run(ctx)
	}

	if report != nil {
		printReport(report)
	}
	if recorder != nil {
		if terr := finishTrace(recorder, traceBuf, traceFile, armRecord); terr != nil {
			log.Printf("%v", terr)
			if err == nil {
				err = terr
			}
		} else {
			fmt.Printf("Trace: %d records written to %s\n", recorder.Count(), armRecord)
		}
	}

	if errors.Is(err, sequence.ErrTransportFailed) {
		return fmt.Errorf("link lost, run aborted: %w", err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("interrupted, run aborted")
	}
	return err
}

// finishTrace flushes and closes the trace file. The trace only counts as
// written once every buffered record reached the file.
func finishTrace(recorder *trace.Recorder, w *bufio.Writer, f io.Closer, path string) error {
	if err := recorder.Err(); err != nil {
		return fmt.Errorf("trace recording stopped early: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("trace %s incomplete: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("trace %s incomplete: %w", path, err)
	}
	return nil
}

// consoleObserver prints a banner per phase
func consoleObserver() sequence.Observer {
	return sequence.ObserverFuncs{
		OnPhase: func(ev sequence.PhaseEvent) {
			timestamp := ev.Time.Format("15:04:05.000")
			if ev.Phase == sequence.PhaseDone {
				fmt.Printf("[%s] %s - Done!\n", timestamp, ev.Phase.Description())
				return
			}
			fmt.Printf("[%s] %-19s %s (%d frames)\n", timestamp, ev.Phase, ev.Phase.Description(), ev.Ticks)
		},
	}
}

func printReport(r *sequence.Report) {
	status := "COMPLETED"
	if !r.Completed {
		status = "ABORTED"
	}

	fmt.Printf("\n=== Run %s ===\n", status)
	fmt.Printf("Frames sent: %d\n", r.Frames)
	fmt.Printf("Elapsed: %s\n", r.Elapsed.Round(time.Millisecond))
	for _, p := range r.Phases {
		if p == sequence.PhaseDone {
			continue
		}
		fmt.Printf("  %-19s %5d frames\n", p, r.PhaseTicks[p])
	}
	fmt.Printf("Final channels: %s\n", sbus.FormatControls(r.Final))
}
