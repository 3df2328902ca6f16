// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/sbusctl/internal/config"
	"github.com/Thermoquad/sbusctl/pkg/sequence"
	"github.com/Thermoquad/sbusctl/pkg/trace"
)

// newArmTestCommand binds a fresh flag set to the arm_test flag variables
// so each test starts with no flag marked as changed
func newArmTestCommand(t *testing.T, flags map[string]string) *cobra.Command {
	t.Helper()

	saved := struct {
		cfg                  *config.Config
		dryRun, fast, tui    bool
		record, led          string
		tickMs, delaySeconds int
	}{cfg, armDryRun, armFast, armTUI, armRecord, armLED, armTickMs, armDelay}
	t.Cleanup(func() {
		cfg = saved.cfg
		armDryRun, armFast, armTUI = saved.dryRun, saved.fast, saved.tui
		armRecord, armLED = saved.record, saved.led
		armTickMs, armDelay = saved.tickMs, saved.delaySeconds
	})

	cfg = config.Default()
	c := &cobra.Command{Use: "arm_test"}
	c.Flags().BoolVar(&armDryRun, "dry-run", false, "")
	c.Flags().BoolVar(&armFast, "fast", false, "")
	c.Flags().BoolVar(&armTUI, "tui", false, "")
	c.Flags().StringVar(&armRecord, "record", "", "")
	c.Flags().IntVar(&armTickMs, "tick", 0, "")
	c.Flags().IntVar(&armDelay, "delay", -1, "")
	c.Flags().StringVar(&armLED, "led", "", "")

	for name, value := range flags {
		if err := c.Flags().Set(name, value); err != nil {
			t.Fatalf("set --%s=%s: %v", name, value, err)
		}
	}
	return c
}

func TestArmTestRejectsBadTick(t *testing.T) {
	for _, tick := range []string{"0", "-5", "1001"} {
		t.Run(tick, func(t *testing.T) {
			c := newArmTestCommand(t, map[string]string{"dry-run": "true", "tick": tick})
			if err := runArmTest(c, nil); err == nil {
				t.Fatalf("expected error for --tick %s", tick)
			}
		})
	}
}

func TestArmTestRejectsNegativeDelay(t *testing.T) {
	c := newArmTestCommand(t, map[string]string{"dry-run": "true", "delay": "-2"})
	if err := runArmTest(c, nil); err == nil {
		t.Fatal("expected error for --delay -2")
	}
}

func TestArmTestFastRequiresDryRun(t *testing.T) {
	c := newArmTestCommand(t, map[string]string{"fast": "true"})
	if err := runArmTest(c, nil); err == nil {
		t.Fatal("expected error for --fast without --dry-run")
	}
}

func TestArmTestDryRunRecordsTrace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.cbor")
	c := newArmTestCommand(t, map[string]string{
		"dry-run": "true",
		"fast":    "true",
		"tick":    "1",
		"record":  path,
	})
	if err := runArmTest(c, nil); err != nil {
		t.Fatalf("runArmTest: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open trace: %v", err)
	}
	defer f.Close()

	records, err := trace.ReadAll(f)
	if err != nil {
		t.Fatalf("read trace: %v", err)
	}

	stages := sequence.DefaultStages()
	frames := sequence.TotalTicks(stages)
	// One phase record per stage plus PhaseDone
	if want := frames + len(stages) + 1; len(records) != want {
		t.Fatalf("trace has %d records, want %d", len(records), want)
	}
	if last := records[len(records)-1]; last.Kind != trace.KindPhase || sequence.Phase(last.Phase) != sequence.PhaseDone {
		t.Errorf("last record = %+v, want PhaseDone marker", last)
	}
}

type failingWriter struct{}

var errDiskFull = errors.New("no space left on device")

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errDiskFull
}

type nopCloser struct{ closed bool }

func (n *nopCloser) Close() error {
	n.closed = true
	return nil
}

func TestFinishTraceReportsFlushError(t *testing.T) {
	w := bufio.NewWriter(failingWriter{})
	recorder := trace.NewRecorder(w)
	recorder.PhaseStarted(sequence.PhaseEvent{Phase: sequence.PhaseNeutral})

	// The record sits in the buffer, so recording itself saw no error
	if err := recorder.Err(); err != nil {
		t.Fatalf("recorder error before flush: %v", err)
	}

	err := finishTrace(recorder, w, &nopCloser{}, "run.cbor")
	if !errors.Is(err, errDiskFull) {
		t.Fatalf("finishTrace error = %v, want %v", err, errDiskFull)
	}
}

func TestFinishTraceClosesFile(t *testing.T) {
	w := bufio.NewWriter(&nopWriter{})
	recorder := trace.NewRecorder(w)
	recorder.PhaseStarted(sequence.PhaseEvent{Phase: sequence.PhaseNeutral})

	f := &nopCloser{}
	if err := finishTrace(recorder, w, f, "run.cbor"); err != nil {
		t.Fatalf("finishTrace: %v", err)
	}
	if !f.closed {
		t.Error("trace file not closed")
	}
}

type nopWriter struct{ n int }

func (w *nopWriter) Write(p []byte) (int, error) {
	w.n += len(p)
	return len(p), nil
}
