// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sequence

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/Thermoquad/sbusctl/pkg/sbus"
)

// Sequencer runs a stage table once, sending one frame per tick.
type Sequencer struct {
	transport io.Writer
	bank      *sbus.ChannelBank
	ticker    Ticker
	indicator Indicator
	stages    []Stage
	observers []Observer
	used      atomic.Bool
}

// Option configures a Sequencer
type Option func(*Sequencer)

// WithTicker replaces the default 14 ms wall-clock ticker
func WithTicker(t Ticker) Option {
	return func(s *Sequencer) { s.ticker = t }
}

// WithIndicator sets the status indicator
func WithIndicator(ind Indicator) Option {
	return func(s *Sequencer) { s.indicator = ind }
}

// WithStages replaces DefaultStages
func WithStages(stages []Stage) Option {
	return func(s *Sequencer) { s.stages = stages }
}

// WithBank runs against an existing channel bank
func WithBank(b *sbus.ChannelBank) Option {
	return func(s *Sequencer) { s.bank = b }
}

// WithObserver adds a progress observer. May be given more than once.
func WithObserver(o Observer) Option {
	return func(s *Sequencer) { s.observers = append(s.observers, o) }
}

// New creates a sequencer writing frames to transport. The caller keeps
// ownership of transport and closes it after Run returns.
func New(transport io.Writer, opts ...Option) (*Sequencer, error) {
	s := &Sequencer{
		transport: transport,
		indicator: NopIndicator{},
		stages:    DefaultStages(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := ValidateStages(s.stages); err != nil {
		return nil, err
	}
	if s.bank == nil {
		s.bank = sbus.NewChannelBank()
	}
	if s.ticker == nil {
		s.ticker = NewIntervalTicker(sbus.FrameInterval)
	}
	return s, nil
}

// Stages returns the stage table the sequencer runs
func (s *Sequencer) Stages() []Stage {
	return s.stages
}

// Bank returns the channel bank the sequencer mutates
func (s *Sequencer) Bank() *sbus.ChannelBank {
	return s.bank
}

// Report summarizes a run, complete or aborted
type Report struct {
	Frames     int
	Phases     []Phase
	PhaseTicks map[Phase]int
	Final      sbus.Channels
	Started    time.Time
	Elapsed    time.Duration
	Completed  bool
}

// Run executes every stage in order and ends in PhaseDone. It can be
// called once. A transport write error aborts immediately with a
// *TransportError; ctx cancellation aborts with ctx.Err(). The indicator
// is switched off and the ticker stopped on every exit path.
func (s *Sequencer) Run(ctx context.Context) (*Report, error) {
	if !s.used.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRun
	}

	report := &Report{
		PhaseTicks: make(map[Phase]int, len(s.stages)),
		Started:    time.Now(),
	}
	defer func() {
		s.indicator.SetState(false)
		s.ticker.Stop()
		report.Final = s.bank.Snapshot()
		report.Elapsed = time.Since(report.Started)
	}()

	led := false
	tick := 0
	for i, st := range s.stages {
		n := st.Ticks()
		report.Phases = append(report.Phases, st.Phase)
		s.phaseStarted(PhaseEvent{Phase: st.Phase, Stage: i, Ticks: n, Tick: tick, Time: time.Now()})

		for _, a := range st.Set {
			s.bank.Set(a.Channel, a.Value)
		}

		rampTicks := 0
		if st.Ramp != nil {
			rampTicks = st.Ramp.Ticks()
		}

		for pt := 0; pt < n; pt++ {
			if pt < rampTicks && pt%st.Ramp.TicksPerStep == 0 {
				s.bank.Set(st.Ramp.Channel, st.Ramp.ValueAt(pt))
			}

			snapshot := s.bank.Snapshot()
			frame := sbus.Encode(snapshot)
			if err := s.send(frame); err != nil {
				return report, &TransportError{Phase: st.Phase, Tick: tick, Err: err}
			}
			report.Frames++
			report.PhaseTicks[st.Phase]++
			s.frameSent(FrameEvent{Phase: st.Phase, Tick: tick, PhaseTick: pt, Channels: snapshot, Frame: frame})
			tick++

			if st.BlinkEvery > 0 && pt%st.BlinkEvery == 0 {
				led = !led
				s.indicator.SetState(led)
			}

			if err := s.ticker.Wait(ctx); err != nil {
				return report, err
			}
		}
	}

	report.Phases = append(report.Phases, PhaseDone)
	report.Completed = true
	s.phaseStarted(PhaseEvent{Phase: PhaseDone, Stage: len(s.stages), Tick: tick, Time: time.Now()})
	return report, nil
}

func (s *Sequencer) send(f sbus.Frame) error {
	n, err := s.transport.Write(f[:])
	if err != nil {
		return err
	}
	if n != sbus.FrameSize {
		return io.ErrShortWrite
	}
	return nil
}

func (s *Sequencer) phaseStarted(ev PhaseEvent) {
	for _, o := range s.observers {
		o.PhaseStarted(ev)
	}
}

func (s *Sequencer) frameSent(ev FrameEvent) {
	for _, o := range s.observers {
		o.FrameSent(ev)
	}
}
