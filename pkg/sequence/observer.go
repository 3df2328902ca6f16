// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sequence

import (
	"time"

	"github.com/Thermoquad/sbusctl/pkg/sbus"
)

// PhaseEvent is emitted when a stage starts, and once more for PhaseDone
type PhaseEvent struct {
	Phase Phase
	Stage int // index in the stage table, len(stages) for PhaseDone
	Ticks int // frames the stage will send
	Tick  int // frames sent before this stage
	Time  time.Time
}

// FrameEvent is emitted after a frame was handed to the transport
type FrameEvent struct {
	Phase     Phase
	Tick      int // 0-based frame number over the whole run
	PhaseTick int // 0-based frame number within the stage
	Channels  sbus.Channels
	Frame     sbus.Frame
}

// Observer receives progress callbacks synchronously from Run
type Observer interface {
	PhaseStarted(PhaseEvent)
	FrameSent(FrameEvent)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnPhase func(PhaseEvent)
	OnFrame func(FrameEvent)
}

func (o ObserverFuncs) PhaseStarted(ev PhaseEvent) {
	if o.OnPhase != nil {
		o.OnPhase(ev)
	}
}

func (o ObserverFuncs) FrameSent(ev FrameEvent) {
	if o.OnFrame != nil {
		o.OnFrame(ev)
	}
}
