// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sequence

import (
	"errors"
	"fmt"

	"github.com/Thermoquad/sbusctl/pkg/sbus"
)

// Assignment sets one channel when a stage starts
type Assignment struct {
	Channel int
	Value   int
}

// Ramp steps a channel over the half-open range [From, To) by Step,
// holding each value for TicksPerStep ticks. Step is negative when
// ramping down.
type Ramp struct {
	Channel      int
	From         int
	To           int
	Step         int
	TicksPerStep int
}

// Steps returns the number of distinct values the ramp visits
func (r Ramp) Steps() int {
	switch {
	case r.Step > 0 && r.To > r.From:
		return (r.To - r.From + r.Step - 1) / r.Step
	case r.Step < 0 && r.From > r.To:
		return (r.From - r.To - r.Step - 1) / -r.Step
	}
	return 0
}

// Ticks returns the number of frames the ramp spans
func (r Ramp) Ticks() int {
	return r.Steps() * r.TicksPerStep
}

// ValueAt returns the ramp value in effect at a tick offset
func (r Ramp) ValueAt(tick int) int {
	return r.From + r.Step*(tick/r.TicksPerStep)
}

// Last returns the final value the ramp sends
func (r Ramp) Last() int {
	return r.From + r.Step*(r.Steps()-1)
}

// Stage is one row of the maneuver table. Set is applied once on entry,
// then the ramp (if any) runs, then the stage holds for Hold ticks.
// BlinkEvery > 0 toggles the status indicator on every BlinkEvery-th tick.
type Stage struct {
	Phase      Phase
	Set        []Assignment
	Ramp       *Ramp
	Hold       int
	BlinkEvery int
}

// Ticks returns the number of frames sent during the stage
func (s Stage) Ticks() int {
	n := s.Hold
	if s.Ramp != nil {
		n += s.Ramp.Ticks()
	}
	return n
}

// Maneuver parameters
const (
	HoldThrottle     = 1400
	RampStep         = 5
	RampTicksPerStep = 5
)

// DefaultStages returns the arm, spin and disarm maneuver
func DefaultStages() []Stage {
	return []Stage{
		{
			Phase: PhaseNeutral,
			Set: []Assignment{
				{sbus.ChannelRoll, sbus.ChannelCenter},
				{sbus.ChannelPitch, sbus.ChannelCenter},
				{sbus.ChannelThrottle, sbus.ChannelMin},
				{sbus.ChannelYaw, sbus.ChannelCenter},
				{sbus.ChannelAux1, sbus.ChannelMin},
				{sbus.ChannelAux2, sbus.ChannelMin},
			},
			Hold:       140,
			BlinkEvery: 10,
		},
		{
			Phase: PhaseArming,
			Set: []Assignment{
				{sbus.ChannelThrottle, sbus.ChannelMin},
				{sbus.ChannelYaw, sbus.ChannelMax},
			},
			Hold: 150,
		},
		{
			Phase: PhaseArmedHold,
			Set:   []Assignment{{sbus.ChannelYaw, sbus.ChannelCenter}},
			Hold:  70,
		},
		{
			Phase: PhaseThrottleRampUp,
			Ramp: &Ramp{
				Channel:      sbus.ChannelThrottle,
				From:         sbus.ChannelMin,
				To:           HoldThrottle,
				Step:         RampStep,
				TicksPerStep: RampTicksPerStep,
			},
		},
		{
			Phase:      PhaseThrottleHold,
			Set:        []Assignment{{sbus.ChannelThrottle, HoldThrottle}},
			Hold:       140,
			BlinkEvery: 20,
		},
		{
			Phase: PhaseThrottleRampDown,
			Ramp: &Ramp{
				Channel:      sbus.ChannelThrottle,
				From:         HoldThrottle,
				To:           sbus.ChannelMin,
				Step:         -RampStep,
				TicksPerStep: RampTicksPerStep,
			},
		},
		{
			Phase: PhaseThrottleFloorHold,
			Set:   []Assignment{{sbus.ChannelThrottle, sbus.ChannelMin}},
			Hold:  70,
		},
		{
			Phase: PhaseDisarming,
			Set: []Assignment{
				{sbus.ChannelThrottle, sbus.ChannelMin},
				{sbus.ChannelYaw, sbus.ChannelMin},
			},
			Hold: 150,
		},
		{
			Phase: PhaseDisarmedHold,
			Set:   []Assignment{{sbus.ChannelYaw, sbus.ChannelCenter}},
			Hold:  70,
		},
	}
}

// TotalTicks returns the number of frames a stage table sends
func TotalTicks(stages []Stage) int {
	total := 0
	for _, s := range stages {
		total += s.Ticks()
	}
	return total
}

// ErrInvalidStages is returned for a stage table the sequencer cannot run
var ErrInvalidStages = errors.New("invalid stage table")

// ValidateStages checks that phases are strictly increasing, never Done,
// and that every channel write is a valid, unclamped channel value.
func ValidateStages(stages []Stage) error {
	prev := Phase(-1)
	for i, s := range stages {
		if s.Phase <= prev || s.Phase >= PhaseDone {
			return fmt.Errorf("%w: stage %d: phase %s out of order", ErrInvalidStages, i, s.Phase)
		}
		prev = s.Phase

		for _, a := range s.Set {
			if err := sbus.ValidateChannel(a.Channel, a.Value); err != nil {
				return fmt.Errorf("%w: stage %d (%s): %w", ErrInvalidStages, i, s.Phase, err)
			}
		}

		if s.Ramp != nil {
			r := s.Ramp
			if r.TicksPerStep <= 0 || r.Steps() == 0 {
				return fmt.Errorf("%w: stage %d (%s): empty ramp", ErrInvalidStages, i, s.Phase)
			}
			for _, v := range []int{r.From, r.Last()} {
				if err := sbus.ValidateChannel(r.Channel, v); err != nil {
					return fmt.Errorf("%w: stage %d (%s) ramp: %w", ErrInvalidStages, i, s.Phase, err)
				}
			}
		}

		if s.Hold < 0 || s.BlinkEvery < 0 {
			return fmt.Errorf("%w: stage %d (%s): negative tick count", ErrInvalidStages, i, s.Phase)
		}
	}
	return nil
}
