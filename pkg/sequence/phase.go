// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package sequence drives a channel bank through the fixed arm, spin and
// disarm maneuver and hands one SBUS frame per tick to a transport.
package sequence

// Phase identifies one step of the maneuver
type Phase int

// Phases in execution order
const (
	PhaseNeutral Phase = iota
	PhaseArming
	PhaseArmedHold
	PhaseThrottleRampUp
	PhaseThrottleHold
	PhaseThrottleRampDown
	PhaseThrottleFloorHold
	PhaseDisarming
	PhaseDisarmedHold
	PhaseDone
)

var phaseNames = []string{
	"NEUTRAL",
	"ARMING",
	"ARMED_HOLD",
	"THROTTLE_RAMP_UP",
	"THROTTLE_HOLD",
	"THROTTLE_RAMP_DOWN",
	"THROTTLE_FLOOR_HOLD",
	"DISARMING",
	"DISARMED_HOLD",
	"DONE",
}

var phaseDescriptions = []string{
	"Sending neutral position with LOW throttle",
	"ARMING: throttle LOW + yaw RIGHT",
	"ARMED - controller should be beeping",
	"Raising throttle to spin motors",
	"MOTORS SPINNING at hold throttle",
	"Lowering throttle",
	"Back to minimum throttle - beeping",
	"DISARMING: throttle LOW + yaw LEFT",
	"DISARMED - yaw centered",
	"Test complete",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "UNKNOWN"
	}
	return phaseNames[p]
}

// Description returns the operator-facing banner for a phase
func (p Phase) Description() string {
	if p < 0 || int(p) >= len(phaseDescriptions) {
		return ""
	}
	return phaseDescriptions[p]
}
