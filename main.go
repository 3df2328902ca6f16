// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// sbusctl - SBUS transmitter for flight controller bench tests
//
// Streams SBUS RC frames over a serial port and runs a scripted arm,
// throttle ramp and disarm maneuver.

package main

import (
	"os"

	"github.com/Thermoquad/sbusctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
