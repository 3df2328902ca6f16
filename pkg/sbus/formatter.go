// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sbus

import (
	"fmt"
	"strings"
)

// FormatFrame returns a hex dump of a frame, start byte first
func FormatFrame(f Frame) string {
	var s strings.Builder
	for i, b := range f {
		if i > 0 {
			s.WriteByte(' ')
		}
		fmt.Fprintf(&s, "%02X", b)
	}
	return s.String()
}

// FormatChannels returns the named control channels followed by the rest
func FormatChannels(ch Channels) string {
	var s strings.Builder
	for i, v := range ch {
		if i > 0 {
			s.WriteByte(' ')
		}
		fmt.Fprintf(&s, "%s=%d", ChannelName(i), v)
	}
	return s.String()
}

// FormatControls returns only the stick and aux channels the maneuver uses
func FormatControls(ch Channels) string {
	return fmt.Sprintf("R=%d P=%d T=%d Y=%d A1=%d A2=%d",
		ch[ChannelRoll], ch[ChannelPitch], ch[ChannelThrottle],
		ch[ChannelYaw], ch[ChannelAux1], ch[ChannelAux2])
}
