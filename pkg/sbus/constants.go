// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package sbus encodes RC channel values into SBUS wire frames.
//
// SBUS carries 16 proportional channels, 11 bits each, packed little-endian
// into a fixed 25-byte frame that is sent over an inverted UART at
// 100000 baud, 8 data bits, even parity and two stop bits. This package only
// transmits: it owns the channel bank and the frame encoder.
package sbus

import "time"

// Frame framing bytes
const (
	StartByte = 0x0F
	FlagsByte = 0x00 // no failsafe, frame-lost or digital channel bits
	EndByte   = 0x00
)

// Frame layout
const (
	NumChannels = 16
	ChannelBits = 11
	ChannelMask = 0x7FF
	PayloadSize = NumChannels * ChannelBits / 8 // 22
	FrameSize   = 1 + PayloadSize + 2           // start + payload + flags + end
)

// Proportional channel range
const (
	ChannelMin    = 172
	ChannelCenter = 992
	ChannelMax    = 1811
)

// Well-known channel indices (AETR layout as mapped by INAV)
const (
	ChannelRoll     = 0
	ChannelPitch    = 1
	ChannelThrottle = 2
	ChannelYaw      = 3
	ChannelAux1     = 4
	ChannelAux2     = 5
)

// Serial line parameters. These are fixed by the protocol.
const (
	BaudRate = 100000
	DataBits = 8
)

// FrameInterval is the nominal spacing between frames.
const FrameInterval = 14 * time.Millisecond

var channelNames = [NumChannels]string{
	"roll", "pitch", "throttle", "yaw", "aux1", "aux2",
	"ch7", "ch8", "ch9", "ch10", "ch11", "ch12", "ch13", "ch14", "ch15", "ch16",
}

// ChannelName returns a short name for a channel index
func ChannelName(index int) string {
	if index < 0 || index >= NumChannels {
		return "UNKNOWN"
	}
	return channelNames[index]
}
