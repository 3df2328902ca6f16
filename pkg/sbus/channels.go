// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sbus

// Channels is an ordered set of channel values, index 0 first
type Channels [NumChannels]uint16

// ChannelBank holds the 16 channel values that go into the next frame.
// Every stored value is within [ChannelMin, ChannelMax].
//
// A bank is owned by a single writer and is not safe for concurrent use.
type ChannelBank struct {
	values Channels
}

// NewChannelBank returns a bank with every channel centered
func NewChannelBank() *ChannelBank {
	b := &ChannelBank{}
	b.Reset()
	return b
}

// Reset centers every channel
func (b *ChannelBank) Reset() {
	for i := range b.values {
		b.values[i] = ChannelCenter
	}
}

// Set stores raw clamped to the channel range. Out of range indices are
// ignored without error.
func (b *ChannelBank) Set(index, raw int) {
	if index < 0 || index >= NumChannels {
		return
	}
	b.values[index] = clamp(raw)
}

// SetStrict stores raw only if ValidateChannel accepts it
func (b *ChannelBank) SetStrict(index, raw int) error {
	if err := ValidateChannel(index, raw); err != nil {
		return err
	}
	b.values[index] = uint16(raw)
	return nil
}

// Get returns the value of a channel. index must be in [0, NumChannels).
func (b *ChannelBank) Get(index int) uint16 {
	return b.values[index]
}

// Snapshot returns a copy of all channel values
func (b *ChannelBank) Snapshot() Channels {
	return b.values
}

func clamp(raw int) uint16 {
	if raw < ChannelMin {
		return ChannelMin
	}
	if raw > ChannelMax {
		return ChannelMax
	}
	return uint16(raw)
}
