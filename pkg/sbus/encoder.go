// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sbus

// Frame is one complete SBUS transmission unit
type Frame [FrameSize]byte

// Bytes returns the frame as a slice ready for a serial write
func (f Frame) Bytes() []byte {
	b := make([]byte, FrameSize)
	copy(b, f[:])
	return b
}

// Payload returns the 22 packed channel bytes
func (f Frame) Payload() []byte {
	p := make([]byte, PayloadSize)
	copy(p, f[1:1+PayloadSize])
	return p
}

// Encode packs a channel snapshot into a frame.
//
// Each value is masked to 11 bits and the fields are concatenated into one
// little-endian bit stream, channel 0 at bit 0. Encoding has no error path.
func Encode(ch Channels) Frame {
	var f Frame
	f[0] = StartByte

	var acc uint32
	bits := 0
	pos := 1
	for _, v := range ch {
		acc |= uint32(v&ChannelMask) << bits
		bits += ChannelBits
		for bits >= 8 {
			f[pos] = byte(acc)
			pos++
			acc >>= 8
			bits -= 8
		}
	}

	f[FrameSize-2] = FlagsByte
	f[FrameSize-1] = EndByte
	return f
}

// EncodeBank encodes the current contents of a channel bank
func EncodeBank(b *ChannelBank) Frame {
	return Encode(b.Snapshot())
}
