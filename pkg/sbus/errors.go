// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sbus

import (
	"errors"
	"fmt"
)

// Validation error classes, matched with errors.Is
var (
	ErrChannelIndex = errors.New("channel index out of range")
	ErrChannelRange = errors.New("channel value out of range")
)

// ChannelError describes a rejected channel write
type ChannelError struct {
	Index int
	Value int
	Err   error
}

func (e *ChannelError) Error() string {
	if e.Err == ErrChannelIndex {
		return fmt.Sprintf("channel %d: %v (valid 0-%d)", e.Index, e.Err, NumChannels-1)
	}
	return fmt.Sprintf("channel %d (%s): value %d: %v (valid %d-%d)",
		e.Index, ChannelName(e.Index), e.Value, e.Err, ChannelMin, ChannelMax)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// ValidateChannel reports whether a write of raw to index would be stored
// unchanged. Set never calls it; SetStrict does.
func ValidateChannel(index, raw int) error {
	if index < 0 || index >= NumChannels {
		return &ChannelError{Index: index, Value: raw, Err: ErrChannelIndex}
	}
	if raw < ChannelMin || raw > ChannelMax {
		return &ChannelError{Index: index, Value: raw, Err: ErrChannelRange}
	}
	return nil
}
