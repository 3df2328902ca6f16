// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sequence

import (
	"errors"
	"fmt"
)

var (
	// ErrTransportFailed matches any *TransportError
	ErrTransportFailed = errors.New("transport failed")

	// ErrAlreadyRun is returned when Run is called more than once
	ErrAlreadyRun = errors.New("sequencer already run")
)

// TransportError reports the write that aborted a run
type TransportError struct {
	Phase Phase
	Tick  int
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failed during %s at tick %d: %v", e.Phase, e.Tick, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransportFailed
}
