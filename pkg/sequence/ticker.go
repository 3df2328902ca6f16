// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sequence

import (
	"context"
	"time"
)

// Ticker paces frame sends. Wait blocks until the next tick or until ctx
// is done.
type Ticker interface {
	Wait(ctx context.Context) error
	Stop()
}

type intervalTicker struct {
	t *time.Ticker
}

// NewIntervalTicker returns a wall-clock ticker firing every d
func NewIntervalTicker(d time.Duration) Ticker {
	return &intervalTicker{t: time.NewTicker(d)}
}

func (it *intervalTicker) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-it.t.C:
		return nil
	}
}

func (it *intervalTicker) Stop() {
	it.t.Stop()
}

// ImmediateTicker never blocks. It counts waits and is used for dry runs
// and tests.
type ImmediateTicker struct {
	Waits int
}

func (it *ImmediateTicker) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	it.Waits++
	return nil
}

func (it *ImmediateTicker) Stop() {}
