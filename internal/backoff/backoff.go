// Copyright (c) 2017-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package backoff provides jittered retry delays that can be interrupted by a context
package backoff

import (
	"context"
	"math/rand/v2"
	"time"
)

// Policy is a backoff policy, the Millis are the base delays for successive tries
type Policy struct {
	Millis []int
}

var (
	// FiveSec grows from 500ms to 5 seconds
	FiveSec = Policy{
		Millis: []int{500, 750, 1000, 1500, 2000, 2500, 3000, 3500, 4000, 4500, 5000},
	}

	// None retries immediately
	None = Policy{}
)

// Duration is the jittered delay for try n, tries beyond the policy length use the last value
func (p Policy) Duration(n int) time.Duration {
	if len(p.Millis) == 0 {
		return 0
	}

	n = min(max(n, 0), len(p.Millis)-1)

	return time.Duration(jitter(p.Millis[n])) * time.Millisecond
}

// Sleep sleeps for d or until ctx is done
func (p Policy) Sleep(ctx context.Context, d time.Duration) error {
	err := ctx.Err()
	if err != nil {
		return err
	}

	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySleep sleeps for the delay appropriate to try n
func (p Policy) TrySleep(ctx context.Context, n int) error {
	return p.Sleep(ctx, p.Duration(n))
}

// jitter returns a value between half and one and a half times millis
func jitter(millis int) int {
	if millis <= 0 {
		return 0
	}

	low := millis / 2
	return low + rand.IntN(millis+1)
}
