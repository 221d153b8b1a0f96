// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chainrpc

import (
	"math/rand/v2"
	"time"

	"google.golang.org/grpc/backoff"
)

// DefaultReconnectPolicy redials after 1s, growing by 1.6x per consecutive
// failure up to 2 minutes, and gives up after 10 consecutive failures.
var DefaultReconnectPolicy = ReconnectPolicy{
	Config:      backoff.DefaultConfig,
	MaxAttempts: 10,
}

// ReconnectPolicy controls how the router redials a dropped duplex
// connection. The delay shape follows gRPC's connection backoff.
type ReconnectPolicy struct {
	backoff.Config
	// MaxAttempts is the number of consecutive failed dials after which the
	// client gives up and closes. Zero or less retries forever.
	MaxAttempts int
}

// Delay returns how long to wait before the next dial, given the number of
// consecutive failed dials so far.
func (p ReconnectPolicy) Delay(failures int) time.Duration {
	delay := float64(p.BaseDelay)
	maxDelay := float64(p.MaxDelay)
	for ; failures > 0 && delay < maxDelay; failures-- {
		delay *= p.Multiplier
	}
	if delay > maxDelay {
		delay = maxDelay
	}
	delay *= 1 + p.Jitter*(rand.Float64()*2-1)
	if delay < 0 {
		return 0
	}
	return time.Duration(delay)
}

// Exhausted reports whether failures consecutive failed dials end the client.
func (p ReconnectPolicy) Exhausted(failures int) bool {
	return p.MaxAttempts > 0 && failures >= p.MaxAttempts
}
