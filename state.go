// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chainrpc

// ConnState is the state of a client's duplex connection.
type ConnState int

const (
	// ConnInitial means no duplex connection has been needed yet.
	ConnInitial ConnState = iota
	ConnConnected
	ConnDisconnected
	// ConnWaitingRetry means the router is backing off before redialing.
	ConnWaitingRetry
	// ConnFailed is terminal: reconnecting gave up or the client was closed.
	ConnFailed
)

func (s ConnState) String() string {
	switch s {
	case ConnInitial:
		return "initial"
	case ConnConnected:
		return "connected"
	case ConnDisconnected:
		return "disconnected"
	case ConnWaitingRetry:
		return "waiting_retry"
	case ConnFailed:
		return "failed"
	}
	return "unknown"
}

// SubscriptionState is the lifecycle state of one subscription.
type SubscriptionState int

const (
	// StatePending: subscribe call issued, remote handle not known yet.
	StatePending SubscriptionState = iota
	// StateActive: remote handle known, notifications flow.
	StateActive
	// StateResubscribing: the connection dropped; the old handle is void and
	// a fresh subscribe call is or will be in flight.
	StateResubscribing
	// StateClosed is terminal.
	StateClosed
)

func (s SubscriptionState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateActive:
		return "active"
	case StateResubscribing:
		return "resubscribing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}
