// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chainrpc

import (
	"encoding/json"
	"sync"
	"sync/atomic"
)

// reply resolves one pending call.
type reply struct {
	result json.RawMessage
	err    error
}

// pendingCall is owned by the correlator until it is resolved or forgotten.
type pendingCall struct {
	id     uint64
	method string
	// viaStream marks calls whose reply can only arrive on the duplex
	// connection; those fail when the connection drops.
	viaStream bool
	// resp has capacity 1 and receives at most one value.
	resp chan reply
}

// correlator matches replies to the calls waiting for them.
type correlator struct {
	nextID atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]*pendingCall
}

func newCorrelator() *correlator {
	return &correlator{pending: make(map[uint64]*pendingCall)}
}

// allocate returns a fresh id. Ids start at 1 and are never reused by a
// client instance.
func (c *correlator) allocate() uint64 {
	return c.nextID.Add(1)
}

func (c *correlator) register(id uint64, method string, viaStream bool) *pendingCall {
	p := &pendingCall{
		id:        id,
		method:    method,
		viaStream: viaStream,
		resp:      make(chan reply, 1),
	}
	c.mu.Lock()
	c.pending[id] = p
	c.mu.Unlock()
	pendingCalls.Inc()
	return p
}

// resolve delivers r to the call waiting on id. It reports false when no call
// is waiting, which is the case for late replies to timed out calls.
func (c *correlator) resolve(id uint64, r reply) bool {
	c.mu.Lock()
	p, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	pendingCalls.Dec()
	p.resp <- r
	return true
}

// forget drops the pending entry for id if it is still there.
func (c *correlator) forget(id uint64) {
	c.mu.Lock()
	_, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()
	if ok {
		pendingCalls.Dec()
	}
}

// failStream fails every call waiting on the duplex connection.
func (c *correlator) failStream(err error) int {
	return c.fail(err, func(p *pendingCall) bool { return p.viaStream })
}

// failAll fails every pending call.
func (c *correlator) failAll(err error) int {
	return c.fail(err, func(*pendingCall) bool { return true })
}

func (c *correlator) fail(err error, match func(*pendingCall) bool) int {
	var failed []*pendingCall
	c.mu.Lock()
	for id, p := range c.pending {
		if match(p) {
			failed = append(failed, p)
			delete(c.pending, id)
		}
	}
	c.mu.Unlock()

	for _, p := range failed {
		pendingCalls.Dec()
		p.resp <- reply{err: err}
	}
	return len(failed)
}
