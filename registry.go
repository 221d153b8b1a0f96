// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chainrpc

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
)

// registry tracks the live duplex connection and every subscription
// multiplexed over it. All fields, including the routing fields of each
// Subscription, change only under mu, and mu is never held while sending,
// delivering or waiting.
type registry struct {
	mu sync.Mutex

	stream Stream
	// ready is closed once stream is set or the registry terminates.
	ready chan struct{}
	// closedErr is terminal.
	closedErr error

	serial uint64
	// all holds every subscription not yet closed, by serial.
	all map[uint64]*Subscription
	// byID maps an outstanding subscribe call id to its subscription.
	byID map[uint64]*Subscription
	// byHandle maps remote handles on the current connection to active
	// subscriptions.
	byHandle map[uint64]*Subscription
}

func newRegistry() *registry {
	return &registry{
		ready:    make(chan struct{}),
		all:      make(map[uint64]*Subscription),
		byID:     make(map[uint64]*Subscription),
		byHandle: make(map[uint64]*Subscription),
	}
}

// reissue is a subscribe call to send on a fresh connection.
type reissue struct {
	sub *Subscription
	id  uint64
}

// online installs stream as the live connection and assigns a fresh call id
// to every open subscription, in creation order. It reports false if the
// registry already terminated.
func (r *registry) online(stream Stream, allocate func() uint64) ([]reissue, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closedErr != nil {
		return nil, false
	}

	r.stream = stream
	close(r.ready)

	serials := make([]uint64, 0, len(r.all))
	for serial := range r.all {
		serials = append(serials, serial)
	}
	sort.Slice(serials, func(i, j int) bool { return serials[i] < serials[j] })

	out := make([]reissue, 0, len(serials))
	for _, serial := range serials {
		sub := r.all[serial]
		id := allocate()
		sub.localID = id
		r.byID[id] = sub
		out = append(out, reissue{sub: sub, id: id})
	}
	return out, true
}

// offline forgets stream. Every open subscription moves to
// StateResubscribing and every handle and outstanding subscribe id from that
// connection is voided, so late frames bearing them are not routed.
func (r *registry) offline(stream Stream) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stream != stream || r.closedErr != nil {
		return 0
	}

	r.stream = nil
	r.ready = make(chan struct{})
	clear(r.byID)
	clear(r.byHandle)
	for _, sub := range r.all {
		sub.state = StateResubscribing
		sub.hasRemote = false
	}
	return len(r.all)
}

// awaitStream returns the live connection, waiting for one if the router is
// between connections.
func (r *registry) awaitStream(ctx context.Context) (Stream, error) {
	for {
		r.mu.Lock()
		stream, ready, err := r.stream, r.ready, r.closedErr
		r.mu.Unlock()
		switch {
		case err != nil:
			return nil, err
		case stream != nil:
			return stream, nil
		}

		select {
		case <-ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// current returns the live connection without waiting.
func (r *registry) current() (Stream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closedErr != nil {
		return nil, r.closedErr
	}
	if r.stream == nil {
		return nil, ErrClosed.Wrap("duplex connection is down")
	}
	return r.stream, nil
}

func (r *registry) err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closedErr
}

// add registers sub as pending. When a connection is live it also assigns the
// subscribe call id and returns the stream to send it on; otherwise the call
// goes out with the next online.
func (r *registry) add(sub *Subscription, allocate func() uint64) (uint64, Stream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closedErr != nil {
		return 0, nil, r.closedErr
	}

	r.serial++
	sub.serial = r.serial
	sub.state = StatePending
	r.all[sub.serial] = sub
	if r.stream == nil {
		return 0, nil, nil
	}

	id := allocate()
	sub.localID = id
	r.byID[id] = sub
	return id, r.stream, nil
}

// ack is the outcome of routing a subscribe acknowledgement.
type ack struct {
	sub    *Subscription
	handle uint64
	// orphan is set when the subscription closed before its acknowledgement
	// arrived; the node-side handle should be dropped.
	orphan bool
	err    error
}

// acknowledge promotes the subscription waiting on call id to StateActive.
// It reports false when id is not an outstanding subscribe call.
func (r *registry) acknowledge(id uint64, result json.RawMessage, callErr error) (ack, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.byID[id]
	if !ok {
		return ack{}, false
	}
	delete(r.byID, id)
	a := ack{sub: sub}

	if callErr != nil {
		a.err = callErr
		return a, true
	}
	handle, err := decodeHandle(result)
	if err != nil {
		a.err = err
		return a, true
	}
	a.handle = handle

	if sub.state == StateClosed {
		a.orphan = true
		return a, true
	}
	if other, taken := r.byHandle[handle]; taken && other != sub {
		a.err = ErrProtocol.Wrapf("handle %d already routes to another subscription", handle)
		return a, true
	}

	sub.remote = handle
	sub.hasRemote = true
	sub.state = StateActive
	r.byHandle[handle] = sub
	return a, true
}

// lookup returns the active subscription for handle on the live connection.
func (r *registry) lookup(handle uint64) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byHandle[handle]
}

// remove moves sub to StateClosed. It returns the remote handle and whether
// that handle is live on the current connection, and reports false if sub was
// already closed. An outstanding subscribe id stays registered so its
// acknowledgement can be recognized as an orphan.
func (r *registry) remove(sub *Subscription) (uint64, bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub.state == StateClosed {
		return 0, false, false
	}

	active := sub.state == StateActive
	handle := sub.remote
	sub.state = StateClosed
	delete(r.all, sub.serial)
	if active && r.byHandle[handle] == sub {
		delete(r.byHandle, handle)
	}
	return handle, active, true
}

// inspect reads sub's routing state.
func (r *registry) inspect(sub *Subscription) (SubscriptionState, uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sub.state, sub.remote, sub.hasRemote
}

// terminate closes the registry for good. It returns the subscriptions that
// were still open and the live stream, for the caller to close outside the
// lock, and reports false if the registry had already terminated.
func (r *registry) terminate(err error) ([]*Subscription, Stream, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closedErr != nil {
		return nil, nil, false
	}

	r.closedErr = err
	stream := r.stream
	if stream == nil {
		// ready is already closed while a stream is live.
		close(r.ready)
	}
	r.stream = nil

	subs := make([]*Subscription, 0, len(r.all))
	for _, sub := range r.all {
		sub.state = StateClosed
		subs = append(subs, sub)
	}
	clear(r.all)
	clear(r.byID)
	clear(r.byHandle)
	return subs, stream, true
}
