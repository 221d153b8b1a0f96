// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chainrpc

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// OverflowPolicy decides what the router does when a subscription's buffer
// is full.
type OverflowPolicy int

const (
	// DropOldest evicts the oldest unread notification to make room. The
	// router never waits on the consumer.
	DropOldest OverflowPolicy = iota
	// Block makes the router wait for the consumer, up to the subscription's
	// block timeout, then drops the new notification. Every subscription on
	// the connection stalls while it waits.
	Block
)

func (p OverflowPolicy) String() string {
	if p == Block {
		return "block"
	}
	return "drop_oldest"
}

// Notification is one event pushed by the node for a subscription.
type Notification struct {
	// Method is the notification method, e.g. "accountNotification".
	Method string
	// Subscription is the remote handle the event was addressed to. It
	// changes when the subscription is reissued after a reconnect.
	Subscription uint64
	Result       json.RawMessage

	codec Codec
}

// Decode decodes the notification payload into v.
func (n Notification) Decode(v any) error {
	codec := n.codec
	if codec == nil {
		codec = defaultCodec
	}
	if err := codec.Decode(n.Result, v); err != nil {
		return ErrDecode.Wrapf("%s payload: %s", n.Method, err)
	}
	return nil
}

// Subscription is the caller's handle on one logical subscription. The
// client's registry owns its routing state; the handle can only read it or
// ask for removal.
type Subscription struct {
	client    *Client
	topic     Topic
	params    []any
	rawParams json.RawMessage

	// Guarded by the registry lock.
	serial    uint64
	state     SubscriptionState
	localID   uint64
	remote    uint64
	hasRemote bool

	policy        OverflowPolicy
	blockTimeout  time.Duration
	notifications chan Notification
	// acked receives the outcome of the first acknowledgement only.
	acked chan error
	done  chan struct{}
	// sendMu serializes delivery with closing the notifications channel.
	sendMu    sync.Mutex
	closeOnce sync.Once
	err       error
	dropped   atomic.Uint64
}

func newSubscription(c *Client, topic Topic, params []any, raw json.RawMessage, o subscribeOptions) *Subscription {
	return &Subscription{
		client:        c,
		topic:         topic,
		params:        params,
		rawParams:     raw,
		policy:        o.policy,
		blockTimeout:  o.blockTimeout,
		notifications: make(chan Notification, o.buffer),
		acked:         make(chan error, 1),
		done:          make(chan struct{}),
	}
}

// Notifications yields events in the order the node emitted them. The
// channel is closed after Unsubscribe, client shutdown, or the node ending an
// auto-closing topic. A reconnect does not close it.
func (s *Subscription) Notifications() <-chan Notification {
	return s.notifications
}

// Topic returns the subscription's topic.
func (s *Subscription) Topic() Topic {
	return s.topic
}

// Params returns the params the subscription was opened with.
func (s *Subscription) Params() []any {
	return s.params
}

// State returns the current lifecycle state.
func (s *Subscription) State() SubscriptionState {
	state, _, _ := s.client.subs.inspect(s)
	return state
}

// Handle returns the node-assigned handle while the subscription is active.
func (s *Subscription) Handle() (uint64, bool) {
	state, handle, ok := s.client.subs.inspect(s)
	return handle, ok && state == StateActive
}

// Done is closed when the subscription reaches StateClosed.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err returns why the subscription closed: nil while open and after an
// explicit Unsubscribe, otherwise the cause.
func (s *Subscription) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Dropped returns how many notifications the overflow policy discarded.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Unsubscribe closes the subscription. It is idempotent; see
// Client.Unsubscribe.
func (s *Subscription) Unsubscribe(ctx context.Context) {
	s.client.Unsubscribe(ctx, s)
}

func (s *Subscription) signalAck(err error) {
	select {
	case s.acked <- err:
	default:
	}
}

// deliver hands n to the consumer according to the overflow policy. It runs
// on the router goroutine, outside the registry lock.
func (s *Subscription) deliver(n Notification) bool {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	select {
	case <-s.done:
		return false
	default:
	}

	if s.policy == Block {
		timer := time.NewTimer(s.blockTimeout)
		defer timer.Stop()
		select {
		case s.notifications <- n:
			return true
		case <-s.done:
			return false
		case <-timer.C:
			s.drop()
			return false
		}
	}

	for {
		select {
		case s.notifications <- n:
			return true
		default:
		}
		select {
		case <-s.notifications:
			s.drop()
		default:
		}
	}
}

func (s *Subscription) drop() {
	s.dropped.Add(1)
	notificationsDropped.WithLabelValues(s.topic.Notification, s.policy.String()).Inc()
}

// close ends delivery. Notifications already buffered stay readable.
func (s *Subscription) close(err error) {
	s.closeOnce.Do(func() {
		s.err = err
		close(s.done)
		s.sendMu.Lock()
		close(s.notifications)
		s.sendMu.Unlock()
		activeSubscriptions.Dec()
	})
}

// Subscribe opens a subscription with the given subscribe method and params
// and waits for the node to acknowledge it, bounded by ctx or the default
// timeout. If the duplex connection is down, the subscribe call is issued
// as soon as it is back.
func (c *Client) Subscribe(
	ctx context.Context,
	method string,
	params []any,
	opts ...SubscribeOption,
) (*Subscription, error) {
	if c.dialer == nil {
		return nil, ErrTransport.Wrap("no stream endpoint configured")
	}
	topic, ok := LookupTopic(method)
	if !ok {
		return nil, ErrProtocol.Wrapf("%q is not a subscribe method", method)
	}
	raw, err := encodeParams(c.opts.codec, method, params)
	if err != nil {
		return nil, err
	}

	so := c.opts.subscribe
	for _, opt := range opts {
		opt(&so)
	}
	sub := newSubscription(c, topic, params, raw, so)

	ctx, cancel := c.withDefaultTimeout(ctx)
	defer cancel()

	c.startRouter()
	id, stream, err := c.subs.add(sub, c.corr.allocate)
	if err != nil {
		return nil, err
	}
	activeSubscriptions.Inc()

	logger := c.logger.With().
		Str(fieldMethod, method).
		Uint64(fieldCallID, id).
		Logger()
	if stream != nil {
		c.sendSubscribe(ctx, stream, sub, id)
	} else {
		logger.Debug().Msg("duplex connection down, subscribe deferred to next connection")
	}

	select {
	case err := <-sub.acked:
		if err != nil {
			return nil, err
		}
		return sub, nil
	case <-sub.done:
		if err := sub.Err(); err != nil {
			return nil, err
		}
		return nil, ErrClosed.Wrapf("%s closed before acknowledgement", method)
	case <-ctx.Done():
		c.abandon(sub)
		return nil, ctxErr(ctx, method)
	}
}

// Unsubscribe closes sub. Routing stops locally at once; the node is asked to
// drop the remote handle on a best-effort basis, and failure to do so is only
// logged. Calling it again is a no-op.
func (c *Client) Unsubscribe(ctx context.Context, sub *Subscription) {
	if handle, active := c.release(sub); active {
		c.unsubscribeRemote(ctx, sub.topic, handle)
	}
}

// abandon closes a subscription whose caller stopped waiting for it. A
// handle acknowledged meanwhile is dropped in the background.
func (c *Client) abandon(sub *Subscription) {
	if handle, active := c.release(sub); active {
		go c.unsubscribeRemote(c.ctx, sub.topic, handle)
	}
}

// release stops routing to sub and returns the remote handle it held, if any.
func (c *Client) release(sub *Subscription) (uint64, bool) {
	handle, active, removed := c.subs.remove(sub)
	if !removed {
		return 0, false
	}
	sub.close(nil)
	return handle, active
}

func (c *Client) sendSubscribe(ctx context.Context, stream Stream, sub *Subscription, id uint64) {
	frame, err := encodeRequest(id, sub.topic.Subscribe, sub.rawParams)
	if err == nil {
		err = stream.Send(ctx, frame)
	}
	if err != nil {
		// The router notices the broken connection and reissues the call.
		c.logger.Warn().
			Err(err).
			Str(fieldMethod, sub.topic.Subscribe).
			Uint64(fieldCallID, id).
			Msg("failed to send subscribe call")
	}
}

// unsubscribeRemote asks the node to drop handle. It never waits for a
// reconnect: a handle from a dropped connection is already void.
func (c *Client) unsubscribeRemote(ctx context.Context, topic Topic, handle uint64) {
	logger := c.logger.With().
		Str(fieldMethod, topic.Unsubscribe).
		Uint64(fieldSubscription, handle).
		Logger()

	var ok bool
	raw, err := c.call(ctx, topic.Unsubscribe, []any{handle}, callOnStream)
	if err == nil {
		err = c.opts.codec.Decode(raw, &ok)
	}
	switch {
	case err != nil:
		logger.Warn().Err(err).Msg("unsubscribe call failed")
	case !ok:
		logger.Warn().Msg("node refused unsubscribe")
	default:
		logger.Debug().Msg("unsubscribed")
	}
}
