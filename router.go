// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chainrpc

import (
	"context"
	"errors"
	"time"
)

// startRouter launches the router the first time a duplex connection is
// needed. Clients that only make one-shot calls never start it.
func (c *Client) startRouter() {
	c.routerOnce.Do(func() {
		c.routerStarted.Store(true)
		go c.route()
	})
}

// route owns the duplex connection: it dials, reissues subscriptions, reads
// until the connection ends, and redials with backoff until the client closes
// or the reconnect policy gives up.
func (c *Client) route() {
	defer close(c.routerDone)

	var (
		failures  int
		connected bool
		lastErr   error
	)
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			if c.opts.reconnect.Exhausted(failures) {
				c.logger.Error().
					Err(lastErr).
					Int(fieldAttempt, attempt).
					Msg("reconnect attempts exhausted, closing client")
				c.terminate(ErrClosed.Wrapf("giving up after %d failed dials: %s", failures, lastErr))
				return
			}
			delay := c.opts.reconnect.Delay(failures)
			c.setState(ConnWaitingRetry)
			c.logger.Info().
				Int(fieldAttempt, attempt).
				Dur(fieldDelay, delay).
				Msg("redialing duplex connection")
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(delay):
			}
		}

		stream, err := c.dialer.OpenStream(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			failures++
			lastErr = err
			if connected {
				reconnects.WithLabelValues("failed").Inc()
			}
			c.logger.Warn().
				Err(err).
				Int(fieldAttempt, attempt).
				Msg("failed to open duplex connection")
			continue
		}
		if connected {
			reconnects.WithLabelValues("ok").Inc()
		}
		failures = 0
		connected = true

		if !c.connect(stream) {
			_ = stream.Close()
			return
		}
		lastErr = c.readLoop(stream)
		c.disconnect(stream, lastErr)
		if c.ctx.Err() != nil {
			return
		}
	}
}

// connect makes stream the live connection and reissues every open
// subscription on it.
func (c *Client) connect(stream Stream) bool {
	reissues, ok := c.subs.online(stream, c.corr.allocate)
	if !ok {
		return false
	}
	c.setState(ConnConnected)

	for _, r := range reissues {
		frame, err := encodeRequest(r.id, r.sub.topic.Subscribe, r.sub.rawParams)
		if err == nil {
			ctx, cancel := context.WithTimeout(c.ctx, c.opts.defaultTimeout)
			err = stream.Send(ctx, frame)
			cancel()
		}
		if err != nil {
			// readLoop sees the same broken connection and we go around again.
			c.logger.Warn().
				Err(err).
				Str(fieldMethod, r.sub.topic.Subscribe).
				Msg("failed to reissue subscription")
			break
		}
	}
	if len(reissues) > 0 {
		c.logger.Info().Int(fieldCount, len(reissues)).Msg("reissued subscriptions")
	}
	return true
}

// readLoop dispatches inbound frames until the stream ends.
func (c *Client) readLoop(stream Stream) error {
	for {
		frame, err := stream.Recv(c.ctx)
		if err != nil {
			return err
		}
		c.dispatch(frame)
	}
}

// disconnect voids everything bound to stream: subscription handles move to
// resubscribing and calls waiting on the connection fail with ErrClosed.
func (c *Client) disconnect(stream Stream, cause error) {
	subs := c.subs.offline(stream)
	_ = stream.Close()
	failed := c.corr.failStream(ErrClosed.Wrapf("duplex connection lost: %s", cause))
	if c.ctx.Err() != nil {
		return
	}
	c.setState(ConnDisconnected)
	c.logger.Warn().
		Err(cause).
		Int(fieldSubscriptions, subs).
		Int(fieldFailedCalls, failed).
		Msg("duplex connection lost")
}

// dispatch classifies one inbound frame and routes it. It never fails: frames
// that cannot be routed are counted and dropped.
func (c *Client) dispatch(frame []byte) {
	msg, err := decodeInbound(frame)
	if err != nil {
		c.anomaly(anomalyMalformed, err)
		return
	}
	switch msg.kind() {
	case kindReply:
		c.routeReply(msg, frame)
	case kindNotification:
		c.routeNotification(msg)
	default:
		c.anomaly(anomalyUnclassified, ErrProtocol.Wrapf("frame is neither reply nor notification"))
	}
}

func (c *Client) routeReply(msg *inbound, frame []byte) {
	id, ok := msg.callID()
	if !ok {
		c.anomaly(anomalyBadID, ErrProtocol.Wrapf("reply id %s", msg.ID))
		return
	}

	result, err := decodeReply(frame)
	if c.corr.resolve(id, reply{result: result, err: err}) {
		return
	}
	if a, ok := c.subs.acknowledge(id, result, err); ok {
		c.settle(a)
		return
	}

	lateReplies.Inc()
	c.logger.Debug().Uint64(fieldCallID, id).Msg("discarding reply with no waiting call")
}

// settle finishes a subscribe acknowledgement outside the registry lock.
func (c *Client) settle(a ack) {
	sub := a.sub
	logger := c.logger.With().
		Str(fieldMethod, sub.topic.Subscribe).
		Uint64(fieldSubscription, a.handle).
		Logger()

	switch {
	case a.err != nil:
		if errors.Is(a.err, ErrProtocol) {
			c.anomaly(anomalyBadHandle, a.err)
		}
		logger.Warn().Err(a.err).Msg("subscription rejected")
		sub.signalAck(a.err)
		c.closeSubscription(sub, a.err)
	case a.orphan:
		logger.Debug().Msg("dropping handle acknowledged after unsubscribe")
		go c.unsubscribeRemote(c.ctx, sub.topic, a.handle)
	default:
		logger.Debug().Msg("subscription active")
		sub.signalAck(nil)
	}
}

func (c *Client) routeNotification(msg *inbound) {
	params, err := decodeNotificationParams(msg.Params)
	if err != nil {
		c.anomaly(anomalyMalformed, err)
		return
	}
	sub := c.subs.lookup(params.Subscription)
	if sub == nil {
		c.anomaly(anomalyUnknownSub, ErrProtocol.Wrapf("%s for unknown handle %d", msg.Method, params.Subscription))
		return
	}

	delivered := sub.deliver(Notification{
		Method:       msg.Method,
		Subscription: params.Subscription,
		Result:       params.Result,
		codec:        c.opts.codec,
	})
	if delivered {
		notificationsDelivered.WithLabelValues(msg.Method).Inc()
	}
	if sub.topic.AutoCloses {
		c.closeSubscription(sub, nil)
	}
}

// closeSubscription closes sub locally without telling the node.
func (c *Client) closeSubscription(sub *Subscription, err error) {
	if _, _, removed := c.subs.remove(sub); removed {
		sub.close(err)
	}
}

func (c *Client) anomaly(reason string, err error) {
	protocolAnomalies.WithLabelValues(reason).Inc()
	c.logger.Warn().Err(err).Str(fieldReason, reason).Msg("dropping inbound frame")
}

func (c *Client) setState(s ConnState) {
	c.stateMu.Lock()
	old := c.state
	if old == ConnFailed {
		c.stateMu.Unlock()
		return
	}
	c.state = s
	c.stateMu.Unlock()

	if old != s {
		c.logger.Debug().
			Stringer(fieldOldState, old).
			Stringer(fieldNewState, s).
			Msg("connection state changed")
	}
}

// terminate ends the client: every open subscription and pending call
// resolves with err, and so does every later call. It returns the error from
// closing the live stream, if any.
func (c *Client) terminate(err error) error {
	// Failed is set first so callers woken by the registry observe it.
	c.setState(ConnFailed)
	subs, stream, first := c.subs.terminate(err)
	if !first {
		return nil
	}
	c.cancel()

	var closeErr error
	if stream != nil {
		closeErr = stream.Close()
	}
	for _, sub := range subs {
		sub.close(err)
	}
	if n := c.corr.failAll(err); n > 0 {
		c.logger.Debug().Int(fieldCount, n).Msg("failed pending calls on shutdown")
	}
	return closeErr
}
