// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chainrpc

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// callPath selects the transport a call travels on.
type callPath int

const (
	// callAuto uses the one-shot transport when there is one and otherwise
	// the duplex connection, waiting for it across reconnects.
	callAuto callPath = iota
	// callOnStream uses the live duplex connection and fails at once if
	// there is none.
	callOnStream
)

// Call invokes method with positional params and decodes the result into
// reply, which may be nil to discard it.
func (c *Client) Call(ctx context.Context, method string, params []any, reply any, opts ...CallOption) error {
	raw, err := c.CallRaw(ctx, method, params, opts...)
	if err != nil {
		return err
	}
	if reply == nil {
		return nil
	}
	if err := c.opts.codec.Decode(raw, reply); err != nil {
		return ErrDecode.Wrapf("%s result: %s", method, err)
	}
	return nil
}

// CallRaw invokes method and returns the undecoded result.
//
// The call resolves exactly once: with the node's reply, with ErrTimeout when
// its deadline passes, with ErrClosed when the client shuts down or the
// duplex connection carrying it drops, or with ctx.Err() when ctx is
// cancelled. A reply arriving after that is discarded.
func (c *Client) CallRaw(ctx context.Context, method string, params []any, opts ...CallOption) (json.RawMessage, error) {
	return c.call(ctx, method, params, callAuto, opts...)
}

func (c *Client) call(
	ctx context.Context,
	method string,
	params []any,
	path callPath,
	opts ...CallOption,
) (json.RawMessage, error) {
	start := time.Now()
	result, err := c.doCall(ctx, method, params, path, opts)
	callsTotal.WithLabelValues(method, outcomeOf(err)).Inc()
	callLatency.WithLabelValues(method).Observe(time.Since(start).Seconds())
	return result, err
}

func (c *Client) doCall(
	ctx context.Context,
	method string,
	params []any,
	path callPath,
	opts []CallOption,
) (json.RawMessage, error) {
	if err := c.subs.err(); err != nil {
		return nil, err
	}

	var co callOptions
	for _, opt := range opts {
		opt(&co)
	}
	ctx, cancel, err := c.callContext(ctx, co)
	if err != nil {
		return nil, err
	}
	defer cancel()

	raw, err := encodeParams(c.opts.codec, method, params)
	if err != nil {
		return nil, err
	}
	id := c.corr.allocate()
	frame, err := encodeRequest(id, method, raw)
	if err != nil {
		return nil, err
	}

	viaStream := path == callOnStream || c.oneShot == nil
	p := c.corr.register(id, method, viaStream)
	defer c.corr.forget(id)
	// A shutdown racing with register has already failed every pending call.
	if err := c.subs.err(); err != nil {
		return nil, err
	}

	if !viaStream {
		return c.callOneShot(ctx, p, frame)
	}

	var stream Stream
	if path == callOnStream {
		stream, err = c.subs.current()
	} else {
		c.startRouter()
		stream, err = c.subs.awaitStream(ctx)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctxErr(ctx, method)
		}
		return nil, err
	}
	if err := stream.Send(ctx, frame); err != nil {
		if ctx.Err() != nil {
			return nil, ctxErr(ctx, method)
		}
		// The router fails every pending call on this connection the same way.
		return nil, ErrClosed.Wrapf("send %s: %s", method, err)
	}

	select {
	case r := <-p.resp:
		return r.result, r.err
	case <-ctx.Done():
		return nil, ctxErr(ctx, method)
	}
}

// callOneShot sends frame on the one-shot transport and routes the reply
// through the same dispatch as frames read from the duplex connection.
func (c *Client) callOneShot(ctx context.Context, p *pendingCall, frame []byte) (json.RawMessage, error) {
	replyFrame, err := c.oneShot.SendRequest(ctx, frame)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctxErr(ctx, p.method)
		}
		if !errors.Is(err, ErrTransport) {
			err = ErrTransport.Wrapf("%s: %s", p.method, err)
		}
		return nil, err
	}

	c.dispatch(replyFrame)
	select {
	case r := <-p.resp:
		return r.result, r.err
	default:
	}
	// Nodes answer requests they cannot parse with an error and a null id.
	if _, err := decodeReply(replyFrame); errors.Is(err, ErrRemote) {
		return nil, err
	}
	return nil, ErrProtocol.Wrapf("reply to %s did not carry call id %d", p.method, p.id)
}

// callContext applies the call's deadline: the call option if given, else
// the ctx deadline, else the client default. A deadline that has already
// passed fails before anything is sent.
func (c *Client) callContext(ctx context.Context, co callOptions) (context.Context, context.CancelFunc, error) {
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, nil, ErrTimeout.Wrap("deadline already elapsed")
		}
		return nil, nil, err
	}
	if co.hasTimeout {
		if co.timeout <= 0 {
			return nil, nil, ErrTimeout.Wrapf("non-positive call timeout %s", co.timeout)
		}
		ctx, cancel := context.WithTimeout(ctx, co.timeout)
		return ctx, cancel, nil
	}
	if deadline, ok := ctx.Deadline(); ok {
		if !time.Now().Before(deadline) {
			return nil, nil, ErrTimeout.Wrap("deadline already elapsed")
		}
		ctx, cancel := context.WithCancel(ctx)
		return ctx, cancel, nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.opts.defaultTimeout)
	return ctx, cancel, nil
}

// withDefaultTimeout bounds ctx by the client default unless it already
// carries a deadline.
func (c *Client) withDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.opts.defaultTimeout)
}

// ctxErr maps a finished ctx to the error a caller sees.
func ctxErr(ctx context.Context, method string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout.Wrapf("%s", method)
	}
	return ctx.Err()
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, ErrRemote):
		return outcomeRemote
	case errors.Is(err, ErrTimeout):
		return outcomeTimeout
	case errors.Is(err, ErrClosed):
		return outcomeClosed
	case errors.Is(err, context.Canceled):
		return outcomeCanceled
	case errors.Is(err, ErrTransport):
		return outcomeTransport
	}
	return outcomeProtocol
}
