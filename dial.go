// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chainrpc

import (
	"context"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

// Client talks to one node over a one-shot request transport, a duplex
// stream, or both. It is safe for concurrent use.
type Client struct {
	id     uuid.UUID
	opts   *dialOptions
	logger zerolog.Logger

	corr *correlator
	subs *registry

	oneShot Transport
	dialer  StreamDialer

	// ctx is cancelled when the client terminates.
	ctx    context.Context
	cancel context.CancelFunc

	routerOnce    sync.Once
	routerStarted atomic.Bool
	routerDone    chan struct{}

	stateMu sync.Mutex
	state   ConnState

	closeOnce sync.Once
	closeErr  error
}

// Dial creates a client for the node at endpoint. An http(s) endpoint
// serves calls over HTTP and subscriptions over the pubsub websocket on the
// next port; a ws(s) endpoint carries everything over one websocket.
//
// Dial does no I/O. The duplex connection is opened on first use.
func Dial(endpoint string, opts ...DialOption) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, ErrTransport.Wrapf("endpoint %q: %s", endpoint, err)
	}
	build, ok := lookupScheme(u.Scheme)
	if !ok {
		return nil, ErrTransport.Wrapf("unknown endpoint scheme %q, want one of %v", u.Scheme, AvailableSchemes())
	}

	o := newDialOptions()
	for _, opt := range opts {
		opt(o)
	}
	transport, dialer, err := build(u, o)
	if err != nil {
		return nil, err
	}
	return newClient(o, transport, dialer, u.Redacted()), nil
}

// New creates a client over caller-supplied transports, set with
// WithTransport and WithStreamDialer. At least one is required.
func New(opts ...DialOption) (*Client, error) {
	o := newDialOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.transport == nil && o.streamDialer == nil {
		return nil, ErrTransport.Wrap("no transport configured")
	}
	return newClient(o, o.transport, o.streamDialer, ""), nil
}

func newClient(o *dialOptions, transport Transport, dialer StreamDialer, endpoint string) *Client {
	id := uuid.New()
	logCtx := o.logger.With().
		Str(fieldComponent, componentClient).
		Str(fieldClientID, id.String())
	if endpoint != "" {
		logCtx = logCtx.Str(fieldEndpoint, endpoint)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		id:         id,
		opts:       o,
		logger:     logCtx.Logger(),
		corr:       newCorrelator(),
		subs:       newRegistry(),
		oneShot:    transport,
		dialer:     dialer,
		ctx:        ctx,
		cancel:     cancel,
		routerDone: make(chan struct{}),
		state:      ConnInitial,
	}
}

// ID returns the identifier carried by the client's log lines.
func (c *Client) ID() string {
	return c.id.String()
}

// ConnState returns the state of the duplex connection.
func (c *Client) ConnState() ConnState {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

// Close shuts the client down. Pending calls and open subscriptions resolve
// with ErrClosed, as does everything issued afterwards. It waits for the
// router to exit and is safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		err := c.terminate(ErrClosed.Wrap("client closed"))
		if c.routerStarted.Load() {
			<-c.routerDone
		}
		if c.oneShot != nil {
			err = multierr.Append(err, c.oneShot.Close())
		}
		c.closeErr = err
		c.logger.Debug().Msg("client closed")
	})
	return c.closeErr
}
