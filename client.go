// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chainrpc

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultCallTimeout        = 30 * time.Second
	defaultNotificationBuffer = 64
	defaultBlockTimeout       = time.Second
	defaultReadLimit          = 64 * 1024 * 1024 // 64MB max
)

// Transport is a one-shot request channel: each call sends one encoded
// envelope and returns the encoded reply. It keeps no per-call state and
// never retries.
type Transport interface {
	io.Closer
	SendRequest(ctx context.Context, req []byte) ([]byte, error)
}

// StreamDialer opens duplex connections to the node.
type StreamDialer interface {
	OpenStream(ctx context.Context) (Stream, error)
}

// Stream is one duplex connection. Recv returns frames in arrival order until
// the connection ends; a Stream is never reopened, reconnecting dials a new
// one. Send may be called concurrently with Recv and with itself. Close
// unblocks a pending Recv and may be called more than once.
type Stream interface {
	io.Closer
	Send(ctx context.Context, frame []byte) error
	Recv(ctx context.Context) ([]byte, error)
}

// DialOption configures a Client.
type DialOption func(*dialOptions)

type dialOptions struct {
	codec          Codec
	logger         zerolog.Logger
	defaultTimeout time.Duration
	reconnect      ReconnectPolicy

	transport      Transport
	streamDialer   StreamDialer
	streamEndpoint string
	httpClient     *http.Client
	header         http.Header
	readLimit      int64

	subscribe subscribeOptions
}

func newDialOptions() *dialOptions {
	return &dialOptions{
		codec:          defaultCodec,
		logger:         zerolog.Nop(),
		defaultTimeout: defaultCallTimeout,
		reconnect:      DefaultReconnectPolicy,
		header:         make(http.Header),
		readLimit:      defaultReadLimit,
		subscribe: subscribeOptions{
			buffer:       defaultNotificationBuffer,
			policy:       DropOldest,
			blockTimeout: defaultBlockTimeout,
		},
	}
}

// WithCodec sets the codec used for call params, results and notification
// payloads. The codec must produce JSON.
func WithCodec(c Codec) DialOption {
	return func(o *dialOptions) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) DialOption {
	return func(o *dialOptions) { o.logger = logger }
}

// WithDefaultTimeout sets the deadline applied to calls that carry none.
func WithDefaultTimeout(d time.Duration) DialOption {
	return func(o *dialOptions) {
		if d > 0 {
			o.defaultTimeout = d
		}
	}
}

// WithReconnectPolicy sets how a dropped duplex connection is redialed.
func WithReconnectPolicy(p ReconnectPolicy) DialOption {
	return func(o *dialOptions) {
		if p.Multiplier < 1 {
			p.Multiplier = 1
		}
		if p.MaxDelay < p.BaseDelay {
			p.MaxDelay = p.BaseDelay
		}
		o.reconnect = p
	}
}

// WithTransport replaces the one-shot transport Dial would build.
func WithTransport(t Transport) DialOption {
	return func(o *dialOptions) { o.transport = t }
}

// WithStreamDialer replaces the duplex dialer Dial would build.
func WithStreamDialer(d StreamDialer) DialOption {
	return func(o *dialOptions) { o.streamDialer = d }
}

// WithStreamEndpoint sets the pubsub URL instead of deriving it from the
// request endpoint.
func WithStreamEndpoint(endpoint string) DialOption {
	return func(o *dialOptions) { o.streamEndpoint = endpoint }
}

// WithHTTPClient sets the client used by the HTTP transport.
func WithHTTPClient(c *http.Client) DialOption {
	return func(o *dialOptions) { o.httpClient = c }
}

// WithHeader adds a header to HTTP requests and the websocket handshake.
func WithHeader(key, value string) DialOption {
	return func(o *dialOptions) { o.header.Add(key, value) }
}

// WithReadLimit caps the size of one inbound websocket frame.
func WithReadLimit(n int64) DialOption {
	return func(o *dialOptions) {
		if n > 0 {
			o.readLimit = n
		}
	}
}

// WithNotificationBuffer sets the default delivery buffer per subscription.
func WithNotificationBuffer(n int) DialOption {
	return func(o *dialOptions) {
		if n > 0 {
			o.subscribe.buffer = n
		}
	}
}

// WithOverflowPolicy sets the default overflow policy per subscription.
func WithOverflowPolicy(p OverflowPolicy) DialOption {
	return func(o *dialOptions) { o.subscribe.policy = p }
}

// CallOption configures one call.
type CallOption func(*callOptions)

type callOptions struct {
	timeout    time.Duration
	hasTimeout bool
}

// WithCallTimeout bounds a single call. A zero or negative value fails the
// call with ErrTimeout before anything is sent.
func WithCallTimeout(d time.Duration) CallOption {
	return func(o *callOptions) {
		o.timeout = d
		o.hasTimeout = true
	}
}

// SubscribeOption configures one subscription.
type SubscribeOption func(*subscribeOptions)

type subscribeOptions struct {
	buffer       int
	policy       OverflowPolicy
	blockTimeout time.Duration
}

// WithBuffer sets how many undelivered notifications the subscription holds.
func WithBuffer(n int) SubscribeOption {
	return func(o *subscribeOptions) {
		if n > 0 {
			o.buffer = n
		}
	}
}

// WithPolicy sets what happens when the subscription's buffer is full.
func WithPolicy(p OverflowPolicy) SubscribeOption {
	return func(o *subscribeOptions) { o.policy = p }
}

// WithBlockTimeout bounds how long a Block subscription stalls the router.
func WithBlockTimeout(d time.Duration) SubscribeOption {
	return func(o *subscribeOptions) {
		if d > 0 {
			o.blockTimeout = d
		}
	}
}
