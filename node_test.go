// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chainrpc

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/backoff"
)

const testWait = 2 * time.Second

// memStream is an in-memory duplex connection. The client end implements
// Stream; the test drives the node end through nodeConn.
type memStream struct {
	toClient chan []byte
	toNode   chan []byte
	closed   chan struct{}
	once     sync.Once
}

func newMemStream() *memStream {
	return &memStream{
		toClient: make(chan []byte),
		toNode:   make(chan []byte, 64),
		closed:   make(chan struct{}),
	}
}

func (s *memStream) Send(ctx context.Context, frame []byte) error {
	select {
	case <-s.closed:
		return ErrTransport.Wrap("stream closed")
	default:
	}
	select {
	case s.toNode <- append([]byte(nil), frame...):
		return nil
	case <-s.closed:
		return ErrTransport.Wrap("stream closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *memStream) Recv(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-s.toClient:
		return frame, nil
	case <-s.closed:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *memStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

// memDialer hands out memStreams and lets the test accept them as nodeConns.
type memDialer struct {
	accepted chan *memStream
	// failures is how many upcoming dials fail; negative fails every dial.
	failures atomic.Int32
	dials    atomic.Int32
}

func newMemDialer() *memDialer {
	return &memDialer{accepted: make(chan *memStream, 16)}
}

func (d *memDialer) OpenStream(ctx context.Context) (Stream, error) {
	d.dials.Add(1)
	if n := d.failures.Load(); n != 0 {
		if n > 0 {
			d.failures.Add(-1)
		}
		return nil, ErrTransport.Wrap("connection refused")
	}
	s := newMemStream()
	select {
	case d.accepted <- s:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s, nil
}

func (d *memDialer) accept(t *testing.T) *nodeConn {
	t.Helper()
	select {
	case s := <-d.accepted:
		return &nodeConn{t: t, s: s}
	case <-time.After(testWait):
		t.Fatal("client never dialed")
		return nil
	}
}

// deafStream rejects every Send; Recv waits for Close.
type deafStream struct {
	closed chan struct{}
	once   sync.Once
}

func (*deafStream) Send(context.Context, []byte) error {
	return ErrTransport.Wrap("broken pipe")
}

func (s *deafStream) Recv(ctx context.Context) ([]byte, error) {
	select {
	case <-s.closed:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *deafStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

type deafDialer struct{}

func (deafDialer) OpenStream(context.Context) (Stream, error) {
	return &deafStream{closed: make(chan struct{})}, nil
}

// testRequest is a call envelope as the node sees it.
type testRequest struct {
	Version string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// nodeConn is the node end of a memStream.
type nodeConn struct {
	t *testing.T
	s *memStream
}

func (n *nodeConn) expect(method string) testRequest {
	n.t.Helper()
	select {
	case frame := <-n.s.toNode:
		var req testRequest
		require.NoError(n.t, json.Unmarshal(frame, &req))
		require.Equal(n.t, "2.0", req.Version)
		require.Equal(n.t, method, req.Method)
		return req
	case <-time.After(testWait):
		n.t.Fatalf("node never received %s", method)
		return testRequest{}
	}
}

func (n *nodeConn) expectNone(within time.Duration) {
	n.t.Helper()
	select {
	case frame := <-n.s.toNode:
		n.t.Fatalf("node received unexpected frame %s", frame)
	case <-time.After(within):
	}
}

func (n *nodeConn) push(v any) {
	n.t.Helper()
	frame, err := json.Marshal(v)
	require.NoError(n.t, err)
	n.pushRaw(string(frame))
}

func (n *nodeConn) pushRaw(frame string) {
	n.t.Helper()
	select {
	case n.s.toClient <- []byte(frame):
	case <-n.s.closed:
		n.t.Fatal("push on closed stream")
	case <-time.After(testWait):
		n.t.Fatal("client never read frame")
	}
}

func (n *nodeConn) reply(id uint64, result any) {
	n.t.Helper()
	n.push(map[string]any{"jsonrpc": "2.0", "id": id, "result": result})
}

func (n *nodeConn) replyError(id uint64, code int, message string, data any) {
	n.t.Helper()
	n.push(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error":   map[string]any{"code": code, "message": message, "data": data},
	})
}

func (n *nodeConn) notify(method string, handle uint64, result any) {
	n.t.Helper()
	n.push(map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  map[string]any{"subscription": handle, "result": result},
	})
}

func (n *nodeConn) drop() {
	_ = n.s.Close()
}

// funcTransport is a one-shot Transport backed by a function.
type funcTransport struct {
	sends  atomic.Int32
	handle func(req testRequest) (string, error)
}

func (f *funcTransport) SendRequest(_ context.Context, frame []byte) ([]byte, error) {
	f.sends.Add(1)
	var req testRequest
	if err := json.Unmarshal(frame, &req); err != nil {
		return nil, err
	}
	reply, err := f.handle(req)
	if err != nil {
		return nil, err
	}
	return []byte(reply), nil
}

func (*funcTransport) Close() error { return nil }

var fastReconnect = ReconnectPolicy{
	Config: backoff.Config{
		BaseDelay:  5 * time.Millisecond,
		Multiplier: 1.5,
		MaxDelay:   20 * time.Millisecond,
	},
	MaxAttempts: 3,
}

// newStreamClient returns a client whose calls and subscriptions all travel
// over memStreams.
func newStreamClient(t *testing.T, opts ...DialOption) (*Client, *memDialer) {
	t.Helper()
	dialer := newMemDialer()
	opts = append([]DialOption{
		WithStreamDialer(dialer),
		WithReconnectPolicy(fastReconnect),
	}, opts...)
	client, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, dialer
}

type subscribeResult struct {
	sub *Subscription
	err error
}

func subscribeAsync(ctx context.Context, c *Client, method string, params []any, opts ...SubscribeOption) <-chan subscribeResult {
	out := make(chan subscribeResult, 1)
	go func() {
		sub, err := c.Subscribe(ctx, method, params, opts...)
		out <- subscribeResult{sub: sub, err: err}
	}()
	return out
}

func awaitSubscribe(t *testing.T, ch <-chan subscribeResult) *Subscription {
	t.Helper()
	select {
	case r := <-ch:
		require.NoError(t, r.err)
		return r.sub
	case <-time.After(testWait):
		t.Fatal("subscribe never returned")
		return nil
	}
}

type callResult struct {
	result json.RawMessage
	err    error
}

func callAsync(ctx context.Context, c *Client, method string, params []any, opts ...CallOption) <-chan callResult {
	out := make(chan callResult, 1)
	go func() {
		result, err := c.CallRaw(ctx, method, params, opts...)
		out <- callResult{result: result, err: err}
	}()
	return out
}

func awaitCall(t *testing.T, ch <-chan callResult) callResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(testWait):
		t.Fatal("call never returned")
		return callResult{}
	}
}

func nextNotification(t *testing.T, sub *Subscription) Notification {
	t.Helper()
	select {
	case n, ok := <-sub.Notifications():
		require.True(t, ok, "notification channel closed")
		return n
	case <-time.After(testWait):
		t.Fatal("no notification delivered")
		return Notification{}
	}
}

func requireNoNotification(t *testing.T, sub *Subscription, within time.Duration) {
	t.Helper()
	select {
	case n, ok := <-sub.Notifications():
		if ok {
			t.Fatalf("unexpected notification %s", n.Result)
		}
	case <-time.After(within):
	}
}
