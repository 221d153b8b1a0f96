// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chainrpc

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const closeGracePeriod = time.Second

var (
	_ StreamDialer = (*websocketDialer)(nil)
	_ Stream       = (*websocketConn)(nil)
)

// websocketDialer opens pubsub connections with the gorilla websocket
// implementation.
type websocketDialer struct {
	url       string
	header    http.Header
	readLimit int64
	dialer    *websocket.Dialer
}

func newWebsocketDialer(u *url.URL, o *dialOptions) *websocketDialer {
	dialer := *websocket.DefaultDialer
	if u.Scheme == SchemeWSS {
		dialer.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return &websocketDialer{
		url:       u.String(),
		header:    o.header.Clone(),
		readLimit: o.readLimit,
		dialer:    &dialer,
	}
}

func (d *websocketDialer) OpenStream(ctx context.Context) (Stream, error) {
	conn, resp, err := d.dialer.DialContext(ctx, d.url, d.header)
	if err != nil {
		if resp != nil {
			_ = CleanlyCloseBody(resp.Body)
			return nil, ErrTransport.Wrapf("dial %s: %s (status %d)", d.url, err, resp.StatusCode)
		}
		return nil, ErrTransport.Wrapf("dial %s: %s", d.url, err)
	}
	conn.SetReadLimit(d.readLimit)
	return &websocketConn{conn: conn}, nil
}

// websocketConn is one pubsub connection. Gorilla connections allow one
// concurrent reader and one concurrent writer; the router is the only
// reader and writeMu serializes writers.
type websocketConn struct {
	conn *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (c *websocketConn) Send(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline, _ := ctx.Deadline()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return ErrTransport.Wrapf("set write deadline: %s", err)
	}
	// Text frames: envelopes are UTF-8 encoded JSON.
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return ErrTransport.Wrapf("write: %s", err)
	}
	return nil
}

func (c *websocketConn) Recv(ctx context.Context) ([]byte, error) {
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	for {
		kind, msg, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, ErrTransport.Wrapf("read: %s", err)
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return msg, nil
		}
	}
}

// Close sends a close frame, bounded by a short grace period, then closes
// the socket. Gorilla allows WriteControl concurrently with other writes.
func (c *websocketConn) Close() error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
