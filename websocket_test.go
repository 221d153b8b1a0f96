// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chainrpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// wsNode answers calls on a websocket. Subscribe calls are acknowledged
// with handle and followed by one notification carrying the connection
// number; calls to other methods echo their params.
type wsNode struct {
	conns atomic.Int32
	// dropAfterAck closes the first connection right after acknowledging.
	dropAfterAck bool
	header       atomic.Value
}

func (n *wsNode) serve(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	n.header.Store(r.Header.Get("X-Api-Key"))
	connNum := n.conns.Add(1)

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req testRequest
		if json.Unmarshal(frame, &req) != nil {
			return
		}

		if !strings.HasSuffix(req.Method, subscribeSuffix) {
			_ = conn.WriteJSON(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": req.Params})
			continue
		}

		handle := 100 + connNum
		_ = conn.WriteJSON(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": handle})
		if n.dropAfterAck && connNum == 1 {
			return
		}
		topic, _ := LookupTopic(req.Method)
		_ = conn.WriteJSON(map[string]any{
			"jsonrpc": "2.0",
			"method":  topic.Notification,
			"params":  map[string]any{"subscription": handle, "result": connNum},
		})
	}
}

func newWSNode(t *testing.T, node *wsNode) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(node.serve))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebsocketCallAndSubscribe(t *testing.T) {
	node := new(wsNode)
	endpoint := newWSNode(t, node)

	client, err := Dial(endpoint, WithHeader("X-Api-Key", "secret"))
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), testWait)
	defer cancel()

	var echoed []string
	require.NoError(t, client.Call(ctx, "getBalance", []any{"acct"}, &echoed))
	require.Equal(t, []string{"acct"}, echoed)
	require.Equal(t, "secret", node.header.Load())

	sub, err := client.SlotSubscribe(ctx)
	require.NoError(t, err)
	n := nextNotification(t, sub)
	require.EqualValues(t, 101, n.Subscription)
	require.JSONEq(t, `1`, string(n.Result))

	sub.Unsubscribe(ctx)
	_, ok := <-sub.Notifications()
	require.False(t, ok)
}

func TestWebsocketReconnect(t *testing.T) {
	node := &wsNode{dropAfterAck: true}
	endpoint := newWSNode(t, node)

	client, err := Dial(endpoint, WithReconnectPolicy(fastReconnect))
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), testWait)
	defer cancel()

	sub, err := client.AccountSubscribe(ctx, "acct", AccountConfig{Commitment: CommitmentConfirmed})
	require.NoError(t, err)

	n := nextNotification(t, sub)
	require.EqualValues(t, 102, n.Subscription)
	require.JSONEq(t, `2`, string(n.Result))
	require.EqualValues(t, 2, node.conns.Load())
}

func TestHTTPWithStreamEndpoint(t *testing.T) {
	srv := newHTTPNode(t, func(*http.Request, testRequest) any { return 77 })
	endpoint := newWSNode(t, new(wsNode))

	client, err := Dial(srv.URL, WithStreamEndpoint(endpoint))
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), testWait)
	defer cancel()

	slot, err := client.GetSlot(ctx, CommitmentFinalized)
	require.NoError(t, err)
	require.EqualValues(t, 77, slot)

	sub, err := client.SignatureSubscribe(ctx, "sig", CommitmentFinalized)
	require.NoError(t, err)
	nextNotification(t, sub)
	select {
	case <-sub.Done():
	case <-time.After(testWait):
		t.Fatal("signature subscription never closed")
	}
}
