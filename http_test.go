// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chainrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// newHTTPNode serves JSON-RPC over HTTP, answering each request with
// result(req).
func newHTTPNode(t *testing.T, result func(r *http.Request, req testRequest) any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req testRequest
		if r.Method != http.MethodPost || json.NewDecoder(r.Body).Decode(&req) != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", contentTypeJSON)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result(r, req),
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPTransport(t *testing.T) {
	srv := newHTTPNode(t, func(r *http.Request, req testRequest) any {
		if r.Header.Get("Content-Type") != contentTypeJSON || r.Header.Get("X-Api-Key") != "secret" {
			return nil
		}
		var params []string
		_ = json.Unmarshal(req.Params, &params)
		if req.Method != "getBalance" || len(params) != 1 || params[0] != "acct" {
			return nil
		}
		return map[string]any{"context": map[string]any{"slot": 1}, "value": 5000}
	})

	client, err := Dial(srv.URL, WithHeader("X-Api-Key", "secret"))
	require.NoError(t, err)
	defer client.Close()

	balance, err := client.GetBalance(context.Background(), "acct", "")
	require.NoError(t, err)
	require.EqualValues(t, 5000, balance)
}

func TestHTTPTransportStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, err := Dial(srv.URL)
	require.NoError(t, err)
	defer client.Close()

	err = client.Call(context.Background(), "getSlot", nil, nil)
	require.ErrorIs(t, err, ErrTransport)
	require.Contains(t, err.Error(), "503")
}

func TestHTTPTransportReadLimit(t *testing.T) {
	srv := newHTTPNode(t, func(*http.Request, testRequest) any {
		return strings.Repeat("x", 1024)
	})

	client, err := Dial(srv.URL, WithReadLimit(64))
	require.NoError(t, err)
	defer client.Close()

	_, err = client.CallRaw(context.Background(), "getSlot", nil)
	require.ErrorIs(t, err, ErrTransport)
}

func TestHTTPTransportUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	client, err := Dial(endpoint)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.CallRaw(context.Background(), "getSlot", nil)
	require.ErrorIs(t, err, ErrTransport)
}

func TestDialSchemes(t *testing.T) {
	require.Equal(t, []string{"http", "https", "ws", "wss"}, AvailableSchemes())
	require.True(t, HasScheme("wss"))
	require.False(t, HasScheme("zap"))

	_, err := Dial("zap://127.0.0.1:9000")
	require.ErrorIs(t, err, ErrTransport)

	_, err = Dial("http://127.0.0.1:8899", WithStreamEndpoint("http://127.0.0.1:8900"))
	require.ErrorIs(t, err, ErrTransport)
}

func unregisterScheme(scheme string) {
	schemesMu.Lock()
	defer schemesMu.Unlock()
	delete(schemes, scheme)
}

func TestRegisterScheme(t *testing.T) {
	dialer := newMemDialer()
	var built *url.URL
	RegisterScheme("mem", func(endpoint *url.URL) (Transport, StreamDialer, error) {
		built = endpoint
		return nil, dialer, nil
	})
	t.Cleanup(func() { unregisterScheme("mem") })
	require.True(t, HasScheme("mem"))
	require.Contains(t, AvailableSchemes(), "mem")

	client, err := Dial("mem://node-1", WithReconnectPolicy(fastReconnect))
	require.NoError(t, err)
	defer client.Close()
	require.Equal(t, "node-1", built.Host)

	call := callAsync(context.Background(), client, "getSlot", nil)
	node := dialer.accept(t)
	req := node.expect("getSlot")
	node.reply(req.ID, 310)

	r := awaitCall(t, call)
	require.NoError(t, r.err)
	require.JSONEq(t, `310`, string(r.result))
}

func TestRegisterSchemeWithoutTransport(t *testing.T) {
	RegisterScheme("void", func(*url.URL) (Transport, StreamDialer, error) {
		return nil, nil, nil
	})
	t.Cleanup(func() { unregisterScheme("void") })

	_, err := Dial("void://node")
	require.ErrorIs(t, err, ErrTransport)

	client, err := Dial("void://node", WithTransport(&funcTransport{}))
	require.NoError(t, err)
	require.NoError(t, client.Close())
}

func TestHTTPClientHasNoTimeout(t *testing.T) {
	// Call deadlines travel on the request context; a client timeout would
	// cut off calls whose deadline is longer.
	require.Zero(t, newHTTPClient().Timeout)

	srv := newHTTPNode(t, func(*http.Request, testRequest) any {
		time.Sleep(50 * time.Millisecond)
		return 5
	})
	client, err := Dial(srv.URL, WithDefaultTimeout(10*time.Minute))
	require.NoError(t, err)
	defer client.Close()

	var slot uint64
	require.NoError(t, client.Call(context.Background(), "getSlot", nil, &slot, WithCallTimeout(5*time.Minute)))
	require.EqualValues(t, 5, slot)
}

func TestStreamURLFor(t *testing.T) {
	tests := []struct {
		endpoint string
		override string
		want     string
	}{
		{endpoint: "http://127.0.0.1:8899", want: "ws://127.0.0.1:8900"},
		{endpoint: "https://node.example.com/rpc", want: "wss://node.example.com/rpc"},
		{endpoint: "https://[::1]:443/", want: "wss://[::1]:444/"},
		{endpoint: "http://127.0.0.1:8899", override: "wss://pubsub.example.com", want: "wss://pubsub.example.com"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s %s", tt.endpoint, tt.override), func(t *testing.T) {
			u, err := url.Parse(tt.endpoint)
			require.NoError(t, err)
			got, err := streamURLFor(u, tt.override)
			require.NoError(t, err)
			require.Equal(t, tt.want, got.String())
		})
	}
}
