// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chainrpc

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeRequest(t *testing.T) {
	frame, err := encodeRequest(3, "getBalance", json.RawMessage(`["acct"]`))
	require.NoError(t, err)
	require.JSONEq(t, `{"jsonrpc":"2.0","id":3,"method":"getBalance","params":["acct"]}`, string(frame))
}

func TestInboundKind(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  frameKind
	}{
		{"reply", `{"jsonrpc":"2.0","id":1,"result":5}`, kindReply},
		{"error reply", `{"jsonrpc":"2.0","id":1,"error":{"code":-1,"message":"x"}}`, kindReply},
		{"notification", `{"jsonrpc":"2.0","method":"slotNotification","params":{"subscription":1,"result":2}}`, kindNotification},
		{"null id error", `{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"Parse error"}}`, kindUnknown},
		{"method without params", `{"jsonrpc":"2.0","method":"slotNotification"}`, kindUnknown},
		{"request echo", `{"jsonrpc":"2.0","id":1,"method":"getSlot","params":[]}`, kindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := decodeInbound([]byte(tt.frame))
			require.NoError(t, err)
			require.Equal(t, tt.want, msg.kind())
		})
	}
}

func TestCallID(t *testing.T) {
	msg, err := decodeInbound([]byte(`{"id":"abc","result":1}`))
	require.NoError(t, err)
	_, ok := msg.callID()
	require.False(t, ok)

	msg, err = decodeInbound([]byte(`{"id":18446744073709551615,"result":1}`))
	require.NoError(t, err)
	id, ok := msg.callID()
	require.True(t, ok)
	require.Equal(t, uint64(18446744073709551615), id)
}

func TestDecodeReply(t *testing.T) {
	result, err := decodeReply([]byte(`{"jsonrpc":"2.0","id":1,"result":{"a":1}}`))
	require.NoError(t, err)
	require.JSONEq(t, `{"a":1}`, string(result))

	result, err = decodeReply([]byte(`{"jsonrpc":"2.0","id":1,"result":null}`))
	require.NoError(t, err)
	require.Equal(t, "null", string(result))

	_, err = decodeReply([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"Method not found"}}`))
	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	require.Equal(t, -32601, remote.Code)
	require.ErrorIs(t, err, ErrRemote)

	_, err = decodeReply([]byte(`not json`))
	require.ErrorIs(t, err, ErrProtocol)
}

func TestDecodeHandle(t *testing.T) {
	handle, err := decodeHandle(json.RawMessage(`42`))
	require.NoError(t, err)
	require.EqualValues(t, 42, handle)

	_, err = decodeHandle(json.RawMessage(`"42"`))
	require.ErrorIs(t, err, ErrProtocol)
}

func TestEncodeParams(t *testing.T) {
	raw, err := encodeParams(defaultCodec, "getSlot", nil)
	require.NoError(t, err)
	require.Equal(t, "[]", string(raw))

	_, err = encodeParams(defaultCodec, "getSlot", []any{make(chan int)})
	require.ErrorIs(t, err, ErrProtocol)
}
