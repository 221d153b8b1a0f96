// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package chainrpc is a client for a blockchain node's JSON-RPC request API
// and its pubsub notification API.
//
// # Transports
//
// Calls travel over a one-shot transport (HTTP by default) or over the duplex
// websocket stream; subscriptions always use the stream. Replies from both
// are matched to their calls by id through the same dispatch, so ordering
// between replies never matters.
//
//	client, err := chainrpc.Dial("http://127.0.0.1:8899")
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	var slot uint64
//	err = client.Call(ctx, "getSlot", nil, &slot)
//
// The pubsub endpoint defaults to the RPC port plus one with the websocket
// scheme; WithStreamEndpoint overrides it. A ws:// endpoint makes the stream
// carry calls as well. WASM hosts and tests supply their own transports with
// WithTransport and WithStreamDialer.
//
// # Subscriptions
//
//	sub, err := client.Subscribe(ctx, "slotSubscribe", nil)
//	if err != nil {
//	    return err
//	}
//	defer sub.Unsubscribe(ctx)
//
//	for n := range sub.Notifications() {
//	    var info chainrpc.SlotInfo
//	    if err := n.Decode(&info); err != nil {
//	        return err
//	    }
//	}
//
// The stream is redialed with backoff when it drops. Open subscriptions are
// reissued in creation order and keep delivering on the same channel;
// notifications emitted while the stream was down are lost. When the
// reconnect policy gives up the client closes, and everything resolves with
// ErrClosed.
//
// # Errors
//
// Failures wrap one of ErrTransport, ErrTimeout, ErrClosed, ErrProtocol,
// ErrRemote or ErrDecode and should be matched with errors.Is. Node errors
// are returned as *RemoteError with code, message and data verbatim.
package chainrpc
