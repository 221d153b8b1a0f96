// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chainrpc

import (
	"fmt"

	sdkerrors "cosmossdk.io/errors"

	"github.com/luxfi/chainrpc/encoding"
)

var (
	codespace = "chainrpc"

	// ErrTransport is a connection-level failure. The router recovers from it
	// by reconnecting; it reaches callers only through the one-shot path.
	ErrTransport = sdkerrors.Register(codespace, 1, "transport failure")
	// ErrTimeout means a call exceeded its deadline.
	ErrTimeout = sdkerrors.Register(codespace, 2, "call deadline exceeded")
	// ErrClosed means the client shut down, or the connection carrying a call
	// dropped before the reply arrived.
	ErrClosed = sdkerrors.Register(codespace, 3, "client closed")
	// ErrProtocol marks a malformed or unrecognized envelope.
	ErrProtocol = sdkerrors.Register(codespace, 4, "protocol violation")
	// ErrRemote is matched by every *RemoteError.
	ErrRemote = sdkerrors.Register(codespace, 5, "node returned an error")
	// ErrDecode is the encoding layer's decode failure.
	ErrDecode = encoding.ErrDecode
)

// RemoteError is the error object a node returned for a call, verbatim.
type RemoteError struct {
	Code    int
	Message string
	Data    any
}

func (e *RemoteError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("node error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("node error %d: %s", e.Code, e.Message)
}

// Is lets errors.Is(err, ErrRemote) match any RemoteError.
func (e *RemoteError) Is(target error) bool {
	return target == ErrRemote
}
