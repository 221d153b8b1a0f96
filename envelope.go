// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chainrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/gorilla/rpc/v2/json2"
)

const jsonrpcVersion = "2.0"

// request is the call envelope.
type request struct {
	Version string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// encodeRequest builds the envelope around params already rendered by
// encodeParams.
func encodeRequest(id uint64, method string, params json.RawMessage) ([]byte, error) {
	frame, err := json.Marshal(request{
		Version: jsonrpcVersion,
		ID:      id,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, ErrProtocol.Wrapf("encode %s envelope: %s", method, err)
	}
	return frame, nil
}

// inbound covers both reply and notification envelopes; which fields are set
// decides the kind.
type inbound struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
}

type frameKind int

const (
	kindUnknown frameKind = iota
	kindReply
	kindNotification
)

func (m *inbound) kind() frameKind {
	hasID := len(m.ID) > 0 && !bytes.Equal(m.ID, []byte("null"))
	switch {
	case hasID && m.Method == "":
		return kindReply
	case !hasID && m.Method != "" && len(m.Params) > 0:
		return kindNotification
	}
	return kindUnknown
}

// callID parses the reply id. Only the numeric ids this client issues can
// match a pending call.
func (m *inbound) callID() (uint64, bool) {
	id, err := strconv.ParseUint(string(m.ID), 10, 64)
	return id, err == nil
}

func decodeInbound(frame []byte) (*inbound, error) {
	msg := new(inbound)
	if err := json.Unmarshal(frame, msg); err != nil {
		return nil, ErrProtocol.Wrapf("malformed envelope: %s", err)
	}
	return msg, nil
}

// notificationParams is the params object of a notification envelope.
type notificationParams struct {
	Subscription uint64          `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

func decodeNotificationParams(raw json.RawMessage) (notificationParams, error) {
	var p notificationParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, ErrProtocol.Wrapf("notification params: %s", err)
	}
	return p, nil
}

// decodeReply extracts the result of a reply frame. A node error object
// becomes a *RemoteError; a null result is returned as JSON null.
func decodeReply(frame []byte) (json.RawMessage, error) {
	var result json.RawMessage
	err := json2.DecodeClientResponse(bytes.NewReader(frame), &result)
	switch {
	case err == nil:
		return result, nil
	case errors.Is(err, json2.ErrNullResult):
		return json.RawMessage("null"), nil
	}

	var nodeErr *json2.Error
	if errors.As(err, &nodeErr) {
		return nil, &RemoteError{
			Code:    int(nodeErr.Code),
			Message: nodeErr.Message,
			Data:    nodeErr.Data,
		}
	}
	return nil, ErrProtocol.Wrapf("reply: %s", err)
}

// decodeHandle reads the remote subscription handle from a subscribe
// acknowledgement.
func decodeHandle(result json.RawMessage) (uint64, error) {
	var handle uint64
	if err := json.Unmarshal(result, &handle); err != nil {
		return 0, ErrProtocol.Wrapf("subscription handle %s: %s", result, err)
	}
	return handle, nil
}
