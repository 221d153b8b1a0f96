// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chainrpc

import (
	"encoding/json"
)

// Codec encodes call params and decodes results and notification payloads.
// Output must be JSON, since it is embedded in the envelope verbatim.
type Codec interface {
	Encode(v interface{}) ([]byte, error)
	Decode(data []byte, v interface{}) error
}

// JSONCodec is a JSON-based codec
type JSONCodec struct{}

func (JSONCodec) Encode(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Decode(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// defaultCodec is used when no codec is specified
var defaultCodec Codec = JSONCodec{}

// encodeParams renders the positional params once, so subscriptions can be
// reissued verbatim after a reconnect.
func encodeParams(codec Codec, method string, params []any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}
	raw, err := codec.Encode(params)
	if err != nil {
		return nil, ErrProtocol.Wrapf("encode %s params: %s", method, err)
	}
	if !json.Valid(raw) {
		return nil, ErrProtocol.Wrapf("encode %s params: codec produced invalid JSON", method)
	}
	return raw, nil
}
