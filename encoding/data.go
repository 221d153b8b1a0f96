// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package encoding

import (
	"bytes"
	"encoding/json"
)

// Data is a payload as a node returns it. On the wire it takes one of three
// shapes:
//
//	"3Bxs4h24hBtQy9rw"            legacy string, always base58
//	["AQID", "base64"]            blob and its encoding tag
//	{"program": ..., "parsed": ...} jsonParsed rendering
type Data struct {
	Blob     string
	Encoding Encoding
	// Parsed is set only for jsonParsed payloads.
	Parsed *ParsedAccount
	// legacy marks the bare string form so it round-trips unchanged.
	legacy bool
}

// ParsedAccount is the jsonParsed rendering of account data.
type ParsedAccount struct {
	Program string          `json:"program"`
	Parsed  json.RawMessage `json:"parsed"`
	Space   uint64          `json:"space"`
}

// NewData encodes raw under enc.
func NewData(raw []byte, enc Encoding) (Data, error) {
	blob, err := Encode(raw, enc)
	if err != nil {
		return Data{}, err
	}
	return Data{Blob: blob, Encoding: enc}, nil
}

// Bytes decodes the payload. jsonParsed payloads have no binary form and
// return ErrDecode.
func (d Data) Bytes() ([]byte, error) {
	if d.Parsed != nil {
		return nil, ErrDecode.Wrap("payload is jsonParsed")
	}
	return Decode(d.Blob, d.Encoding)
}

func (d Data) MarshalJSON() ([]byte, error) {
	switch {
	case d.Parsed != nil:
		return json.Marshal(d.Parsed)
	case d.legacy:
		return json.Marshal(d.Blob)
	default:
		return json.Marshal([2]string{d.Blob, string(d.Encoding)})
	}
}

func (d *Data) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return ErrDecode.Wrap("empty payload")
	}

	switch b[0] {
	case '"':
		var blob string
		if err := json.Unmarshal(b, &blob); err != nil {
			return ErrDecode.Wrapf("legacy payload: %s", err)
		}
		*d = Data{Blob: blob, Encoding: Binary, legacy: true}
		return nil
	case '[':
		var pair []string
		if err := json.Unmarshal(b, &pair); err != nil {
			return ErrDecode.Wrapf("payload pair: %s", err)
		}
		if len(pair) != 2 {
			return ErrDecode.Wrapf("payload pair has %d elements", len(pair))
		}
		enc := Encoding(pair[1])
		if !enc.IsBinary() {
			return unknownEncoding(enc)
		}
		*d = Data{Blob: pair[0], Encoding: enc}
		return nil
	case '{':
		parsed := new(ParsedAccount)
		if err := json.Unmarshal(b, parsed); err != nil {
			return ErrDecode.Wrapf("parsed payload: %s", err)
		}
		*d = Data{Encoding: JSONParsed, Parsed: parsed}
		return nil
	default:
		return ErrDecode.Wrapf("unexpected payload shape %q", b[:1])
	}
}

// Account is an account as rendered by the node.
type Account struct {
	Lamports   uint64  `json:"lamports"`
	Data       Data    `json:"data"`
	Owner      string  `json:"owner"`
	Executable bool    `json:"executable"`
	RentEpoch  uint64  `json:"rentEpoch"`
	Space      *uint64 `json:"space,omitempty"`
}
