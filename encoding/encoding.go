// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package encoding decodes the binary payloads (account data, transactions)
// a node embeds in its JSON replies and notifications.
//
// Every payload travels with an explicit encoding tag. Decoding dispatches on
// that tag and rejects tags it does not know; it never guesses. All functions
// are pure: they hold no resources between calls and never block.
package encoding

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"

	sdkerrors "cosmossdk.io/errors"
	"github.com/klauspost/compress/zstd"
	"github.com/mr-tron/base58"
)

var (
	codespace = "encoding"

	ErrUnknownEncoding = sdkerrors.Register(codespace, 1, "unknown payload encoding")
	ErrDecode          = sdkerrors.Register(codespace, 2, "failed to decode payload")
	ErrEncode          = sdkerrors.Register(codespace, 3, "failed to encode payload")
)

// maxDecompressedSize bounds base64+zstd payloads. Accounts are capped at
// 10MiB on chain; the margin covers framing.
const maxDecompressedSize = 16 << 20

// Encoding is the tag a node sends alongside a binary payload.
type Encoding string

const (
	// Binary is the legacy name for base58, kept by nodes for compatibility.
	Binary     Encoding = "binary"
	Base58     Encoding = "base58"
	Base64     Encoding = "base64"
	Base64Zstd Encoding = "base64+zstd"
	// JSONParsed asks the node for a program-specific JSON rendering. It has
	// no binary form.
	JSONParsed Encoding = "jsonParsed"
)

// Valid reports whether e is a tag this package understands.
func (e Encoding) Valid() bool {
	switch e {
	case Binary, Base58, Base64, Base64Zstd, JSONParsed:
		return true
	}
	return false
}

// IsBinary reports whether payloads in e decode to raw bytes.
func (e Encoding) IsBinary() bool {
	return e.Valid() && e != JSONParsed
}

func (e Encoding) String() string {
	return string(e)
}

// Decode returns the raw bytes carried by blob under tag enc.
func Decode(blob string, enc Encoding) ([]byte, error) {
	switch enc {
	case Binary, Base58:
		if blob == "" {
			return []byte{}, nil
		}
		data, err := base58.Decode(blob)
		if err != nil {
			return nil, ErrDecode.Wrapf("base58: %s", err)
		}
		return data, nil
	case Base64:
		data, err := base64.StdEncoding.DecodeString(blob)
		if err != nil {
			return nil, ErrDecode.Wrapf("base64: %s", err)
		}
		return data, nil
	case Base64Zstd:
		compressed, err := base64.StdEncoding.DecodeString(blob)
		if err != nil {
			return nil, ErrDecode.Wrapf("base64: %s", err)
		}
		return decompress(compressed)
	case JSONParsed:
		return nil, ErrDecode.Wrapf("%s payloads have no binary form", enc)
	default:
		return nil, unknownEncoding(enc)
	}
}

// Encode renders data as a blob under tag enc. It is the inverse of Decode.
func Encode(data []byte, enc Encoding) (string, error) {
	switch enc {
	case Binary, Base58:
		return base58.Encode(data), nil
	case Base64:
		return base64.StdEncoding.EncodeToString(data), nil
	case Base64Zstd:
		compressed, err := compress(data)
		if err != nil {
			return "", err
		}
		return base64.StdEncoding.EncodeToString(compressed), nil
	case JSONParsed:
		return "", ErrEncode.Wrapf("%s payloads have no binary form", enc)
	default:
		return "", unknownEncoding(enc)
	}
}

// unknownEncoding matches both ErrUnknownEncoding and ErrDecode.
func unknownEncoding(enc Encoding) error {
	return fmt.Errorf("%w: %w", ErrDecode, ErrUnknownEncoding.Wrapf("%q", string(enc)))
}

func decompress(compressed []byte) ([]byte, error) {
	dec, err := zstd.NewReader(
		bytes.NewReader(compressed),
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(maxDecompressedSize),
	)
	if err != nil {
		return nil, ErrDecode.Wrapf("zstd: %s", err)
	}
	defer dec.Close()

	data, err := io.ReadAll(io.LimitReader(dec, maxDecompressedSize+1))
	if err != nil {
		return nil, ErrDecode.Wrapf("zstd: %s", err)
	}
	if len(data) > maxDecompressedSize {
		return nil, ErrDecode.Wrapf("zstd: payload exceeds %d bytes", maxDecompressedSize)
	}
	return data, nil
}

func compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, ErrEncode.Wrapf("zstd: %s", err)
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}
