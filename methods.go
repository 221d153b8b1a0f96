// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chainrpc

import (
	"context"
	"encoding/json"

	"github.com/luxfi/chainrpc/encoding"
)

// Commitment is how settled the state a call observes must be.
type Commitment string

const (
	CommitmentProcessed Commitment = "processed"
	CommitmentConfirmed Commitment = "confirmed"
	CommitmentFinalized Commitment = "finalized"
)

// RPCContext is the slot a contextual result was read at.
type RPCContext struct {
	Slot       uint64 `json:"slot"`
	APIVersion string `json:"apiVersion,omitempty"`
}

// Response is a result wrapped with its RPCContext.
type Response[T any] struct {
	Context RPCContext `json:"context"`
	Value   T          `json:"value"`
}

// AccountConfig selects how account data is rendered.
type AccountConfig struct {
	Encoding   encoding.Encoding `json:"encoding,omitempty"`
	Commitment Commitment        `json:"commitment,omitempty"`
}

type commitmentConfig struct {
	Commitment Commitment `json:"commitment,omitempty"`
}

// AccountNotification is the payload of accountNotification.
type AccountNotification = Response[encoding.Account]

// SlotInfo is the payload of slotNotification.
type SlotInfo struct {
	Parent uint64 `json:"parent"`
	Root   uint64 `json:"root"`
	Slot   uint64 `json:"slot"`
}

// SignatureResult is the payload of signatureNotification. Err is the
// transaction error verbatim, or nil when the transaction succeeded.
type SignatureResult struct {
	Err json.RawMessage `json:"err"`
}

// Succeeded reports whether the transaction executed without error.
func (r SignatureResult) Succeeded() bool {
	return len(r.Err) == 0 || string(r.Err) == "null"
}

// SignatureNotification is the payload of signatureNotification.
type SignatureNotification = Response[SignatureResult]

// withConfig appends cfg to params unless it is the zero value, which
// nodes treat the same as an absent config.
func withConfig[T comparable](params []any, cfg T) []any {
	var zero T
	if cfg == zero {
		return params
	}
	return append(params, cfg)
}

// GetBalance returns the lamport balance of the account at pubkey.
func (c *Client) GetBalance(ctx context.Context, pubkey string, commitment Commitment) (uint64, error) {
	var resp Response[uint64]
	params := withConfig([]any{pubkey}, commitmentConfig{Commitment: commitment})
	if err := c.Call(ctx, "getBalance", params, &resp); err != nil {
		return 0, err
	}
	return resp.Value, nil
}

// GetSlot returns the slot the node has reached at the given commitment.
func (c *Client) GetSlot(ctx context.Context, commitment Commitment) (uint64, error) {
	var slot uint64
	params := withConfig([]any{}, commitmentConfig{Commitment: commitment})
	if err := c.Call(ctx, "getSlot", params, &slot); err != nil {
		return 0, err
	}
	return slot, nil
}

// GetAccountInfo returns the account at pubkey, or nil if it does not exist.
func (c *Client) GetAccountInfo(
	ctx context.Context,
	pubkey string,
	cfg AccountConfig,
) (*encoding.Account, RPCContext, error) {
	var resp Response[*encoding.Account]
	if err := c.Call(ctx, "getAccountInfo", withConfig([]any{pubkey}, cfg), &resp); err != nil {
		return nil, RPCContext{}, err
	}
	return resp.Value, resp.Context, nil
}

// AccountSubscribe notifies on every change to the account at pubkey.
// Notifications decode into AccountNotification.
func (c *Client) AccountSubscribe(
	ctx context.Context,
	pubkey string,
	cfg AccountConfig,
	opts ...SubscribeOption,
) (*Subscription, error) {
	return c.Subscribe(ctx, "accountSubscribe", withConfig([]any{pubkey}, cfg), opts...)
}

// SlotSubscribe notifies whenever the node processes a slot. Notifications
// decode into SlotInfo.
func (c *Client) SlotSubscribe(ctx context.Context, opts ...SubscribeOption) (*Subscription, error) {
	return c.Subscribe(ctx, "slotSubscribe", nil, opts...)
}

// SignatureSubscribe notifies once, when the transaction with signature
// reaches commitment; the subscription then closes by itself.
// The notification decodes into SignatureNotification.
func (c *Client) SignatureSubscribe(
	ctx context.Context,
	signature string,
	commitment Commitment,
	opts ...SubscribeOption,
) (*Subscription, error) {
	params := withConfig([]any{signature}, commitmentConfig{Commitment: commitment})
	return c.Subscribe(ctx, "signatureSubscribe", params, opts...)
}
