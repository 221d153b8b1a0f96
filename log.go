// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chainrpc

// Log field names.
const (
	fieldComponent     = "component"
	fieldClientID      = "client_id"
	fieldEndpoint      = "endpoint"
	fieldMethod        = "method"
	fieldCallID        = "call_id"
	fieldSubscription  = "subscription"
	fieldSubscriptions = "subscriptions"
	fieldFailedCalls   = "failed_calls"
	fieldCount         = "count"
	fieldAttempt       = "attempt"
	fieldDelay         = "delay"
	fieldReason        = "reason"
	fieldOldState      = "old_state"
	fieldNewState      = "new_state"
)

const componentClient = "chainrpc_client"
