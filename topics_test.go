// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chainrpc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLookupTopic(t *testing.T) {
	topic, ok := LookupTopic("accountSubscribe")
	require.True(t, ok)
	require.Equal(t, Topic{
		Subscribe:    "accountSubscribe",
		Unsubscribe:  "accountUnsubscribe",
		Notification: "accountNotification",
	}, topic)

	topic, ok = LookupTopic("signatureSubscribe")
	require.True(t, ok)
	require.True(t, topic.AutoCloses)

	topic, ok = LookupTopic("blockPrioritizationFeesSubscribe")
	require.True(t, ok)
	require.Equal(t, "blockPrioritizationFeesUnsubscribe", topic.Unsubscribe)
	require.Equal(t, "blockPrioritizationFeesNotification", topic.Notification)
	require.False(t, topic.AutoCloses)

	for _, method := range []string{"getSlot", "Subscribe", ""} {
		_, ok := LookupTopic(method)
		require.False(t, ok, method)
	}
}
