// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chainrpc

import "strings"

const (
	subscribeSuffix    = "Subscribe"
	unsubscribeSuffix  = "Unsubscribe"
	notificationSuffix = "Notification"
)

// Topic describes one kind of subscription: the method that opens it, the
// method that closes it, and the method name its notifications carry.
type Topic struct {
	Subscribe    string
	Unsubscribe  string
	Notification string
	// AutoCloses is set for topics the node ends on its own after the first
	// notification. The client closes those locally without an unsubscribe
	// call.
	AutoCloses bool
}

var topics = map[string]Topic{}

func init() {
	for _, name := range []string{
		"account",
		"block",
		"logs",
		"program",
		"root",
		"slot",
		"slotsUpdates",
		"vote",
	} {
		registerTopic(topicFor(name, false))
	}
	registerTopic(topicFor("signature", true))
}

func topicFor(name string, autoCloses bool) Topic {
	return Topic{
		Subscribe:    name + subscribeSuffix,
		Unsubscribe:  name + unsubscribeSuffix,
		Notification: name + notificationSuffix,
		AutoCloses:   autoCloses,
	}
}

func registerTopic(t Topic) {
	topics[t.Subscribe] = t
}

// LookupTopic returns the topic opened by subscribeMethod. Methods missing
// from the table are accepted when they follow the "<name>Subscribe"
// convention; the other names are derived from it.
func LookupTopic(subscribeMethod string) (Topic, bool) {
	if t, ok := topics[subscribeMethod]; ok {
		return t, true
	}
	name, ok := strings.CutSuffix(subscribeMethod, subscribeSuffix)
	if !ok || name == "" {
		return Topic{}, false
	}
	return topicFor(name, false), true
}
