// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chainrpc

import (
	"net"
	"net/url"
	"sort"
	"strconv"
	"sync"
)

// Endpoint schemes
const (
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"
	SchemeWS    = "ws"
	SchemeWSS   = "wss"
)

// schemeBuilder turns an endpoint into the transports a Client uses. Either
// return value may be nil, but not both.
type schemeBuilder func(u *url.URL, o *dialOptions) (Transport, StreamDialer, error)

var (
	schemesMu sync.RWMutex
	schemes   = map[string]schemeBuilder{
		SchemeHTTP:  buildHTTP,
		SchemeHTTPS: buildHTTP,
		SchemeWS:    buildWebsocket,
		SchemeWSS:   buildWebsocket,
	}
)

// SchemeBuilder returns the transports for an endpoint. Either return value
// may be nil, but not both.
type SchemeBuilder func(endpoint *url.URL) (Transport, StreamDialer, error)

// RegisterScheme makes Dial accept endpoints with the given scheme, replacing
// any builder already registered for it. WithTransport and WithStreamDialer
// still take precedence over what build returns.
func RegisterScheme(scheme string, build SchemeBuilder) {
	if scheme == "" || build == nil {
		panic("chainrpc: RegisterScheme needs a scheme and a builder")
	}
	registerScheme(scheme, func(u *url.URL, o *dialOptions) (Transport, StreamDialer, error) {
		transport, dialer, err := build(u)
		if err != nil {
			return nil, nil, err
		}
		if o.transport != nil {
			transport = o.transport
		}
		if o.streamDialer != nil {
			dialer = o.streamDialer
		}
		if transport == nil && dialer == nil {
			return nil, nil, ErrTransport.Wrapf("scheme %q built no transport", u.Scheme)
		}
		return transport, dialer, nil
	})
}

func registerScheme(scheme string, build schemeBuilder) {
	schemesMu.Lock()
	defer schemesMu.Unlock()
	schemes[scheme] = build
}

func lookupScheme(scheme string) (schemeBuilder, bool) {
	schemesMu.RLock()
	defer schemesMu.RUnlock()
	build, ok := schemes[scheme]
	return build, ok
}

// AvailableSchemes returns the endpoint schemes Dial accepts, sorted.
func AvailableSchemes() []string {
	schemesMu.RLock()
	defer schemesMu.RUnlock()
	result := make([]string, 0, len(schemes))
	for name := range schemes {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// HasScheme checks if Dial accepts endpoints with the given scheme.
func HasScheme(scheme string) bool {
	_, ok := lookupScheme(scheme)
	return ok
}

// buildHTTP serves requests over HTTP and subscriptions over the pubsub
// websocket next to it.
func buildHTTP(u *url.URL, o *dialOptions) (Transport, StreamDialer, error) {
	transport := o.transport
	if transport == nil {
		transport = newHTTPTransport(u, o)
	}

	dialer := o.streamDialer
	if dialer == nil {
		streamURL, err := streamURLFor(u, o.streamEndpoint)
		if err != nil {
			return nil, nil, err
		}
		dialer = newWebsocketDialer(streamURL, o)
	}
	return transport, dialer, nil
}

// buildWebsocket carries everything over one websocket.
func buildWebsocket(u *url.URL, o *dialOptions) (Transport, StreamDialer, error) {
	dialer := o.streamDialer
	if dialer == nil {
		target := u
		if o.streamEndpoint != "" {
			var err error
			if target, err = streamURLFor(u, o.streamEndpoint); err != nil {
				return nil, nil, err
			}
		}
		dialer = newWebsocketDialer(target, o)
	}
	return o.transport, dialer, nil
}

// streamURLFor returns the pubsub URL for a request endpoint: override when
// set, otherwise the same host with the websocket scheme and the next port.
// Nodes serve pubsub on the RPC port plus one.
func streamURLFor(u *url.URL, override string) (*url.URL, error) {
	if override != "" {
		s, err := url.Parse(override)
		if err != nil {
			return nil, ErrTransport.Wrapf("stream endpoint %q: %s", override, err)
		}
		if s.Scheme != SchemeWS && s.Scheme != SchemeWSS {
			return nil, ErrTransport.Wrapf("stream endpoint %q: scheme must be ws or wss", override)
		}
		return s, nil
	}

	s := *u
	switch u.Scheme {
	case SchemeHTTPS, SchemeWSS:
		s.Scheme = SchemeWSS
	default:
		s.Scheme = SchemeWS
	}
	if port := u.Port(); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return nil, ErrTransport.Wrapf("endpoint port %q: %s", port, err)
		}
		s.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(n+1))
	}
	return &s, nil
}
