// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chainrpc

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// Config is the file and flag form of the client options. Keys follow the
// mapstructure tags; defaults and flag help come from the default and
// description tags.
type Config struct {
	Endpoint       string        `mapstructure:"endpoint" default:"http://127.0.0.1:8899" description:"node RPC endpoint (http, https, ws or wss)"`
	StreamEndpoint string        `mapstructure:"stream-endpoint" default:"" description:"pubsub endpoint, defaults to the RPC port plus one"`
	Timeout        time.Duration `mapstructure:"timeout" default:"30s" description:"deadline for calls that carry none"`
	Headers        []string      `mapstructure:"header" default:"" description:"extra request header as key=value, repeatable"`

	NotificationBuffer int    `mapstructure:"notification-buffer" default:"64" description:"undelivered notifications held per subscription"`
	OverflowPolicy     string `mapstructure:"overflow-policy" default:"drop-oldest" description:"full buffer policy, values: drop-oldest, block"`

	ReconnectBaseDelay   time.Duration `mapstructure:"reconnect-base-delay" default:"1s" description:"delay before the first redial"`
	ReconnectMaxDelay    time.Duration `mapstructure:"reconnect-max-delay" default:"2m" description:"upper bound on the redial delay"`
	ReconnectMaxAttempts int           `mapstructure:"reconnect-max-attempts" default:"10" description:"consecutive failed redials before the client closes, 0 retries forever"`
}

var durationType = reflect.TypeOf(time.Duration(0))

// DefaultConfig returns a Config filled from the default tags.
func DefaultConfig() Config {
	var cfg Config
	t := reflect.TypeOf(cfg)
	v := reflect.ValueOf(&cfg).Elem()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("default")
		if tag == "" {
			continue
		}
		value := v.Field(i)
		switch {
		case field.Type == durationType:
			if d, err := time.ParseDuration(tag); err == nil {
				value.SetInt(int64(d))
			}
		case value.Kind() == reflect.String:
			value.SetString(tag)
		case value.Kind() == reflect.Int:
			if n, err := strconv.Atoi(tag); err == nil {
				value.SetInt(int64(n))
			}
		}
	}
	return cfg
}

// BindFlags registers one flag per Config field on flags.
func BindFlags(flags *pflag.FlagSet) {
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name := field.Tag.Get("mapstructure")
		description := field.Tag.Get("description")
		defaultTag := field.Tag.Get("default")

		switch {
		case field.Type == durationType:
			d, _ := time.ParseDuration(defaultTag)
			flags.Duration(name, d, description)
		case field.Type.Kind() == reflect.String:
			flags.String(name, defaultTag, description)
		case field.Type.Kind() == reflect.Int:
			n, _ := strconv.Atoi(defaultTag)
			flags.Int(name, n, description)
		case field.Type.Kind() == reflect.Slice:
			flags.StringArray(name, nil, description)
		}
	}
}

// ParseOverflowPolicy parses the config spelling of an OverflowPolicy.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch strings.ToLower(strings.ReplaceAll(s, "_", "-")) {
	case "", "drop-oldest":
		return DropOldest, nil
	case "block":
		return Block, nil
	}
	return DropOldest, fmt.Errorf("unknown overflow policy %q", s)
}

// Options converts the config into dial options. The endpoint itself is
// passed to Dial separately.
func (cfg Config) Options() ([]DialOption, error) {
	policy, err := ParseOverflowPolicy(cfg.OverflowPolicy)
	if err != nil {
		return nil, err
	}

	reconnect := DefaultReconnectPolicy
	if cfg.ReconnectBaseDelay > 0 {
		reconnect.BaseDelay = cfg.ReconnectBaseDelay
	}
	if cfg.ReconnectMaxDelay > 0 {
		reconnect.MaxDelay = cfg.ReconnectMaxDelay
	}
	reconnect.MaxAttempts = cfg.ReconnectMaxAttempts

	opts := []DialOption{
		WithDefaultTimeout(cfg.Timeout),
		WithNotificationBuffer(cfg.NotificationBuffer),
		WithOverflowPolicy(policy),
		WithReconnectPolicy(reconnect),
	}
	if cfg.StreamEndpoint != "" {
		opts = append(opts, WithStreamEndpoint(cfg.StreamEndpoint))
	}
	for _, h := range cfg.Headers {
		key, value, ok := strings.Cut(h, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("header %q: want key=value", h)
		}
		opts = append(opts, WithHeader(strings.TrimSpace(key), strings.TrimSpace(value)))
	}
	return opts, nil
}
