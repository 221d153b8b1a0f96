// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/luxfi/chainrpc"
)

const (
	flagConfig   = "config"
	flagLogLevel = "log-level"
	envPrefix    = "CHAINRPC"
)

// settings is what the persistent flags resolve to once config file,
// environment and command line are merged.
type settings struct {
	client   chainrpc.Config
	logLevel zerolog.Level
}

func newRootCmd() *cobra.Command {
	s := new(settings)
	cmd := &cobra.Command{
		Use:           "chainrpc",
		Short:         "Talk to a node's JSON-RPC and pubsub APIs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return s.load(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	chainrpc.BindFlags(flags)
	flags.String(flagConfig, "", "config file, any format viper reads")
	flags.String(flagLogLevel, "info", "log level, values: debug, info, warn, error")

	cmd.AddCommand(newCallCmd(s), newSubscribeCmd(s))
	return cmd
}

// load merges, lowest precedence first, flag defaults, the config file, the
// CHAINRPC_* environment and flags set on the command line.
func (s *settings) load(cmd *cobra.Command) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	if path, _ := cmd.Flags().GetString(flagConfig); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
	}

	s.client = chainrpc.DefaultConfig()
	if err := v.Unmarshal(&s.client); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}

	level, err := zerolog.ParseLevel(v.GetString(flagLogLevel))
	if err != nil {
		return err
	}
	s.logLevel = level
	return nil
}

func (s *settings) logger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(s.logLevel).
		With().
		Timestamp().
		Logger()
}

func (s *settings) dial() (*chainrpc.Client, error) {
	opts, err := s.client.Options()
	if err != nil {
		return nil, err
	}
	opts = append(opts, chainrpc.WithLogger(s.logger()))
	return chainrpc.Dial(s.client.Endpoint, opts...)
}

// parseParams reads the optional positional params argument, a JSON array.
func parseParams(args []string) ([]any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	var params []any
	dec := json.NewDecoder(strings.NewReader(args[0]))
	dec.UseNumber()
	if err := dec.Decode(&params); err != nil {
		return nil, fmt.Errorf("params must be a JSON array: %w", err)
	}
	return params, nil
}
