// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

func newCallCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:     "call <method> [params-json]",
		Short:   "Issue one call and print its result",
		Example: `  chainrpc call getBalance '["83astBRguLMdt2h5U1Tpdq5tjFoJ6noeGwaY3mDLVcri"]'`,
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			params, err := parseParams(args[1:])
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			client, err := s.dial()
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, client.Close()) }()

			result, err := client.CallRaw(ctx, args[0], params)
			if err != nil {
				return err
			}

			var out bytes.Buffer
			if err := json.Indent(&out, result, "", "  "); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out.String())
			return err
		},
	}
}
