// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

const (
	flagCount       = "count"
	flagMetricsAddr = "metrics-addr"

	shutdownTimeout = 5 * time.Second
)

// notificationLine is one line of subscribe output.
type notificationLine struct {
	Method       string          `json:"method"`
	Subscription uint64          `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

func newSubscribeCmd(s *settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "subscribe <method> [params-json]",
		Short:   "Open a subscription and print notifications as JSON lines",
		Example: `  chainrpc subscribe slotSubscribe --count 5`,
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			params, err := parseParams(args[1:])
			if err != nil {
				return err
			}
			count, _ := cmd.Flags().GetInt(flagCount)
			metricsAddr, _ := cmd.Flags().GetString(flagMetricsAddr)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			client, err := s.dial()
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, client.Close()) }()

			g, ctx := errgroup.WithContext(ctx)
			if metricsAddr != "" {
				serveMetrics(ctx, g, metricsAddr)
			}

			sub, err := client.Subscribe(ctx, args[0], params)
			if err != nil {
				cancel()
				return multierr.Append(err, g.Wait())
			}

			g.Go(func() error {
				enc := json.NewEncoder(cmd.OutOrStdout())
				seen := 0
				for n := range sub.Notifications() {
					line := notificationLine{Method: n.Method, Subscription: n.Subscription, Result: n.Result}
					if err := enc.Encode(line); err != nil {
						return err
					}
					if seen++; count > 0 && seen >= count {
						cancel()
						return nil
					}
				}
				// The channel closes on unsubscribe, shutdown or when the node ends the topic.
				if err := sub.Err(); err != nil && ctx.Err() == nil {
					return err
				}
				cancel()
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				unsubCtx, unsubCancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer unsubCancel()
				sub.Unsubscribe(unsubCtx)
				return nil
			})
			return g.Wait()
		},
	}

	cmd.Flags().Int(flagCount, 0, "exit after this many notifications, 0 runs until interrupted")
	cmd.Flags().String(flagMetricsAddr, "", "serve prometheus metrics on this address")
	return cmd
}

// serveMetrics exposes the client metrics until ctx is done.
func serveMetrics(ctx context.Context, g *errgroup.Group, addr string) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: shutdownTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
