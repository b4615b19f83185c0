package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lemonberrylabs/numberhub/pkg/api"
	grpcapi "github.com/lemonberrylabs/numberhub/pkg/api/grpc"
	"github.com/lemonberrylabs/numberhub/pkg/units"
)

func (a *cli) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST and gRPC servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().String("host", "", "bind address (default 0.0.0.0)")
	cmd.Flags().Int("port", 0, "HTTP server port (default 8787)")
	cmd.Flags().Int("grpc-port", 0, "gRPC server port (default 8788)")
	return cmd
}

func (a *cli) serve(ctx context.Context) error {
	be, err := build(ctx, a.cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := be.Close(); err != nil {
			slog.Warn("failed to close store", "error", err)
		}
	}()

	logger := slog.Default()
	rest := api.New(be.svc, api.WithLogger(logger))
	rpc := grpcapi.New(be.svc, grpcapi.WithLogger(logger))

	addr := a.cfg.Server.Addr()
	grpcAddr := a.cfg.Server.GRPCAddr()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("REST server listening", "addr", addr)
		return rest.Listen(addr)
	})
	g.Go(func() error {
		logger.Info("gRPC server listening", "addr", grpcAddr)
		return rpc.Serve(grpcAddr)
	})

	if be.rates != nil {
		g.Go(func() error {
			bases := currencyIDs(be.svc.Catalog())
			if err := be.currency.Prefetch(gctx, bases); err != nil {
				logger.Warn("initial rate prefetch incomplete", "error", err)
			}
			return nil
		})
		g.Go(func() error {
			logger.Info("watching rate file", "path", be.rates.Path())
			return be.rates.Watch(gctx, func(err error) {
				if err != nil {
					logger.Warn("rate file reload failed", "path", be.rates.Path(), "error", err)
					return
				}
				be.currency.Invalidate()
				logger.Info("rate file reloaded", "path", be.rates.Path())
			})
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		rpc.GracefulStop()
		return rest.Shutdown()
	})

	return g.Wait()
}

func currencyIDs(c *units.Catalog) []string {
	group := c.Group(units.GroupCurrency)
	ids := make([]string, 0, len(group))
	for _, u := range group {
		ids = append(ids, u.ID)
	}
	return ids
}
