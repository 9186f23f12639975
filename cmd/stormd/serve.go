package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stormnet/storm-go/node"
	"github.com/stormnet/storm-go/session"
)

const maxRetryDelay = 5 * time.Minute

func serveCmd(c *cli) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the node",
		Long: `Open the store, accept peer sessions on the listen address and connect
to the configured peers. Runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen != "" {
				c.cfg.ListenAddr = listen
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.serve(ctx)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides config)")
	return cmd
}

func (c *cli) serve(ctx context.Context) error {
	store, err := c.openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	apps, err := c.cfg.AppList()
	if err != nil {
		return err
	}
	responder := node.NewResponder(store, node.NewAppRegistry(apps...), c.log)

	ln, err := session.Listen(c.cfg.ListenAddr)
	if err != nil {
		return err
	}
	opts := []node.PeerOption{node.WithProposeWindow(c.cfg.ProposeWindow)}
	srv := node.NewServer(responder, c.log, opts...)

	for _, target := range c.cfg.Peers {
		go c.keepConnected(ctx, target, responder, opts)
	}

	c.log.Info("node started",
		zap.String("listen", ln.Addr().String()),
		zap.Strings("apps", c.cfg.Apps),
		zap.String("backend", c.cfg.Backend))
	err = srv.Serve(ctx, ln)
	c.log.Info("node stopped")
	return err
}

// keepConnected maintains an outbound session to target, reconnecting
// with exponential backoff until ctx is done.
func (c *cli) keepConnected(ctx context.Context, target string, responder *node.Responder, opts []node.PeerOption) {
	opts = append([]node.PeerOption{node.WithResponder(responder), node.WithLogger(c.log)}, opts...)
	delay := time.Second

	for ctx.Err() == nil {
		peer, err := node.Connect(ctx, target, c.resolver(), opts...)
		if err != nil {
			c.log.Warn("failed to connect to peer, will retry",
				zap.String("target", target),
				zap.Error(err),
				zap.Duration("retry_in", delay))
		} else {
			delay = time.Second
			go func() {
				apps, err := peer.ListApps(ctx)
				if err != nil {
					return
				}
				names := make([]string, len(apps))
				for i, app := range apps {
					names[i] = app.String()
				}
				c.log.Info("connected to peer", zap.String("target", target), zap.Strings("apps", names))
			}()
			if err := peer.Run(ctx); err != nil && ctx.Err() == nil {
				c.log.Warn("peer session failed", zap.String("target", target), zap.Error(err))
			}
			_ = peer.Close()
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
		delay = min(delay*2, maxRetryDelay)
	}
}
