package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stormnet/storm-go/node"
	"github.com/stormnet/storm-go/storm"
)

// connect dials target and runs the peer until the returned stop is called.
func (c *cli) connect(ctx context.Context, target string) (*node.Peer, func(), error) {
	peer, err := node.Connect(ctx, target, c.resolver(),
		node.WithLogger(c.log), node.WithProposeWindow(c.cfg.ProposeWindow))
	if err != nil {
		return nil, nil, err
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = peer.Run(ctx)
	}()
	stop := func() {
		_ = peer.Close()
		<-done
	}
	return peer, stop, nil
}

func commandContext(cmd *cobra.Command, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// parseContainerID accepts the bech32 form or 64 hex digits.
func parseContainerID(s string) (storm.ContainerID, error) {
	id, err := storm.ParseContainerID(s)
	if err == nil {
		return id, nil
	}
	if hexID, hexErr := storm.ContainerIDFromHex(s); hexErr == nil {
		return hexID, nil
	}
	return storm.ContainerID{}, err
}

func fetchCmd(c *cli) *cobra.Command {
	var (
		appName string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "fetch <addr|domain> <message-id> <container-id> <out>",
		Short: "Fetch a container from a peer and write its payload",
		Long: `Pull a container and its missing chunks from a peer, authorized by the
message that attaches it, cache them in the local store and write the
reassembled payload to <out>. A domain is resolved through _storm._tcp
SRV records.`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := storm.ParseApp(appName)
			if err != nil {
				return err
			}
			mid, err := storm.MesgIDFromHex(args[1])
			if err != nil {
				return err
			}
			cid, err := parseContainerID(args[2])
			if err != nil {
				return err
			}

			store, err := c.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ctx, cancel := commandContext(cmd, timeout)
			defer cancel()
			peer, stop, err := c.connect(ctx, args[0])
			if err != nil {
				return err
			}
			defer stop()

			container, payload, err := peer.Fetch(ctx, app, mid, cid, store)
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[3], payload, 0600); err != nil {
				return fmt.Errorf("write %s: %w", args[3], err)
			}
			fmt.Fprintf(c.out, "%s %s %d bytes -> %s\n", cid.Bech32(), container.MIME, len(payload), args[3])
			return nil
		},
	}

	cmd.Flags().StringVar(&appName, "app", "storage", "application the message belongs to")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "overall fetch timeout")
	return cmd
}

func appsCmd(c *cli) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "apps <addr|domain>",
		Short: "List the applications a peer serves",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd, timeout)
			defer cancel()
			peer, stop, err := c.connect(ctx, args[0])
			if err != nil {
				return err
			}
			defer stop()

			apps, err := peer.ListApps(ctx)
			if err != nil {
				return err
			}
			for _, app := range apps {
				fmt.Fprintf(c.out, "%s\t0x%04x\t%s\n", app, app.Code(), app.Class())
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "discovery timeout")
	return cmd
}
