// Command stormd runs a Storm node and offers offline tools for splitting
// files into chunks and fetching containers from peers.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stormnet/storm-go/config"
	"github.com/stormnet/storm-go/logging"
	"github.com/stormnet/storm-go/session"
	"github.com/stormnet/storm-go/storage"
)

// cli holds state shared by the subcommands.
type cli struct {
	configFile string
	verbose    bool

	cfg config.Config
	log *zap.Logger
	out io.Writer
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out}

	rootCmd := &cobra.Command{
		Use:   "stormd",
		Short: "Storm peer-to-peer chunk storage node",
		Long: `stormd stores content-addressed chunks and containers and exchanges
them with other Storm peers over encrypted sessions.`,
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return c.setup() },
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.log != nil {
				_ = c.log.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&c.configFile, "config", "c", "", "config file path (default <datadir>/config)")
	rootCmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")

	rootCmd.AddCommand(
		serveCmd(c),
		splitCmd(c),
		idCmd(c),
		fetchCmd(c),
		appsCmd(c),
	)
	return rootCmd
}

// setup resolves the configuration (defaults, file, STORM_* environment,
// flags) and builds the logger.
func (c *cli) setup() error {
	path := c.configFile
	if path == "" {
		path = config.ConfigPath(config.DefaultDataDir())
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		if c.configFile != "" || !errors.Is(err, config.ErrConfigNotFound) {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = config.DefaultConfig()
	}
	if err := config.ApplyEnv(&cfg, config.Environ()); err != nil {
		return err
	}
	if c.verbose {
		cfg.LogLevel = "debug"
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return err
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	c.cfg, c.log = cfg, log
	return nil
}

func (c *cli) openStore() (storage.Store, error) {
	opts, err := c.cfg.StoreOptions()
	if err != nil {
		return nil, err
	}
	return storage.Open(opts)
}

// resolver returns the DNSSEC resolver when an upstream is configured.
func (c *cli) resolver() session.DNSResolver {
	if c.cfg.DNSUpstream != "" {
		return session.NewDNSSECResolver(c.cfg.DNSUpstream)
	}
	return session.SystemResolver
}
