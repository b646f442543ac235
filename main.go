package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/kommendorkapten/bhdns/api"
	"github.com/kommendorkapten/bhdns/blocklist"
	"github.com/kommendorkapten/bhdns/config"
	"github.com/kommendorkapten/bhdns/privilege"
	"github.com/kommendorkapten/bhdns/server"
	"github.com/semihalev/zlog/v2"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const version = "1.0.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgPath  string
		headless bool
	)

	cmd := &cobra.Command{
		Use:           "bhdns",
		Short:         "Blocking DNS proxy",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			err := start(ctx, cfgPath, headless)
			if err != nil {
				zlog.Error("bhdns failed", "error", err.Error())
			}
			return err
		},
	}

	cmd.SetVersionTemplate("bhdns v{{.Version}}\n")
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", config.DefaultFile,
		"location of the config file, if not found it will be generated")
	cmd.Flags().BoolVarP(&headless, "headless", "d", false, "do not print statistics on exit")

	cmd.AddCommand(newCheckCmd(&cfgPath), newGenConfigCmd())

	return cmd
}

func newCheckCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Load the config and blocklists, then exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath, version)
			if err != nil {
				return err
			}

			bl, wl, err := loadLists(cfg)
			if err != nil {
				return err
			}
			defer bl.Destroy()
			defer wl.Destroy()

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "blocked domains: %d\nwhitelisted domains: %d\n",
				bl.Len(), wl.Len())
			return err
		},
	}
}

func newGenConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gen-config <path>",
		Short: "Write the default config to path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err == nil {
				return fmt.Errorf("%s already exists", args[0])
			}
			return config.Generate(args[0])
		},
	}
}

func start(ctx context.Context, cfgPath string, headless bool) error {
	cfg, err := config.Load(cfgPath, version)
	if err != nil {
		return err
	}

	if err := setupLogging(cfg.LogLevel); err != nil {
		return err
	}

	zlog.Info("Starting bhdns...", "version", version)

	bl, wl, err := loadLists(cfg)
	if err != nil {
		return err
	}
	defer bl.Destroy()
	defer wl.Destroy()

	srv, err := server.New(cfg, bl, wl)
	if err != nil {
		return err
	}
	srv.SetHeadless(headless)

	if err := privilege.Drop(cfg.User); err != nil {
		srv.Close()
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })
	g.Go(func() error { return api.New(cfg, bl, wl).Run(ctx) })

	err = g.Wait()

	zlog.Info("Stopping bhdns...")

	return err
}

// loadLists builds the blocklist from the configured file and manual
// entries, and the whitelist, nil when empty.
func loadLists(cfg *config.Config) (bl, wl *blocklist.Blocklist, err error) {
	bl, err = blocklist.Build(cfg.BlockListFile)
	if err != nil {
		return nil, nil, err
	}

	for _, name := range cfg.Blocklist {
		if err := bl.Insert(name); err != nil {
			zlog.Warn("Invalid blocklist entry skipped", "domain", name, "error", err.Error())
		}
	}

	if len(cfg.Whitelist) == 0 {
		return bl, nil, nil
	}

	wl = blocklist.New()
	for _, name := range cfg.Whitelist {
		if err := wl.Insert(name); err != nil {
			zlog.Warn("Invalid whitelist entry skipped", "domain", name, "error", err.Error())
		}
	}

	return bl, wl, nil
}

var errLogLevel = errors.New("log verbosity level unknown")

func parseLevel(s string) (zlog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return zlog.LevelDebug, nil
	case "", "info":
		return zlog.LevelInfo, nil
	case "warn", "warning":
		return zlog.LevelWarn, nil
	case "error", "crit":
		return zlog.LevelError, nil
	}

	return zlog.LevelInfo, fmt.Errorf("%w: %q", errLogLevel, s)
}

func setupLogging(level string) error {
	lvl, err := parseLevel(level)
	if err != nil {
		return err
	}

	logger := zlog.NewStructured()
	logger.SetWriter(zlog.StdoutTerminal())
	logger.SetLevel(lvl)
	zlog.SetDefault(logger)

	return nil
}
