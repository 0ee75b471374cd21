// Package main provides the sdm binary entry point.
// sdm decides which delivery goals a push needs and how each would be
// built and deployed.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/adrianpk/sdm/internal/cli"
	"github.com/adrianpk/sdm/internal/config"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "sdm"
)

func main() {
	// A missing .env is normal.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error: load .env: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type globals struct {
	configPath string
	logLevel   string
}

func (g *globals) setup() (*config.Config, *slog.Logger, error) {
	var (
		cfg *config.Config
		err error
	)
	if g.configPath != "" {
		cfg, err = config.LoadFile(g.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	level := cfg.LogLevel
	if g.logLevel != "" {
		level = g.logLevel
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(level)}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func rootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Software delivery machine",
		Long: `sdm resolves the delivery goals a push needs (checks, build, deploy,
verify) from a set of predicate-guarded rules, and picks the builder and
deployer that would realise them. It plans; it does not execute.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		initCmd(),
		resolveCmd(g, false),
		resolveCmd(g, true),
		freezeCmd(g),
		serveCmd(g),
		versionCmd(),
	)
	return cmd
}

func initCmd() *cobra.Command {
	var local bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.RunInit(local, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "Write .sdm.yml in the current directory instead of the global config")
	return cmd
}

func resolveCmd(g *globals, disposal bool) *cobra.Command {
	var opts cli.ResolveOptions
	opts.Disposal = disposal

	use, short := "resolve [dir]", "Plan goals for a push"
	if disposal {
		use, short = "dispose [dir]", "Plan goals for disposing of a repository"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long: short + `.

The push is read from --push (a YAML or JSON description) or, without it,
from the last commit of the git checkout in dir (default ".").`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.setup()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				opts.Source.Dir = args[0]
			}
			return cli.RunResolve(cmd.Context(), cfg, opts, cmd.OutOrStdout(), logger)
		},
	}
	cmd.Flags().StringVarP(&opts.Source.File, "push", "p", "", "Push description file")
	cmd.Flags().BoolVar(&opts.Source.DeployEnabled, "deploy-enabled", false, "Treat the checkout as deploy-enabled")
	cmd.Flags().BoolVar(&opts.Source.Public, "public", false, "Treat the checkout as a public repository")
	cmd.Flags().StringVarP(&opts.Format, "output", "o", cli.FormatText, "Output format (text, json)")
	return cmd
}

func freezeCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "freeze",
		Short: "Manage the deployment freeze",
	}

	run := func(action cli.FreezeAction, reason *string) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.setup()
			if err != nil {
				return err
			}
			store, closeStore, err := cli.OpenFreezeStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore()
			r := ""
			if reason != nil {
				r = *reason
			}
			return cli.RunFreeze(cmd.Context(), store, action, r, cmd.OutOrStdout(), logger)
		}
	}

	var reason string
	on := &cobra.Command{
		Use:   "on",
		Short: "Freeze deployments",
		Args:  cobra.NoArgs,
		RunE:  run(cli.FreezeOn, &reason),
	}
	on.Flags().StringVarP(&reason, "reason", "r", "", "Why deployments are frozen")

	cmd.AddCommand(
		on,
		&cobra.Command{
			Use:   "off",
			Short: "Resume deployments",
			Args:  cobra.NoArgs,
			RunE:  run(cli.FreezeOff, nil),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the freeze state",
			Args:  cobra.NoArgs,
			RunE:  run(cli.FreezeStatus, nil),
		},
	)
	return cmd
}

func serveCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Resolve pushes received over NATS and publish the goals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.setup()
			if err != nil {
				return err
			}
			return cli.RunServe(cmd.Context(), cfg, logger)
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	}
}
