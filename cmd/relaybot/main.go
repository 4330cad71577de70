package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"relaybot/internal/app"
	"relaybot/internal/config"
	"relaybot/internal/logging"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "relaybot",
		Short:         "Slack command bot relaying a Twitter timeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config file")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Start the bot (default)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd.Context(), configPath)
			},
		},
		&cobra.Command{
			Use:   "channels",
			Short: "List the channels visible to the bot token",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return listChannels(cmd.Context(), configPath)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), "relaybot", version)
			},
		},
	)
	return root
}

func setup(path string) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return nil, zerolog.Nop(), err
	}
	log := logging.New(cfg.Log)
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("invalid config")
		return nil, log, err
	}
	return cfg, log, nil
}

func run(parent context.Context, path string) error {
	cfg, log, err := setup(path)
	if err != nil {
		return err
	}

	a, err := app.New(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("startup failed")
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", version).Msg("starting bot, press CTRL+C to quit")
	return a.Run(ctx)
}

func listChannels(parent context.Context, path string) error {
	cfg, log, err := setup(path)
	if err != nil {
		return err
	}

	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}

	channels, ok := a.Channels(parent)
	if !ok {
		return fmt.Errorf("listing channels failed")
	}
	for _, c := range channels {
		fmt.Printf("%s\t#%s\n", c.ID, c.Name)
	}
	return nil
}
