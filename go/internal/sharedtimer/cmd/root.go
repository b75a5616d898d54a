package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mcdev12/fokus/go/internal/config"
)

type rootOptions struct {
	configPath string
	natsURL    string
	clientID   string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:          "fokusctl",
		Short:        "Control the shared fokus timer and run focus sessions",
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if opts.verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", config.DefaultPath, "path to fokus.yaml")
	flags.StringVar(&opts.natsURL, "nats-url", "", "NATS server URL (overrides config)")
	flags.StringVar(&opts.clientID, "client-id", "", "client id written as updatedBy (overrides config)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(
		newTimerCmd(opts),
		newFocusCmd(opts),
	)

	return rootCmd
}

// load reads the config file and applies flag overrides.
func (o *rootOptions) load() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if o.natsURL != "" {
		cfg.NATS.URL = o.natsURL
	}
	if o.clientID != "" {
		cfg.Timer.ClientID = o.clientID
	}
	return cfg, nil
}
