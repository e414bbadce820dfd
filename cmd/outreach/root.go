package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"outreach-engine-go/internal/app"
	"outreach-engine-go/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "outreach",
	Short: "Operator CLI for the outreach engine",
	Long: `outreach drives the email outreach pipeline: qualification, batching,
approval, sending under warm-up limits, follow-ups, and reply tracking.`,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		} else {
			logrus.SetLevel(logrus.WarnLevel)
		}
	},
}

var verbose bool

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// newApp loads configuration and assembles the component graph. dryRun
// forces dry-run mode regardless of configuration.
func newApp(dryRun bool) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if dryRun {
		cfg.Outreach.DryRun = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	a, _, err := app.Build(cfg)
	if err != nil {
		return nil, err
	}
	return a, nil
}
