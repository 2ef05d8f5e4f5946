package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dunamismax/boothflow/internal/config"
)

type options struct {
	configPath string
	dataDir    string
	jsonOutput bool
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "boothctl",
		Short:         "Photobooth capture pipeline tools",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Booth settings file (TOML)")
	rootCmd.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "Root directory holding tmp, images, thumbs and keying")
	rootCmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Print the raw JSON response")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level")

	rootCmd.AddCommand(newProcessCommand(opts))
	rootCmd.AddCommand(newVideoCommand(opts))
	rootCmd.AddCommand(newLayoutsCommand())
	rootCmd.AddCommand(newCheckCommand(opts))

	return rootCmd
}

// loadConfig reads the environment and applies the command line overrides.
func (o *options) loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if o.configPath != "" {
		if err := config.LoadBoothFile(o.configPath, &cfg.Booth); err != nil {
			return config.Config{}, err
		}
	}
	if o.dataDir != "" {
		cfg.Booth.Folders = config.FoldersUnder(o.dataDir)
	}
	if err := cfg.Booth.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("booth settings: %w", err)
	}
	return cfg, nil
}

func ensureFolders(f config.Folders) error {
	for _, dir := range []string{f.Temp, f.Images, f.Thumbs, f.Keying} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
