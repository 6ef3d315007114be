package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/terra-clan/ciel-content/internal/config"
	"github.com/terra-clan/ciel-content/internal/logging"
	"github.com/terra-clan/ciel-content/pkg/client"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "ciel-content",
	Short:        "CIEL content browser",
	Long:         "ciel-content browses, likes and comments the CIEL programme's articles and formations, as a CLI or as an HTTP service.",
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		level, format := cfg.Logging.Level, cfg.Logging.Format
		if verbose {
			level = "debug"
		}
		// one-shot commands print for humans; only serve keeps JSON logs
		if cmd.Name() != "serve" {
			format = "text"
			if !verbose {
				level = "warn"
			}
		}
		slog.SetDefault(logging.NewWithWriter(os.Stderr, level, format))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(articlesCmd)
	rootCmd.AddCommand(articleCmd)
	rootCmd.AddCommand(likeCmd)
	rootCmd.AddCommand(commentCmd)
	rootCmd.AddCommand(formationsCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("ciel-content", version)
	},
}

func newClient() *client.Client {
	return client.NewClient(cfg.Upstream.BaseURL,
		client.WithTimeout(cfg.Upstream.Timeout),
		client.WithUserAgent(cfg.Upstream.UserAgent),
	)
}
