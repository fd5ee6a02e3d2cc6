package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/altsecops/findings-console/internal/config"
	"github.com/altsecops/findings-console/internal/logging"
)

var (
	cfgPath string
	cfg     *config.Config
	log     *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "console",
	Short: "Findings correlation & incremental retrieval console",
	Long: `console drives the findings backend: it retrieves findings page by
page under a server-side filter, correlates them with AI-triage verdicts from
pipeline runs, and serves or exports the materialized view.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := cfgPath
		if v := os.Getenv("CONFIG_PATH"); v != "" && !cmd.Flags().Changed("config") {
			path = v
		}
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return err
		}
		log = logging.New(cfg.Logging.Level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "path to config file")
}

func main() {
	cobra.CheckErr(rootCmd.Execute())
}
