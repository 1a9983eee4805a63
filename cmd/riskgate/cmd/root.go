package cmd

import (
	"github.com/spf13/cobra"

	"github.com/rustyeddy/riskgate/config"
	"github.com/rustyeddy/riskgate/logging"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "riskgate",
	Short: "Market data acquisition and reconciliation for portfolio risk",
	Long: `Riskgate serves portfolio risk analytics over HTTP.

It provides:
  - A persistent, expiring market data cache (SQLite or Redis)
  - Batch quote fetching from Yahoo Finance or Polygon
  - Reconciliation of caller-supplied and cached market data per request
  - Pricing and portfolio risk through an external engine

Configuration is read from --config (YAML or JSON), a .env file and the
environment, in that order of increasing precedence.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON)")
}

// loadConfig reads the configuration and applies its logging settings.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.Log)
	return cfg, nil
}
