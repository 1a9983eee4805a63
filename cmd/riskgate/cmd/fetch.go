package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <ticker>...",
	Short: "Fetch quotes into the cache",
	Long: `Fetch market data for one or more tickers and store it in the cache.
Fresh cached quotes are reused unless --force is given.

Example:
  riskgate fetch AAPL MSFT GOOGL --force`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFetch,
}

var fetchForce bool

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().BoolVarP(&fetchForce, "force", "f", false, "bypass the cache and refetch")
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.store.Close()

	res := a.fetcher.FetchMultiple(cmd.Context(), args, fetchForce)

	out := cmd.OutOrStdout()
	for _, o := range res.Outcomes {
		if o.OK() {
			fmt.Fprintf(out, "✓ %-8s spot=%.4f vol=%.4f rate=%.4f div=%.4f (%s)\n",
				o.Ticker, o.Quote.Spot, o.Quote.Volatility, o.Quote.RiskFreeRate, o.Quote.DividendYield, o.Quote.Source)
			continue
		}
		fmt.Fprintf(out, "✗ %-8s %v\n", o.Ticker, o.Err)
	}

	if failed := len(res.Failed()); failed > 0 {
		return fmt.Errorf("%d of %d tickers failed", failed, res.Total())
	}
	return nil
}
