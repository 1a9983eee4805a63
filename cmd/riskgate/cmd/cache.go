package cmd

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/riskgate/market"
	"github.com/rustyeddy/riskgate/quotestore"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or manage the market data cache",
	Long: `Query and manage cached quotes directly in the configured store.

Subcommands:
  list    - List every cached quote with its age
  get     - Print one cached quote as JSON
  delete  - Remove one cached quote
  clear   - Remove every cached quote
  export  - Write every cached quote as CSV
  import  - Load quotes from CSV (explicit cache population)

Examples:
  riskgate cache list
  riskgate cache get AAPL
  riskgate cache clear
  riskgate cache export -o quotes.csv
  riskgate cache import quotes.csv`,
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached quotes",
	Args:  cobra.NoArgs,
	RunE:  runCacheList,
}

var cacheGetCmd = &cobra.Command{
	Use:   "get <asset-id>",
	Short: "Print a cached quote",
	Args:  cobra.ExactArgs(1),
	RunE:  runCacheGet,
}

var cacheDeleteCmd = &cobra.Command{
	Use:   "delete <asset-id>",
	Short: "Remove a cached quote",
	Args:  cobra.ExactArgs(1),
	RunE:  runCacheDelete,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached quote",
	Args:  cobra.NoArgs,
	RunE:  runCacheClear,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheGetCmd)
	cacheCmd.AddCommand(cacheDeleteCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheExportCmd)
	cacheCmd.AddCommand(cacheImportCmd)

	cacheExportCmd.Flags().StringVarP(&cacheExportOutput, "output", "o", "", "output CSV file (default stdout)")
}

func withStore(fn func(s quotestore.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()
	return fn(s)
}

func runCacheList(cmd *cobra.Command, args []string) error {
	return withStore(func(s quotestore.Store) error {
		all, err := s.GetAll(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(all) == 0 {
			fmt.Fprintln(out, "No cached quotes")
			return nil
		}

		ids := make([]string, 0, len(all))
		for id := range all {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		now := time.Now()
		table := tablewriter.NewWriter(out)
		table.SetHeader([]string{"Asset", "Spot", "Vol", "Rate", "Div", "Source", "Age"})
		table.SetAlignment(tablewriter.ALIGN_RIGHT)
		for _, id := range ids {
			q := all[id]
			table.Append([]string{
				q.AssetID,
				fmt.Sprintf("%.4f", q.Spot),
				fmt.Sprintf("%.4f", q.Volatility),
				fmt.Sprintf("%.4f", q.RiskFreeRate),
				fmt.Sprintf("%.4f", q.DividendYield),
				q.Source,
				q.Age(now).Truncate(time.Second).String(),
			})
		}
		table.Render()
		return nil
	})
}

func runCacheGet(cmd *cobra.Command, args []string) error {
	id, err := market.NormalizeAssetID(args[0])
	if err != nil {
		return err
	}
	return withStore(func(s quotestore.Store) error {
		q, ok, err := s.Get(cmd.Context(), id, time.Duration(math.MaxInt64))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no cached data for %s", id)
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(q)
	})
}

func runCacheDelete(cmd *cobra.Command, args []string) error {
	id, err := market.NormalizeAssetID(args[0])
	if err != nil {
		return err
	}
	return withStore(func(s quotestore.Store) error {
		ok, err := s.Delete(cmd.Context(), id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no cached data for %s", id)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed %s\n", id)
		return nil
	})
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	return withStore(func(s quotestore.Store) error {
		if err := s.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Market data cache cleared")
		return nil
	})
}
