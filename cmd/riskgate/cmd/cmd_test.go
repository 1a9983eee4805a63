package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/riskgate/config"
	"github.com/rustyeddy/riskgate/market"
	"github.com/rustyeddy/riskgate/provider"
	"github.com/rustyeddy/riskgate/quotestore"
)

// newTestConfig writes a config pointing at a fresh SQLite file.
func newTestConfig(t *testing.T) (string, string) {
	t.Helper()

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "quotes.db")
	cfg := config.Default()
	cfg.Store.DBPath = dbPath
	cfg.Log.Level = "error"

	cfgPath := filepath.Join(dir, "riskgate.yaml")
	require.NoError(t, cfg.SaveToFile(cfgPath))
	return cfgPath, dbPath
}

func seed(t *testing.T, dbPath string, quotes ...market.Quote) {
	t.Helper()

	s, err := quotestore.NewSQLite(dbPath)
	require.NoError(t, err)
	defer s.Close()
	for _, q := range quotes {
		_, err := s.Put(context.Background(), q)
		require.NoError(t, err)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		cfgFile = ""
		cacheExportOutput = ""
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "riskgate version "+version)
}

func TestCacheCommands(t *testing.T) {
	cfgPath, dbPath := newTestConfig(t)
	seed(t, dbPath,
		market.Quote{AssetID: "AAPL", Spot: 175.5, Volatility: 0.28, RiskFreeRate: 0.045, DividendYield: 0.005, Source: "yahoo"},
		market.Quote{AssetID: "MSFT", Spot: 410, Volatility: 0.25, RiskFreeRate: 0.045, Source: "yahoo"},
	)

	out, err := run(t, "cache", "list", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "AAPL")
	assert.Contains(t, out, "MSFT")

	out, err = run(t, "cache", "get", "aapl", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, `"spot": 175.5`)

	out, err = run(t, "cache", "delete", "AAPL", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Removed AAPL")

	_, err = run(t, "cache", "get", "AAPL", "--config", cfgPath)
	assert.ErrorContains(t, err, "no cached data for AAPL")

	out, err = run(t, "cache", "clear", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "cache cleared")

	out, err = run(t, "cache", "list", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No cached quotes")
}

func TestCacheExportImport(t *testing.T) {
	cfgPath, dbPath := newTestConfig(t)
	seed(t, dbPath,
		market.Quote{AssetID: "AAPL", Spot: 175.5, Volatility: 0.28, RiskFreeRate: 0.045, DividendYield: 0.005, Source: "yahoo"},
	)

	out, err := run(t, "cache", "export", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "asset_id,spot,vol,rate,dividend,source")
	assert.Contains(t, out, "AAPL,175.5,0.28,0.045,0.005,yahoo")

	csvPath := filepath.Join(t.TempDir(), "quotes.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(
		"asset_id,spot,vol,rate,dividend,source\n"+
			"msft,410,0.25,0.045,0.007,\n"+
			"SPY,520.1,0.18,0.045,0.012,polygon\n"), 0o644))

	out, err = run(t, "cache", "import", csvPath, "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 quotes")

	out, err = run(t, "cache", "get", "MSFT", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, `"source": "manual"`)

	out, err = run(t, "cache", "list", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "SPY")
	assert.Contains(t, out, "520.1000")
}

func TestCacheImportRejectsBadAsset(t *testing.T) {
	cfgPath, _ := newTestConfig(t)
	csvPath := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(
		"asset_id,spot,vol,rate,dividend,source\n"+
			"  ,1,0.2,0.04,0,\n"), 0o644))

	_, err := run(t, "cache", "import", csvPath, "--config", cfgPath)
	assert.ErrorContains(t, err, "row 1")
}

func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "riskgate.yaml")

	out, err := run(t, "config", "init", "--output", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Created default configuration")
	_, err = os.Stat(path)
	require.NoError(t, err)

	out, err = run(t, "config", "validate", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration valid")
	assert.Contains(t, out, "Engine: disabled")
}

func TestBuildAppWiresComponents(t *testing.T) {
	cfg := config.Default()
	cfg.Store.DBPath = filepath.Join(t.TempDir(), "quotes.db")
	cfg.Engine.URL = "http://localhost:9"

	a, err := buildApp(cfg)
	require.NoError(t, err)
	defer a.store.Close()

	assert.NotNil(t, a.fetcher)
	assert.NotNil(t, a.reconciler)
	assert.NotNil(t, a.engine)
	assert.Equal(t, provider.YahooName, a.client.Name())
	assert.NotNil(t, a.handler())
}

func TestNewSource(t *testing.T) {
	cfg := config.Default()
	cfg.Provider.RequestsPerMinute = 0

	src, err := newSource(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &provider.YahooSource{}, src)

	cfg.Provider.Name = "bloomberg"
	_, err = newSource(cfg, nil)
	assert.Error(t, err)
}

func TestOpenStoreUnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Backend = "mongo"
	_, err := openStore(cfg)
	assert.EqualError(t, err, fmt.Sprintf("unknown store backend %q", "mongo"))
}
