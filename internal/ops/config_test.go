package ops

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "winter.conf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadStrategyMapping(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
# strategy ids
1 = MeanReversion
2: StatArbitrage

initial_balance = 250000
socket_endpoint: "ws://localhost:5555/feed"
`))
	require.NoError(t, err)

	name, ok := cfg.StrategyName(1)
	require.True(t, ok)
	assert.Equal(t, "MeanReversion", name)

	name, ok = cfg.StrategyName(2)
	require.True(t, ok)
	assert.Equal(t, "StatArbitrage", name)

	_, ok = cfg.StrategyName(9)
	assert.False(t, ok)

	assert.Equal(t, 250000.0, cfg.InitialBalance)
	assert.Equal(t, "ws://localhost:5555/feed", cfg.SocketEndpoint)
}

func TestLoadTrimsQuotesAndWhitespace(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
  1   =   "MeanReversion"
archive_dsn = "host=localhost user=winter dbname=winter"
`))
	require.NoError(t, err)

	name, _ := cfg.StrategyName(1)
	assert.Equal(t, "MeanReversion", name)
	assert.Equal(t, "host=localhost user=winter dbname=winter", cfg.ArchiveDSN)
}

func TestLoadEngineTuning(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
market_data_capacity = 4096
order_capacity = 512
batch_size = 32
strategy_cpu = 2
execution_cpu = 3
`))
	require.NoError(t, err)
	assert.Equal(t, 4096, cfg.MarketDataCapacity)
	assert.Equal(t, 512, cfg.OrderCapacity)
	assert.Equal(t, 32, cfg.BatchSize)
	assert.Equal(t, 2, cfg.StrategyCPU)
	assert.Equal(t, 3, cfg.ExecutionCPU)
}

func TestDefaultsWhenAbsent(t *testing.T) {
	cfg, err := Load(writeConfig(t, "# empty\n"))
	require.NoError(t, err)
	assert.Equal(t, 1_000_000.0, cfg.InitialBalance)
	assert.Equal(t, -1, cfg.StrategyCPU)
	assert.Equal(t, -1, cfg.ExecutionCPU)
	assert.Empty(t, cfg.Strategies)
}

func TestStrategyParams(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
meanreversion.window = 30
meanreversion.entry_threshold = 1.8
statarbitrage.capital = 2000000
`))
	require.NoError(t, err)

	params := cfg.StrategyParams("MeanReversion")
	assert.Equal(t, map[string]string{
		"window":          "30",
		"entry_threshold": "1.8",
	}, params)

	assert.Equal(t, map[string]string{"capital": "2000000"}, cfg.StrategyParams("StatArbitrage"))
	assert.Empty(t, cfg.StrategyParams("Unknown"))
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.conf"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "no separator here\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "initial_balance = not-a-number\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "batch_size = many\n"))
	assert.Error(t, err)
}
