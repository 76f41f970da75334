package backtest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ticks.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadParsesRowsAndSkipsBadOnes(t *testing.T) {
	ticks, err := Load(writeCSV(t, `Time,Symbol,Market Center,Price,Size
09:30:00,AAPL,Q,150.25,100
09:30:01,MSFT,P,310.10,50
,,Q,1,1
09:30:02,TSLA,Q,not-a-number,10
09:30:03,NVDA,Q,500.5,abc
09:30:04,AMD,Q,-5,10
09:30:05,INTC,Q,35.5,0
short,row,only
09:30:06,AAPL,Q,151.00,200
`))
	require.NoError(t, err)
	require.Len(t, ticks, 4)

	symbols := make([]string, 0, len(ticks))
	for _, tick := range ticks {
		symbols = append(symbols, tick.Symbol)
	}
	assert.Equal(t, []string{"AAPL", "MSFT", "INTC", "AAPL"}, symbols)

	assert.Equal(t, 150.25, ticks[0].Price)
	assert.Equal(t, int64(100), ticks[0].Volume)
	assert.Equal(t, int64(0), ticks[2].Volume)
	assert.Equal(t, 151.00, ticks[3].Price)

	// Synthetic timestamps preserve file order.
	for i := 1; i < len(ticks); i++ {
		assert.Greater(t, ticks[i].TimestampUs, ticks[i-1].TimestampUs)
	}
}

func TestLoadIgnoresColumnsAfterSize(t *testing.T) {
	ticks, err := Load(writeCSV(t, `Time,Symbol,Market Center,Price,Size,CumBatsVol,CumSipVol
09:30:00,AAPL,Q,150.25,100,12345,67890
`))
	require.NoError(t, err)
	require.Len(t, ticks, 1)
	assert.Equal(t, "AAPL", ticks[0].Symbol)
	assert.Equal(t, int64(100), ticks[0].Volume)
}

func TestLoadHeaderOnly(t *testing.T) {
	ticks, err := Load(writeCSV(t, "Time,Symbol,Market Center,Price,Size\n"))
	require.NoError(t, err)
	assert.Empty(t, ticks)
}

func TestLoadEmptyFile(t *testing.T) {
	ticks, err := Load(writeCSV(t, ""))
	require.NoError(t, err)
	assert.Empty(t, ticks)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.csv"))
	assert.Error(t, err)
}
