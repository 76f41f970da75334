// Package report renders the trade log as CSV and the run metrics as
// a console summary.
package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"winter/internal/backtest"
	"winter/internal/model"
	"winter/internal/model/enum"
)

const tradeHeader = "Time,Symbol,Side,Quantity,Price,Value,P&L,Z-Score"

// WriteTrades emits one CSV row per fill. The P&L column is blank on
// buy rows; monetary values carry two decimals and z-scores four.
func WriteTrades(w io.Writer, fills []model.Fill) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(tradeHeader + "\n"); err != nil {
		return errors.Wrap(err, "write trade log header")
	}
	for _, f := range fills {
		pnl := ""
		if f.HasPnL {
			pnl = strconv.FormatFloat(f.RealizedPnL, 'f', 2, 64)
		}
		row := strings.Join([]string{
			strconv.FormatInt(f.TimestampUs, 10),
			escape(f.Symbol),
			f.Side.String(),
			strconv.FormatInt(f.Quantity, 10),
			strconv.FormatFloat(f.Price, 'f', 2, 64),
			strconv.FormatFloat(f.TotalValue(), 'f', 2, 64),
			pnl,
			strconv.FormatFloat(f.ZScore, 'f', 4, 64),
		}, ",")
		if _, err := bw.WriteString(row + "\n"); err != nil {
			return errors.Wrap(err, "write trade log row")
		}
	}
	return errors.Wrap(bw.Flush(), "flush trade log")
}

// WriteTradesFile writes the trade log CSV to path.
func WriteTradesFile(path string, fills []model.Fill) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create trade log").With("path", path)
	}
	defer f.Close()
	if err := WriteTrades(f, fills); err != nil {
		return err
	}
	logs.Infof("exported %d trades to %s", len(fills), path)
	return nil
}

// escape wraps fields holding commas, double quotes, or newlines in
// double quotes with inner quotes doubled.
func escape(field string) string {
	if !strings.ContainsAny(field, ",\"\n") {
		return field
	}
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}

// WriteSummary renders run metrics as a console block.
func WriteSummary(w io.Writer, m backtest.Metrics) error {
	lines := []string{
		"==================== Backtest Results ====================",
		fmt.Sprintf("Initial Capital:    $%.2f", m.InitialCapital),
		fmt.Sprintf("Final Equity:       $%.2f", m.FinalEquity),
		fmt.Sprintf("Total Return:       $%.2f (%.2f%%)", m.TotalReturn, m.TotalReturnPct),
		fmt.Sprintf("Annualized Return:  %.2f%%", m.AnnualizedReturn*100),
		fmt.Sprintf("Sharpe Ratio:       %.2f", m.SharpeRatio),
		fmt.Sprintf("Max Drawdown:       $%.2f (%.2f%%)", m.MaxDrawdown, m.MaxDrawdownPct),
		fmt.Sprintf("Total Trades:       %d", m.TotalTrades),
		fmt.Sprintf("Win Rate:           %.2f%%", m.WinRate*100),
		fmt.Sprintf("Profit Factor:      %.2f", m.ProfitFactor),
		"===========================================================",
	}
	_, err := io.WriteString(w, strings.Join(lines, "\n")+"\n")
	return errors.Wrap(err, "write summary")
}

// FillSides tallies buys and sells for the closing log line.
func FillSides(fills []model.Fill) (buys, sells int) {
	for _, f := range fills {
		switch f.Side {
		case enum.OrderSideBuy:
			buys++
		case enum.OrderSideSell:
			sells++
		}
	}
	return buys, sells
}
