package backtest

import (
	"fmt"
	"strings"
	"time"
)

// FormatSummary renders the metrics as a plain-text report
func FormatSummary(m Metrics, generatedAt time.Time) string {
	var b strings.Builder

	b.WriteString("Performance Summary Report\n")
	b.WriteString("==========================\n")
	fmt.Fprintf(&b, "Generated on: %s\n\n", generatedAt.Format("2006-01-02 15:04:05"))

	b.WriteString("Return Metrics\n")
	b.WriteString("--------------\n")
	fmt.Fprintf(&b, "Total Return: %.2f%%\n", m.Returns.TotalReturn)
	fmt.Fprintf(&b, "Annualized Return: %.2f%%\n", m.Returns.AnnualizedReturn)
	fmt.Fprintf(&b, "Volatility (Ann.): %.2f%%\n", m.Returns.Volatility)
	fmt.Fprintf(&b, "Return/Volatility: %.2f\n\n", m.Returns.SharpeRatio)

	b.WriteString("Risk Metrics\n")
	b.WriteString("------------\n")
	fmt.Fprintf(&b, "Maximum Drawdown: %.2f%%\n", m.Drawdown.Max)
	fmt.Fprintf(&b, "Average Drawdown: %.2f%%\n", m.Drawdown.Average)
	fmt.Fprintf(&b, "Current Drawdown: %.2f%%\n\n", m.Drawdown.Current)

	b.WriteString("Trade Statistics\n")
	b.WriteString("----------------\n")
	fmt.Fprintf(&b, "Total Trades: %d\n", m.Trades.TotalTrades)
	fmt.Fprintf(&b, "Winning / Losing: %d / %d\n", m.Trades.WinningTrades, m.Trades.LosingTrades)
	fmt.Fprintf(&b, "Win Rate: %.2f%%\n", m.Trades.WinRate)
	fmt.Fprintf(&b, "Average Win: $%.2f\n", m.Trades.AvgWin)
	fmt.Fprintf(&b, "Average Loss: $%.2f\n", m.Trades.AvgLoss)
	fmt.Fprintf(&b, "Largest Win / Loss: $%.2f / $%.2f\n", m.Trades.LargestWin, m.Trades.LargestLoss)
	fmt.Fprintf(&b, "Profit Factor: %.2f\n\n", m.Trades.ProfitFactor)

	b.WriteString("Exposure Analysis\n")
	b.WriteString("-----------------\n")
	fmt.Fprintf(&b, "Average Exposure: %.2f%%\n", m.Exposure.Average)
	fmt.Fprintf(&b, "Maximum Exposure: %.2f%%\n", m.Exposure.Max)
	fmt.Fprintf(&b, "Current Exposure: %.2f%%\n", m.Exposure.Current)

	return b.String()
}
