package backtest

import (
	"math"

	"github.com/newthinker/ladder/internal/ledger"
	"github.com/shopspring/decimal"
)

// tradingDaysPerYear is used to annualize returns and volatility
const tradingDaysPerYear = 252

// Analyze computes performance statistics from a ledger. It never mutates
// its input and returns zero values instead of failing on empty data.
func Analyze(stats *ledger.Stats) Metrics {
	if stats == nil {
		return Metrics{}
	}
	return Metrics{
		Returns:  calculateReturns(stats),
		Drawdown: calculateDrawdown(stats.Days),
		Trades:   calculateTradeStats(stats.Trades),
		Exposure: calculateExposure(stats.Days),
	}
}

func calculateReturns(stats *ledger.Stats) ReturnMetrics {
	if len(stats.Days) == 0 || !stats.InitialCapital.IsPositive() {
		return ReturnMetrics{}
	}

	totalReturn, _ := stats.FinalValue().Div(stats.InitialCapital).Sub(decimal.NewFromInt(1)).Float64()
	m := ReturnMetrics{TotalReturn: totalReturn * 100}

	days := len(stats.Days)
	if days < 2 {
		return m
	}

	if growth := 1 + totalReturn; growth > 0 {
		m.AnnualizedReturn = (math.Pow(growth, tradingDaysPerYear/float64(days)) - 1) * 100
	} else {
		m.AnnualizedReturn = -100
	}

	returns := make([]float64, 0, days-1)
	for _, d := range stats.Days[1:] {
		returns = append(returns, d.DailyReturn)
	}
	m.Volatility = stdDev(returns) * math.Sqrt(tradingDaysPerYear) * 100

	if m.Volatility != 0 {
		m.SharpeRatio = m.AnnualizedReturn / m.Volatility
	}
	return m
}

// stdDev returns the sample standard deviation, or 0 for fewer than two values
func stdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	return math.Sqrt(variance / float64(len(values)-1))
}

func calculateDrawdown(days []ledger.Day) DrawdownMetrics {
	if len(days) == 0 {
		return DrawdownMetrics{}
	}

	var m DrawdownMetrics
	var negSum float64
	var negCount int
	for _, d := range days {
		if d.Drawdown < m.Max {
			m.Max = d.Drawdown
		}
		if d.Drawdown < 0 {
			negSum += d.Drawdown
			negCount++
		}
	}
	if negCount > 0 {
		m.Average = negSum / float64(negCount)
	}
	m.Current = days[len(days)-1].Drawdown
	return m
}

func calculateTradeStats(trades []ledger.TradePnL) TradeMetrics {
	if len(trades) == 0 {
		return TradeMetrics{}
	}

	m := TradeMetrics{TotalTrades: len(trades)}
	var winSum, lossSum float64
	m.LargestWin = math.Inf(-1)
	m.LargestLoss = math.Inf(1)

	for _, t := range trades {
		pnl, _ := t.PnL.Float64()
		switch {
		case t.IsWin():
			m.WinningTrades++
			winSum += pnl
		case t.IsLoss():
			m.LosingTrades++
			lossSum += pnl
		}
		m.LargestWin = math.Max(m.LargestWin, pnl)
		m.LargestLoss = math.Min(m.LargestLoss, pnl)
	}

	m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades) * 100
	if m.WinningTrades > 0 {
		m.AvgWin = winSum / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AvgLoss = lossSum / float64(m.LosingTrades)
	}
	if m.LosingTrades > 0 && lossSum != 0 {
		m.ProfitFactor = math.Abs(winSum / lossSum)
	}
	return m
}

func calculateExposure(days []ledger.Day) ExposureMetrics {
	if len(days) == 0 {
		return ExposureMetrics{}
	}

	var m ExposureMetrics
	var sum float64
	for _, d := range days {
		sum += d.Exposure
		m.Max = math.Max(m.Max, d.Exposure)
	}
	m.Average = sum / float64(len(days)) * 100
	m.Max *= 100
	m.Current = days[len(days)-1].Exposure * 100
	return m
}
