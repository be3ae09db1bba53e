package backtest

import (
	"context"
	"strconv"
	"time"

	"github.com/newthinker/ladder/internal/core"
	"github.com/newthinker/ladder/internal/ledger"
	"github.com/newthinker/ladder/internal/metrics"
	"github.com/newthinker/ladder/internal/position"
	"github.com/newthinker/ladder/internal/signal"
	"go.uber.org/zap"
)

// HistoryProvider defines the interface for fetching a daily price series
type HistoryProvider interface {
	FetchHistory(ctx context.Context, symbol string, start, end time.Time) (core.Series, error)
}

// Backtester runs the ladder strategy against historical data
type Backtester struct {
	provider HistoryProvider
	cfg      Config
	logger   *zap.Logger
	metrics  *metrics.Registry
}

// Option configures a Backtester
type Option func(*Backtester)

// WithLogger sets the logger used for run and trade events
func WithLogger(logger *zap.Logger) Option {
	return func(b *Backtester) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMetrics records run statistics into reg
func WithMetrics(reg *metrics.Registry) Option {
	return func(b *Backtester) {
		b.metrics = reg
	}
}

// New creates a new Backtester with the given price provider
func New(provider HistoryProvider, cfg Config, opts ...Option) *Backtester {
	b := &Backtester{
		provider: provider,
		cfg:      cfg,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run fetches the series for symbol and simulates it
func (b *Backtester) Run(ctx context.Context, symbol string, start, end time.Time) (*Result, error) {
	begin := time.Now()

	series, err := b.provider.FetchHistory(ctx, symbol, start, end)
	if err != nil {
		b.recordFailure(begin)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		b.recordFailure(begin)
		return nil, err
	}

	result, err := Simulate(series, b.cfg)
	if err != nil {
		b.recordFailure(begin)
		return nil, err
	}
	result.Symbol = symbol
	result.StartDate = start
	result.EndDate = end

	b.report(result, time.Since(begin))
	return result, nil
}

// Simulate validates the series and runs the full pipeline: signals,
// positions, ledger, then statistics. It performs no I/O.
func Simulate(series core.Series, cfg Config) (*Result, error) {
	if err := series.Validate(); err != nil {
		return nil, err
	}

	gen, err := signal.New(cfg.Signal)
	if err != nil {
		return nil, err
	}
	manager, err := position.NewManager(cfg.Position)
	if err != nil {
		return nil, err
	}

	signals := gen.Generate(series)
	history, err := manager.Run(series, signals)
	if err != nil {
		return nil, err
	}

	stats := ledger.Compute(history.Trades, history.Snapshots, manager.InitialCapital())

	return &Result{
		Strategy:  gen.Name(),
		StartDate: series[0].Date,
		EndDate:   series[len(series)-1].Date,
		Signals:   signals,
		History:   *history,
		Ledger:    stats,
		Metrics:   Analyze(stats),
	}, nil
}

func (b *Backtester) strategyName() string {
	if b.cfg.Signal.Name == "" {
		return signal.StrategyLadder
	}
	return b.cfg.Signal.Name
}

func (b *Backtester) recordFailure(begin time.Time) {
	if b.metrics != nil {
		b.metrics.RecordBacktest(b.strategyName(), "error", time.Since(begin).Seconds())
	}
}

func (b *Backtester) report(result *Result, elapsed time.Duration) {
	for _, s := range result.Signals {
		if s.HasAction() {
			b.logger.Debug("signal",
				zap.Time("date", s.Date),
				zap.Ints("entry", s.Entry),
				zap.Bool("exit", s.Exit),
				zap.String("reason", s.Reason),
			)
		}
	}
	for _, t := range result.History.Trades {
		b.logger.Debug("trade executed",
			zap.Time("date", t.Date),
			zap.String("kind", string(t.Kind)),
			zap.Int("stage", t.Stage),
			zap.Int64("shares", t.Shares),
			zap.String("price", t.Price.String()),
			zap.String("cash_after", t.CashAfter.StringFixed(2)),
		)
	}
	for _, r := range result.History.Rejections {
		b.logger.Debug("entry rejected",
			zap.Time("date", r.Date),
			zap.Int("stage", r.Stage),
			zap.String("reason", r.Reason),
		)
	}

	final, _ := result.Ledger.FinalValue().Float64()
	b.logger.Info("backtest completed",
		zap.String("strategy", result.Strategy),
		zap.String("symbol", result.Symbol),
		zap.Int("bars", len(result.Signals)),
		zap.Int("trades", len(result.History.Trades)),
		zap.Int("rejected", len(result.History.Rejections)),
		zap.Float64("final_value", final),
		zap.Float64("total_return_pct", result.Metrics.Returns.TotalReturn),
		zap.Duration("elapsed", elapsed),
	)

	if b.metrics == nil {
		return
	}
	b.metrics.RecordBacktest(result.Strategy, "success", elapsed.Seconds())
	b.metrics.RecordBars(len(result.Signals))
	for _, t := range result.History.Trades {
		b.metrics.RecordTrade(string(t.Kind))
	}
	for _, r := range result.History.Rejections {
		b.metrics.RecordRejection(strconv.Itoa(r.Stage))
	}
	b.metrics.SetRunSummary(result.Symbol, final, result.Metrics.Drawdown.Max, result.Metrics.Exposure.Current)
}
