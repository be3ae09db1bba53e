package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/newthinker/ladder/internal/backtest"
	"github.com/newthinker/ladder/internal/collector"
	"github.com/newthinker/ladder/internal/collector/csvfile"
	"github.com/newthinker/ladder/internal/collector/yahoo"
	"github.com/newthinker/ladder/internal/config"
	"github.com/newthinker/ladder/internal/logger"
	"github.com/newthinker/ladder/internal/metrics"
	"github.com/newthinker/ladder/internal/storage/archive"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	backtestSymbol    string
	backtestFrom      string
	backtestTo        string
	backtestSource    string
	backtestCSV       string
	backtestCapital   float64
	backtestStrategy  string
	backtestRefresh   bool
	backtestSave      bool
	backtestExportDir string
	backtestTextfile  string
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run the ladder strategy over historical prices",
	Long: `Fetch daily prices for a symbol, replay them through the configured strategy
and print the performance summary. Flags override the config file.`,
	Args: cobra.NoArgs,
	RunE: runBacktest,
}

func init() {
	f := backtestCmd.Flags()
	f.StringVar(&backtestSymbol, "symbol", "", "symbol to backtest")
	f.StringVar(&backtestFrom, "from", "", "start date YYYY-MM-DD")
	f.StringVar(&backtestTo, "to", "", "end date YYYY-MM-DD")
	f.StringVar(&backtestSource, "source", "", "price source: csv or yahoo")
	f.StringVar(&backtestCSV, "csv", "", "CSV file with Date,Open,High,Low,Close columns (implies --source csv)")
	f.Float64Var(&backtestCapital, "capital", 0, "initial capital")
	f.StringVar(&backtestStrategy, "strategy", "", "signal strategy: ladder or bands")
	f.BoolVar(&backtestRefresh, "refresh", false, "refetch prices even when cached")
	f.BoolVar(&backtestSave, "save", false, "archive the run in the result store")
	f.StringVar(&backtestExportDir, "export-dir", "", "write trades, positions and signals CSV files here")
	f.StringVar(&backtestTextfile, "metrics-textfile", "", "write run metrics in Prometheus text format")

	rootCmd.AddCommand(backtestCmd)
}

// applyBacktestFlags copies explicitly set flags over the config values
func applyBacktestFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("symbol") {
		cfg.Backtest.Symbol = backtestSymbol
	}
	if flags.Changed("from") {
		cfg.Backtest.From = backtestFrom
	}
	if flags.Changed("to") {
		cfg.Backtest.To = backtestTo
	}
	if flags.Changed("capital") {
		cfg.Backtest.InitialCapital = backtestCapital
	}
	if flags.Changed("strategy") {
		cfg.Strategy.Name = backtestStrategy
	}
	if flags.Changed("source") {
		cfg.Data.Source = backtestSource
	}
	if flags.Changed("csv") {
		cfg.Data.Source = "csv"
		cfg.Data.CSVPath = backtestCSV
	}
	if flags.Changed("refresh") {
		cfg.Data.Cache.Refresh = backtestRefresh
	}
	if flags.Changed("save") {
		cfg.Storage.Archive.SaveRuns = backtestSave
	}
	if flags.Changed("metrics-textfile") {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Textfile = backtestTextfile
	}
	if debug {
		cfg.Log.Development = true
		cfg.Log.Level = "debug"
	}
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyBacktestFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	start, end, err := cfg.Range()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.LoggerConfig())
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer log.Sync()

	var reg *metrics.Registry
	if cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
	}

	var store archive.Storage
	if cfg.Data.Cache.Enabled || cfg.Storage.Archive.SaveRuns {
		store, err = archive.New(cfg.ArchiveConfig())
		if err != nil {
			return fmt.Errorf("opening archive: %w", err)
		}
	}

	provider, err := buildProvider(cfg, store, log, reg)
	if err != nil {
		return err
	}

	ctx, stop := ossignal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting backtest",
		zap.String("symbol", cfg.Backtest.Symbol),
		zap.String("strategy", cfg.Strategy.Name),
		zap.String("source", provider.Name()),
		zap.String("from", cfg.Backtest.From),
		zap.String("to", cfg.Backtest.To),
	)

	bt := backtest.New(provider, cfg.BacktestConfig(), backtest.WithLogger(log), backtest.WithMetrics(reg))
	result, err := bt.Run(ctx, cfg.Backtest.Symbol, start, end)
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	out := cmd.OutOrStdout()
	printResult(out, result)

	if backtestExportDir != "" {
		if err := backtest.WriteCSV(result, backtestExportDir); err != nil {
			return fmt.Errorf("exporting csv: %w", err)
		}
		fmt.Fprintf(out, "\nCSV files written to %s\n", backtestExportDir)
	}

	if cfg.Storage.Archive.SaveRuns {
		id, err := archive.NewResultStore(store).Save(ctx, result.Symbol, result)
		if err != nil {
			return fmt.Errorf("archiving run: %w", err)
		}
		log.Info("run archived", zap.String("run_id", id))
		fmt.Fprintf(out, "Run archived as %s\n", id)
	}

	if reg != nil && cfg.Metrics.Textfile != "" {
		if err := reg.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
	}

	return nil
}

// buildProvider registers the configured sources and wraps the selected one
// in the archive-backed cache when enabled.
func buildProvider(cfg *config.Config, store archive.Storage, log *zap.Logger, reg *metrics.Registry) (collector.Provider, error) {
	registry := collector.NewRegistry()
	registry.Register(csvfile.New(cfg.Data.CSVPath))
	registry.Register(yahoo.New(
		yahoo.WithHTTPClient(newHTTPClient(cfg.Data.Yahoo.Timeout)),
		yahoo.WithRateLimit(cfg.Data.Yahoo.RateLimit, 1),
		yahoo.WithLogger(log),
		yahoo.WithMetrics(reg),
	))

	provider, err := registry.Lookup(cfg.Data.Source)
	if err != nil {
		return nil, err
	}

	// Local files are cheap to reread
	if cfg.Data.Cache.Enabled && store != nil && cfg.Data.Source != "csv" {
		provider = collector.NewCached(provider, store,
			collector.WithRefresh(cfg.Data.Cache.Refresh),
			collector.WithCacheLogger(log),
			collector.WithCacheMetrics(reg),
		)
	}
	return provider, nil
}

func printResult(w io.Writer, result *backtest.Result) {
	fmt.Fprintln(w, "=== LADDER Backtest ===")
	fmt.Fprintf(w, "Strategy: %s\n", result.Strategy)
	fmt.Fprintf(w, "Symbol:   %s\n", result.Symbol)
	if len(result.History.Snapshots) > 0 {
		first := result.History.Snapshots[0].Date
		last := result.History.Snapshots[len(result.History.Snapshots)-1].Date
		fmt.Fprintf(w, "Period:   %s to %s (%d bars)\n", first.Format("2006-01-02"), last.Format("2006-01-02"), len(result.History.Snapshots))
	}
	fmt.Fprintf(w, "Trades:   %d executed, %d entries rejected\n", len(result.History.Trades), len(result.History.Rejections))

	if state := result.Ledger.Current(); state != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Basic Portfolio Summary")
		fmt.Fprintln(w, "-----------------------")
		fmt.Fprintf(w, "Final Portfolio Value: $%s\n", state.PortfolioValue.StringFixed(2))
		fmt.Fprintf(w, "Total P&L: $%s\n", state.TotalPnL.StringFixed(2))
		fmt.Fprintf(w, "Realized / Unrealized: $%s / $%s\n", state.RealizedPnL.StringFixed(2), state.UnrealizedPnL.StringFixed(2))
		fmt.Fprintf(w, "Current Cash: $%s\n", state.Cash.StringFixed(2))
		fmt.Fprintf(w, "Current Exposure: %.2f%%\n", state.Exposure*100)
	}

	fmt.Fprintln(w)
	fmt.Fprint(w, backtest.FormatSummary(result.Metrics, time.Now()))
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
