package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/newthinker/ladder/internal/core"
	"github.com/newthinker/ladder/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"
	sourceName     = "yahoo"
	userAgent      = "Mozilla/5.0 (compatible; ladder-backtest)"
)

// validSymbol matches symbols like SPXL, BRK-B, ^GSPC, 600519.SH, 0700.HK
var validSymbol = regexp.MustCompile(`^\^?[A-Za-z0-9-]{1,10}(\.[A-Za-z]{1,4})?$`)

// validateSymbol checks if a symbol has valid format
func validateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if len(symbol) > 20 {
		return fmt.Errorf("symbol too long: %s", symbol)
	}
	if !validSymbol.MatchString(symbol) {
		return fmt.Errorf("invalid symbol format: %s", symbol)
	}
	return nil
}

// Yahoo fetches daily history from the Yahoo Finance chart API
type Yahoo struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
	logger  *zap.Logger
	metrics *metrics.Registry
}

// Option configures a Yahoo fetcher
type Option func(*Yahoo)

// WithBaseURL overrides the chart endpoint
func WithBaseURL(u string) Option {
	return func(y *Yahoo) {
		y.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithHTTPClient sets the HTTP client used for requests
func WithHTTPClient(c *http.Client) Option {
	return func(y *Yahoo) {
		if c != nil {
			y.client = c
		}
	}
}

// WithRateLimit caps outgoing requests to rps per second with the given burst
func WithRateLimit(rps float64, burst int) Option {
	return func(y *Yahoo) {
		if burst < 1 {
			burst = 1
		}
		y.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger for request events
func WithLogger(logger *zap.Logger) Option {
	return func(y *Yahoo) {
		if logger != nil {
			y.logger = logger
		}
	}
}

// WithMetrics records fetch counts and latency into reg
func WithMetrics(reg *metrics.Registry) Option {
	return func(y *Yahoo) {
		y.metrics = reg
	}
}

// New creates a new Yahoo fetcher
func New(opts ...Option) *Yahoo {
	y := &Yahoo{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: defaultBaseURL,
		limiter: rate.NewLimiter(rate.Limit(2), 1),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

func (y *Yahoo) Name() string {
	return sourceName
}

// toYahooSymbol converts internal symbol format to Yahoo format
func (y *Yahoo) toYahooSymbol(symbol string) string {
	// Shanghai stocks: 600519.SH -> 600519.SS
	if strings.HasSuffix(symbol, ".SH") {
		return strings.TrimSuffix(symbol, ".SH") + ".SS"
	}
	return symbol
}

// FetchHistory fetches daily bars between start and end, inclusive. A zero
// start fetches the full available history; a zero end means now.
func (y *Yahoo) FetchHistory(ctx context.Context, symbol string, start, end time.Time) (core.Series, error) {
	begin := time.Now()
	series, err := y.fetchHistory(ctx, symbol, start, end)
	if y.metrics != nil {
		y.metrics.RecordFetch(sourceName, err, time.Since(begin).Seconds())
	}
	if err != nil {
		y.logger.Warn("history fetch failed", zap.String("symbol", symbol), zap.Error(err))
		return nil, err
	}
	y.logger.Debug("history fetched",
		zap.String("symbol", symbol),
		zap.Int("bars", len(series)),
		zap.Duration("elapsed", time.Since(begin)),
	)
	return series, nil
}

func (y *Yahoo) fetchHistory(ctx context.Context, symbol string, start, end time.Time) (core.Series, error) {
	if err := validateSymbol(symbol); err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, err)
	}
	if end.IsZero() {
		end = time.Now()
	}

	if err := y.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var period1 int64
	if !start.IsZero() {
		period1 = start.Unix()
	}

	// period2 is exclusive on Yahoo's side
	q := url.Values{}
	q.Set("interval", "1d")
	q.Set("period1", fmt.Sprintf("%d", period1))
	q.Set("period2", fmt.Sprintf("%d", end.AddDate(0, 0, 1).Unix()))
	endpoint := fmt.Sprintf("%s/%s?%s", y.baseURL, url.PathEscape(y.toYahooSymbol(symbol)), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("fetching history: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("unexpected status: %d", resp.StatusCode))
	}

	var result chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("decoding response: %w", err))
	}

	if result.Chart.Error != nil {
		return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("yahoo error: %s", result.Chart.Error.Description))
	}

	if len(result.Chart.Result) == 0 || len(result.Chart.Result[0].Timestamp) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no data for symbol: %s", symbol))
	}

	return toSeries(result.Chart.Result[0], start, end)
}

// toSeries converts the chart payload to bars. Yahoo reports missing values
// as null; those fail the fetch instead of being dropped.
func toSeries(r chartResult, start, end time.Time) (core.Series, error) {
	if len(r.Indicators.Quote) == 0 {
		return nil, core.WrapError(core.ErrFieldMissing, errors.New("quote indicators missing"))
	}
	quotes := r.Indicators.Quote[0]

	loc := time.UTC
	if r.Meta.ExchangeTimezoneName != "" {
		if l, err := time.LoadLocation(r.Meta.ExchangeTimezoneName); err == nil {
			loc = l
		}
	}

	series := make(core.Series, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		local := time.Unix(ts, 0).In(loc)
		date := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
		if date.Before(truncateDay(start)) || date.After(truncateDay(end)) {
			continue
		}

		open, okO := at(quotes.Open, i)
		high, okH := at(quotes.High, i)
		low, okL := at(quotes.Low, i)
		closePrice, okC := at(quotes.Close, i)
		if !okO || !okH || !okL || !okC {
			return nil, core.WrapError(core.ErrFieldMissing,
				fmt.Errorf("null price on %s", date.Format(core.DateLayout)))
		}

		series = append(series, core.PricePoint{
			Date:  date,
			Open:  open,
			High:  high,
			Low:   low,
			Close: closePrice,
		})
	}
	return series, nil
}

func at(values []*float64, i int) (float64, bool) {
	if i >= len(values) || values[i] == nil {
		return 0, false
	}
	return *values[i], true
}

func truncateDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Yahoo API response types
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta       chartMeta  `json:"meta"`
	Timestamp  []int64    `json:"timestamp"`
	Indicators indicators `json:"indicators"`
}

type chartMeta struct {
	Symbol               string `json:"symbol"`
	Currency             string `json:"currency"`
	ExchangeTimezoneName string `json:"exchangeTimezoneName"`
}

type indicators struct {
	Quote []quoteIndicator `json:"quote"`
}

type quoteIndicator struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}
