package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
	_ "time/tzdata"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/iter"
	"github.com/polygon-io/client-go/rest/models"
	"go.uber.org/zap"

	"github.com/rxtech-lab/ohlcv-sync/internal/logger"
	"github.com/rxtech-lab/ohlcv-sync/internal/types"
	"github.com/rxtech-lab/ohlcv-sync/pkg/errors"
)

// MaxAggsPerPage is the largest page size the aggregates endpoint accepts.
const MaxAggsPerPage = 50000

// DefaultMarketTimezone is the exchange calendar daily bars are stamped in.
const DefaultMarketTimezone = "America/New_York"

// polygonStatusOK is the only envelope status whose results are treated as data.
const polygonStatusOK = "OK"

// PolygonAggsIterator is the subset of the client-go iterator used to walk aggregate pages.
type PolygonAggsIterator interface {
	Next() bool
	Item() models.Agg
	Err() error
	// Status is the envelope status of the most recently fetched page.
	Status() string
}

// PolygonAPIClient is the subset of the Polygon REST client used by PolygonSource.
type PolygonAPIClient interface {
	ListAggs(ctx context.Context, params *models.ListAggsParams, options ...models.RequestOption) PolygonAggsIterator
}

type polygonRESTClient struct {
	client *polygon.Client
}

// aggsIterator is the client-go iterator plus the envelope status that ListAggs discards.
type aggsIterator struct {
	*iter.Iter[models.Agg]
	status string
}

func (it *aggsIterator) Status() string {
	return it.status
}

// ListAggs pages through the aggregates endpoint like the client's own ListAggs,
// keeping each page's status.
func (c *polygonRESTClient) ListAggs(ctx context.Context, params *models.ListAggsParams, options ...models.RequestOption) PolygonAggsIterator {
	it := &aggsIterator{}
	it.Iter = iter.NewIter(ctx, polygon.ListAggsPath, params, func(uri string) (iter.ListResponse, []models.Agg, error) {
		res := &models.ListAggsResponse{}
		err := c.client.CallURL(ctx, http.MethodGet, uri, res, options...)
		it.status = res.Status

		return res, res.Results, err
	})

	return it
}

// PolygonConfig configures a PolygonSource.
type PolygonConfig struct {
	APIKey string
	// Adjusted requests split-adjusted prices.
	Adjusted bool
	// Timeout bounds each HTTP request. Zero means no client timeout.
	Timeout time.Duration
	// Location is the market time zone used to derive trade dates. Defaults to New York.
	Location *time.Location
	// HTTPClient overrides the HTTP client; Timeout is ignored when set.
	HTTPClient *http.Client
	// BaseURL sends requests to a gateway or proxy instead of api.polygon.io.
	BaseURL string
}

// baseURLTransport rewrites the scheme and host of every request.
type baseURLTransport struct {
	target *url.URL
	base   http.RoundTripper
}

func (t *baseURLTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.URL.Scheme = t.target.Scheme
	clone.URL.Host = t.target.Host
	clone.Host = t.target.Host

	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}

	return base.RoundTrip(clone)
}

// PolygonSource fetches daily aggregates from the Polygon REST API.
type PolygonSource struct {
	apiClient PolygonAPIClient
	adjusted  bool
	location  *time.Location
	logger    *logger.Logger
}

// NewPolygonSource creates a source backed by the Polygon REST API.
func NewPolygonSource(config PolygonConfig, log *logger.Logger) (*PolygonSource, error) {
	if config.APIKey == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "apiKey is required")
	}

	hc := config.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: config.Timeout}
	}

	if config.BaseURL != "" {
		target, err := url.Parse(config.BaseURL)
		if err != nil || target.Host == "" {
			return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "invalid polygon base url %q", config.BaseURL)
		}

		routed := *hc
		routed.Transport = &baseURLTransport{target: target, base: hc.Transport}
		hc = &routed
	}

	loc := config.Location
	if loc == nil {
		var err error

		loc, err = time.LoadLocation(DefaultMarketTimezone)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to load market timezone", err)
		}
	}

	source := NewPolygonSourceWithAPI(&polygonRESTClient{client: polygon.NewWithClient(config.APIKey, hc)}, loc, log)
	source.adjusted = config.Adjusted

	return source, nil
}

// NewPolygonSourceWithAPI creates a source around an existing API client. Used by tests.
func NewPolygonSourceWithAPI(apiClient PolygonAPIClient, loc *time.Location, log *logger.Logger) *PolygonSource {
	if log == nil {
		log = logger.NewNopLogger()
	}

	if loc == nil {
		loc = time.UTC
	}

	return &PolygonSource{
		apiClient: apiClient,
		adjusted:  true,
		location:  loc,
		logger:    log,
	}
}

// Fetch requests daily bars for the window. Pagination is followed by the client iterator.
// A page whose envelope status is anything but OK turns the whole window into NoData,
// whatever results it carried.
func (c *PolygonSource) Fetch(ctx context.Context, window types.FetchWindow) Result {
	if err := window.Validate(); err != nil {
		return Failed(err)
	}

	// Request whole market days; bars are stamped at the start of the trading day in market time.
	from := time.Date(window.StartDate.Year(), window.StartDate.Month(), window.StartDate.Day(), 0, 0, 0, 0, c.location)
	to := time.Date(window.EndDate.Year(), window.EndDate.Month(), window.EndDate.Day(), 23, 59, 59, 0, c.location)

	//nolint:exhaustruct // third-party struct with many optional fields
	params := models.ListAggsParams{
		Ticker:     window.Ticker,
		Multiplier: 1,
		Timespan:   models.Day,
		From:       models.Millis(from),
		To:         models.Millis(to),
	}.WithAdjusted(c.adjusted).WithOrder(models.Order("asc")).WithLimit(MaxAggsPerPage)

	aggs := c.apiClient.ListAggs(ctx, params)

	var bars []types.PriceBar

	dropped := 0

	for aggs.Next() {
		if status := aggs.Status(); status != polygonStatusOK {
			return c.noData(window, status)
		}

		agg := aggs.Item()
		if time.Time(agg.Timestamp).UnixMilli() <= 0 {
			return Failed(errors.Newf(errors.ErrCodeMarketDataParseFailed, "aggregate for %s has no timestamp", window))
		}

		eventTime := time.Time(agg.Timestamp).UTC()
		tradeDate := types.DateOf(eventTime, c.location)

		if !window.Contains(tradeDate) {
			dropped++

			continue
		}

		bars = append(bars, types.PriceBar{
			Ticker:    window.Ticker,
			TradeDate: tradeDate,
			Open:      agg.Open,
			High:      agg.High,
			Low:       agg.Low,
			Close:     agg.Close,
			Volume:    agg.Volume,
			EventTime: eventTime,
		})
	}

	if err := aggs.Err(); err != nil {
		return Failed(errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err, "failed to fetch aggregates for %s", window))
	}

	if status := aggs.Status(); status != polygonStatusOK {
		return c.noData(window, status)
	}

	if dropped > 0 {
		c.logger.Debug("Dropped aggregates outside the requested window",
			zap.String("ticker", window.Ticker),
			zap.Int("dropped", dropped),
		)
	}

	result := Ok(bars, dropped)
	c.logger.Debug("Fetched aggregates",
		zap.String("window", window.String()),
		zap.String("status", string(result.Status)),
		zap.Int("bars", len(result.Bars)),
	)

	return result
}

func (c *PolygonSource) noData(window types.FetchWindow, status string) Result {
	err := errors.Newf(errors.ErrCodeNoDataFound, "polygon answered %q for %s", status, window)
	c.logger.Info("Upstream reported no data",
		zap.String("window", window.String()),
		zap.String("category", errors.Category(err)),
		zap.Error(err),
	)

	return NoData()
}

// String identifies the provider in logs.
func (c *PolygonSource) String() string {
	return fmt.Sprintf("%s(adjusted=%t, tz=%s)", ProviderPolygon, c.adjusted, c.location)
}
