package marketdata

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/rxtech-lab/ohlcv-sync/internal/logger"
	"github.com/rxtech-lab/ohlcv-sync/pkg/errors"
	"github.com/rxtech-lab/ohlcv-sync/pkg/marketdata/provider"
)

// ClientConfig holds the configuration for the market data source.
type ClientConfig struct {
	ProviderType  provider.ProviderType `validate:"required,oneof=polygon"`
	PolygonApiKey string                `validate:"required_if=ProviderType polygon"`
	Adjusted      bool
	Timeout       time.Duration `validate:"min=0"`
	// MarketTimezone is an IANA zone name used to derive trade dates.
	MarketTimezone string `validate:"required"`
	// HTTPClient overrides the transport, mainly for tests and proxies.
	HTTPClient *http.Client `validate:"-"`
	// BaseURL replaces the Polygon API host.
	BaseURL string `validate:"omitempty,url"`
}

// NewSource validates the configuration and creates the configured source.
func NewSource(config ClientConfig, log *logger.Logger) (provider.Source, error) {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid market data configuration", err)
	}

	loc, err := time.LoadLocation(config.MarketTimezone)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid market timezone %q", config.MarketTimezone)
	}

	switch config.ProviderType {
	case provider.ProviderPolygon:
		source, err := provider.NewPolygonSource(provider.PolygonConfig{
			APIKey:     config.PolygonApiKey,
			Adjusted:   config.Adjusted,
			Timeout:    config.Timeout,
			Location:   loc,
			HTTPClient: config.HTTPClient,
			BaseURL:    config.BaseURL,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create Polygon source: %w", err)
		}

		return source, nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported provider type: %s", config.ProviderType)
	}
}
