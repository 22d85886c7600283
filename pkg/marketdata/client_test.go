package marketdata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/ohlcv-sync/pkg/errors"
	"github.com/rxtech-lab/ohlcv-sync/pkg/marketdata/provider"
)

type ClientTestSuite struct {
	suite.Suite
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func (suite *ClientTestSuite) TestNewSource() {
	tests := []struct {
		name        string
		config      ClientConfig
		expectError bool
		code        errors.ErrorCode
	}{
		{
			name: "valid polygon config",
			config: ClientConfig{
				ProviderType:   provider.ProviderPolygon,
				PolygonApiKey:  "test-key",
				Adjusted:       true,
				Timeout:        30 * time.Second,
				MarketTimezone: "America/New_York",
			},
		},
		{
			name: "missing api key",
			config: ClientConfig{
				ProviderType:   provider.ProviderPolygon,
				MarketTimezone: "America/New_York",
			},
			expectError: true,
			code:        errors.ErrCodeInvalidConfiguration,
		},
		{
			name: "unknown provider",
			config: ClientConfig{
				ProviderType:   "yahoo",
				PolygonApiKey:  "test-key",
				MarketTimezone: "America/New_York",
			},
			expectError: true,
			code:        errors.ErrCodeInvalidConfiguration,
		},
		{
			name: "unknown timezone",
			config: ClientConfig{
				ProviderType:   provider.ProviderPolygon,
				PolygonApiKey:  "test-key",
				MarketTimezone: "Mars/Olympus_Mons",
			},
			expectError: true,
			code:        errors.ErrCodeInvalidConfiguration,
		},
		{
			name: "base url routed to a gateway",
			config: ClientConfig{
				ProviderType:   provider.ProviderPolygon,
				PolygonApiKey:  "test-key",
				MarketTimezone: "America/New_York",
				BaseURL:        "http://127.0.0.1:8080",
			},
		},
		{
			name: "malformed base url",
			config: ClientConfig{
				ProviderType:   provider.ProviderPolygon,
				PolygonApiKey:  "test-key",
				MarketTimezone: "America/New_York",
				BaseURL:        "not a url",
			},
			expectError: true,
			code:        errors.ErrCodeInvalidConfiguration,
		},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			source, err := NewSource(tc.config, nil)
			if tc.expectError {
				suite.Error(err)
				suite.Nil(source)
				suite.True(errors.HasCode(err, tc.code), err.Error())

				return
			}

			suite.Require().NoError(err)
			suite.IsType(&provider.PolygonSource{}, source)
		})
	}
}
