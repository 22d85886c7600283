package mocks

import (
	"math"
	"math/rand"
	"time"

	"github.com/rxtech-lab/ohlcv-sync/internal/types"
)

// DataGenerator generates realistic daily bars for tests.
type DataGenerator struct {
	rng *rand.Rand
}

// NewDataGenerator creates a new DataGenerator with the given seed.
// Use a fixed seed for reproducible results in tests.
func NewDataGenerator(seed int64) *DataGenerator {
	return &DataGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// GeneratorConfig configures how bars are generated.
type GeneratorConfig struct {
	// Ticker is the symbol stamped on every bar
	Ticker string
	// StartDate is the first calendar date considered
	StartDate time.Time
	// EndDate is the last calendar date considered (inclusive)
	EndDate time.Time
	// IncludeWeekends emits bars for Saturday and Sunday too
	IncludeWeekends bool
	// InitialPrice is the starting price
	InitialPrice float64
	// Volatility controls price movement (0.01 = 1% typical daily volatility)
	Volatility float64
	// VolumeBase is the average volume per bar
	VolumeBase float64
	// VolumeVariance is the variance in volume (0.0 to 1.0)
	VolumeVariance float64
	// EventOffset is added to the trade date to produce the event time
	EventOffset time.Duration
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Ticker:         "TEST",
		StartDate:      types.Date(2024, time.January, 1),
		EndDate:        types.Date(2024, time.December, 31),
		InitialPrice:   100.0,
		Volatility:     0.015,
		VolumeBase:     5_000_000,
		VolumeVariance: 0.3,
		EventOffset:    5 * time.Hour,
	}
}

// Generate creates one bar per trading day in [StartDate, EndDate].
// Prices follow a geometric Brownian motion.
func (g *DataGenerator) Generate(config GeneratorConfig) []types.PriceBar {
	var bars []types.PriceBar

	currentPrice := config.InitialPrice

	for date := types.TruncateDate(config.StartDate); !date.After(config.EndDate); date = types.AddDays(date, 1) {
		if !config.IncludeWeekends && (date.Weekday() == time.Saturday || date.Weekday() == time.Sunday) {
			continue
		}

		open := currentPrice

		// Box-Muller transform for a normal sample
		u1 := g.rng.Float64()
		u2 := g.rng.Float64()
		z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)

		close := open * (1 + config.Volatility*z)
		if close <= 0 {
			close = open * 0.99
		}

		high := math.Max(open, close) + math.Abs(g.rng.Float64()*config.Volatility*open*0.5)
		low := math.Min(open, close) - math.Abs(g.rng.Float64()*config.Volatility*open*0.5)
		if low <= 0 {
			low = math.Min(open, close) * 0.99
		}

		volume := config.VolumeBase * (1.0 + (g.rng.Float64()*2-1)*config.VolumeVariance)
		if volume < 0 {
			volume = config.VolumeBase * 0.1
		}

		bars = append(bars, types.PriceBar{
			Ticker:    config.Ticker,
			TradeDate: date,
			Open:      roundToDecimals(open, 4),
			High:      roundToDecimals(high, 4),
			Low:       roundToDecimals(low, 4),
			Close:     roundToDecimals(close, 4),
			Volume:    math.Round(volume),
			EventTime: date.Add(config.EventOffset),
		})

		currentPrice = close
	}

	return bars
}

// GenerateMultiTicker generates bars for several tickers over the same range.
func (g *DataGenerator) GenerateMultiTicker(tickers []string, baseConfig GeneratorConfig) []types.PriceBar {
	var all []types.PriceBar

	for _, ticker := range tickers {
		config := baseConfig
		config.Ticker = ticker
		// Vary initial price and volatility slightly per ticker
		config.InitialPrice = baseConfig.InitialPrice * (0.8 + g.rng.Float64()*0.4)
		config.Volatility = baseConfig.Volatility * (0.8 + g.rng.Float64()*0.4)

		all = append(all, g.Generate(config)...)
	}

	return all
}

// GenerateRange is a convenience wrapper with the default configuration and a fixed seed.
func GenerateRange(ticker string, start, end time.Time) []types.PriceBar {
	gen := NewDataGenerator(42)
	config := DefaultConfig()
	config.Ticker = ticker
	config.StartDate = start
	config.EndDate = end

	return gen.Generate(config)
}

// roundToDecimals rounds a float64 to the specified number of decimal places.
func roundToDecimals(val float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(val*pow) / pow
}
