package types

import "time"

// PriceBar is one daily OHLCV record for one ticker.
type PriceBar struct {
	// Ticker is the instrument symbol, e.g. AAPL.
	Ticker string `yaml:"ticker" json:"ticker"`
	// TradeDate is the trading day as a calendar date (UTC midnight).
	TradeDate time.Time `yaml:"trade_date" json:"trade_date"`
	Open      float64   `yaml:"open" json:"open"`
	High      float64   `yaml:"high" json:"high"`
	Low       float64   `yaml:"low" json:"low"`
	Close     float64   `yaml:"close" json:"close"`
	Volume    float64   `yaml:"volume" json:"volume"`
	// EventTime is the timestamp of the tick the bar originates from, in UTC.
	EventTime time.Time `yaml:"event_time" json:"event_time"`
}

// Less orders bars by trade date, then event time, then the remaining fields.
// It gives a total order so sorting is stable regardless of input order.
func (b PriceBar) Less(other PriceBar) bool {
	if !b.TradeDate.Equal(other.TradeDate) {
		return b.TradeDate.Before(other.TradeDate)
	}

	if !b.EventTime.Equal(other.EventTime) {
		return b.EventTime.Before(other.EventTime)
	}

	if b.Ticker != other.Ticker {
		return b.Ticker < other.Ticker
	}

	left := [5]float64{b.Open, b.High, b.Low, b.Close, b.Volume}
	right := [5]float64{other.Open, other.High, other.Low, other.Close, other.Volume}

	for i := range left {
		if left[i] != right[i] {
			return left[i] < right[i]
		}
	}

	return false
}
