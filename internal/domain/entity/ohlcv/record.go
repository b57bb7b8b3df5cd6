package ohlcv

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AssetClass separates stored records by market. Each class lives in its own table.
type AssetClass string

const (
	ClassCrypto AssetClass = "crypto"
	ClassStock  AssetClass = "stock"
)

func (c AssetClass) String() string {
	return string(c)
}

func (c AssetClass) IsValid() bool {
	switch c {
	case ClassCrypto, ClassStock:
		return true
	default:
		return false
	}
}

// ParseAssetClass accepts the canonical names plus the plural aliases used by the HTTP routes.
func ParseAssetClass(s string) (AssetClass, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "crypto", "cryptos":
		return ClassCrypto, nil
	case "stock", "stocks":
		return ClassStock, nil
	default:
		return "", fmt.Errorf("invalid asset class: %q", s)
	}
}

// Bar is a provider-neutral daily bar before it is bound to a symbol.
type Bar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Record is a stored daily OHLCV row. Volume 0 means the source did not provide it.
type Record struct {
	ID        uuid.UUID `json:"id"`
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	CreatedAt time.Time `json:"created_at"`
}

// Query filters stored records of one symbol. Zero From/To mean unbounded.
type Query struct {
	Symbol string
	From   time.Time
	To     time.Time
	Limit  int
}

// Stats summarizes one asset class table.
type Stats struct {
	TotalRecords int64 `json:"total_records"`
	SymbolsCount int64 `json:"symbols_count"`
}

// DateLayout is the wire format of every date parameter.
const DateLayout = "2006-01-02"

// Day truncates t to midnight UTC of its calendar day in t's own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", s, err)
	}
	return t, nil
}

// ToRecord binds a bar to a symbol and normalizes its timestamp to a daily date.
func (b Bar) ToRecord(symbol string) Record {
	return Record{
		Symbol:    symbol,
		Timestamp: Day(b.Timestamp),
		Open:      b.Open,
		High:      b.High,
		Low:       b.Low,
		Close:     b.Close,
		Volume:    b.Volume,
	}
}
