package broker

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"marketdata-backfill/internal/domain/entity/ohlcv"
)

var ErrInvalidPayload = errors.New("invalid ingest request")

// IngestRequest is one queued backfill job. Dates use the YYYY-MM-DD layout; an empty
// EndDate means today.
type IngestRequest struct {
	Class     string `json:"class"`
	Symbol    string `json:"symbol"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date,omitempty"`
}

// Job is a validated IngestRequest.
type Job struct {
	Class  ohlcv.AssetClass
	Symbol string
	From   time.Time
	To     time.Time
}

// Parse validates the request. now supplies the default end date.
func (r IngestRequest) Parse(now time.Time) (Job, error) {
	class, err := ohlcv.ParseAssetClass(r.Class)
	if err != nil {
		return Job{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	symbol := strings.TrimSpace(r.Symbol)
	if symbol == "" {
		return Job{}, fmt.Errorf("%w: symbol is required", ErrInvalidPayload)
	}
	from, err := ohlcv.ParseDate(r.StartDate)
	if err != nil {
		return Job{}, fmt.Errorf("%w: start_date: %v", ErrInvalidPayload, err)
	}
	to := ohlcv.Day(now.UTC())
	if strings.TrimSpace(r.EndDate) != "" {
		if to, err = ohlcv.ParseDate(r.EndDate); err != nil {
			return Job{}, fmt.Errorf("%w: end_date: %v", ErrInvalidPayload, err)
		}
	}
	if from.After(to) {
		return Job{}, fmt.Errorf("%w: start_date %s is after end_date %s", ErrInvalidPayload, r.StartDate, to.Format(ohlcv.DateLayout))
	}
	return Job{Class: class, Symbol: symbol, From: from, To: to}, nil
}
