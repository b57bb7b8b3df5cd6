package coingecko

import (
	"sort"
	"time"

	"marketdata-backfill/internal/domain/entity/ohlcv"
)

// PricePoint is one sampled close price.
type PricePoint struct {
	At    time.Time
	Price float64
}

// Resample buckets irregular price samples into UTC calendar days. Open and close are the
// chronologically first and last samples of the day, high and low the extremes. Volume is
// always 0 because the price series carries none. Days without samples produce no bar.
func Resample(points []PricePoint) []ohlcv.Bar {
	if len(points) == 0 {
		return nil
	}
	sorted := make([]PricePoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].At.Before(sorted[j].At)
	})

	var bars []ohlcv.Bar
	var cur *ohlcv.Bar
	for _, p := range sorted {
		day := ohlcv.Day(p.At.UTC())
		if cur == nil || !cur.Timestamp.Equal(day) {
			bars = append(bars, ohlcv.Bar{
				Timestamp: day,
				Open:      p.Price,
				High:      p.Price,
				Low:       p.Price,
				Close:     p.Price,
			})
			cur = &bars[len(bars)-1]
			continue
		}
		if p.Price > cur.High {
			cur.High = p.Price
		}
		if p.Price < cur.Low {
			cur.Low = p.Price
		}
		cur.Close = p.Price
	}
	return bars
}
