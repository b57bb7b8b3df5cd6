package broker

import (
	"time"

	"marketdata-backfill/internal/domain/entity/ohlcv"
)

// PlanConfig controls how a long backfill is cut into queued jobs.
type PlanConfig struct {
	// Window is the widest date span of one job. Zero keeps the range whole.
	Window time.Duration
}

// PlanJobs expands symbols and [from, to) into ingest requests, one per symbol and window.
// Windows are contiguous and do not overlap, so replaying a plan does not request a day twice.
func PlanJobs(cfg PlanConfig, class ohlcv.AssetClass, symbols []string, from, to time.Time) []IngestRequest {
	if len(symbols) == 0 || !from.Before(to) {
		return nil
	}
	windows := splitRange(from, to, cfg.Window)
	out := make([]IngestRequest, 0, len(symbols)*len(windows))
	for _, symbol := range symbols {
		for _, w := range windows {
			out = append(out, IngestRequest{
				Class:     class.String(),
				Symbol:    symbol,
				StartDate: w[0].Format(ohlcv.DateLayout),
				EndDate:   w[1].Format(ohlcv.DateLayout),
			})
		}
	}
	return out
}

func splitRange(from, to time.Time, window time.Duration) [][2]time.Time {
	if window < 24*time.Hour {
		return [][2]time.Time{{from, to}}
	}
	days := int(window / (24 * time.Hour))
	var out [][2]time.Time
	for start := from; start.Before(to); {
		end := start.AddDate(0, 0, days)
		if end.After(to) {
			end = to
		}
		out = append(out, [2]time.Time{start, end})
		start = end
	}
	return out
}
