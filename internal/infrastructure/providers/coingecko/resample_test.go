package coingecko

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(day, hour, minute int) time.Time {
	return time.Date(2024, time.January, day, hour, minute, 0, 0, time.UTC)
}

// nine irregular samples over four calendar days, with gaps on the 3rd and 5th-6th
func scenarioPoints() []PricePoint {
	return []PricePoint{
		{At: at(1, 0, 5), Price: 100},
		{At: at(1, 7, 40), Price: 104},
		{At: at(1, 23, 59), Price: 101},
		{At: at(2, 11, 0), Price: 99},
		{At: at(2, 16, 30), Price: 97},
		{At: at(4, 3, 0), Price: 110},
		{At: at(7, 1, 0), Price: 120},
		{At: at(7, 12, 0), Price: 125},
		{At: at(7, 22, 0), Price: 118},
	}
}

func TestResampleDailyBuckets(t *testing.T) {
	bars := Resample(scenarioPoints())
	require.Len(t, bars, 4)

	assert.Equal(t, at(1, 0, 0), bars[0].Timestamp)
	assert.Equal(t, 100.0, bars[0].Open)
	assert.Equal(t, 104.0, bars[0].High)
	assert.Equal(t, 100.0, bars[0].Low)
	assert.Equal(t, 101.0, bars[0].Close)

	assert.Equal(t, at(2, 0, 0), bars[1].Timestamp)
	assert.Equal(t, 99.0, bars[1].Open)
	assert.Equal(t, 97.0, bars[1].Close)

	assert.Equal(t, at(4, 0, 0), bars[2].Timestamp)
	assert.Equal(t, 110.0, bars[2].Open)
	assert.Equal(t, 110.0, bars[2].High)
	assert.Equal(t, 110.0, bars[2].Low)
	assert.Equal(t, 110.0, bars[2].Close)

	assert.Equal(t, at(7, 0, 0), bars[3].Timestamp)
	assert.Equal(t, 120.0, bars[3].Open)
	assert.Equal(t, 125.0, bars[3].High)
	assert.Equal(t, 118.0, bars[3].Low)
	assert.Equal(t, 118.0, bars[3].Close)

	for _, b := range bars {
		assert.Zero(t, b.Volume)
	}
}

func TestResampleUnsortedInput(t *testing.T) {
	points := scenarioPoints()
	reversed := make([]PricePoint, len(points))
	for i, p := range points {
		reversed[len(points)-1-i] = p
	}

	assert.Equal(t, Resample(points), Resample(reversed))
}

func TestResampleOpenCloseFollowChronology(t *testing.T) {
	bars := Resample([]PricePoint{
		{At: at(5, 18, 0), Price: 3},
		{At: at(5, 6, 0), Price: 1},
		{At: at(5, 12, 0), Price: 9},
	})
	require.Len(t, bars, 1)
	assert.Equal(t, 1.0, bars[0].Open)
	assert.Equal(t, 3.0, bars[0].Close)
	assert.Equal(t, 9.0, bars[0].High)
	assert.Equal(t, 1.0, bars[0].Low)
}

func TestResampleBucketsByUTCDay(t *testing.T) {
	paris := time.FixedZone("CET", 3600)
	// 00:30 in Paris on the 2nd is still the 1st in UTC.
	bars := Resample([]PricePoint{
		{At: time.Date(2024, time.January, 2, 0, 30, 0, 0, paris), Price: 5},
	})
	require.Len(t, bars, 1)
	assert.Equal(t, at(1, 0, 0), bars[0].Timestamp)
}

func TestResampleEmpty(t *testing.T) {
	assert.Empty(t, Resample(nil))
}
