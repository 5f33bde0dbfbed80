package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pnlync/asset-forecast-api/internal/history"
)

func TestAlignSeries(t *testing.T) {
	ts := AlignSeries(map[string][]history.DailyPrice{
		"AAA": {
			{Date: "2026-08-26", Close: 101},
			{Date: "2026-08-25", Close: 100},
			{Date: "2026-08-27", Close: 102},
		},
		"BBB": {
			{Date: "2026-08-25", Close: 50},
			{Date: "2026-08-27", Close: 52},
		},
	})

	require.Equal(t, []string{"2026-08-25", "2026-08-26", "2026-08-27"}, ts.Dates)
	assert.Equal(t, []float64{100, 101, 102}, ts.Data["AAA"])

	require.Len(t, ts.Data["BBB"], 3)
	assert.Equal(t, 50.0, ts.Data["BBB"][0])
	assert.True(t, math.IsNaN(ts.Data["BBB"][1]))
	assert.Equal(t, 52.0, ts.Data["BBB"][2])
}

func TestForwardFill(t *testing.T) {
	ts := TimeSeries{
		Dates: []string{"d1", "d2", "d3", "d4"},
		Data: map[string][]float64{
			"AAA": {math.NaN(), 10, math.NaN(), 12},
		},
	}

	filled := ts.ForwardFill()

	// Interior NaN forward-filled; leading NaN stays, there is nothing to
	// carry forward yet.
	assert.True(t, math.IsNaN(filled.Data["AAA"][0]))
	assert.Equal(t, []float64{10, 10, 12}, filled.Data["AAA"][1:])
}

func TestForwardFillThenDropTrimsPreListingDates(t *testing.T) {
	ts := TimeSeries{
		Dates: []string{"d1", "d2", "d3", "d4"},
		Data: map[string][]float64{
			"AAA": {1, 2, 3, 4},
			"BBB": {math.NaN(), math.NaN(), 30, math.NaN()},
		},
	}

	clean := ts.ForwardFill().DropIncompleteRows()

	// BBB only starts trading on d3, so d1 and d2 are dropped rather than
	// invented. Its d4 gap is carried forward from d3.
	require.Equal(t, []string{"d3", "d4"}, clean.Dates)
	assert.Equal(t, []float64{3, 4}, clean.Data["AAA"])
	assert.Equal(t, []float64{30, 30}, clean.Data["BBB"])
}

func TestDropIncompleteRows(t *testing.T) {
	ts := TimeSeries{
		Dates: []string{"d1", "d2", "d3"},
		Data: map[string][]float64{
			"AAA": {1, 2, 3},
			"BBB": {4, math.NaN(), 6},
		},
	}

	clean := ts.DropIncompleteRows()

	assert.Equal(t, []string{"d1", "d3"}, clean.Dates)
	assert.Equal(t, []float64{1, 3}, clean.Data["AAA"])
	assert.Equal(t, []float64{4, 6}, clean.Data["BBB"])
}

func TestDropIncompleteRowsAllComplete(t *testing.T) {
	ts := TimeSeries{
		Dates: []string{"d1", "d2"},
		Data:  map[string][]float64{"AAA": {1, 2}},
	}

	clean := ts.DropIncompleteRows()
	assert.Equal(t, ts.Dates, clean.Dates)
	assert.Equal(t, ts.Data["AAA"], clean.Data["AAA"])
}
