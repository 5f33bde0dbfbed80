package risk

import (
	"math"
	"sort"

	"github.com/pnlync/asset-forecast-api/internal/history"
)

// TimeSeries holds aligned price series for a set of symbols. Dates are
// ascending; missing observations are NaN until filled or dropped.
type TimeSeries struct {
	Dates []string
	Data  map[string][]float64
}

// AlignSeries merges per-symbol daily prices onto the union of their dates.
// Input slices may be in any order; output dates are ascending and symbols
// without an observation on a date get NaN.
func AlignSeries(bySymbol map[string][]history.DailyPrice) TimeSeries {
	dateSet := make(map[string]bool)
	priceByDate := make(map[string]map[string]float64, len(bySymbol))

	for symbol, prices := range bySymbol {
		priceByDate[symbol] = make(map[string]float64, len(prices))
		for _, p := range prices {
			priceByDate[symbol][p.Date] = p.Close
			dateSet[p.Date] = true
		}
	}

	dates := make([]string, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	data := make(map[string][]float64, len(bySymbol))
	for symbol := range bySymbol {
		series := make([]float64, len(dates))
		for i, d := range dates {
			if v, ok := priceByDate[symbol][d]; ok {
				series[i] = v
			} else {
				series[i] = math.NaN()
			}
		}
		data[symbol] = series
	}

	return TimeSeries{Dates: dates, Data: data}
}

// ForwardFill carries the last observed price across interior gaps, per
// symbol. Dates before a symbol's first observation stay NaN so that
// DropIncompleteRows removes them; back-filling those would fabricate a
// pre-listing price history.
func (ts TimeSeries) ForwardFill() TimeSeries {
	filled := TimeSeries{
		Dates: ts.Dates,
		Data:  make(map[string][]float64, len(ts.Data)),
	}

	for symbol, prices := range ts.Data {
		out := make([]float64, len(prices))
		copy(out, prices)

		var lastValid float64
		hasLastValid := false
		for i := 0; i < len(out); i++ {
			if math.IsNaN(out[i]) {
				if hasLastValid {
					out[i] = lastValid
				}
			} else {
				lastValid = out[i]
				hasLastValid = true
			}
		}

		filled.Data[symbol] = out
	}

	return filled
}

// DropIncompleteRows removes dates where any symbol still has NaN. Mirrors a
// dataframe dropna across columns.
func (ts TimeSeries) DropIncompleteRows() TimeSeries {
	keep := make([]int, 0, len(ts.Dates))
	for i := range ts.Dates {
		complete := true
		for _, series := range ts.Data {
			if math.IsNaN(series[i]) {
				complete = false
				break
			}
		}
		if complete {
			keep = append(keep, i)
		}
	}

	out := TimeSeries{
		Dates: make([]string, len(keep)),
		Data:  make(map[string][]float64, len(ts.Data)),
	}
	for j, i := range keep {
		out.Dates[j] = ts.Dates[i]
	}
	for symbol, series := range ts.Data {
		kept := make([]float64, len(keep))
		for j, i := range keep {
			kept[j] = series[i]
		}
		out.Data[symbol] = kept
	}

	return out
}
