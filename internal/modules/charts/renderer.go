// Package charts renders simulation results as PNG line charts.
package charts

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vicanso/go-charts/v2"
)

// RenderForecast renders the expected-price trajectory of a forecast run.
// Element 0 is the last observed price, later elements are simulated days.
func RenderForecast(symbol string, expected []float64) ([]byte, error) {
	if len(expected) < 2 {
		return nil, errors.New("not enough data points")
	}

	xAxis := make([]string, len(expected))
	for i := range expected {
		xAxis[i] = fmt.Sprintf("Day %d", i)
	}

	yMin, yMax := expected[0], expected[0]
	for _, v := range expected {
		if v < yMin {
			yMin = v
		}
		if v > yMax {
			yMax = v
		}
	}
	pad := (yMax - yMin) * 0.05
	if pad < yMax*0.002 {
		pad = yMax * 0.002
	}
	yMin -= pad
	if yMin < 0 {
		yMin = 0
	}
	yMax += pad

	title := strings.ToUpper(symbol) + " • " + fmt.Sprintf("%d-day expected price", len(expected)-1)

	painter, err := charts.LineRender([][]float64{expected},
		charts.TitleTextOptionFunc(title),
		charts.XAxisOptionFunc(charts.XAxisOption{Data: xAxis, BoundaryGap: charts.FalseFlag()}),
		charts.YAxisOptionFunc(charts.YAxisOption{Min: &yMin, Max: &yMax, DivideCount: 5}),
		charts.ThemeOptionFunc(charts.ThemeLight),
	)
	if err != nil {
		return nil, err
	}

	return painter.Bytes()
}
