// Package chart renders voxel-value distributions as PNG images.
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// DefaultBins is used when Histogram is called with bins <= 0.
const DefaultBins = 50

// ErrNoData is returned when there are no finite values to plot.
var ErrNoData = errors.New("chart: no finite values")

const (
	width  = 6 * vg.Inch
	height = 4 * vg.Inch
)

// Histogram renders a histogram of values as PNG bytes. NaN and infinite
// values are skipped.
func Histogram(values []float64, bins int, title string) ([]byte, error) {
	if bins <= 0 {
		bins = DefaultBins
	}

	finite := make(plotter.Values, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return nil, ErrNoData
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "value"
	p.Y.Label.Text = "voxels"

	h, err := plotter.NewHist(finite, bins)
	if err != nil {
		return nil, fmt.Errorf("chart: %w", err)
	}
	p.Add(h)

	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return nil, fmt.Errorf("chart: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("chart: %w", err)
	}
	return buf.Bytes(), nil
}
