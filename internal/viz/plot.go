package viz

import (
	"fmt"
	"strings"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/mdsim/internal/storage"
	"github.com/san-kum/mdsim/internal/variant"
)

const (
	plotWidth  = 72
	plotHeight = 12
)

// PlotSeries draws one recorded series.
func PlotSeries(name string, values []float64, width, height int) string {
	if len(values) == 0 {
		return fmt.Sprintf("%s: no samples", name)
	}
	if width <= 0 {
		width = plotWidth
	}
	if height <= 0 {
		height = plotHeight
	}
	return asciigraph.Plot(values,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(name),
	)
}

// PlotThermo draws every requested series of a stored run, or all of them
// when names is empty.
func PlotThermo(thermo *storage.Thermo, names []string, width, height int) (string, error) {
	if len(names) == 0 {
		names = thermo.Names
	}
	var b strings.Builder
	for i, n := range names {
		s, ok := thermo.Values[n]
		if !ok {
			return "", fmt.Errorf("run has no %q series (have %s)", n, strings.Join(thermo.Names, ", "))
		}
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(PlotSeries(n, s, width, height))
	}
	return b.String(), nil
}

// PlotVariant samples v over [from, to] and draws it.
func PlotVariant(v variant.Variant, from, to uint64, width, height int) string {
	if width <= 0 {
		width = plotWidth
	}
	samples := v.Sample(from, to, width)
	return PlotSeries(fmt.Sprintf("%s over steps %d-%d", v, from, to), samples, width, height)
}
