// Package export writes stored runs in formats other tools read.
package export

import (
	"bufio"
	"fmt"
	"io"

	"github.com/san-kum/mdsim/internal/storage"
)

const (
	DefaultWidth  = 800
	DefaultHeight = 300
	DefaultStroke = "#00ff88"
)

// ThermoSVG draws one series of a run against simulation time as an SVG
// path.
func ThermoSVG(w io.Writer, thermo *storage.Thermo, name string, width, height int, stroke string) error {
	ys, ok := thermo.Values[name]
	if !ok {
		return fmt.Errorf("run has no %q series", name)
	}
	if len(ys) < 2 {
		return fmt.Errorf("series %q needs at least 2 samples, has %d", name, len(ys))
	}
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	if stroke == "" {
		stroke = DefaultStroke
	}

	minX, maxX := bounds(thermo.Times)
	minY, maxY := bounds(ys)

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minY -= rangeY * 0.1
	rangeY *= 1.2

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<title>%s</title>
<path fill="none" stroke="%s" stroke-width="1.5" d="M`,
		width, height, width, height, name, stroke)

	for i, y := range ys {
		px := (thermo.Times[i] - minX) / rangeX * float64(width)
		py := float64(height) - (y-minY)/rangeY*float64(height)
		if i == 0 {
			fmt.Fprintf(bw, "%.1f,%.1f", px, py)
		} else {
			fmt.Fprintf(bw, " L%.1f,%.1f", px, py)
		}
	}

	bw.WriteString(`"/>
</svg>
`)
	return bw.Flush()
}

func bounds(vs []float64) (lo, hi float64) {
	lo, hi = vs[0], vs[0]
	for _, v := range vs {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return lo, hi
}
