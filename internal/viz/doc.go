// Package viz renders runs in the terminal.
//
// Plots of recorded series and temperature/pressure schedules are drawn
// with asciigraph. [Inspector] is a Bubble Tea program over a built
// experiment: it lists the integration methods, toggles them, and advances
// the run in chunks, refreshing the integrator mode before each chunk.
//
// # Key Bindings
//
//	j/k   - Select method
//	Space - Enable/disable the selected method
//	R     - Run one chunk
//	Tab   - Cycle the plotted metric
//	T     - Cycle color themes
//	Q     - Quit
package viz
