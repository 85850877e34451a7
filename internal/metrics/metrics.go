// Package metrics computes thermodynamic observables from engine snapshots
// and records them as time series during a run.
package metrics

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/mdsim/internal/dynamo"
)

type Metric interface {
	Name() string
	Observe(snap dynamo.Snapshot)
	// Value summarizes every observation since Reset.
	Value() float64
	// Last is the value of the most recent observation.
	Last() float64
	Reset()
}

var factories = map[string]func() Metric{
	"kinetic_energy":   NewKinetic,
	"potential_energy": NewPotential,
	"total_energy":     NewTotalEnergy,
	"temperature":      NewTemperature,
	"pressure":         NewPressure,
	"momentum":         NewMomentum,
	"energy_drift":     func() Metric { return NewEnergyDrift() },
}

// New returns a fresh metric by name.
func New(name string) (Metric, error) {
	f, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown metric %q", dynamo.ErrConfiguration, name)
	}
	return f(), nil
}

// Names lists the known metrics, sorted.
func Names() []string {
	out := make([]string, 0, len(factories))
	for n := range factories {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Default is the set recorded when a script names none.
func Default() []string {
	return []string{"temperature", "kinetic_energy", "potential_energy", "total_energy", "pressure"}
}

// Recorder observes snapshots and keeps one series per metric. It
// satisfies the CPU engine's Analyzer interface.
type Recorder struct {
	metrics []Metric
	steps   []uint64
	times   []float64
	series  map[string][]float64
}

func NewRecorder(ms ...Metric) *Recorder {
	r := &Recorder{metrics: ms, series: make(map[string][]float64, len(ms))}
	for _, m := range ms {
		r.series[m.Name()] = make([]float64, 0)
	}
	return r
}

// NewRecorderByName builds a recorder from metric names.
func NewRecorderByName(names ...string) (*Recorder, error) {
	ms := make([]Metric, 0, len(names))
	for _, n := range names {
		m, err := New(n)
		if err != nil {
			return nil, err
		}
		ms = append(ms, m)
	}
	return NewRecorder(ms...), nil
}

func (r *Recorder) Analyze(snap dynamo.Snapshot) {
	r.steps = append(r.steps, snap.Step)
	r.times = append(r.times, snap.Time)
	for _, m := range r.metrics {
		m.Observe(snap)
		r.series[m.Name()] = append(r.series[m.Name()], m.Last())
	}
}

func (r *Recorder) Metrics() []Metric            { return r.metrics }
func (r *Recorder) Steps() []uint64              { return r.steps }
func (r *Recorder) Times() []float64             { return r.times }
func (r *Recorder) Len() int                     { return len(r.steps) }
func (r *Recorder) Series(name string) []float64 { return r.series[name] }

// Names lists the recorded metrics in recording order.
func (r *Recorder) Names() []string {
	out := make([]string, len(r.metrics))
	for i, m := range r.metrics {
		out[i] = m.Name()
	}
	return out
}

// Values returns each metric's summary value.
func (r *Recorder) Values() map[string]float64 {
	out := make(map[string]float64, len(r.metrics))
	for _, m := range r.metrics {
		out[m.Name()] = m.Value()
	}
	return out
}

// Stats describes one recorded series.
type Stats struct {
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// Summary computes Stats for a recorded series. An empty series gives the
// zero value.
func (r *Recorder) Summary(name string) Stats {
	xs := r.series[name]
	if len(xs) == 0 {
		return Stats{}
	}
	mu, sd := stat.MeanStdDev(xs, nil)
	if len(xs) == 1 {
		sd = 0
	}
	lo, hi := xs[0], xs[0]
	for _, x := range xs[1:] {
		lo = min(lo, x)
		hi = max(hi, x)
	}
	return Stats{Mean: mu, StdDev: sd, Min: lo, Max: hi}
}

func (r *Recorder) Reset() {
	r.steps = r.steps[:0]
	r.times = r.times[:0]
	for _, m := range r.metrics {
		m.Reset()
		r.series[m.Name()] = r.series[m.Name()][:0]
	}
}
