package viz

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/mdsim/internal/config"
	"github.com/san-kum/mdsim/internal/experiment"
	"github.com/san-kum/mdsim/internal/storage"
	"github.com/san-kum/mdsim/internal/variant"
)

func newInspector(t *testing.T) Inspector {
	t.Helper()
	cfg := config.GetPreset("bdnvt", "split")
	cfg.System.N = 64
	cfg.System.Workers = 2
	exp, err := experiment.Build(cfg, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return NewInspector(exp, 10)
}

func press(m Inspector, key string) (Inspector, tea.Cmd) {
	var msg tea.KeyMsg
	switch key {
	case " ":
		msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, cmd := m.Update(msg)
	return next.(Inspector), cmd
}

func TestInspectorToggle(t *testing.T) {
	m := newInspector(t)
	m, _ = press(m, "j")
	if m.cursor != 1 {
		t.Fatalf("expected cursor 1, got %d", m.cursor)
	}
	m, _ = press(m, "j")
	if m.cursor != 1 {
		t.Errorf("cursor moved past the last method: %d", m.cursor)
	}

	m, _ = press(m, " ")
	if m.exp.Methods()[1].Enabled() {
		t.Error("expected bdnvt to be disabled")
	}
	if !strings.Contains(m.View(), "off") {
		t.Error("view does not show the disabled method")
	}

	m, _ = press(m, " ")
	if !m.exp.Methods()[1].Enabled() {
		t.Error("expected bdnvt to be enabled again")
	}
}

func TestInspectorRunChunk(t *testing.T) {
	m := newInspector(t)
	m, cmd := press(m, "r")
	if cmd == nil || !m.running {
		t.Fatal("expected a run command")
	}

	next, _ := m.Update(cmd())
	m = next.(Inspector)
	if m.running || m.err != nil {
		t.Fatalf("run did not finish cleanly: %v", m.err)
	}
	if m.exp.System().Timestep() != 10 {
		t.Errorf("expected timestep 10, got %d", m.exp.System().Timestep())
	}
	if !strings.Contains(m.View(), "temperature") {
		t.Error("view does not plot the first metric")
	}
}

func TestInspectorRunErrorShown(t *testing.T) {
	m := newInspector(t)
	for range m.exp.Methods() {
		m, _ = press(m, " ")
		m, _ = press(m, "j")
	}

	m, cmd := press(m, "r")
	next, _ := m.Update(cmd())
	m = next.(Inspector)
	if m.err == nil {
		t.Fatal("expected an error with every method disabled")
	}
	if m.exp.System().Timestep() != 0 {
		t.Error("system advanced without methods")
	}
}

func TestInspectorCycles(t *testing.T) {
	m := newInspector(t)
	m, _ = press(m, "tab")
	if m.metric != 1 {
		t.Errorf("expected metric 1, got %d", m.metric)
	}
	m, _ = press(m, "t")
	if m.theme.Name != Themes[1].Name {
		t.Errorf("expected theme %s, got %s", Themes[1].Name, m.theme.Name)
	}
	if _, cmd := press(m, "q"); cmd == nil {
		t.Error("expected quit command")
	}
}

func TestPlotThermo(t *testing.T) {
	thermo := &storage.Thermo{
		Steps:  []uint64{1, 2, 3},
		Times:  []float64{0.1, 0.2, 0.3},
		Names:  []string{"temperature"},
		Values: map[string][]float64{"temperature": {1, 1.5, 2}},
	}
	out, err := PlotThermo(thermo, nil, 30, 5)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "temperature") {
		t.Errorf("missing caption:\n%s", out)
	}
	if _, err := PlotThermo(thermo, []string{"pressure"}, 30, 5); err == nil {
		t.Error("expected error for a missing series")
	}
}

func TestPlotVariant(t *testing.T) {
	v := variant.MustLinear(variant.Point{Step: 0, Value: 2}, variant.Point{Step: 100, Value: 1})
	out := PlotVariant(v, 0, 100, 40, 6)
	if !strings.Contains(out, "0:2,100:1") {
		t.Errorf("missing caption:\n%s", out)
	}
	if PlotSeries("empty", nil, 0, 0) != "empty: no samples" {
		t.Error("expected placeholder for an empty series")
	}
}

func TestSparklineAndProgress(t *testing.T) {
	if got := Sparkline([]float64{0, 1}, 4); got != "▁█" {
		t.Errorf("unexpected sparkline %q", got)
	}
	if got := Sparkline([]float64{1, 2, 3, 4, 5}, 2); []rune(got)[1] != '█' {
		t.Errorf("expected the last values, got %q", got)
	}
	if got := ProgressBar(5, 10, 4); got != "██░░" {
		t.Errorf("unexpected bar %q", got)
	}
	if got := ProgressBar(1, 0, 3); got != "░░░" {
		t.Errorf("unexpected bar %q", got)
	}
}
