package viz

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/mdsim/internal/experiment"
)

const DefaultChunk = 200

type runDoneMsg struct {
	res *experiment.Result
	err error
}

// Inspector is a Bubble Tea model over a built experiment.
type Inspector struct {
	exp     *experiment.Experiment
	chunk   uint64
	target  uint64
	cursor  int
	metric  int
	theme   Theme
	st      styles
	running bool
	status  string
	err     error
	last    *experiment.Result
	width   int
}

func NewInspector(exp *experiment.Experiment, chunk uint64) Inspector {
	if chunk == 0 {
		chunk = DefaultChunk
	}
	return Inspector{
		exp:    exp,
		chunk:  chunk,
		target: exp.Config().Run.Steps,
		theme:  Themes[0],
		st:     stylesFor(Themes[0]),
		width:  80,
	}
}

func (m Inspector) Init() tea.Cmd { return nil }

func (m Inspector) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case runDoneMsg:
		m.running = false
		m.err = msg.err
		if msg.res != nil {
			m.last = msg.res
		}
		if msg.err == nil {
			m.status = fmt.Sprintf("ran %d steps in %s", m.chunk, msg.res.Elapsed.Round(time.Millisecond))
		}
	}
	return m, nil
}

func (m Inspector) handleKey(msg tea.KeyMsg) (Inspector, tea.Cmd) {
	methods := m.exp.Methods()
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(methods)-1 {
			m.cursor++
		}
	case " ", "enter":
		if m.running || len(methods) == 0 {
			return m, nil
		}
		meth := methods[m.cursor]
		if meth.Enabled() {
			m.err = meth.Disable()
		} else {
			m.err = meth.Enable()
		}
		m.status = fmt.Sprintf("%s on %s %s", meth.Kind(), meth.Group().Name(), onOff(meth.Enabled()))
	case "r":
		if m.running {
			return m, nil
		}
		m.running, m.err, m.status = true, nil, ""
		return m, m.runChunk()
	case "tab":
		if n := len(m.exp.Recorder().Names()); n > 0 {
			m.metric = (m.metric + 1) % n
		}
	case "t":
		m.theme = nextTheme(m.theme.Name)
		m.st = stylesFor(m.theme)
	}
	return m, nil
}

func (m Inspector) runChunk() tea.Cmd {
	exp, steps := m.exp, m.chunk
	return func() tea.Msg {
		res, err := exp.RunSteps(context.Background(), steps)
		return runDoneMsg{res: res, err: err}
	}
}

func onOff(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

func (m Inspector) View() string {
	st := m.st
	var b strings.Builder

	cfg := m.exp.Config()
	b.WriteString("\n  " + st.title.Render(strings.ToUpper(cfg.Name)) + "\n\n")

	var step uint64
	if m.last != nil && len(m.last.Steps) > 0 {
		step = m.last.Steps[len(m.last.Steps)-1]
	}
	row := func(label, value string) {
		b.WriteString("  " + st.label.Render(label) + st.value.Render(value) + "\n")
	}
	row("mode", fmt.Sprintf("%s  dt=%g", m.exp.ModeName(), cfg.Mode.Dt))
	row("particles", fmt.Sprintf("%d  types=%s", cfg.System.N, strings.Join(cfg.System.Types, ",")))
	row("sampled", fmt.Sprintf("%d  %s", step, ProgressBar(step, m.target, 20)))
	b.WriteString("\n")

	b.WriteString("  " + st.title.Render("methods") + "\n")
	methods := m.exp.Methods()
	if len(methods) == 0 {
		b.WriteString("    " + st.muted.Render("none") + "\n")
	}
	for i, meth := range methods {
		pointer := "  "
		if i == m.cursor {
			pointer = st.cursor.Render("▸ ")
		}
		state := st.disabled.Render("off")
		if meth.Enabled() {
			state = st.enabled.Render("on ")
		}
		fmt.Fprintf(&b, "  %s%s %-6s %s\n", pointer, state, meth.Kind(), st.muted.Render(meth.Group().Name()))
	}
	b.WriteString("\n")

	if names := m.exp.Recorder().Names(); len(names) > 0 && m.last != nil {
		name := names[m.metric%len(names)]
		series := m.last.Series[name]
		b.WriteString("  " + st.title.Render(name))
		if len(series) > 0 {
			b.WriteString(st.value.Render(fmt.Sprintf("  %.5g", series[len(series)-1])))
		}
		b.WriteString("\n")
		graph := PlotSeries(name, series, max(m.width-16, 20), 8)
		b.WriteString(st.panel.Render(graph) + "\n")
	}

	switch {
	case m.running:
		b.WriteString("  " + st.muted.Render("running...") + "\n")
	case m.err != nil:
		b.WriteString("  " + st.err.Render(m.err.Error()) + "\n")
	case m.status != "":
		b.WriteString("  " + st.muted.Render(m.status) + "\n")
	}

	b.WriteString("\n  ")
	for _, h := range [][2]string{{"j/k", "select"}, {"space", "toggle"}, {"r", "run"}, {"tab", "metric"}, {"t", "theme"}, {"q", "quit"}} {
		b.WriteString(st.key.Render(h[0]) + st.muted.Render(" "+h[1]+"  "))
	}
	b.WriteString("\n")
	return b.String()
}

// RunInspector blocks until the user quits.
func RunInspector(exp *experiment.Experiment, chunk uint64) error {
	_, err := tea.NewProgram(NewInspector(exp, chunk), tea.WithAltScreen()).Run()
	return err
}
