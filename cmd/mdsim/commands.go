package main

import (
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/go-kit/kit/log/level"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/mdsim/internal/automation"
	"github.com/san-kum/mdsim/internal/config"
	"github.com/san-kum/mdsim/internal/experiment"
	"github.com/san-kum/mdsim/internal/export"
	"github.com/san-kum/mdsim/internal/integrate"
	"github.com/san-kum/mdsim/internal/metrics"
	"github.com/san-kum/mdsim/internal/optim"
	"github.com/san-kum/mdsim/internal/storage"
	"github.com/san-kum/mdsim/internal/variant"
	"github.com/san-kum/mdsim/internal/viz"
)

// loadScript resolves the script a command works on: a file argument, a
// --preset, or the built-in default.
func loadScript(args []string) (*config.Config, error) {
	var cfg *config.Config
	switch {
	case len(args) == 1 && preset != "":
		return nil, fmt.Errorf("give either a script or --preset, not both")
	case len(args) == 1:
		var err error
		if cfg, err = config.Load(args[0]); err != nil {
			return nil, err
		}
	case preset != "":
		group, name, ok := strings.Cut(preset, "/")
		if !ok {
			return nil, fmt.Errorf("preset must be group/name, got %q", preset)
		}
		if cfg = config.GetPreset(group, name); cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available in %s: %v)", preset, group, config.ListPresets(group))
		}
	default:
		cfg = config.DefaultConfig()
	}

	if settings.Workers > 0 {
		cfg.System.Workers = settings.Workers
	}
	return cfg, nil
}

func runScript(cmd *cobra.Command, args []string) error {
	cfg, err := loadScript(args)
	if err != nil {
		return err
	}
	if steps > 0 {
		cfg.Run.Steps = steps
	}
	if dt > 0 {
		cfg.Mode.Dt = dt
	}

	exp, err := experiment.Build(cfg, experiment.NewRegistry(), logger)
	if err != nil {
		return err
	}

	level.Info(logger).Log("op", "run", "name", cfg.Name, "steps", cfg.Run.Steps)
	res, err := exp.Run(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("%s: %d steps in %v\n", cfg.Name, cfg.Run.Steps, res.Elapsed)
	if fire, ok := exp.Mode().(*integrate.FIRE); ok {
		fmt.Printf("converged: %v\n", fire.Converged())
	}
	printMetrics(res.Metrics)

	if noSave {
		return nil
	}
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer storage.CloseIfSupported(st)

	meta, thermo := exp.Record(res)
	id, err := st.Save(cmd.Context(), meta, thermo)
	if err != nil {
		return err
	}
	fmt.Printf("run id: %s\n", id)
	return nil
}

func printMetrics(m map[string]float64) {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Printf("  %-18s %.6f\n", n, m[n])
	}
}

func inspectScript(cmd *cobra.Command, args []string) error {
	cfg, err := loadScript(args)
	if err != nil {
		return err
	}
	// warnings from enable/disable would tear the alt screen
	exp, err := experiment.Build(cfg, experiment.NewRegistry(), nil)
	if err != nil {
		return err
	}
	return viz.RunInspector(exp, chunk)
}

func listPresets(cmd *cobra.Command, args []string) error {
	groups := config.ListGroups()
	if len(args) == 1 {
		groups = []string{args[0]}
	}
	for _, g := range groups {
		names := config.ListPresets(g)
		if len(names) == 0 {
			return fmt.Errorf("no presets in group %q (groups: %v)", g, config.ListGroups())
		}
		for _, n := range names {
			cfg := config.GetPreset(g, n)
			methods := make([]string, len(cfg.Methods))
			for i, m := range cfg.Methods {
				methods[i] = m.Kind + "@" + m.Group
			}
			fmt.Printf("%-16s %-8s %s\n", g+"/"+n, cfg.Mode.Kind, strings.Join(methods, " "))
		}
	}
	return nil
}

func dumpPreset(cmd *cobra.Command, args []string) error {
	group, name, _ := strings.Cut(args[0], "/")
	cfg := config.GetPreset(group, name)
	if cfg == nil {
		return fmt.Errorf("unknown preset: %s", args[0])
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(cfg)
}

func listRuns(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer storage.CloseIfSupported(st)

	runs, err := st.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTIME\tMODE\tMETHODS\tN\tDT\tSTEPS")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%g\t%d\n",
			run.ID,
			run.Name,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Mode,
			strings.Join(run.Methods, ","),
			run.N,
			run.Dt,
			run.Steps,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer storage.CloseIfSupported(st)

	meta, err := st.Load(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	thermo, err := st.LoadThermo(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if thermo.Len() == 0 {
		return fmt.Errorf("run %s has no samples", meta.ID)
	}

	fmt.Printf("run: %s (%s, %s)\n", meta.ID, meta.Name, meta.Mode)
	fmt.Printf("samples: %d\n\n", thermo.Len())
	out, err := viz.PlotThermo(thermo, metric, 0, 0)
	if err != nil {
		return err
	}
	fmt.Println(out)

	if svgFile == "" {
		return nil
	}
	name := thermo.Names[0]
	if len(metric) > 0 {
		name = metric[0]
	}
	f, err := os.Create(svgFile)
	if err != nil {
		return err
	}
	defer f.Close()
	return export.ThermoSVG(f, thermo, name, 0, 0, "")
}

func exportRun(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer storage.CloseIfSupported(st)

	meta, err := st.Load(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	thermo, err := st.LoadThermo(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	w := os.Stdout
	if outFile != "" {
		f, err := os.Create(outFile)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return storage.ExportJSON(w, *meta, thermo)
}

func plotVariant(cmd *cobra.Command, args []string) error {
	vr, err := variant.Parse(args[0])
	if err != nil {
		return err
	}
	last := to
	if last == 0 {
		if pts := vr.Points(); len(pts) > 0 {
			last = pts[len(pts)-1].Step
		}
		if last <= from {
			last = from + 1000
		}
	}
	fmt.Println(viz.PlotVariant(vr, from, last, 0, 0))
	return nil
}

func sweepScript(cmd *cobra.Command, args []string) error {
	base, err := loadScript(args)
	if err != nil {
		return err
	}
	if len(grids) == 0 {
		return fmt.Errorf("at least one --grid is required (parameters: %s)", strings.Join(optim.Params, ", "))
	}

	names := make([]string, len(grids))
	ranges := make([][]float64, len(grids))
	for i, g := range grids {
		if names[i], ranges[i], err = optim.ParseGrid(g); err != nil {
			return err
		}
	}

	target := objective
	build := func(params map[string]float64) (*experiment.Experiment, error) {
		cfg, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if steps > 0 {
			cfg.Run.Steps = steps
		}
		if len(cfg.Run.Metrics) == 0 {
			cfg.Run.Metrics = metrics.Default()
		}
		if !slices.Contains(cfg.Run.Metrics, target) {
			cfg.Run.Metrics = append(cfg.Run.Metrics, target)
		}
		for k, v := range params {
			if err := optim.ApplyParam(cfg, k, v); err != nil {
				return nil, err
			}
		}
		level.Debug(logger).Log("op", "sweep", "params", fmt.Sprint(params))
		return experiment.Build(cfg, experiment.NewRegistry(), logger)
	}

	res, err := optim.NewGridSearch(names, ranges).Search(cmd.Context(), build, target)
	if res != nil {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, strings.Join(names, "\t")+"\t"+strings.ToUpper(target))
		for _, tr := range res.Trials {
			for _, n := range names {
				fmt.Fprintf(w, "%g\t", tr.Params[n])
			}
			if tr.Err != nil {
				fmt.Fprintf(w, "error: %v\n", tr.Err)
			} else {
				fmt.Fprintf(w, "%.6g\n", tr.Value)
			}
		}
		w.Flush()
	}
	if err != nil {
		return err
	}

	fmt.Printf("\nbest %s = %.6g at", target, res.BestValue)
	for _, n := range names {
		fmt.Printf(" %s=%g", n, res.Best[n])
	}
	fmt.Println()
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer storage.CloseIfSupported(st)

	outcomes, err := automation.RunScenario(cmd.Context(), sc, experiment.NewRegistry(), st, logger)
	for _, o := range outcomes {
		fmt.Printf("step %d  %-20s %s  (%v)\n", o.Step, o.Name, o.RunID, o.Result.Elapsed)
	}
	return err
}

func runEnsemble(cmd *cobra.Command, args []string) error {
	base, err := loadScript(args)
	if err != nil {
		return err
	}
	if steps > 0 {
		base.Run.Steps = steps
	}

	res, err := automation.RunEnsemble(cmd.Context(), automation.EnsembleConfig{
		Base:     base,
		Trials:   trials,
		BaseSeed: baseSeed,
		Metric:   summarize,
	}, experiment.NewRegistry(), logger)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SEED\tSTABLE\t%s\n", strings.ToUpper(summarize))
	for _, tr := range res.Trials {
		fmt.Fprintf(w, "%d\t%t\t%.6g\n", tr.Seed, tr.Stable, tr.Value)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nstable %d/%d  %s = %.6g ± %.2g\n", res.Stable, len(res.Trials), summarize, res.Mean, res.StdDev)
	return nil
}
