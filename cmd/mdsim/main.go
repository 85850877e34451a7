package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	kitlog "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/san-kum/mdsim/internal/config"
	"github.com/san-kum/mdsim/internal/storage"
)

var (
	v        = config.NewViper(".")
	settings *config.Settings
	logger   = kitlog.NewNopLogger()

	preset    string
	steps     uint64
	dt        float64
	noSave    bool
	chunk     uint64
	metric    []string
	from      uint64
	to        uint64
	outFile   string
	svgFile   string
	grids     []string
	objective string
	trials    int
	baseSeed  int64
	summarize string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "mdsim",
		Short:         "molecular dynamics integration driver",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if settings, err = config.LoadSettings(v); err != nil {
				return err
			}
			logger = newLogger(settings.LogLevel)
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("store", "file", "run store backend (file, sqlite, memory)")
	flags.String("path", "runs", "run store location")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.Int("workers", 0, "force workers (0 = all CPUs)")
	bindFlags(v, rootCmd, map[string]string{
		"store":     "store",
		"path":      "path",
		"log_level": "log-level",
		"workers":   "workers",
	})

	runCmd := &cobra.Command{
		Use:   "run [script.yaml]",
		Short: "run a script or preset and store the result",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runScript,
	}
	runCmd.Flags().StringVar(&preset, "preset", "", "use a preset (group/name)")
	runCmd.Flags().Uint64Var(&steps, "steps", 0, "override run.steps")
	runCmd.Flags().Float64Var(&dt, "dt", 0, "override mode.dt")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")

	inspectCmd := &cobra.Command{
		Use:   "inspect [script.yaml]",
		Short: "step a script interactively, toggling its methods",
		Args:  cobra.MaximumNArgs(1),
		RunE:  inspectScript,
	}
	inspectCmd.Flags().StringVar(&preset, "preset", "", "use a preset (group/name)")
	inspectCmd.Flags().Uint64Var(&chunk, "chunk", 200, "steps per run")

	presetsCmd := &cobra.Command{
		Use:   "presets [group]",
		Short: "list presets",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPresets,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringSliceVar(&metric, "metric", nil, "series to plot (default all)")
	plotCmd.Flags().StringVar(&svgFile, "svg", "", "also write the first series as SVG")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a stored run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")

	variantCmd := &cobra.Command{
		Use:   "variant [value|step:value,...]",
		Short: "plot a temperature or pressure schedule",
		Args:  cobra.ExactArgs(1),
		RunE:  plotVariant,
	}
	variantCmd.Flags().Uint64Var(&from, "from", 0, "first step")
	variantCmd.Flags().Uint64Var(&to, "to", 0, "last step (default: last point)")

	dumpCmd := &cobra.Command{
		Use:   "dump [group/name]",
		Short: "print a preset as a script",
		Args:  cobra.ExactArgs(1),
		RunE:  dumpPreset,
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep [script.yaml]",
		Short: "run a parameter grid and report the setting minimizing a metric",
		Args:  cobra.MaximumNArgs(1),
		RunE:  sweepScript,
	}
	sweepCmd.Flags().StringVar(&preset, "preset", "", "use a preset (group/name)")
	sweepCmd.Flags().StringArrayVar(&grids, "grid", nil, "parameter grid, e.g. dt=0.002,0.005 (repeatable)")
	sweepCmd.Flags().StringVar(&objective, "metric", "energy_drift", "metric to minimize")
	sweepCmd.Flags().Uint64Var(&steps, "steps", 0, "override run.steps")

	batchCmd := &cobra.Command{
		Use:   "batch [scenario.yaml]",
		Short: "run the steps of a scenario file and store each",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}

	ensembleCmd := &cobra.Command{
		Use:   "ensemble [script.yaml]",
		Short: "run a script over many seeds",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runEnsemble,
	}
	ensembleCmd.Flags().StringVar(&preset, "preset", "", "use a preset (group/name)")
	ensembleCmd.Flags().IntVar(&trials, "trials", 8, "number of seeds")
	ensembleCmd.Flags().Int64Var(&baseSeed, "seed", 1, "first seed")
	ensembleCmd.Flags().StringVar(&summarize, "metric", "temperature", "metric to summarize")
	ensembleCmd.Flags().Uint64Var(&steps, "steps", 0, "override run.steps")

	rootCmd.AddCommand(runCmd, inspectCmd, presetsCmd, listCmd, plotCmd, exportCmd, variantCmd, dumpCmd, sweepCmd, batchCmd, ensembleCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func bindFlags(vp *viper.Viper, cmd *cobra.Command, keys map[string]string) {
	for key, flag := range keys {
		if err := vp.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}
}

func newLogger(lvl string) kitlog.Logger {
	l := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stderr))
	l = kitlog.With(l, "ts", kitlog.DefaultTimestampUTC)

	allow := level.AllowInfo()
	switch lvl {
	case "debug":
		allow = level.AllowDebug()
	case "warn":
		allow = level.AllowWarn()
	case "error":
		allow = level.AllowError()
	}
	return level.NewFilter(l, allow)
}

func openStore(cmd *cobra.Command) (storage.Store, error) {
	st, err := storage.NewStore(settings.Store, settings.Path)
	if err != nil {
		return nil, err
	}
	if err := st.Init(cmd.Context()); err != nil {
		return nil, err
	}
	return st, nil
}
