package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pacvolt/pva/internal/config"
	"github.com/pacvolt/pva/internal/logging"
	"github.com/pacvolt/pva/internal/pipeline"
	"github.com/pacvolt/pva/internal/serve"
	"github.com/pacvolt/pva/internal/summary"
)

// defaultConfigFile is picked up from the working directory when --config
// is not given.
const defaultConfigFile = "pva.yaml"

var (
	cfgFile       string
	inputFlag     string
	kindFlag      string
	outputFlag    string
	debugDirFlag  string
	overlapFlag   string
	exclusionFlag string
	marginFlag    string
	gapFlag       string
	minTimeFlag   string
	maxTimeFlag   string
	baseDateFlag  string
	logLevelFlag  string
	serveAddr     string

	rootCmd = &cobra.Command{
		Use:   "pva",
		Short: "Consolidate overlapping telemetry exports into one fault-correlated timeline",
		Long: `pva ingests wide-format telemetry exports (rolling 24h, previous 24h,
monthly, fault log) covering overlapping windows of the same process,
resolves which source wins where coverage intersects, restricts the data
to fault-relevant windows, and emits one chronological consolidated table.`,
		SilenceUsage: true,
		RunE:         run,
	}
)

func init() {
	f := rootCmd.Flags()
	f.StringVar(&cfgFile, "config", "", "YAML config file (default "+defaultConfigFile+" if present)")
	f.StringVarP(&inputFlag, "input", "i", "", "input export file or directory")
	f.StringVarP(&outputFlag, "output", "o", "", "consolidated output CSV path")
	f.StringVar(&kindFlag, "kind", "", "source kind for single-file input (rolling-24h, previous-24h, monthly, fault-log)")
	f.StringVar(&debugDirFlag, "debug-dir", "", "directory for normalized and debug tables (default: output directory)")
	f.StringVar(&overlapFlag, "overlap", "", "overlap policy: ONLY_RECENT or ALL (default ONLY_RECENT)")
	f.StringVar(&exclusionFlag, "exclusion", "", "exclusion policy: NONE or ALL (default NONE)")
	f.StringVar(&marginFlag, "margin", "", "symmetric margin around fault clusters, e.g. 5m")
	f.StringVar(&gapFlag, "cluster-gap", "", "fault clustering gap threshold (default 10m)")
	f.StringVar(&minTimeFlag, "min-time", "", "hard lower time bound, e.g. 2025-354T00:00:00")
	f.StringVar(&maxTimeFlag, "max-time", "", "hard upper time bound, e.g. 2025-354T23:59:59")
	f.StringVar(&baseDateFlag, "base-date", "", "base date anchoring the export time offsets")
	f.StringVar(&logLevelFlag, "log-level", "", "log level: debug, info, warn, error")
	f.StringVar(&serveAddr, "serve", "", "after the run, keep serving the summary at this address, e.g. :8080")
}

func run(cmd *cobra.Command, args []string) error {
	opts, err := loadOptions()
	if err != nil {
		return err
	}
	logging.Init(logging.ParseLevel(opts.LogLevel))

	runCfg, err := opts.Run()
	if err != nil {
		slog.Error("configuration rejected", "error", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	col := summary.New(runCfg.Output)
	runErr := pipeline.New(runCfg, col).Execute(ctx)
	if runErr != nil {
		slog.Error("run failed", "error", runErr)
	}

	// Presentation handoff: the summary goes to stdout as JSON.
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(col.Summary()); err != nil {
		slog.Warn("summary not rendered", "error", err)
	}

	if serveAddr != "" {
		slog.Info("serving run summary", "addr", serveAddr)
		if err := serve.New(col).Run(ctx, serveAddr); err != nil {
			return err
		}
	}
	return runErr
}

// loadOptions layers the run settings: config file, then PVA_* environment
// variables, then flags.
func loadOptions() (config.Options, error) {
	var opts config.Options

	path := cfgFile
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		}
	}
	if path != "" {
		fileOpts, err := config.LoadFile(path)
		if err != nil {
			return config.Options{}, err
		}
		opts = fileOpts
	}

	opts = opts.Merge(config.FromEnv())
	opts = opts.Merge(config.Options{
		Input:      inputFlag,
		Kind:       kindFlag,
		Output:     outputFlag,
		DebugDir:   debugDirFlag,
		Overlap:    overlapFlag,
		Exclusion:  exclusionFlag,
		Margin:     marginFlag,
		ClusterGap: gapFlag,
		MinTime:    minTimeFlag,
		MaxTime:    maxTimeFlag,
		BaseDate:   baseDateFlag,
		LogLevel:   logLevelFlag,
	})
	return opts, nil
}
