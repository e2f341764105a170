// Command reaction locates the reaction window of every trial in a
// multi-trial driving simulator log and prints one
// "upper_bound lower_bound" line per processed trial.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/reaction.report/internal/config"
	"github.com/banshee-data/reaction.report/internal/db"
	"github.com/banshee-data/reaction.report/internal/fsutil"
	"github.com/banshee-data/reaction.report/internal/monitoring"
	"github.com/banshee-data/reaction.report/internal/reaction"
	"github.com/banshee-data/reaction.report/internal/report"
	"github.com/banshee-data/reaction.report/internal/segment"
	"github.com/banshee-data/reaction.report/internal/timeutil"
	"github.com/banshee-data/reaction.report/internal/version"
)

var (
	configPath  = flag.String("config", "", "Detection config (.json, .yaml or .yml); built-in thresholds when empty")
	dbPath      = flag.String("db", "", "SQLite database to record derived windows in (disabled when empty)")
	workers     = flag.Int("workers", 0, "Trials analysed in parallel; overrides the config when > 0")
	showRT      = flag.Bool("rt", false, "Print the reaction time in seconds as a third column")
	verbose     = flag.Bool("v", false, "Log per-trial diagnostics")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// runOptions carries everything run needs besides the detection config.
type runOptions struct {
	Source        string
	DBPath        string
	ReactionTimes bool
	FS            fsutil.FileSystem
	Clock         timeutil.Clock
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: reaction [flags] <file.csv>\n\nFlags:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Println("reaction", version.String())
		return
	}
	if flag.NArg() != 1 {
		usage()
		os.Exit(1)
	}
	monitoring.SetVerbose(*verbose)

	cfg, err := loadConfig(*configPath, *workers)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, runOptions{
		Source:        flag.Arg(0),
		DBPath:        *dbPath,
		ReactionTimes: *showRT,
		FS:            fsutil.OSFileSystem{},
		Clock:         timeutil.RealClock{},
	}, os.Stdout)
	stop()

	if errors.Is(err, segment.ErrSourceNotFound) {
		log.Fatalf("Error: File not found at %s", flag.Arg(0))
	}
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
}

// loadConfig returns the defaults when path is empty. A positive workers
// value replaces the configured one.
func loadConfig(path string, workers int) (*config.DetectionConfig, error) {
	cfg := config.EmptyDetectionConfig()
	if path != "" {
		var err error
		if cfg, err = config.LoadDetectionConfig(path); err != nil {
			return nil, err
		}
	}
	if workers > 0 {
		cfg.Workers = &workers
	}
	return cfg, nil
}

// run segments the source, analyses every trial, prints the windows to
// stdout and optionally records them. Skipped trials are not errors.
func run(ctx context.Context, cfg *config.DetectionConfig, opts runOptions, stdout io.Writer) error {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}

	trials, err := segment.NewSegmenter(opts.FS, cfg.GetHeader()).SplitFile(opts.Source)
	if err != nil {
		return err
	}
	monitoring.Logf("Total trials created: %d", len(trials))

	params := reaction.NewParams(cfg)
	if monitoring.Verbose() {
		monitoring.Logf("Detection parameters: %+v", params)
	}

	start := opts.Clock.Now()
	analyzer := reaction.NewAnalyzer(params, reaction.NewOptions(cfg))
	outcomes := analyzer.Run(ctx, trials)
	monitoring.Debugf("Analysed %d trials with %d workers in %s",
		len(trials), analyzer.Options.Workers, opts.Clock.Since(start))

	if err := report.NewReporter(stdout, opts.ReactionTimes).Write(outcomes); err != nil {
		return err
	}
	report.Summarize(outcomes).Log()

	if opts.DBPath == "" {
		return nil
	}
	return record(ctx, opts, outcomes)
}

func record(ctx context.Context, opts runOptions, outcomes []reaction.Outcome) error {
	database, err := db.NewDB(opts.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	run := db.NewRun(opts.Clock, opts.Source, len(outcomes))
	windows := make([]db.TrialWindow, 0, len(outcomes))
	for _, o := range outcomes {
		windows = append(windows, db.WindowFromOutcome(run.ID, o))
	}
	if err := database.RecordRun(ctx, run, windows); err != nil {
		return err
	}
	monitoring.Logf("Recorded run %s (%d trials) in %s", run.ID, len(windows), opts.DBPath)
	return nil
}
