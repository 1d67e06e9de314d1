// Command linecount replays per-frame vehicle detections through the line
// crossing counter and prints the final count.
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
	"text/tabwriter"
	"time"

	"github.com/banshee-data/vehicle.count/internal/config"
	"github.com/banshee-data/vehicle.count/internal/counting/blobs"
	"github.com/banshee-data/vehicle.count/internal/counting/geom"
	"github.com/banshee-data/vehicle.count/internal/counting/pipeline"
	"github.com/banshee-data/vehicle.count/internal/counting/source"
	"github.com/banshee-data/vehicle.count/internal/db"
	"github.com/banshee-data/vehicle.count/internal/fsutil"
	"github.com/banshee-data/vehicle.count/internal/monitoring"
	"github.com/banshee-data/vehicle.count/internal/report"
	"github.com/banshee-data/vehicle.count/internal/security"
	"github.com/banshee-data/vehicle.count/internal/version"
)

var (
	input       = flag.String("input", "-", "Detection replay in JSON lines; - reads stdin")
	configPath  = flag.String("config", "", "Counting config JSON; built-in defaults when empty")
	dbPath      = flag.String("db", "", "SQLite ledger for runs and crossings; disabled when empty")
	pngPath     = flag.String("png", "", "Write a cumulative count chart (PNG)")
	htmlPath    = flag.String("html", "", "Write an interactive count chart (HTML)")
	reportDir   = flag.String("report-dir", "", "Write both charts into this directory, named after the input and run")
	raw         = flag.Bool("raw", false, "Feed every blob to the tracker without the area/aspect gate")
	quiet       = flag.Bool("quiet", false, "Suppress crossing log lines")
	verbose     = flag.Bool("verbose", false, "Log track creation and eviction")
	listRuns    = flag.Bool("list-runs", false, "List recorded runs from -db and exit")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// options is the parsed command line.
type options struct {
	Input      string
	ConfigPath string
	DBPath     string
	PNGPath    string
	HTMLPath   string
	ReportDir  string
	Raw        bool
	ListRuns   bool
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("linecount"))
		return
	}

	if *quiet {
		monitoring.SetLogger(nil)
	}
	monitoring.SetVerbose(*verbose)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := options{
		Input:      *input,
		ConfigPath: *configPath,
		DBPath:     *dbPath,
		PNGPath:    *pngPath,
		HTMLPath:   *htmlPath,
		ReportDir:  *reportDir,
		Raw:        *raw,
		ListRuns:   *listRuns,
	}
	if err := run(ctx, opts, fsutil.OSFileSystem{}, os.Stdin, os.Stdout); err != nil {
		log.Fatalf("linecount: %v", err)
	}
}

func loadConfig(path string) (*config.CountingConfig, error) {
	if path == "" {
		return config.EmptyCountingConfig(), nil
	}
	return config.LoadCountingConfig(path)
}

func openSource(fsys fsutil.FileSystem, path string, stdin io.Reader) (*source.JSONLinesSource, error) {
	if path == "-" {
		return source.NewJSONLinesSource(stdin, "stdin"), nil
	}
	return source.OpenJSONLines(fsys, path)
}

func run(ctx context.Context, o options, fsys fsutil.FileSystem, stdin io.Reader, stdout io.Writer) error {
	var ledger *db.DB
	if o.DBPath != "" {
		var err error
		if ledger, err = db.NewDB(o.DBPath); err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		defer ledger.Close()
	}

	if o.ListRuns {
		if ledger == nil {
			return fmt.Errorf("-list-runs needs -db")
		}
		return printRuns(ledger, stdout)
	}

	cfg, err := loadConfig(o.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	src, err := openSource(fsys, o.Input, stdin)
	if err != nil {
		return err
	}
	defer src.Close()

	var sinks []pipeline.EventSink
	var runID string
	if ledger != nil {
		if runID, err = ledger.StartRun(o.Input, cfg.JSON()); err != nil {
			return fmt.Errorf("start run: %w", err)
		}
		sinks = append(sinks, db.RunRecorder{DB: ledger, RunID: runID})
	}

	counter := pipeline.NewCounter(pipeline.ConfigFromCounting(cfg), sinks...)
	gate := blobs.GateConfigFromCounting(cfg)

	lastFrame := -1
	for {
		frame, ok, err := src.Next(ctx)
		if errors.Is(err, context.Canceled) {
			// Interrupted: the count so far is the final answer.
			monitoring.Logf("interrupted after %d frames, finalizing", lastFrame+1)
			break
		}
		if err != nil {
			return fmt.Errorf("read detections: %w", err)
		}
		if !ok {
			break
		}

		var boxes []geom.Box
		if o.Raw {
			boxes = blobs.Boxes(frame.Blobs)
		} else {
			boxes = gate.Filter(frame.Blobs)
		}
		if _, err := counter.UpdateFrame(frame.Index, boxes); err != nil {
			return fmt.Errorf("frame %d: %w", frame.Index, err)
		}
		lastFrame = frame.Index
	}

	summary := counter.Finalize()
	if ledger != nil {
		if err := ledger.FinishRun(runID, summary.Frames, summary.TotalCount); err != nil {
			return err
		}
	}

	if err := writeReports(fsys, o, runID, summary, lastFrame+1); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "frames: %d tracks: %d\n", summary.Frames, summary.TracksCreated)
	if runID != "" {
		fmt.Fprintf(stdout, "run: %s\n", runID)
	}
	fmt.Fprintf(stdout, "total: %d\n", summary.TotalCount)
	return nil
}

func writeReports(fsys fsutil.FileSystem, o options, runID string, summary pipeline.Summary, frames int) error {
	if frames == 0 {
		if o.ReportDir != "" || o.PNGPath != "" || o.HTMLPath != "" {
			monitoring.Logf("no frames read, skipping charts")
		}
		return nil
	}
	if o.ReportDir != "" {
		if err := fsys.MkdirAll(o.ReportDir, 0o755); err != nil {
			return fmt.Errorf("report dir: %w", err)
		}
		var err error
		if o.PNGPath == "" {
			if o.PNGPath, err = security.ReportPath(o.ReportDir, o.Input, runID, "png"); err != nil {
				return err
			}
		}
		if o.HTMLPath == "" {
			if o.HTMLPath, err = security.ReportPath(o.ReportDir, o.Input, runID, "html"); err != nil {
				return err
			}
		}
	}
	if o.PNGPath == "" && o.HTMLPath == "" {
		return nil
	}
	series := report.CountSeries(summary.Events, frames)
	title := fmt.Sprintf("Vehicle crossings: %s", o.Input)

	if o.PNGPath != "" {
		if err := report.WritePNG(fsys, o.PNGPath, title, series, summary.Events); err != nil {
			return fmt.Errorf("png report: %w", err)
		}
	}
	if o.HTMLPath != "" {
		f, err := fsys.Create(o.HTMLPath)
		if err != nil {
			return fmt.Errorf("html report: %w", err)
		}
		if err := report.WriteHTML(f, title, series, summary.Events); err != nil {
			f.Close()
			return fmt.Errorf("html report: %w", err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("html report: %w", err)
		}
	}
	return nil
}

func printRuns(ledger *db.DB, stdout io.Writer) error {
	runs, err := ledger.Runs()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSOURCE\tSTARTED\tFRAMES\tTOTAL")
	for _, r := range runs {
		total := "-"
		if r.Finished() {
			total = fmt.Sprint(r.TotalCount)
		}
		started := time.Unix(0, r.StartedAtNs).UTC().Format(time.RFC3339)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", r.RunID, r.Source, started, r.Frames, total)
	}
	return tw.Flush()
}
