package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/vehicle.count/internal/counting/blobs"
	"github.com/banshee-data/vehicle.count/internal/counting/geom"
	"github.com/banshee-data/vehicle.count/internal/counting/source"
	"github.com/banshee-data/vehicle.count/internal/db"
	"github.com/banshee-data/vehicle.count/internal/fsutil"
	"github.com/banshee-data/vehicle.count/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// replay encodes a scene in the JSON lines format.
func replay(t *testing.T, scene [][]geom.Box) []byte {
	t.Helper()
	var buf bytes.Buffer
	for i, boxes := range scene {
		f := source.Frame{Index: i, Blobs: make([]blobs.Blob, len(boxes))}
		for j, b := range boxes {
			f.Blobs[j] = blobs.Blob{Box: b}
		}
		require.NoError(t, source.WriteJSONLine(&buf, f))
	}
	return buf.Bytes()
}

func twoVehicles() [][]geom.Box {
	return testutil.Merge(
		testutil.Still(400, 345, 15),
		testutil.Path(geom.Point{X: 1100, Y: 600}, geom.Point{X: 10, Y: 0}, 25),
	)
}

func TestFlagDefaults(t *testing.T) {
	assert.Equal(t, "-", *input)
	assert.Empty(t, *configPath)
	assert.Empty(t, *dbPath)
	assert.False(t, *raw)
	assert.False(t, *quiet)
	assert.False(t, *listRuns)
	assert.False(t, *showVersion)
}

func TestRunFromStdin(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), options{Input: "-"}, fsutil.NewMemoryFileSystem(),
		bytes.NewReader(replay(t, twoVehicles())), &out)
	require.NoError(t, err)

	assert.Equal(t, "frames: 25 tracks: 2\ntotal: 2\n", out.String())
}

func TestRunGateDropsNarrowBlobs(t *testing.T) {
	// A 10x40 blob fails the area and aspect gate but still tracks with -raw.
	narrow := make([][]geom.Box, 15)
	for i := range narrow {
		narrow[i] = []geom.Box{{X1: 395, Y1: 325, X2: 405, Y2: 365}}
	}
	in := replay(t, narrow)

	var gated, rawOut bytes.Buffer
	require.NoError(t, run(context.Background(), options{Input: "-"}, fsutil.NewMemoryFileSystem(), bytes.NewReader(in), &gated))
	require.NoError(t, run(context.Background(), options{Input: "-", Raw: true}, fsutil.NewMemoryFileSystem(), bytes.NewReader(in), &rawOut))

	assert.Contains(t, gated.String(), "total: 0")
	assert.Contains(t, rawOut.String(), "total: 1")
}

func TestRunWithLedgerAndReports(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	mfs.Add("replays/day1.jsonl", replay(t, twoVehicles()))
	require.NoError(t, mfs.MkdirAll("out", 0o755))

	dbFile := testutil.TempPath(t, "runs.db")
	opts := options{
		Input:    "replays/day1.jsonl",
		DBPath:   dbFile,
		PNGPath:  "out/counts.png",
		HTMLPath: "out/counts.html",
	}

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), opts, mfs, nil, &out))
	assert.Contains(t, out.String(), "total: 2")
	assert.True(t, mfs.Exists("out/counts.png"))
	html, err := mfs.ReadFile("out/counts.html")
	require.NoError(t, err)
	assert.Contains(t, string(html), "Vehicle crossings")

	ledger, err := db.NewDB(dbFile)
	require.NoError(t, err)
	defer ledger.Close()
	runs, err := ledger.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 2, runs[0].TotalCount)
	assert.Equal(t, 25, runs[0].Frames)
	assert.Contains(t, out.String(), "run: "+runs[0].RunID)

	events, err := ledger.Crossings(runs[0].RunID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 0, events[0].TrackID)

	var list bytes.Buffer
	require.NoError(t, run(context.Background(), options{DBPath: dbFile, ListRuns: true}, mfs, nil, &list))
	lines := strings.Split(strings.TrimSpace(list.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "RUN")
	assert.Contains(t, lines[1], runs[0].RunID)
	assert.Contains(t, lines[1], "replays/day1.jsonl")
}

func TestRunWithConfigFile(t *testing.T) {
	cfgFile := filepath.Join(t.TempDir(), "strict.json")
	require.NoError(t, os.WriteFile(cfgFile, []byte(`{"min_lifespan": 20}`), 0o644))

	var out bytes.Buffer
	err := run(context.Background(), options{Input: "-", ConfigPath: cfgFile}, fsutil.NewMemoryFileSystem(),
		bytes.NewReader(replay(t, twoVehicles())), &out)
	require.NoError(t, err)
	// The parked vehicle leaves before age 21 and the mover passes the
	// line before it is old enough.
	assert.Contains(t, out.String(), "total: 0")
}

func TestRunErrors(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()

	err := run(context.Background(), options{Input: "missing.jsonl"}, mfs, nil, &bytes.Buffer{})
	assert.ErrorContains(t, err, "open detections")

	err = run(context.Background(), options{ListRuns: true}, mfs, nil, &bytes.Buffer{})
	assert.ErrorContains(t, err, "-list-runs needs -db")

	err = run(context.Background(), options{Input: "-", ConfigPath: "counting.yaml"}, mfs, strings.NewReader(""), &bytes.Buffer{})
	assert.ErrorContains(t, err, "load config")

	err = run(context.Background(), options{Input: "-"}, mfs, strings.NewReader("{oops}\n"), &bytes.Buffer{})
	assert.ErrorContains(t, err, "stdin:1")
}

// cancelAfterReader serves head, then cancels the run and serves tail.
type cancelAfterReader struct {
	head, tail []byte
	cancel     context.CancelFunc
	reads      int
}

func (r *cancelAfterReader) Read(p []byte) (int, error) {
	r.reads++
	switch r.reads {
	case 1:
		return copy(p, r.head), nil
	case 2:
		r.cancel()
		return copy(p, r.tail), nil
	default:
		return 0, io.EOF
	}
}

func TestRunCancelled(t *testing.T) {
	lines := bytes.SplitAfter(replay(t, twoVehicles()), []byte("\n"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// Frames 0-11 arrive, then the interrupt lands while frame 12 is read.
	// Frame 12 is still counted; the next read sees the cancellation.
	in := &cancelAfterReader{
		head:   bytes.Join(lines[:12], nil),
		tail:   lines[12],
		cancel: cancel,
	}
	dbFile := testutil.TempPath(t, "runs.db")

	var out bytes.Buffer
	require.NoError(t, run(ctx, options{Input: "-", DBPath: dbFile}, fsutil.NewMemoryFileSystem(), in, &out))
	assert.Contains(t, out.String(), "frames: 13 tracks: 2\n")
	assert.Contains(t, out.String(), "total: 1\n")

	ledger, err := db.NewDB(dbFile)
	require.NoError(t, err)
	defer ledger.Close()
	runs, err := ledger.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Finished())
	assert.Equal(t, 13, runs[0].Frames)
	assert.Equal(t, 1, runs[0].TotalCount)
}

func TestRunCancelledBeforeFirstFrame(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := run(ctx, options{Input: "-"}, fsutil.NewMemoryFileSystem(), bytes.NewReader(replay(t, twoVehicles())), &out)
	require.NoError(t, err)
	assert.Equal(t, "frames: 0 tracks: 0\ntotal: 0\n", out.String())
}

func TestRunEmptyInputWithReports(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	opts := options{Input: "-", ReportDir: "charts", PNGPath: "counts.png", HTMLPath: "counts.html"}

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), opts, mfs, strings.NewReader(""), &out))
	assert.Equal(t, "frames: 0 tracks: 0\ntotal: 0\n", out.String())
	assert.False(t, mfs.Exists("counts.png"))
	assert.False(t, mfs.Exists("counts.html"))
}

func TestRunReportDir(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	mfs.Add("replays/north cam.jsonl", replay(t, twoVehicles()))

	opts := options{Input: "replays/north cam.jsonl", ReportDir: "charts"}
	require.NoError(t, run(context.Background(), opts, mfs, nil, &bytes.Buffer{}))

	assert.True(t, mfs.Exists(filepath.Join("charts", "north_cam.png")))
	assert.True(t, mfs.Exists(filepath.Join("charts", "north_cam.html")))

	// An explicit -png wins over the directory naming.
	opts.PNGPath = "charts/override.png"
	require.NoError(t, run(context.Background(), opts, mfs, nil, &bytes.Buffer{}))
	assert.True(t, mfs.Exists(filepath.Join("charts", "override.png")))
}
