// Package motion smooths a track's recent positions and decides whether the
// track is mature and steady enough to be checked for a line crossing.
//
// Dependency rule: motion may depend on tracks and geom. It never mutates a
// track.
package motion

import (
	"fmt"

	"github.com/banshee-data/vehicle.count/internal/config"
	"github.com/banshee-data/vehicle.count/internal/counting/geom"
	"github.com/banshee-data/vehicle.count/internal/counting/tracks"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Config holds the maturity and steadiness thresholds.
type Config struct {
	MinLifespan       int     // Tracks with Age below this are skipped
	MaxSpeedThreshold float64 // Smoothed-centre jump (pixels) above which a frame is treated as noise
}

// DefaultConfig returns filter configuration from the built-in defaults.
func DefaultConfig() Config {
	return ConfigFromCounting(config.EmptyCountingConfig())
}

// ConfigFromCounting builds a filter Config from a loaded CountingConfig.
func ConfigFromCounting(cfg *config.CountingConfig) Config {
	return Config{
		MinLifespan:       cfg.GetMinLifespan(),
		MaxSpeedThreshold: cfg.GetMaxSpeedThreshold(),
	}
}

// Verdict is the outcome of evaluating a track.
type Verdict int

const (
	Proceed   Verdict = iota // Track may be checked for a crossing
	SkipYoung                // Age below MinLifespan
	SkipSpeed                // Smoothed centre jumped too far
)

func (v Verdict) String() string {
	switch v {
	case Proceed:
		return "proceed"
	case SkipYoung:
		return "skip-young"
	case SkipSpeed:
		return "skip-speed"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// Result carries the verdict and, once the track is old enough, the
// smoothed centre and its speed.
type Result struct {
	Verdict  Verdict
	Smoothed geom.Point
	Speed    float64
}

// Skip reports whether the track must not be checked this frame.
func (r Result) Skip() bool {
	return r.Verdict != Proceed
}

// Filter evaluates tracks. It holds no per-track state.
type Filter struct {
	Config Config
}

// NewFilter creates a Filter with the given configuration.
func NewFilter(cfg Config) *Filter {
	return &Filter{Config: cfg}
}

// Evaluate decides whether a track proceeds to the crossing check.
//
// The smoothed centre is the arithmetic mean of the buffered centres,
// truncated to integers. Speed is the Euclidean distance from the smoothed
// centre to the second most recent raw centre.
func (f *Filter) Evaluate(track *tracks.Track) Result {
	if track.Age < f.Config.MinLifespan {
		return Result{Verdict: SkipYoung}
	}

	smoothed := Smooth(track.History())
	result := Result{Verdict: Proceed, Smoothed: smoothed}

	if prev, ok := track.Previous(); ok {
		result.Speed = floats.Distance(
			[]float64{float64(smoothed.X), float64(smoothed.Y)},
			[]float64{float64(prev.X), float64(prev.Y)},
			2,
		)
		if result.Speed > f.Config.MaxSpeedThreshold {
			result.Verdict = SkipSpeed
		}
	}
	return result
}

// Smooth returns the per-axis mean of the points, truncated toward zero.
// An empty input yields the origin.
func Smooth(points []geom.Point) geom.Point {
	if len(points) == 0 {
		return geom.Point{}
	}
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = float64(p.X)
		ys[i] = float64(p.Y)
	}
	return geom.Point{
		X: int(stat.Mean(xs, nil)),
		Y: int(stat.Mean(ys, nil)),
	}
}
