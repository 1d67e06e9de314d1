package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/banshee-data/vehicle.count/internal/config"
	"github.com/banshee-data/vehicle.count/internal/counting/crossing"
	"github.com/banshee-data/vehicle.count/internal/counting/geom"
	"github.com/banshee-data/vehicle.count/internal/counting/motion"
	"github.com/banshee-data/vehicle.count/internal/counting/tracks"
	"github.com/banshee-data/vehicle.count/internal/monitoring"
)

// ErrFinalized is returned by UpdateFrame once Finalize has been called.
var ErrFinalized = errors.New("counter finalized")

// Config groups the component configurations of a Counter.
type Config struct {
	Tracks   tracks.Config
	Motion   motion.Config
	Crossing crossing.Config
}

// DefaultConfig returns counter configuration from the built-in defaults.
func DefaultConfig() Config {
	return ConfigFromCounting(config.EmptyCountingConfig())
}

// ConfigFromCounting builds a counter Config from a loaded CountingConfig.
func ConfigFromCounting(cfg *config.CountingConfig) Config {
	return Config{
		Tracks:   tracks.ConfigFromCounting(cfg),
		Motion:   motion.ConfigFromCounting(cfg),
		Crossing: crossing.ConfigFromCounting(cfg),
	}
}

// EventSink receives crossing events as they are emitted.
type EventSink interface {
	RecordCrossing(ev crossing.Event) error
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ev crossing.Event) error

// RecordCrossing calls f(ev).
func (f EventSinkFunc) RecordCrossing(ev crossing.Event) error {
	return f(ev)
}

// Drawn is one detection that passed the lifespan and speed gates.
type Drawn struct {
	TrackID  int        `json:"track_id"`
	Box      geom.Box   `json:"box"`
	Smoothed geom.Point `json:"smoothed"`
}

// FrameResult is everything a renderer needs for one frame.
type FrameResult struct {
	Frame      int              `json:"frame"`
	TotalCount int              `json:"total_count"`
	Events     []crossing.Event `json:"events,omitempty"`
	Drawn      []Drawn          `json:"drawn,omitempty"`
	Lines      []crossing.Line  `json:"-"`
}

// Summary is the final answer of a run.
type Summary struct {
	Frames        int
	TotalCount    int
	TracksCreated int
	TracksEvicted int
	TracksLive    int
	Events        []crossing.Event
}

// Counter is the per-stream tracker. Create one per video stream with
// NewCounter, feed it frames in order, then call Finalize.
type Counter struct {
	registry *tracks.Registry
	filter   *motion.Filter
	detector *crossing.Detector
	sinks    []EventSink

	mu        sync.Mutex
	frames    int
	events    []crossing.Event
	finalized bool
}

// NewCounter creates a Counter with empty state. Sinks are called in order
// for every crossing event.
func NewCounter(cfg Config, sinks ...EventSink) *Counter {
	return &Counter{
		registry: tracks.NewRegistry(cfg.Tracks),
		filter:   motion.NewFilter(cfg.Motion),
		detector: crossing.NewDetector(cfg.Crossing),
		sinks:    sinks,
	}
}

// UpdateFrame processes the detections of one frame in the given order.
// Each detection is associated, evaluated and checked before the next one
// is looked at. Sink failures are joined into the returned error; the
// counter state has already advanced when that happens.
func (c *Counter) UpdateFrame(frameIndex int, boxes []geom.Box) (FrameResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.finalized {
		return FrameResult{}, ErrFinalized
	}

	res := FrameResult{
		Frame: frameIndex,
		Lines: c.lines(),
	}
	var errs []error

	for _, box := range boxes {
		track := c.registry.Update(box)

		verdict := c.filter.Evaluate(track)
		if verdict.Skip() {
			continue
		}

		res.Drawn = append(res.Drawn, Drawn{
			TrackID:  track.ID,
			Box:      box,
			Smoothed: verdict.Smoothed,
		})

		ev, ok := c.detector.Check(track, verdict.Smoothed)
		if !ok {
			continue
		}
		ev.Frame = frameIndex
		res.Events = append(res.Events, ev)
		c.events = append(c.events, ev)

		monitoring.Logf("vehicle crossed line %s: track=%d total=%d", ev.Line, ev.TrackID, ev.TotalCount)

		for _, sink := range c.sinks {
			if err := sink.RecordCrossing(ev); err != nil {
				errs = append(errs, fmt.Errorf("record crossing for track %d: %w", ev.TrackID, err))
			}
		}
	}

	for _, id := range c.registry.EndFrame() {
		c.detector.Forget(id)
	}
	c.frames++
	res.TotalCount = c.detector.Total()

	return res, errors.Join(errs...)
}

// Total returns the running count.
func (c *Counter) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.detector.Total()
}

// Lines returns a copy of the configured reference lines.
func (c *Counter) Lines() []crossing.Line {
	return c.lines()
}

func (c *Counter) lines() []crossing.Line {
	return append([]crossing.Line(nil), c.detector.Config.Lines...)
}

// Finalize stops the counter and returns the final summary. Calling it
// again returns the same summary.
func (c *Counter) Finalize() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.finalized = true
	events := make([]crossing.Event, len(c.events))
	copy(events, c.events)

	return Summary{
		Frames:        c.frames,
		TotalCount:    c.detector.Total(),
		TracksCreated: c.registry.TracksCreated,
		TracksEvicted: c.registry.TracksEvicted,
		TracksLive:    c.registry.Len(),
		Events:        events,
	}
}
