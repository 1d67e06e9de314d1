// Package crossing decides when a track has crossed a reference line,
// debounces repeat counts, and keeps the running total.
//
// Dependency rule: crossing may depend on tracks and geom, but never on
// pipeline.
package crossing

import (
	"fmt"
	"sort"

	"github.com/banshee-data/vehicle.count/internal/config"
	"github.com/banshee-data/vehicle.count/internal/counting/geom"
	"github.com/banshee-data/vehicle.count/internal/counting/tracks"
)

// Orientation says which axis a reference line is perpendicular to.
type Orientation int

const (
	Horizontal Orientation = iota // y = Position
	Vertical                      // x = Position
)

func (o Orientation) String() string {
	if o == Vertical {
		return "vertical"
	}
	return "horizontal"
}

// Line is a virtual reference line spanning the whole frame.
type Line struct {
	Name        string
	Orientation Orientation
	Position    int
}

// Contains reports whether p lies strictly within offset of the line.
func (l Line) Contains(p geom.Point, offset int) bool {
	v := p.Y
	if l.Orientation == Vertical {
		v = p.X
	}
	return v > l.Position-offset && v < l.Position+offset
}

func (l Line) String() string {
	axis := "y"
	if l.Orientation == Vertical {
		axis = "x"
	}
	return fmt.Sprintf("%s(%s=%d)", l.Name, axis, l.Position)
}

// Names of the two configured lines.
const (
	LineTopBottom = "top-bottom"
	LineRightLeft = "right-left"
)

// Config holds the reference lines and the counting gates.
type Config struct {
	Lines                  []Line
	Offset                 int
	MinLifespan            int  // Age must exceed this
	MinFramesBetweenCounts int  // Age - LastCountedAge must exceed this
	Rearm                  bool // Counted tracks may count again after the debounce window
}

// DefaultConfig returns detector configuration from the built-in defaults.
func DefaultConfig() Config {
	return ConfigFromCounting(config.EmptyCountingConfig())
}

// ConfigFromCounting builds a detector Config from a loaded CountingConfig.
// The horizontal line is listed first, so a centre inside both bands is
// attributed to it.
func ConfigFromCounting(cfg *config.CountingConfig) Config {
	return Config{
		Lines: []Line{
			{Name: LineTopBottom, Orientation: Horizontal, Position: cfg.GetLineYTopBottom()},
			{Name: LineRightLeft, Orientation: Vertical, Position: cfg.GetLineXRightLeft()},
		},
		Offset:                 cfg.GetOffset(),
		MinLifespan:            cfg.GetMinLifespan(),
		MinFramesBetweenCounts: cfg.GetMinFramesBetweenCounts(),
		Rearm:                  cfg.GetRearmCounts(),
	}
}

// Event is the one-shot signal that a track crossed a line.
type Event struct {
	TrackID    int        `json:"track_id"`
	TotalCount int        `json:"total_count"`
	Line       string     `json:"line"`
	Center     geom.Point `json:"center"`
	Age        int        `json:"age"`
	Frame      int        `json:"frame"`
}

func (e Event) String() string {
	return fmt.Sprintf("track %d crossed %s at %s (total %d)", e.TrackID, e.Line, e.Center, e.TotalCount)
}

// Detector owns the counted set and the running total.
type Detector struct {
	Config Config

	counted map[int]struct{}
	total   int
}

// NewDetector creates a Detector with an empty counted set.
func NewDetector(cfg Config) *Detector {
	return &Detector{
		Config:  cfg,
		counted: make(map[int]struct{}),
	}
}

// Check tests a track's smoothed centre against the lines. On a hit the
// total is incremented, the track joins the counted set and its
// LastCountedAge is stamped. Event.Frame is left for the caller to fill.
func (d *Detector) Check(track *tracks.Track, smoothed geom.Point) (Event, bool) {
	if !d.eligible(track) {
		return Event{}, false
	}

	line, ok := d.hit(smoothed)
	if !ok {
		return Event{}, false
	}

	d.total++
	d.counted[track.ID] = struct{}{}
	track.LastCountedAge = track.Age

	return Event{
		TrackID:    track.ID,
		TotalCount: d.total,
		Line:       line.Name,
		Center:     smoothed,
		Age:        track.Age,
	}, true
}

func (d *Detector) eligible(track *tracks.Track) bool {
	if track.Age <= d.Config.MinLifespan {
		return false
	}
	if track.Age-track.LastCountedAge <= d.Config.MinFramesBetweenCounts {
		return false
	}
	if _, done := d.counted[track.ID]; done && !d.Config.Rearm {
		return false
	}
	return true
}

func (d *Detector) hit(p geom.Point) (Line, bool) {
	for _, line := range d.Config.Lines {
		if line.Contains(p, d.Config.Offset) {
			return line, true
		}
	}
	return Line{}, false
}

// Total returns the running count.
func (d *Detector) Total() int {
	return d.total
}

// Counted reports whether a track id has ever produced an event.
func (d *Detector) Counted(id int) bool {
	_, ok := d.counted[id]
	return ok
}

// CountedIDs returns the counted set in ascending order.
func (d *Detector) CountedIDs() []int {
	ids := make([]int, 0, len(d.counted))
	for id := range d.counted {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Forget drops an evicted track from the counted set. Track ids are never
// reused, so a forgotten id can never be checked again.
func (d *Detector) Forget(id int) {
	delete(d.counted, id)
}
