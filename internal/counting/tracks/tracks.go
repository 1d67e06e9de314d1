package tracks

import (
	"fmt"
	"math"
	"sync"

	"github.com/banshee-data/vehicle.count/internal/config"
	"github.com/banshee-data/vehicle.count/internal/counting/geom"
	"github.com/banshee-data/vehicle.count/internal/monitoring"
	"gonum.org/v1/gonum/floats"
)

// Config holds configuration parameters for the registry.
type Config struct {
	MaxMovementDistance    int    // Per-axis match gate (pixels, exclusive)
	HistoryLength          int    // Centres kept per track, 1..config.MaxHistoryLength
	MinFramesBetweenCounts int    // Seeds LastCountedAge so the first crossing is never debounced
	Association            string // config.AssociationFirst or config.AssociationNearest
	MaxIdleFrames          int    // Consecutive unmatched frames before eviction; 0 keeps tracks forever
}

// DefaultConfig returns registry configuration from the built-in defaults.
func DefaultConfig() Config {
	return ConfigFromCounting(config.EmptyCountingConfig())
}

// ConfigFromCounting builds a registry Config from a loaded CountingConfig.
func ConfigFromCounting(cfg *config.CountingConfig) Config {
	return Config{
		MaxMovementDistance:    cfg.GetMaxMovementDistance(),
		HistoryLength:          cfg.GetHistoryLength(),
		MinFramesBetweenCounts: cfg.GetMinFramesBetweenCounts(),
		Association:            cfg.GetAssociation(),
		MaxIdleFrames:          cfg.GetMaxIdleFrames(),
	}
}

// Track is the registry's identity for one physical object across frames.
type Track struct {
	ID int

	// Age counts matched detections. It never decreases.
	Age int
	// LastCountedAge is the Age at which the track last produced a crossing.
	LastCountedAge int
	// Idle counts consecutive frames that ended without a match.
	Idle int

	// LastBox is the most recent detection box, kept for overlays.
	LastBox geom.Box

	history   history
	seenFrame int
}

// History returns a copy of the buffered centres, oldest first.
func (t *Track) History() []geom.Point {
	return t.history.points()
}

// HistoryLen returns the number of buffered centres.
func (t *Track) HistoryLen() int {
	return t.history.n
}

// Last returns the most recent centre.
func (t *Track) Last() geom.Point {
	return t.history.last()
}

// Previous returns the centre before the most recent one, if there is one.
func (t *Track) Previous() (geom.Point, bool) {
	if t.history.n < 2 {
		return geom.Point{}, false
	}
	return t.history.at(t.history.n - 2), true
}

func (t *Track) String() string {
	return fmt.Sprintf("track %d age=%d last=%s", t.ID, t.Age, t.Last())
}

// Registry associates detections with tracks. Tracks are scanned in
// creation order and ids are assigned from a counter that never rewinds,
// even after eviction.
type Registry struct {
	Config Config

	tracks []*Track // creation order
	byID   map[int]*Track
	nextID int
	frame  int

	// Lifetime counters
	TracksCreated int
	TracksEvicted int

	mu sync.Mutex
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config) *Registry {
	// Validate before the first track is built so a bad length fails at
	// construction rather than mid-stream.
	_ = newHistory(cfg.HistoryLength)
	return &Registry{
		Config: cfg,
		byID:   make(map[int]*Track),
	}
}

// Update associates one detection with a track, creating the track if no
// existing one is within range, and records the detection on it. The
// returned pointer stays owned by the registry.
//
// Detections of one frame must be fed in a reproducible order: a track's
// last centre moves as soon as it is claimed, so a later detection in the
// same frame is matched against the updated position.
func (r *Registry) Update(box geom.Box) *Track {
	r.mu.Lock()
	defer r.mu.Unlock()

	center := box.Center()
	track := r.match(center)
	if track == nil {
		track = r.create()
	}

	track.Age++
	track.Idle = 0
	track.seenFrame = r.frame
	track.LastBox = box
	track.history.push(center)
	return track
}

// match returns the track the centre belongs to, or nil.
func (r *Registry) match(center geom.Point) *Track {
	gate := r.Config.MaxMovementDistance

	var best *Track
	bestDist := math.Inf(1)
	for _, track := range r.tracks {
		last := track.Last()
		if absInt(center.X-last.X) >= gate || absInt(center.Y-last.Y) >= gate {
			continue
		}
		if r.Config.Association != config.AssociationNearest {
			return track
		}
		// Strict comparison keeps the earliest-created track on ties.
		d := floats.Distance(
			[]float64{float64(center.X), float64(center.Y)},
			[]float64{float64(last.X), float64(last.Y)},
			2,
		)
		if d < bestDist {
			best, bestDist = track, d
		}
	}
	return best
}

func (r *Registry) create() *Track {
	id := r.nextID
	if _, exists := r.byID[id]; exists {
		panic(fmt.Sprintf("tracks: id %d assigned twice", id))
	}
	r.nextID++

	track := &Track{
		ID:             id,
		LastCountedAge: -r.Config.MinFramesBetweenCounts,
		history:        newHistory(r.Config.HistoryLength),
		seenFrame:      -1,
	}
	r.tracks = append(r.tracks, track)
	r.byID[id] = track
	r.TracksCreated++
	monitoring.Verbosef("new track %d", id)
	return track
}

// EndFrame closes the current frame: tracks that received no detection
// since the previous EndFrame accumulate idle frames, and once eviction is
// enabled tracks idle for MaxIdleFrames are dropped. Returns the evicted ids
// in creation order.
func (r *Registry) EndFrame() []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []int
	kept := r.tracks[:0]
	for _, track := range r.tracks {
		if track.seenFrame != r.frame {
			track.Idle++
		}
		if r.Config.MaxIdleFrames > 0 && track.Idle >= r.Config.MaxIdleFrames {
			evicted = append(evicted, track.ID)
			delete(r.byID, track.ID)
			monitoring.Verbosef("evicted track %d after %d idle frames (age=%d)", track.ID, track.Idle, track.Age)
			continue
		}
		kept = append(kept, track)
	}
	// Clear the tail so evicted tracks can be collected.
	for i := len(kept); i < len(r.tracks); i++ {
		r.tracks[i] = nil
	}
	r.tracks = kept
	r.TracksEvicted += len(evicted)
	r.frame++
	return evicted
}

// Get returns a track by id, or nil if it was never created or was evicted.
func (r *Registry) Get(id int) *Track {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[id]
}

// Len returns the number of live tracks.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tracks)
}

// Tracks returns shallow copies of the live tracks in creation order, safe
// to read without holding the registry lock.
func (r *Registry) Tracks() []Track {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Track, len(r.tracks))
	for i, track := range r.tracks {
		out[i] = *track
	}
	return out
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
