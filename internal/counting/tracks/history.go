package tracks

import (
	"fmt"

	"github.com/banshee-data/vehicle.count/internal/config"
	"github.com/banshee-data/vehicle.count/internal/counting/geom"
)

// history is a fixed-capacity ring of recent centres, oldest evicted first.
type history struct {
	buf   [config.MaxHistoryLength]geom.Point
	start int
	n     int
	limit int
}

func newHistory(limit int) history {
	if limit < 1 || limit > config.MaxHistoryLength {
		panic(fmt.Sprintf("tracks: history length %d outside [1, %d]", limit, config.MaxHistoryLength))
	}
	return history{limit: limit}
}

func (h *history) push(p geom.Point) {
	if h.n > h.limit || h.start >= h.limit || h.limit > len(h.buf) {
		panic(fmt.Sprintf("tracks: corrupt history n=%d start=%d limit=%d", h.n, h.start, h.limit))
	}
	if h.n < h.limit {
		h.buf[(h.start+h.n)%h.limit] = p
		h.n++
	} else {
		h.buf[h.start] = p
		h.start = (h.start + 1) % h.limit
	}
}

// at returns the i-th entry, 0 being the oldest.
func (h *history) at(i int) geom.Point {
	return h.buf[(h.start+i)%h.limit]
}

func (h *history) last() geom.Point {
	return h.at(h.n - 1)
}

func (h *history) points() []geom.Point {
	out := make([]geom.Point, h.n)
	for i := range out {
		out[i] = h.at(i)
	}
	return out
}
