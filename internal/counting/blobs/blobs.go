// Package blobs applies the upstream candidate gate that runs between blob
// extraction and the tracker: blobs that are too small or have an
// implausible shape for a vehicle never become detections.
//
// Dependency rule: blobs may depend on geom only. The tracker assumes every
// box it receives already passed this gate.
package blobs

import (
	"github.com/banshee-data/vehicle.count/internal/config"
	"github.com/banshee-data/vehicle.count/internal/counting/geom"
)

// Blob is one candidate region from blob extraction.
type Blob struct {
	Box geom.Box `json:"box"`
	// Area is the contour area in square pixels. Zero means the extractor
	// did not report one and the bounding-box area is used instead.
	Area float64 `json:"area,omitempty"`
}

// EffectiveArea returns the contour area, falling back to the box area.
func (b Blob) EffectiveArea() float64 {
	if b.Area > 0 {
		return b.Area
	}
	return float64(b.Box.Area())
}

// GateConfig holds the area and aspect-ratio thresholds.
type GateConfig struct {
	MinArea        float64 // exclusive lower bound on EffectiveArea
	MinAspectRatio float64 // exclusive lower bound on width/height
	MaxAspectRatio float64 // exclusive upper bound on width/height
}

// DefaultGateConfig returns the gate thresholds from the built-in defaults.
func DefaultGateConfig() GateConfig {
	return GateConfigFromCounting(config.EmptyCountingConfig())
}

// GateConfigFromCounting derives the gate thresholds from a loaded config.
func GateConfigFromCounting(cfg *config.CountingConfig) GateConfig {
	return GateConfig{
		MinArea:        cfg.GetMinArea(),
		MinAspectRatio: cfg.GetMinAspectRatio(),
		MaxAspectRatio: cfg.GetMaxAspectRatio(),
	}
}

// Accept reports whether a blob passes the gate.
func (g GateConfig) Accept(b Blob) bool {
	if b.EffectiveArea() <= g.MinArea {
		return false
	}
	if b.Box.Height() <= 0 || b.Box.Width() <= 0 {
		return false
	}
	ratio := b.Box.AspectRatio()
	return ratio > g.MinAspectRatio && ratio < g.MaxAspectRatio
}

// Filter returns the boxes of the blobs that pass the gate, preserving
// input order. Order matters: the tracker's first-match association is
// sensitive to the sequence in which detections arrive.
func (g GateConfig) Filter(candidates []Blob) []geom.Box {
	out := make([]geom.Box, 0, len(candidates))
	for _, b := range candidates {
		if g.Accept(b) {
			out = append(out, b.Box)
		}
	}
	return out
}

// Boxes returns every blob's box without gating, for inputs that were
// filtered upstream.
func Boxes(candidates []Blob) []geom.Box {
	out := make([]geom.Box, len(candidates))
	for i, b := range candidates {
		out[i] = b.Box
	}
	return out
}
