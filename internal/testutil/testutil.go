// Package testutil provides shared test utilities and fixtures.
//
// The detection fixtures build per-frame box lists for synthetic vehicles,
// so counting tests can describe scenes as paths instead of literal boxes.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/banshee-data/vehicle.count/internal/counting/geom"
)

// BoxSize is the side length of fixture boxes.
const BoxSize = 40

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// BoxAround returns a BoxSize square whose integer centre is (cx, cy).
func BoxAround(cx, cy int) geom.Box {
	h := BoxSize / 2
	return geom.Box{X1: cx - h, Y1: cy - h, X2: cx + h, Y2: cy + h}
}

// Still returns n frames each holding one detection centred on (cx, cy).
func Still(cx, cy, n int) [][]geom.Box {
	return Path(geom.Point{X: cx, Y: cy}, geom.Point{}, n)
}

// Path returns n frames of one detection starting at from and moving by
// step each frame.
func Path(from, step geom.Point, n int) [][]geom.Box {
	frames := make([][]geom.Box, n)
	for i := range frames {
		frames[i] = []geom.Box{BoxAround(from.X+i*step.X, from.Y+i*step.Y)}
	}
	return frames
}

// Delay prefixes frames with n empty frames.
func Delay(n int, frames [][]geom.Box) [][]geom.Box {
	out := make([][]geom.Box, n, n+len(frames))
	return append(out, frames...)
}

// Merge overlays scenes frame by frame. Detections of earlier scenes come
// first within a frame; shorter scenes contribute nothing once exhausted.
func Merge(scenes ...[][]geom.Box) [][]geom.Box {
	length := 0
	for _, s := range scenes {
		length = max(length, len(s))
	}
	out := make([][]geom.Box, length)
	for i := range out {
		for _, s := range scenes {
			if i < len(s) {
				out[i] = append(out[i], s[i]...)
			}
		}
	}
	return out
}

// TempPath returns name joined to a per-test temporary directory.
func TempPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name)
}
