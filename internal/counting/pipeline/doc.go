// Package pipeline drives the per-frame counting loop.
//
// Responsibilities:
//   - Own one track registry, motion filter and crossing detector.
//   - Run update, evaluate and check for each detection in input order.
//   - Fan crossing events out to sinks and report overlay data.
//
// Key types: Counter, FrameResult, Summary, EventSink.
//
// Dependency rule: pipeline may depend on tracks, motion, crossing and
// geom. Nothing under internal/counting depends on pipeline.
package pipeline
