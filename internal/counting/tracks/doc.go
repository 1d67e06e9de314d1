// Package tracks owns track identity for the line counter.
//
// Responsibilities: associating each incoming detection with an existing
// track or creating a new one, the bounded per-track position history, and
// the optional idle-track eviction policy.
// Key types: Track, Registry.
//
// Dependency rule: tracks may depend on geom and config, but never on
// motion, crossing or pipeline. No rendering or storage code is allowed in
// this package.
package tracks
