package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical counting defaults file.
const DefaultConfigPath = "config/counting.defaults.json"

// MaxHistoryLength is the largest position history a track may keep.
const MaxHistoryLength = 5

// Association modes for matching detections to tracks.
const (
	AssociationFirst   = "first"   // earliest-created track within range wins
	AssociationNearest = "nearest" // closest track within range wins
)

// CountingConfig is the root configuration for the tracker and line counter.
// Unset fields fall back to the defaults returned by the Get* accessors, so a
// partial file only overrides what it names.
type CountingConfig struct {
	// Blob gate (applied before the tracker sees a detection)
	MinArea        *float64 `json:"min_area,omitempty"`
	MinAspectRatio *float64 `json:"min_aspect_ratio,omitempty"`
	MaxAspectRatio *float64 `json:"max_aspect_ratio,omitempty"`

	// Reference lines
	LineYTopBottom *int `json:"line_y_top_bottom,omitempty"`
	LineXRightLeft *int `json:"line_x_right_left,omitempty"`
	Offset         *int `json:"offset,omitempty"`

	// Tracker params
	MinLifespan            *int     `json:"min_lifespan,omitempty"`
	MinFramesBetweenCounts *int     `json:"min_frames_between_counts,omitempty"`
	MaxMovementDistance    *int     `json:"max_movement_distance,omitempty"`
	MaxSpeedThreshold      *float64 `json:"max_speed_threshold,omitempty"`
	HistoryLength          *int     `json:"history_length,omitempty"`
	Association            *string  `json:"association,omitempty"`
	MaxIdleFrames          *int     `json:"max_idle_frames,omitempty"`
	RearmCounts            *bool    `json:"rearm_counts,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyCountingConfig returns a CountingConfig with all fields unset.
func EmptyCountingConfig() *CountingConfig {
	return &CountingConfig{}
}

// DefaultCountingConfig returns a CountingConfig with every field populated
// from the built-in defaults. It does not read DefaultConfigPath.
func DefaultCountingConfig() *CountingConfig {
	return &CountingConfig{
		MinArea:                ptrFloat64(500),
		MinAspectRatio:         ptrFloat64(0.4),
		MaxAspectRatio:         ptrFloat64(1.5),
		LineYTopBottom:         ptrInt(350),
		LineXRightLeft:         ptrInt(1250),
		Offset:                 ptrInt(10),
		MinLifespan:            ptrInt(10),
		MinFramesBetweenCounts: ptrInt(20),
		MaxMovementDistance:    ptrInt(50),
		MaxSpeedThreshold:      ptrFloat64(30),
		HistoryLength:          ptrInt(MaxHistoryLength),
		Association:            ptrString(AssociationFirst),
		MaxIdleFrames:          ptrInt(0),
		RearmCounts:            ptrBool(false),
	}
}

// LoadCountingConfig loads a CountingConfig from a JSON file.
// The path must have a .json extension and the file must be under 1MB.
func LoadCountingConfig(path string) (*CountingConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseCountingConfig(data)
}

// ParseCountingConfig decodes and validates a JSON document.
func ParseCountingConfig(data []byte) (*CountingConfig, error) {
	cfg := EmptyCountingConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded, intended
// for test setup.
func MustLoadDefaultConfig() *CountingConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/counting/tracks/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadCountingConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// JSON returns the effective configuration, with every default resolved,
// as a JSON document. Used to stamp run records.
func (c *CountingConfig) JSON() []byte {
	resolved := &CountingConfig{
		MinArea:                ptrFloat64(c.GetMinArea()),
		MinAspectRatio:         ptrFloat64(c.GetMinAspectRatio()),
		MaxAspectRatio:         ptrFloat64(c.GetMaxAspectRatio()),
		LineYTopBottom:         ptrInt(c.GetLineYTopBottom()),
		LineXRightLeft:         ptrInt(c.GetLineXRightLeft()),
		Offset:                 ptrInt(c.GetOffset()),
		MinLifespan:            ptrInt(c.GetMinLifespan()),
		MinFramesBetweenCounts: ptrInt(c.GetMinFramesBetweenCounts()),
		MaxMovementDistance:    ptrInt(c.GetMaxMovementDistance()),
		MaxSpeedThreshold:      ptrFloat64(c.GetMaxSpeedThreshold()),
		HistoryLength:          ptrInt(c.GetHistoryLength()),
		Association:            ptrString(c.GetAssociation()),
		MaxIdleFrames:          ptrInt(c.GetMaxIdleFrames()),
		RearmCounts:            ptrBool(c.GetRearmCounts()),
	}
	data, _ := json.Marshal(resolved)
	return data
}

// Validate checks that the configuration values are valid.
func (c *CountingConfig) Validate() error {
	if c.MinArea != nil && *c.MinArea < 0 {
		return fmt.Errorf("min_area must be non-negative, got %f", *c.MinArea)
	}
	if c.GetMinAspectRatio() < 0 {
		return fmt.Errorf("min_aspect_ratio must be non-negative, got %f", c.GetMinAspectRatio())
	}
	if c.GetMaxAspectRatio() <= c.GetMinAspectRatio() {
		return fmt.Errorf("max_aspect_ratio (%f) must exceed min_aspect_ratio (%f)", c.GetMaxAspectRatio(), c.GetMinAspectRatio())
	}
	if c.Offset != nil && *c.Offset < 0 {
		return fmt.Errorf("offset must be non-negative, got %d", *c.Offset)
	}
	if c.MinLifespan != nil && *c.MinLifespan < 0 {
		return fmt.Errorf("min_lifespan must be non-negative, got %d", *c.MinLifespan)
	}
	if c.MinFramesBetweenCounts != nil && *c.MinFramesBetweenCounts < 0 {
		return fmt.Errorf("min_frames_between_counts must be non-negative, got %d", *c.MinFramesBetweenCounts)
	}
	if c.MaxMovementDistance != nil && *c.MaxMovementDistance <= 0 {
		return fmt.Errorf("max_movement_distance must be positive, got %d", *c.MaxMovementDistance)
	}
	if c.MaxSpeedThreshold != nil && *c.MaxSpeedThreshold < 0 {
		return fmt.Errorf("max_speed_threshold must be non-negative, got %f", *c.MaxSpeedThreshold)
	}
	if c.HistoryLength != nil && (*c.HistoryLength < 1 || *c.HistoryLength > MaxHistoryLength) {
		return fmt.Errorf("history_length must be between 1 and %d, got %d", MaxHistoryLength, *c.HistoryLength)
	}
	if c.Association != nil {
		switch *c.Association {
		case AssociationFirst, AssociationNearest:
		default:
			return fmt.Errorf("association must be %q or %q, got %q", AssociationFirst, AssociationNearest, *c.Association)
		}
	}
	if c.MaxIdleFrames != nil && *c.MaxIdleFrames < 0 {
		return fmt.Errorf("max_idle_frames must be non-negative, got %d", *c.MaxIdleFrames)
	}
	return nil
}

// GetMinArea returns the min_area value or the default.
func (c *CountingConfig) GetMinArea() float64 {
	if c.MinArea == nil {
		return 500
	}
	return *c.MinArea
}

// GetMinAspectRatio returns the min_aspect_ratio value or the default.
func (c *CountingConfig) GetMinAspectRatio() float64 {
	if c.MinAspectRatio == nil {
		return 0.4
	}
	return *c.MinAspectRatio
}

// GetMaxAspectRatio returns the max_aspect_ratio value or the default.
func (c *CountingConfig) GetMaxAspectRatio() float64 {
	if c.MaxAspectRatio == nil {
		return 1.5
	}
	return *c.MaxAspectRatio
}

// GetLineYTopBottom returns the line_y_top_bottom value or the default.
func (c *CountingConfig) GetLineYTopBottom() int {
	if c.LineYTopBottom == nil {
		return 350
	}
	return *c.LineYTopBottom
}

// GetLineXRightLeft returns the line_x_right_left value or the default.
func (c *CountingConfig) GetLineXRightLeft() int {
	if c.LineXRightLeft == nil {
		return 1250
	}
	return *c.LineXRightLeft
}

// GetOffset returns the offset value or the default.
func (c *CountingConfig) GetOffset() int {
	if c.Offset == nil {
		return 10
	}
	return *c.Offset
}

// GetMinLifespan returns the min_lifespan value or the default.
func (c *CountingConfig) GetMinLifespan() int {
	if c.MinLifespan == nil {
		return 10
	}
	return *c.MinLifespan
}

// GetMinFramesBetweenCounts returns the min_frames_between_counts value or the default.
func (c *CountingConfig) GetMinFramesBetweenCounts() int {
	if c.MinFramesBetweenCounts == nil {
		return 20
	}
	return *c.MinFramesBetweenCounts
}

// GetMaxMovementDistance returns the max_movement_distance value or the default.
func (c *CountingConfig) GetMaxMovementDistance() int {
	if c.MaxMovementDistance == nil {
		return 50
	}
	return *c.MaxMovementDistance
}

// GetMaxSpeedThreshold returns the max_speed_threshold value or the default.
func (c *CountingConfig) GetMaxSpeedThreshold() float64 {
	if c.MaxSpeedThreshold == nil {
		return 30
	}
	return *c.MaxSpeedThreshold
}

// GetHistoryLength returns the history_length value or the default.
func (c *CountingConfig) GetHistoryLength() int {
	if c.HistoryLength == nil {
		return MaxHistoryLength
	}
	return *c.HistoryLength
}

// GetAssociation returns the association mode or the default.
func (c *CountingConfig) GetAssociation() string {
	if c.Association == nil || *c.Association == "" {
		return AssociationFirst
	}
	return *c.Association
}

// GetMaxIdleFrames returns the max_idle_frames value or the default (0, never evict).
func (c *CountingConfig) GetMaxIdleFrames() int {
	if c.MaxIdleFrames == nil {
		return 0
	}
	return *c.MaxIdleFrames
}

// GetRearmCounts returns the rearm_counts value or the default.
func (c *CountingConfig) GetRearmCounts() bool {
	if c.RearmCounts == nil {
		return false
	}
	return *c.RearmCounts
}
