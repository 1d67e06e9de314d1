package security

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	t.Parallel()

	dir := filepath.Join("reports", "daily")
	tests := []struct {
		name      string
		path      string
		wantError bool
	}{
		{"direct child", filepath.Join(dir, "counts.png"), false},
		{"nested child", filepath.Join(dir, "a", "counts.png"), false},
		{"dot segments that stay inside", filepath.Join(dir, "a", "..", "counts.png"), false},
		{"parent escape", filepath.Join(dir, "..", "counts.png"), true},
		{"deep escape", filepath.Join(dir, "..", "..", "..", "etc", "passwd"), true},
		{"sibling with shared prefix", filepath.Join("reports", "daily-old", "counts.png"), true},
		{"the directory itself", dir, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.path, dir)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"day1", "day1"},
		{"north cam #2", "north_cam_2"},
		{"../../etc/passwd", "etc_passwd"},
		{"___", "unknown"},
		{"", "unknown"},
		{"a__b", "a__b"},
		{"a  b", "a_b"},
		{"sensor.v2-left", "sensor.v2-left"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeFilename(tt.in), "input %q", tt.in)
	}

	assert.Len(t, SanitizeFilename(strings.Repeat("x", 400)), maxFilenameLen)
}

func TestReportPath(t *testing.T) {
	t.Parallel()

	got, err := ReportPath("out", "replays/day 1.jsonl", "3f2a9c1e-8d6b-4a4e-9d1e-0b7c5a2f1e11", "png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("out", "day_1-3f2a9c1e.png"), got)

	got, err = ReportPath("out", "-", "", ".html")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("out", "stdin.html"), got)

	got, err = ReportPath("out", "../../secret", "", "png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("out", "secret.png"), got)
}
