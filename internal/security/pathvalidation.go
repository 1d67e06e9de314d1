// Package security keeps generated report files inside the directory the
// operator chose for them.
package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// maxFilenameLen bounds names derived from replay paths and run ids.
const maxFilenameLen = 128

// ValidatePathWithinDirectory checks lexically that filePath stays inside
// dir once both are cleaned and made absolute. Symlinks are not resolved:
// report output goes through fsutil and may never touch the disk.
func ValidatePathWithinDirectory(filePath, dir string) error {
	absPath, err := filepath.Abs(filepath.Clean(filePath))
	if err != nil {
		return fmt.Errorf("resolve %s: %w", filePath, err)
	}
	absDir, err := filepath.Abs(filepath.Clean(dir))
	if err != nil {
		return fmt.Errorf("resolve %s: %w", dir, err)
	}

	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return fmt.Errorf("path is outside %s: %w", dir, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path traversal detected: %s escapes %s", filePath, dir)
	}
	return nil
}

// SanitizeFilename makes a file name from an arbitrary string. Anything
// other than ASCII letters, digits, dot, underscore or dash becomes a single
// underscore, and leading or trailing dots and underscores are trimmed.
func SanitizeFilename(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxFilenameLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
			lastUnderscore = r == '_'
		default:
			if !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}

// ReportPath names a chart for one replay inside dir, for example
// dir/day1-3f2a9c1e.png. The input's directory and extension are dropped;
// runID may be empty when no ledger is in use.
func ReportPath(dir, input, runID, ext string) (string, error) {
	base := filepath.Base(input)
	if input == "-" || base == "." || base == string(filepath.Separator) {
		base = "stdin"
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if runID != "" {
		short := runID
		if len(short) > 8 {
			short = short[:8]
		}
		stem += "-" + short
	}

	path := filepath.Join(dir, SanitizeFilename(stem)+"."+strings.TrimPrefix(ext, "."))
	if err := ValidatePathWithinDirectory(path, dir); err != nil {
		return "", err
	}
	return path, nil
}
