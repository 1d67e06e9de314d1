package blobs

import (
	"testing"

	"github.com/banshee-data/vehicle.count/internal/counting/geom"
	"github.com/stretchr/testify/assert"
)

func TestAccept(t *testing.T) {
	t.Parallel()

	gate := DefaultGateConfig()
	tests := []struct {
		name string
		blob Blob
		want bool
	}{
		{"square car", Blob{Box: geom.BoxFromRect(0, 0, 40, 40)}, true},
		{"area exactly min rejected", Blob{Box: geom.BoxFromRect(0, 0, 20, 25)}, false},
		{"small contour in large box", Blob{Box: geom.BoxFromRect(0, 0, 40, 40), Area: 300}, false},
		{"contour area overrides box", Blob{Box: geom.BoxFromRect(0, 0, 20, 20), Area: 900}, true},
		{"too wide", Blob{Box: geom.BoxFromRect(0, 0, 100, 50)}, false},
		{"ratio 1.5 exclusive", Blob{Box: geom.BoxFromRect(0, 0, 60, 40)}, false},
		{"too tall", Blob{Box: geom.BoxFromRect(0, 0, 20, 60)}, false},
		{"ratio 0.4 exclusive", Blob{Box: geom.BoxFromRect(0, 0, 40, 100)}, false},
		{"degenerate", Blob{Box: geom.Box{X1: 10, Y1: 10, X2: 10, Y2: 50}, Area: 1000}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, gate.Accept(tt.blob))
		})
	}
}

func TestFilterPreservesOrder(t *testing.T) {
	t.Parallel()

	a := geom.BoxFromRect(100, 100, 40, 40)
	b := geom.BoxFromRect(300, 100, 40, 40)
	noise := geom.BoxFromRect(200, 100, 5, 5)

	got := DefaultGateConfig().Filter([]Blob{{Box: b}, {Box: noise}, {Box: a}})
	assert.Equal(t, []geom.Box{b, a}, got)
}

func TestFilterEmpty(t *testing.T) {
	t.Parallel()

	got := DefaultGateConfig().Filter(nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestBoxes(t *testing.T) {
	t.Parallel()

	noise := geom.BoxFromRect(200, 100, 5, 5)
	assert.Equal(t, []geom.Box{noise}, Boxes([]Blob{{Box: noise}}))
}
