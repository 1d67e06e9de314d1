// Package source feeds per-frame detections to the counter. End of stream is
// reported as ok=false with a nil error, never as an error value.
package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/banshee-data/vehicle.count/internal/counting/blobs"
	"github.com/banshee-data/vehicle.count/internal/counting/geom"
	"github.com/banshee-data/vehicle.count/internal/fsutil"
)

// maxLineBytes bounds one JSON line; a frame with thousands of blobs fits.
const maxLineBytes = 1 << 20

// Frame is the candidate blobs of one video frame.
type Frame struct {
	Index int
	Blobs []blobs.Blob
}

// FrameSource supplies frames in order.
type FrameSource interface {
	// Next returns the next frame. ok is false once the stream is exhausted.
	Next(ctx context.Context) (frame Frame, ok bool, err error)
}

// SliceSource serves frames held in memory.
type SliceSource struct {
	frames []Frame
	pos    int
}

// NewSliceSource returns a source over frames, served in slice order.
func NewSliceSource(frames []Frame) *SliceSource {
	return &SliceSource{frames: frames}
}

// FromBoxes wraps per-frame box lists, indexing frames from zero. Blob
// areas are left unset so the gate falls back to box areas.
func FromBoxes(frames [][]geom.Box) *SliceSource {
	out := make([]Frame, len(frames))
	for i, boxes := range frames {
		out[i] = Frame{Index: i, Blobs: make([]blobs.Blob, len(boxes))}
		for j, b := range boxes {
			out[i].Blobs[j] = blobs.Blob{Box: b}
		}
	}
	return NewSliceSource(out)
}

func (s *SliceSource) Next(ctx context.Context) (Frame, bool, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, false, err
	}
	if s.pos >= len(s.frames) {
		return Frame{}, false, nil
	}
	f := s.frames[s.pos]
	s.pos++
	return f, true, nil
}

// wireBlob is the flat JSON form of one blob.
type wireBlob struct {
	X1   int     `json:"x1"`
	Y1   int     `json:"y1"`
	X2   int     `json:"x2"`
	Y2   int     `json:"y2"`
	Area float64 `json:"area,omitempty"`
}

type wireFrame struct {
	Frame *int       `json:"frame,omitempty"`
	Blobs []wireBlob `json:"blobs"`
}

// JSONLinesSource reads one JSON object per line:
//
//	{"frame": 12, "blobs": [{"x1": 10, "y1": 20, "x2": 50, "y2": 60, "area": 1400}]}
//
// "frame" may be omitted, in which case it follows the previous frame.
// Frame indexes must increase strictly. Blank lines are skipped.
type JSONLinesSource struct {
	name    string
	scanner *bufio.Scanner
	closer  io.Closer
	line    int
	last    int
}

// NewJSONLinesSource reads frames from r. name labels errors.
func NewJSONLinesSource(r io.Reader, name string) *JSONLinesSource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	return &JSONLinesSource{name: name, scanner: sc, last: -1}
}

// OpenJSONLines opens a detection replay file on fsys. Close releases it.
func OpenJSONLines(fsys fsutil.FileSystem, path string) (*JSONLinesSource, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open detections: %w", err)
	}
	src := NewJSONLinesSource(f, path)
	src.closer = f
	return src, nil
}

func (s *JSONLinesSource) Next(ctx context.Context) (Frame, bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Frame{}, false, err
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return Frame{}, false, fmt.Errorf("%s:%d: read: %w", s.name, s.line+1, err)
			}
			return Frame{}, false, nil
		}
		s.line++

		raw := bytes.TrimSpace(s.scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		return s.decode(raw)
	}
}

func (s *JSONLinesSource) decode(raw []byte) (Frame, bool, error) {
	var wf wireFrame
	if err := json.Unmarshal(raw, &wf); err != nil {
		return Frame{}, false, fmt.Errorf("%s:%d: %w", s.name, s.line, err)
	}

	index := s.last + 1
	if wf.Frame != nil {
		index = *wf.Frame
	}
	if index <= s.last {
		return Frame{}, false, fmt.Errorf("%s:%d: frame %d does not follow frame %d", s.name, s.line, index, s.last)
	}

	frame := Frame{Index: index, Blobs: make([]blobs.Blob, 0, len(wf.Blobs))}
	for i, wb := range wf.Blobs {
		if wb.X2 < wb.X1 || wb.Y2 < wb.Y1 {
			return Frame{}, false, fmt.Errorf("%s:%d: blob %d: inverted box [%d,%d %d,%d]",
				s.name, s.line, i, wb.X1, wb.Y1, wb.X2, wb.Y2)
		}
		frame.Blobs = append(frame.Blobs, blobs.Blob{
			Box:  geom.Box{X1: wb.X1, Y1: wb.Y1, X2: wb.X2, Y2: wb.Y2},
			Area: wb.Area,
		})
	}
	s.last = index
	return frame, true, nil
}

// Close releases the underlying file, if the source opened one.
func (s *JSONLinesSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// WriteJSONLine appends one frame to w in the JSONLinesSource format.
func WriteJSONLine(w io.Writer, f Frame) error {
	index := f.Index
	wf := wireFrame{Frame: &index, Blobs: make([]wireBlob, len(f.Blobs))}
	for i, b := range f.Blobs {
		wf.Blobs[i] = wireBlob{X1: b.Box.X1, Y1: b.Box.Y1, X2: b.Box.X2, Y2: b.Box.Y2, Area: b.Area}
	}
	data, err := json.Marshal(wf)
	if err != nil {
		return fmt.Errorf("marshal frame %d: %w", f.Index, err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write frame %d: %w", f.Index, err)
	}
	return nil
}
