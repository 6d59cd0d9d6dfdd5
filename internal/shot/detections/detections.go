// Package detections reads per-frame object detections for one camera angle.
package detections

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/banshee-data/shotcall/internal/shot"
)

// ErrMalformedDetection is returned for input lines that cannot be decoded
// into a detection.
var ErrMalformedDetection = errors.New("malformed detection")

// maxLineBytes bounds a single JSON line.
const maxLineBytes = 1 << 20

// FrameSource yields frames in stream order. Next returns io.EOF after the
// last frame.
type FrameSource interface {
	Next(ctx context.Context) (shot.Frame, error)
}

// SelectBest picks the highest-confidence detection of class at or above
// minConfidence.
func SelectBest(f shot.Frame, class shot.Class, minConfidence float64) (shot.Detection, bool) {
	return f.Best(class, minConfidence)
}

// line is the on-disk form of one detection.
type line struct {
	Class      string     `json:"class"`
	BBox       *shot.BBox `json:"bbox"`
	Confidence float64    `json:"confidence"`
	FrameIndex *int64     `json:"frame_index"`
	Timestamp  float64    `json:"timestamp"`
}

// JSONLSource reads one detection per line and groups consecutive lines with
// the same frame_index into a frame. A frame with no detections can be
// written as a line with frame_index and timestamp only.
type JSONLSource struct {
	scan    *bufio.Scanner
	lineNo  int
	pending *shot.Frame
	err     error
}

// NewJSONLSource wraps r.
func NewJSONLSource(r io.Reader) *JSONLSource {
	scan := bufio.NewScanner(r)
	scan.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &JSONLSource{scan: scan}
}

// Next returns the next frame.
func (s *JSONLSource) Next(ctx context.Context) (shot.Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return shot.Frame{}, err
		}
		if s.err != nil {
			return s.emit(s.err)
		}
		if !s.scan.Scan() {
			if err := s.scan.Err(); err != nil {
				s.err = fmt.Errorf("read detections: %w", err)
			} else {
				s.err = io.EOF
			}
			continue
		}
		s.lineNo++
		text := strings.TrimSpace(s.scan.Text())
		if text == "" {
			continue
		}

		idx, ts, det, ok, err := s.parse(text)
		if err != nil {
			s.err = err
			continue
		}
		if s.pending != nil && s.pending.Index != idx {
			out := *s.pending
			s.pending = &shot.Frame{Index: idx, Timestamp: ts}
			if ok {
				s.pending.Detections = append(s.pending.Detections, det)
			}
			return out, nil
		}
		if s.pending == nil {
			s.pending = &shot.Frame{Index: idx, Timestamp: ts}
		}
		if ok {
			s.pending.Detections = append(s.pending.Detections, det)
		}
	}
}

// emit flushes the frame being assembled before reporting err.
func (s *JSONLSource) emit(err error) (shot.Frame, error) {
	if s.pending != nil {
		out := *s.pending
		s.pending = nil
		return out, nil
	}
	return shot.Frame{}, err
}

func (s *JSONLSource) parse(text string) (idx int64, ts float64, det shot.Detection, ok bool, err error) {
	var l line
	if err := json.Unmarshal([]byte(text), &l); err != nil {
		return 0, 0, det, false, fmt.Errorf("%w: line %d: %v", ErrMalformedDetection, s.lineNo, err)
	}
	if l.FrameIndex == nil {
		return 0, 0, det, false, fmt.Errorf("%w: line %d: missing frame_index", ErrMalformedDetection, s.lineNo)
	}
	if l.Class == "" && l.BBox == nil {
		return *l.FrameIndex, l.Timestamp, det, false, nil
	}
	class, err := shot.ParseClass(l.Class)
	if err != nil {
		return 0, 0, det, false, fmt.Errorf("%w: line %d: %v", ErrMalformedDetection, s.lineNo, err)
	}
	if l.BBox == nil {
		return 0, 0, det, false, fmt.Errorf("%w: line %d: missing bbox", ErrMalformedDetection, s.lineNo)
	}
	if l.Confidence < 0 || l.Confidence > 1 {
		return 0, 0, det, false, fmt.Errorf("%w: line %d: confidence %v outside [0, 1]", ErrMalformedDetection, s.lineNo, l.Confidence)
	}
	det = shot.Detection{
		Class:      class,
		BBox:       *l.BBox,
		Confidence: l.Confidence,
		FrameIndex: *l.FrameIndex,
		Timestamp:  l.Timestamp,
	}
	return det.FrameIndex, det.Timestamp, det, true, nil
}

// SliceSource serves frames from memory.
type SliceSource struct {
	frames []shot.Frame
	pos    int
}

// NewSliceSource returns a source over frames.
func NewSliceSource(frames []shot.Frame) *SliceSource {
	return &SliceSource{frames: frames}
}

func (s *SliceSource) Next(ctx context.Context) (shot.Frame, error) {
	if err := ctx.Err(); err != nil {
		return shot.Frame{}, err
	}
	if s.pos >= len(s.frames) {
		return shot.Frame{}, io.EOF
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}
