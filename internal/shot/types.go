package shot

import (
	"fmt"
	"strings"
)

// Angle identifies a camera stream.
type Angle string

const (
	AngleNear Angle = "near"
	AngleFar  Angle = "far"
)

// Outcome is the verdict for one shot attempt.
type Outcome string

const (
	OutcomeMade         Outcome = "made"
	OutcomeMissed       Outcome = "missed"
	OutcomeUndetermined Outcome = "undetermined"
)

// Decisive reports whether the outcome is made or missed.
func (o Outcome) Decisive() bool {
	return o == OutcomeMade || o == OutcomeMissed
}

// Class is the detector object class.
type Class string

const (
	ClassBall Class = "ball"
	ClassHoop Class = "hoop"
)

// ParseClass maps detector label names onto the two classes the tracker
// consumes. Detectors in use label the ball "basketball" and the hoop with
// names such as "hoop" or "basketball_hoop".
func ParseClass(name string) (Class, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	switch {
	case strings.Contains(n, "hoop") || n == "rim":
		return ClassHoop, nil
	case n == "ball" || n == "basketball":
		return ClassBall, nil
	}
	return "", fmt.Errorf("unknown detection class %q", name)
}

// Point is a pixel coordinate. Y grows downward.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// BBox is an axis-aligned pixel box [x1, y1, x2, y2].
type BBox [4]float64

func (b BBox) Width() float64  { return b[2] - b[0] }
func (b BBox) Height() float64 { return b[3] - b[1] }
func (b BBox) Area() float64   { return b.Width() * b.Height() }

func (b BBox) Center() Point {
	return Point{X: (b[0] + b[2]) / 2, Y: (b[1] + b[3]) / 2}
}

// Valid reports whether the box has positive width and height.
func (b BBox) Valid() bool {
	return b.Width() > 0 && b.Height() > 0
}

// Detection is one detector output for one object in one frame.
type Detection struct {
	Class      Class   `json:"class"`
	BBox       BBox    `json:"bbox"`
	Confidence float64 `json:"confidence"`
	FrameIndex int64   `json:"frame_index"`
	Timestamp  float64 `json:"timestamp"`
}

// Frame groups the detections sharing one frame index.
type Frame struct {
	Index      int64
	Timestamp  float64
	Detections []Detection
}

// Best returns the highest-confidence detection of class with confidence at
// or above minConfidence. Equal confidences keep the first detection.
func (f Frame) Best(class Class, minConfidence float64) (Detection, bool) {
	var best Detection
	found := false
	for _, d := range f.Detections {
		if d.Class != class || d.Confidence < minConfidence || !d.BBox.Valid() {
			continue
		}
		if !found || d.Confidence > best.Confidence {
			best = d
			found = true
		}
	}
	return best, found
}

// Evidence records one threshold check that contributed to a decision so the
// decision can be audited against labelled data later.
type Evidence struct {
	Check     string  `json:"check"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Passed    bool    `json:"passed"`
}
