package shot

import (
	"errors"
	"math"
)

// ZoneExtents sizes a hoop zone around the hoop centre, in pixels. The
// vertical extents may differ so the zone reaches further above the rim than
// below it.
type ZoneExtents struct {
	HalfWidth    float64
	TopExtent    float64
	BottomExtent float64
}

// Validate requires every extent to be strictly positive.
func (e ZoneExtents) Validate() error {
	if e.HalfWidth <= 0 || e.TopExtent <= 0 || e.BottomExtent <= 0 {
		return errors.New("zone extents must be strictly positive")
	}
	return nil
}

// HoopZone is the rectangle around the hoop in which ball samples belong to
// a shot attempt.
type HoopZone struct {
	CenterX      float64 `json:"center_x"`
	CenterY      float64 `json:"center_y"`
	HalfWidth    float64 `json:"half_width"`
	TopExtent    float64 `json:"top_extent"`
	BottomExtent float64 `json:"bottom_extent"`

	// Hoop box the zone was derived from.
	HoopBBox BBox `json:"hoop_bbox"`
}

// NewHoopZone derives a zone from a hoop bounding box.
func NewHoopZone(hoop BBox, ext ZoneExtents) HoopZone {
	c := hoop.Center()
	return HoopZone{
		CenterX:      c.X,
		CenterY:      c.Y,
		HalfWidth:    ext.HalfWidth,
		TopExtent:    ext.TopExtent,
		BottomExtent: ext.BottomExtent,
		HoopBBox:     hoop,
	}
}

func (z HoopZone) TopBoundary() float64    { return z.CenterY - z.TopExtent }
func (z HoopZone) BottomBoundary() float64 { return z.CenterY + z.BottomExtent }
func (z HoopZone) Left() float64           { return z.CenterX - z.HalfWidth }
func (z HoopZone) Right() float64          { return z.CenterX + z.HalfWidth }
func (z HoopZone) Height() float64         { return z.TopExtent + z.BottomExtent }

// HoopHeight and HoopArea describe the detected hoop box.
func (z HoopZone) HoopHeight() float64 { return z.HoopBBox.Height() }
func (z HoopZone) HoopArea() float64   { return z.HoopBBox.Area() }

// Contains is the zone membership test. All boundaries are inclusive.
func (z HoopZone) Contains(p Point) bool {
	return math.Abs(p.X-z.CenterX) <= z.HalfWidth &&
		z.TopBoundary() <= p.Y && p.Y <= z.BottomBoundary()
}

// WithinHorizontal reports whether x lies between the zone's side edges.
func (z HoopZone) WithinHorizontal(x float64) bool {
	return math.Abs(x-z.CenterX) <= z.HalfWidth
}

// SizeRatio is the ball box area over the hoop box area, used as a depth
// proxy. It is zero when the hoop area is unknown.
func (z HoopZone) SizeRatio(ballArea float64) float64 {
	hoopArea := z.HoopArea()
	if hoopArea <= 0 {
		return 0
	}
	return ballArea / hoopArea
}
