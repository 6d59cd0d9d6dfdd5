package report

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/shotcall/internal/shot"
)

var (
	trajectoryColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	zoneColor       = color.RGBA{R: 127, G: 127, B: 127, A: 255}
	validColor      = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	invalidColor    = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// PlotFileName is the trajectory plot name for a record.
func PlotFileName(rec *shot.ShotRecord) string {
	return fmt.Sprintf("%s_%06d_%06d_%s.png", rec.Angle, rec.StartFrame, rec.EndFrame, rec.Outcome)
}

// PlotSequence draws the ball trajectory of seq over its hoop zone, marking
// valid crossings green and depth-rejected ones red, and saves it as a PNG.
// Image y grows downward so the y axis is inverted.
func PlotSequence(path string, seq *shot.ShotSequence, rec *shot.ShotRecord) error {
	if len(seq.Points) == 0 {
		return fmt.Errorf("sequence %d-%d has no points", seq.StartFrame, seq.EndFrame)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s frames %d-%d", seq.Angle, seq.StartFrame, seq.EndFrame)
	if rec != nil {
		p.Title.Text += fmt.Sprintf(": %s (%s, %.2f)", rec.Outcome, rec.OutcomeReason, rec.Confidence)
	}
	p.X.Label.Text = "x (px)"
	p.Y.Label.Text = "y (px)"

	pts := make(plotter.XYs, 0, len(seq.Points))
	for _, tp := range seq.Points {
		pts = append(pts, plotter.XY{X: tp.Center.X, Y: -tp.Center.Y})
	}
	line, scatter, err := plotter.NewLinePoints(pts)
	if err != nil {
		return err
	}
	line.Color = trajectoryColor
	line.Width = vg.Points(1)
	scatter.Color = trajectoryColor
	scatter.Radius = vg.Points(2)
	p.Add(line, scatter)
	p.Legend.Add("ball", line, scatter)

	z := seq.Zone
	zone, err := plotter.NewLine(plotter.XYs{
		{X: z.Left(), Y: -z.TopBoundary()},
		{X: z.Right(), Y: -z.TopBoundary()},
		{X: z.Right(), Y: -z.BottomBoundary()},
		{X: z.Left(), Y: -z.BottomBoundary()},
		{X: z.Left(), Y: -z.TopBoundary()},
	})
	if err != nil {
		return err
	}
	zone.Color = zoneColor
	zone.Width = vg.Points(1)
	zone.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(zone)
	p.Legend.Add("hoop zone", zone)

	var valid, invalid plotter.XYs
	for _, c := range seq.Crossings {
		xy := plotter.XY{X: c.X, Y: -c.Y}
		if c.Valid {
			valid = append(valid, xy)
		} else {
			invalid = append(invalid, xy)
		}
	}
	for _, set := range []struct {
		label string
		xys   plotter.XYs
		color color.Color
	}{{"valid crossing", valid, validColor}, {"rejected crossing", invalid, invalidColor}} {
		if len(set.xys) == 0 {
			continue
		}
		s, err := plotter.NewScatter(set.xys)
		if err != nil {
			return err
		}
		s.Color = set.color
		s.Shape = draw.CrossGlyph{}
		s.Radius = vg.Points(5)
		p.Add(s)
		p.Legend.Add(set.label, s)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create plot directory: %w", err)
	}
	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}
