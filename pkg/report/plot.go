package report

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	pulses "github.com/hvlab/pulse_go/pkg"
)

var (
	sampleColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	fitColor    = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// PlotPulse saves a PNG of the pulse current over time in nanoseconds, with
// the fitted model when there is one.
func PlotPulse(pa pulses.PulseAnalysis, filename string) error {
	if pa.Pulse.Len() == 0 {
		return fmt.Errorf("pulse %s has no samples", pa.Pulse.Filename())
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s - %s", filepath.Base(pa.Pulse.Source), pa.Pulse.Filename())
	p.X.Label.Text = "Time (ns)"
	p.Y.Label.Text = "Current (A)"

	pts := make(plotter.XYs, pa.Pulse.Len())
	for k := range pts {
		pts[k] = plotter.XY{X: pa.Pulse.T[k] * 1e9, Y: pa.Pulse.I[k]}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = sampleColor
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add("current", line)

	if model := fitCurve(pa); model != nil {
		fitPts := make(plotter.XYs, len(model))
		for k := range fitPts {
			fitPts[k] = plotter.XY{X: pts[k].X, Y: model[k]}
		}
		fitLine, err := plotter.NewLine(fitPts)
		if err != nil {
			return err
		}
		fitLine.Color = fitColor
		fitLine.Width = vg.Points(1)
		fitLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(fitLine)
		p.Legend.Add(string(pa.Fit.Method), fitLine)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	return p.Save(8*vg.Inch, 4*vg.Inch, filename)
}

// fitCurve evaluates the fitted model on the pulse samples, nil when there
// is no fit or the curve is not finite everywhere.
func fitCurve(pa pulses.PulseAnalysis) []float64 {
	if pa.Fit == nil {
		return nil
	}
	model := pa.Fit.Params.Curve(pa.Pulse.T)
	for _, v := range model {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
	}
	return model
}

// PlotPulses plots at most max pulses of the analyses into dir, named after
// the source record and the pulse. It returns the number of plots written.
func PlotPulses(analyses []pulses.RecordAnalysis, dir string, max int) (int, error) {
	if max <= 0 {
		return 0, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}
	written := 0
	for _, a := range analyses {
		base := strings.TrimSuffix(filepath.Base(a.Source), filepath.Ext(a.Source))
		for _, pa := range a.Pulses {
			if written >= max {
				return written, nil
			}
			filename := filepath.Join(dir, fmt.Sprintf("%s_%s.png", base, pa.Pulse.Filename()))
			if err := PlotPulse(pa, filename); err != nil {
				return written, fmt.Errorf("plotting %s: %w", filename, err)
			}
			written++
		}
	}
	return written, nil
}
