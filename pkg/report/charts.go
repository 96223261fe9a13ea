package report

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	pulses "github.com/hvlab/pulse_go/pkg"
)

// WriteHTMLReport renders the run overview: pulse duration against charge,
// one series per pulse kind, and the pulses found in every file.
func WriteHTMLReport(w io.Writer, summary Summary, analyses []pulses.RecordAnalysis) error {
	series := map[pulses.PulseKind][]opts.ScatterData{}
	for _, a := range analyses {
		for _, pa := range a.Pulses {
			series[pa.Pulse.Kind] = append(series[pa.Pulse.Kind], opts.ScatterData{
				Value: []interface{}{pa.Stats.DurationS * 1e9, pa.Stats.ChargeC * 1e12},
				Name:  fmt.Sprintf("%s %s", filepath.Base(a.Source), pa.Pulse.Filename()),
			})
		}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Pulse report", Width: "900px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Pulse duration vs charge",
			Subtitle: fmt.Sprintf("files=%d pulses=%d clipped=%d", summary.Files, summary.Pulses, summary.Clipped),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "Duration (ns)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "Charge (pC)", NameLocation: "middle", NameGap: 40}),
	)
	for _, kind := range []pulses.PulseKind{pulses.KindPulse, pulses.KindClipped} {
		scatter.AddSeries(string(kind), series[kind], charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))
	}

	x := make([]string, 0, len(summary.PerFile))
	regular := make([]opts.BarData, 0, len(summary.PerFile))
	clipped := make([]opts.BarData, 0, len(summary.PerFile))
	for _, f := range summary.PerFile {
		x = append(x, filepath.Base(f.Source))
		regular = append(regular, opts.BarData{Value: f.Pulses})
		clipped = append(clipped, opts.BarData{Value: f.Clipped})
	}
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "Pulses per file"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries(string(pulses.KindPulse), regular).
		AddSeries(string(pulses.KindClipped), clipped)

	page := components.NewPage()
	page.AddCharts(scatter, bar)
	return page.Render(w)
}
