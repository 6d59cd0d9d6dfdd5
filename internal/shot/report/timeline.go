package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/shotcall/internal/shot"
)

// echartsAssetsHost serves the echarts bundle for rendered pages.
const echartsAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

var outcomeColors = map[shot.Outcome]string{
	shot.OutcomeMade:         "#2ca02c",
	shot.OutcomeMissed:       "#d62728",
	shot.OutcomeUndetermined: "#7f7f7f",
}

// RenderTimeline writes an HTML scatter of the fused verdicts: time on the x
// axis, fused confidence on the y axis, one series per outcome.
func RenderTimeline(w io.Writer, title string, fused []shot.FusedShot) error {
	series := map[shot.Outcome][]opts.ScatterData{}
	maxT := 0.0
	for _, fs := range fused {
		series[fs.Outcome] = append(series[fs.Outcome], opts.ScatterData{
			Name:  fmt.Sprintf("%s %s", fs.FusionMethod, fs.Pattern),
			Value: []interface{}{fs.TimestampSeconds, fs.FusionConfidence},
		})
		if fs.TimestampSeconds > maxT {
			maxT = fs.TimestampSeconds
		}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "1200px", Height: "480px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("shots=%d", len(fused))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Min: 0, Max: maxT + 1, Name: "time (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Min: 0, Max: 1, Name: "confidence", NameLocation: "middle", NameGap: 30}),
	)
	for _, o := range []shot.Outcome{shot.OutcomeMade, shot.OutcomeMissed, shot.OutcomeUndetermined} {
		scatter.AddSeries(string(o), series[o],
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 12}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: outcomeColors[o]}),
		)
	}
	return scatter.Render(w)
}
