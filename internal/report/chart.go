// Package report renders analysis runs as charts using go-echarts.
package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/ayusman/stockvision/internal/analysis"
	"github.com/ayusman/stockvision/internal/export"
)

// RenderCountChart writes an HTML line chart of the object count over the
// video timeline, with the peak and minimum counts marked.
func RenderCountChart(w io.Writer, run *analysis.Run) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Inventory Count Over Time",
			Width:     "1000px",
			Height:    "500px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title: "Object Count Over Time",
			Subtitle: fmt.Sprintf("%s | %d frames sampled every %.0fs | detection rate %.1f%%",
				run.SourceName, run.Summary.TotalFrames, run.IntervalSeconds,
				run.Summary.DetectionRate*100),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Video time"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Objects"}),
	)

	timestamps := make([]string, 0, len(run.Results))
	counts := make([]opts.LineData, 0, len(run.Results))
	for _, fr := range run.Results {
		timestamps = append(timestamps, export.FormatTimestamp(fr.Timestamp))
		counts = append(counts, opts.LineData{Value: fr.Count})
	}

	line.SetXAxis(timestamps).
		AddSeries("count", counts,
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}),
		).
		SetSeriesOptions(
			charts.WithMarkLineNameYAxisItemOpts(
				opts.MarkLineNameYAxisItem{Name: "Peak", YAxis: run.Summary.MaxInFrame},
				opts.MarkLineNameYAxisItem{Name: "Minimum", YAxis: run.Summary.MinInFrame},
			),
		)

	return line.Render(w)
}
