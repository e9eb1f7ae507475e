package monitor

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// renderProgress writes a two-panel visualization of the log: a loss
// panel (train plus validation loss when present) and a metrics panel
// with one line per tracked metric.
func renderProgress(tl *TrainingLog, outputPath string) error {
	epochs := make([]string, len(tl.Epochs))
	for i, e := range tl.Epochs {
		epochs[i] = strconv.Itoa(e)
	}

	lossChart := newLineChart("Training Loss", "Epoch")
	lossChart.SetXAxis(epochs).
		AddSeries("Train", lineData(tl.TrainLoss)).
		SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))
	if len(tl.ValLoss) > 0 {
		lossChart.AddSeries("Val", lineData(tl.ValLoss))
	}

	metricsChart := newLineChart("Validation Metrics", "Epoch")
	metricsChart.SetXAxis(epochs)
	for _, name := range tl.Tracked {
		values := tl.Metrics[name]
		if len(values) == 0 {
			continue
		}
		metricsChart.AddSeries(name, lineData(values))
	}

	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(lossChart, metricsChart)

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create progress file: %w", err)
	}
	defer f.Close()

	if err := page.Render(f); err != nil {
		return fmt.Errorf("failed to render progress page: %w", err)
	}
	return nil
}

func newLineChart(title, xLabel string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Width:  "600px",
			Height: "400px",
		}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithXAxisOpts(opts.XAxis{Name: xLabel}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	return line
}

func lineData(values []float64) []opts.LineData {
	data := make([]opts.LineData, len(values))
	for i, v := range values {
		data[i] = opts.LineData{Value: v}
	}
	return data
}
