// Package charts renders collection completion as interactive HTML charts.
package charts

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/vaultestim/vaultestim/internal/progress"
)

// ChartConfig holds configuration for charts.
type ChartConfig struct {
	Title      string   // Chart title
	Subtitle   string   // Chart subtitle
	Width      string   // Chart width (e.g., "900px")
	Height     string   // Chart height (e.g., "500px")
	Theme      string   // Chart theme
	ShowLegend bool     // Show legend
	Colors     []string // Owned, missing
}

// DefaultChartConfig returns default chart configuration.
func DefaultChartConfig() ChartConfig {
	return ChartConfig{
		Title:      "Collection completion",
		Width:      "1100px",
		Height:     "500px",
		Theme:      "light",
		ShowLegend: true,
		Colors:     []string{"#3BA272", "#EE6666"},
	}
}

func globalOptions(config ChartConfig) []charts.GlobalOpts {
	return []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{
			Width:  config.Width,
			Height: config.Height,
			Theme:  config.Theme,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    config.Title,
			Subtitle: config.Subtitle,
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
		}),
		charts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(config.ShowLegend),
		}),
		charts.WithColorsOpts(opts.Colors(config.Colors)),
		charts.WithXAxisOpts(opts.XAxis{
			AxisLabel: &opts.AxisLabel{Rotate: 45, Interval: "0"},
		}),
	}
}

// CompletionBarChart builds a stacked owned/missing bar per set, labelled
// with the set name and its completion percentage.
func CompletionBarChart(results []progress.Result, config ChartConfig) *charts.Bar {
	labels := make([]string, len(results))
	owned := make([]opts.BarData, len(results))
	missing := make([]opts.BarData, len(results))
	for i, r := range results {
		name := r.SetName
		if name == "" {
			name = r.SetID
		}
		labels[i] = fmt.Sprintf("%s (%d%%)", name, r.Percentage)
		owned[i] = opts.BarData{Value: r.Owned}
		missing[i] = opts.BarData{Value: r.Total - r.Owned}
	}
	return stackedBar(labels, owned, missing, config)
}

// RarityBarChart builds the same stacked chart per rarity of one set.
func RarityBarChart(rows []progress.RarityCompletion, config ChartConfig) *charts.Bar {
	labels := make([]string, len(rows))
	owned := make([]opts.BarData, len(rows))
	missing := make([]opts.BarData, len(rows))
	for i, r := range rows {
		labels[i] = fmt.Sprintf("%s (%d%%)", r.Rarity, r.Percentage)
		owned[i] = opts.BarData{Value: r.Owned}
		missing[i] = opts.BarData{Value: r.Total - r.Owned}
	}
	return stackedBar(labels, owned, missing, config)
}

func stackedBar(labels []string, owned, missing []opts.BarData, config ChartConfig) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(globalOptions(config)...)
	bar.SetXAxis(labels).
		AddSeries("Owned", owned, charts.WithBarChartOpts(opts.BarChart{Stack: "completion"})).
		AddSeries("Missing", missing, charts.WithBarChartOpts(opts.BarChart{Stack: "completion"})).
		SetSeriesOptions(
			charts.WithLabelOpts(opts.Label{
				Show: opts.Bool(false),
			}),
		)
	return bar
}

// RenderCompletion writes the per-set completion chart as HTML to w.
func RenderCompletion(w io.Writer, results []progress.Result, config ChartConfig) error {
	if len(results) == 0 {
		return fmt.Errorf("no completion data provided")
	}
	if err := CompletionBarChart(results, config).Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

// RenderRarity writes the per-rarity chart of one set as HTML to w.
func RenderRarity(w io.Writer, rows []progress.RarityCompletion, config ChartConfig) error {
	if len(rows) == 0 {
		return fmt.Errorf("no rarity data provided")
	}
	if err := RarityBarChart(rows, config).Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

// RenderFile creates outputPath and renders into it.
func RenderFile(outputPath string, render func(io.Writer) error) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	if err := render(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// OpenInBrowser opens the given file path in the default web browser.
func OpenInBrowser(filePath string) error {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", absPath)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", absPath)
	case "linux":
		cmd = exec.Command("xdg-open", absPath)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
