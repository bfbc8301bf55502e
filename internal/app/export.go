package app

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"netspeed-daemon/internal/usage"
)

// Export renders the daily usage history as CSV and/or a PNG chart.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	records, _, _, err := a.usageReport(ctx)
	if err != nil {
		return err
	}

	records = filterWindow(records, opts.From, opts.To)
	if len(records) == 0 {
		a.Logger.Info().Msg("no usage records in export window")
		return nil
	}

	a.Logger.Info().Int("days", len(records)).Msg("exporting usage history")

	if opts.CSVPath != "" {
		if err := writeUsageCSV(opts.CSVPath, records); err != nil {
			return err
		}
	}
	if opts.PNGPath != "" {
		if err := writeUsagePNG(opts.PNGPath, records); err != nil {
			return err
		}
	}
	return nil
}

func filterWindow(records []usage.DailyRecord, from, to *time.Time) []usage.DailyRecord {
	if from == nil && to == nil {
		return records
	}
	filtered := records[:0:0]
	for _, rec := range records {
		if from != nil && rec.DayStart.Before(*from) {
			continue
		}
		if to != nil && !rec.DayStart.Before(*to) {
			continue
		}
		filtered = append(filtered, rec)
	}
	return filtered
}

func writeUsageCSV(path string, records []usage.DailyRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"day", "mobile_bytes", "wifi_bytes", "total_bytes"}); err != nil {
		return err
	}
	for _, rec := range records {
		row := []string{
			rec.DayStart.Format("2006-01-02"),
			formatInt(rec.Mobile),
			formatInt(rec.Wifi),
			formatInt(rec.Total()),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	return writer.Error()
}

func writeUsagePNG(path string, records []usage.DailyRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	// DailyRecords is newest first; the chart wants ascending time.
	x := make([]time.Time, len(records))
	mobile := make([]float64, len(records))
	wifi := make([]float64, len(records))
	for i, rec := range records {
		j := len(records) - 1 - i
		x[j] = rec.DayStart
		mobile[j] = float64(rec.Mobile) / (1024 * 1024)
		wifi[j] = float64(rec.Wifi) / (1024 * 1024)
	}

	mbFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.0f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Usage (MB)",
			ValueFormatter: mbFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Mobile",
				XValues: x,
				YValues: mobile,
			},
			chart.TimeSeries{
				Name:    "WiFi",
				XValues: x,
				YValues: wifi,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
