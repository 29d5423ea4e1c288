package api

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// stateLevel maps activity states onto a numeric axis for charting:
// inactive=0, transition=1, active=2.
func stateLevel(state string) int {
	switch state {
	case "active":
		return 2
	case "transition":
		return 1
	default:
		return 0
	}
}

// chartTimeline renders the activity state over the requested window as a
// step line chart.
func (s *Server) chartTimeline(w http.ResponseWriter, r *http.Request) {
	minutes := intQueryParam(r, "minutes", 60)
	if minutes < 1 {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid 'minutes' parameter")
		return
	}

	records, err := s.db.Timeline(time.Now().Add(-time.Duration(minutes) * time.Minute))
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve timeline: %v", err))
		return
	}

	labels := make([]string, 0, len(records))
	states := make([]opts.LineData, 0, len(records))
	confidences := make([]opts.LineData, 0, len(records))
	for _, rec := range records {
		labels = append(labels, rec.Timestamp.Local().Format("15:04:05"))
		states = append(states, opts.LineData{Value: stateLevel(string(rec.State))})
		confidences = append(confidences, opts.LineData{Value: rec.Confidence})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Activity Timeline", Theme: "dark", Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Activity Timeline",
			Subtitle: fmt.Sprintf("last %d minutes, %d records (0=inactive 1=transition 2=active)", minutes, len(records)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 2, Name: "state"}),
	)
	line.SetXAxis(labels)
	line.AddSeries("state", states, charts.WithLineChartOpts(opts.LineChart{Step: "end"}))
	line.AddSeries("confidence", confidences)

	renderChart(w, s, line)
}

// chartMagnitude renders raw and smoothed delta magnitude with the movement
// threshold marked.
func (s *Server) chartMagnitude(w http.ResponseWriter, r *http.Request) {
	minutes := intQueryParam(r, "minutes", 60)
	if minutes < 1 {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid 'minutes' parameter")
		return
	}

	records, err := s.db.Timeline(time.Now().Add(-time.Duration(minutes) * time.Minute))
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve timeline: %v", err))
		return
	}

	labels := make([]string, 0, len(records))
	raw := make([]opts.LineData, 0, len(records))
	smoothed := make([]opts.LineData, 0, len(records))
	for _, rec := range records {
		labels = append(labels, rec.Timestamp.Local().Format("15:04:05"))
		raw = append(raw, opts.LineData{Value: rec.DeltaMag})
		smoothed = append(smoothed, opts.LineData{Value: rec.SmoothedDelta})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Delta Magnitude", Theme: "dark", Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Delta Magnitude",
			Subtitle: fmt.Sprintf("movement threshold %.2f g", s.config.GetMovementThreshold()),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
	)
	line.SetXAxis(labels)
	line.AddSeries("delta_mag", raw)
	line.AddSeries("delta_mag_smoothed", smoothed,
		charts.WithMarkLineNameYAxisItemOpts(opts.MarkLineNameYAxisItem{
			Name:  "threshold",
			YAxis: s.config.GetMovementThreshold(),
		}))

	renderChart(w, s, line)
}

type chartRenderer interface {
	Render(w io.Writer) error
}

func renderChart(w http.ResponseWriter, s *Server, c chartRenderer) {
	var buf bytes.Buffer
	if err := c.Render(&buf); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// chartDailyPNG renders one day of smoothed delta magnitude as a static PNG.
func (s *Server) chartDailyPNG(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	day, err := time.Parse("2006-01-02", date)
	if date == "" {
		day = time.Now().Truncate(24 * time.Hour)
	} else if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid 'date' parameter, want YYYY-MM-DD")
		return
	}

	records, err := s.db.Timeline(day)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve records: %v", err))
		return
	}
	end := day.AddDate(0, 0, 1)

	pts := make(plotter.XYs, 0, len(records))
	for _, rec := range records {
		if !rec.Timestamp.Before(end) {
			break
		}
		hours := rec.Timestamp.Sub(day).Hours()
		pts = append(pts, plotter.XY{X: hours, Y: rec.SmoothedDelta})
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Smoothed delta magnitude %s", day.Format("2006-01-02"))
	p.X.Label.Text = "hour of day"
	p.Y.Label.Text = "delta magnitude (g)"
	p.X.Min, p.X.Max = 0, 24

	if len(pts) > 0 {
		line, err := plotter.NewLine(pts)
		if err != nil {
			s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to build plot: %v", err))
			return
		}
		line.Width = vg.Points(1)
		p.Add(line)
	}

	wt, err := p.WriterTo(14*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render plot: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if _, err := wt.WriteTo(w); err != nil {
		return
	}
}
