package api

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stillwatch-data/sedentary.report/internal/engine"
)

func seedTimeline(t *testing.T, s *Server, n int) {
	t.Helper()
	database := s.db
	base := time.Now().UTC().Add(-time.Duration(n) * time.Second)
	for i := 0; i < n; i++ {
		state := engine.StateInactive
		if i%2 == 0 {
			state = engine.StateActive
		}
		err := database.RecordDecision(engine.DecisionRecord{
			Timestamp:     base.Add(time.Duration(i) * time.Second),
			State:         state,
			DeltaMag:      0.1 * float64(i%10),
			SmoothedDelta: 0.05 * float64(i%10),
			Confidence:    0.9,
		})
		if err != nil {
			t.Fatalf("RecordDecision failed: %v", err)
		}
	}
}

func TestChartTimeline(t *testing.T) {
	s, _ := newTestServer(t)
	seedTimeline(t, s, 20)

	rec := doRequest(t, s, http.MethodGet, "/charts/timeline?minutes=10")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "echarts") {
		t.Error("chart body does not reference echarts")
	}
	if !strings.Contains(body, "Activity Timeline") {
		t.Error("chart body missing title")
	}
}

func TestChartTimelineBadMinutes(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/charts/timeline?minutes=-1")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestChartMagnitude(t *testing.T) {
	s, _ := newTestServer(t)
	seedTimeline(t, s, 20)

	rec := doRequest(t, s, http.MethodGet, "/charts/magnitude")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "delta_mag") {
		t.Error("chart body missing series name")
	}
}

func TestChartDailyPNG(t *testing.T) {
	s, _ := newTestServer(t)
	seedTimeline(t, s, 10)

	rec := doRequest(t, s, http.MethodGet, "/charts/daily.png")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}
	// PNG magic bytes
	body := rec.Body.Bytes()
	if len(body) < 8 || body[1] != 'P' || body[2] != 'N' || body[3] != 'G' {
		t.Error("response is not a PNG")
	}
}

func TestChartDailyPNGBadDate(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/charts/daily.png?date=notadate")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestStateLevel(t *testing.T) {
	cases := map[string]int{"active": 2, "transition": 1, "inactive": 0, "bogus": 0}
	for state, want := range cases {
		if got := stateLevel(state); got != want {
			t.Errorf("stateLevel(%q) = %d, want %d", state, got, want)
		}
	}
}
