package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/stillwatch-data/sedentary.report/internal/config"
	"github.com/stillwatch-data/sedentary.report/internal/db"
	"github.com/stillwatch-data/sedentary.report/internal/engine"
	"github.com/stillwatch-data/sedentary.report/internal/serialmux"
	"github.com/stillwatch-data/sedentary.report/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	m      serialmux.SerialMuxInterface
	db     *db.DB
	engine *engine.Engine
	source *serialmux.SerialSource
	config *config.TuningConfig
}

func NewServer(m serialmux.SerialMuxInterface, database *db.DB, eng *engine.Engine, source *serialmux.SerialSource, cfg *config.TuningConfig) *Server {
	return &Server{
		m:      m,
		db:     database,
		engine: eng,
		source: source,
		config: cfg,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/stats", s.showStats)
	mux.HandleFunc("/api/reset-stats", s.resetStats)
	mux.HandleFunc("/api/records/recent", s.listRecentRecords)
	mux.HandleFunc("/api/timeline", s.showTimeline)
	mux.HandleFunc("/api/alerts", s.listAlerts)
	mux.HandleFunc("/api/daily-summary", s.showDailySummary)
	mux.HandleFunc("/api/magnitude-rollup", s.showMagnitudeRollup)
	mux.HandleFunc("/api/serial/status", s.showSerialStatus)
	mux.HandleFunc("/api/serial/reconnect", s.reconnectSerialHandler)
	mux.HandleFunc("/api/command", s.sendCommandHandler)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/charts/timeline", s.chartTimeline)
	mux.HandleFunc("/charts/magnitude", s.chartMagnitude)
	mux.HandleFunc("/charts/daily.png", s.chartDailyPNG)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// intQueryParam parses a positive integer query parameter, falling back to
// def when absent. Returns -1 on a malformed or non-positive value.
func intQueryParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return -1
	}
	return v
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := json.NewEncoder(w).Encode(s.engine.Status()); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write status")
		return
	}
}

func (s *Server) showStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := json.NewEncoder(w).Encode(s.engine.Stats()); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write stats")
		return
	}
}

func (s *Server) resetStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	s.engine.ResetStats()
	json.NewEncoder(w).Encode(map[string]string{"status": "reset"})
}

func (s *Server) listRecentRecords(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit := intQueryParam(r, "limit", 50)
	if limit < 1 {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
		return
	}

	records, err := s.db.RecentRecords(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve records: %v", err))
		return
	}
	if records == nil {
		records = []engine.DecisionRecord{}
	}

	if err := json.NewEncoder(w).Encode(records); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write records")
		return
	}
}

func (s *Server) showTimeline(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

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
	if records == nil {
		records = []engine.DecisionRecord{}
	}

	if err := json.NewEncoder(w).Encode(records); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write timeline")
		return
	}
}

func (s *Server) listAlerts(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit := intQueryParam(r, "limit", 20)
	if limit < 1 {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
		return
	}

	episodes, err := s.db.RecentEpisodes(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve alerts: %v", err))
		return
	}
	if episodes == nil {
		episodes = []db.EpisodeRow{}
	}

	if err := json.NewEncoder(w).Encode(episodes); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write alerts")
		return
	}
}

func (s *Server) showDailySummary(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid 'date' parameter, want YYYY-MM-DD")
		return
	}

	summary, err := s.db.GetDailySummary(date)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve daily summary: %v", err))
		return
	}

	if err := json.NewEncoder(w).Encode(summary); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write daily summary")
		return
	}
}

func (s *Server) showMagnitudeRollup(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	days := intQueryParam(r, "days", 7)
	if days < 1 {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid 'days' parameter")
		return
	}

	rollups, err := s.db.GetMagnitudeRollup(days)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve rollup: %v", err))
		return
	}
	if rollups == nil {
		rollups = []db.MagnitudeRollup{}
	}

	if err := json.NewEncoder(w).Encode(rollups); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write rollup")
		return
	}
}

func (s *Server) showSerialStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := json.NewEncoder(w).Encode(s.source.Status()); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write serial status")
		return
	}
}

// reconnectSerialHandler closes and reopens the serial port on demand, for
// recovering from an unplugged or wedged sensor without restarting.
func (s *Server) reconnectSerialHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := s.m.Reconnect(); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to reconnect serial port")
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "reconnected"})
}

func (s *Server) sendCommandHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	command := r.FormValue("command")

	if err := s.m.SendCommand(command); err != nil {
		http.Error(w, "Failed to send command", http.StatusInternalServerError)
		return
	}
	io.WriteString(w, "Command sent successfully")
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	effective := map[string]interface{}{
		"movement_threshold":      s.config.GetMovementThreshold(),
		"sedentary_threshold_sec": s.config.GetSedentaryThreshold().Seconds(),
		"transition_window_sec":   s.config.GetTransitionWindow().Seconds(),
		"tick_interval_ms":        s.config.GetTickInterval().Milliseconds(),
		"smoothing_window":        s.config.GetSmoothingWindow(),
		"serial_port":             s.config.GetSerialPort(),
		"baud_rate":               s.config.GetBaudRate(),
		"version":                 version.Version,
	}

	if err := json.NewEncoder(w).Encode(effective); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write config")
		return
	}
}
