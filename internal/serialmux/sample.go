package serialmux

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/stillwatch-data/sedentary.report/internal/engine"
	"github.com/stillwatch-data/sedentary.report/internal/monitoring"
)

// ParseSampleLine parses one CSV line from the sensor firmware.
// Expected format: uptime_ms,pir,ax,ay,az
// Example: 152340,1,0.12,-0.03,9.81
// Banner and alert chatter lines from the firmware return an error and are
// skipped by the caller.
func ParseSampleLine(line string) (engine.RawSample, error) {
	line = strings.TrimSpace(line)

	if line == "" ||
		strings.HasPrefix(line, "Sedentary") ||
		strings.HasPrefix(line, "CSV") ||
		strings.HasPrefix(line, "-") ||
		strings.Contains(line, "ALERT") {
		return engine.RawSample{}, fmt.Errorf("non-sample line %q", line)
	}

	parts := strings.Split(line, ",")
	if len(parts) != 5 {
		return engine.RawSample{}, fmt.Errorf("invalid sample line %q: expected 5 fields, got %d", line, len(parts))
	}

	uptime, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return engine.RawSample{}, fmt.Errorf("failed to parse uptime: %w", err)
	}

	pir, err := strconv.Atoi(parts[1])
	if err != nil || (pir != 0 && pir != 1) {
		return engine.RawSample{}, fmt.Errorf("invalid pir value %q", parts[1])
	}

	var accel [3]float64
	for i, field := range parts[2:] {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return engine.RawSample{}, fmt.Errorf("failed to parse accel axis %d: %w", i, err)
		}
		accel[i] = v
	}

	return engine.RawSample{
		Time:     uptime,
		Presence: pir == 1,
		Accel:    accel,
	}, nil
}

// SourceStatus describes the health of the serial sample source, exposed
// through the query layer so the presentation side can show a
// connected/degraded indicator.
type SourceStatus struct {
	Connected   bool      `json:"connected"`
	Port        string    `json:"port"`
	LineCount   uint64    `json:"line_count"`
	ParseErrors uint64    `json:"parse_errors"`
	LastSample  time.Time `json:"last_sample"`
}

// SerialSource adapts a serial mux subscription into the engine's sample
// source: it holds the most recently parsed sample and reports stale when no
// fresh line has arrived since the previous tick.
type SerialSource struct {
	mux      SerialMuxInterface
	portPath string

	mu         sync.Mutex
	latest     engine.RawSample
	seq        uint64
	takenSeq   uint64
	lineCount  uint64
	parseErrs  uint64
	lastSample time.Time
	running    bool
}

// NewSerialSource creates a source consuming samples from the given mux.
func NewSerialSource(mux SerialMuxInterface, portPath string) *SerialSource {
	return &SerialSource{mux: mux, portPath: portPath}
}

// Run subscribes to the mux and consumes lines until the context is
// cancelled. Parse failures are counted and dropped, never fatal.
func (s *SerialSource) Run(ctx context.Context) {
	id, ch := s.mux.Subscribe()
	defer s.mux.Unsubscribe(id)

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-ch:
			if !ok {
				return
			}
			sample, err := ParseSampleLine(line)
			s.mu.Lock()
			s.lineCount++
			if err != nil {
				s.parseErrs++
				s.mu.Unlock()
				monitoring.Logf("dropping serial line: %v", err)
				continue
			}
			s.latest = sample
			s.seq++
			s.lastSample = time.Now()
			s.mu.Unlock()
		}
	}
}

// Sample returns the most recent sample. The second return reports whether a
// fresh sample arrived since the last call, so the engine can substitute
// last-known values and mark the tick degraded when the sensor stalls.
func (s *SerialSource) Sample() (engine.RawSample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fresh := s.seq > s.takenSeq
	s.takenSeq = s.seq
	return s.latest, fresh
}

// Status reports the source's health for the query layer.
func (s *SerialSource) Status() SourceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SourceStatus{
		Connected:   s.running,
		Port:        s.portPath,
		LineCount:   s.lineCount,
		ParseErrors: s.parseErrs,
		LastSample:  s.lastSample,
	}
}
