// Package profiler aggregates per-frame render statistics and memory usage and logs them
// at a fixed interval.
package profiler

import (
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/pass"
	"go.uber.org/zap"
)

// Report is one interval of aggregated frame statistics.
type Report struct {
	Frames      int
	FPS         float64
	Stats       pass.Stats
	AvgFlush    time.Duration
	HeapMB      float64
	SysMB       float64
	AllocRateMB float64
	GCCount     uint32
	LastPauseUs uint64
	MaxPauseUs  uint64
}

// Profiler tracks frame rate, render statistics and memory usage.
type Profiler struct {
	logger         *zap.Logger
	now            func() time.Time
	updateInterval time.Duration
	readMem        bool

	frameCount int
	stats      pass.Stats
	lastTime   time.Time

	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	last Report
}

// ProfilerBuilderOption configures a Profiler.
type ProfilerBuilderOption func(*Profiler)

// WithInterval sets how often statistics are reported. Defaults to one second.
func WithInterval(d time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		if d > 0 {
			p.updateInterval = d
		}
	}
}

// WithLogger sets the logger reports are written to.
func WithLogger(l *zap.Logger) ProfilerBuilderOption {
	return func(p *Profiler) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClock replaces time.Now, used by tests.
func WithClock(now func() time.Time) ProfilerBuilderOption {
	return func(p *Profiler) {
		if now != nil {
			p.now = now
		}
	}
}

// WithMemStats enables reading runtime memory statistics on every report. Enabled by default.
func WithMemStats(enabled bool) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.readMem = enabled
	}
}

// NewProfiler creates a new Profiler.
//
// Parameters:
//   - options: functional options
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		logger:         common.Logger(),
		now:            time.Now,
		updateInterval: time.Second,
		readMem:        true,
	}
	for _, opt := range options {
		opt(p)
	}
	p.lastTime = p.now()
	return p
}

// Tick records one frame and logs a report when the update interval has elapsed.
//
// Parameters:
//   - stats: the statistics returned by the frame
//
// Returns:
//   - bool: true if a report was logged this tick
func (p *Profiler) Tick(stats pass.Stats) bool {
	p.frameCount++
	p.stats = p.stats.Add(stats)

	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	r := Report{
		Frames: p.frameCount,
		FPS:    float64(p.frameCount) / elapsed.Seconds(),
		Stats:  p.stats,
	}
	r.AvgFlush = p.stats.Duration / time.Duration(p.frameCount)

	if p.readMem {
		p.readMemory(&r, elapsed)
	}

	fields := []zap.Field{
		zap.Float64("fps", r.FPS),
		zap.Int("passes", r.Stats.Passes),
		zap.Int("failed", r.Stats.Failed),
		zap.Int("skipped_stages", r.Stats.Skipped),
		zap.Duration("avg_flush", r.AvgFlush),
	}
	if p.readMem {
		fields = append(fields,
			zap.Float64("heap_mb", r.HeapMB),
			zap.Float64("alloc_rate_mb", r.AllocRateMB),
			zap.Uint32("gc", r.GCCount),
			zap.Uint64("gc_last_us", r.LastPauseUs),
			zap.Uint64("gc_max_us", r.MaxPauseUs),
			zap.Float64("sys_mb", r.SysMB),
		)
	}
	p.logger.Info("profiler", fields...)

	p.last = r
	p.frameCount = 0
	p.stats = pass.Stats{}
	p.lastTime = currentTime
	return true
}

func (p *Profiler) readMemory(r *Report, elapsed time.Duration) {
	runtime.ReadMemStats(&p.memStats)
	r.HeapMB = float64(p.memStats.Alloc) / 1024 / 1024
	r.SysMB = float64(p.memStats.Sys) / 1024 / 1024
	r.AllocRateMB = float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds()

	// PauseNs is a circular buffer of the last 256 pauses
	gcCount := p.memStats.NumGC
	r.GCCount = gcCount
	if gcCount > 0 {
		r.LastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000
		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			r.MaxPauseUs = max(r.MaxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
}

// Last returns the most recent report.
func (p *Profiler) Last() Report {
	return p.last
}
