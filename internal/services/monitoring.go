package services

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"
)

// RouteMetrics aggregates request outcomes for one route.
type RouteMetrics struct {
	Requests     int64   `json:"requests"`
	Errors       int64   `json:"errors"`
	ErrorRate    float64 `json:"error_rate"`
	AvgLatencyMS float64 `json:"avg_latency_ms"`
	totalLatency time.Duration
}

// SystemStats is a point-in-time snapshot of process and host resources.
type SystemStats struct {
	CPUPercent      float64 `json:"cpu_percent"`
	MemoryPercent   float64 `json:"memory_percent"`
	MemoryUsedMB    float64 `json:"memory_used_mb"`
	HeapAllocMB     float64 `json:"heap_alloc_mb"`
	Goroutines      int     `json:"goroutines"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
	CollectedAtUnix int64   `json:"collected_at_unix"`
}

// MonitoringStatus summarizes service health from recent request outcomes.
type MonitoringStatus struct {
	Status      string      `json:"status"`
	TotalCount  int64       `json:"total_requests"`
	ErrorCount  int64       `json:"error_count"`
	ErrorRate   float64     `json:"error_rate"`
	SystemStats SystemStats `json:"system"`
}

// MonitoringService tracks per-route request counters and exposes host-level
// resource statistics.
type MonitoringService struct {
	logger    *logrus.Logger
	startedAt time.Time

	mu     sync.RWMutex
	routes map[string]*RouteMetrics
}

// NewMonitoringService creates a monitoring service.
func NewMonitoringService(logger *logrus.Logger) *MonitoringService {
	if logger == nil {
		logger = logrus.New()
	}
	return &MonitoringService{
		logger:    logger,
		startedAt: time.Now(),
		routes:    make(map[string]*RouteMetrics),
	}
}

// RecordRequest registers one completed request for a route.
func (m *MonitoringService) RecordRequest(route string, latency time.Duration, isError bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	metrics := m.routes[route]
	if metrics == nil {
		metrics = &RouteMetrics{}
		m.routes[route] = metrics
	}

	metrics.Requests++
	if isError {
		metrics.Errors++
	}
	metrics.totalLatency += latency
	metrics.ErrorRate = float64(metrics.Errors) / float64(metrics.Requests)
	metrics.AvgLatencyMS = float64(metrics.totalLatency) / float64(time.Millisecond) / float64(metrics.Requests)
}

// Metrics returns a copy of the per-route counters.
func (m *MonitoringService) Metrics() map[string]RouteMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]RouteMetrics, len(m.routes))
	for route, metrics := range m.routes {
		out[route] = *metrics
	}
	return out
}

// Reset clears all request counters.
func (m *MonitoringService) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes = make(map[string]*RouteMetrics)
}

// Status derives overall health from the aggregate error rate: degraded
// above 10%, unhealthy above 20%.
func (m *MonitoringService) Status(ctx context.Context) MonitoringStatus {
	m.mu.RLock()
	var total, errors int64
	for _, metrics := range m.routes {
		total += metrics.Requests
		errors += metrics.Errors
	}
	m.mu.RUnlock()

	rate := 0.0
	if total > 0 {
		rate = float64(errors) / float64(total)
	}

	status := "healthy"
	switch {
	case rate > 0.2:
		status = "unhealthy"
	case rate > 0.1:
		status = "degraded"
	}

	return MonitoringStatus{
		Status:      status,
		TotalCount:  total,
		ErrorCount:  errors,
		ErrorRate:   rate,
		SystemStats: m.systemStats(ctx),
	}
}

func (m *MonitoringService) systemStats(ctx context.Context) SystemStats {
	stats := SystemStats{
		Goroutines:      runtime.NumGoroutine(),
		UptimeSeconds:   time.Since(m.startedAt).Seconds(),
		CollectedAtUnix: time.Now().Unix(),
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats.HeapAllocMB = float64(memStats.HeapAlloc) / 1024 / 1024

	// Instantaneous sample; a zero interval avoids blocking the request.
	if cpuPercent, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(cpuPercent) > 0 {
		stats.CPUPercent = cpuPercent[0]
	} else if err != nil {
		m.logger.WithError(err).Debug("CPU usage unavailable")
	}

	if memInfo, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats.MemoryPercent = memInfo.UsedPercent
		stats.MemoryUsedMB = float64(memInfo.Used) / 1024 / 1024
	} else {
		m.logger.WithError(err).Debug("Memory usage unavailable")
	}

	return stats
}
