// Package metrics polls an external always-on metrics endpoint for
// host-level figures and probes managed-service health, caching both
// behind short TTLs.
package metrics

import (
	"fmt"
	"time"
)

// CPU holds processor figures from one sample.
type CPU struct {
	Percent      float64   `json:"percent"`
	CountLogical int       `json:"count_logical,omitempty"`
	LoadAvg      []float64 `json:"load_avg,omitempty"`
}

// Memory holds RAM and swap figures in bytes.
type Memory struct {
	Total       int64   `json:"total"`
	Available   int64   `json:"available"`
	Used        int64   `json:"used"`
	Percent     float64 `json:"percent"`
	SwapTotal   int64   `json:"swap_total,omitempty"`
	SwapUsed    int64   `json:"swap_used,omitempty"`
	SwapPercent float64 `json:"swap_percent,omitempty"`
}

// Disk is one mounted filesystem.
type Disk struct {
	Path    string  `json:"path"`
	Total   int64   `json:"total"`
	Used    int64   `json:"used"`
	Free    int64   `json:"free"`
	Percent float64 `json:"percent"`
}

// Network is one interface's counters.
type Network struct {
	Name      string `json:"name"`
	BytesRecv int64  `json:"bytes_recv"`
	BytesSent int64  `json:"bytes_sent"`
	Up        bool   `json:"up"`
}

// Alert is one active alert reported by the metrics endpoint.
type Alert struct {
	State       string  `json:"state,omitempty"`
	Type        string  `json:"type,omitempty"`
	Description string  `json:"desc,omitempty"`
	Max         float64 `json:"max,omitempty"`
	Begin       float64 `json:"begin,omitempty"`
}

// Snapshot is one timestamped host-level sample.
type Snapshot struct {
	Hostname      string    `json:"hostname,omitempty"`
	Platform      string    `json:"platform,omitempty"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	CPU           CPU       `json:"cpu"`
	Memory        Memory    `json:"memory"`
	Disks         []Disk    `json:"disks"`
	Networks      []Network `json:"networks"`
	Timestamp     time.Time `json:"timestamp"`
}

// DiskPercent is overall disk usage across all filesystems.
func (s *Snapshot) DiskPercent() float64 {
	var total, used int64
	for _, d := range s.Disks {
		total += d.Total
		used += d.Used
	}
	if total == 0 {
		return 0
	}
	return float64(used) / float64(total) * 100
}

// UptimeFormatted renders uptime as "3d 4h 12m".
func (s *Snapshot) UptimeFormatted() string {
	days := s.UptimeSeconds / 86400
	hours := (s.UptimeSeconds % 86400) / 3600
	minutes := (s.UptimeSeconds % 3600) / 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

// Health verdicts.
const (
	HealthHealthy   = "healthy"
	HealthUnhealthy = "unhealthy"
	HealthUnknown   = "unknown"
)

// ServiceHealth is the probe result for one managed service.
type ServiceHealth struct {
	ServiceID  string    `json:"service_id"`
	URL        string    `json:"url"`
	Verdict    string    `json:"verdict"`
	LatencyMS  int64     `json:"latency_ms"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Error      string    `json:"error,omitempty"`
	CheckedAt  time.Time `json:"checked_at"`
}
