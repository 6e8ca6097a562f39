// Package docker runs container operations against a remote Docker host
// by issuing docker CLI commands over the transport layer and parsing
// their output into typed records.
package docker

import (
	"fmt"
	"time"
)

// State is a container lifecycle state.
type State string

const (
	StateRunning    State = "running"
	StateStopped    State = "stopped"
	StatePaused     State = "paused"
	StateRestarting State = "restarting"
	StateErrored    State = "errored"
	StateUnknown    State = "unknown"
)

// stateTable maps runtime-reported state strings to our enum.
// Anything not listed comes back as StateUnknown rather than an error,
// so a newer Docker release can't break enumeration.
var stateTable = map[string]State{
	"running":    StateRunning,
	"exited":     StateStopped,
	"paused":     StatePaused,
	"restarting": StateRestarting,
	"dead":       StateErrored,
}

func mapState(raw string) State {
	if s, ok := stateTable[raw]; ok {
		return s
	}
	return StateUnknown
}

// PortBinding is one host-to-container port mapping.
type PortBinding struct {
	ContainerPort int    `json:"container_port"`
	HostPort      int    `json:"host_port"`
	Protocol      string `json:"protocol"`
	HostIP        string `json:"host_ip"`
}

func (p PortBinding) String() string {
	return fmt.Sprintf("%s:%d->%d/%s", p.HostIP, p.HostPort, p.ContainerPort, p.Protocol)
}

// ResourceStats is a point-in-time resource sample for one container.
// Tied to the Container snapshot it was taken with; the caller decides
// when it is stale.
type ResourceStats struct {
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryUsage   int64     `json:"memory_usage"`
	MemoryLimit   int64     `json:"memory_limit"`
	MemoryPercent float64   `json:"memory_percent"`
	NetworkRx     int64     `json:"network_rx"`
	NetworkTx     int64     `json:"network_tx"`
	BlockRead     int64     `json:"block_read"`
	BlockWrite    int64     `json:"block_write"`
	SampledAt     time.Time `json:"sampled_at"`
}

// Container is one remote container, built from inspection output.
// Started stays zero for a container that has never run.
type Container struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Image         string            `json:"image"`
	State         State             `json:"state"`
	Running       bool              `json:"running"`
	Health        string            `json:"health,omitempty"`
	RestartPolicy string            `json:"restart_policy,omitempty"`
	Created       time.Time         `json:"created"`
	Started       time.Time         `json:"started,omitzero"`
	Ports         []PortBinding     `json:"ports"`
	Labels        map[string]string `json:"labels,omitempty"`
	Env           map[string]string `json:"env,omitempty"`
	Command       string            `json:"command,omitempty"`
	Size          string            `json:"size,omitempty"`
	Networks      []string          `json:"networks,omitempty"`
	Stats         *ResourceStats    `json:"stats,omitempty"`
	LogTail       []string          `json:"log_tail,omitempty"`
}

// Healthy reports whether the container looks healthy. With no health
// check configured, running counts as healthy.
func (c *Container) Healthy() bool {
	if c.Health == "" {
		return c.Running
	}
	return c.Health == "healthy"
}

// Uptime returns a human-readable uptime, or "" for a stopped container.
func (c *Container) Uptime() string {
	if !c.Running || c.Started.IsZero() {
		return ""
	}
	d := time.Since(c.Started)
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

// PrimaryPort returns the lowest host-side port, or 0 with no bindings.
func (c *Container) PrimaryPort() int {
	port := 0
	for _, p := range c.Ports {
		if port == 0 || p.HostPort < port {
			port = p.HostPort
		}
	}
	return port
}
