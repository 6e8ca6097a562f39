package docker

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"dockhand/internal/errors"
)

// psEntry is one line of `docker ps --format json` output.
type psEntry struct {
	ID        string `json:"ID"`
	Names     string `json:"Names"`
	Image     string `json:"Image"`
	State     string `json:"State"`
	Status    string `json:"Status"`
	CreatedAt string `json:"CreatedAt"`
	Ports     string `json:"Ports"`
	Command   string `json:"Command"`
	Size      string `json:"Size"`
	Networks  string `json:"Networks"`
}

// statsEntry is one line of `docker stats --no-stream --format json` output.
// Every numeric field arrives as a formatted string.
type statsEntry struct {
	CPUPerc  string `json:"CPUPerc"`
	MemUsage string `json:"MemUsage"`
	MemPerc  string `json:"MemPerc"`
	NetIO    string `json:"NetIO"`
	BlockIO  string `json:"BlockIO"`
}

// inspectDoc is the subset of `docker inspect` output we consume.
type inspectDoc struct {
	ID      string `json:"Id"`
	Name    string `json:"Name"`
	Created string `json:"Created"`
	State   struct {
		Status    string `json:"Status"`
		StartedAt string `json:"StartedAt"`
		Health    *struct {
			Status string `json:"Status"`
		} `json:"Health"`
	} `json:"State"`
	Config struct {
		Image  string            `json:"Image"`
		Env    []string          `json:"Env"`
		Labels map[string]string `json:"Labels"`
	} `json:"Config"`
	HostConfig struct {
		PortBindings map[string][]struct {
			HostIP   string `json:"HostIp"`
			HostPort string `json:"HostPort"`
		} `json:"PortBindings"`
		RestartPolicy struct {
			Name string `json:"Name"`
		} `json:"RestartPolicy"`
	} `json:"HostConfig"`
	NetworkSettings struct {
		Networks map[string]json.RawMessage `json:"Networks"`
	} `json:"NetworkSettings"`
}

// ParseListOutput parses docker ps JSON-lines output into summary records.
// Malformed lines are skipped and counted, never fatal: partial results
// beat none.
func ParseListOutput(stdout string) (containers []Container, skipped int) {
	containers = []Container{}
	for _, line := range strings.Split(strings.TrimSpace(stdout), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var entry psEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			skipped++
			continue
		}
		state := mapState(strings.ToLower(entry.State))
		containers = append(containers, Container{
			ID:       entry.ID,
			Name:     strings.TrimPrefix(entry.Names, "/"),
			Image:    entry.Image,
			State:    state,
			Running:  state == StateRunning,
			Created:  parsePsTime(entry.CreatedAt),
			Ports:    ParsePorts(entry.Ports),
			Command:  entry.Command,
			Size:     entry.Size,
			Networks: splitList(entry.Networks),
		})
	}
	return containers, skipped
}

// ParseInspectOutput parses a docker inspect payload (a JSON array) into a
// Container, taking the first element. Missing fields fall back to defaults
// rather than failing; only an undecodable or empty payload is an error.
func ParseInspectOutput(stdout string) (*Container, error) {
	var docs []inspectDoc
	if err := json.Unmarshal([]byte(stdout), &docs); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrParse,
			"Couldn't decode inspect output", "")
	}
	if len(docs) == 0 {
		return nil, errors.New(errors.ErrParse, "Inspect output was an empty array", "")
	}
	doc := docs[0]

	state := mapState(strings.ToLower(doc.State.Status))

	id := doc.ID
	if len(id) > 12 {
		id = id[:12]
	}

	var ports []PortBinding
	for containerPort, bindings := range doc.HostConfig.PortBindings {
		parts := strings.SplitN(containerPort, "/", 2)
		cp, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}
		proto := "tcp"
		if len(parts) == 2 {
			proto = parts[1]
		}
		for _, b := range bindings {
			hp, err := strconv.Atoi(b.HostPort)
			if err != nil {
				continue
			}
			hostIP := b.HostIP
			if hostIP == "" {
				hostIP = "0.0.0.0"
			}
			ports = append(ports, PortBinding{
				ContainerPort: cp,
				HostPort:      hp,
				Protocol:      proto,
				HostIP:        hostIP,
			})
		}
	}
	if ports == nil {
		ports = []PortBinding{}
	}

	env := make(map[string]string)
	for _, kv := range doc.Config.Env {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}

	health := ""
	if doc.State.Health != nil {
		health = doc.State.Health.Status
	}

	restartPolicy := doc.HostConfig.RestartPolicy.Name
	if restartPolicy == "" {
		restartPolicy = "no"
	}

	var networks []string
	for name := range doc.NetworkSettings.Networks {
		networks = append(networks, name)
	}

	return &Container{
		ID:            id,
		Name:          strings.TrimPrefix(doc.Name, "/"),
		Image:         doc.Config.Image,
		State:         state,
		Running:       state == StateRunning,
		Health:        health,
		RestartPolicy: restartPolicy,
		Created:       ParseTimestamp(doc.Created),
		Started:       ParseTimestamp(doc.State.StartedAt),
		Ports:         ports,
		Labels:        doc.Config.Labels,
		Env:           env,
		Networks:      networks,
	}, nil
}

// ParseStatsOutput parses the first line of docker stats JSON output.
// Individual field conversion failures map to zero; only an undecodable
// payload is an error.
func ParseStatsOutput(stdout string) (*ResourceStats, error) {
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return nil, errors.New(errors.ErrParse, "Stats output was empty", "")
	}

	var entry statsEntry
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrParse,
			"Couldn't decode stats output", "")
	}

	memUsed, memLimit := splitPair(entry.MemUsage)
	netRx, netTx := splitPair(entry.NetIO)
	blockRead, blockWrite := splitPair(entry.BlockIO)

	return &ResourceStats{
		CPUPercent:    ParsePercent(entry.CPUPerc),
		MemoryUsage:   ParseSize(memUsed),
		MemoryLimit:   ParseSize(memLimit),
		MemoryPercent: ParsePercent(entry.MemPerc),
		NetworkRx:     ParseSize(netRx),
		NetworkTx:     ParseSize(netTx),
		BlockRead:     ParseSize(blockRead),
		BlockWrite:    ParseSize(blockWrite),
		SampledAt:     time.Now().UTC(),
	}, nil
}

// sizeUnits in suffix-match order. Longer suffixes first so "KiB" isn't
// consumed by the bare "B" rule. All units are binary (1024-based), which
// is what docker stats reports regardless of notation.
var sizeUnits = []struct {
	suffix     string
	multiplier float64
}{
	{"TIB", 1 << 40}, {"GIB", 1 << 30}, {"MIB", 1 << 20}, {"KIB", 1 << 10},
	{"TB", 1 << 40}, {"GB", 1 << 30}, {"MB", 1 << 20}, {"KB", 1 << 10},
	{"B", 1},
}

// ParseSize converts a unit-suffixed size string like "512MiB" or "1.5GB"
// to bytes. Anything unparsable maps to 0, never an error.
func ParseSize(s string) int64 {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" || s == "0B" || s == "--" {
		return 0
	}
	for _, unit := range sizeUnits {
		if strings.HasSuffix(s, unit.suffix) {
			value, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(s, unit.suffix)), 64)
			if err != nil {
				return 0
			}
			return int64(value * unit.multiplier)
		}
	}
	// Bare number, assume bytes
	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int64(value)
}

// ParsePercent converts "12.34%" to 12.34. Values over 100 pass through
// untouched since multi-core CPU figures legitimately exceed it.
// Unparsable input maps to 0.
func ParsePercent(s string) float64 {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	if s == "" || s == "--" {
		return 0
	}
	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return value
}

// portPattern matches one entry of the compact docker ps port summary,
// e.g. "0.0.0.0:8080->80/tcp". The host-IP part is optional.
var portPattern = regexp.MustCompile(`^(?:(.+):)?(\d+)->(\d+)/(\w+)$`)

// ParsePorts parses the comma-separated docker ps port summary string.
// Entries that don't look like a mapping (e.g. expose-only "80/tcp") are
// skipped; an empty string yields an empty slice, not an error.
func ParsePorts(s string) []PortBinding {
	ports := []PortBinding{}
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		m := portPattern.FindStringSubmatch(entry)
		if m == nil {
			continue
		}
		hostPort, err1 := strconv.Atoi(m[2])
		containerPort, err2 := strconv.Atoi(m[3])
		if err1 != nil || err2 != nil {
			continue
		}
		hostIP := m[1]
		if hostIP == "" {
			hostIP = "0.0.0.0"
		}
		ports = append(ports, PortBinding{
			ContainerPort: containerPort,
			HostPort:      hostPort,
			Protocol:      m[4],
			HostIP:        hostIP,
		})
	}
	return ports
}

// zeroTimestamp is Docker's "never started" sentinel.
const zeroTimestamp = "0001-01-01T00:00:00Z"

// ParseTimestamp parses Docker's variable-precision RFC 3339 timestamps.
// The epoch-zero sentinel and anything unparsable come back as the zero
// time, meaning "absent".
func ParseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" || s == zeroTimestamp {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// psTimeLayout is what docker ps prints for CreatedAt,
// e.g. "2024-05-01 10:30:00 +0000 UTC".
const psTimeLayout = "2006-01-02 15:04:05 -0700 MST"

func parsePsTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(psTimeLayout, s); err == nil {
		return t.UTC()
	}
	return ParseTimestamp(s)
}

func splitList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// splitPair splits a "used / limit" style docker stats value.
func splitPair(s string) (string, string) {
	left, right, ok := strings.Cut(s, "/")
	if !ok {
		return strings.TrimSpace(s), ""
	}
	return strings.TrimSpace(left), strings.TrimSpace(right)
}
