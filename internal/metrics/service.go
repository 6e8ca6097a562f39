package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"dockhand/internal/cache"
	"dockhand/internal/errors"
	"dockhand/internal/logger"
	"dockhand/internal/registry"
)

// Cache keys for the two point caches.
const (
	keySystemMetrics = "system_metrics"
	keyServiceHealth = "service_health"
)

// Fetcher is the one outbound primitive to the metrics endpoint.
// Satisfied by Client; stubbed in tests.
type Fetcher interface {
	Fetch(endpoint string) (json.RawMessage, error)
}

// Options tunes the metrics service.
type Options struct {
	// ProbeHost is the host managed-service health probes are aimed at,
	// normally the remote Docker host.
	ProbeHost string
	// MetricsTTL and HealthTTL bound cache staleness.
	MetricsTTL time.Duration
	HealthTTL  time.Duration
	// HistoryWindow bounds snapshot retention.
	HistoryWindow time.Duration
	// ProbeTimeout bounds one health probe request.
	ProbeTimeout time.Duration
}

func (o *Options) applyDefaults() {
	if o.MetricsTTL <= 0 {
		o.MetricsTTL = 60 * time.Second
	}
	if o.HealthTTL <= 0 {
		o.HealthTTL = 60 * time.Second
	}
	if o.HistoryWindow <= 0 {
		o.HistoryWindow = 24 * time.Hour
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = 5 * time.Second
	}
}

// Service combines the metrics endpoint, the health prober, the TTL cache,
// and the snapshot history.
type Service struct {
	fetcher  Fetcher
	registry *registry.Registry
	opts     Options

	cache   *cache.Cache
	history *cache.History[Snapshot]
	prober  *http.Client
	log     logger.Logger
}

// NewService wires up a metrics service.
func NewService(fetcher Fetcher, reg *registry.Registry, opts Options, log logger.Logger) *Service {
	opts.applyDefaults()
	if log == nil {
		log = logger.Default()
	}
	return &Service{
		fetcher:  fetcher,
		registry: reg,
		opts:     opts,
		cache:    cache.New(),
		history:  cache.NewHistory[Snapshot](opts.HistoryWindow),
		prober:   &http.Client{Timeout: opts.ProbeTimeout},
		log:      log,
	}
}

// glancesAll is the subset of the endpoint's "all" payload we consume.
type glancesAll struct {
	System struct {
		Hostname string `json:"hostname"`
		Platform string `json:"platform"`
		CPUCount int    `json:"cpucount"`
	} `json:"system"`
	CPU struct {
		Total float64 `json:"total"`
	} `json:"cpu"`
	Load struct {
		Min1  float64 `json:"min1"`
		Min5  float64 `json:"min5"`
		Min15 float64 `json:"min15"`
	} `json:"load"`
	Mem struct {
		Total     int64   `json:"total"`
		Available int64   `json:"available"`
		Used      int64   `json:"used"`
		Percent   float64 `json:"percent"`
	} `json:"mem"`
	MemSwap struct {
		Total   int64   `json:"total"`
		Used    int64   `json:"used"`
		Percent float64 `json:"percent"`
	} `json:"memswap"`
	FS []struct {
		MntPoint string  `json:"mnt_point"`
		Size     int64   `json:"size"`
		Used     int64   `json:"used"`
		Free     int64   `json:"free"`
		Percent  float64 `json:"percent"`
	} `json:"fs"`
	Network []struct {
		InterfaceName string `json:"interface_name"`
		Rx            int64  `json:"rx"`
		Tx            int64  `json:"tx"`
		IsUp          bool   `json:"is_up"`
	} `json:"network"`
	Uptime struct {
		Seconds int64 `json:"seconds"`
	} `json:"uptime"`
}

// GetSystemMetrics returns the latest host snapshot. With useCache false
// the cached value is discarded first, forcing a fresh acquisition.
// Every fresh acquisition is appended to the history.
func (s *Service) GetSystemMetrics(useCache bool) (*Snapshot, error) {
	if !useCache {
		s.cache.Invalidate(keySystemMetrics)
	}
	value, err := s.cache.GetOrRefresh(keySystemMetrics, s.opts.MetricsTTL, func() (any, error) {
		snapshot, err := s.acquireSnapshot()
		if err != nil {
			return nil, err
		}
		s.history.Append(*snapshot)
		return snapshot, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*Snapshot), nil
}

func (s *Service) acquireSnapshot() (*Snapshot, error) {
	raw, err := s.fetcher.Fetch("all")
	if err != nil {
		return nil, err
	}

	var data glancesAll
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrMetrics,
			"Metrics payload didn't match the expected shape", "")
	}

	snapshot := &Snapshot{
		Hostname:      data.System.Hostname,
		Platform:      data.System.Platform,
		UptimeSeconds: data.Uptime.Seconds,
		CPU: CPU{
			Percent:      data.CPU.Total,
			CountLogical: data.System.CPUCount,
			LoadAvg:      []float64{data.Load.Min1, data.Load.Min5, data.Load.Min15},
		},
		Memory: Memory{
			Total:       data.Mem.Total,
			Available:   data.Mem.Available,
			Used:        data.Mem.Used,
			Percent:     data.Mem.Percent,
			SwapTotal:   data.MemSwap.Total,
			SwapUsed:    data.MemSwap.Used,
			SwapPercent: data.MemSwap.Percent,
		},
		Disks:     []Disk{},
		Networks:  []Network{},
		Timestamp: time.Now().UTC(),
	}
	for _, fs := range data.FS {
		snapshot.Disks = append(snapshot.Disks, Disk{
			Path:    fs.MntPoint,
			Total:   fs.Size,
			Used:    fs.Used,
			Free:    fs.Free,
			Percent: fs.Percent,
		})
	}
	for _, net := range data.Network {
		snapshot.Networks = append(snapshot.Networks, Network{
			Name:      net.InterfaceName,
			BytesRecv: net.Rx,
			BytesSent: net.Tx,
			Up:        net.IsUp,
		})
	}
	return snapshot, nil
}

// GetHistoricalMetrics returns the snapshots collected in the last N hours,
// oldest first. History only accumulates as a side effect of fresh
// GetSystemMetrics acquisitions; there is no background sampler.
func (s *Service) GetHistoricalMetrics(hours int) []Snapshot {
	if hours <= 0 {
		hours = 1
	}
	return s.history.Since(time.Duration(hours) * time.Hour)
}

// GetServiceHealth probes every managed service's port over HTTP and
// returns one verdict per descriptor. Results are cached under the
// health TTL; useCache false forces fresh probes.
func (s *Service) GetServiceHealth(useCache bool) ([]ServiceHealth, error) {
	if !useCache {
		s.cache.Invalidate(keyServiceHealth)
	}
	value, err := s.cache.GetOrRefresh(keyServiceHealth, s.opts.HealthTTL, func() (any, error) {
		return s.probeAll(), nil
	})
	if err != nil {
		return nil, err
	}
	return value.([]ServiceHealth), nil
}

func (s *Service) probeAll() []ServiceHealth {
	results := make([]ServiceHealth, 0, s.registry.Len())
	for _, d := range s.registry.All() {
		results = append(results, s.probe(d))
	}
	return results
}

func (s *Service) probe(d registry.Descriptor) ServiceHealth {
	health := ServiceHealth{
		ServiceID: d.ID,
		Verdict:   HealthUnknown,
		CheckedAt: time.Now().UTC(),
	}
	if d.Port <= 0 {
		health.Error = "no port configured"
		return health
	}
	health.URL = fmt.Sprintf("http://%s:%d/", s.opts.ProbeHost, d.Port)

	start := time.Now()
	resp, err := s.prober.Get(health.URL)
	health.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		health.Verdict = HealthUnhealthy
		health.Error = err.Error()
		return health
	}
	defer resp.Body.Close()

	health.HTTPStatus = resp.StatusCode
	// Any answer means the service is up; auth walls and redirects count
	if resp.StatusCode < 500 {
		health.Verdict = HealthHealthy
	} else {
		health.Verdict = HealthUnhealthy
	}
	return health
}

// Alerts returns the endpoint's active alerts. An empty list is normal.
func (s *Service) Alerts() ([]Alert, error) {
	raw, err := s.fetcher.Fetch("alert")
	if err != nil {
		return nil, err
	}
	// The endpoint answers an empty object instead of an array when
	// nothing is firing
	alerts := []Alert{}
	if err := json.Unmarshal(raw, &alerts); err != nil {
		return []Alert{}, nil
	}
	return alerts, nil
}

// TestConnection checks the metrics endpoint answers at all.
func (s *Service) TestConnection() error {
	_, err := s.fetcher.Fetch("status")
	return err
}

// ClearCache discards both point caches unconditionally, forcing the next
// callers to reacquire. The history is retained.
func (s *Service) ClearCache() {
	s.cache.Clear()
	s.log.Info("metrics cache cleared")
}
