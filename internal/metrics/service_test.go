package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dockhand/internal/errors"
	"dockhand/internal/logger"
	"dockhand/internal/registry"
)

const glancesPayload = `{
	"system": {"hostname": "tank", "platform": "Linux", "cpucount": 16},
	"cpu": {"total": 23.5},
	"load": {"min1": 0.8, "min5": 1.1, "min15": 0.9},
	"mem": {"total": 33554432000, "available": 20000000000, "used": 13554432000, "percent": 40.4},
	"memswap": {"total": 8589934592, "used": 0, "percent": 0},
	"fs": [
		{"mnt_point": "/", "size": 500000000000, "used": 250000000000, "free": 250000000000, "percent": 50.0},
		{"mnt_point": "/tank", "size": 12000000000000, "used": 9000000000000, "free": 3000000000000, "percent": 75.0}
	],
	"network": [{"interface_name": "eth0", "rx": 123456789, "tx": 987654321, "is_up": true}],
	"uptime": {"seconds": 864000}
}`

// fakeFetcher counts calls and serves canned payloads per endpoint.
type fakeFetcher struct {
	payloads map[string]string
	errs     map[string]error
	calls    map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		payloads: map[string]string{},
		errs:     map[string]error{},
		calls:    map[string]int{},
	}
}

func (f *fakeFetcher) Fetch(endpoint string) (json.RawMessage, error) {
	f.calls[endpoint]++
	if err, ok := f.errs[endpoint]; ok {
		return nil, err
	}
	if payload, ok := f.payloads[endpoint]; ok {
		return json.RawMessage(payload), nil
	}
	return nil, errors.New(errors.ErrMetrics, "no payload for "+endpoint, "")
}

func newTestService(f Fetcher, reg *registry.Registry, opts Options) *Service {
	if reg == nil {
		reg = registry.New(nil)
	}
	return NewService(f, reg, opts, logger.Noop())
}

func TestGetSystemMetricsParsesSnapshot(t *testing.T) {
	f := newFakeFetcher()
	f.payloads["all"] = glancesPayload
	svc := newTestService(f, nil, Options{})

	snapshot, err := svc.GetSystemMetrics(true)
	require.NoError(t, err)

	assert.Equal(t, "tank", snapshot.Hostname)
	assert.Equal(t, "Linux", snapshot.Platform)
	assert.Equal(t, 23.5, snapshot.CPU.Percent)
	assert.Equal(t, 16, snapshot.CPU.CountLogical)
	assert.Equal(t, []float64{0.8, 1.1, 0.9}, snapshot.CPU.LoadAvg)
	assert.Equal(t, 40.4, snapshot.Memory.Percent)
	require.Len(t, snapshot.Disks, 2)
	assert.Equal(t, "/tank", snapshot.Disks[1].Path)
	require.Len(t, snapshot.Networks, 1)
	assert.Equal(t, int64(123456789), snapshot.Networks[0].BytesRecv)
	assert.Equal(t, int64(864000), snapshot.UptimeSeconds)
	assert.Equal(t, "10d 0h 0m", snapshot.UptimeFormatted())
	assert.InDelta(t, 74.0, snapshot.DiskPercent(), 0.1)
}

func TestGetSystemMetricsUsesCache(t *testing.T) {
	f := newFakeFetcher()
	f.payloads["all"] = glancesPayload
	svc := newTestService(f, nil, Options{MetricsTTL: time.Hour})

	_, err := svc.GetSystemMetrics(true)
	require.NoError(t, err)
	_, err = svc.GetSystemMetrics(true)
	require.NoError(t, err)
	assert.Equal(t, 1, f.calls["all"], "second call inside the TTL is served from cache")

	// Bypassing the cache forces a fresh acquisition
	_, err = svc.GetSystemMetrics(false)
	require.NoError(t, err)
	assert.Equal(t, 2, f.calls["all"])
}

func TestGetSystemMetricsMalformedPayload(t *testing.T) {
	f := newFakeFetcher()
	f.payloads["all"] = `[1, 2, 3]`
	svc := newTestService(f, nil, Options{})

	_, err := svc.GetSystemMetrics(true)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrMetrics))
}

func TestHistoryAccumulatesFreshAcquisitions(t *testing.T) {
	f := newFakeFetcher()
	f.payloads["all"] = glancesPayload
	svc := newTestService(f, nil, Options{MetricsTTL: time.Hour})

	assert.Empty(t, svc.GetHistoricalMetrics(24))

	_, err := svc.GetSystemMetrics(true)
	require.NoError(t, err)
	_, err = svc.GetSystemMetrics(true) // cached, no new sample
	require.NoError(t, err)
	_, err = svc.GetSystemMetrics(false) // forced, new sample
	require.NoError(t, err)

	history := svc.GetHistoricalMetrics(24)
	assert.Len(t, history, 2, "only fresh acquisitions land in history")
}

func TestGetServiceHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	alivePort, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	reg := registry.New(map[string]registry.Descriptor{
		"alive":    {Name: "Alive", Port: alivePort},
		"dead":     {Name: "Dead", Port: 1}, // nothing listens there
		"portless": {Name: "Portless"},
	})

	svc := newTestService(newFakeFetcher(), reg, Options{
		ProbeHost:    u.Hostname(),
		ProbeTimeout: 500 * time.Millisecond,
	})

	health, err := svc.GetServiceHealth(true)
	require.NoError(t, err)
	require.Len(t, health, 3)

	byID := map[string]ServiceHealth{}
	for _, h := range health {
		byID[h.ServiceID] = h
	}

	assert.Equal(t, HealthHealthy, byID["alive"].Verdict)
	assert.Equal(t, http.StatusOK, byID["alive"].HTTPStatus)
	assert.False(t, byID["alive"].CheckedAt.IsZero())

	assert.Equal(t, HealthUnhealthy, byID["dead"].Verdict)
	assert.NotEmpty(t, byID["dead"].Error)

	assert.Equal(t, HealthUnknown, byID["portless"].Verdict)
}

func TestGetServiceHealthCached(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	u, _ := url.Parse(server.URL)
	port, _ := strconv.Atoi(u.Port())
	reg := registry.New(map[string]registry.Descriptor{
		"svc": {Name: "Svc", Port: port},
	})

	svc := newTestService(newFakeFetcher(), reg, Options{
		ProbeHost: u.Hostname(),
		HealthTTL: time.Hour,
	})

	_, err := svc.GetServiceHealth(true)
	require.NoError(t, err)
	_, err = svc.GetServiceHealth(true)
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "probes inside the TTL are served from cache")

	svc.ClearCache()
	_, err = svc.GetServiceHealth(true)
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "clearing the cache forces fresh probes")
}

func TestAlerts(t *testing.T) {
	f := newFakeFetcher()
	f.payloads["alert"] = `[{"state": "ongoing", "type": "CPU", "desc": "High CPU", "max": 97.2}]`
	svc := newTestService(f, nil, Options{})

	alerts, err := svc.Alerts()
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "CPU", alerts[0].Type)

	// Nothing firing: the endpoint answers an object, not an array
	f.payloads["alert"] = `{}`
	alerts, err = svc.Alerts()
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestTestConnection(t *testing.T) {
	f := newFakeFetcher()
	f.payloads["status"] = `{"version": "4.0"}`
	svc := newTestService(f, nil, Options{})
	require.NoError(t, svc.TestConnection())

	f.errs["status"] = errors.New(errors.ErrMetrics, "unreachable", "")
	err := svc.TestConnection()
	require.Error(t, err)
}
