package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dockhand/internal/docker"
)

func testRegistry() *Registry {
	return New(map[string]Descriptor{
		"sonarr": {
			Name:          "Sonarr",
			Port:          8989,
			Category:      "media",
			VPNRequired:   true,
			ContainerName: "sonarr",
		},
		"radarr": {
			Name:          "Radarr",
			Port:          7878,
			Category:      "media",
			ContainerName: "radarr",
		},
		"prowlarr": {
			Name:          "Prowlarr",
			Port:          9696,
			Category:      "media",
			ContainerName: "prowlarr-main",
		},
		"grafana": {
			Name:     "Grafana",
			Port:     3000,
			Category: "monitoring",
			// No canonical name, only image matching can find it
		},
	})
}

func TestNewAssignsIDs(t *testing.T) {
	r := testRegistry()
	assert.Equal(t, 4, r.Len())

	d, ok := r.Get("sonarr")
	require.True(t, ok)
	assert.Equal(t, "sonarr", d.ID)
	assert.Equal(t, "Sonarr", d.Name)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestAllIsSorted(t *testing.T) {
	r := testRegistry()
	ids := []string{}
	for _, d := range r.All() {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"grafana", "prowlarr", "radarr", "sonarr"}, ids)
}

func TestMatchTiers(t *testing.T) {
	r := testRegistry()

	tests := []struct {
		name   string
		cName  string
		image  string
		wantID string
	}{
		{
			name:   "exact name match",
			cName:  "sonarr",
			image:  "linuxserver/sonarr:latest",
			wantID: "sonarr",
		},
		{
			name:   "substring name match",
			cName:  "radarr-4k",
			image:  "some/image",
			wantID: "radarr",
		},
		{
			name:   "image heuristic",
			cName:  "dashboards",
			image:  "grafana/grafana:10.2",
			wantID: "grafana",
		},
		{
			name:   "image heuristic is case-insensitive",
			cName:  "dashboards",
			image:  "Grafana/Grafana:10.2",
			wantID: "grafana",
		},
		{
			name:   "no match",
			cName:  "postgres",
			image:  "postgres:16",
			wantID: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := r.Match(tt.cName, tt.image)
			if tt.wantID == "" {
				assert.Nil(t, d)
				return
			}
			require.NotNil(t, d)
			assert.Equal(t, tt.wantID, d.ID)
		})
	}
}

func TestMatchExactBeatsLowerTiers(t *testing.T) {
	// "son" would image-substring-match sonarr's image, but the exact tier
	// must win across all descriptors before lower tiers are consulted.
	r := New(map[string]Descriptor{
		"son":    {Name: "Sonification", ContainerName: "sonic-gen"},
		"sonarr": {Name: "Sonarr", ContainerName: "sonarr"},
	})

	d := r.Match("sonarr", "linuxserver/sonarr:latest")
	require.NotNil(t, d)
	assert.Equal(t, "sonarr", d.ID)
}

func TestMatchSubstringBeatsImage(t *testing.T) {
	r := New(map[string]Descriptor{
		"alpha": {Name: "Alpha", ContainerName: "alpha"},
		"beta":  {Name: "Beta", ContainerName: "xyz"},
	})

	// Name contains "alpha" (tier 2), image contains "beta" (tier 3)
	d := r.Match("alpha-worker", "registry.local/beta:1")
	require.NotNil(t, d)
	assert.Equal(t, "alpha", d.ID)
}

func TestMatchEmptyCanonicalNameSkipsNameTiers(t *testing.T) {
	r := New(map[string]Descriptor{
		"svc": {Name: "Svc"},
	})

	// An empty canonical name must not exact-match or substring-match
	assert.Nil(t, r.Match("", "unrelated:latest"))

	d := r.Match("whatever", "images/svc:2")
	require.NotNil(t, d)
	assert.Equal(t, "svc", d.ID)
}

func TestEnrichKeepsUnmanagedContainers(t *testing.T) {
	r := testRegistry()
	containers := []docker.Container{
		{Name: "sonarr", Image: "linuxserver/sonarr:latest"},
		{Name: "postgres", Image: "postgres:16"},
	}

	enriched := r.Enrich(containers)
	require.Len(t, enriched, 2, "unmanaged containers stay in the list")

	require.NotNil(t, enriched[0].Service)
	assert.Equal(t, "sonarr", enriched[0].Service.ID)
	assert.Nil(t, enriched[1].Service, "unmanaged container gets nil service, not omitted")
}

func TestStatusReportsMissingServices(t *testing.T) {
	r := testRegistry()
	containers := []docker.Container{
		{Name: "sonarr", Image: "linuxserver/sonarr:latest", Running: true, State: docker.StateRunning},
	}

	statuses := r.Status(containers)
	require.Len(t, statuses, 4, "one row per descriptor")

	byID := map[string]ServiceStatus{}
	for _, s := range statuses {
		byID[s.ID] = s
	}

	require.True(t, byID["sonarr"].Found)
	assert.True(t, byID["sonarr"].Container.Running)
	assert.False(t, byID["radarr"].Found)
	assert.Nil(t, byID["radarr"].Container)
}
