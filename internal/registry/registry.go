// Package registry holds the static managed-services table and matches
// discovered containers against it.
package registry

import (
	"sort"
	"strings"

	"dockhand/internal/docker"
)

// Descriptor is one entry in the managed-services table. Loaded once at
// startup and immutable afterwards.
type Descriptor struct {
	ID            string `json:"id" yaml:"-" mapstructure:"-"`
	Name          string `json:"name" yaml:"name" mapstructure:"name"`
	Port          int    `json:"port" yaml:"port" mapstructure:"port"`
	Category      string `json:"category" yaml:"category" mapstructure:"category"`
	Description   string `json:"description,omitempty" yaml:"description" mapstructure:"description"`
	VPNRequired   bool   `json:"vpn_required" yaml:"vpn_required" mapstructure:"vpn_required"`
	ContainerName string `json:"container_name,omitempty" yaml:"container_name" mapstructure:"container_name"`
}

// Registry is an immutable set of service descriptors with deterministic
// iteration order (sorted by id).
type Registry struct {
	ordered []Descriptor
	byID    map[string]Descriptor
}

// New builds a registry from an id-keyed descriptor table. The map values'
// ID fields are overwritten with their keys.
func New(table map[string]Descriptor) *Registry {
	r := &Registry{byID: make(map[string]Descriptor, len(table))}
	for id, d := range table {
		d.ID = id
		r.byID[id] = d
		r.ordered = append(r.ordered, d)
	}
	sort.Slice(r.ordered, func(i, j int) bool {
		return r.ordered[i].ID < r.ordered[j].ID
	})
	return r
}

// All returns the descriptors in id order. Callers must not mutate.
func (r *Registry) All() []Descriptor {
	return r.ordered
}

// Get returns the descriptor for id, if present.
func (r *Registry) Get(id string) (Descriptor, bool) {
	d, ok := r.byID[id]
	return d, ok
}

// Len returns the number of descriptors.
func (r *Registry) Len() int {
	return len(r.ordered)
}

// Match finds the descriptor for a discovered container by name and image.
// Tiers run in strict priority order, each scanned fully before the next,
// and the first hit wins:
//
//  1. canonical container name equals the discovered name
//  2. canonical container name is a substring of the discovered name
//  3. descriptor id (lowercased) is a substring of the image (lowercased)
//
// Exact identity is trusted over substring guesses over the image
// heuristic, which keeps false enrichment to a minimum. No match means
// nil: the container is unmanaged but still worth listing.
func (r *Registry) Match(name, image string) *Descriptor {
	for i := range r.ordered {
		d := &r.ordered[i]
		if d.ContainerName != "" && d.ContainerName == name {
			return d
		}
	}
	for i := range r.ordered {
		d := &r.ordered[i]
		if d.ContainerName != "" && strings.Contains(name, d.ContainerName) {
			return d
		}
	}
	lowerImage := strings.ToLower(image)
	for i := range r.ordered {
		d := &r.ordered[i]
		if strings.Contains(lowerImage, strings.ToLower(d.ID)) {
			return d
		}
	}
	return nil
}

// MatchContainer is Match applied to a parsed record.
func (r *Registry) MatchContainer(c *docker.Container) *Descriptor {
	return r.Match(c.Name, c.Image)
}

// Enriched is a container annotated with its managed-service descriptor,
// nil when unmanaged.
type Enriched struct {
	docker.Container
	Service *Descriptor `json:"service"`
}

// Enrich annotates every container with its descriptor. Unmanaged
// containers stay in the list with a nil service.
func (r *Registry) Enrich(containers []docker.Container) []Enriched {
	enriched := make([]Enriched, 0, len(containers))
	for _, c := range containers {
		enriched = append(enriched, Enriched{
			Container: c,
			Service:   r.Match(c.Name, c.Image),
		})
	}
	return enriched
}

// ServiceStatus is the managed-service view: one row per descriptor,
// with the matched container when one was discovered.
type ServiceStatus struct {
	Descriptor
	Found     bool              `json:"found"`
	Container *docker.Container `json:"container,omitempty"`
}

// Status reports every descriptor against the discovered containers.
// Descriptors with no matching container are reported as not found
// rather than dropped.
func (r *Registry) Status(containers []docker.Container) []ServiceStatus {
	matched := make(map[string]*docker.Container, len(r.ordered))
	for i := range containers {
		c := &containers[i]
		if d := r.Match(c.Name, c.Image); d != nil {
			if _, taken := matched[d.ID]; !taken {
				matched[d.ID] = c
			}
		}
	}

	statuses := make([]ServiceStatus, 0, len(r.ordered))
	for _, d := range r.ordered {
		status := ServiceStatus{Descriptor: d}
		if c, ok := matched[d.ID]; ok {
			status.Found = true
			status.Container = c
		}
		statuses = append(statuses, status)
	}
	return statuses
}
