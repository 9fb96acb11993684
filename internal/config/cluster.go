// Copyright Project Contour Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import "sort"

// Endpoint is a single backend address serving a Cluster.
type Endpoint struct {
	Host     string            `json:"host"`
	Port     uint32            `json:"port"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Cluster is a named group of endpoints a proxy may forward traffic to.
type Cluster struct {
	Name      string     `json:"name"`
	Endpoints []Endpoint `json:"endpoints"`
}

// ClusterMap is an immutable snapshot of the clusters known to a CSS.
// The zero value is an empty map. Mutation methods return a new ClusterMap
// rather than editing in place, so a snapshot held by a reader is never
// torn by a concurrent writer.
type ClusterMap struct {
	clusters map[string]Cluster
}

// NewClusterMap builds a ClusterMap from the given clusters, keyed by name.
func NewClusterMap(clusters ...Cluster) ClusterMap {
	m := make(map[string]Cluster, len(clusters))
	for _, c := range clusters {
		m[c.Name] = c
	}
	return ClusterMap{clusters: m}
}

// Get returns the named cluster, if present.
func (m ClusterMap) Get(name string) (Cluster, bool) {
	c, ok := m.clusters[name]
	return c, ok
}

// Names returns the cluster names in this map, sorted for deterministic
// response ordering.
func (m ClusterMap) Names() []string {
	names := make([]string, 0, len(m.clusters))
	for name := range m.clusters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns the clusters in this map, sorted by name.
func (m ClusterMap) List() []Cluster {
	names := m.Names()
	out := make([]Cluster, len(names))
	for i, name := range names {
		out[i] = m.clusters[name]
	}
	return out
}

// Endpoints returns every endpoint across every cluster in this map, in no
// particular order. Used by the admin endpoint's proxy-mode readiness check.
func (m ClusterMap) Endpoints() []Endpoint {
	var out []Endpoint
	for _, c := range m.clusters {
		out = append(out, c.Endpoints...)
	}
	return out
}

// WithCluster returns a copy of this map with c inserted or replaced.
func (m ClusterMap) WithCluster(c Cluster) ClusterMap {
	next := make(map[string]Cluster, len(m.clusters)+1)
	for k, v := range m.clusters {
		next[k] = v
	}
	next[c.Name] = c
	return ClusterMap{clusters: next}
}

// WithoutCluster returns a copy of this map with the named cluster removed.
// It is a no-op if the cluster is not present.
func (m ClusterMap) WithoutCluster(name string) ClusterMap {
	if _, ok := m.clusters[name]; !ok {
		return m
	}
	next := make(map[string]Cluster, len(m.clusters))
	for k, v := range m.clusters {
		if k != name {
			next[k] = v
		}
	}
	return ClusterMap{clusters: next}
}
