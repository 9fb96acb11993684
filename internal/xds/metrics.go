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

package xds

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the counters the discovery server increments as it serves
// requests. A nil *Metrics is valid and every method on it is a no-op, so
// callers that don't want metrics wiring can simply leave it unset.
type Metrics struct {
	requests *prometheus.CounterVec
	nacks    *prometheus.CounterVec
}

// NewMetrics constructs Metrics and registers its collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quilkin_xds_discovery_requests_total",
			Help: "Total number of DiscoveryRequests received, by node id and resource type.",
		}, []string{"id", "type_url"}),
		nacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quilkin_xds_discovery_nacks_total",
			Help: "Total number of DiscoveryRequests received carrying an error response (a NACK), by node id and resource type.",
		}, []string{"id", "type_url"}),
	}
	reg.MustRegister(m.requests, m.nacks)
	return m
}

func (m *Metrics) request(id string, rt ResourceType) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(id, rt.TypeURL()).Inc()
}

func (m *Metrics) nack(id string, rt ResourceType) {
	if m == nil {
		return
	}
	m.nacks.WithLabelValues(id, rt.TypeURL()).Inc()
}
