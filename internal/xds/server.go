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

import (
	"sync/atomic"

	envoy_service_discovery_v3 "github.com/envoyproxy/go-control-plane/envoy/service/discovery/v3"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/quilkin-go/quilkin/internal/config"
)

// connectionCounter assigns each accepted stream a monotonically
// increasing, process-unique number for log correlation.
type connectionCounter struct{ n atomic.Uint64 }

func (c *connectionCounter) next() uint64 {
	return c.n.Add(1) - 1
}

// Server implements the aggregated discovery service: a single bidirectional
// gRPC stream per connected proxy, serving cluster, endpoint, and listener
// resources out of a shared *config.Config and pushing updates as that
// configuration changes.
//
// Server embeds the generated Unimplemented type so that adding resource
// types or RPCs to the upstream proto in the future doesn't break this
// build; DeltaAggregatedResources is intentionally left unimplemented, since
// this control plane only serves the state-of-the-world variant of the
// protocol.
type Server struct {
	envoy_service_discovery_v3.UnimplementedAggregatedDiscoveryServiceServer

	log      logrus.FieldLogger
	config   *config.Config
	registry *Registry
	metrics  *Metrics

	connections connectionCounter
}

// NewServer builds a Server over cfg, wiring its Registry to cfg's Cells so
// that every cluster or filter-chain mutation wakes the streams subscribed
// to the resource types it affects.
func NewServer(log logrus.FieldLogger, cfg *config.Config, metrics *Metrics) *Server {
	s := &Server{
		log:      log,
		config:   cfg,
		registry: NewRegistry(),
		metrics:  metrics,
	}
	watchConfig(s.config, s.registry)
	return s
}

// StreamAggregatedResources implements the AggregatedDiscoveryService RPC.
func (s *Server) StreamAggregatedResources(st envoy_service_discovery_v3.AggregatedDiscoveryService_StreamAggregatedResourcesServer) error {
	return s.stream(st)
}

// DeltaAggregatedResources is not implemented: this control plane serves
// only the state-of-the-world discovery variant.
func (s *Server) DeltaAggregatedResources(envoy_service_discovery_v3.AggregatedDiscoveryService_DeltaAggregatedResourcesServer) error {
	return status.Error(codes.Unimplemented, "delta xDS is not supported")
}

// RegisterServer builds a *grpc.Server for s. If registry is non-nil, the
// returned server is wired with go-grpc-prometheus's stream/unary
// interceptors and its ServerMetrics are registered against registry, so the
// standard gRPC server metrics are exposed alongside the discovery-specific
// counters in Metrics.
func RegisterServer(s *Server, registry *prometheus.Registry, opts ...grpc.ServerOption) *grpc.Server {
	var metrics *grpc_prometheus.ServerMetrics
	if registry != nil {
		metrics = grpc_prometheus.NewServerMetrics()
		registry.MustRegister(metrics)

		opts = append(opts,
			grpc.StreamInterceptor(metrics.StreamServerInterceptor()),
			grpc.UnaryInterceptor(metrics.UnaryServerInterceptor()),
		)
	}

	gs := grpc.NewServer(opts...)
	envoy_service_discovery_v3.RegisterAggregatedDiscoveryServiceServer(gs, s)

	if metrics != nil {
		metrics.InitializeMetrics(gs)
	}

	return gs
}
