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
	"fmt"

	envoy_config_cluster_v3 "github.com/envoyproxy/go-control-plane/envoy/config/cluster/v3"
	envoy_config_core_v3 "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	envoy_config_endpoint_v3 "github.com/envoyproxy/go-control-plane/envoy/config/endpoint/v3"
	envoy_config_listener_v3 "github.com/envoyproxy/go-control-plane/envoy/config/listener/v3"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/quilkin-go/quilkin/internal/config"
)

// listenerName is the single logical listener this control plane serves;
// one Listener resource, containing the current filter chain, is always
// returned for ResourceType Listener.
const listenerName = "quilkin"

// Encode is the Resource Encoder: a pure function of a CSS snapshot that
// produces the wire resources for rt. For Cluster and Endpoint the output is
// restricted to names if non-empty; for Listener names is not consulted and
// the single listener is always returned.
// Ordering is deterministic (by cluster name, or filter index) so repeated
// calls against the same snapshot produce byte-identical output.
func Encode(rt ResourceType, clusters config.ClusterMap, filters config.FilterChain, names []string) ([]*anypb.Any, error) {
	switch rt {
	case ClusterResource:
		return encodeClusters(clusters, names)
	case EndpointResource:
		return encodeEndpoints(clusters, names)
	case ListenerResource:
		return encodeListener(filters)
	default:
		return nil, fmt.Errorf("encode: %w: %s", ErrUnknownResourceType, rt)
	}
}

func wanted(name string, names []string) bool {
	if len(names) == 0 {
		return true
	}
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

func encodeClusters(clusters config.ClusterMap, names []string) ([]*anypb.Any, error) {
	var out []*anypb.Any
	for _, name := range clusters.Names() {
		if !wanted(name, names) {
			continue
		}
		c, _ := clusters.Get(name)

		msg := &envoy_config_cluster_v3.Cluster{
			Name: c.Name,
			ClusterDiscoveryType: &envoy_config_cluster_v3.Cluster_Type{
				Type: envoy_config_cluster_v3.Cluster_EDS,
			},
			EdsClusterConfig: &envoy_config_cluster_v3.Cluster_EdsClusterConfig{
				ServiceName: c.Name,
			},
		}

		a, err := anypb.New(msg)
		if err != nil {
			return nil, fmt.Errorf("encode cluster %q: %w", name, err)
		}
		out = append(out, a)
	}
	return out, nil
}

func encodeEndpoints(clusters config.ClusterMap, names []string) ([]*anypb.Any, error) {
	var out []*anypb.Any
	for _, name := range clusters.Names() {
		if !wanted(name, names) {
			continue
		}
		c, _ := clusters.Get(name)

		cla := &envoy_config_endpoint_v3.ClusterLoadAssignment{
			ClusterName: c.Name,
		}
		if len(c.Endpoints) > 0 {
			lbEndpoints := make([]*envoy_config_endpoint_v3.LbEndpoint, 0, len(c.Endpoints))
			for _, ep := range c.Endpoints {
				lbEndpoints = append(lbEndpoints, &envoy_config_endpoint_v3.LbEndpoint{
					HostIdentifier: &envoy_config_endpoint_v3.LbEndpoint_Endpoint{
						Endpoint: &envoy_config_endpoint_v3.Endpoint{
							Address: &envoy_config_core_v3.Address{
								Address: &envoy_config_core_v3.Address_SocketAddress{
									SocketAddress: &envoy_config_core_v3.SocketAddress{
										Address: ep.Host,
										PortSpecifier: &envoy_config_core_v3.SocketAddress_PortValue{
											PortValue: ep.Port,
										},
									},
								},
							},
						},
					},
				})
			}
			cla.Endpoints = []*envoy_config_endpoint_v3.LocalityLbEndpoints{{
				LbEndpoints: lbEndpoints,
			}}
		}

		a, err := anypb.New(cla)
		if err != nil {
			return nil, fmt.Errorf("encode endpoints %q: %w", name, err)
		}
		out = append(out, a)
	}
	return out, nil
}

// encodeListener marshals the opaque per-filter config into a BytesValue:
// the concrete serialized form of a filter's configuration is outside this
// control plane's scope (it is a contract between the filter and whatever
// decodes its bytes), so TypedConfig only needs to carry an opaque blob.
func encodeListener(filters config.FilterChain) ([]*anypb.Any, error) {
	chain := &envoy_config_listener_v3.FilterChain{}
	for _, f := range filters.Filters() {
		filter := &envoy_config_listener_v3.Filter{Name: f.Name}
		if f.Config != nil {
			cfg, err := anypb.New(wrapperspb.Bytes(f.Config))
			if err != nil {
				return nil, fmt.Errorf("encode filter %q config: %w", f.Name, err)
			}
			filter.ConfigType = &envoy_config_listener_v3.Filter_TypedConfig{TypedConfig: cfg}
		}
		chain.Filters = append(chain.Filters, filter)
	}

	listener := &envoy_config_listener_v3.Listener{
		Name:         listenerName,
		FilterChains: []*envoy_config_listener_v3.FilterChain{chain},
	}

	a, err := anypb.New(listener)
	if err != nil {
		return nil, fmt.Errorf("encode listener: %w", err)
	}
	return []*anypb.Any{a}, nil
}

// decodeFilterConfig is the inverse of encodeListener's opaque wrapping,
// used by tests to exercise the round-trip law.
func decodeFilterConfig(a *anypb.Any) ([]byte, error) {
	msg, err := a.UnmarshalNew()
	if err != nil {
		return nil, err
	}
	bv, ok := msg.(*wrapperspb.BytesValue)
	if !ok {
		return nil, fmt.Errorf("unexpected filter config type %T", msg)
	}
	return bv.GetValue(), nil
}
