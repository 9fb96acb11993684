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

// Package xds implements the dynamic configuration control plane: the
// streaming aggregated-discovery-service protocol that pushes cluster,
// endpoint, and listener resources to connected proxies.
package xds

import "fmt"

// ResourceType is the closed set of resources the control plane serves.
type ResourceType int

const (
	// ClusterResource identifies the cluster resource type.
	ClusterResource ResourceType = iota
	// EndpointResource identifies the per-cluster endpoint-list resource type.
	EndpointResource
	// ListenerResource identifies the listener/filter-chain resource type.
	ListenerResource

	numResourceTypes = iota
)

const (
	clusterTypeURL  = "type.googleapis.com/envoy.config.cluster.v3.Cluster"
	endpointTypeURL = "type.googleapis.com/envoy.config.endpoint.v3.ClusterLoadAssignment"
	listenerTypeURL = "type.googleapis.com/envoy.config.listener.v3.Listener"
)

// TypeURL returns the protocol type-URL identity for rt.
func (rt ResourceType) TypeURL() string {
	switch rt {
	case ClusterResource:
		return clusterTypeURL
	case EndpointResource:
		return endpointTypeURL
	case ListenerResource:
		return listenerTypeURL
	default:
		return ""
	}
}

// String implements fmt.Stringer for logging.
func (rt ResourceType) String() string {
	switch rt {
	case ClusterResource:
		return "Cluster"
	case EndpointResource:
		return "Endpoint"
	case ListenerResource:
		return "Listener"
	default:
		return "Unknown"
	}
}

// ErrUnknownResourceType is returned by ParseResourceType for any type URL
// that isn't one of the three recognized resources.
var ErrUnknownResourceType = fmt.Errorf("unknown resource type")

// ParseResourceType maps a wire type URL to a ResourceType, failing with
// ErrUnknownResourceType on any other value.
func ParseResourceType(typeURL string) (ResourceType, error) {
	switch typeURL {
	case clusterTypeURL:
		return ClusterResource, nil
	case endpointTypeURL:
		return EndpointResource, nil
	case listenerTypeURL:
		return ListenerResource, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownResourceType, typeURL)
	}
}
