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
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	envoy_config_core_v3 "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	envoy_service_discovery_v3 "github.com/envoyproxy/go-control-plane/envoy/service/discovery/v3"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// grpcStream is the subset of the generated bidirectional-stream server
// interface the discovery loop needs; tests substitute a fake implementation
// so the protocol logic can be exercised without a real gRPC transport.
type grpcStream interface {
	Context() context.Context
	Send(*envoy_service_discovery_v3.DiscoveryResponse) error
	Recv() (*envoy_service_discovery_v3.DiscoveryRequest, error)
}

// stream runs the aggregated discovery loop for a single client connection
// until it disconnects or the server shuts down. The resource_type and
// resource_names of the handshake request are pinned for the stream's
// entire lifetime: a later request may ask for a different resource type
// (and gets a one-shot response for it) but can't change the subscribed
// name list, and only the handshake's resource type ever receives pushed
// updates. This mirrors the protocol's reference implementation, which
// closes over the first message's fields for the life of the connection.
func (s *Server) stream(st grpcStream) error {
	log := s.log.WithField("connection", s.connections.next())
	ctx := st.Context()

	req, err := st.Recv()
	if err != nil {
		log.WithError(err).Info("stream terminated before first request")
		if errors.Is(err, io.EOF) {
			return status.Error(codes.InvalidArgument, "No message found")
		}
		return err
	}
	if req.GetNode().GetId() == "" {
		return status.Error(codes.InvalidArgument, "Node identifier required")
	}
	id := req.GetNode().GetId()
	log = log.WithField("node_id", id)

	watchedType, err := ParseResourceType(req.GetTypeUrl())
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	names := req.GetResourceNames()

	changed := make(chan changeSignal, 1)
	unsubscribe := s.registry.Subscribe(watchedType, changed)
	defer unsubscribe()

	acks := newPendingAcks()
	s.metrics.request(id, watchedType)

	resp, err := s.buildResponse(watchedType, names)
	if err != nil {
		return err
	}
	acks.nextNonceFrom(resp)
	if err := st.Send(resp); err != nil {
		return err
	}

	recvCh := make(chan *envoy_service_discovery_v3.DiscoveryRequest)
	recvErrCh := make(chan error, 1)
	go func() {
		for {
			next, err := st.Recv()
			if err != nil {
				recvErrCh <- err
				return
			}
			recvCh <- next
		}
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info("stream terminated")
			return ctx.Err()

		case err := <-recvErrCh:
			if errors.Is(err, io.EOF) {
				log.Info("stream terminated")
				return nil
			}
			log.WithError(err).Info("stream terminated")
			return err

		case <-changed:
			resp, err := s.buildResponse(watchedType, names)
			if err != nil {
				return err
			}
			acks.nextNonceFrom(resp)
			if err := st.Send(resp); err != nil {
				return err
			}

		case next := <-recvCh:
			reqID := id
			if next.GetNode().GetId() != "" {
				reqID = next.GetNode().GetId()
			}

			rt, err := ParseResourceType(next.GetTypeUrl())
			if err != nil {
				log.WithError(err).Trace("unknown resource type, ignoring request")
				continue
			}
			s.metrics.request(reqID, rt)

			nonce := next.GetResponseNonce()
			switch {
			case next.GetErrorDetail() != nil:
				s.metrics.nack(reqID, rt)
				acks.Resolve(nonce)
				log.WithField("nonce", nonce).WithField("error", next.GetErrorDetail().GetMessage()).Warn("NACK")
				// Fall through: resend the current configuration, below.
			case nonce == "":
				// No nonce: a fresh subscription request, not an ack of any
				// kind. Fall through to respond, below.
			case acks.Known(nonce):
				acks.Resolve(nonce)
				log.WithField("nonce", nonce).Trace("ACK")
				continue
			default:
				// A non-empty nonce this stream never issued, or one that
				// already aged out of the pending set. Silently ignored,
				// same as an unrecognized type URL: no response is sent.
				log.WithField("nonce", nonce).Trace("unknown nonce, ignoring request")
				continue
			}

			resp, err := s.buildResponse(rt, names)
			if err != nil {
				return err
			}
			acks.nextNonceFrom(resp)
			if err := st.Send(resp); err != nil {
				return err
			}
		}
	}
}

// buildResponse reads the current snapshot and assembles the
// DiscoveryResponse for rt, restricted to names. version_info always tracks
// the resource type's mutation counter as last bumped by a CSS write
// (watchConfig), not by this call: encoding the same configuration twice in
// a row (a resend, a follow-up subscription) reports the same version_info,
// and it only advances when an actual mutation occurred in between.
func (s *Server) buildResponse(rt ResourceType, names []string) (*envoy_service_discovery_v3.DiscoveryResponse, error) {
	clusters := s.config.Clusters().Load()
	filters := s.config.Filters().Load()

	resources, err := Encode(rt, clusters, filters, names)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Errorf("build response: %w", err).Error())
	}

	return &envoy_service_discovery_v3.DiscoveryResponse{
		VersionInfo:  strconv.FormatUint(s.registry.Version(rt), 10),
		Resources:    resources,
		TypeUrl:      rt.TypeURL(),
		ControlPlane: &envoy_config_core_v3.ControlPlane{Identifier: s.config.ID().Load()},
	}, nil
}

// nextNonceFrom mints a nonce for resp, records it as pending, and stamps
// it onto resp.
func (p *pendingAcks) nextNonceFrom(resp *envoy_service_discovery_v3.DiscoveryResponse) {
	resp.Nonce = p.nextNonce()
}
