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
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestServerDeltaAggregatedResourcesIsUnimplemented(t *testing.T) {
	s := newTestServer()
	err := s.DeltaAggregatedResources(nil)
	st, ok := status.FromError(err)
	assert.True(t, ok)
	assert.Equal(t, codes.Unimplemented, st.Code())
}

func TestConnectionCounterIsMonotonic(t *testing.T) {
	var c connectionCounter
	assert.Equal(t, uint64(0), c.next())
	assert.Equal(t, uint64(1), c.next())
	assert.Equal(t, uint64(2), c.next())
}

func TestRegisterServerWiresGRPCMetricsIntoRegistry(t *testing.T) {
	s := newTestServer()
	registry := prometheus.NewRegistry()

	gs := RegisterServer(s, registry)
	require.NotNil(t, gs)

	families, err := registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestRegisterServerWithNilRegistrySkipsMetrics(t *testing.T) {
	s := newTestServer()
	gs := RegisterServer(s, nil)
	assert.NotNil(t, gs)
}
