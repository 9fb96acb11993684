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
	"sync"
	"sync/atomic"

	"github.com/quilkin-go/quilkin/internal/config"
)

// changeSignal is sent to a registered stream whenever a resource type it
// cares about may have changed. It carries no payload: the receiving stream
// always re-reads the current snapshot rather than trusting a stale value
// handed to it across the channel.
type changeSignal struct{}

// Registry is the Watcher Registry: one entry per ResourceType, each
// carrying a monotonically increasing version counter and a broadcast
// notification channel. It fans out cluster and filter mutations to every
// subscribed stream. One Registry is shared by all streams a Server serves;
// each stream registers itself for the resource types it has an active
// subscription to and unregisters on disconnect.
//
// Registry itself holds no CSS state; it is wired to a *config.Config by
// watchConfig (called from NewServer), which is the layer that knows which mutation implies
// which resource types changed (an EDS cluster write bumps both Cluster and
// Endpoint; a filter chain write bumps Listener).
type Registry struct {
	version [numResourceTypes]atomic.Uint64

	mu   sync.Mutex
	subs map[ResourceType]map[chan changeSignal]struct{}
}

// NewRegistry returns an empty Registry with every version counter at zero.
func NewRegistry() *Registry {
	r := &Registry{subs: make(map[ResourceType]map[chan changeSignal]struct{})}
	for rt := ResourceType(0); rt < numResourceTypes; rt++ {
		r.subs[rt] = make(map[chan changeSignal]struct{})
	}
	return r
}

// Version returns rt's current version counter, the value every response of
// that type should report as its version_info until the next bump.
func (r *Registry) Version(rt ResourceType) uint64 {
	return r.version[rt].Load()
}

// bump atomically increments rt's version counter and then broadcasts the
// change to every subscriber, so a stream that wakes on the notification
// always observes a version at least as new as the one that triggered it.
// This is called exactly once per actual CSS mutation (via watchConfig),
// never per response encoded: re-encoding the same snapshot for a resend or
// a follow-up request must not advance the version.
func (r *Registry) bump(rt ResourceType) uint64 {
	v := r.version[rt].Add(1)
	r.notify(rt)
	return v
}

// Subscribe registers ch to be notified whenever rt changes. The returned
// function removes the registration; callers must invoke it exactly once,
// typically via defer, when the stream that owns ch ends.
func (r *Registry) Subscribe(rt ResourceType, ch chan changeSignal) (unsubscribe func()) {
	r.mu.Lock()
	r.subs[rt][ch] = struct{}{}
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.subs[rt], ch)
		r.mu.Unlock()
	}
}

// notify wakes every stream subscribed to rt. Sends are non-blocking: a
// subscriber channel is always created with capacity 1 and a pending signal
// already means "re-read on your next opportunity", so a second signal
// before the first is consumed carries no new information.
func (r *Registry) notify(rt ResourceType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ch := range r.subs[rt] {
		select {
		case ch <- changeSignal{}:
		default:
		}
	}
}

// watchConfig wires cfg's Cell watchers to the registry: writes to the
// cluster map notify both Cluster and Endpoint subscribers (clusters and
// their endpoint lists always travel together in this protocol), and writes
// to the filter chain notify Listener subscribers.
//
// This lives in the xds package rather than on config.Config itself so that
// config stays free of any dependency on the resource-type vocabulary the
// wire protocol defines. It is called once, at Server construction, so the
// Cell.Watch registrations it makes live for the process's lifetime.
func watchConfig(cfg *config.Config, reg *Registry) {
	cfg.Clusters().Watch(func(config.ClusterMap) {
		reg.bump(EndpointResource)
		reg.bump(ClusterResource)
	})
	cfg.Filters().Watch(func(config.FilterChain) {
		reg.bump(ListenerResource)
	})
}
