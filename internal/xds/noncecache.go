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
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// pendingAcksSize and pendingAcksTTL bound the per-stream nonce cache well
// above the protocol's minimum of 50 entries / 1s TTL, so a slow client
// acking several responses behind never has an in-flight nonce evicted out
// from under it.
const (
	pendingAcksSize = 64
	pendingAcksTTL  = 2 * time.Second
)

// pendingAcks tracks the nonces a single stream has sent, for every resource
// type it responds with, but not yet received an ACK or NACK for. A nonce that ages
// out or is evicted for space is simply forgotten: a client that references
// it afterwards is treated as referencing an unknown nonce, which this
// protocol silently ignores rather than treating as an error.
type pendingAcks struct {
	cache *expirable.LRU[string, struct{}]
}

// newPendingAcks returns an empty pendingAcks tracker.
func newPendingAcks() *pendingAcks {
	return &pendingAcks{cache: expirable.NewLRU[string, struct{}](pendingAcksSize, nil, pendingAcksTTL)}
}

// nextNonce mints a fresh, unique nonce and records it as pending.
func (p *pendingAcks) nextNonce() string {
	nonce := uuid.NewString()
	p.cache.Add(nonce, struct{}{})
	return nonce
}

// Known reports whether nonce is currently tracked as pending. A request
// carrying a nonce that is not known (never issued, already resolved, or
// aged out) is a no-op from the protocol's point of view.
func (p *pendingAcks) Known(nonce string) bool {
	_, ok := p.cache.Get(nonce)
	return ok
}

// Resolve removes nonce from the pending set, whether the client ACKed or
// NACKed it; either way the exchange for that nonce is complete.
func (p *pendingAcks) Resolve(nonce string) {
	p.cache.Remove(nonce)
}
