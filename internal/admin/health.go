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

package admin

import "sync/atomic"

// Health tracks whether the process considers itself live. It starts
// healthy; nothing in this control plane currently has a path to mark it
// otherwise, but the type exists so a future fatal-error path has
// somewhere to report to, and so liveness and readiness are never
// conflated into a single check.
type Health struct {
	unhealthy atomic.Bool
}

// NewHealth returns a Health that reports healthy until MarkUnhealthy is
// called.
func NewHealth() *Health {
	return &Health{}
}

// MarkUnhealthy permanently flips this Health to unhealthy.
func (h *Health) MarkUnhealthy() {
	h.unhealthy.Store(true)
}

// Healthy reports whether the process is still live.
func (h *Health) Healthy() bool {
	return !h.unhealthy.Load()
}
