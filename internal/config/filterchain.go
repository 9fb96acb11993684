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

// Filter is a single named entry in a proxy's filter chain. Config is the
// filter's own configuration, opaque to the CSS; it is carried as raw
// bytes and only given shape by whichever filter consumes it.
type Filter struct {
	Name   string `json:"name"`
	Config []byte `json:"config,omitempty"`
}

// FilterChain is an immutable, ordered sequence of Filters. The zero value
// is an empty chain.
type FilterChain struct {
	filters []Filter
}

// NewFilterChain builds a FilterChain from the given filters, in order.
func NewFilterChain(filters ...Filter) FilterChain {
	cp := make([]Filter, len(filters))
	copy(cp, filters)
	return FilterChain{filters: cp}
}

// Filters returns the chain's filters, in order.
func (fc FilterChain) Filters() []Filter {
	return fc.filters
}

// Append returns a new FilterChain with f added to the end.
func (fc FilterChain) Append(f Filter) FilterChain {
	next := make([]Filter, len(fc.filters)+1)
	copy(next, fc.filters)
	next[len(fc.filters)] = f
	return FilterChain{filters: next}
}
