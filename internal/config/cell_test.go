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

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCellLoadStore(t *testing.T) {
	c := NewCell(1)
	assert.Equal(t, 1, c.Load())

	c.Store(2)
	assert.Equal(t, 2, c.Load())
}

func TestCellModify(t *testing.T) {
	c := NewCell([]int{1, 2})
	c.Modify(func(v []int) []int {
		return append(v, 3)
	})
	assert.Equal(t, []int{1, 2, 3}, c.Load())
}

func TestCellWatchFiresOnStoreAndModify(t *testing.T) {
	c := NewCell(0)

	var calls atomic.Int32
	var last atomic.Int64
	c.Watch(func(v int) {
		calls.Add(1)
		last.Store(int64(v))
	})

	c.Store(5)
	require.EqualValues(t, 1, calls.Load())
	require.EqualValues(t, 5, last.Load())

	c.Modify(func(v int) int { return v + 1 })
	require.EqualValues(t, 2, calls.Load())
	require.EqualValues(t, 6, last.Load())
}

func TestCellMultipleWatchersAllFire(t *testing.T) {
	c := NewCell("")

	var a, b atomic.Bool
	c.Watch(func(string) { a.Store(true) })
	c.Watch(func(string) { b.Store(true) })

	c.Store("x")
	assert.True(t, a.Load())
	assert.True(t, b.Load())
}

func TestCellReaderNeverObservesPartialWrite(t *testing.T) {
	c := NewCell(NewClusterMap(Cluster{Name: "a", Endpoints: []Endpoint{{Host: "1.1.1.1", Port: 1}}}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			c.Modify(func(m ClusterMap) ClusterMap {
				return m.WithCluster(Cluster{Name: "a", Endpoints: []Endpoint{{Host: "1.1.1.1", Port: uint32(i)}}})
			})
		}
	}()

	for i := 0; i < 100; i++ {
		snap := c.Load()
		cl, ok := snap.Get("a")
		require.True(t, ok)
		require.Len(t, cl.Endpoints, 1)
	}
	<-done
}
