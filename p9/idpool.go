// Copyright 2018 The gVisor Authors.
//
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

package p9

import (
	"sync"

	"golang.org/x/exp/slices"
)

// idPool allocates and releases small integer identifiers — 9P tags and
// FIDs both use one. It always returns the first unused id after a
// rotating cursor (wrapping around 0), which keeps ids from
// being reused immediately after release; this helps servers tell a
// stale reply for a retired tag/fid apart from a fresh one.
type idPool struct {
	mu   sync.Mutex
	used map[uint32]struct{}
	last uint32
	max  uint32
}

// newIDPool creates a pool that hands out ids in [0, max].
func newIDPool(max uint32) *idPool {
	return &idPool{
		used: make(map[uint32]struct{}),
		max:  max,
	}
}

// Get returns the next unused id and true, or (0, false) if the pool is
// saturated.
func (p *idPool) Get() (uint32, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if uint32(len(p.used)) > p.max {
		return 0, false
	}

	start := p.last
	for i := uint32(0); i <= p.max; i++ {
		candidate := (start + 1 + i) % (p.max + 1)
		if _, taken := p.used[candidate]; !taken {
			p.used[candidate] = struct{}{}
			p.last = candidate
			return candidate, true
		}
	}
	return 0, false
}

// Put releases id back to the pool. Releasing an id not currently held
// is a no-op, matching Contains being used as a double-release guard by
// callers.
func (p *idPool) Put(id uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.used, id)
}

// Contains reports whether id is currently allocated.
func (p *idPool) Contains(id uint32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.used[id]
	return ok
}

// Len reports the number of currently allocated ids, for tests and
// diagnostics.
func (p *idPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.used)
}

// Snapshot returns the currently allocated ids in ascending order, for
// logging outstanding tags/fids when a session gives up on a hung
// transport.
func (p *idPool) Snapshot() []uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]uint32, 0, len(p.used))
	for id := range p.used {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
