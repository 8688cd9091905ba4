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

import "testing"

func TestIDPoolExhaustion(t *testing.T) {
	p := newIDPool(1) // ids 0 and 1 only
	a, ok := p.Get()
	if !ok {
		t.Fatal("Get() failed on empty pool")
	}
	b, ok := p.Get()
	if !ok {
		t.Fatal("Get() failed on half-full pool")
	}
	if a == b {
		t.Fatalf("Get() returned the same id twice: %d", a)
	}
	if _, ok := p.Get(); ok {
		t.Fatal("Get() succeeded on exhausted pool")
	}
	p.Put(a)
	c, ok := p.Get()
	if !ok {
		t.Fatal("Get() failed after Put freed a slot")
	}
	if c != a {
		t.Fatalf("Get() = %d, want reused id %d", c, a)
	}
}

func TestIDPoolReusesOnlyFreeSlot(t *testing.T) {
	p := newIDPool(2) // ids 0,1,2
	a, _ := p.Get()
	_, _ = p.Get()
	_, _ = p.Get()
	// all three ids are now taken; once a is freed it is the only
	// candidate, so the cursor must wrap around back to it.
	p.Put(a)
	other, ok := p.Get()
	if !ok {
		t.Fatal("Get() failed with one free slot")
	}
	if other != a {
		t.Fatalf("Get() = %d, want the just-freed id %d (it was the only free slot)", other, a)
	}
}
