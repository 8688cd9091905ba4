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

package virtio

import (
	"sync"

	"golang.org/x/sys/unix"
)

// Transport binds a Queue to a Device and runs the completion worker
// that drains the device's used-ring signals. Submitting a request
// enqueues it and returns immediately; the
// resulting Ticket carries the eventual completion.
type Transport struct {
	queue   *Queue
	device  Device
	onClose func()

	mu     sync.Mutex
	closed bool

	workerDone chan struct{}
}

func newTransport(q *Queue, d Device, onClose func()) *Transport {
	t := &Transport{
		queue:      q,
		device:     d,
		onClose:    onClose,
		workerDone: make(chan struct{}),
	}
	go t.completionLoop()
	return t
}

// completionLoop is the dedicated worker thread: it sleeps on the
// device's interrupt channel and, on each wakeup, drains every
// used-ring entry currently pending.
func (t *Transport) completionLoop() {
	defer close(t.workerDone)
	for range t.device.Recv() {
		t.queue.DeliverAll()
	}
}

// Submit places tc on the avail ring as a device-readable segment and
// rc as a device-writable segment, kicks the device, and returns a
// Ticket without blocking for completion — the caller (Session.send)
// blocks separately on the Ticket's Wait.
func (t *Transport) Submit(tc, rc []byte) (*Ticket, error) {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return nil, unix.ECONNABORTED
	}
	ticket, err := t.queue.Submit([][]byte{tc}, [][]byte{rc})
	if err != nil {
		return nil, err
	}
	t.device.Notify()
	return ticket, nil
}

// Cancel is a stub: this transport never interrupts an in-flight
// descriptor chain once submitted, matching the ancestor's virtio
// binding, which has no cancel primitive either. It always reports the
// request as already in flight (1).
func (t *Transport) Cancel(*Ticket) int { return 1 }

// MaxSize reports the largest PDU this transport can carry per
// descriptor, derived from the queue depth the way the ancestor sizes
// its ring: depth minus a small reserve for chain overhead, in pages.
func (t *Transport) MaxSize() int {
	return PageSize * (QueueDepth - 3)
}

// Close closes the queue (waking any blocked submitters and pending
// tickets with ErrClosed), closes the underlying device, and releases
// this transport's claim on it in the owning Registry.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	t.queue.Close()
	err := t.device.Close()
	<-t.workerDone
	if t.onClose != nil {
		t.onClose()
	}
	return err
}
