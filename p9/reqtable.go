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

import "sync"

// reqStatus is the lifecycle state of a single request slot.
type reqStatus int

const (
	reqIdle reqStatus = iota
	reqAlloc
	reqUnsent
	reqSent
	reqReceived
	reqError
	reqFlushed
)

func (s reqStatus) String() string {
	switch s {
	case reqIdle:
		return "IDLE"
	case reqAlloc:
		return "ALLOC"
	case reqUnsent:
		return "UNSENT"
	case reqSent:
		return "SENT"
	case reqReceived:
		return "RECEIVED"
	case reqError:
		return "ERROR"
	case reqFlushed:
		return "FLUSHED"
	default:
		return "UNKNOWN"
	}
}

// req is one row of the request table, identified by its tag. tc and rc
// are allocated on first use and retained across tag reuse. The actual
// blocking/waking between the goroutine that calls send and the
// completion worker that fills rc happens over the Waiter that
// Transport.Submit returns, not over anything in this struct; status
// here is bookkeeping for what stage a slot is at, read back by
// callers that need to report or log it.
type req struct {
	mu     sync.Mutex
	status reqStatus
	tErr   error

	tag Tag
	tc  *Fcall
	rc  *Fcall
}

func newReq() *req {
	return &req{status: reqIdle}
}

// reset prepares a slot for reuse by a new tag, keeping its tc/rc
// buffers rather than reallocating them.
func (r *req) reset(tag Tag) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = reqAlloc
	r.tErr = nil
	r.tag = tag
	if r.tc != nil {
		r.tc.reset()
	}
	if r.rc != nil {
		r.rc.reset()
	}
}

// setStatus transitions the slot's status.
func (r *req) setStatus(s reqStatus) {
	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
}

// reqTable is a 256x256 slot table: tag/256 selects a row, tag%256
// selects a column within it. Rows are allocated lazily.
type reqTable struct {
	growMu sync.Mutex
	rows   [256][]*req
}

const reqCols = 256

func newReqTable() *reqTable {
	return &reqTable{}
}

// slot returns the request slot for tag, allocating its row if this is
// the row's first use.
func (t *reqTable) slot(tag Tag) *req {
	row := int(tag) / reqCols
	col := int(tag) % reqCols

	t.growMu.Lock()
	if t.rows[row] == nil {
		t.rows[row] = make([]*req, reqCols)
	}
	if t.rows[row][col] == nil {
		t.rows[row][col] = newReq()
	}
	r := t.rows[row][col]
	t.growMu.Unlock()
	return r
}

// alloc prepares the slot for tag to carry a new request, sizing its
// buffers to at most maxSize bytes.
func (t *reqTable) alloc(tag Tag, maxSize int) *req {
	r := t.slot(tag)
	r.reset(tag)
	if r.tc == nil {
		r.tc = newFcall(maxSize)
	} else {
		r.tc.capacity = maxSize
	}
	if r.rc == nil {
		r.rc = newFcall(maxSize)
	} else {
		r.rc.capacity = maxSize
	}
	return r
}
