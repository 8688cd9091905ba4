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
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSubmitPopAvailRoundTrip(t *testing.T) {
	q := NewQueue(8)
	out := [][]byte{[]byte("request")}
	in := [][]byte{make([]byte, 16)}

	ticket, err := q.Submit(out, in)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	head, gotOut, gotIn, ok := q.PopAvail()
	if !ok {
		t.Fatal("PopAvail found nothing after Submit")
	}
	if diff := cmp.Diff(out, gotOut); diff != "" {
		t.Errorf("out segments differ (-want +got):\n%s", diff)
	}
	if len(gotIn) != 1 || len(gotIn[0]) != len(in[0]) {
		t.Errorf("in segments = %v, want a single %d-byte writable buffer", gotIn, len(in[0]))
	}

	copy(gotIn[0], "reply")
	q.PushUsed(head, uint32(len("reply")), nil)
	q.DeliverAll()

	n, err := ticket.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if n != uint32(len("reply")) {
		t.Errorf("Wait n = %d, want %d", n, len("reply"))
	}
}

func TestSubmitCollapsesLongChainsToIndirect(t *testing.T) {
	q := NewQueue(8)
	before := q.numFree

	out := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	in := [][]byte{make([]byte, 4)}
	if _, err := q.Submit(out, in); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// a chain of 4 segments exceeds indirectThreshold, so it should
	// consume exactly one ring descriptor rather than four.
	if got, want := before-q.numFree, uint16(1); got != want {
		t.Errorf("ring descriptors consumed = %d, want %d", got, want)
	}
}

func TestSubmitBlocksOnRingExhaustion(t *testing.T) {
	q := NewQueue(2)

	t1, err := q.Submit([][]byte{[]byte("x")}, [][]byte{make([]byte, 1)})
	if err != nil {
		t.Fatalf("Submit 1: %v", err)
	}
	if _, err := q.Submit([][]byte{[]byte("y")}, [][]byte{make([]byte, 1)}); err != nil {
		t.Fatalf("Submit 2: %v", err)
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := q.Submit([][]byte{[]byte("z")}, [][]byte{make([]byte, 1)}); err != nil {
			t.Errorf("blocked Submit: %v", err)
		}
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Submit returned before a descriptor was freed")
	default:
	}

	head, _, in, ok := q.PopAvail()
	if !ok {
		t.Fatal("PopAvail found nothing")
	}
	copy(in[0], "ok")
	q.PushUsed(head, 1, nil)
	q.DeliverAll()
	if _, err := t1.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	wg.Wait()
	select {
	case <-done:
	default:
		t.Fatal("blocked Submit never returned after a descriptor was freed")
	}
}

func TestQueueCloseWakesBlockedSubmitAndPendingTickets(t *testing.T) {
	q := NewQueue(1)
	ticket, err := q.Submit([][]byte{[]byte("x")}, [][]byte{make([]byte, 1)})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	blockedErr := make(chan error, 1)
	go func() {
		_, err := q.Submit([][]byte{[]byte("y")}, [][]byte{make([]byte, 1)})
		blockedErr <- err
	}()

	q.Close()

	if err := <-blockedErr; err != ErrClosed {
		t.Errorf("blocked Submit err = %v, want ErrClosed", err)
	}
	if _, err := ticket.Wait(); err != ErrClosed {
		t.Errorf("pending ticket Wait err = %v, want ErrClosed", err)
	}
}
