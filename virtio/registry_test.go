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
	"bytes"
	"errors"
	"testing"

	"golang.org/x/sys/unix"
)

func echoHandler(req []byte) ([]byte, error) {
	reply := make([]byte, len(req))
	copy(reply, req)
	return reply, nil
}

func TestRegisterBindEnforcesEBUSY(t *testing.T) {
	r := NewRegistry()
	dev := NewLoopback("tag0", echoHandler)
	if err := r.Register(dev); err != nil {
		t.Fatalf("Register: %v", err)
	}

	transport, err := r.Bind("tag0")
	if err != nil {
		t.Fatalf("first Bind: %v", err)
	}
	if _, err := r.Bind("tag0"); !errors.Is(err, unix.EBUSY) {
		t.Errorf("second Bind err = %v, want EBUSY", err)
	}

	if err := transport.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Closing releases the bind; a new Transport should now succeed.
	if _, err := r.Bind("tag0"); err != nil {
		t.Errorf("Bind after Close: %v", err)
	}
}

func TestBindUnknownTagIsENODEV(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Bind("missing"); !errors.Is(err, unix.ENODEV) {
		t.Errorf("Bind err = %v, want ENODEV", err)
	}
}

func TestRegisterReplacesUnboundEntry(t *testing.T) {
	r := NewRegistry()
	first := NewLoopback("tag0", echoHandler)
	second := NewLoopback("tag0", echoHandler)
	if err := r.Register(first); err != nil {
		t.Fatalf("Register first: %v", err)
	}
	if err := r.Register(second); err != nil {
		t.Fatalf("Register second: %v", err)
	}
	if got := r.Tags(); len(got) != 1 || got[0] != "tag0" {
		t.Errorf("Tags() = %v, want [tag0]", got)
	}
}

func TestSocketDeviceRoundTrip(t *testing.T) {
	dev, err := NewSocketDevice("sock0", echoHandler)
	if err != nil {
		t.Fatalf("NewSocketDevice: %v", err)
	}

	r := NewRegistry()
	if err := r.Register(dev); err != nil {
		t.Fatalf("Register: %v", err)
	}
	transport, err := r.Bind("sock0")
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	defer transport.Close()

	want := []byte("ping over a real socket pair")
	rc := make([]byte, len(want))
	ticket, err := transport.Submit(want, rc)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	n, err := ticket.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !bytes.Equal(rc[:n], want) {
		t.Errorf("echoed reply = %q, want %q", rc[:n], want)
	}
}
