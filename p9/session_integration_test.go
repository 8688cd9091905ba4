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

package p9_test

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/virtio9p/client9p/p9"
	"github.com/virtio9p/client9p/virtio"
)

func newTestSession(t *testing.T) (*p9.Session, func()) {
	t.Helper()
	registry := virtio.NewRegistry()
	device := p9.NewDemoServer("test0")
	if err := registry.Register(device); err != nil {
		t.Fatalf("Register: %v", err)
	}
	transport, err := registry.Bind("test0")
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	sess, err := p9.NewSession(p9.WrapVirtioTransport(transport), p9.DefaultMSize, p9.Version2000L)
	if err != nil {
		transport.Close()
		t.Fatalf("NewSession: %v", err)
	}
	return sess, func() { sess.Close() }
}

func TestAttachWalkOpenRead(t *testing.T) {
	sess, cleanup := newTestSession(t)
	defer cleanup()

	ctx := context.Background()
	root, err := sess.Attach(ctx)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer root.Clunk(ctx)

	file, err := root.Walk(ctx, "hello.txt")
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	defer file.Clunk(ctx)

	if err := file.Lopen(ctx, 0); err != nil {
		t.Fatalf("Lopen: %v", err)
	}

	buf := make([]byte, 4096)
	n, err := file.Read(ctx, buf, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	const want = "hello from the demo 9P server\n"
	if got := string(buf[:n]); got != want {
		t.Fatalf("Read = %q, want %q", got, want)
	}
}

func TestWalkMissingNameIsENOENT(t *testing.T) {
	sess, cleanup := newTestSession(t)
	defer cleanup()

	ctx := context.Background()
	root, err := sess.Attach(ctx)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer root.Clunk(ctx)

	if _, err := root.Walk(ctx, "does-not-exist"); !errors.Is(err, unix.ENOENT) {
		t.Fatalf("Walk of a missing name err = %v, want ENOENT", err)
	}
}

func TestReadDirListsDemoFile(t *testing.T) {
	sess, cleanup := newTestSession(t)
	defer cleanup()

	ctx := context.Background()
	root, err := sess.Attach(ctx)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer root.Clunk(ctx)

	if err := root.Lopen(ctx, 0); err != nil {
		t.Fatalf("Lopen: %v", err)
	}
	entries, err := root.ReadDir(ctx)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "hello.txt" {
		t.Fatalf("ReadDir = %v, want a single hello.txt entry", entries)
	}
}

func TestGetAttrReportsSize(t *testing.T) {
	sess, cleanup := newTestSession(t)
	defer cleanup()

	ctx := context.Background()
	root, err := sess.Attach(ctx)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer root.Clunk(ctx)

	file, err := root.Walk(ctx, "hello.txt")
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	defer file.Clunk(ctx)

	attr, err := file.GetAttr(ctx, p9.AttrMaskAll)
	if err != nil {
		t.Fatalf("GetAttr: %v", err)
	}
	if attr.Size != uint64(len("hello from the demo 9P server\n")) {
		t.Fatalf("GetAttr.Size = %d, want %d", attr.Size, len("hello from the demo 9P server\n"))
	}
}

func TestWalkInPlaceNoNamesIsNoOpOnQID(t *testing.T) {
	sess, cleanup := newTestSession(t)
	defer cleanup()

	ctx := context.Background()
	root, err := sess.Attach(ctx)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer root.Clunk(ctx)

	before := root.QID()
	if err := root.WalkInPlace(ctx); err != nil {
		t.Fatalf("WalkInPlace: %v", err)
	}
	if root.QID() != before {
		t.Fatalf("WalkInPlace with no names changed qid from %v to %v", before, root.QID())
	}
}

func TestSecondOpenOnHandleIsRejected(t *testing.T) {
	sess, cleanup := newTestSession(t)
	defer cleanup()

	ctx := context.Background()
	root, err := sess.Attach(ctx)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer root.Clunk(ctx)

	file, err := root.Walk(ctx, "hello.txt")
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	defer file.Clunk(ctx)

	if err := file.Lopen(ctx, 0); err != nil {
		t.Fatalf("first Lopen: %v", err)
	}
	if err := file.Lopen(ctx, 0); !errors.Is(err, unix.EINVAL) {
		t.Fatalf("second Lopen err = %v, want EINVAL", err)
	}
}

func TestDoubleBindFailsEBUSY(t *testing.T) {
	registry := virtio.NewRegistry()
	device := p9.NewDemoServer("busy0")
	if err := registry.Register(device); err != nil {
		t.Fatalf("Register: %v", err)
	}
	first, err := registry.Bind("busy0")
	if err != nil {
		t.Fatalf("first Bind: %v", err)
	}
	defer first.Close()

	if _, err := registry.Bind("busy0"); !errors.Is(err, unix.EBUSY) {
		t.Fatalf("second Bind err = %v, want EBUSY", err)
	}
}
