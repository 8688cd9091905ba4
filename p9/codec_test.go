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

func TestPackUnpackRoundTrip(t *testing.T) {
	e := newEncoder(0)
	if err := packf(e, Version2000L, "ddsq", uint32(1), uint32(2), "hello", uint64(3)); err != nil {
		t.Fatalf("packf: %v", err)
	}

	var a, b uint32
	var s string
	var q uint64
	d := newDecoder(e.buf)
	if err := unpackf(d, Version2000L, "ddsq", &a, &b, &s, &q); err != nil {
		t.Fatalf("unpackf: %v", err)
	}
	if a != 1 || b != 2 || s != "hello" || q != 3 {
		t.Fatalf("got (%d, %d, %q, %d), want (1, 2, hello, 3)", a, b, s, q)
	}
}

func TestExtendedGateStopsOnLegacyWire(t *testing.T) {
	e := newEncoder(0)
	if err := packf(e, VersionLegacy, "d?d", uint32(7), uint32(99)); err != nil {
		t.Fatalf("packf: %v", err)
	}
	if len(e.buf) != 4 {
		t.Fatalf("legacy-gated packf wrote %d bytes, want 4 (second 'd' skipped)", len(e.buf))
	}

	var a, b uint32
	b = 42 // sentinel: should be left untouched
	d := newDecoder(e.buf)
	if err := unpackf(d, VersionLegacy, "d?d", &a, &b); err != nil {
		t.Fatalf("unpackf: %v", err)
	}
	if a != 7 {
		t.Errorf("a = %d, want 7", a)
	}
	if b != 42 {
		t.Errorf("b = %d, want untouched sentinel 42", b)
	}
}

func TestExtendedGatePassesOnExtendedWire(t *testing.T) {
	e := newEncoder(0)
	if err := packf(e, Version2000U, "d?d", uint32(7), uint32(99)); err != nil {
		t.Fatalf("packf: %v", err)
	}
	if len(e.buf) != 8 {
		t.Fatalf("extended packf wrote %d bytes, want 8", len(e.buf))
	}
}

func TestDirectiveOversizedEncodeFails(t *testing.T) {
	e := newEncoder(4)
	if err := packf(e, Version2000L, "dd", uint32(1), uint32(2)); err != ErrOversized {
		t.Fatalf("packf err = %v, want ErrOversized", err)
	}
}

func TestTruncatedDecodeFails(t *testing.T) {
	d := newDecoder([]byte{1, 2})
	var v uint32
	if err := unpackf(d, Version2000L, "d", &v); err != ErrTruncated {
		t.Fatalf("unpackf err = %v, want ErrTruncated", err)
	}
}

func TestDDirectiveClampsToRemaining(t *testing.T) {
	e := newEncoder(0)
	e.putU32(100) // claims 100 bytes are coming
	e.putBytes([]byte("short"))
	var got []byte
	d := newDecoder(e.buf)
	if err := unpackf(d, Version2000L, "D", &got); err != nil {
		t.Fatalf("unpackf: %v", err)
	}
	if string(got) != "short" {
		t.Fatalf("got %q, want %q (clamped to remaining bytes)", got, "short")
	}
}

func TestQIDRoundTrip(t *testing.T) {
	q := QID{Type: QTDir, Version: 5, Path: 12345}
	e := newEncoder(0)
	e.putQID(q)
	d := newDecoder(e.buf)
	got := d.getQID()
	if got != q {
		t.Fatalf("got %v, want %v", got, q)
	}
}
