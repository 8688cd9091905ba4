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

package errs

import (
	"os"
	"testing"

	"golang.org/x/sys/unix"
)

func TestFromRerrorKnown(t *testing.T) {
	errno, err := FromRerror("No such file or directory")
	if err != nil {
		t.Fatalf("FromRerror() err = %v, want nil", err)
	}
	if errno != unix.ENOENT {
		t.Errorf("FromRerror() = %v, want %v", errno, unix.ENOENT)
	}
}

func TestFromRerrorUnknown(t *testing.T) {
	errno, err := FromRerror("some made up server string")
	if err == nil {
		t.Fatalf("FromRerror() err = nil, want non-nil")
	}
	if errno != 0 {
		t.Errorf("FromRerror() = %v, want 0", errno)
	}
	if _, ok := err.(*RerrorFault); !ok {
		t.Errorf("FromRerror() err type = %T, want *RerrorFault", err)
	}
}

func TestFromRerrorUPrefersNumeric(t *testing.T) {
	got := FromRerrorU("No such file or directory", uint32(unix.EPERM))
	if got != unix.EPERM {
		t.Errorf("FromRerrorU() = %v, want %v", got, unix.EPERM)
	}
}

func TestFromRerrorUFallsBackToString(t *testing.T) {
	got := FromRerrorU("Permission denied", 0)
	if got != unix.EACCES {
		t.Errorf("FromRerrorU() = %v, want %v", got, unix.EACCES)
	}
	// A numeric >= 512 is not a valid errno passthrough either.
	got = FromRerrorU("Permission denied", 600)
	if got != unix.EACCES {
		t.Errorf("FromRerrorU() with oversized numeric = %v, want %v", got, unix.EACCES)
	}
}

func TestExtractOSErrors(t *testing.T) {
	cases := []struct {
		err  error
		want Errno
	}{
		{os.ErrNotExist, unix.ENOENT},
		{os.ErrExist, unix.EEXIST},
		{os.ErrPermission, unix.EACCES},
		{os.ErrClosed, unix.EBADF},
	}
	for _, c := range cases {
		if got := Extract(c.err); got != c.want {
			t.Errorf("Extract(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestExtractPathError(t *testing.T) {
	err := &os.PathError{Op: "open", Path: "/x", Err: unix.ENOSPC}
	if got := Extract(err); got != unix.ENOSPC {
		t.Errorf("Extract() = %v, want %v", got, unix.ENOSPC)
	}
}
