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

// Package p9 implements a guest-side 9P2000 client, including the
// 9P2000.u and 9P2000.L extensions, layered on top of the virtio
// transport in the sibling virtio package.
//
// A Session negotiates a protocol version and message size with the
// server, then hands out FIDs via Attach and Walk. Every RPC is
// packed and unpacked through the format-string codec in fcall.go and
// codec.go, driven by the same directive language used by the 9P
// client this package's driver ancestor was implemented from.
package p9
