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

import "context"

// Read fills buf starting at offset off, chunking the request to the
// handle's iounit (or the msize-derived fallback) and stopping at the
// first short reply — a Rread carrying fewer bytes than requested is
// not itself an error and ends the read early rather than being
// retried.
func (h *Handle) Read(ctx context.Context, buf []byte, off uint64) (int, error) {
	chunk := h.chunkSize()
	var total int
	for total < len(buf) {
		want := len(buf) - total
		if want > chunk {
			want = chunk
		}
		body, err := h.session.rpc(ctx, msgTread, "dqd", h.fid, off+uint64(total), uint32(want))
		if err != nil {
			return total, err
		}
		var data []byte
		if err := unpackBody(body, h.session.version, "D", &data); err != nil {
			return total, err
		}
		if len(data) > want {
			h.session.log.Printf("p9: Tread(fid=%d, count=%d) got Rread with %d bytes, clamping", h.fid, want, len(data))
		}
		n := copy(buf[total:total+want], data)
		total += n
		if n < want {
			break
		}
	}
	return total, nil
}

// Write sends buf starting at offset off, chunking to the handle's
// iounit and stopping early if the server acknowledges fewer bytes
// than were sent.
func (h *Handle) Write(ctx context.Context, buf []byte, off uint64) (int, error) {
	chunk := h.chunkSize()
	var total int
	for total < len(buf) {
		end := total + chunk
		if end > len(buf) {
			end = len(buf)
		}
		segment := buf[total:end]
		body, err := h.session.rpc(ctx, msgTwrite, "dqU", h.fid, off+uint64(total), segment)
		if err != nil {
			return total, err
		}
		var n uint32
		if err := unpackBody(body, h.session.version, "d", &n); err != nil {
			return total, err
		}
		total += int(n)
		if int(n) < len(segment) {
			break
		}
	}
	return total, nil
}
