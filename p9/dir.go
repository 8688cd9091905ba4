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

// ReadDir reads the full contents of a directory opened via Lopen, per
// the 9P2000.L Treaddir stream format: repeated Tread-like requests,
// each returning a run of packed dirents, until a request returns zero
// bytes.
func (h *Handle) ReadDir(ctx context.Context) ([]Dirent, error) {
	var entries []Dirent
	var off uint64
	chunk := h.chunkSize()
	for {
		body, err := h.session.rpc(ctx, msgTreaddir, "dqd", h.fid, off, uint32(chunk))
		if err != nil {
			return entries, err
		}
		var raw []byte
		if err := unpackBody(body, h.session.version, "D", &raw); err != nil {
			return entries, err
		}
		if len(raw) == 0 {
			return entries, nil
		}
		d := newDecoder(raw)
		for d.remaining() > 0 {
			var ent Dirent
			ent.QID = d.getQID()
			ent.Offset = d.getU64()
			ent.Type = d.getU8()
			ent.Name = d.getString()
			if d.err != nil {
				return entries, d.err
			}
			entries = append(entries, ent)
			off = ent.Offset
		}
	}
}

// ReadDirLegacy reads a legacy directory fid's contents as a stream of
// back-to-back Stat records via plain Tread, per the pre-9P2000.L
// convention (there being no dedicated readdir message on that wire).
func (h *Handle) ReadDirLegacy(ctx context.Context) ([]Stat, error) {
	var entries []Stat
	var off uint64
	chunk := h.chunkSize()
	for {
		n, err := h.readRaw(ctx, off, chunk)
		if err != nil {
			return entries, err
		}
		if len(n) == 0 {
			return entries, nil
		}
		d := newDecoder(n)
		for d.remaining() > 0 {
			start := d.off
			var size uint16
			size = d.getU16()
			if d.err != nil {
				break
			}
			d.getBorrowed(int(size))
			if d.err != nil {
				return entries, d.err
			}
			var st Stat
			// Stat.decode reads the record's own size prefix first.
			rd := newDecoder(d.buf[start:d.off])
			st.decode(rd)
			if rd.err != nil {
				return entries, rd.err
			}
			entries = append(entries, st)
		}
		off += uint64(len(n))
	}
}

// readRaw issues a single Tread without the chunking loop Read
// performs, since directory reads must stay aligned on individual Stat
// record boundaries rather than being clamped mid-record.
func (h *Handle) readRaw(ctx context.Context, off uint64, count int) ([]byte, error) {
	body, err := h.session.rpc(ctx, msgTread, "dqd", h.fid, off, uint32(count))
	if err != nil {
		return nil, err
	}
	var data []byte
	if err := unpackBody(body, h.session.version, "D", &data); err != nil {
		return nil, err
	}
	return data, nil
}
