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

// Handle is the client-facing handle for a FID: a numbered position in
// the server's namespace, plus whatever open state Lopen/Open have
// attached to it. It is the exported counterpart of the ancestor's
// p9_fid.
type Handle struct {
	session *Session
	fid     FID
	qid     QID

	// iounit is the server-suggested maximum read/write chunk for this
	// FID; 0 means "use msize - IOHDRSZ instead".
	iounit uint32

	// openMode records the flags Lopen/Lcreate opened the fid with. The
	// legacy Open/Create do not set it, and Read/Write do not consult it.
	openMode uint32

	// haveOpen is true once Lopen/Open/Lcreate/Create has succeeded on
	// this handle; a second open call on the same handle is rejected
	// client-side rather than round-tripped to the server.
	haveOpen bool
}

// QID returns the identity the server assigned this handle at
// attach/walk time.
func (h *Handle) QID() QID { return h.qid }

// FID exposes the raw wire fid, for callers building bespoke requests
// (Tlock's client id, diagnostics, and so on).
func (h *Handle) FID() FID { return h.fid }

// chunkSize is the largest read/write payload this handle should ask
// for in one Tread/Twrite, applying the iounit fallback.
func (h *Handle) chunkSize() int {
	if h.iounit != 0 {
		return int(h.iounit)
	}
	room := h.session.msize - IOHDRSZ
	if room < 0 {
		room = 0
	}
	return room
}

// Clunk releases the handle, telling the server it may forget the fid.
// The fid is returned to the session's pool regardless of whether the
// server-side clunk itself succeeds, since a failed Tclunk still means
// the client must stop using the fid.
func (h *Handle) Clunk(ctx context.Context) error {
	_, err := h.session.rpc(ctx, msgTclunk, "d", h.fid)
	h.session.fids.Put(uint32(h.fid))
	return err
}

// Remove clunks the handle and asks the server to remove the file it
// names, per the legacy Tremove semantics (superseded by Tunlinkat on
// 9P2000.L servers, see Session.UnlinkAt).
func (h *Handle) Remove(ctx context.Context) error {
	_, err := h.session.rpc(ctx, msgTremove, "d", h.fid)
	h.session.fids.Put(uint32(h.fid))
	return err
}
