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

import (
	"context"

	"golang.org/x/sys/unix"
)

// Attach establishes the client's root Handle for aname on the given
// session. uname/nuname come from the Session's WithUname/WithNuname
// options.
func (s *Session) Attach(ctx context.Context) (*Handle, error) {
	fid32, ok := s.fids.Get()
	if !ok {
		return nil, unix.EMFILE
	}
	fid := FID(fid32)

	var nuname uint32 = 0xFFFFFFFF // NONUNAME, per 9P2000.u
	if s.hasN {
		nuname = s.nuname
	}

	body, err := s.rpc(ctx, msgTattach, "ddss?u", fid, NoFID, s.uname, s.aname, nuname)
	if err != nil {
		s.fids.Put(fid32)
		return nil, err
	}

	var qid QID
	if err := unpackBody(body, s.version, "Q", &qid); err != nil {
		s.fids.Put(fid32)
		return nil, err
	}

	return &Handle{session: s, fid: fid, qid: qid}, nil
}

// Walk asks the server to resolve names relative to h and returns a
// fresh Handle for the result, allocating a new fid (clone=true in the
// underlying Twalk). An empty names list clones h into a new fid
// without touching the server's tree.
//
// A short Rwalk (fewer qids than requested names) is not itself an
// error reply, but this client rejects it as ENOENT, since the server
// only stops early on the first component it could not resolve or that
// was not a directory: the caller never gets the partially-walked fid.
func (h *Handle) Walk(ctx context.Context, names ...string) (*Handle, error) {
	newFid32, ok := h.session.fids.Get()
	if !ok {
		return nil, unix.EMFILE
	}
	newFid := FID(newFid32)

	qids, err := h.walk(ctx, newFid, names)
	if err != nil {
		h.session.fids.Put(newFid32)
		return nil, err
	}

	qid := h.qid
	if len(qids) > 0 {
		qid = qids[len(qids)-1]
	}
	return &Handle{session: h.session, fid: newFid, qid: qid}, nil
}

// WalkInPlace re-walks names against h's own fid (clone=false in the
// underlying Twalk: newfid == oldfid), updating h's qid rather than
// allocating a fresh Handle. Called with no names, this is the
// standard "is this fid still valid" liveness check and is a no-op on
// h's qid, per Twalk's nwname=0/clone=false case.
func (h *Handle) WalkInPlace(ctx context.Context, names ...string) error {
	qids, err := h.walk(ctx, h.fid, names)
	if err != nil {
		return err
	}
	if len(qids) > 0 {
		h.qid = qids[len(qids)-1]
	}
	return nil
}

// walk issues one Twalk from h.fid to newFid (newFid == h.fid means
// clone=false) and returns the resulting qids, or ENOENT on a short
// Rwalk. It never allocates or releases a fid itself; callers own that.
func (h *Handle) walk(ctx context.Context, newFid FID, names []string) ([]QID, error) {
	body, err := h.session.rpc(ctx, msgTwalk, "ddT", h.fid, newFid, names)
	if err != nil {
		return nil, err
	}

	var qids []QID
	if err := unpackBody(body, h.session.version, "R", &qids); err != nil {
		return nil, err
	}
	if len(qids) < len(names) {
		// partial walk: server stopped before resolving every
		// component. In the clone case newFid was never actually
		// bound server-side, but clunk it defensively rather than
		// trust that; in the clone=false case newFid is h.fid itself,
		// which must not be clunked.
		if newFid != h.fid {
			h.session.rpc(ctx, msgTclunk, "d", newFid)
		}
		return nil, unix.ENOENT
	}
	return qids, nil
}

// UnlinkAt removes name from the directory h names, per the 9P2000.L
// Tunlinkat request. Unlike the legacy Tremove, unlinkat never clunks
// the directory fid on success — the reference client freed the wrong
// fid here on the success path, which this client does not repeat.
func (h *Handle) UnlinkAt(ctx context.Context, name string, flags uint32) error {
	_, err := h.session.rpc(ctx, msgTunlinkat, "dsd", h.fid, name, flags)
	return err
}
