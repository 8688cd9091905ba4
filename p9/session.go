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
	"fmt"
	"sync"

	"github.com/u-root/uio/ulog"
	"golang.org/x/sys/unix"

	"github.com/virtio9p/client9p/errs"
	"github.com/virtio9p/client9p/virtio"
)

// Status is the connection-lifecycle state of a Session, modeled on
// the ancestor's p9_trans_status enum.
type Status int

const (
	// Connected is the normal operating state.
	Connected Status = iota
	// BeginDisconnect has been requested (Close called) and the
	// transport is being closed; only Tclunk may still be issued.
	BeginDisconnect
	// Disconnected refuses all further requests.
	Disconnected
	// Hung marks a session whose transport stopped responding; every
	// call fails immediately without touching the transport again.
	Hung
)

func (s Status) String() string {
	switch s {
	case Connected:
		return "connected"
	case BeginDisconnect:
		return "begin-disconnect"
	case Disconnected:
		return "disconnected"
	case Hung:
		return "hung"
	default:
		return "unknown"
	}
}

// Transport is the seam a Session issues requests through. virtio.Transport
// satisfies it; tests may substitute a fake.
type Transport interface {
	Submit(tc, rc []byte) (Waiter, error)
	Close() error
	MaxSize() int
}

// Waiter is returned by Transport.Submit; Wait blocks for the eventual
// reply and reports how many bytes of rc were filled.
type Waiter interface {
	Wait() (uint32, error)
}

// virtioTransport adapts *virtio.Transport to Transport: virtio.Transport
// satisfies the Waiter contract structurally (via *virtio.Ticket) but its
// Submit method returns the concrete *virtio.Ticket type, which Go's
// interface satisfaction rules do not accept in place of the named Waiter
// return type this interface declares.
type virtioTransport struct {
	*virtio.Transport
}

func (t virtioTransport) Submit(tc, rc []byte) (Waiter, error) {
	return t.Transport.Submit(tc, rc)
}

// WrapVirtioTransport adapts a *virtio.Transport (as returned by
// virtio.Registry.Bind) to Transport, for use with NewSession.
func WrapVirtioTransport(t *virtio.Transport) Transport {
	return virtioTransport{t}
}

// Session is one negotiated 9P connection: a transport, a tag/FID
// namespace, and the version and msize agreed on with the server.
type Session struct {
	transport Transport
	log       ulog.Logger

	mu      sync.Mutex
	status  Status
	version ProtoVersion
	msize   int

	tags *idPool
	fids *idPool
	reqs *reqTable

	uname  string
	aname  string
	nuname uint32
	hasN   bool
}

// Option configures a Session at construction time.
type Option func(*Session)

// WithLogger overrides the default ulog.Log destination.
func WithLogger(l ulog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithUname sets the attach uname (default "nobody").
func WithUname(uname string) Option {
	return func(s *Session) { s.uname = uname }
}

// WithAname sets the attach aname (the tree to mount; default "").
func WithAname(aname string) Option {
	return func(s *Session) { s.aname = aname }
}

// WithNuname sets the numeric uid used by 9P2000.u attach, in place of
// the uname string.
func WithNuname(uid uint32) Option {
	return func(s *Session) { s.nuname = uid; s.hasN = true }
}

// NewSession negotiates a 9P version over transport and returns a ready
// Session. wantMsize is a ceiling; the server may offer a smaller one.
// wantVersion selects the highest dialect to offer; NewSession falls
// back down the retry ladder .L -> .u -> legacy on Rerror("unknown
// version"), Rlerror(ENOTSUP), or an Rversion that does not echo the
// offered version.
func NewSession(transport Transport, wantMsize int, wantVersion ProtoVersion, opts ...Option) (*Session, error) {
	if wantMsize <= 0 {
		wantMsize = DefaultMSize
	}
	s := &Session{
		transport: transport,
		log:       ulog.Log,
		status:    Connected,
		msize:     wantMsize,
		tags:      newIDPool(uint32(NoTag) - 1),
		fids:      newIDPool(uint32(NoFID) - 1),
		reqs:      newReqTable(),
		uname:     "nobody",
	}

	ladder := versionLadder(wantVersion)
	var lastErr error
	for _, v := range ladder {
		msize, err := s.negotiate(v, wantMsize)
		if err == nil {
			s.version = v
			s.msize = msize
			return s, nil
		}
		lastErr = err
		if !isUnsupportedVersion(err) {
			return nil, err
		}
		s.log.Printf("p9: version %s rejected: %v, retrying", v, err)
	}
	return nil, fmt.Errorf("p9: no acceptable version negotiated: %w", lastErr)
}

// versionLadder returns the versions to try, starting at want and
// falling back to strictly older dialects.
func versionLadder(want ProtoVersion) []ProtoVersion {
	switch want {
	case Version2000L:
		return []ProtoVersion{Version2000L, Version2000U, VersionLegacy}
	case Version2000U:
		return []ProtoVersion{Version2000U, VersionLegacy}
	default:
		return []ProtoVersion{VersionLegacy}
	}
}

func isUnsupportedVersion(err error) bool {
	errno := errs.Extract(err)
	return errno == unix.ENOSYS || errno == unix.ENOTSUP || errno == 0
}

// versionString is the wire string offered in Tversion for v.
func versionString(v ProtoVersion) string {
	switch v {
	case Version2000L:
		return "9P2000.L"
	case Version2000U:
		return "9P2000.u"
	default:
		return "9P2000"
	}
}

// negotiate performs the Tversion/Rversion exchange for a single
// candidate dialect. Tversion always uses NoTag; the tag and fid pools
// are left as they are.
func (s *Session) negotiate(v ProtoVersion, msize int) (int, error) {
	req := s.reqs.alloc(NoTag, msize)
	tc, err := packMessage(msize, NoTag, msgTversion, v, "ds", uint32(msize), versionString(v))
	if err != nil {
		return 0, err
	}
	req.tc = tc
	req.setStatus(reqUnsent)

	rc, rerr := s.send(req)
	if rerr != nil {
		return 0, rerr
	}

	var gotMsize uint32
	var gotVersion string
	if err := unpackBody(rc, v, "ds", &gotMsize, &gotVersion); err != nil {
		return 0, err
	}
	if gotVersion != versionString(v) {
		// "unknown", or a downgrade to another dialect: the ladder
		// moves on to the next older version.
		return 0, unix.ENOTSUP
	}
	if int(gotMsize) < msize {
		msize = int(gotMsize)
	}
	return msize, nil
}

// send submits req's tc buffer, blocks for its reply, and returns the
// reply's body bytes (header stripped) or the mapped error.
func (s *Session) send(req *req) ([]byte, error) {
	rcBuf := make([]byte, req.rc.capacity)
	waiter, err := s.transport.Submit(req.tc.Bytes(), rcBuf)
	if err != nil {
		req.setStatus(reqError)
		req.tErr = err
		s.recordTransportErr(err)
		return nil, err
	}
	req.setStatus(reqSent)

	n, werr := waiter.Wait()
	if werr != nil {
		req.setStatus(reqError)
		req.tErr = werr
		s.recordTransportErr(werr)
		return nil, werr
	}

	_, mtype, _, body, herr := unpackHeader(rcBuf[:n])
	if herr != nil {
		req.setStatus(reqError)
		req.tErr = herr
		return nil, herr
	}

	if mtype == msgRlerror {
		var numeric uint32
		if err := unpackBody(body, Version2000L, "d", &numeric); err != nil {
			req.setStatus(reqError)
			return nil, err
		}
		req.setStatus(reqError)
		return nil, errs.FromRlerror(numeric)
	}
	if mtype == msgTerror || mtype == msgRerror {
		var ename string
		var numeric uint32
		// 's?d': the numeric errno tail is only present on 9P2000.u,
		// and unpackf stops cleanly at '?' on the legacy wire, leaving
		// numeric at its zero value.
		if err := unpackBody(body, s.version, "s?d", &ename, &numeric); err != nil {
			req.setStatus(reqError)
			return nil, err
		}
		req.setStatus(reqError)
		return nil, errs.FromRerrorU(ename, numeric)
	}

	req.setStatus(reqReceived)
	return body, nil
}

// Status reports the session's current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) setStatus(st Status) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()

	if st == Disconnected || st == Hung {
		s.log.Printf("p9: session %s, outstanding tags=%v fids=%v", st, s.tags.Snapshot(), s.fids.Snapshot())
	}
}

// recordTransportErr promotes the session out of Connected when a
// transport-level error surfaces from Submit or Wait. ERESTART and
// EFAULT are treated as recoverable hiccups a later rpc call may get
// past; anything else means the transport can no longer be trusted. A
// failure that arrives while the session was still nominally Connected
// means the transport stopped responding on its own, so it is marked
// Hung rather than Disconnected; a failure arriving once Close has
// already begun an orderly shutdown just confirms the Disconnected
// transition Close drives itself.
func (s *Session) recordTransportErr(err error) {
	if err == unix.ERESTART || err == unix.EFAULT {
		return
	}
	if s.Status() == Connected {
		s.setStatus(Hung)
		return
	}
	s.setStatus(Disconnected)
}

// MSize is the negotiated maximum message size.
func (s *Session) MSize() int { return s.msize }

// Version is the negotiated protocol dialect.
func (s *Session) Version() ProtoVersion { return s.version }
