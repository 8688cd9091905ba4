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

// rpc issues one request/reply exchange: it allocates a tag, marshals
// format/args as the request body, submits it, and returns the raw
// (header-stripped) reply body for the caller to unpack with its own
// format string — mirroring the ancestor's p9_client_rpc, which hands
// callers an unparsed p9_fcall to run p9pdu_readf over themselves.
//
// If ctx is cancelled while the reply is outstanding, rpc issues
// Tflush for the original tag before returning ctx.Err(), the
// replacement for the ancestor's EINTR-triggered flush now that there
// is no POSIX signal to interrupt the wait.
func (s *Session) rpc(ctx context.Context, mtype MsgType, format string, args ...interface{}) ([]byte, error) {
	st := s.Status()
	switch {
	case st == Disconnected || st == Hung:
		return nil, unix.ECONNABORTED
	case st == BeginDisconnect && mtype != msgTclunk:
		return nil, unix.ESHUTDOWN
	}

	tag32, ok := s.tags.Get()
	if !ok {
		return nil, unix.EAGAIN
	}
	tag := Tag(tag32)
	defer s.tags.Put(tag32)

	req := s.reqs.alloc(tag, s.msize)
	tc, err := packMessage(s.msize, tag, mtype, s.version, format, args...)
	if err != nil {
		return nil, err
	}
	req.tc = tc
	req.setStatus(reqUnsent)

	type outcome struct {
		body []byte
		err  error
	}
	resultCh := make(chan outcome, 1)
	go func() {
		body, err := s.send(req)
		resultCh <- outcome{body, err}
	}()

	select {
	case r := <-resultCh:
		return r.body, r.err
	case <-ctx.Done():
		s.flush(tag)
		// Once a tag is flushed the server owes no Rflush-paired reply
		// for it, so resultCh may never receive again. Only take the
		// original reply if it was already there when the flush
		// returned; otherwise give up on ctx's terms, not the
		// server's.
		select {
		case r := <-resultCh:
			if r.err == nil {
				// the reply raced the cancellation and arrived anyway
				return r.body, nil
			}
		default:
		}
		return nil, ctx.Err()
	}
}

// flush issues a best-effort Tflush for oldtag and discards the
// result: by the time flush is called the caller has already given up
// on oldtag's reply.
func (s *Session) flush(oldtag Tag) {
	ftag32, ok := s.tags.Get()
	if !ok {
		return
	}
	ftag := Tag(ftag32)
	defer s.tags.Put(ftag32)

	req := s.reqs.alloc(ftag, s.msize)
	tc, err := packMessage(s.msize, ftag, msgTflush, s.version, "w", oldtag)
	if err != nil {
		return
	}
	req.tc = tc
	req.setStatus(reqUnsent)
	s.send(req)
}

// Close begins an orderly shutdown: new non-Tclunk requests are
// rejected immediately and the underlying transport is closed at once,
// so a request still waiting for its reply fails with the transport's
// closed error. The session then ends Disconnected.
func (s *Session) Close() error {
	s.setStatus(BeginDisconnect)
	err := s.transport.Close()
	s.setStatus(Disconnected)
	return err
}
