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
	"sync"

	"golang.org/x/sys/unix"

	"github.com/virtio9p/client9p/virtio"
)

// demoNode is one entry of the fixed, in-memory tree NewDemoServer
// exposes: a root directory holding a single regular file. It exists
// to give cmd/p9mount and this module's own integration tests
// something real to Attach and Walk into without a real virtio device.
type demoNode struct {
	qid     QID
	isDir   bool
	name    string
	content []byte
}

var (
	demoRoot = demoNode{qid: QID{Type: QTDir, Path: 1}, isDir: true, name: "/"}
	demoFile = demoNode{qid: QID{Path: 2}, name: "hello.txt", content: []byte("hello from the demo 9P server\n")}
)

// demoServer answers 9P requests against the fixed root/hello.txt
// tree above, tracking which node each live fid names.
type demoServer struct {
	mu   sync.Mutex
	fids map[FID]*demoNode
}

// NewDemoServer returns a Loopback virtio device backed by a small,
// fixed, read-only 9P2000.L tree: a root directory containing one
// file, hello.txt. It exists so a caller can exercise Session and
// Handle end-to-end without any real virtio hardware.
func NewDemoServer(mountTag string) *virtio.Loopback {
	d := &demoServer{fids: make(map[FID]*demoNode)}
	return virtio.NewLoopback(mountTag, d.handle)
}

func (d *demoServer) handle(request []byte) ([]byte, error) {
	_, mtype, tag, body, err := unpackHeader(request)
	if err != nil {
		return nil, err
	}
	reply, rerr := d.dispatch(mtype, tag, body)
	if rerr != nil {
		f, _ := packMessage(0, tag, msgRlerror, Version2000L, "d", uint32(errnoOf(rerr)))
		return f.Bytes(), nil
	}
	return reply, nil
}

func errnoOf(err error) unix.Errno {
	if errno, ok := err.(unix.Errno); ok {
		return errno
	}
	return unix.EIO
}

func (d *demoServer) dispatch(mtype MsgType, tag Tag, body []byte) ([]byte, error) {
	switch mtype {
	case msgTversion:
		var msize uint32
		var version string
		if err := unpackBody(body, Version2000L, "ds", &msize, &version); err != nil {
			return nil, err
		}
		if version != "9P2000.L" {
			version = "unknown"
		}
		f, err := packMessage(0, tag, msgRversion, Version2000L, "ds", msize, version)
		if err != nil {
			return nil, err
		}
		return f.Bytes(), nil

	case msgTattach:
		var fid, afid FID
		var uname, aname string
		var nuname uint32
		if err := unpackBody(body, Version2000L, "ddss?u", &fid, &afid, &uname, &aname, &nuname); err != nil {
			return nil, err
		}
		d.mu.Lock()
		d.fids[fid] = &demoRoot
		d.mu.Unlock()
		return d.reply(tag, msgRattach, "Q", demoRoot.qid)

	case msgTwalk:
		var fid, newFid FID
		var names []string
		if err := unpackBody(body, Version2000L, "ddT", &fid, &newFid, &names); err != nil {
			return nil, err
		}
		d.mu.Lock()
		node, ok := d.fids[fid]
		d.mu.Unlock()
		if !ok {
			return nil, unix.EBADF
		}
		if len(names) == 0 {
			d.mu.Lock()
			d.fids[newFid] = node
			d.mu.Unlock()
			return d.reply(tag, msgRwalk, "R", []QID{})
		}
		if len(names) == 1 && node.isDir && names[0] == demoFile.name {
			d.mu.Lock()
			d.fids[newFid] = &demoFile
			d.mu.Unlock()
			return d.reply(tag, msgRwalk, "R", []QID{demoFile.qid})
		}
		return d.reply(tag, msgRwalk, "R", []QID{})

	case msgTlopen:
		var fid FID
		var flags uint32
		if err := unpackBody(body, Version2000L, "dd", &fid, &flags); err != nil {
			return nil, err
		}
		d.mu.Lock()
		node, ok := d.fids[fid]
		d.mu.Unlock()
		if !ok {
			return nil, unix.EBADF
		}
		return d.reply(tag, msgRlopen, "Qd", node.qid, uint32(0))

	case msgTreaddir:
		var fid FID
		var offset uint64
		var count uint32
		if err := unpackBody(body, Version2000L, "dqd", &fid, &offset, &count); err != nil {
			return nil, err
		}
		if offset != 0 {
			return d.reply(tag, msgRreaddir, "D", []byte{})
		}
		e := newEncoder(0)
		e.putQID(demoFile.qid)
		e.putU64(1)
		e.putU8(0)
		e.putString(demoFile.name)
		return d.reply(tag, msgRreaddir, "D", e.buf)

	case msgTgetattr:
		var fid FID
		var mask uint64
		if err := unpackBody(body, Version2000L, "dq", &fid, &mask); err != nil {
			return nil, err
		}
		d.mu.Lock()
		node, ok := d.fids[fid]
		d.mu.Unlock()
		if !ok {
			return nil, unix.EBADF
		}
		a := Attr{Valid: AttrMaskAll, QID: node.qid, Mode: 0o644, Size: uint64(len(node.content))}
		if node.isDir {
			a.Mode = 0o755 | 0o40000
		}
		return d.reply(tag, msgRgetattr, "A", a)

	case msgTread:
		var fid FID
		var offset uint64
		var count uint32
		if err := unpackBody(body, Version2000L, "dqd", &fid, &offset, &count); err != nil {
			return nil, err
		}
		d.mu.Lock()
		node, ok := d.fids[fid]
		d.mu.Unlock()
		if !ok {
			return nil, unix.EBADF
		}
		if offset >= uint64(len(node.content)) {
			return d.reply(tag, msgRread, "D", []byte{})
		}
		end := offset + uint64(count)
		if end > uint64(len(node.content)) {
			end = uint64(len(node.content))
		}
		return d.reply(tag, msgRread, "D", node.content[offset:end])

	case msgTclunk:
		var fid FID
		if err := unpackBody(body, Version2000L, "d", &fid); err != nil {
			return nil, err
		}
		d.mu.Lock()
		delete(d.fids, fid)
		d.mu.Unlock()
		return d.reply(tag, msgRclunk, "")

	default:
		return nil, unix.ENOSYS
	}
}

func (d *demoServer) reply(tag Tag, mtype MsgType, format string, args ...interface{}) ([]byte, error) {
	f, err := packMessage(0, tag, mtype, Version2000L, format, args...)
	if err != nil {
		return nil, err
	}
	return f.Bytes(), nil
}
