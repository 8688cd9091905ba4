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

// OpenFlags mirrors the Linux L_ names Lopen/Lcreate take directly as
// their flags argument (O_RDONLY, O_WRONLY, O_RDWR, O_CREAT, ...); this
// client passes them through unmodified rather than redefining them.
type OpenFlags uint32

// Lopen opens h (a 9P2000.L fid already Walk'd or Attach'd to a file)
// with flags, recording on h the qid and iounit the server assigns.
func (h *Handle) Lopen(ctx context.Context, flags OpenFlags) error {
	if h.haveOpen {
		return unix.EINVAL
	}
	body, err := h.session.rpc(ctx, msgTlopen, "dd", h.fid, uint32(flags))
	if err != nil {
		return err
	}
	var qid QID
	var iounit uint32
	if err := unpackBody(body, h.session.version, "Qd", &qid, &iounit); err != nil {
		return err
	}
	h.qid = qid
	h.iounit = iounit
	h.openMode = uint32(flags)
	h.haveOpen = true
	return nil
}

// LegacyOpenMode is the legacy Topen mode byte (OREAD, OWRITE, ORDWR,
// OEXEC, with OTRUNC/ORCLOSE bits).
type LegacyOpenMode uint8

// Open is the legacy/9P2000.u Topen, for servers that predate Lopen.
func (h *Handle) Open(ctx context.Context, mode LegacyOpenMode) error {
	if h.haveOpen {
		return unix.EINVAL
	}
	body, err := h.session.rpc(ctx, msgTopen, "db", h.fid, uint8(mode))
	if err != nil {
		return err
	}
	var qid QID
	var iounit uint32
	if err := unpackBody(body, h.session.version, "Qd", &qid, &iounit); err != nil {
		return err
	}
	h.qid = qid
	h.iounit = iounit
	h.haveOpen = true
	return nil
}

// Lcreate creates name in the directory h and opens it in one round
// trip, per 9P2000.L. h becomes the fid for the newly created file.
func (h *Handle) Lcreate(ctx context.Context, name string, flags OpenFlags, mode uint32, gid uint32) error {
	if h.haveOpen {
		return unix.EINVAL
	}
	body, err := h.session.rpc(ctx, msgTlcreate, "dsddg", h.fid, name, uint32(flags), mode, gid)
	if err != nil {
		return err
	}
	var qid QID
	var iounit uint32
	if err := unpackBody(body, h.session.version, "Qd", &qid, &iounit); err != nil {
		return err
	}
	h.qid = qid
	h.iounit = iounit
	h.openMode = uint32(flags)
	h.haveOpen = true
	return nil
}

// Create is the legacy/9P2000.u Tcreate: it creates name in h's
// directory and, like Lcreate, repurposes h as the new file's fid.
func (h *Handle) Create(ctx context.Context, name string, perm uint32, mode LegacyOpenMode, extension string) error {
	if h.haveOpen {
		return unix.EINVAL
	}
	body, err := h.session.rpc(ctx, msgTcreate, "dsdb?s", h.fid, name, perm, uint8(mode), extension)
	if err != nil {
		return err
	}
	var qid QID
	var iounit uint32
	if err := unpackBody(body, h.session.version, "Qd", &qid, &iounit); err != nil {
		return err
	}
	h.qid = qid
	h.iounit = iounit
	h.haveOpen = true
	return nil
}

// Mknod creates a device special file, per 9P2000.L.
func (h *Handle) Mknod(ctx context.Context, name string, mode uint32, major, minor, gid uint32) (QID, error) {
	body, err := h.session.rpc(ctx, msgTmknod, "dsdddg", h.fid, name, mode, major, minor, gid)
	if err != nil {
		return QID{}, err
	}
	var qid QID
	err = unpackBody(body, h.session.version, "Q", &qid)
	return qid, err
}

// Link creates a hard link named name in directory h, pointing at
// target.
func (h *Handle) Link(ctx context.Context, target *Handle, name string) error {
	_, err := h.session.rpc(ctx, msgTlink, "dds", h.fid, target.fid, name)
	return err
}

// Symlink creates a symbolic link named name in directory h, pointing
// at linkTarget.
func (h *Handle) Symlink(ctx context.Context, name, linkTarget string, gid uint32) (QID, error) {
	body, err := h.session.rpc(ctx, msgTsymlink, "dssg", h.fid, name, linkTarget, gid)
	if err != nil {
		return QID{}, err
	}
	var qid QID
	err = unpackBody(body, h.session.version, "Q", &qid)
	return qid, err
}

// Mkdir creates a subdirectory named name inside h.
func (h *Handle) Mkdir(ctx context.Context, name string, mode uint32, gid uint32) (QID, error) {
	body, err := h.session.rpc(ctx, msgTmkdir, "dsdg", h.fid, name, mode, gid)
	if err != nil {
		return QID{}, err
	}
	var qid QID
	err = unpackBody(body, h.session.version, "Q", &qid)
	return qid, err
}

// Rename is the legacy Trename: it moves h into directory newDir under
// newName in one request.
func (h *Handle) Rename(ctx context.Context, newDir *Handle, newName string) error {
	_, err := h.session.rpc(ctx, msgTrename, "dds", h.fid, newDir.fid, newName)
	return err
}

// RenameAt is the 9P2000.L Trenameat: it moves oldName out of directory
// h into newDir under newName, without needing a fid on the file
// itself.
func (h *Handle) RenameAt(ctx context.Context, oldName string, newDir *Handle, newName string) error {
	_, err := h.session.rpc(ctx, msgTrenameat, "dsds", h.fid, oldName, newDir.fid, newName)
	return err
}

// Stat is the legacy Tstat.
func (h *Handle) Stat(ctx context.Context) (Stat, error) {
	body, err := h.session.rpc(ctx, msgTstat, "d", h.fid)
	if err != nil {
		return Stat{}, err
	}
	var st Stat
	err = unpackBody(body, h.session.version, "wS", new(uint16), &st)
	return st, err
}

// WStat is the legacy Twstat.
func (h *Handle) WStat(ctx context.Context, st Stat) error {
	_, err := h.session.rpc(ctx, msgTwstat, "dwS", h.fid, uint16(0), st)
	return err
}

// GetAttr is the 9P2000.L Tgetattr.
func (h *Handle) GetAttr(ctx context.Context, mask AttrMask) (Attr, error) {
	body, err := h.session.rpc(ctx, msgTgetattr, "dq", h.fid, uint64(mask))
	if err != nil {
		return Attr{}, err
	}
	var a Attr
	err = unpackBody(body, h.session.version, "A", &a)
	return a, err
}

// SetAttr is the 9P2000.L Tsetattr.
func (h *Handle) SetAttr(ctx context.Context, attr SetAttr) error {
	_, err := h.session.rpc(ctx, msgTsetattr, "dI", h.fid, attr)
	return err
}

// Lock issues a 9P2000.L Tlock and returns the resulting LockStatus.
func (h *Handle) Lock(ctx context.Context, fl Flock) (LockStatus, error) {
	body, err := h.session.rpc(ctx, msgTlock, "dbdqqds",
		h.fid, uint8(fl.Type), uint32(fl.Flags), fl.Start, fl.Length, fl.ProcID, fl.ClientID)
	if err != nil {
		return 0, err
	}
	var status uint8
	err = unpackBody(body, h.session.version, "b", &status)
	return LockStatus(status), err
}

// GetLock queries for a conflicting lock via 9P2000.L Tgetlock.
func (h *Handle) GetLock(ctx context.Context, gl Getlock) (Getlock, error) {
	body, err := h.session.rpc(ctx, msgTgetlock, "dbqqds",
		h.fid, uint8(gl.Type), gl.Start, gl.Length, gl.ProcID, gl.ClientID)
	if err != nil {
		return Getlock{}, err
	}
	var out Getlock
	var typ uint8
	err = unpackBody(body, h.session.version, "bqqds",
		&typ, &out.Start, &out.Length, &out.ProcID, &out.ClientID)
	out.Type = LockType(typ)
	return out, err
}

// XattrWalk prepares to read an extended attribute (or list them all,
// when name is empty) via a fresh fid, returning the attribute's size.
func (h *Handle) XattrWalk(ctx context.Context, name string) (*Handle, uint64, error) {
	newFid32, ok := h.session.fids.Get()
	if !ok {
		return nil, 0, unix.EMFILE
	}
	newFid := FID(newFid32)

	body, err := h.session.rpc(ctx, msgTxattrwalk, "dds", h.fid, newFid, name)
	if err != nil {
		h.session.fids.Put(newFid32)
		return nil, 0, err
	}
	var size uint64
	if err := unpackBody(body, h.session.version, "q", &size); err != nil {
		h.session.fids.Put(newFid32)
		return nil, 0, err
	}
	return &Handle{session: h.session, fid: newFid}, size, nil
}

// XattrCreate prepares h to receive a new extended attribute's value
// via a following Write, per 9P2000.L.
func (h *Handle) XattrCreate(ctx context.Context, name string, size uint64, flags uint32) error {
	_, err := h.session.rpc(ctx, msgTxattrcreate, "dsqd", h.fid, name, size, flags)
	return err
}

// StatFS is the 9P2000.L Tstatfs.
func (h *Handle) StatFS(ctx context.Context) (StatFS, error) {
	body, err := h.session.rpc(ctx, msgTstatfs, "d", h.fid)
	if err != nil {
		return StatFS{}, err
	}
	var fs StatFS
	err = unpackBody(body, h.session.version, "ddqqqqqqd",
		&fs.Type, &fs.BSize, &fs.Blocks, &fs.BFree, &fs.BAvail, &fs.Files, &fs.FFree, &fs.FSID, &fs.NameLen)
	return fs, err
}

// Fsync flushes h's buffered writes to stable storage server-side.
func (h *Handle) Fsync(ctx context.Context) error {
	_, err := h.session.rpc(ctx, msgTfsync, "dd", h.fid, uint32(0))
	return err
}

// Readlink returns the target of the symbolic link h names.
func (h *Handle) Readlink(ctx context.Context) (string, error) {
	body, err := h.session.rpc(ctx, msgTreadlink, "d", h.fid)
	if err != nil {
		return "", err
	}
	var target string
	err = unpackBody(body, h.session.version, "s", &target)
	return target, err
}
