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

import "fmt"

// MsgType is a 9P message identifier. Values follow the standard 9P2000 /
// 9P2000.u / 9P2000.L assignments.
type MsgType uint8

// Message type assignments.
const (
	msgTlerror MsgType = 6
	msgRlerror MsgType = 7

	msgTstatfs MsgType = 8
	msgRstatfs MsgType = 9

	msgTlopen MsgType = 12
	msgRlopen MsgType = 13

	msgTlcreate MsgType = 14
	msgRlcreate MsgType = 15

	msgTsymlink MsgType = 16
	msgRsymlink MsgType = 17

	msgTmknod MsgType = 18
	msgRmknod MsgType = 19

	msgTrename MsgType = 20
	msgRrename MsgType = 21

	msgTreadlink MsgType = 22
	msgRreadlink MsgType = 23

	msgTgetattr MsgType = 24
	msgRgetattr MsgType = 25

	msgTsetattr MsgType = 26
	msgRsetattr MsgType = 27

	msgTxattrwalk   MsgType = 30
	msgRxattrwalk   MsgType = 31
	msgTxattrcreate MsgType = 32
	msgRxattrcreate MsgType = 33

	msgTreaddir MsgType = 40
	msgRreaddir MsgType = 41

	msgTfsync MsgType = 50
	msgRfsync MsgType = 51

	msgTlock    MsgType = 52
	msgRlock    MsgType = 53
	msgTgetlock MsgType = 54
	msgRgetlock MsgType = 55

	msgTlink MsgType = 70
	msgRlink MsgType = 71

	msgTmkdir MsgType = 72
	msgRmkdir MsgType = 73

	msgTrenameat MsgType = 74
	msgRrenameat MsgType = 75

	msgTunlinkat MsgType = 76
	msgRunlinkat MsgType = 77

	msgTversion MsgType = 100
	msgRversion MsgType = 101

	msgTauth MsgType = 102
	msgRauth MsgType = 103

	msgTattach MsgType = 104
	msgRattach MsgType = 105

	msgTerror MsgType = 106
	msgRerror MsgType = 107

	msgTflush MsgType = 108
	msgRflush MsgType = 109

	msgTwalk MsgType = 110
	msgRwalk MsgType = 111

	msgTopen MsgType = 112
	msgRopen MsgType = 113

	msgTcreate MsgType = 114
	msgRcreate MsgType = 115

	msgTread MsgType = 116
	msgRread MsgType = 117

	msgTwrite MsgType = 118
	msgRwrite MsgType = 119

	msgTclunk MsgType = 120
	msgRclunk MsgType = 121

	msgTremove MsgType = 122
	msgRremove MsgType = 123

	msgTstat MsgType = 124
	msgRstat MsgType = 125

	msgTwstat MsgType = 126
	msgRwstat MsgType = 127
)

func (m MsgType) String() string {
	if s, ok := msgTypeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("MsgType(%d)", uint8(m))
}

var msgTypeNames = map[MsgType]string{
	msgTlerror: "Tlerror", msgRlerror: "Rlerror",
	msgTstatfs: "Tstatfs", msgRstatfs: "Rstatfs",
	msgTlopen: "Tlopen", msgRlopen: "Rlopen",
	msgTlcreate: "Tlcreate", msgRlcreate: "Rlcreate",
	msgTsymlink: "Tsymlink", msgRsymlink: "Rsymlink",
	msgTmknod: "Tmknod", msgRmknod: "Rmknod",
	msgTrename: "Trename", msgRrename: "Rrename",
	msgTreadlink: "Treadlink", msgRreadlink: "Rreadlink",
	msgTgetattr: "Tgetattr", msgRgetattr: "Rgetattr",
	msgTsetattr: "Tsetattr", msgRsetattr: "Rsetattr",
	msgTxattrwalk: "Txattrwalk", msgRxattrwalk: "Rxattrwalk",
	msgTxattrcreate: "Txattrcreate", msgRxattrcreate: "Rxattrcreate",
	msgTreaddir: "Treaddir", msgRreaddir: "Rreaddir",
	msgTfsync: "Tfsync", msgRfsync: "Rfsync",
	msgTlock: "Tlock", msgRlock: "Rlock",
	msgTgetlock: "Tgetlock", msgRgetlock: "Rgetlock",
	msgTlink: "Tlink", msgRlink: "Rlink",
	msgTmkdir: "Tmkdir", msgRmkdir: "Rmkdir",
	msgTrenameat: "Trenameat", msgRrenameat: "Rrenameat",
	msgTunlinkat: "Tunlinkat", msgRunlinkat: "Runlinkat",
	msgTversion: "Tversion", msgRversion: "Rversion",
	msgTauth: "Tauth", msgRauth: "Rauth",
	msgTattach: "Tattach", msgRattach: "Rattach",
	msgTerror: "Terror", msgRerror: "Rerror",
	msgTflush: "Tflush", msgRflush: "Rflush",
	msgTwalk: "Twalk", msgRwalk: "Rwalk",
	msgTopen: "Topen", msgRopen: "Ropen",
	msgTcreate: "Tcreate", msgRcreate: "Rcreate",
	msgTread: "Tread", msgRread: "Rread",
	msgTwrite: "Twrite", msgRwrite: "Rwrite",
	msgTclunk: "Tclunk", msgRclunk: "Rclunk",
	msgTremove: "Tremove", msgRremove: "Rremove",
	msgTstat: "Tstat", msgRstat: "Rstat",
	msgTwstat: "Twstat", msgRwstat: "Rwstat",
}

// ProtoVersion is the negotiated 9P dialect. The zero value is the legacy
// wire format that predates the .u and .L extensions.
type ProtoVersion int

const (
	VersionLegacy ProtoVersion = iota
	Version2000U
	Version2000L
)

func (v ProtoVersion) String() string {
	switch v {
	case Version2000U:
		return "9P2000.u"
	case Version2000L:
		return "9P2000.L"
	default:
		return "9P2000"
	}
}

// extended reports whether directives guarded by '?' in a format string
// should be parsed for this dialect: the suffix after '?' is only
// present on 9P2000.u and 9P2000.L wires.
func (v ProtoVersion) extended() bool {
	return v == Version2000U || v == Version2000L
}

// Tag identifies an in-flight transaction. NoTag is reserved for Tversion,
// the only request allowed to precede a negotiated tag space.
type Tag uint16

// NoTag is used only for Tversion.
const NoTag Tag = 0xFFFF

// FID is a client-allocated handle naming a file or position on the
// server. NoFID marks the absence of a FID (used for Tauth's afid, for
// instance, when no authentication is required).
type FID uint32

// NoFID is the wire sentinel for "no FID provided".
const NoFID FID = 0xFFFFFFFF

// headerSize is the length in bytes of the size/id/tag preamble that
// begins every Fcall.
const headerSize = 4 + 1 + 2

// QIDType bits, carried in a QID's own Type byte.
type QIDType uint8

const (
	QTDir    QIDType = 0x80
	QTAppend QIDType = 0x40
	QTExcl   QIDType = 0x20
	QTMount  QIDType = 0x10
	QTAuth   QIDType = 0x08
	QTTmp    QIDType = 0x04
	QTSymlink QIDType = 0x02
	QTLink   QIDType = 0x01
	QTFile   QIDType = 0x00
)

// QID is the server-assigned identity of a file: unique per server, with
// Path acting as an inode-like key and Version bumping on modification.
type QID struct {
	Type    QIDType
	Version uint32
	Path    uint64
}

func (q QID) String() string {
	return fmt.Sprintf("QID{Type: %#x, Version: %d, Path: %d}", uint8(q.Type), q.Version, q.Path)
}

// Fcall is a single serialised 9P message: a contiguous byte buffer
// carrying the size/id/tag preamble and the opcode-specific body. offset
// and capacity are marshalling scratch, not wire fields.
type Fcall struct {
	Size uint32
	Type MsgType
	Tag  Tag

	// sdata is the whole wire buffer including the 7-byte header, once
	// packMessage has patched its size field.
	sdata []byte

	// offset is a read/write cursor slot, cleared by reset; the codec
	// keeps its own cursor in encoder/decoder and does not use it.
	offset int

	// capacity bounds the buffer this Fcall may grow to; it is set to
	// min(session.msize, caller max).
	capacity int
}

// newFcall allocates an Fcall with a body buffer of the given capacity
// (which must already exclude, or include, room for the header as
// appropriate to how the caller intends to use it).
func newFcall(capacity int) *Fcall {
	return &Fcall{capacity: capacity}
}

// Bytes returns the finalized wire representation of the call.
func (f *Fcall) Bytes() []byte {
	return f.sdata
}

// reset clears an Fcall for reuse across tag reuse; payload buffers
// are allocated on first use and retained rather than freed.
func (f *Fcall) reset() {
	f.Size = 0
	f.Type = 0
	f.Tag = 0
	f.offset = 0
	if f.sdata != nil {
		f.sdata = f.sdata[:0]
	}
}
