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

import "encoding/binary"

// IOHDRSZ is the fixed overhead subtracted from msize when a FID has not
// been given an explicit iounit by the server, matching the
// p9_client_write/read iounit fallback arithmetic.
const IOHDRSZ = 24

// DefaultMSize is used when the mount options do not specify one.
const DefaultMSize = 8192

// packMessage encodes a full wire message: the 7-byte size/id/tag
// header, followed by a body packed via the given
// format string. maxSize bounds the resulting buffer to the session's
// negotiated msize (or the caller's own ceiling before negotiation, for
// Tversion).
func packMessage(maxSize int, tag Tag, mtype MsgType, ver ProtoVersion, format string, args ...interface{}) (*Fcall, error) {
	e := newEncoder(maxSize)
	e.putU32(0) // size placeholder, patched below
	e.putU8(uint8(mtype))
	e.putU16(uint16(tag))
	if err := packf(e, ver, format, args...); err != nil {
		return nil, err
	}
	if e.err != nil {
		return nil, e.err
	}
	binary.LittleEndian.PutUint32(e.buf[0:4], uint32(len(e.buf)))
	return &Fcall{
		Size: uint32(len(e.buf)),
		Type: mtype,
		Tag:  tag,
		sdata: e.buf,
	}, nil
}

// unpackHeader parses the 7-byte size/id/tag preamble shared by every
// 9P message and returns the remaining body bytes.
func unpackHeader(data []byte) (size uint32, mtype MsgType, tag Tag, body []byte, err error) {
	if len(data) < headerSize {
		return 0, 0, 0, nil, ErrTruncated
	}
	size = binary.LittleEndian.Uint32(data[0:4])
	mtype = MsgType(data[4])
	tag = Tag(binary.LittleEndian.Uint16(data[5:7]))
	body = data[headerSize:]
	return size, mtype, tag, body, nil
}

// unpackBody decodes a message body via the format-string DSL.
func unpackBody(body []byte, ver ProtoVersion, format string, args ...interface{}) error {
	d := newDecoder(body)
	return unpackf(d, ver, format, args...)
}
