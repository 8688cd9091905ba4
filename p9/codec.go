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
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrTruncated is returned when a decode step would run off the end of
// the buffer, corresponding to the ancestor's PDU_TRUNCATED.
var ErrTruncated = errors.New("p9: PDU truncated")

// ErrOversized is returned when an encode step would overflow an
// Fcall's fixed capacity.
var ErrOversized = errors.New("p9: message exceeds negotiated size")

// encoder appends wire-format bytes to a growable buffer, tracking a
// sticky error so callers of packf need only check it once at the end.
type encoder struct {
	buf []byte
	max int
	err error
}

func newEncoder(max int) *encoder {
	return &encoder{max: max}
}

func (e *encoder) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

func (e *encoder) ensure(n int) bool {
	if e.err != nil {
		return false
	}
	if e.max > 0 && len(e.buf)+n > e.max {
		e.fail(ErrOversized)
		return false
	}
	return true
}

func (e *encoder) putU8(v uint8) {
	if !e.ensure(1) {
		return
	}
	e.buf = append(e.buf, v)
}

func (e *encoder) putU16(v uint16) {
	if !e.ensure(2) {
		return
	}
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *encoder) putU32(v uint32) {
	if !e.ensure(4) {
		return
	}
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *encoder) putU64(v uint64) {
	if !e.ensure(8) {
		return
	}
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *encoder) putString(s string) {
	if len(s) > 0xFFFF {
		e.fail(fmt.Errorf("p9: string %q exceeds 65535 bytes", s))
		return
	}
	e.putU16(uint16(len(s)))
	if !e.ensure(len(s)) {
		return
	}
	e.buf = append(e.buf, s...)
}

func (e *encoder) putBytes(b []byte) {
	if !e.ensure(len(b)) {
		return
	}
	e.buf = append(e.buf, b...)
}

func (e *encoder) putQID(q QID) {
	e.putU8(uint8(q.Type))
	e.putU32(q.Version)
	e.putU64(q.Path)
}

// decoder reads wire-format bytes from a fixed buffer, tracking the same
// kind of sticky error as encoder.
type decoder struct {
	buf []byte
	off int
	err error
}

func newDecoder(buf []byte) *decoder {
	return &decoder{buf: buf}
}

func (d *decoder) fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if d.off+n > len(d.buf) {
		d.fail(ErrTruncated)
		return nil
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b
}

func (d *decoder) getU8() uint8 {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *decoder) getU16() uint16 {
	b := d.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (d *decoder) getU32() uint32 {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (d *decoder) getU64() uint64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (d *decoder) getString() string {
	n := d.getU16()
	b := d.take(int(n))
	if b == nil {
		return ""
	}
	return string(b)
}

// getBorrowed returns a slice referencing the decoder's own backing
// array; 'D' decodes never copy.
func (d *decoder) getBorrowed(n int) []byte {
	return d.take(n)
}

func (d *decoder) getQID() QID {
	return QID{
		Type:    QIDType(d.getU8()),
		Version: d.getU32(),
		Path:    d.getU64(),
	}
}

func (d *decoder) remaining() int {
	return len(d.buf) - d.off
}

// packf implements the encode half of the format-string DSL. args must
// line up positionally with the directives in format. On a
// version-gated '?' where ver is not extended, encoding
// stops immediately (the remaining directives and their args are never
// touched) exactly as the reference C implementation's p9pdu_vwritef
// does.
func packf(e *encoder, ver ProtoVersion, format string, args ...interface{}) error {
	ai := 0
	next := func() interface{} {
		if ai >= len(args) {
			e.fail(fmt.Errorf("p9: format %q expects more arguments than given", format))
			return nil
		}
		v := args[ai]
		ai++
		return v
	}

	for i := 0; i < len(format); i++ {
		if e.err != nil {
			break
		}
		switch format[i] {
		case '?':
			if !ver.extended() {
				return e.err
			}
		case 'b':
			switch v := next().(type) {
			case int8:
				e.putU8(uint8(v))
			case uint8:
				e.putU8(v)
			default:
				e.fail(fmt.Errorf("p9: 'b' directive got %T", v))
			}
		case 'w':
			switch v := next().(type) {
			case int16:
				e.putU16(uint16(v))
			case uint16:
				e.putU16(v)
			case Tag:
				e.putU16(uint16(v))
			default:
				e.fail(fmt.Errorf("p9: 'w' directive got %T", v))
			}
		case 'd':
			switch v := next().(type) {
			case int32:
				e.putU32(uint32(v))
			case uint32:
				e.putU32(v)
			case FID:
				e.putU32(uint32(v))
			default:
				e.fail(fmt.Errorf("p9: 'd' directive got %T", v))
			}
		case 'q':
			switch v := next().(type) {
			case int64:
				e.putU64(uint64(v))
			case uint64:
				e.putU64(v)
			default:
				e.fail(fmt.Errorf("p9: 'q' directive got %T", v))
			}
		case 's':
			switch v := next().(type) {
			case string:
				e.putString(v)
			default:
				e.fail(fmt.Errorf("p9: 's' directive got %T", v))
			}
		case 'u', 'g':
			switch v := next().(type) {
			case uint32:
				e.putU32(v)
			default:
				e.fail(fmt.Errorf("p9: '%c' directive got %T", format[i], v))
			}
		case 'Q':
			switch v := next().(type) {
			case QID:
				e.putQID(v)
			default:
				e.fail(fmt.Errorf("p9: 'Q' directive got %T", v))
			}
		case 'S':
			switch v := next().(type) {
			case Stat:
				v.encode(e)
			default:
				e.fail(fmt.Errorf("p9: 'S' directive got %T", v))
			}
		case 'A':
			switch v := next().(type) {
			case Attr:
				v.encode(e)
			default:
				e.fail(fmt.Errorf("p9: 'A' directive got %T", v))
			}
		case 'I':
			switch v := next().(type) {
			case SetAttr:
				v.encode(e)
			default:
				e.fail(fmt.Errorf("p9: 'I' directive got %T", v))
			}
		case 'D':
			switch v := next().(type) {
			case []byte:
				e.putU32(uint32(len(v)))
				e.putBytes(v)
			default:
				e.fail(fmt.Errorf("p9: 'D' directive got %T", v))
			}
		case 'U':
			switch v := next().(type) {
			case []byte:
				e.putU32(uint32(len(v)))
				e.putBytes(v)
			default:
				e.fail(fmt.Errorf("p9: 'U' directive got %T", v))
			}
		case 'T':
			switch v := next().(type) {
			case []string:
				if len(v) > 0xFFFF {
					e.fail(fmt.Errorf("p9: 'T' directive: %d names exceeds 65535", len(v)))
					break
				}
				e.putU16(uint16(len(v)))
				for _, s := range v {
					e.putString(s)
				}
			default:
				e.fail(fmt.Errorf("p9: 'T' directive got %T", v))
			}
		case 'R':
			switch v := next().(type) {
			case []QID:
				if len(v) > 0xFFFF {
					e.fail(fmt.Errorf("p9: 'R' directive: %d qids exceeds 65535", len(v)))
					break
				}
				e.putU16(uint16(len(v)))
				for _, q := range v {
					e.putQID(q)
				}
			default:
				e.fail(fmt.Errorf("p9: 'R' directive got %T", v))
			}
		default:
			e.fail(fmt.Errorf("p9: unknown format directive %q", format[i]))
		}
	}
	return e.err
}

// unpackf implements the decode half of the DSL. args must be pointers
// to the destination fields, in the same order as packf's value
// arguments. On a version-gated '?' where ver is not extended, decoding
// stops immediately and any remaining destinations are left untouched,
// mirroring p9pdu_vreadf.
func unpackf(d *decoder, ver ProtoVersion, format string, args ...interface{}) error {
	ai := 0
	next := func() interface{} {
		if ai >= len(args) {
			d.fail(fmt.Errorf("p9: format %q expects more arguments than given", format))
			return nil
		}
		v := args[ai]
		ai++
		return v
	}

	for i := 0; i < len(format); i++ {
		if d.err != nil {
			break
		}
		switch format[i] {
		case '?':
			if !ver.extended() {
				return d.err
			}
		case 'b':
			switch v := next().(type) {
			case *int8:
				*v = int8(d.getU8())
			case *uint8:
				*v = d.getU8()
			default:
				d.fail(fmt.Errorf("p9: 'b' directive got %T", v))
			}
		case 'w':
			switch v := next().(type) {
			case *int16:
				*v = int16(d.getU16())
			case *uint16:
				*v = d.getU16()
			case *Tag:
				*v = Tag(d.getU16())
			default:
				d.fail(fmt.Errorf("p9: 'w' directive got %T", v))
			}
		case 'd':
			switch v := next().(type) {
			case *int32:
				*v = int32(d.getU32())
			case *uint32:
				*v = d.getU32()
			case *FID:
				*v = FID(d.getU32())
			default:
				d.fail(fmt.Errorf("p9: 'd' directive got %T", v))
			}
		case 'q':
			switch v := next().(type) {
			case *int64:
				*v = int64(d.getU64())
			case *uint64:
				*v = d.getU64()
			default:
				d.fail(fmt.Errorf("p9: 'q' directive got %T", v))
			}
		case 's':
			switch v := next().(type) {
			case *string:
				*v = d.getString()
			default:
				d.fail(fmt.Errorf("p9: 's' directive got %T", v))
			}
		case 'u', 'g':
			switch v := next().(type) {
			case *uint32:
				*v = d.getU32()
			default:
				d.fail(fmt.Errorf("p9: '%c' directive got %T", format[i], v))
			}
		case 'Q':
			switch v := next().(type) {
			case *QID:
				*v = d.getQID()
			default:
				d.fail(fmt.Errorf("p9: 'Q' directive got %T", v))
			}
		case 'S':
			switch v := next().(type) {
			case *Stat:
				v.decode(d)
			default:
				d.fail(fmt.Errorf("p9: 'S' directive got %T", v))
			}
		case 'A':
			switch v := next().(type) {
			case *Attr:
				v.decode(d)
			default:
				d.fail(fmt.Errorf("p9: 'A' directive got %T", v))
			}
		case 'I':
			switch v := next().(type) {
			case *SetAttr:
				v.decode(d)
			default:
				d.fail(fmt.Errorf("p9: 'I' directive got %T", v))
			}
		case 'D':
			switch v := next().(type) {
			case *[]byte:
				n := d.getU32()
				if int(n) > d.remaining() {
					n = uint32(d.remaining())
				}
				*v = d.getBorrowed(int(n))
			default:
				d.fail(fmt.Errorf("p9: 'D' directive got %T", v))
			}
		case 'U':
			switch v := next().(type) {
			case *[]byte:
				n := d.getU32()
				if int(n) > d.remaining() {
					n = uint32(d.remaining())
				}
				*v = d.getBorrowed(int(n))
			default:
				d.fail(fmt.Errorf("p9: 'U' directive got %T", v))
			}
		case 'T':
			switch v := next().(type) {
			case *[]string:
				n := d.getU16()
				out := make([]string, 0, n)
				for j := uint16(0); j < n && d.err == nil; j++ {
					out = append(out, d.getString())
				}
				*v = out
			default:
				d.fail(fmt.Errorf("p9: 'T' directive got %T", v))
			}
		case 'R':
			switch v := next().(type) {
			case *[]QID:
				n := d.getU16()
				out := make([]QID, 0, n)
				for j := uint16(0); j < n && d.err == nil; j++ {
					out = append(out, d.getQID())
				}
				*v = out
			default:
				d.fail(fmt.Errorf("p9: 'R' directive got %T", v))
			}
		default:
			d.fail(fmt.Errorf("p9: unknown format directive %q", format[i]))
		}
	}
	return d.err
}
