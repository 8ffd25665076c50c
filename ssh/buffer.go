// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"crypto/rand"
	"errors"
	"math/big"
)

// errAgain is the non-error "transient I/O condition" of spec.md §7:
// the non-blocking variants of packet_flush/packet_wait return control
// to the outer pump rather than treating AGAIN as a failure.
var errAgain = errors.New("ssh: operation would block")

func cryptoRandRead(b []byte) (int, error) { return rand.Read(b) }

// buffer is the growable byte sequence backing Session.outBuf (the
// out_buffer of spec.md §3). It implements the packet codec's
// encode/decode primitives: buffer_add_u8, add_u32, add_ssh_string and
// buffer_get_ssh_string (spec.md §4.3).
type buffer struct {
	data []byte
}

func (b *buffer) reset() { b.data = b.data[:0] }

func (b *buffer) bytes() []byte { return b.data }

func (b *buffer) len() int { return len(b.data) }

func (b *buffer) addU8(v uint8) {
	b.data = append(b.data, v)
}

func (b *buffer) addU32(v uint32) {
	b.data = append(b.data, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func (b *buffer) addBytes(p []byte) {
	b.data = append(b.data, p...)
}

// addSSHString appends a 32-bit-length-prefixed opaque byte string, the
// "SSH string" wire type (spec.md §4.3, §6).
func (b *buffer) addSSHString(p []byte) {
	b.addU32(uint32(len(p)))
	b.addBytes(p)
}

func (b *buffer) addMPInt(n *big.Int) {
	b.addSSHString(mpIntBytes(n))
}

// mpIntBytes renders n as an SSH mpint: a two's-complement big-endian
// byte string with a leading zero byte inserted if the high bit of the
// first byte would otherwise be set (RFC 4251 §5).
func mpIntBytes(n *big.Int) []byte {
	if n.Sign() == 0 {
		return nil
	}
	b := n.Bytes()
	if b[0]&0x80 != 0 {
		b = append([]byte{0}, b...)
	}
	return b
}

// cursor reads sequentially from a decoded packet payload (Session's
// in_buffer positioned past the message code byte, per spec.md §4.3).
type cursor struct {
	data []byte
	pos  int
}

func newCursor(data []byte) *cursor { return &cursor{data: data} }

func (c *cursor) u8() (uint8, bool) {
	if c.pos >= len(c.data) {
		return 0, false
	}
	v := c.data[c.pos]
	c.pos++
	return v, true
}

func (c *cursor) u32() (uint32, bool) {
	if c.pos+4 > len(c.data) {
		return 0, false
	}
	v := uint32(c.data[c.pos])<<24 | uint32(c.data[c.pos+1])<<16 | uint32(c.data[c.pos+2])<<8 | uint32(c.data[c.pos+3])
	c.pos += 4
	return v, true
}

func (c *cursor) bytesN(n int) ([]byte, bool) {
	if n < 0 || c.pos+n > len(c.data) {
		return nil, false
	}
	v := c.data[c.pos : c.pos+n]
	c.pos += n
	return v, true
}

// sshString reads a 32-bit-length-prefixed opaque byte string
// (buffer_get_ssh_string, spec.md §4.3).
func (c *cursor) sshString() ([]byte, bool) {
	n, ok := c.u32()
	if !ok {
		return nil, false
	}
	return c.bytesN(int(n))
}

func (c *cursor) string() (string, bool) {
	b, ok := c.sshString()
	if !ok {
		return "", false
	}
	return string(b), true
}

func (c *cursor) mpInt() (*big.Int, bool) {
	b, ok := c.sshString()
	if !ok {
		return nil, false
	}
	return new(big.Int).SetBytes(b), true
}

func (c *cursor) bool() (bool, bool) {
	v, ok := c.u8()
	if !ok {
		return false, false
	}
	return v != 0, true
}

func (c *cursor) remaining() []byte { return c.data[c.pos:] }
