// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"math/big"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferRoundTrip(t *testing.T) {
	var b buffer
	b.addU8(42)
	b.addU32(0xdeadbeef)
	b.addSSHString([]byte("hello"))
	b.addMPInt(big.NewInt(1000000))

	c := newCursor(b.bytes())
	v8, ok := c.u8()
	require.True(t, ok)
	assert.Equal(t, uint8(42), v8)

	v32, ok := c.u32()
	require.True(t, ok)
	assert.Equal(t, uint32(0xdeadbeef), v32)

	s, ok := c.string()
	require.True(t, ok)
	assert.Equal(t, "hello", s)

	n, ok := c.mpInt()
	require.True(t, ok)
	assert.Equal(t, int64(1000000), n.Int64())
}

func TestMPIntBytesHighBitPadding(t *testing.T) {
	// 0xff alone would look negative in two's complement; mpint encoding
	// must prepend a zero byte.
	n := big.NewInt(0xff)
	b := mpIntBytes(n)
	require.Len(t, b, 2)
	assert.Equal(t, byte(0), b[0])
	assert.Equal(t, byte(0xff), b[1])
}

func TestMPIntBytesZero(t *testing.T) {
	assert.Nil(t, mpIntBytes(big.NewInt(0)))
}

func TestDecodePacketIncomplete(t *testing.T) {
	s := newTestSession()
	consumed, err := decodePacket(s, []byte{0, 0, 0}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, consumed)
	assert.Nil(t, s.pendingPacket)
}

func TestDecodePacketCleartextRoundTrip(t *testing.T) {
	s := newTestSession()
	s.socket = &recordingSocket{}

	s.outBuf.addU8(msgNewKeys)
	s.packetSend()
	require.NotEmpty(t, s.outQueue)

	consumed, err := decodePacket(s, s.outQueue, nil)
	require.NoError(t, err)
	assert.Equal(t, len(s.outQueue), consumed)
	require.NotNil(t, s.pendingPacket)
	assert.Equal(t, []byte{msgNewKeys}, s.pendingPacket)
}

func TestPacketWaitConsumesPending(t *testing.T) {
	s := newTestSession()
	s.pendingPacket = []byte{msgNewKeys}
	payload, have, err := s.packetWait(msgNewKeys)
	require.NoError(t, err)
	assert.True(t, have)
	assert.Equal(t, []byte{msgNewKeys}, payload)
	assert.Nil(t, s.pendingPacket)
}

func TestPacketWaitRejectsUnexpectedCode(t *testing.T) {
	s := newTestSession()
	s.pendingPacket = []byte{msgDisconnect}
	_, have, err := s.packetWait(msgNewKeys)
	assert.True(t, have)
	assert.Error(t, err)
}

func TestPacketWaitWithoutPendingReturnsFalse(t *testing.T) {
	s := newTestSession()
	_, have, err := s.packetWait(msgNewKeys)
	require.NoError(t, err)
	assert.False(t, have)
}

type recordingSocket struct {
	written [][]byte
}

func (r *recordingSocket) Connect(host string, port int, bindAddr string) error { return nil }
func (r *recordingSocket) SetConn(conn net.Conn)                               {}
func (r *recordingSocket) Write(b []byte) (int, error) {
	r.written = append(r.written, append([]byte(nil), b...))
	return len(b), nil
}
func (r *recordingSocket) Flush(blocking bool) error { return nil }
func (r *recordingSocket) IsOpen() bool              { return true }
func (r *recordingSocket) Close() error              { return nil }
