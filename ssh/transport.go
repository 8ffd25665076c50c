// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import "net"

// Socket is the non-blocking socket abstraction this core depends on
// (spec.md §1, §6): "only their contract is specified" — connection
// establishment, writes, and flush/close live outside this module.
type Socket interface {
	Connect(host string, port int, bindAddr string) error
	SetConn(conn net.Conn)
	Write(b []byte) (int, error)
	Flush(blocking bool) error
	IsOpen() bool
	Close() error
}

// decoder is the active framing strategy for incoming bytes: the banner
// line decoder, then the cleartext packet decoder, then (after NEWKEYS)
// the encrypted packet decoder (spec.md §4.1, §4.3).
type decoder interface {
	onData(s *Session, data []byte) (consumed int, err error)
}

// ConnectStatus is the outcome reported to on_connected (spec.md §4.1).
type ConnectStatus int

const (
	ConnectOK ConnectStatus = iota
	ConnectFail
)

// OnConnected implements spec.md §4.1 on_connected: on OK, transition
// CONNECTING → SOCKET_CONNECTED and re-enter advance; on FAIL, ERROR.
func (s *Session) OnConnected(status ConnectStatus, osErr error) error {
	if s.advancing.Swap(true) {
		return invalidStatef("ssh: advance re-entered")
	}
	defer s.advancing.Store(false)

	if status != ConnectOK {
		s.fail(wrapFatal(osErr, "Connection failed"))
		return s.lastError()
	}
	s.state = StateSocketConnected
	s.callbacks.emit(0.2)
	return s.advanceLocked()
}

// OnException implements spec.md §4.1 on_exception: transition to
// ERROR with the socket error.
func (s *Session) OnException(osErr error) error {
	if s.advancing.Swap(true) {
		return invalidStatef("ssh: advance re-entered")
	}
	defer s.advancing.Store(false)

	s.fail(wrapFatal(osErr, "Socket error"))
	s.callbacks.emitException(s.lastError())
	return s.lastError()
}

// OnData implements spec.md §4.1 on_data: feeds bytes to the active
// decoder, which alone mutates the framing; replacement of the active
// decoder happens synchronously inside advance (spec.md §4.1, §4.2 step
// 4). Returns the number of bytes consumed; the caller (the Socket
// implementation, or this module's own blocking pump) retains the
// unconsumed suffix and prepends it to the next delivery.
func (s *Session) OnData(data []byte) (int, error) {
	if s.advancing.Swap(true) {
		return 0, invalidStatef("ssh: advance re-entered")
	}
	defer s.advancing.Store(false)

	total := 0
	for len(data) > 0 {
		consumed, err := s.activeDecoder.onData(s, data)
		if err != nil {
			return total, err
		}
		if consumed == 0 {
			break
		}
		total += consumed
		data = data[consumed:]

		if s.pendingPacket != nil || s.state == StateBannerReceived {
			if err := s.advanceLocked(); err != nil {
				return total, err
			}
		}
		if s.state == StateError {
			return total, s.lastError()
		}
	}
	return total, nil
}
