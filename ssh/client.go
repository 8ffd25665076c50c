// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"net"

	"github.com/pkg/errors"
)

// netSocket is the default Socket implementation: a thin adapter over
// net.Conn, the one concrete "transport driver" spec.md §1 leaves as an
// external collaborator behind the Socket interface.
type netSocket struct {
	conn net.Conn
}

func (n *netSocket) Connect(host string, port int, bindAddr string) error {
	var d net.Dialer
	if bindAddr != "" {
		laddr, err := net.ResolveTCPAddr("tcp", bindAddr)
		if err != nil {
			return err
		}
		d.LocalAddr = laddr
	}
	conn, err := d.Dial("tcp", net.JoinHostPort(host, itoa(port)))
	if err != nil {
		return err
	}
	n.conn = conn
	return nil
}

func (n *netSocket) SetConn(conn net.Conn) { n.conn = conn }

func (n *netSocket) Write(b []byte) (int, error) {
	if n.conn == nil {
		return 0, errors.New("ssh: socket not connected")
	}
	return n.conn.Write(b)
}

func (n *netSocket) Flush(blocking bool) error { return nil }

func (n *netSocket) IsOpen() bool { return n.conn != nil }

func (n *netSocket) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Close()
}

func itoa(port int) string {
	if port == 0 {
		return "0"
	}
	neg := port < 0
	if neg {
		port = -port
	}
	var buf [8]byte
	i := len(buf)
	for port > 0 {
		i--
		buf[i] = byte('0' + port%10)
		port /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Connect implements spec.md §4.7: drive a Session from NONE through to
// AUTHENTICATING (or ERROR) over a concrete net.Conn, translating the
// blocking socket into the non-blocking OnConnected/OnData/OnException
// calls the core is built around. This is the "outer pump" packet.go's
// packetWait defers to.
func Connect(session *Session, network, addr string) error {
	if session.state != StateNone {
		return invalidStatef("ssh: Connect called on a session not in NONE")
	}

	session.state = StateConnecting
	conn, err := net.Dial(network, addr)
	if err != nil {
		return session.OnConnected(ConnectFail, err)
	}
	sock := &netSocket{conn: conn}
	session.socket = sock
	session.dialAddress = addr

	if err := session.OnConnected(ConnectOK, nil); err != nil {
		conn.Close()
		return err
	}

	buf := make([]byte, 4096)
	var pending []byte
	for session.state != StateError && session.state != StateAuthenticating {
		n, rerr := conn.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			consumed, oerr := session.OnData(pending)
			pending = pending[consumed:]
			if oerr != nil {
				conn.Close()
				return oerr
			}
		}
		if rerr != nil {
			session.OnException(wrapFatal(rerr, "Reading from socket"))
			conn.Close()
			return session.lastError()
		}
	}
	if session.state == StateError {
		conn.Close()
		return session.lastError()
	}
	return nil
}

// Dial is a convenience wrapper: build a Session from config, run
// Connect, and return the Session ready for post-handshake use (spec.md
// §4.7, analogous to the teacher's Dial but returning the new core's
// Session type instead of a ClientConn with channel multiplexing).
func Dial(network, addr string, config *ClientConfig) (*Session, error) {
	session := NewSession(config)
	if err := Connect(session, network, addr); err != nil {
		return nil, err
	}
	return session, nil
}

// Disconnect implements spec.md §4.8: send SSH_MSG_DISCONNECT, close the
// socket, and mark the session no longer alive. spec.md line 129
// requires the Session to remain reusable for a fresh Connect afterward,
// so every per-connection field NewSession would otherwise initialize is
// reset back to its NONE-state baseline.
func Disconnect(session *Session) error {
	if !session.alive {
		return nil
	}
	session.outBuf.addBytes((&disconnectMsg{
		Reason:      disconnectByApplication,
		Description: "Bye Bye",
	}).marshal())
	session.packetSend()
	_ = session.packetFlush(true)
	session.alive = false

	var closeErr error
	if session.socket != nil {
		closeErr = session.socket.Close()
	}

	session.state = StateNone
	session.dhState = DHInit
	session.version = 0
	session.peerBanner = nil
	session.selfBanner = nil
	session.peerVendorVersion = nil
	session.outBuf = buffer{}
	session.outQueue = nil
	session.pendingPacket = nil
	session.serverKex = nil
	session.clientKex = nil
	session.negotiated = nil
	session.dh.zeroize()
	session.dh = dhTemporaries{}
	session.sessionID = nil
	session.crypto.current.zeroize()
	session.crypto.next.zeroize()
	session.crypto = newCryptoPair()
	session.connected = false
	session.serviceRequested = false
	session.socket = nil
	session.activeDecoder = bannerDecoder{}
	session.magics = handshakeMagics{}
	session.dialAddress = ""
	session.lastErr = nil
	session.issueBanner = nil
	session.openSSHVersion = 0

	return closeErr
}
