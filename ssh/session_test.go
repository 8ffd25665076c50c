// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"math/big"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/crypto/curve25519"
)

// fakeSocket records every byte written so the test can act as the peer.
type fakeSocket struct {
	written []byte
}

func (f *fakeSocket) Connect(host string, port int, bindAddr string) error { return nil }
func (f *fakeSocket) SetConn(conn net.Conn)                               {}
func (f *fakeSocket) Write(b []byte) (int, error) {
	f.written = append(f.written, b...)
	return len(b), nil
}
func (f *fakeSocket) Flush(blocking bool) error { return nil }
func (f *fakeSocket) IsOpen() bool              { return true }
func (f *fakeSocket) Close() error              { return nil }

// frameCleartext mirrors packet.go's packetSend for an unencrypted
// message, so the test can hand-craft bytes "from the server".
func frameCleartext(payload []byte) []byte {
	const blockSize = cleartextBlock
	paddingLength := blockSize - (1+len(payload))%blockSize
	if paddingLength < 4 {
		paddingLength += blockSize
	}
	plaintext := make([]byte, 1+len(payload)+paddingLength)
	plaintext[0] = byte(paddingLength)
	copy(plaintext[1:], payload)

	out := make([]byte, 4+len(plaintext))
	out[0] = byte(len(plaintext) >> 24)
	out[1] = byte(len(plaintext) >> 16)
	out[2] = byte(len(plaintext) >> 8)
	out[3] = byte(len(plaintext))
	copy(out[4:], plaintext)
	return out
}

// frameEncrypted seals payload with the given direction's already-derived
// engine, framing it exactly as a real peer sharing that key would.
func frameEncrypted(payload []byte, engine packetCipher, seq uint32) []byte {
	blockSize := engine.blockSize()
	paddingLength := blockSize - (1+len(payload))%blockSize
	if paddingLength < 4 {
		paddingLength += blockSize
	}
	plaintext := make([]byte, 1+len(payload)+paddingLength)
	plaintext[0] = byte(paddingLength)
	copy(plaintext[1:], payload)

	framed := engine.seal(seq, plaintext)
	out := make([]byte, 4+len(framed))
	out[0] = byte(len(framed) >> 24)
	out[1] = byte(len(framed) >> 16)
	out[2] = byte(len(framed) >> 8)
	out[3] = byte(len(framed))
	copy(out[4:], framed)
	return out
}

// TestProgressOrderingThroughBanner checks that progress callbacks fire
// in the order spec.md §6 describes for the portion of the handshake that
// doesn't require a live peer: CONNECTING (implicit) -> 0.2 on socket
// connect -> 0.4 on banner analysis -> 0.5 on client banner emission.
func TestProgressOrderingThroughBanner(t *testing.T) {
	var progress []float64
	cfg := &ClientConfig{
		Versions: DefaultVersionPolicy,
		Callbacks: Callbacks{
			Progress: func(_ interface{}, p float64) { progress = append(progress, p) },
		},
	}
	s := NewSession(cfg)
	s.socket = &fakeSocket{}
	s.state = StateConnecting

	require.NoError(t, s.OnConnected(ConnectOK, nil))
	assert.Equal(t, StateSocketConnected, s.state)

	_, err := s.OnData([]byte("SSH-2.0-OpenSSH_9.6\r\n"))
	require.NoError(t, err)

	assert.Equal(t, []float64{0.2, 0.4, 0.5}, progress)
	assert.Equal(t, StateInitialKex, s.state)
}

// TestFullHandshakeCurve25519Ed25519 drives a Session through the
// complete spec.md §4.2-§4.6 sequence against a hand-crafted peer,
// exercising banner negotiation, KEXINIT, curve25519 key agreement, host
// key verification, NEWKEYS crypto rotation, and the service request.
func TestFullHandshakeCurve25519Ed25519(t *testing.T) {
	hostPub, hostPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	var hostKeyBlob buffer
	hostKeyBlob.addSSHString([]byte(KeyAlgoED25519))
	hostKeyBlob.addSSHString(hostPub)

	var progress []float64
	cfg := &ClientConfig{
		Versions: DefaultVersionPolicy,
		Crypto: CryptoConfig{
			KeyExchanges: []string{kexAlgoCurve25519},
			HostKeyAlgos: []string{KeyAlgoED25519},
			Ciphers:      []string{cipherChaCha20Poly1305},
		},
		Callbacks: Callbacks{
			Progress: func(_ interface{}, p float64) { progress = append(progress, p) },
		},
	}
	s := NewSession(cfg)
	sock := &fakeSocket{}
	s.socket = sock
	s.state = StateConnecting

	require.NoError(t, s.OnConnected(ConnectOK, nil))

	_, err = s.OnData([]byte("SSH-2.0-OpenSSH_9.6\r\n"))
	require.NoError(t, err)
	require.Equal(t, StateInitialKex, s.state)

	// --- server KEXINIT ---
	serverKexMsg, err := newClientKexInit(&CryptoConfig{
		KeyExchanges: []string{kexAlgoCurve25519},
		HostKeyAlgos: []string{KeyAlgoED25519},
		Ciphers:      []string{cipherChaCha20Poly1305},
	}, []string{KeyAlgoED25519})
	require.NoError(t, err)
	serverKexBytes := serverKexMsg.marshal()

	sock.written = nil
	_, err = s.OnData(frameCleartext(serverKexBytes))
	require.NoError(t, err)
	require.Equal(t, DHInitSent, s.dhState)
	require.NotNil(t, s.negotiated)
	assert.Equal(t, kexAlgoCurve25519, s.negotiated.kex)
	assert.Equal(t, KeyAlgoED25519, s.negotiated.hostKey)

	clientPub := append([]byte(nil), s.dh.curvePub...)
	s.magics.serverKexInit = append([]byte(nil), serverKexBytes...)

	// --- server ECDH reply ---
	var serverPriv, serverPub [32]byte
	_, err = rand.Read(serverPriv[:])
	require.NoError(t, err)
	pub, err := curve25519.X25519(serverPriv[:], curve25519.Basepoint)
	require.NoError(t, err)
	copy(serverPub[:], pub)

	shared, err := curve25519.X25519(serverPriv[:], clientPub)
	require.NoError(t, err)
	k := new(big.Int).SetBytes(shared)

	magics := &handshakeMagics{
		clientVersion: s.magics.clientVersion,
		serverVersion: s.magics.serverVersion,
		clientKexInit: s.magics.clientKexInit,
		serverKexInit: s.magics.serverKexInit,
	}
	h := crypto.SHA256.New()
	writeString(h, magics.clientVersion)
	writeString(h, magics.serverVersion)
	writeString(h, magics.clientKexInit)
	writeString(h, magics.serverKexInit)
	writeString(h, hostKeyBlob.bytes())
	writeString(h, clientPub)
	writeString(h, serverPub[:])
	writeMPInt(h, k)
	exchangeHash := h.Sum(nil)

	sig := ed25519.Sign(hostPriv, exchangeHash)
	var sigBlob buffer
	sigBlob.addSSHString([]byte(KeyAlgoED25519))
	sigBlob.addSSHString(sig)

	var reply buffer
	reply.addU8(msgKexECDHReply)
	reply.addSSHString(hostKeyBlob.bytes())
	reply.addSSHString(serverPub[:])
	reply.addSSHString(sigBlob.bytes())

	_, err = s.OnData(frameCleartext(reply.bytes()))
	require.NoError(t, err)
	require.Equal(t, DHNewKeysSent, s.dhState)
	require.NotNil(t, s.sessionID)

	// --- server NEWKEYS ---
	_, err = s.OnData(frameCleartext([]byte{msgNewKeys}))
	require.NoError(t, err)
	assert.Equal(t, DHFinished, s.dhState)
	assert.True(t, s.connected)
	require.NotNil(t, s.crypto.current)

	// --- server SERVICE_ACCEPT, encrypted with the negotiated read key ---
	var accept buffer
	accept.addU8(msgServiceAccept)
	accept.addSSHString([]byte("ssh-userauth"))
	acceptFrame := frameEncrypted(accept.bytes(), s.crypto.current.read.engine, 0)

	_, err = s.OnData(acceptFrame)
	require.NoError(t, err)

	assert.Equal(t, StateAuthenticating, s.state)
	assert.Contains(t, progress, 1.0)
}
