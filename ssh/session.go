// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"crypto/ecdsa"
	"math/big"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// State is the top-level Session state (spec.md §3).
type State int

const (
	StateNone State = iota
	StateConnecting
	StateSocketConnected
	StateBannerReceived
	StateInitialKex
	StateAuthenticating
	StateError
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "NONE"
	case StateConnecting:
		return "CONNECTING"
	case StateSocketConnected:
		return "SOCKET_CONNECTED"
	case StateBannerReceived:
		return "BANNER_RECEIVED"
	case StateInitialKex:
		return "INITIAL_KEX"
	case StateAuthenticating:
		return "AUTHENTICATING"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// DHState is the DH handshake sub-state (spec.md §3, §4.5). Values are
// declared in the table order; dhState only ever advances forward
// within one handshake (spec.md §3 invariant, §8 monotonicity property).
type DHState int

const (
	DHInit DHState = iota
	DHInitToSend
	DHInitSent
	DHNewKeysToSend
	DHNewKeysSent
	DHFinished
)

func (d DHState) String() string {
	switch d {
	case DHInit:
		return "INIT"
	case DHInitToSend:
		return "INIT_TO_SEND"
	case DHInitSent:
		return "INIT_SENT"
	case DHNewKeysToSend:
		return "NEWKEYS_TO_SEND"
	case DHNewKeysSent:
		return "NEWKEYS_SENT"
	case DHFinished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

// dhTemporaries holds the per-handshake secret material spec.md §4.5 /
// §5 requires be zeroized on every path. Exactly one of the
// finite-field / ECDH / curve25519 fields is populated, chosen by the
// negotiated kex algorithm.
type dhTemporaries struct {
	group *dhGroup
	ffX   *big.Int
	ffE   *big.Int

	ecdhPriv *ecdsa.PrivateKey
	ecdhPub  []byte

	curvePriv [32]byte
	curvePub  []byte

	hostPubkey       []byte
	serverSignature  []byte
}

func (t *dhTemporaries) zeroize() {
	if t == nil {
		return
	}
	burnInt(t.ffX)
	burnInt(t.ffE)
	burn(t.ecdhPub)
	burn(t.curvePub)
	if t.ecdhPriv != nil {
		burnInt(t.ecdhPriv.D)
	}
	burn(t.curvePriv[:])
	burn(t.hostPubkey)
	burn(t.serverSignature)
}

// Session is the root entity of spec.md §3, exclusively owned by the
// caller. Field names follow the spec's data model 1:1.
type Session struct {
	state  State
	dhState DHState

	version           int
	peerBanner        []byte
	selfBanner        []byte
	peerVendorVersion *VendorVersion

	outBuf        buffer
	outQueue      []byte
	pendingPacket []byte

	serverKex *kexInitMsg
	clientKex *kexInitMsg
	negotiated *negotiatedAlgorithms

	dh dhTemporaries

	sessionID []byte

	crypto *cryptoPair

	alive     bool
	connected bool

	serviceRequested bool

	callbacks Callbacks
	config    *ClientConfig

	socket        Socket
	activeDecoder decoder

	magics handshakeMagics

	dialAddress string

	lastErr  *SessionError
	advancing atomic.Bool

	issueBanner    *string
	openSSHVersion uint32

	log *logrus.Entry
}

// NewSession constructs a Session in state NONE. Inner buffers and
// crypto contexts are created lazily at first use (spec.md §3
// lifecycle).
func NewSession(config *ClientConfig) *Session {
	if config == nil {
		config = &ClientConfig{}
	}
	s := &Session{
		state:         StateNone,
		dhState:       DHInit,
		config:        config,
		callbacks:     config.Callbacks,
		activeDecoder: bannerDecoder{},
		crypto:        newCryptoPair(),
	}
	s.log = config.logger().WithField("component", "ssh-handshake")
	return s
}

// fail transitions the Session to ERROR (spec.md §3 invariant: terminal,
// must set a diagnostic message) and releases DH temporaries.
func (s *Session) fail(err *SessionError) {
	if s.state == StateError {
		return
	}
	s.state = StateError
	s.lastErr = err
	s.dh.zeroize()
	s.dh = dhTemporaries{}
	s.alive = false
	if s.log != nil {
		s.log.WithError(err).Error("ssh handshake failed")
	}
}

func (s *Session) lastError() error {
	if s.lastErr == nil {
		return nil
	}
	return s.lastErr
}

// advanceLocked performs the next step for the current state (spec.md
// §4.1), dispatched once the "advancing" re-entrancy guard is held. It is
// the only place dhState advances; state is also set directly by
// OnConnected, the banner decoder, fail, Connect and Disconnect.
func (s *Session) advanceLocked() error {
	switch s.state {
	case StateNone, StateConnecting, StateSocketConnected:
		return nil
	case StateBannerReceived:
		return s.advanceBannerReceived()
	case StateInitialKex:
		if s.version == 1 {
			s.fail(fatalf("ssh-1 transport not implemented"))
			return s.lastError()
		}
		return s.advanceInitialKex()
	case StateAuthenticating:
		// Intentional no-op (SPEC_FULL.md §9.3): the outer pump in
		// Connect exits once this state is observed.
		return nil
	case StateError:
		return s.lastError()
	default:
		return invalidStatef("ssh: unknown state %d", int(s.state))
	}
}

func (s *Session) advanceBannerReceived() error {
	if err := s.analyzeBanner(); err != nil {
		s.fail(err.(*SessionError))
		return s.lastError()
	}
	s.openSSHVersion = packedOpenSSHVersion(s.peerVendorVersion)
	s.callbacks.emit(0.4)
	if err := s.emitClientBanner(); err != nil {
		s.fail(err.(*SessionError))
		return s.lastError()
	}
	return nil
}

// GetIssueBanner implements spec.md §6 get_issue_banner.
func (s *Session) GetIssueBanner() *string { return s.issueBanner }

// GetOpenSSHVersion implements spec.md §6 get_openssh_version.
func (s *Session) GetOpenSSHVersion() uint32 { return s.openSSHVersion }

// Copyright implements spec.md §6 copyright().
func Copyright() string {
	return "Copyright (c) 2011 The Go Authors, adapted client handshake core"
}
