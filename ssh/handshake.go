// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"io"

	"golang.org/x/crypto/curve25519"
)

// advanceInitialKex implements spec.md §4.4 (Initial KEX) followed by
// the §4.5 DH handshake sub-state machine and the §4.6 service request,
// in one re-entrant function: each call advances as far as the
// currently available pendingPacket allows, then returns, to be
// re-invoked by the next OnData (Design Notes "fall-through state
// machine").
func (s *Session) advanceInitialKex() error {
	if s.serverKex == nil {
		payload, have, err := s.packetWait(msgKexInit)
		if err != nil {
			s.fail(toSessionError(err, "Receiving server KEXINIT"))
			return s.lastError()
		}
		if !have {
			return nil // wait for more bytes
		}
		serverKex, perr := parseKexInit(payload[1:])
		if perr != nil {
			s.fail(toSessionError(perr, "Parsing server KEXINIT"))
			return s.lastError()
		}
		s.magics.serverKexInit = append([]byte(nil), payload...)
		s.serverKex = serverKex

		clientKex, cerr := newClientKexInit(&s.config.Crypto, s.config.Crypto.hostKeyAlgos())
		if cerr != nil {
			s.fail(wrapFatal(cerr, "Building client KEXINIT"))
			return s.lastError()
		}
		s.clientKex = clientKex
		marshaled := clientKex.marshal()
		s.magics.clientKexInit = append([]byte(nil), marshaled...)

		negotiated, nerr := chooseAlgorithms(clientKex, serverKex)
		if nerr != nil {
			s.fail(toSessionError(nerr, "Choosing algorithms"))
			return s.lastError()
		}
		s.negotiated = negotiated

		s.outBuf.addBytes(marshaled)
		s.packetSend()
		if ferr := s.packetFlush(true); ferr != nil {
			s.fail(wrapFatal(ferr, "Sending client KEXINIT"))
			return s.lastError()
		}
		s.callbacks.emit(0.6)
	}

	if err := s.runDHLoop(); err != nil {
		return err
	}
	if s.dhState != DHFinished {
		return nil // waiting for more bytes
	}

	return s.runServiceRequest()
}



// runDHLoop executes the §4.5 DH handshake sub-state machine, re-entering
// the switch after every successful transition until it either finishes,
// fails, or must suspend waiting for more input (spec.md §9 "Fall-through
// state machine").
func (s *Session) runDHLoop() error {
	for {
		switch s.dhState {
		case DHInit:
			if err := s.dhSendInit(); err != nil {
				s.fail(toSessionError(err, "Starting DH exchange"))
				return s.lastError()
			}
			s.dhState = DHInitToSend
			s.callbacks.emit(0.8)

		case DHInitToSend:
			if err := s.packetFlush(true); err != nil {
				s.fail(wrapFatal(err, "Flushing KEXDH_INIT"))
				return s.lastError()
			}
			s.dhState = DHInitSent

		case DHInitSent:
			done, err := s.dhRecvReply()
			if err != nil {
				s.fail(toSessionError(err, "Receiving KEXDH_REPLY"))
				return s.lastError()
			}
			if !done {
				return nil // wait for more bytes
			}
			s.dhState = DHNewKeysToSend

		case DHNewKeysToSend:
			s.outBuf.addBytes(newKeysMsg())
			s.packetSend()
			if err := s.packetFlush(true); err != nil {
				s.fail(wrapFatal(err, "Sending NEWKEYS"))
				return s.lastError()
			}
			s.dhState = DHNewKeysSent

		case DHNewKeysSent:
			done, err := s.dhFinish()
			if err != nil {
				s.fail(toSessionError(err, "Finishing DH exchange"))
				return s.lastError()
			}
			if !done {
				return nil // wait for more bytes
			}
			s.dhState = DHFinished
			s.callbacks.emit(1.0)
			return nil

		case DHFinished:
			return nil

		default:
			return invalidStatef("ssh: unknown dh_state %d", int(s.dhState))
		}
	}
}

// dhSendInit implements the INIT row: generate the client ephemeral
// keypair for the negotiated kex algorithm and queue KEXDH_INIT (or its
// ECDH/curve25519 equivalent).
func (s *Session) dhSendInit() error {
	switch {
	case isFiniteFieldDH(s.negotiated.kex):
		group, _ := groupForKex(s.negotiated.kex)
		x, e, err := generateFiniteFieldX(group, s.config.rand())
		if err != nil {
			return err
		}
		s.dh.group, s.dh.ffX, s.dh.ffE = group, x, e
		s.outBuf.addBytes((&kexDHInitMsg{E: e}).marshal())
		s.packetSend()
		return nil

	case isECDH(s.negotiated.kex):
		curve, _ := curveForKex(s.negotiated.kex)
		priv, err := ecdsa.GenerateKey(curve, s.config.rand())
		if err != nil {
			return err
		}
		pub := elliptic.Marshal(curve, priv.PublicKey.X, priv.PublicKey.Y)
		s.dh.ecdhPriv, s.dh.ecdhPub = priv, pub
		s.outBuf.addBytes((&kexECDHInitMsg{ClientPubKey: pub}).marshal())
		s.packetSend()
		return nil

	case isCurve25519(s.negotiated.kex):
		var priv, pub [32]byte
		if _, err := io.ReadFull(s.config.rand(), priv[:]); err != nil {
			return err
		}
		p, err := curve25519.X25519(priv[:], curve25519.Basepoint)
		if err != nil {
			return err
		}
		copy(pub[:], p)
		s.dh.curvePriv, s.dh.curvePub = priv, pub[:]
		s.outBuf.addBytes((&kexECDHInitMsg{ClientPubKey: pub[:]}).marshal())
		s.packetSend()
		return nil

	default:
		return fatalf("ssh: unexpected key exchange algorithm %v", s.negotiated.kex)
	}
}

// dhRecvReply implements the INIT_SENT row: parse KEXDH_REPLY, compute
// k, the exchange hash, and verify the host signature BEFORE touching
// next_crypto (SPEC_FULL.md §9.1).
func (s *Session) dhRecvReply() (bool, error) {
	var result *kexResult

	switch {
	case isFiniteFieldDH(s.negotiated.kex):
		payload, have, err := s.packetWait(msgKexDHReply)
		if err != nil || !have {
			return have, err
		}
		reply, perr := parseKexDHReply(payload[1:])
		if perr != nil {
			return true, perr
		}
		_, hashFunc := groupForKex(s.negotiated.kex)
		r, derr := runFiniteFieldDH(s.dh.group, hashFunc, s.config.rand(), &s.magics, reply, s.dh.ffX, s.dh.ffE)
		if derr != nil {
			return true, derr
		}
		result = r

	case isECDH(s.negotiated.kex):
		payload, have, err := s.packetWait(msgKexECDHReply)
		if err != nil || !have {
			return have, err
		}
		reply, perr := parseKexECDHReply(payload[1:])
		if perr != nil {
			return true, perr
		}
		curve, hashFunc := curveForKex(s.negotiated.kex)
		r, derr := runECDH(curve, hashFunc, s.config.rand(), &s.magics, s.dh.ecdhPub, reply, s.dh.ecdhPriv)
		if derr != nil {
			return true, derr
		}
		result = r

	case isCurve25519(s.negotiated.kex):
		payload, have, err := s.packetWait(msgKexECDHReply)
		if err != nil || !have {
			return have, err
		}
		reply, perr := parseKexECDHReply(payload[1:])
		if perr != nil {
			return true, perr
		}
		r, derr := runCurve25519(s.config.rand(), &s.magics, s.dh.curvePriv, s.dh.curvePub, reply)
		if derr != nil {
			return true, derr
		}
		result = r

	default:
		return true, fatalf("ssh: unexpected key exchange algorithm %v", s.negotiated.kex)
	}

	if err := verifyHostKeySignature(s.negotiated.hostKey, result.HostKey, result.H, result.Signature); err != nil {
		return true, err
	}

	if checker := s.config.HostKeyChecker; checker != nil {
		if err := checker.Check(s.dialAddress, nil, s.negotiated.hostKey, result.HostKey); err != nil {
			return true, err
		}
	}

	if s.sessionID == nil {
		s.sessionID = append([]byte(nil), result.H...)
	}

	next, kerr := generateSessionKeys(result, s.sessionID, s.negotiated)
	if kerr != nil {
		return true, kerr
	}
	s.crypto.next = next
	s.dh.hostPubkey = result.HostKey
	s.dh.serverSignature = result.Signature
	return true, nil
}

// dhFinish implements the NEWKEYS_SENT row: wait for the peer's
// SSH_MSG_NEWKEYS, then atomically rotate current_crypto/next_crypto
// (spec.md §3 invariant, §5 "Crypto swap atomicity").
func (s *Session) dhFinish() (bool, error) {
	payload, have, err := s.packetWait(msgNewKeys)
	if err != nil || !have {
		return have, err
	}
	_ = payload

	s.crypto.rotate()
	s.activeDecoder = encryptedPacketDecoder{}
	s.dh.zeroize()
	s.dh = dhTemporaries{}
	s.connected = true
	s.alive = true
	return true, nil
}

func toSessionError(err error, context string) *SessionError {
	if se, ok := err.(*SessionError); ok {
		return se
	}
	return wrapFatal(err, context)
}
