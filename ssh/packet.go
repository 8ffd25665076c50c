// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"encoding/binary"
)

const (
	minPacketLength = 16
	maxPacketLength = 256 * 1024
	cleartextBlock  = 8
)

// cleartextPacketDecoder is the active decoder from the moment the
// client banner is emitted until the first NEWKEYS rotation (spec.md
// §4.2 step 4). It implements the binary packet format of spec.md §6:
// uint32 packet_length || uint8 padding_length || payload || padding.
type cleartextPacketDecoder struct{}

func (cleartextPacketDecoder) onData(s *Session, data []byte) (int, error) {
	return decodePacket(s, data, nil)
}

// encryptedPacketDecoder is swapped in at the NEWKEYS rotation boundary
// (spec.md §4.5 NEWKEYS_SENT → FINISHED). The framed packet_length is
// still read in clear (this core's simplified wire convention for the
// "cipher/MAC engine" external collaborator, spec.md §1); the remaining
// bytes are handed to the negotiated read engine's open().
type encryptedPacketDecoder struct{}

func (encryptedPacketDecoder) onData(s *Session, data []byte) (int, error) {
	return decodePacket(s, data, s.crypto.current)
}

func decodePacket(s *Session, data []byte, crypto *cryptoSet) (int, error) {
	if len(data) < 4 {
		return 0, nil
	}
	packetLength := binary.BigEndian.Uint32(data[:4])
	if packetLength < 1 || packetLength > maxPacketLength {
		s.fail(fatalf("ssh: invalid packet length %d", packetLength))
		return 0, s.lastError()
	}
	total := 4 + int(packetLength)
	if len(data) < total {
		return 0, nil // incomplete; wait for more bytes
	}
	framed := data[4:total]

	var plaintext []byte
	if crypto == nil {
		plaintext = framed
	} else {
		pt, err := crypto.read.engine.open(crypto.read.nextSeq(), framed)
		if err != nil {
			s.fail(wrapFatal(err, "ssh: decrypting packet"))
			return 0, s.lastError()
		}
		plaintext = pt
	}

	if len(plaintext) < 1 {
		s.fail(fatalf("ssh: empty packet"))
		return 0, s.lastError()
	}
	paddingLength := int(plaintext[0])
	payloadLen := len(plaintext) - 1 - paddingLength
	if payloadLen < 0 {
		s.fail(fatalf("ssh: invalid padding length"))
		return 0, s.lastError()
	}
	payload := plaintext[1 : 1+payloadLen]
	s.pendingPacket = append([]byte(nil), payload...)
	return total, nil
}

// packetSend implements spec.md §4.3 packet_send: serialize
// Session.outBuf as a binary packet into the outbound queue, encrypting
// it if current_crypto is installed.
func (s *Session) packetSend() {
	payload := s.outBuf.bytes()
	blockSize := cleartextBlock
	var write *cryptoDirection
	if s.crypto != nil && s.crypto.current != nil {
		write = &s.crypto.current.write
		blockSize = write.engine.blockSize()
	}

	paddingLength := blockSize - (1+len(payload))%blockSize
	if paddingLength < 4 {
		paddingLength += blockSize
	}
	plaintext := make([]byte, 1+len(payload)+paddingLength)
	plaintext[0] = byte(paddingLength)
	copy(plaintext[1:], payload)
	if _, err := cryptoRandRead(plaintext[1+len(payload):]); err != nil {
		// padding need not be secret; zero bytes are an acceptable fallback
		burn(plaintext[1+len(payload):])
	}

	var framed []byte
	if write == nil {
		framed = plaintext
	} else {
		framed = write.engine.seal(write.nextSeq(), plaintext)
	}

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(framed)))
	s.outQueue = append(s.outQueue, lenBuf[:]...)
	s.outQueue = append(s.outQueue, framed...)
	s.outBuf.reset()
}

// packetFlush implements spec.md §4.3 packet_flush: drive the socket
// write side until the outbound queue is empty.
func (s *Session) packetFlush(blocking bool) error {
	for len(s.outQueue) > 0 {
		n, err := s.socket.Write(s.outQueue)
		if err != nil {
			return wrapFatal(err, "ssh: writing packet")
		}
		s.outQueue = s.outQueue[n:]
		if n == 0 && !blocking {
			return errAgain
		}
	}
	return s.socket.Flush(blocking)
}

// packetWait implements spec.md §4.3 packet_wait's non-suspending half:
// by the time advance() runs, the active decoder has already placed one
// fully decoded packet in Session.pendingPacket (OnData only invokes
// advance after a decode succeeds), so "waiting" here means validating
// and consuming that packet rather than blocking. The suspending half —
// "drive the read side until a packet arrives" — is the outer pump in
// client.go's Connect, which re-invokes OnData as more bytes arrive.
func (s *Session) packetWait(expectedCode byte) ([]byte, bool, error) {
	if s.pendingPacket == nil {
		return nil, false, nil
	}
	payload := s.pendingPacket
	s.pendingPacket = nil
	if payload[0] != expectedCode {
		return nil, true, UnexpectedMessageError{Expected: expectedCode, Got: payload[0]}
	}
	return payload, true, nil
}
