// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/binary"
	"hash"

	"golang.org/x/crypto/chacha20poly1305"
)

// packetCipher seals/opens one binary packet's worth of bytes, the
// "cipher/MAC engine" spec.md §1 treats as an external collaborator.
// Two real engines are wired in: a classic cipher+HMAC pair and an AEAD
// (grounded in opd-ai-toxcore's use of chacha20poly1305 for its own
// transport encryption).
type packetCipher interface {
	open(seq uint32, packet []byte) (plaintext []byte, err error)
	seal(seq uint32, plaintext []byte) (packet []byte)
	blockSize() int
	overhead() int
}

// cryptoMaterial is the locally-owned key/IV material for one direction.
// It is zeroized before release on every path (Design Notes "Secret
// material").
type cryptoMaterial struct {
	iv     []byte
	encKey []byte
	macKey []byte
}

func (m *cryptoMaterial) zeroize() {
	burn(m.iv)
	burn(m.encKey)
	burn(m.macKey)
}

// cryptoDirection is one half (read or write) of a negotiated crypto
// configuration: cipher, MAC, IV, keys and compression for that
// direction (spec.md §3 current_crypto/next_crypto).
type cryptoDirection struct {
	cipherAlgo      string
	macAlgo         string
	compressionAlgo string
	material        cryptoMaterial
	engine          packetCipher
	seq             uint32
}

func (d *cryptoDirection) nextSeq() uint32 {
	v := d.seq
	d.seq++
	return v
}

// cryptoSet bundles both directions of a negotiated crypto configuration.
type cryptoSet struct {
	write cryptoDirection
	read  cryptoDirection
}

func (s *cryptoSet) zeroize() {
	if s == nil {
		return
	}
	s.write.material.zeroize()
	s.read.material.zeroize()
}

// cryptoPair models current_crypto/next_crypto as a single unit with one
// rotation operation, per Design Notes "Crypto swap atomicity": the
// NEWKEYS boundary is never expressed as two independent field writes.
type cryptoPair struct {
	current *cryptoSet
	next    *cryptoSet
}

func newCryptoPair() *cryptoPair {
	return &cryptoPair{next: &cryptoSet{}}
}

// rotate atomically destroys current_crypto, promotes next_crypto, and
// allocates a fresh empty next_crypto (spec.md §3 invariant: "After the
// NEWKEYS boundary, current_crypto is the negotiated crypto; next_crypto
// is freshly allocated and empty").
func (p *cryptoPair) rotate() {
	p.current.zeroize()
	p.current = p.next
	p.next = &cryptoSet{}
}

// buildCryptoDirection constructs one direction's cryptoDirection from
// derived key material, selecting the packetCipher engine for the
// negotiated cipher algorithm.
func buildCryptoDirection(cipherAlgo, macAlgo, compressionAlgo string, iv, key, macKey []byte) (cryptoDirection, error) {
	d := cryptoDirection{
		cipherAlgo:      cipherAlgo,
		macAlgo:         macAlgo,
		compressionAlgo: compressionAlgo,
		material:        cryptoMaterial{iv: iv, encKey: key, macKey: macKey},
	}
	engine, err := newPacketCipher(cipherAlgo, macAlgo, iv, key, macKey)
	if err != nil {
		return cryptoDirection{}, err
	}
	d.engine = engine
	return d, nil
}

func newPacketCipher(cipherAlgo, macAlgo string, iv, key, macKey []byte) (packetCipher, error) {
	switch cipherAlgo {
	case cipherChaCha20Poly1305:
		return newAEADCipher(key)
	case cipherAES128CTR, cipherAES256CTR:
		return newCTRCipher(key, iv, macAlgo, macKey)
	default:
		return nil, fatalf("ssh: unsupported cipher %q", cipherAlgo)
	}
}

// aeadCipher wraps chacha20poly1305, used for the
// chacha20-poly1305@openssh.com suite. It folds the sequence number into
// the nonce, matching the construction OpenSSH uses for that suite
// (a fixed-zero-prefix nonce with the big-endian sequence in the low
// bytes), simplified here to a single chacha20poly1305.AEAD covering the
// whole packet rather than OpenSSH's split length/payload keys.
type aeadCipher struct {
	aead cipher.AEAD
}

func newAEADCipher(key []byte) (packetCipher, error) {
	if len(key) < chacha20poly1305.KeySize {
		return nil, fatalf("ssh: short chacha20poly1305 key")
	}
	aead, err := chacha20poly1305.New(key[:chacha20poly1305.KeySize])
	if err != nil {
		return nil, wrapFatal(err, "ssh: chacha20poly1305 setup")
	}
	return &aeadCipher{aead: aead}, nil
}

func (c *aeadCipher) nonce(seq uint32) []byte {
	n := make([]byte, chacha20poly1305.NonceSize)
	binary.BigEndian.PutUint32(n[chacha20poly1305.NonceSize-4:], seq)
	return n
}

func (c *aeadCipher) seal(seq uint32, plaintext []byte) []byte {
	return c.aead.Seal(nil, c.nonce(seq), plaintext, nil)
}

func (c *aeadCipher) open(seq uint32, packet []byte) ([]byte, error) {
	pt, err := c.aead.Open(nil, c.nonce(seq), packet, nil)
	if err != nil {
		return nil, wrapFatal(err, "ssh: chacha20poly1305 authentication failed")
	}
	return pt, nil
}

func (c *aeadCipher) blockSize() int { return 8 }
func (c *aeadCipher) overhead() int  { return c.aead.Overhead() }

// ctrCipher pairs AES-CTR encryption with an HMAC computed over the
// sequence number and plaintext, the classic SSH construction (RFC 4253
// §6.3-6.4) this core's predecessor used for aes128-cbc/hmac-sha1.
type ctrCipher struct {
	stream cipher.Stream
	mac    hash.Hash
	macKey []byte
}

func newCTRCipher(key, iv []byte, macAlgo string, macKey []byte) (packetCipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, wrapFatal(err, "ssh: aes key setup")
	}
	if len(iv) < block.BlockSize() {
		return nil, fatalf("ssh: short IV")
	}
	stream := cipher.NewCTR(block, iv[:block.BlockSize()])
	return &ctrCipher{stream: stream, mac: newMAC(macAlgo, macKey), macKey: macKey}, nil
}

func newMAC(algo string, key []byte) hash.Hash {
	switch algo {
	case macHMACSHA256:
		return hmac.New(sha256.New, key)
	default:
		return hmac.New(sha1.New, key)
	}
}

func (c *ctrCipher) seal(seq uint32, plaintext []byte) []byte {
	out := make([]byte, len(plaintext))
	c.stream.XORKeyStream(out, plaintext)
	return append(out, c.tag(seq, plaintext)...)
}

func (c *ctrCipher) open(seq uint32, packet []byte) ([]byte, error) {
	if len(packet) < c.mac.Size() {
		return nil, fatalf("ssh: packet shorter than MAC")
	}
	ciphertext := packet[:len(packet)-c.mac.Size()]
	tag := packet[len(packet)-c.mac.Size():]
	plaintext := make([]byte, len(ciphertext))
	c.stream.XORKeyStream(plaintext, ciphertext)
	if !hmac.Equal(tag, c.tag(seq, plaintext)) {
		return nil, fatalf("ssh: MAC mismatch")
	}
	return plaintext, nil
}

func (c *ctrCipher) tag(seq uint32, plaintext []byte) []byte {
	c.mac.Reset()
	var seqBuf [4]byte
	binary.BigEndian.PutUint32(seqBuf[:], seq)
	c.mac.Write(seqBuf[:])
	c.mac.Write(plaintext)
	return c.mac.Sum(nil)
}

func (c *ctrCipher) blockSize() int { return aes.BlockSize }
func (c *ctrCipher) overhead() int  { return c.mac.Size() }
