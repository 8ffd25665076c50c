// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"hash"
	"io"
	"math/big"
	"sync"

	"golang.org/x/crypto/curve25519"
)

// dhGroup is a multiplicative group suitable for classic Diffie-Hellman
// key agreement (RFC 4253 §8 / RFC 3526), carried over verbatim from the
// teacher's common.go.
type dhGroup struct {
	g, p *big.Int
}

func (group *dhGroup) diffieHellman(theirPublic, myPrivate *big.Int) (*big.Int, error) {
	if theirPublic.Sign() <= 0 || theirPublic.Cmp(group.p) >= 0 {
		return nil, fatalf("ssh: DH parameter out of bounds")
	}
	return new(big.Int).Exp(theirPublic, myPrivate, group.p), nil
}

// dhGroup1 is diffie-hellman-group1-sha1 (RFC 4253) / Oakley Group 2.
var (
	dhGroup1     *dhGroup
	dhGroup1Once sync.Once
)

func initDHGroup1() {
	p, _ := new(big.Int).SetString("FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E088A67CC74020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7EDEE386BFB5A899FA5AE9F24117C4B1FE649286651ECE65381FFFFFFFFFFFFFFFF", 16)
	dhGroup1 = &dhGroup{g: big.NewInt(2), p: p}
}

// dhGroup14 is diffie-hellman-group14-sha1 (RFC 4253) / Oakley Group 14.
var (
	dhGroup14     *dhGroup
	dhGroup14Once sync.Once
)

func initDHGroup14() {
	p, _ := new(big.Int).SetString("FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E088A67CC74020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7EDEE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3DC2007CB8A163BF0598DA48361C55D39A69163FA8FD24CF5F83655D23DCA3AD961C62F356208552BB9ED529077096966D670C354E4ABC9804F1746C08CA18217C32905E462E36CE3BE39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9DE2BCBF6955817183995497CEA956AE515D2261898FA051015728E5A8AACAA68FFFFFFFFFFFFFFFF", 16)
	dhGroup14 = &dhGroup{g: big.NewInt(2), p: p}
}

func groupForKex(kexAlgo string) (*dhGroup, crypto.Hash) {
	switch kexAlgo {
	case kexAlgoDH1SHA1:
		dhGroup1Once.Do(initDHGroup1)
		return dhGroup1, crypto.SHA1
	case kexAlgoDH14SHA1:
		dhGroup14Once.Do(initDHGroup14)
		return dhGroup14, crypto.SHA1
	default:
		return nil, 0
	}
}

func curveForKex(kexAlgo string) (elliptic.Curve, crypto.Hash) {
	switch kexAlgo {
	case kexAlgoECDH256:
		return elliptic.P256(), crypto.SHA256
	case kexAlgoECDH384:
		return elliptic.P384(), crypto.SHA384
	case kexAlgoECDH521:
		return elliptic.P521(), crypto.SHA512
	default:
		return nil, 0
	}
}

// kexResult captures the outcome of a key exchange: the exchange hash H,
// shared secret K, and the host key material needed to verify the
// signature over H (spec.md §4.5).
type kexResult struct {
	H         []byte
	K         []byte
	HostKey   []byte
	Signature []byte
	Hash      crypto.Hash
}

// writeString and writeMPInt feed the exchange-hash transcript in the
// canonical order spec.md §4.5 names: client banner, server banner, both
// KEXINIT payloads, host_pubkey, e, f, k.
func writeString(h hash.Hash, b []byte) {
	var lenBuf [4]byte
	lenBuf[0] = byte(len(b) >> 24)
	lenBuf[1] = byte(len(b) >> 16)
	lenBuf[2] = byte(len(b) >> 8)
	lenBuf[3] = byte(len(b))
	h.Write(lenBuf[:])
	h.Write(b)
}

func writeMPInt(h hash.Hash, n *big.Int) {
	writeString(h, mpIntBytes(n))
}

// runFiniteFieldDH completes classic Diffie-Hellman key agreement
// (spec.md §4.5 INIT_SENT state): given the client's x and e (see
// generateFiniteFieldX) and the server's reply, it computes k = f^x mod p
// and the exchange hash over the transcript.
func runFiniteFieldDH(group *dhGroup, hashFunc crypto.Hash, rnd io.Reader, magics *handshakeMagics, reply *kexDHReplyMsg, x *big.Int, e *big.Int) (*kexResult, error) {
	k, err := group.diffieHellman(reply.F, x)
	if err != nil {
		return nil, err
	}
	h := hashFunc.New()
	writeString(h, magics.clientVersion)
	writeString(h, magics.serverVersion)
	writeString(h, magics.clientKexInit)
	writeString(h, magics.serverKexInit)
	writeString(h, reply.HostKey)
	writeMPInt(h, e)
	writeMPInt(h, reply.F)
	writeMPInt(h, k)
	result := &kexResult{
		H:         h.Sum(nil),
		K:         mpIntBytes(k),
		HostKey:   reply.HostKey,
		Signature: reply.Signature,
		Hash:      hashFunc,
	}
	burnInt(k)
	return result, nil
}

// generateFiniteFieldX picks the client's secret exponent in [2, q-1]
// (approximated here as [2, p-1], the bound the teacher's kexDH used).
func generateFiniteFieldX(group *dhGroup, rnd io.Reader) (*big.Int, *big.Int, error) {
	x, err := rand.Int(rnd, group.p)
	if err != nil {
		return nil, nil, err
	}
	if x.Cmp(big.NewInt(2)) < 0 {
		x = big.NewInt(2)
	}
	e := new(big.Int).Exp(group.g, x, group.p)
	return x, e, nil
}

// runECDH performs the RFC 5656 NIST-curve ECDH exchange, generalized
// from the teacher's kexECDH.
func runECDH(curve elliptic.Curve, hashFunc crypto.Hash, rnd io.Reader, magics *handshakeMagics, clientPub []byte, reply *kexECDHReplyMsg, priv *ecdsa.PrivateKey) (*kexResult, error) {
	x, y := elliptic.Unmarshal(curve, reply.EphemeralPubKey)
	if x == nil {
		return nil, fatalf("ssh: elliptic.Unmarshal failure")
	}
	if !curve.IsOnCurve(x, y) {
		return nil, fatalf("ssh: ephemeral server key not on curve")
	}
	secretX, _ := curve.ScalarMult(x, y, priv.D.Bytes())
	k := secretX

	h := hashFunc.New()
	writeString(h, magics.clientVersion)
	writeString(h, magics.serverVersion)
	writeString(h, magics.clientKexInit)
	writeString(h, magics.serverKexInit)
	writeString(h, reply.HostKey)
	writeString(h, clientPub)
	writeString(h, reply.EphemeralPubKey)
	writeMPInt(h, k)

	result := &kexResult{
		H:         h.Sum(nil),
		K:         mpIntBytes(k),
		HostKey:   reply.HostKey,
		Signature: reply.Signature,
		Hash:      hashFunc,
	}
	burnInt(k)
	return result, nil
}

// runCurve25519 performs curve25519-sha256 key agreement (RFC 8731).
func runCurve25519(rnd io.Reader, magics *handshakeMagics, priv [32]byte, clientPub []byte, reply *kexECDHReplyMsg) (*kexResult, error) {
	if len(reply.EphemeralPubKey) != 32 {
		return nil, fatalf("ssh: invalid curve25519 server public key")
	}
	var serverPub [32]byte
	copy(serverPub[:], reply.EphemeralPubKey)
	shared, err := curve25519.X25519(priv[:], serverPub[:])
	if err != nil {
		return nil, wrapFatal(err, "ssh: curve25519 key agreement")
	}
	k := new(big.Int).SetBytes(shared)
	burn(shared)

	h := crypto.SHA256.New()
	writeString(h, magics.clientVersion)
	writeString(h, magics.serverVersion)
	writeString(h, magics.clientKexInit)
	writeString(h, magics.serverKexInit)
	writeString(h, reply.HostKey)
	writeString(h, clientPub)
	writeString(h, reply.EphemeralPubKey)
	writeMPInt(h, k)

	result := &kexResult{
		H:         h.Sum(nil),
		K:         mpIntBytes(k),
		HostKey:   reply.HostKey,
		Signature: reply.Signature,
		Hash:      crypto.SHA256,
	}
	burnInt(k)
	return result, nil
}

// verifyHostKeySignature validates the server's signature over the
// exchange hash, spec.md §4.5's "server_signature ... using host_pubkey",
// performed BEFORE any crypto rotation per the spec's conservative Open
// Question resolution (SPEC_FULL.md §9.1).
func verifyHostKeySignature(hostKeyAlgo string, hostKeyBytes, data, signature []byte) error {
	hostKey, rest, ok := ParsePublicKey(hostKeyBytes)
	if !ok || len(rest) > 0 {
		return fatalf("ssh: could not parse hostkey")
	}
	sigFormat, sigBlob, ok := parseSignatureBody(signature)
	if !ok {
		return fatalf("ssh: signature parse error")
	}
	if sigFormat != hostKeyAlgo {
		return fatalf("ssh: unexpected signature type %q", sigFormat)
	}
	if !hostKey.Verify(data, sigBlob) {
		return fatalf("ssh: host key signature error")
	}
	return nil
}

func parseSignatureBody(in []byte) (format string, blob []byte, ok bool) {
	c := newCursor(in)
	format, ok = c.string()
	if !ok {
		return "", nil, false
	}
	blob, ok = c.sshString()
	return format, blob, ok
}

// deriveKey implements the RFC 4253 §7.2 key derivation function:
// K1 = HASH(K || H || X || session_id), extended with
// K2 = HASH(K || H || K1) ... until length bytes are available. k holds
// the mpint bytes of K and is hashed with its length prefix, the mpint
// encoding the RFC uses.
func deriveKey(hashFunc crypto.Hash, k, h []byte, x byte, sessionID []byte, length int) []byte {
	hh := hashFunc.New()
	writeString(hh, k)
	hh.Write(h)
	hh.Write([]byte{x})
	hh.Write(sessionID)
	out := hh.Sum(nil)
	for len(out) < length {
		hh.Reset()
		writeString(hh, k)
		hh.Write(h)
		hh.Write(out)
		out = append(out, hh.Sum(nil)...)
	}
	return out[:length]
}

func keyLenFor(cipherAlgo string) int {
	switch cipherAlgo {
	case cipherAES256CTR:
		return 32
	case cipherChaCha20Poly1305:
		return 64 // 32 bytes payload key + 32 bytes length key, OpenSSH-style derivation budget
	default:
		return 16
	}
}

func ivLenFor(cipherAlgo string) int {
	if cipherAlgo == cipherChaCha20Poly1305 {
		return 0
	}
	return 16
}

func macKeyLenFor(macAlgo string) int {
	if macAlgo == macHMACSHA256 {
		return 32
	}
	return 20
}

// generateSessionKeys implements spec.md §4.5's "install next_crypto
// keys derived from (k, session_id) via the algorithm's KDF" for both
// directions at once (RFC 4253 §7.2 IDs 'A'..'F').
func generateSessionKeys(result *kexResult, sessionID []byte, n *negotiatedAlgorithms) (*cryptoSet, error) {
	ivCS := deriveKey(result.Hash, result.K, result.H, 'A', sessionID, ivLenFor(n.cipherClientServer))
	ivSC := deriveKey(result.Hash, result.K, result.H, 'B', sessionID, ivLenFor(n.cipherServerClient))
	keyCS := deriveKey(result.Hash, result.K, result.H, 'C', sessionID, keyLenFor(n.cipherClientServer))
	keySC := deriveKey(result.Hash, result.K, result.H, 'D', sessionID, keyLenFor(n.cipherServerClient))
	macCS := deriveKey(result.Hash, result.K, result.H, 'E', sessionID, macKeyLenFor(n.macClientServer))
	macSC := deriveKey(result.Hash, result.K, result.H, 'F', sessionID, macKeyLenFor(n.macServerClient))

	write, err := buildCryptoDirection(n.cipherClientServer, n.macClientServer, n.compressionClientServer, ivCS, keyCS, macCS)
	if err != nil {
		return nil, err
	}
	read, err := buildCryptoDirection(n.cipherServerClient, n.macServerClient, n.compressionServerClient, ivSC, keySC, macSC)
	if err != nil {
		return nil, err
	}
	return &cryptoSet{write: write, read: read}, nil
}

var errShortBuffer = errors.New("ssh: short buffer")
