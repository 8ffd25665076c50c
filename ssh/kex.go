// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

// Algorithm name string constants (RFC 4253 / RFC 5656 / RFC 8731).
const (
	kexAlgoDH1SHA1      = "diffie-hellman-group1-sha1"
	kexAlgoDH14SHA1     = "diffie-hellman-group14-sha1"
	kexAlgoECDH256      = "ecdh-sha2-nistp256"
	kexAlgoECDH384      = "ecdh-sha2-nistp384"
	kexAlgoECDH521      = "ecdh-sha2-nistp521"
	kexAlgoCurve25519   = "curve25519-sha256"
	kexAlgoCurve25519At = "curve25519-sha256@libssh.org"

	compressionNone = "none"
	serviceUserAuth = "ssh-userauth"
	serviceSSH      = "ssh-connection"

	cipherAES128CTR            = "aes128-ctr"
	cipherAES256CTR            = "aes256-ctr"
	cipherChaCha20Poly1305     = "chacha20-poly1305@openssh.com"
	macHMACSHA1                = "hmac-sha1"
	macHMACSHA256              = "hmac-sha2-256"
)

var defaultKeyExchangeOrder = []string{
	kexAlgoCurve25519, kexAlgoCurve25519At,
	kexAlgoECDH256, kexAlgoECDH384, kexAlgoECDH521,
	kexAlgoDH14SHA1, kexAlgoDH1SHA1,
}

var supportedHostKeyAlgos = []string{
	KeyAlgoED25519, KeyAlgoECDSA256, KeyAlgoECDSA384, KeyAlgoECDSA521, KeyAlgoRSA,
}

var supportedCompressions = []string{compressionNone}

// DefaultCipherOrder and DefaultMACOrder are this core's preference
// lists, in order: the AEAD suite first (no separate MAC negotiated for
// it), then classic cipher+MAC pairs.
var DefaultCipherOrder = []string{cipherChaCha20Poly1305, cipherAES128CTR, cipherAES256CTR}
var DefaultMACOrder = []string{macHMACSHA256, macHMACSHA1}

// handshakeMagics accumulates the four byte strings folded into the
// exchange hash (spec.md §4.5 session_id computation): both banners and
// both raw KEXINIT payloads, exactly the teacher's handshakeMagics.
type handshakeMagics struct {
	clientVersion, serverVersion []byte
	clientKexInit, serverKexInit []byte
}

func findCommonAlgorithm(clientAlgos, serverAlgos []string) (string, bool) {
	for _, c := range clientAlgos {
		for _, s := range serverAlgos {
			if c == s {
				return c, true
			}
		}
	}
	return "", false
}

// negotiatedAlgorithms is the outcome of spec.md §4.4 step 3
// (choose_algorithms): one pick per negotiation slot.
type negotiatedAlgorithms struct {
	kex                       string
	hostKey                   string
	cipherClientServer        string
	cipherServerClient        string
	macClientServer           string
	macServerClient           string
	compressionClientServer   string
	compressionServerClient   string
}

// chooseAlgorithms implements spec.md §4.4 step 3: for each of (kex,
// host-key, cipher-c2s, cipher-s2c, mac-c2s, mac-s2c, compression-c2s,
// compression-s2c), pick the first local algorithm that also appears in
// the server's list. Absence of any intersection is fatal.
func chooseAlgorithms(client, server *kexInitMsg) (*negotiatedAlgorithms, error) {
	n := &negotiatedAlgorithms{}
	var ok bool
	if n.kex, ok = findCommonAlgorithm(client.KexAlgos, server.KexAlgos); !ok {
		return nil, fatalf("ssh: no common key exchange algorithm")
	}
	if n.hostKey, ok = findCommonAlgorithm(client.ServerHostKeyAlgos, server.ServerHostKeyAlgos); !ok {
		return nil, fatalf("ssh: no common host key algorithm")
	}
	if n.cipherClientServer, ok = findCommonAlgorithm(client.CiphersClientServer, server.CiphersClientServer); !ok {
		return nil, fatalf("ssh: no common client->server cipher")
	}
	if n.cipherServerClient, ok = findCommonAlgorithm(client.CiphersServerClient, server.CiphersServerClient); !ok {
		return nil, fatalf("ssh: no common server->client cipher")
	}
	if !isAEAD(n.cipherClientServer) {
		if n.macClientServer, ok = findCommonAlgorithm(client.MACsClientServer, server.MACsClientServer); !ok {
			return nil, fatalf("ssh: no common client->server MAC")
		}
	}
	if !isAEAD(n.cipherServerClient) {
		if n.macServerClient, ok = findCommonAlgorithm(client.MACsServerClient, server.MACsServerClient); !ok {
			return nil, fatalf("ssh: no common server->client MAC")
		}
	}
	if n.compressionClientServer, ok = findCommonAlgorithm(client.CompressionClientServer, server.CompressionClientServer); !ok {
		return nil, fatalf("ssh: no common client->server compression")
	}
	if n.compressionServerClient, ok = findCommonAlgorithm(client.CompressionServerClient, server.CompressionServerClient); !ok {
		return nil, fatalf("ssh: no common server->client compression")
	}
	return n, nil
}

func isAEAD(cipher string) bool {
	return cipher == cipherChaCha20Poly1305
}

func isCurve25519(kex string) bool {
	return kex == kexAlgoCurve25519 || kex == kexAlgoCurve25519At
}

func isECDH(kex string) bool {
	return kex == kexAlgoECDH256 || kex == kexAlgoECDH384 || kex == kexAlgoECDH521
}

func isFiniteFieldDH(kex string) bool {
	return kex == kexAlgoDH1SHA1 || kex == kexAlgoDH14SHA1
}
