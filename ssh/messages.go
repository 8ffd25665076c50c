// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"crypto/rand"
	"math/big"
)

// Message codes used by this core (spec.md §6).
const (
	msgDisconnect      = 1
	msgServiceRequest  = 5
	msgServiceAccept   = 6
	msgKexInit         = 20
	msgNewKeys         = 21
	msgKexDHInit       = 30
	msgKexDHReply      = 31
	msgKexECDHInit     = 30 // shares the code with msgKexDHInit; distinguished by negotiated kexAlgo
	msgKexECDHReply    = 31
)

// SSH2_DISCONNECT reason codes (only the one this core emits).
const (
	disconnectByApplication = 11
)

// kexInitMsg is SSH_MSG_KEXINIT (spec.md §4.4): a 16-byte cookie followed
// by ten algorithm name-lists.
type kexInitMsg struct {
	Cookie                  [16]byte
	KexAlgos                []string
	ServerHostKeyAlgos      []string
	CiphersClientServer     []string
	CiphersServerClient     []string
	MACsClientServer        []string
	MACsServerClient        []string
	CompressionClientServer []string
	CompressionServerClient []string
	LanguagesClientServer   []string
	LanguagesServerClient   []string
	FirstKexFollows         bool
}

func newClientKexInit(cfg *CryptoConfig, hostKeyAlgos []string) (*kexInitMsg, error) {
	m := &kexInitMsg{
		KexAlgos:                cfg.kexes(),
		ServerHostKeyAlgos:      hostKeyAlgos,
		CiphersClientServer:     cfg.ciphers(),
		CiphersServerClient:     cfg.ciphers(),
		MACsClientServer:        cfg.macs(),
		MACsServerClient:        cfg.macs(),
		CompressionClientServer: supportedCompressions,
		CompressionServerClient: supportedCompressions,
	}
	if _, err := rand.Read(m.Cookie[:]); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *kexInitMsg) marshal() []byte {
	var b buffer
	b.addU8(msgKexInit)
	b.addBytes(m.Cookie[:])
	addNameList(&b, m.KexAlgos)
	addNameList(&b, m.ServerHostKeyAlgos)
	addNameList(&b, m.CiphersClientServer)
	addNameList(&b, m.CiphersServerClient)
	addNameList(&b, m.MACsClientServer)
	addNameList(&b, m.MACsServerClient)
	addNameList(&b, m.CompressionClientServer)
	addNameList(&b, m.CompressionServerClient)
	addNameList(&b, m.LanguagesClientServer)
	addNameList(&b, m.LanguagesServerClient)
	b.addBytes([]byte{boolByte(m.FirstKexFollows), 0, 0, 0, 0})
	return b.bytes()
}

func parseKexInit(payload []byte) (*kexInitMsg, error) {
	c := newCursor(payload)
	cookie, ok := c.bytesN(16)
	if !ok {
		return nil, ParseError{MsgType: msgKexInit}
	}
	m := &kexInitMsg{}
	copy(m.Cookie[:], cookie)
	fields := []*[]string{
		&m.KexAlgos, &m.ServerHostKeyAlgos,
		&m.CiphersClientServer, &m.CiphersServerClient,
		&m.MACsClientServer, &m.MACsServerClient,
		&m.CompressionClientServer, &m.CompressionServerClient,
		&m.LanguagesClientServer, &m.LanguagesServerClient,
	}
	for _, f := range fields {
		list, ok := getNameList(c)
		if !ok {
			return nil, ParseError{MsgType: msgKexInit}
		}
		*f = list
	}
	follows, ok := c.bool()
	if !ok {
		return nil, ParseError{MsgType: msgKexInit}
	}
	m.FirstKexFollows = follows
	return m, nil
}

func addNameList(b *buffer, names []string) {
	joined := joinComma(names)
	b.addSSHString([]byte(joined))
}

func getNameList(c *cursor) ([]string, bool) {
	s, ok := c.string()
	if !ok {
		return nil, false
	}
	if s == "" {
		return nil, true
	}
	return splitComma(s), true
}

func joinComma(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ","
		}
		out += n
	}
	return out
}

func splitComma(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// kexDHInitMsg is SSH_MSG_KEXDH_INIT (spec.md §4.5: INIT → INIT_TO_SEND).
type kexDHInitMsg struct {
	E *big.Int
}

// kexDHReplyMsg is SSH_MSG_KEXDH_REPLY.
type kexDHReplyMsg struct {
	HostKey   []byte
	F         *big.Int
	Signature []byte
}

func (m *kexDHInitMsg) marshal() []byte {
	var b buffer
	b.addU8(msgKexDHInit)
	b.addMPInt(m.E)
	return b.bytes()
}

func parseKexDHReply(payload []byte) (*kexDHReplyMsg, error) {
	c := newCursor(payload)
	hostKey, ok := c.sshString()
	if !ok {
		return nil, ParseError{MsgType: msgKexDHReply}
	}
	f, ok := c.mpInt()
	if !ok {
		return nil, ParseError{MsgType: msgKexDHReply}
	}
	sig, ok := c.sshString()
	if !ok {
		return nil, ParseError{MsgType: msgKexDHReply}
	}
	return &kexDHReplyMsg{HostKey: hostKey, F: f, Signature: sig}, nil
}

// kexECDHInitMsg is the curve25519/ECDH flavor of SSH_MSG_KEXDH_INIT
// (RFC 5656 §4).
type kexECDHInitMsg struct {
	ClientPubKey []byte
}

func (m *kexECDHInitMsg) marshal() []byte {
	var b buffer
	b.addU8(msgKexECDHInit)
	b.addSSHString(m.ClientPubKey)
	return b.bytes()
}

type kexECDHReplyMsg struct {
	HostKey         []byte
	EphemeralPubKey []byte
	Signature       []byte
}

func parseKexECDHReply(payload []byte) (*kexECDHReplyMsg, error) {
	c := newCursor(payload)
	hostKey, ok := c.sshString()
	if !ok {
		return nil, ParseError{MsgType: msgKexECDHReply}
	}
	pub, ok := c.sshString()
	if !ok {
		return nil, ParseError{MsgType: msgKexECDHReply}
	}
	sig, ok := c.sshString()
	if !ok {
		return nil, ParseError{MsgType: msgKexECDHReply}
	}
	return &kexECDHReplyMsg{HostKey: hostKey, EphemeralPubKey: pub, Signature: sig}, nil
}

// serviceRequestMsg / serviceAcceptMsg implement spec.md §4.6.
type serviceRequestMsg struct {
	Service string
}

func (m *serviceRequestMsg) marshal() []byte {
	var b buffer
	b.addU8(msgServiceRequest)
	b.addSSHString([]byte(m.Service))
	return b.bytes()
}

func parseServiceAccept(payload []byte) (string, error) {
	c := newCursor(payload)
	s, ok := c.string()
	if !ok {
		return "", ParseError{MsgType: msgServiceAccept}
	}
	return s, nil
}

// disconnectMsg implements spec.md §4.8.
type disconnectMsg struct {
	Reason      uint32
	Description string
}

func (m *disconnectMsg) marshal() []byte {
	var b buffer
	b.addU8(msgDisconnect)
	b.addU32(m.Reason)
	b.addSSHString([]byte(m.Description))
	b.addSSHString(nil)
	return b.bytes()
}

func newKeysMsg() []byte { return []byte{msgNewKeys} }
