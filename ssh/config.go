// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"crypto/rand"
	"io"

	"github.com/sirupsen/logrus"
)

// clientVersion is what ClientConfig.version returns when
// ClientConfig.ClientVersion is empty. The banner actually sent is built
// by emitClientBanner, whose default is "SSH-2.0-" (or "SSH-1.5-")
// followed by implTag, not this value.
var clientVersion = []byte("SSH-2.0-goSSHhandshake")

// HostKeyChecker validates a server's host key during the cryptographic
// handshake. Carried verbatim from the teacher's ClientConfig contract.
type HostKeyChecker interface {
	Check(dialAddress string, remote io.Reader, hostKeyAlgo string, hostKey []byte) error
}

// ProgressFunc receives the [0.0, 1.0] milestone values described in
// spec.md §6. It may be nil; every emission site is null-safe.
type ProgressFunc func(userdata interface{}, progress float64)

// ExceptionFunc is invoked when the transport driver observes a socket
// exception (spec.md §4.1 on_exception).
type ExceptionFunc func(userdata interface{}, err error)

// Callbacks bundles the user-supplied progress/exception handlers with an
// opaque user datum, matching the Session.callbacks record from §3.
type Callbacks struct {
	Progress  ProgressFunc
	Exception ExceptionFunc
	UserData  interface{}
}

func (c Callbacks) emit(progress float64) {
	if c.Progress != nil {
		c.Progress(c.UserData, progress)
	}
}

func (c Callbacks) emitException(err error) {
	if c.Exception != nil {
		c.Exception(c.UserData, err)
	}
}

// CryptoConfig is cryptographic configuration common to the handshake; it
// mirrors the teacher's CryptoConfig in common.go, generalized to carry an
// explicit version preference alongside algorithm preference lists.
type CryptoConfig struct {
	// KeyExchanges lists allowed key exchange algorithms in preference
	// order. Nil selects defaultKeyExchangeOrder.
	KeyExchanges []string

	// Ciphers lists allowed cipher algorithms in preference order. Nil
	// selects DefaultCipherOrder.
	Ciphers []string

	// MACs lists allowed MAC algorithms in preference order. Nil selects
	// DefaultMACOrder.
	MACs []string

	// HostKeyAlgos lists allowed host key algorithms. Nil selects
	// supportedHostKeyAlgos.
	HostKeyAlgos []string
}

func (c *CryptoConfig) ciphers() []string {
	if c.Ciphers == nil {
		return DefaultCipherOrder
	}
	return c.Ciphers
}

func (c *CryptoConfig) kexes() []string {
	if c.KeyExchanges == nil {
		return defaultKeyExchangeOrder
	}
	return c.KeyExchanges
}

func (c *CryptoConfig) macs() []string {
	if c.MACs == nil {
		return DefaultMACOrder
	}
	return c.MACs
}

func (c *CryptoConfig) hostKeyAlgos() []string {
	if c.HostKeyAlgos == nil {
		return supportedHostKeyAlgos
	}
	return c.HostKeyAlgos
}

// VersionPolicy controls which SSH protocol major versions the local
// side is willing to speak, feeding spec.md §4.2 step 3 (version choice).
type VersionPolicy struct {
	AllowV1 bool
	AllowV2 bool
}

// DefaultVersionPolicy allows only SSHv2, matching this core's declared
// scope (spec.md §1 Non-goals: "SSHv1 handshake details beyond version
// selection").
var DefaultVersionPolicy = VersionPolicy{AllowV1: false, AllowV2: true}

// ClientConfig configures a Session. After being passed to Connect it
// must not be modified, mirroring the teacher's ClientConfig contract.
type ClientConfig struct {
	// Rand provides the source of entropy for the ephemeral key exchange
	// keys. Nil selects crypto/rand.Reader. The KEXINIT cookie and packet
	// padding always come from crypto/rand.
	Rand io.Reader

	// ClientVersion is the identification string used for the
	// connection. Empty selects a reasonable default.
	ClientVersion string

	// Versions controls v1/v2 negotiation.
	Versions VersionPolicy

	// Crypto is the cryptographic algorithm configuration.
	Crypto CryptoConfig

	// HostKeyChecker, if not nil, validates the server's host key.
	// A nil HostKeyChecker accepts any host key (caller beware).
	HostKeyChecker HostKeyChecker

	// Callbacks receives progress/exception notifications.
	Callbacks Callbacks

	// Logger receives structured handshake diagnostics. Nil selects
	// logrus.StandardLogger().
	Logger *logrus.Logger

	// ServiceName is the service requested after NEWKEYS (spec.md §4.6).
	// Empty selects "ssh-userauth".
	ServiceName string
}

func (c *ClientConfig) rand() io.Reader {
	if c.Rand == nil {
		return rand.Reader
	}
	return c.Rand
}

func (c *ClientConfig) version() []byte {
	if len(c.ClientVersion) > 0 {
		return []byte(c.ClientVersion)
	}
	return clientVersion
}

func (c *ClientConfig) logger() *logrus.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logrus.StandardLogger()
}

func (c *ClientConfig) serviceName() string {
	if c.ServiceName != "" {
		return c.ServiceName
	}
	return serviceUserAuth
}
