// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindCommonAlgorithmPrefersClientOrder(t *testing.T) {
	client := []string{"c", "b", "a"}
	server := []string{"a", "b", "c"}
	got, ok := findCommonAlgorithm(client, server)
	require.True(t, ok)
	assert.Equal(t, "c", got, "must pick the client's first preference present on the server")
}

func TestFindCommonAlgorithmNoOverlap(t *testing.T) {
	_, ok := findCommonAlgorithm([]string{"x"}, []string{"y"})
	assert.False(t, ok)
}

func kexInitFor(kex, hostKey, cipher, mac []string) *kexInitMsg {
	return &kexInitMsg{
		KexAlgos:                kex,
		ServerHostKeyAlgos:      hostKey,
		CiphersClientServer:     cipher,
		CiphersServerClient:     cipher,
		MACsClientServer:        mac,
		MACsServerClient:        mac,
		CompressionClientServer: supportedCompressions,
		CompressionServerClient: supportedCompressions,
	}
}

// TestChooseAlgorithmsDeterministic is the spec's algorithm-selection
// determinism property: the same (client, server) KEXINIT pair always
// yields the same negotiated set, independent of how many times it runs.
func TestChooseAlgorithmsDeterministic(t *testing.T) {
	client := kexInitFor(defaultKeyExchangeOrder, supportedHostKeyAlgos, DefaultCipherOrder, DefaultMACOrder)
	server := kexInitFor(
		[]string{kexAlgoDH14SHA1, kexAlgoCurve25519},
		[]string{KeyAlgoRSA, KeyAlgoED25519},
		[]string{cipherAES128CTR, cipherChaCha20Poly1305},
		[]string{macHMACSHA1, macHMACSHA256},
	)

	first, err := chooseAlgorithms(client, server)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := chooseAlgorithms(client, server)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, kexAlgoCurve25519, first.kex)
	assert.Equal(t, KeyAlgoED25519, first.hostKey)
	assert.Equal(t, cipherChaCha20Poly1305, first.cipherClientServer)
	assert.Empty(t, first.macClientServer, "AEAD cipher must not consume a MAC slot")
}

func TestChooseAlgorithmsNoCommonKex(t *testing.T) {
	client := kexInitFor([]string{kexAlgoCurve25519}, supportedHostKeyAlgos, DefaultCipherOrder, DefaultMACOrder)
	server := kexInitFor([]string{kexAlgoDH1SHA1}, supportedHostKeyAlgos, DefaultCipherOrder, DefaultMACOrder)
	_, err := chooseAlgorithms(client, server)
	assert.Error(t, err)
}

func TestChooseAlgorithmsClassicCipherRequiresMAC(t *testing.T) {
	client := kexInitFor(defaultKeyExchangeOrder, supportedHostKeyAlgos, []string{cipherAES128CTR}, []string{})
	server := kexInitFor(defaultKeyExchangeOrder, supportedHostKeyAlgos, []string{cipherAES128CTR}, []string{macHMACSHA1})
	_, err := chooseAlgorithms(client, server)
	assert.Error(t, err, "classic cipher with no common MAC must fail negotiation")
}

func TestIsAEADClassification(t *testing.T) {
	assert.True(t, isAEAD(cipherChaCha20Poly1305))
	assert.False(t, isAEAD(cipherAES128CTR))
}

func TestKexAlgorithmClassification(t *testing.T) {
	assert.True(t, isCurve25519(kexAlgoCurve25519))
	assert.True(t, isCurve25519(kexAlgoCurve25519At))
	assert.True(t, isECDH(kexAlgoECDH256))
	assert.True(t, isFiniteFieldDH(kexAlgoDH14SHA1))
	assert.False(t, isFiniteFieldDH(kexAlgoECDH256))
}
