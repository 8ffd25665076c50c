// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession() *Session {
	return NewSession(&ClientConfig{Versions: DefaultVersionPolicy})
}

// TestBannerWholeLine checks the baseline case: one on_data call
// delivering the full banner line.
func TestBannerWholeLine(t *testing.T) {
	s := newTestSession()
	line := []byte("SSH-2.0-OpenSSH_9.6\r\n")
	consumed, err := bannerDecoder{}.onData(s, line)
	require.NoError(t, err)
	assert.Equal(t, len(line), consumed)
	assert.Equal(t, "SSH-2.0-OpenSSH_9.6", string(s.peerBanner))
	assert.Equal(t, StateBannerReceived, s.state)
}

// TestBannerPartialDelivery is the spec's banner partial-delivery
// idempotence property: splitting a valid banner across N on_data calls
// at arbitrary byte boundaries yields the same parsed result as
// delivering it whole.
func TestBannerPartialDelivery(t *testing.T) {
	full := []byte("SSH-2.0-OpenSSH_8.9p1 Ubuntu-3\r\n")
	for split := 1; split < len(full); split++ {
		s := newTestSession()
		first, second := full[:split], full[split:]

		consumed, err := bannerDecoder{}.onData(s, first)
		require.NoError(t, err)
		assert.Equal(t, 0, consumed, "split at %d: must not consume before newline", split)
		assert.Empty(t, s.peerBanner)

		consumed, err = bannerDecoder{}.onData(s, append(append([]byte(nil), first...), second...))
		require.NoError(t, err)
		assert.Equal(t, len(full), consumed)
		assert.Equal(t, "SSH-2.0-OpenSSH_8.9p1 Ubuntu-3", string(s.peerBanner))
	}
}

func TestBannerTooLarge(t *testing.T) {
	s := newTestSession()
	huge := make([]byte, maxBannerLength+1)
	for i := range huge {
		huge[i] = 'x'
	}
	_, err := bannerDecoder{}.onData(s, huge)
	assert.Error(t, err)
	assert.Equal(t, StateError, s.state)
}

func TestAnalyzeBannerRejectsUnknownProtocol(t *testing.T) {
	s := newTestSession()
	s.peerBanner = []byte("HTTP-1.1-nope")
	err := s.analyzeBanner()
	assert.Error(t, err)
}

func TestAnalyzeBannerPicksV2(t *testing.T) {
	s := newTestSession()
	s.peerBanner = []byte("SSH-2.0-OpenSSH_9.6")
	require.NoError(t, s.analyzeBanner())
	assert.Equal(t, 2, s.version)
	require.NotNil(t, s.peerVendorVersion)
	assert.Equal(t, 9, s.peerVendorVersion.Major)
	assert.Equal(t, 6, s.peerVendorVersion.Minor)
}

func TestAnalyzeBannerRejectsV1WhenDisallowed(t *testing.T) {
	s := newTestSession()
	s.config.Versions = VersionPolicy{AllowV1: false, AllowV2: true}
	s.peerBanner = []byte("SSH-1.5-OpenSSH_1.0")
	err := s.analyzeBanner()
	assert.Error(t, err)
}

func TestParseVendorVersionWidthIndependence(t *testing.T) {
	for _, tc := range []struct {
		banner string
		major  int
		minor  int
	}{
		{"SSH-2.0-OpenSSH_7.4", 7, 4},
		{"SSH-2.0-OpenSSH_10.0p1", 10, 0},
		{"SSH-2.0-OpenSSH_6.6.1p1", 6, 6},
	} {
		v := parseVendorVersion([]byte(tc.banner))
		require.NotNil(t, v, tc.banner)
		assert.Equal(t, tc.major, v.Major, tc.banner)
		assert.Equal(t, tc.minor, v.Minor, tc.banner)
	}
}

func TestParseVendorVersionAbsent(t *testing.T) {
	v := parseVendorVersion([]byte("SSH-2.0-dropbear_2022.83"))
	assert.Nil(t, v)
}

func TestPackedOpenSSHVersion(t *testing.T) {
	assert.Equal(t, uint32(0), packedOpenSSHVersion(nil))
	assert.Equal(t, uint32(9)<<16|6, packedOpenSSHVersion(&VendorVersion{Major: 9, Minor: 6}))
}
