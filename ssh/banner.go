// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"bytes"
)

const maxBannerLength = 128

// VendorVersion is the (major, minor) pair parsed from an "OpenSSH_x.y"
// substring of the peer's banner (spec.md §4.2 step 2).
type VendorVersion struct {
	Major, Minor int
}

// bannerDecoder is the initial active decoder (spec.md §4.2). It scans
// for the first '\n', stripping a preceding '\r', and is tolerant of
// arbitrary chunking: splitting a valid banner across N on_data calls
// yields the same parsed result as delivering it in one call.
type bannerDecoder struct{}

func (bannerDecoder) onData(s *Session, data []byte) (int, error) {
	idx := bytes.IndexByte(data, '\n')
	if idx < 0 {
		if len(data) >= maxBannerLength {
			s.fail(fatalf("Receiving banner: too large banner"))
			return 0, s.lastError()
		}
		// Incomplete: consume nothing, wait for more bytes. The caller
		// (transport driver) is responsible for re-presenting data plus
		// whatever it appends next time.
		return 0, nil
	}
	if idx+1 > maxBannerLength {
		s.fail(fatalf("Receiving banner: too large banner"))
		return 0, s.lastError()
	}
	line := data[:idx+1]
	trimmed := line[:len(line)-1]
	if len(trimmed) > 0 && trimmed[len(trimmed)-1] == '\r' {
		trimmed = trimmed[:len(trimmed)-1]
	}
	s.peerBanner = append([]byte(nil), trimmed...)
	s.state = StateBannerReceived
	return idx + 1, nil
}

// analyzeBanner implements spec.md §4.2 steps 1-3: protocol detection,
// vendor detection, and version choice.
func (s *Session) analyzeBanner() error {
	b := s.peerBanner
	if len(b) < 5 || string(b[:4]) != "SSH-" {
		return fatalf("Protocol mismatch: %s", b)
	}

	peerV1, peerV2 := false, false
	switch b[4] {
	case '1':
		peerV1 = true
		if len(b) > 6 && b[6] == '9' {
			peerV2 = true // "SSH-1.99-..."
		}
	case '2':
		peerV2 = true
	default:
		return fatalf("Protocol mismatch: %s", b)
	}

	s.peerVendorVersion = parseVendorVersion(b)
	s.magics.serverVersion = append([]byte(nil), b...)

	switch {
	case peerV2 && s.config.Versions.AllowV2:
		s.version = 2
	case peerV1 && s.config.Versions.AllowV1:
		s.version = 1
	default:
		return fatalf("No version of SSH protocol usable")
	}
	return nil
}

// parseVendorVersion scans for "OpenSSH_" and numerically parses the two
// decimal fields that follow, per the spec's Open Question resolution
// (numeric scan rather than fixed byte offsets).
func parseVendorVersion(banner []byte) *VendorVersion {
	const marker = "OpenSSH_"
	idx := bytes.Index(banner, []byte(marker))
	if idx < 0 {
		return nil
	}
	rest := banner[idx+len(marker):]
	major, n, ok := scanDecimal(rest)
	if !ok {
		return nil
	}
	rest = rest[n:]
	if len(rest) == 0 || rest[0] != '.' {
		return nil
	}
	rest = rest[1:]
	minor, _, ok := scanDecimal(rest)
	if !ok {
		return nil
	}
	return &VendorVersion{Major: major, Minor: minor}
}

func scanDecimal(b []byte) (value int, consumed int, ok bool) {
	for consumed < len(b) && b[consumed] >= '0' && b[consumed] <= '9' {
		value = value*10 + int(b[consumed]-'0')
		consumed++
	}
	return value, consumed, consumed > 0
}

// packedOpenSSHVersion packs (major, minor) the way get_openssh_version
// reports it (spec.md §6): major in the high 16 bits, minor in the low.
func packedOpenSSHVersion(v *VendorVersion) uint32 {
	if v == nil {
		return 0
	}
	return uint32(v.Major)<<16 | uint32(v.Minor&0xffff)
}

// emitClientBanner implements spec.md §4.2 step 4: write the local
// identification string, flush, and swap in the cleartext packet
// decoder.
func (s *Session) emitClientBanner() error {
	var banner []byte
	if len(s.config.ClientVersion) > 0 {
		banner = []byte(s.config.ClientVersion)
	} else if s.version == 2 {
		banner = append([]byte("SSH-2.0-"), implTag()...)
	} else {
		banner = append([]byte("SSH-1.5-"), implTag()...)
	}
	s.selfBanner = banner
	s.magics.clientVersion = append([]byte(nil), banner...)

	if _, err := s.socket.Write(append(append([]byte(nil), banner...), '\r', '\n')); err != nil {
		return wrapFatal(err, "sending banner")
	}
	if err := s.socket.Flush(true); err != nil {
		return wrapFatal(err, "sending banner")
	}

	s.activeDecoder = cleartextPacketDecoder{}
	s.callbacks.emit(0.5)
	s.state = StateInitialKex
	return nil
}

func implTag() []byte {
	return []byte("goSSHhandshake_1.0")
}
