// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

// runServiceRequest implements spec.md §4.6: issue SERVICE_REQUEST and
// await SERVICE_ACCEPT before exposing the connection to higher layers.
// It is re-entrant like the rest of the handshake: the first call sends
// the request and returns to wait for bytes, the next call parses
// whatever arrived.
func (s *Session) runServiceRequest() error {
	if !s.serviceRequested {
		s.outBuf.addBytes((&serviceRequestMsg{Service: s.config.serviceName()}).marshal())
		s.packetSend()
		if err := s.packetFlush(true); err != nil {
			s.fail(wrapFatal(err, "Sending SERVICE_REQUEST"))
			return s.lastError()
		}
		s.serviceRequested = true
	}

	payload, have, err := s.packetWait(msgServiceAccept)
	if err != nil {
		s.fail(toSessionError(err, "Awaiting SERVICE_ACCEPT"))
		return s.lastError()
	}
	if !have {
		return nil
	}
	accepted, perr := parseServiceAccept(payload[1:])
	if perr != nil {
		s.fail(toSessionError(perr, "Parsing SERVICE_ACCEPT"))
		return s.lastError()
	}
	if accepted != s.config.serviceName() {
		s.fail(fatalf("ssh: service %q not accepted", s.config.serviceName()))
		return s.lastError()
	}

	s.state = StateAuthenticating
	return nil
}
