// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import "math/big"

// burn overwrites b with zeros in place. It is the secure-zeroize
// primitive spec.md §5 requires for every locally-owned DH temporary on
// every error path, and for retired crypto material at the NEWKEYS
// rotation boundary.
func burn(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// burnInt zeroizes the words backing a big.Int before it is released.
// SetInt64(0) alone is not enough: math/big's nat.setWord(0) just
// truncates the word slice to length 0 (z[:0]), leaving the original
// words live in the backing array. Bits() returns that backing array
// directly (no copy), so overwrite it in place before truncating.
func burnInt(n *big.Int) {
	if n == nil {
		return
	}
	bits := n.Bits()
	for i := range bits {
		bits[i] = 0
	}
	n.SetInt64(0)
}
