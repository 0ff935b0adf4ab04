package core

import "math/bits"

// MerkleRoot builds the Merkle tree over leaves bottom-up: each layer pairs
// adjacent hashes and hashes their 64-byte concatenation; an odd leftover
// hash pairs with itself. The original Rust implementation's layer_up has an
// off-by-one that produces overlapping pairs on some layer lengths — this is
// the corrected algorithm, matching the pairwise, non-overlapping pass the
// spec and the testable properties (§8) require.
func MerkleRoot(leaves []Hash32) Hash32 {
	if len(leaves) == 0 {
		return Hash32{}
	}
	layer := append([]Hash32(nil), leaves...)
	for len(layer) > 1 {
		next := make([]Hash32, 0, (len(layer)+1)/2)
		for i := 0; i < len(layer); i += 2 {
			left := layer[i]
			right := left
			if i+1 < len(layer) {
				right = layer[i+1]
			}
			buf := make([]byte, 0, 64)
			buf = append(buf, left[:]...)
			buf = append(buf, right[:]...)
			next = append(next, DoubleSHA256(buf))
		}
		layer = next
	}
	return layer[0]
}

// MerkleHeight returns a tree's height: 1 for a single leaf, otherwise
// ceil(log2(n)) + 1.
func MerkleHeight(n int) int {
	if n <= 1 {
		return 1
	}
	return bits.Len(uint(n-1)) + 1
}
