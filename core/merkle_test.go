package core

import "testing"

func TestMerkleRootSingleLeaf(t *testing.T) {
	leaf := Hash32{1, 2, 3}
	if got := MerkleRoot([]Hash32{leaf}); got != leaf {
		t.Fatalf("single-leaf root should equal the leaf itself, got %x", got)
	}
}

func TestMerkleRootEmpty(t *testing.T) {
	if got := MerkleRoot(nil); got != (Hash32{}) {
		t.Fatalf("empty leaf set should produce the zero hash, got %x", got)
	}
}

func TestMerkleRootOddLeafCount(t *testing.T) {
	var a, b, c Hash32
	for i := range a {
		a[i] = 0
		b[i] = 1
		c[i] = 2
	}
	got := MerkleRoot([]Hash32{a, b, c})
	want := [32]byte{0xd6, 0x38, 0x46, 0x40, 0x76, 0x2f, 0x79, 0x7e, 0xde, 0x7e, 0x7f, 0x13, 0x83, 0x92, 0x22, 0xf9, 0x45, 0x22, 0x72, 0x80, 0x99, 0x32, 0xcc, 0x60, 0x89, 0xf7, 0x01, 0x33, 0x1d, 0xf4, 0x55, 0x2d}
	if Hash32(want) != got {
		t.Fatalf("odd-leaf merkle root = %x, want %x", got, want)
	}
}

func TestMerkleHeight(t *testing.T) {
	cases := []struct {
		n    int
		want int
	}{
		{0, 1},
		{1, 1},
		{2, 2},
		{3, 3},
		{4, 3},
		{5, 4},
		{8, 4},
	}
	for _, c := range cases {
		if got := MerkleHeight(c.n); got != c.want {
			t.Fatalf("MerkleHeight(%d) = %d, want %d", c.n, got, c.want)
		}
	}
}
