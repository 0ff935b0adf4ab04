package core

import (
	"encoding/hex"
	"testing"
)

func TestDoubleSHA256Babar(t *testing.T) {
	got := DoubleSHA256([]byte("babar"))
	want := "c24daaa67001fc358d73b30060abdfa53c5ceb53982d9052c3d91b1d3991eb40"
	if hex.EncodeToString(got[:]) != want {
		t.Fatalf("hash32(babar) = %x, want %s", got, want)
	}
}

func TestHash160Babar(t *testing.T) {
	got := Hash160([]byte("babar"))
	want := "7bf35740091d766c45e3c052aa173fa4af80027d"
	if hex.EncodeToString(got[:]) != want {
		t.Fatalf("hash20(babar) = %x, want %s", got, want)
	}
}

func TestHash32DisplayRoundTrip(t *testing.T) {
	const s = "000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f"
	h, err := Hash32FromDisplay(s)
	if err != nil {
		t.Fatalf("Hash32FromDisplay: %v", err)
	}
	if h.DisplayString() != s {
		t.Fatalf("round trip mismatch: got %s, want %s", h.DisplayString(), s)
	}
}

func TestHash32IsZero(t *testing.T) {
	var h Hash32
	if !h.IsZero() {
		t.Fatalf("zero-value Hash32 should report IsZero")
	}
	h[0] = 1
	if h.IsZero() {
		t.Fatalf("non-zero Hash32 should not report IsZero")
	}
}
