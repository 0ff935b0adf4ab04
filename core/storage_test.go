package core

import (
	"testing"
)

func TestFileStoreStoreAndHas(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, 0)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	defer store.Close()

	blk := GenesisBlock(1, 1231006505, 2083236893, 486604799, 5_000_000_000)

	has, err := store.HasBlock(blk.ID())
	if err != nil || has {
		t.Fatalf("expected block absent before store, has=%v err=%v", has, err)
	}

	if err := store.StoreBlock(blk); err != nil {
		t.Fatalf("StoreBlock: %v", err)
	}

	has, err = store.HasBlock(blk.ID())
	if err != nil || !has {
		t.Fatalf("expected block present after store, has=%v err=%v", has, err)
	}

	if err := store.StoreBlock(blk); err == nil {
		t.Fatalf("expected ErrAlreadyExists on duplicate store")
	}

	got, ok, err := store.GetBlock(blk.ID())
	if err != nil || !ok {
		t.Fatalf("GetBlock: ok=%v err=%v", ok, err)
	}
	if got.ID() != blk.ID() {
		t.Fatalf("round-tripped block hash mismatch")
	}

	coinbase := blk.Transactions[0]
	out, ok, err := store.Output(coinbase.ID(), 0)
	if err != nil || !ok {
		t.Fatalf("Output: ok=%v err=%v", ok, err)
	}
	if out.Value != coinbase.Outputs[0].Value {
		t.Fatalf("Output value mismatch: got %d want %d", out.Value, coinbase.Outputs[0].Value)
	}
	if _, ok, _ := store.Output(coinbase.ID(), 1); ok {
		t.Fatalf("expected out-of-range output index to report absent")
	}
}

func TestFileStoreReloadsIndex(t *testing.T) {
	dir := t.TempDir()
	blk := GenesisBlock(1, 1231006505, 2083236893, 486604799, 5_000_000_000)

	store, err := NewFileStore(dir, 0)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := store.StoreBlock(blk); err != nil {
		t.Fatalf("StoreBlock: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewFileStore(dir, 0)
	if err != nil {
		t.Fatalf("reopen NewFileStore: %v", err)
	}
	defer reopened.Close()

	has, err := reopened.HasBlock(blk.ID())
	if err != nil || !has {
		t.Fatalf("expected index rebuilt from disk, has=%v err=%v", has, err)
	}
}

func TestFileStorePersistsTipAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	blk := GenesisBlock(1, 1231006505, 2083236893, 486604799, 5_000_000_000)

	store, err := NewFileStore(dir, 0)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, ok, err := store.Tip(); err != nil || ok {
		t.Fatalf("expected no tip before SetTip, ok=%v err=%v", ok, err)
	}
	if err := store.SetTip(blk.ID()); err != nil {
		t.Fatalf("SetTip: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewFileStore(dir, 0)
	if err != nil {
		t.Fatalf("reopen NewFileStore: %v", err)
	}
	defer reopened.Close()

	tip, ok, err := reopened.Tip()
	if err != nil || !ok {
		t.Fatalf("expected persisted tip after reopen, ok=%v err=%v", ok, err)
	}
	if tip != blk.ID() {
		t.Fatalf("tip mismatch: got %x want %x", tip, blk.ID())
	}
}

func TestFileKVGetSetDelete(t *testing.T) {
	dir := t.TempDir()
	kv, err := NewFileKV(dir)
	if err != nil {
		t.Fatalf("NewFileKV: %v", err)
	}

	if _, ok := kv.Get([]byte("tip")); ok {
		t.Fatalf("expected no value before Set")
	}

	if err := kv.Set([]byte("tip"), []byte("deadbeef")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok := kv.Get([]byte("tip"))
	if !ok || string(v) != "deadbeef" {
		t.Fatalf("Get mismatch: ok=%v v=%s", ok, v)
	}

	if err := kv.Delete([]byte("tip")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := kv.Get([]byte("tip")); ok {
		t.Fatalf("expected no value after Delete")
	}
}
