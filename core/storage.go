// core/storage.go
package core

// Storage subsystem: append-only blkNNNNN.dat block files, a small on-disk
// KVStore for chain metadata, and an LRU read-through cache in front of the
// block files (metadata reads go straight to the KVStore).

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	defaultBlockCacheEntries = 512
	maxBlockFileSize         = 128 << 20 // rollover threshold, the same 128 MiB Bitcoin Core uses
)

// StorageAdapter is the persistence boundary the Validator writes through
// (§4.4, §4.7): it needs to know whether a block is already stored, how to
// append one, and how to look up a previously stored transaction's output
// so script verification (§4.4 step 3, "look up the referenced previous
// output") has something to check a ScriptSig against. Swappable for tests
// (an in-memory adapter) or for a different backing store without touching
// the Validator.
type StorageAdapter interface {
	HasBlock(hash Hash32) (bool, error)
	StoreBlock(b Block) error
	Output(txid Hash32, index uint32) (TxOutput, bool, error)
	Tip() (Hash32, bool, error)
	SetTip(hash Hash32) error
}

// KVStore is the narrow key/value interface chain metadata (current tip,
// height index) is kept behind, independent of how it's physically stored.
type KVStore interface {
	Get(key []byte) ([]byte, bool)
	Set(key []byte, value []byte) error
	Delete(key []byte) error
	// Iterator walks every key with the given prefix in lexicographic order,
	// for metadata scans (operator stats, a future height index) that have
	// no business knowing the physical layout behind KVStore.
	Iterator(prefix []byte) KVIterator
}

// KVIterator walks a KVStore prefix scan. Call Next before the first Key/Value.
type KVIterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Close() error
}

// blockLocation records where a stored block's length-prefixed record lives:
// which blkNNNNN.dat file, and the byte offset of its length prefix.
type blockLocation struct {
	fileIdx int
	offset  int64
}

// FileStore is the disk-backed StorageAdapter: blocks are appended to
// sequentially-numbered files and never rewritten in place, the same
// append-only discipline Bitcoin Core uses for its block files. An LRU
// keeps recently touched blocks off the disk path.
type FileStore struct {
	mu      sync.Mutex
	dir     string
	index   map[Hash32]blockLocation
	txIndex map[Hash32]Transaction
	cache   *lru.Cache[Hash32, Block]
	kv      KVStore

	curIdx  int
	curFile *os.File
	curSize int64
}

// tipKey is the metadata key the chain tip is persisted under, so a
// restarted process resumes sync from where it left off instead of
// re-requesting headers from genesis.
var tipKey = []byte("tip")

// NewFileStore opens (creating if absent) dir as the block store, replaying
// every existing blkNNNNN.dat file to rebuild the in-memory hash index, and
// positions the write cursor at the end of the highest-numbered file.
func NewFileStore(dir string, cacheEntries int) (*FileStore, error) {
	if cacheEntries <= 0 {
		cacheEntries = defaultBlockCacheEntries
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, Storage(err)
	}
	cache, err := lru.New[Hash32, Block](cacheEntries)
	if err != nil {
		return nil, Storage(err)
	}
	kv, err := NewFileKV(filepath.Join(dir, "meta"))
	if err != nil {
		return nil, err
	}
	s := &FileStore{
		dir:     dir,
		index:   make(map[Hash32]blockLocation),
		txIndex: make(map[Hash32]Transaction),
		cache:   cache,
		kv:      kv,
	}
	if err := s.loadIndex(); err != nil {
		return nil, err
	}
	if err := s.openTailFile(); err != nil {
		return nil, err
	}
	return s, nil
}

func blockFileName(idx int) string { return fmt.Sprintf("blk%05d.dat", idx) }

// loadIndex scans every blkNNNNN.dat file present in dir, in lexicographic
// (equivalently numeric) order, decoding each length-prefixed record to
// recover the hash -> location map a fresh process needs before it can
// answer HasBlock.
func (s *FileStore) loadIndex() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return Storage(err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".dat" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		var idx int
		if _, err := fmt.Sscanf(name, "blk%05d.dat", &idx); err != nil {
			continue
		}
		if err := s.indexFile(idx, name); err != nil {
			return err
		}
		if idx > s.curIdx {
			s.curIdx = idx
		}
	}
	return nil
}

func (s *FileStore) indexFile(idx int, name string) error {
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		return Storage(err)
	}
	defer f.Close()

	var offset int64
	lenBuf := make([]byte, 4)
	for {
		if _, err := f.ReadAt(lenBuf, offset); err != nil {
			break // EOF or short read: end of this file's valid records
		}
		recLen := binary.LittleEndian.Uint32(lenBuf)
		body := make([]byte, recLen)
		if _, err := f.ReadAt(body, offset+4); err != nil {
			break
		}
		blk, _, err := BlockFromBytes(body)
		if err != nil {
			break
		}
		s.index[blk.ID()] = blockLocation{fileIdx: idx, offset: offset}
		s.indexTransactions(blk)
		offset += 4 + int64(recLen)
	}
	return nil
}

// openTailFile opens the highest-numbered blk file for append, rolling to a
// new one if it is already at or past maxBlockFileSize.
func (s *FileStore) openTailFile() error {
	path := filepath.Join(s.dir, blockFileName(s.curIdx))
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return Storage(err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return Storage(err)
	}
	if info.Size() >= maxBlockFileSize {
		f.Close()
		s.curIdx++
		return s.openTailFile()
	}
	s.curFile = f
	s.curSize = info.Size()
	return nil
}

// HasBlock reports whether hash is already stored, without touching disk.
func (s *FileStore) HasBlock(hash Hash32) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[hash]
	return ok, nil
}

// StoreBlock appends b's serialized form, length-prefixed, to the tail
// file, rolling to a new file first if the append would exceed
// maxBlockFileSize. Returns ErrAlreadyExists if the block is already
// indexed.
func (s *FileStore) StoreBlock(b Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash := b.ID()
	if _, ok := s.index[hash]; ok {
		return Storage(ErrAlreadyExists)
	}

	body := b.Bytes()
	if s.curSize+4+int64(len(body)) > maxBlockFileSize {
		if err := s.curFile.Close(); err != nil {
			return Storage(err)
		}
		s.curIdx++
		if err := s.openTailFile(); err != nil {
			return err
		}
	}

	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(len(body)))
	offset := s.curSize
	if _, err := s.curFile.WriteAt(lenBuf, offset); err != nil {
		return Storage(err)
	}
	if _, err := s.curFile.WriteAt(body, offset+4); err != nil {
		return Storage(err)
	}
	s.curSize += 4 + int64(len(body))

	s.index[hash] = blockLocation{fileIdx: s.curIdx, offset: offset}
	s.indexTransactions(b)
	s.cache.Add(hash, b)
	return nil
}

// indexTransactions records every transaction in b under its own ID, so a
// later spend's input can look up the output it references. Keeping full
// transaction bodies in memory (rather than only the unspent outputs, the
// way a production full node would) is this client's deliberate
// simplification: it never runs against the entire mainnet history, and
// the simpler index avoids tracking spends to prune entries.
func (s *FileStore) indexTransactions(b Block) {
	for _, tx := range b.Transactions {
		s.txIndex[tx.ID()] = tx
	}
}

// Output looks up the index-th output of a previously stored transaction,
// the data §4.4's script-verification step needs for each non-coinbase
// input.
func (s *FileStore) Output(txid Hash32, index uint32) (TxOutput, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txIndex[txid]
	if !ok || int(index) >= len(tx.Outputs) {
		return TxOutput{}, false, nil
	}
	return tx.Outputs[index], true, nil
}

// GetBlock returns a previously stored block, consulting the LRU cache
// before reading the backing file.
func (s *FileStore) GetBlock(hash Hash32) (Block, bool, error) {
	s.mu.Lock()
	if blk, ok := s.cache.Get(hash); ok {
		s.mu.Unlock()
		return blk, true, nil
	}
	loc, ok := s.index[hash]
	s.mu.Unlock()
	if !ok {
		return Block{}, false, nil
	}

	f, err := os.Open(filepath.Join(s.dir, blockFileName(loc.fileIdx)))
	if err != nil {
		return Block{}, false, Storage(err)
	}
	defer f.Close()

	lenBuf := make([]byte, 4)
	if _, err := f.ReadAt(lenBuf, loc.offset); err != nil {
		return Block{}, false, Storage(err)
	}
	recLen := binary.LittleEndian.Uint32(lenBuf)
	body := make([]byte, recLen)
	if _, err := f.ReadAt(body, loc.offset+4); err != nil {
		return Block{}, false, Storage(err)
	}
	blk, _, err := BlockFromBytes(body)
	if err != nil {
		return Block{}, false, Storage(err)
	}
	s.mu.Lock()
	s.cache.Add(hash, blk)
	s.mu.Unlock()
	return blk, true, nil
}

// Tip returns the chain tip persisted by the last SetTip call, so a
// restarted process can resume sync instead of re-requesting headers from
// genesis. The bool return is false if no tip has ever been set.
func (s *FileStore) Tip() (Hash32, bool, error) {
	raw, ok := s.kv.Get(tipKey)
	if !ok {
		return Hash32{}, false, nil
	}
	if len(raw) != len(Hash32{}) {
		return Hash32{}, false, Storage(fmt.Errorf("corrupt tip record: %d bytes", len(raw)))
	}
	var tip Hash32
	copy(tip[:], raw)
	return tip, true, nil
}

// SetTip persists hash as the current chain tip.
func (s *FileStore) SetTip(hash Hash32) error {
	return s.kv.Set(tipKey, hash[:])
}

// MetadataKeys lists the keys stored under prefix in the metadata KVStore,
// for operator tooling that wants to inspect what's been persisted (the
// chain tip today; a future height index would live under its own prefix)
// without knowing fileKV's on-disk layout.
func (s *FileStore) MetadataKeys(prefix []byte) ([][]byte, error) {
	it := s.kv.Iterator(prefix)
	defer it.Close()
	var keys [][]byte
	for it.Next() {
		keys = append(keys, append([]byte(nil), it.Key()...))
	}
	return keys, it.Close()
}

// Close releases the open tail file handle.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.curFile == nil {
		return nil
	}
	return s.curFile.Close()
}

// fileKV is a small KVStore that keeps one file per key under dir, used for
// small unbounded chain metadata (current tip hash, height index) rather
// than evictable blobs.
type fileKV struct {
	mu  sync.RWMutex
	dir string
}

// NewFileKV opens dir (creating it if absent) as a metadata KVStore.
func NewFileKV(dir string) (KVStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, Storage(err)
	}
	return &fileKV{dir: dir}, nil
}

func (k *fileKV) keyPath(key []byte) string {
	return filepath.Join(k.dir, fmt.Sprintf("%x.kv", key))
}

func (k *fileKV) Get(key []byte) ([]byte, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	b, err := os.ReadFile(k.keyPath(key))
	if err != nil {
		return nil, false
	}
	return b, true
}

func (k *fileKV) Set(key, value []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := os.WriteFile(k.keyPath(key), value, 0o644); err != nil {
		return Storage(err)
	}
	return nil
}

func (k *fileKV) Delete(key []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := os.Remove(k.keyPath(key)); err != nil && !os.IsNotExist(err) {
		return Storage(err)
	}
	return nil
}

// Iterator lists every key/value file under dir whose hex-decoded key
// carries the given prefix, sorted lexicographically. It snapshots the
// directory up front rather than streaming it, so a concurrent Set/Delete
// can't corrupt an in-progress scan.
func (k *fileKV) Iterator(prefix []byte) KVIterator {
	k.mu.RLock()
	defer k.mu.RUnlock()

	entries, err := os.ReadDir(k.dir)
	if err != nil {
		return &fileKVIterator{err: Storage(err)}
	}
	var keys [][]byte
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".kv" {
			continue
		}
		raw, err := hex.DecodeString(strings.TrimSuffix(e.Name(), ".kv"))
		if err != nil {
			continue
		}
		if bytesHasPrefix(raw, prefix) {
			keys = append(keys, raw)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return bytesCompare(keys[i], keys[j]) < 0 })
	return &fileKVIterator{kv: k, keys: keys, index: -1}
}

func bytesHasPrefix(b, prefix []byte) bool {
	if len(prefix) > len(b) {
		return false
	}
	return bytesEqual(b[:len(prefix)], prefix)
}

func bytesCompare(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// fileKVIterator is the fileKV implementation of KVIterator: it holds the
// keys snapshotted at Iterator time and reads each value lazily as Next
// advances, so a scan over many keys doesn't load them all into memory at
// once.
type fileKVIterator struct {
	kv    *fileKV
	keys  [][]byte
	index int
	value []byte
	err   error
}

func (it *fileKVIterator) Next() bool {
	if it.err != nil {
		return false
	}
	it.index++
	if it.index >= len(it.keys) {
		return false
	}
	v, ok := it.kv.Get(it.keys[it.index])
	if !ok {
		return it.Next()
	}
	it.value = v
	return true
}

func (it *fileKVIterator) Key() []byte {
	if it.index < 0 || it.index >= len(it.keys) {
		return nil
	}
	return it.keys[it.index]
}

func (it *fileKVIterator) Value() []byte { return it.value }

func (it *fileKVIterator) Close() error { return it.err }
