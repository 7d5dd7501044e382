// Package tabledb persists kangaroo tables in a leveldb database, keyed by
// their content fingerprint, and keeps recently decoded tables in memory.
package tabledb

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	lru "github.com/hashicorp/golang-lru"
	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/tos-network/kangaroo/crypto/kangaroo"
	"github.com/tos-network/kangaroo/log"
)

const (
	// minCache is the smallest leveldb block cache in megabytes.
	minCache = 16

	// inmemoryTables is the default number of decoded tables kept in memory.
	inmemoryTables = 8
)

var (
	blobPrefix = []byte("ktab-")  // blobPrefix + hash -> binary table
	metaPrefix = []byte("kmeta-") // metaPrefix + hash -> JSON Entry
	bitsPrefix = []byte("kbits-") // bitsPrefix + bits -> hash of the latest table
)

// ErrNotFound is returned when no table matches the lookup.
var ErrNotFound = errors.New("tabledb: table not found")

// Hash is the content fingerprint of a table.
type Hash [32]byte

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	if len(text) != 2*len(h) {
		return fmt.Errorf("tabledb: hash has %d hex chars, want %d", len(text), 2*len(h))
	}
	_, err := hex.Decode(h[:], text)
	return err
}

// HexToHash parses a hex encoded fingerprint.
func HexToHash(s string) (Hash, error) {
	var h Hash
	err := h.UnmarshalText([]byte(s))
	return h, err
}

// Entry describes a stored table.
type Entry struct {
	Hash   Hash                `json:"hash"`
	Name   string              `json:"name"`
	Params kangaroo.Parameters `json:"params"`
	Size   int                 `json:"size"` // encoded size in bytes
}

// Store is a table database. It is safe for concurrent use.
type Store struct {
	db     *leveldb.DB
	tables *lru.ARCCache // Hash -> *kangaroo.Table
	log    log.Logger
}

// Open opens or creates the database in dir. cache is the leveldb block cache
// in megabytes.
func Open(dir string, cache int) (*Store, error) {
	if cache < minCache {
		cache = minCache
	}
	logger := log.New("database", dir)
	options := &opt.Options{
		BlockCacheCapacity: cache / 2 * opt.MiB,
		WriteBuffer:        cache / 4 * opt.MiB,
		Filter:             filter.NewBloomFilter(10),
	}
	db, err := leveldb.OpenFile(dir, options)
	if _, corrupted := err.(*lerrors.ErrCorrupted); corrupted {
		logger.Warn("Table database corrupted, recovering")
		db, err = leveldb.RecoverFile(dir, nil)
	}
	if err != nil {
		return nil, err
	}
	logger.Debug("Opened table database", "cache", cache)
	return newStore(db, logger), nil
}

// NewMemory returns a store backed by memory only.
func NewMemory() *Store {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		panic(err)
	}
	return newStore(db, log.New("database", "memory"))
}

func newStore(db *leveldb.DB, logger log.Logger) *Store {
	tables, _ := lru.NewARC(inmemoryTables)
	return &Store{db: db, tables: tables, log: logger}
}

// Close releases the database.
func (s *Store) Close() error {
	s.tables.Purge()
	return s.db.Close()
}

func key(prefix []byte, suffix []byte) []byte {
	return append(append([]byte{}, prefix...), suffix...)
}

// Put stores tbl under its fingerprint and makes it the latest table for its
// bit width. Storing the same table twice is a no-op apart from the name.
func (s *Store) Put(name string, tbl *kangaroo.Table, p kangaroo.Parameters) (Entry, error) {
	blob, err := kangaroo.EncodeBinary(tbl, p)
	if err != nil {
		return Entry{}, err
	}
	entry := Entry{Hash: Hash(tbl.Hash()), Name: name, Params: p, Size: len(blob)}
	meta, err := json.Marshal(entry)
	if err != nil {
		return Entry{}, err
	}
	batch := new(leveldb.Batch)
	batch.Put(key(blobPrefix, entry.Hash[:]), blob)
	batch.Put(key(metaPrefix, entry.Hash[:]), meta)
	batch.Put(key(bitsPrefix, []byte{p.Bits}), entry.Hash[:])
	if err := s.db.Write(batch, nil); err != nil {
		return Entry{}, err
	}
	s.log.Debug("Stored kangaroo table", "hash", entry.Hash, "bits", p.Bits, "size", entry.Size)
	return entry, nil
}

// Entry returns the metadata of a stored table.
func (s *Store) Entry(hash Hash) (Entry, error) {
	meta, err := s.db.Get(key(metaPrefix, hash[:]), nil)
	if err != nil {
		return Entry{}, notFound(err)
	}
	var entry Entry
	if err := json.Unmarshal(meta, &entry); err != nil {
		return Entry{}, fmt.Errorf("tabledb: corrupt entry %s: %w", hash, err)
	}
	return entry, nil
}

// Blob returns the binary encoding of a stored table.
func (s *Store) Blob(hash Hash) ([]byte, error) {
	blob, err := s.db.Get(key(blobPrefix, hash[:]), nil)
	if err != nil {
		return nil, notFound(err)
	}
	return blob, nil
}

// Table returns a decoded table. Decoded tables are shared and must not be
// modified.
func (s *Store) Table(hash Hash) (*kangaroo.Table, error) {
	if t, ok := s.tables.Get(hash); ok {
		return t.(*kangaroo.Table), nil
	}
	blob, err := s.Blob(hash)
	if err != nil {
		return nil, err
	}
	tbl, err := kangaroo.DecodeBinary(blob)
	if err != nil {
		return nil, err
	}
	s.tables.Add(hash, tbl)
	return tbl, nil
}

// Latest returns the most recently stored table for a bit width.
func (s *Store) Latest(bits uint8) (Entry, error) {
	enc, err := s.db.Get(key(bitsPrefix, []byte{bits}), nil)
	if err != nil {
		return Entry{}, notFound(err)
	}
	var hash Hash
	copy(hash[:], enc)
	return s.Entry(hash)
}

// Entries lists every stored table ordered by bit width, then name.
func (s *Store) Entries() ([]Entry, error) {
	it := s.db.NewIterator(util.BytesPrefix(metaPrefix), nil)
	defer it.Release()

	var entries []Entry
	for it.Next() {
		var entry Entry
		if err := json.Unmarshal(it.Value(), &entry); err != nil {
			return nil, fmt.Errorf("tabledb: corrupt entry %x: %w", it.Key()[len(metaPrefix):], err)
		}
		entries = append(entries, entry)
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Params.Bits != entries[j].Params.Bits {
			return entries[i].Params.Bits < entries[j].Params.Bits
		}
		return entries[i].Name < entries[j].Name
	})
	return entries, nil
}

// Delete removes a table. Deleting a missing table is not an error.
func (s *Store) Delete(hash Hash) error {
	entry, err := s.Entry(hash)
	if errors.Is(err, ErrNotFound) {
		return nil
	} else if err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	batch.Delete(key(blobPrefix, hash[:]))
	batch.Delete(key(metaPrefix, hash[:]))
	if latest, err := s.db.Get(key(bitsPrefix, []byte{entry.Params.Bits}), nil); err == nil && len(latest) == len(hash) && Hash(latest) == hash {
		batch.Delete(key(bitsPrefix, []byte{entry.Params.Bits}))
	}
	if err := s.db.Write(batch, nil); err != nil {
		return err
	}
	s.tables.Remove(hash)
	return nil
}

func notFound(err error) error {
	if errors.Is(err, leveldb.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
