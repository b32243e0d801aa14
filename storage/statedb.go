package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/tolelom/tolbracket/core"
	"github.com/tolelom/tolbracket/crypto"
)

// registerPrefix records a state-key prefix into statePrefixes so that
// ComputeRoot() always covers it.
func registerPrefix(p string) string {
	statePrefixes = append(statePrefixes, p)
	return p
}

// statePrefixes is populated automatically by registerPrefix() below.
var statePrefixes []string

var (
	prefixAccount = registerPrefix("acct:")
	prefixGame    = registerPrefix("game:")
	prefixMeta    = registerPrefix("meta:")
)

const (
	keyCounter = "counter"
	keyCreator = "creator"
)

// gameKey zero-pads the id so that games iterate in creation order.
func gameKey(id uint32) string {
	return fmt.Sprintf("%s%010d", prefixGame, id)
}

// Games and accounts are never deleted, so a snapshot is just a copy of the
// write buffer.
type stateSnapshot map[string][]byte

// StateDB implements core.State on top of a DB with in-memory write buffer,
// snapshot/rollback, and deterministic state-root computation.
//
// The mutex makes reads safe against a concurrent writer; it does not make
// two writers safe against each other. The executor is the single writer.
type StateDB struct {
	mu        sync.RWMutex
	db        DB
	dirty     map[string][]byte
	snapshots []stateSnapshot
}

// NewStateDB creates a StateDB backed by db.
func NewStateDB(db DB) *StateDB {
	return &StateDB{
		db:    db,
		dirty: make(map[string][]byte),
	}
}

// ---- internal helpers ----

func (s *StateDB) get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.dirty[key]; ok {
		return v, nil
	}
	return s.db.Get([]byte(key))
}

func (s *StateDB) set(key string, val []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty[key] = val
}

func (s *StateDB) getJSON(key string, v any) error {
	data, err := s.get(key)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func (s *StateDB) setJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.set(key, data)
	return nil
}

// ---- Account ----

func (s *StateDB) GetAccount(address string) (*core.Account, error) {
	var acc core.Account
	err := s.getJSON(prefixAccount+address, &acc)
	if errors.Is(err, core.ErrNotFound) {
		return &core.Account{Address: address}, nil // zero-value account
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (s *StateDB) SetAccount(acc *core.Account) error {
	return s.setJSON(prefixAccount+acc.Address, acc)
}

// ---- Game ----

// GetGame decodes a fresh copy on every call, so the caller may mutate the
// result freely.
func (s *StateDB) GetGame(id uint32) (*core.Game, error) {
	var g core.Game
	if err := s.getJSON(gameKey(id), &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *StateDB) SetGame(id uint32, g *core.Game) error {
	if g.ID != id {
		return fmt.Errorf("game id mismatch: key %d record %d", id, g.ID)
	}
	return s.setJSON(gameKey(id), g)
}

// ---- Meta ----

func (s *StateDB) Counter() (uint32, error) {
	data, err := s.get(prefixMeta + keyCounter)
	if errors.Is(err, core.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(string(data), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("decode counter: %w", err)
	}
	return uint32(n), nil
}

func (s *StateDB) SetCounter(n uint32) error {
	s.set(prefixMeta+keyCounter, []byte(strconv.FormatUint(uint64(n), 10)))
	return nil
}

func (s *StateDB) Creator() (string, error) {
	data, err := s.get(prefixMeta + keyCreator)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *StateDB) SetCreator(pubkey string) error {
	s.set(prefixMeta+keyCreator, []byte(pubkey))
	return nil
}

// ---- Snapshot / Rollback / Commit ----

// Snapshot saves the current write buffer and returns a snapshot ID.
func (s *StateDB) Snapshot() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, stateSnapshot(copyDirty(s.dirty)))
	return len(s.snapshots) - 1, nil
}

// RevertToSnapshot restores the write buffer to a previously saved snapshot
// and discards it and every later snapshot.
func (s *StateDB) RevertToSnapshot(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || id >= len(s.snapshots) {
		return fmt.Errorf("invalid snapshot id %d", id)
	}
	s.dirty = copyDirty(s.snapshots[id])
	s.snapshots = s.snapshots[:id]
	return nil
}

func copyDirty(src map[string][]byte) map[string][]byte {
	dst := make(map[string][]byte, len(src))
	for k, v := range src {
		cp := make([]byte, len(v))
		copy(cp, v)
		dst[k] = cp
	}
	return dst
}

// ComputeRoot returns the deterministic hash of the complete ledger state:
// persisted entries under the known prefixes merged with the write buffer,
// sorted by key and length-prefix encoded. It does not flush.
func (s *StateDB) ComputeRoot() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	merged := make(map[string][]byte)
	for _, prefix := range statePrefixes {
		it := s.db.NewIterator([]byte(prefix))
		for it.Next() {
			v := make([]byte, len(it.Value()))
			copy(v, it.Value())
			merged[string(it.Key())] = v
		}
		it.Release()
	}
	for k, v := range s.dirty {
		merged[k] = v
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	var lenBuf [4]byte
	for _, k := range keys {
		v := merged[k]
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(k)))
		buf.Write(lenBuf[:])
		buf.WriteString(k)
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(v)))
		buf.Write(lenBuf[:])
		buf.Write(v)
	}
	return crypto.Hash(buf.Bytes())
}

// Commit atomically flushes the write buffer to the underlying DB via a
// Batch and then clears it.
func (s *StateDB) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := s.db.NewBatch()
	for k, v := range s.dirty {
		batch.Set([]byte(k), v)
	}
	if err := batch.Write(); err != nil {
		return err
	}
	s.dirty = make(map[string][]byte)
	s.snapshots = nil
	return nil
}
