// Package store implements an embedded key-value store backed by an
// append-only, segmented command log. An in-memory index maps each live key
// to the position of its latest set record; superseded records accumulate as
// stale bytes until a threshold triggers compaction into a fresh segment.
//
// A Store owns its data directory exclusively: one writer on the active
// segment, one pooled reader per segment, and an advisory lock that keeps a
// second process out.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Store is a single-process key-value store. All operations serialize on an
// internal lock, so a Store is safe for concurrent use by multiple
// goroutines.
type Store struct {
	mu sync.Mutex

	dir     string
	writer  *segmentWriter
	readers map[uint64]*segmentReader
	index   map[string]Position

	// uncompacted counts bytes of records no longer reachable from the index.
	uncompacted int64

	lock   *dirLock
	logger *slog.Logger
}

// Open opens the store rooted at dir, creating the directory if needed.
// Existing segments are replayed in ascending id order to rebuild the index
// (or restored from the hint file when it is current), then a fresh segment
// is created as the append target. Any decode or I/O error during replay
// aborts the open; a store must not start with a partially built index.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory %s: %w", dir, err)
	}

	lock, err := acquireDirLock(filepath.Join(dir, lockFileName))
	if err != nil {
		return nil, err
	}

	s := &Store{
		dir:     dir,
		readers: make(map[uint64]*segmentReader),
		index:   make(map[string]Position),
		lock:    lock,
		logger:  slog.Default(),
	}

	ids, err := sortedSegmentIDs(dir)
	if err != nil {
		s.cleanup()
		return nil, err
	}
	for _, id := range ids {
		r, err := openSegmentReader(dir, id)
		if err != nil {
			s.cleanup()
			return nil, err
		}
		s.readers[id] = r
	}

	if !s.loadHint(ids) {
		if err := s.replay(ids); err != nil {
			s.cleanup()
			return nil, err
		}
	}

	active := uint64(1)
	if len(ids) > 0 {
		active = ids[len(ids)-1] + 1
	}
	if err := s.openActive(active); err != nil {
		s.cleanup()
		return nil, err
	}

	s.logger.Debug("store opened",
		"dir", dir,
		"segments", len(ids),
		"keys", len(s.index),
		"uncompacted_bytes", s.uncompacted)
	return s, nil
}

// Set stores value under key, overwriting any previous value.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer == nil {
		return ErrStoreClosed
	}
	return s.apply(setCommand(key, value))
}

// Get returns the value stored under key. The boolean reports whether the key
// is present; a key that was never set or was removed yields ("", false, nil),
// which is a normal outcome rather than an error.
func (s *Store) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer == nil {
		return "", false, ErrStoreClosed
	}

	pos, ok := s.index[key]
	if !ok {
		return "", false, nil
	}
	r, ok := s.readers[pos.Segment]
	if !ok {
		// The pool tracks every live segment, so a miss means the index
		// points at a reclaimed segment. Treat as absent rather than panic.
		return "", false, nil
	}

	if err := r.seek(pos.Offset); err != nil {
		return "", false, fmt.Errorf("seek segment %d: %w", pos.Segment, err)
	}
	var cmd command
	if err := json.NewDecoder(r.buf).Decode(&cmd); err != nil {
		return "", false, fmt.Errorf("decode segment %d at offset %d: %w", pos.Segment, pos.Offset, err)
	}
	if cmd.Type != cmdSet {
		return "", false, fmt.Errorf("segment %d offset %d holds a %q record: %w", pos.Segment, pos.Offset, cmd.Type, ErrCorruptedLog)
	}
	return cmd.Value, true, nil
}

// Remove deletes key. Removing an absent key fails with ErrKeyNotFound; the
// check precedes the log append, so a failed remove writes nothing.
func (s *Store) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer == nil {
		return ErrStoreClosed
	}
	if _, ok := s.index[key]; !ok {
		return ErrKeyNotFound
	}
	return s.apply(removeCommand(key))
}

// Compact rewrites all live records into a fresh segment and deletes the
// segments they came from. It is normally driven by the stale-byte threshold
// but may be invoked directly.
func (s *Store) Compact() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer == nil {
		return ErrStoreClosed
	}
	return s.compact()
}

// Close flushes the active segment, snapshots the index to the hint file,
// closes every file handle and releases the directory lock. Safe to call
// more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer == nil {
		return nil
	}

	var firstErr error
	if err := s.writer.close(); err != nil {
		firstErr = err
	}
	s.writer = nil

	if err := s.writeHint(); err != nil {
		// The hint is only a startup shortcut; the next open replays the log.
		s.logger.Warn("hint write failed", "dir", s.dir, "err", err)
	}

	for id, r := range s.readers {
		if err := r.close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.readers, id)
	}
	s.index = nil

	if err := s.lock.release(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// apply encodes cmd, appends it to the active segment and updates the index.
// The displaced position's length, if any, feeds the uncompacted counter;
// crossing the threshold runs a compaction before apply returns.
func (s *Store) apply(cmd command) error {
	encoded, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encode command: %w", err)
	}

	offset, err := s.writer.append(encoded)
	if err != nil {
		return fmt.Errorf("append to segment %d: %w", s.writer.id, err)
	}

	displaced, hadOld := s.index[cmd.Key]
	switch cmd.Type {
	case cmdSet:
		s.index[cmd.Key] = Position{
			Segment: s.writer.id,
			Offset:  offset,
			Length:  int64(len(encoded)),
		}
	case cmdRemove:
		delete(s.index, cmd.Key)
	}
	if hadOld {
		s.uncompacted += displaced.Length
	}

	if s.uncompacted > compactionThreshold {
		return s.compact()
	}
	return nil
}

// openActive creates segment id as the new append target and registers a
// reader for it so freshly written keys are immediately readable.
func (s *Store) openActive(id uint64) error {
	w, err := newSegmentWriter(s.dir, id)
	if err != nil {
		return err
	}
	r, err := openSegmentReader(s.dir, id)
	if err != nil {
		_ = w.close()
		return err
	}
	s.writer = w
	s.readers[id] = r
	return nil
}

// cleanup releases everything a partially opened store holds.
func (s *Store) cleanup() {
	for _, r := range s.readers {
		_ = r.close()
	}
	if s.writer != nil {
		_ = s.writer.close()
	}
	_ = s.lock.release()
}
