package store

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
)

// The hint file is a startup shortcut: a snapshot of the index and the
// uncompacted counter, taken while no write is in flight (Close, or right
// after compaction). Layout:
//
//	[u64 xxhash64 of payload][payload]
//
// where payload is [u64 uncompacted] followed by one record per key:
// [u32 keyLen][u64 segment][u64 offset][u64 length][key bytes].
//
// A missing, stale or corrupt hint is never an error; the open falls back to
// a full replay of the segments.

func hintPath(dir string) string {
	return filepath.Join(dir, hintFileName)
}

// writeHint snapshots the current index atomically (tmp file + rename).
// The caller must hold s.mu.
func (s *Store) writeHint() error {
	payload := new(bytes.Buffer)
	if err := binary.Write(payload, binary.LittleEndian, uint64(s.uncompacted)); err != nil {
		return err
	}
	for key, pos := range s.index {
		if err := binary.Write(payload, binary.LittleEndian, uint32(len(key))); err != nil {
			return err
		}
		if err := binary.Write(payload, binary.LittleEndian, pos.Segment); err != nil {
			return err
		}
		if err := binary.Write(payload, binary.LittleEndian, uint64(pos.Offset)); err != nil {
			return err
		}
		if err := binary.Write(payload, binary.LittleEndian, uint64(pos.Length)); err != nil {
			return err
		}
		if _, err := payload.WriteString(key); err != nil {
			return err
		}
	}

	tmp := hintPath(s.dir) + tmpExt
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create hint file: %w", err)
	}
	var digest [8]byte
	binary.LittleEndian.PutUint64(digest[:], xxhash.Sum64(payload.Bytes()))
	if _, err := f.Write(digest[:]); err != nil {
		_ = f.Close()
		return fmt.Errorf("write hint digest: %w", err)
	}
	if _, err := f.Write(payload.Bytes()); err != nil {
		_ = f.Close()
		return fmt.Errorf("write hint payload: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close hint file: %w", err)
	}
	return os.Rename(tmp, hintPath(s.dir))
}

// loadHint tries to restore the index from the hint file. It returns false
// when the hint is missing, older than the newest segment, fails its digest,
// or references a segment the reader pool doesn't hold; the caller replays
// the segments in every such case.
func (s *Store) loadHint(ids []uint64) bool {
	if len(ids) == 0 {
		return false
	}
	hi, err := os.Stat(hintPath(s.dir))
	if err != nil {
		return false
	}
	newest, err := newestSegmentMTime(s.dir, ids)
	if err != nil || hi.ModTime().Before(newest) {
		return false
	}

	raw, err := os.ReadFile(hintPath(s.dir))
	if err != nil || len(raw) < 16 {
		return false
	}
	digest, payload := binary.LittleEndian.Uint64(raw[:8]), raw[8:]
	if xxhash.Sum64(payload) != digest {
		s.logger.Warn("hint digest mismatch, replaying segments", "dir", s.dir)
		return false
	}

	rd := bytes.NewReader(payload)
	var uncompacted uint64
	if err := binary.Read(rd, binary.LittleEndian, &uncompacted); err != nil {
		return false
	}
	index := make(map[string]Position)
	for rd.Len() > 0 {
		var keyLen uint32
		if err := binary.Read(rd, binary.LittleEndian, &keyLen); err != nil {
			return false
		}
		var segment, offset, length uint64
		if err := binary.Read(rd, binary.LittleEndian, &segment); err != nil {
			return false
		}
		if err := binary.Read(rd, binary.LittleEndian, &offset); err != nil {
			return false
		}
		if err := binary.Read(rd, binary.LittleEndian, &length); err != nil {
			return false
		}
		key := make([]byte, keyLen)
		if _, err := io.ReadFull(rd, key); err != nil {
			return false
		}
		if _, ok := s.readers[segment]; !ok {
			return false
		}
		index[string(key)] = Position{Segment: segment, Offset: int64(offset), Length: int64(length)}
	}

	s.index = index
	s.uncompacted = int64(uncompacted)
	return true
}

func newestSegmentMTime(dir string, ids []uint64) (time.Time, error) {
	var newest time.Time
	for _, id := range ids {
		fi, err := os.Stat(segmentPath(dir, id))
		if err != nil {
			return time.Time{}, err
		}
		if fi.ModTime().After(newest) {
			newest = fi.ModTime()
		}
	}
	return newest, nil
}
