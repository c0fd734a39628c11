package store

import (
	"fmt"
	"io"
	"os"
)

// compact rewrites every live record into a fresh segment (the compaction
// target, id = active+1) and rolls the log onto a new active segment
// (target+1). Segments older than the target hold no live data afterwards
// and are deleted along with their pooled readers.
//
// The caller must hold s.mu; the rewrite runs to completion before any other
// operation may interleave. If it fails partway the store must be treated as
// corrupted and reopened.
func (s *Store) compact() error {
	target := s.writer.id + 1
	reclaimed := s.uncompacted

	// Seal the active segment. Its live records are read back through the
	// pooled reader like any other segment's.
	if err := s.writer.close(); err != nil {
		return fmt.Errorf("seal segment %d: %w", s.writer.id, err)
	}

	tw, err := newSegmentWriter(s.dir, target)
	if err != nil {
		return err
	}
	for key, pos := range s.index {
		src, ok := s.readers[pos.Segment]
		if !ok {
			_ = tw.close()
			return fmt.Errorf("compact: no reader for segment %d (key %q): %w", pos.Segment, key, ErrCorruptedLog)
		}
		if err := src.seek(pos.Offset); err != nil {
			_ = tw.close()
			return fmt.Errorf("compact: seek segment %d: %w", pos.Segment, err)
		}

		offset := tw.offset
		if _, err := io.CopyN(tw.buf, src.buf, pos.Length); err != nil {
			_ = tw.close()
			return fmt.Errorf("compact: copy record for key %q: %w", key, err)
		}
		tw.offset += pos.Length
		s.index[key] = Position{Segment: target, Offset: offset, Length: pos.Length}
	}
	if err := tw.close(); err != nil {
		return fmt.Errorf("flush compacted segment %d: %w", target, err)
	}

	tr, err := openSegmentReader(s.dir, target)
	if err != nil {
		return err
	}
	s.readers[target] = tr

	if err := s.openActive(target + 1); err != nil {
		return err
	}
	s.uncompacted = 0

	// Everything below the target was either copied forward or stale.
	for id, r := range s.readers {
		if id >= target {
			continue
		}
		_ = r.close()
		delete(s.readers, id)
		if err := os.Remove(segmentPath(s.dir, id)); err != nil {
			return fmt.Errorf("remove stale segment %d: %w", id, err)
		}
	}

	if err := s.writeHint(); err != nil {
		s.logger.Warn("hint write failed after compaction", "dir", s.dir, "err", err)
	}

	s.logger.Info("compaction complete",
		"target", target,
		"live_keys", len(s.index),
		"reclaimed_bytes", reclaimed)
	return nil
}
