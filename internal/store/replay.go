package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// replay rebuilds the index by decoding every existing segment in ascending
// id order. The uncompacted counter is recomputed from scratch: each record
// superseded by a later one contributes its encoded length.
func (s *Store) replay(ids []uint64) error {
	for _, id := range ids {
		if err := s.replaySegment(id); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) replaySegment(id uint64) error {
	r := s.readers[id]
	if err := r.seek(0); err != nil {
		return fmt.Errorf("segment %d: %w", id, err)
	}

	// Record boundaries are not stored on disk; they fall out of the decoder
	// position delta around each decoded value.
	dec := json.NewDecoder(r.buf)
	var offset int64
	for {
		var cmd command
		err := dec.Decode(&cmd)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("replay segment %d at offset %d: %w", id, offset, err)
		}
		length := dec.InputOffset() - offset

		switch cmd.Type {
		case cmdSet:
			if old, ok := s.index[cmd.Key]; ok {
				s.uncompacted += old.Length
			}
			s.index[cmd.Key] = Position{Segment: id, Offset: offset, Length: length}
		case cmdRemove:
			if old, ok := s.index[cmd.Key]; ok {
				s.uncompacted += old.Length
				delete(s.index, cmd.Key)
			}
		default:
			return fmt.Errorf("replay segment %d at offset %d: record type %q: %w", id, offset, cmd.Type, ErrCorruptedLog)
		}
		offset = dec.InputOffset()
	}
}
