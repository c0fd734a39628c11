package store

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// segmentPath returns the file path for a segment id inside dir.
func segmentPath(dir string, id uint64) string {
	return filepath.Join(dir, strconv.FormatUint(id, 10)+segmentExt)
}

// sortedSegmentIDs lists the ids of every segment file in dir, ascending.
// Files that don't match the <id>.log convention are ignored.
func sortedSegmentIDs(dir string) ([]uint64, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}

	var ids []uint64
	for _, ent := range ents {
		name := ent.Name()
		if ent.IsDir() || !strings.HasSuffix(name, segmentExt) {
			continue
		}
		id, err := strconv.ParseUint(strings.TrimSuffix(name, segmentExt), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids, nil
}

// segmentWriter is the buffered append sink bound to the active segment.
type segmentWriter struct {
	id     uint64
	file   *os.File
	buf    *bufio.Writer
	offset int64 // running size of the segment
}

func newSegmentWriter(dir string, id uint64) (*segmentWriter, error) {
	f, err := os.OpenFile(segmentPath(dir, id), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("create segment %d: %w", id, err)
	}
	return &segmentWriter{id: id, file: f, buf: bufio.NewWriterSize(f, writerBufSize)}, nil
}

// append writes p and flushes it to the OS before returning. It reports the
// offset the record was written at.
func (w *segmentWriter) append(p []byte) (int64, error) {
	offset := w.offset
	if _, err := w.buf.Write(p); err != nil {
		return 0, err
	}
	if err := w.buf.Flush(); err != nil {
		return 0, err
	}
	w.offset += int64(len(p))
	return offset, nil
}

func (w *segmentWriter) close() error {
	if err := w.buf.Flush(); err != nil {
		_ = w.file.Close()
		return err
	}
	return w.file.Close()
}

// segmentReader is a buffered, independently seekable read handle on one
// segment. The store keeps one per segment in its reader pool.
type segmentReader struct {
	file *os.File
	buf  *bufio.Reader
}

func openSegmentReader(dir string, id uint64) (*segmentReader, error) {
	f, err := os.Open(segmentPath(dir, id))
	if err != nil {
		return nil, fmt.Errorf("open segment %d: %w", id, err)
	}
	return &segmentReader{file: f, buf: bufio.NewReaderSize(f, readerBufSize)}, nil
}

// seek repositions the reader at an absolute offset, discarding buffered data.
func (r *segmentReader) seek(offset int64) error {
	if _, err := r.file.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	r.buf.Reset(r.file)
	return nil
}

func (r *segmentReader) close() error {
	return r.file.Close()
}
