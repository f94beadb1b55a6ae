// Package shards materializes serialized pipeline output into a fixed
// number of shard files and reads them back.
//
// Each shard is a sequence of framed records. A frame is the record
// length as a little-endian uint64, a masked CRC-32C of those 8 bytes,
// the record bytes and a masked CRC-32C of the record. The whole stream
// is optionally wrapped in ZLIB or GZIP.
package shards

import (
	"bufio"
	"compress/gzip"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

var (
	// ErrCorruptShard is returned when a shard frame fails its checksum or
	// is truncated.
	ErrCorruptShard = errors.New("shards: corrupt shard")
	// ErrShardConflict is returned when the target directory already holds
	// shard files.
	ErrShardConflict = errors.New("shards: directory already contains shards")
	// ErrUnknownCompression is returned for an unsupported compression name.
	ErrUnknownCompression = errors.New("shards: unknown compression")
)

// Compression selects the stream compression of shard files.
type Compression int

const (
	None Compression = iota
	ZLIB
	GZIP
)

func (c Compression) String() string {
	switch c {
	case None:
		return "none"
	case ZLIB:
		return "ZLIB"
	case GZIP:
		return "GZIP"
	default:
		return fmt.Sprintf("compression(%d)", int(c))
	}
}

// ParseCompression accepts "none", "ZLIB" or "GZIP".
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "none":
		return None, nil
	case "ZLIB":
		return ZLIB, nil
	case "GZIP":
		return GZIP, nil
	default:
		return None, fmt.Errorf("%w: %q (want none, ZLIB or GZIP)", ErrUnknownCompression, s)
	}
}

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

const maskDelta = 0xa282ead8

func maskedCRC(b []byte) uint32 {
	c := crc32.Checksum(b, castagnoli)
	return ((c >> 15) | (c << 17)) + maskDelta
}

// recordWriter frames records onto a possibly compressed stream.
type recordWriter struct {
	file  io.WriteCloser
	comp  io.WriteCloser
	buf   *bufio.Writer
	count int
}

func newRecordWriter(f io.WriteCloser, c Compression) (*recordWriter, error) {
	w := &recordWriter{file: f}
	var dst io.Writer = f
	switch c {
	case None:
	case ZLIB:
		w.comp = zlib.NewWriter(f)
		dst = w.comp
	case GZIP:
		w.comp = gzip.NewWriter(f)
		dst = w.comp
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, int(c))
	}
	w.buf = bufio.NewWriter(dst)
	return w, nil
}

func (w *recordWriter) Write(rec []byte) error {
	var hdr [12]byte
	binary.LittleEndian.PutUint64(hdr[:8], uint64(len(rec)))
	binary.LittleEndian.PutUint32(hdr[8:], maskedCRC(hdr[:8]))
	if _, err := w.buf.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := w.buf.Write(rec); err != nil {
		return err
	}
	var foot [4]byte
	binary.LittleEndian.PutUint32(foot[:], maskedCRC(rec))
	if _, err := w.buf.Write(foot[:]); err != nil {
		return err
	}
	w.count++
	return nil
}

// Close flushes and closes every layer, reporting the first error.
func (w *recordWriter) Close() error {
	err := w.buf.Flush()
	if w.comp != nil {
		if cerr := w.comp.Close(); err == nil {
			err = cerr
		}
	}
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// recordReader reads framed records from a possibly compressed stream.
type recordReader struct {
	file io.ReadCloser
	comp io.ReadCloser
	r    *bufio.Reader
}

func newRecordReader(f io.ReadCloser, c Compression) (*recordReader, error) {
	rr := &recordReader{file: f}
	var src io.Reader = f
	switch c {
	case None:
	case ZLIB:
		z, err := zlib.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptShard, err)
		}
		rr.comp = z
		src = z
	case GZIP:
		z, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptShard, err)
		}
		rr.comp = z
		src = z
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, int(c))
	}
	rr.r = bufio.NewReader(src)
	return rr, nil
}

// Next returns the next record or io.EOF at a clean end of stream.
func (rr *recordReader) Next() ([]byte, error) {
	var hdr [12]byte
	n, err := io.ReadFull(rr.r, hdr[:])
	if err == io.EOF && n == 0 {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("%w: truncated header: %v", ErrCorruptShard, err)
	}
	if binary.LittleEndian.Uint32(hdr[8:]) != maskedCRC(hdr[:8]) {
		return nil, fmt.Errorf("%w: header checksum mismatch", ErrCorruptShard)
	}
	size := binary.LittleEndian.Uint64(hdr[:8])
	if size > 1<<32 {
		return nil, fmt.Errorf("%w: record length %d", ErrCorruptShard, size)
	}
	rec := make([]byte, size+4)
	if _, err := io.ReadFull(rr.r, rec); err != nil {
		return nil, fmt.Errorf("%w: truncated record: %v", ErrCorruptShard, err)
	}
	data, foot := rec[:size], rec[size:]
	if binary.LittleEndian.Uint32(foot) != maskedCRC(data) {
		return nil, fmt.Errorf("%w: record checksum mismatch", ErrCorruptShard)
	}
	return data, nil
}

func (rr *recordReader) Close() error {
	var err error
	if rr.comp != nil {
		err = rr.comp.Close()
	}
	if cerr := rr.file.Close(); err == nil {
		err = cerr
	}
	return err
}
