// Package tinycompress writes zlib streams made of stored (uncompressed)
// DEFLATE blocks. Any zlib reader can inflate them; the writer needs only
// one block of buffer, which suits small MCUs.
package tinycompress

import (
	"errors"
	"hash"
	"hash/adler32"
	"io"
)

// DefaultBlockSize is the stored-block payload size used by NewWriter.
const DefaultBlockSize = 64

// maxStoredBlock is the DEFLATE limit for one stored block.
const maxStoredBlock = 0xFFFF

var ErrClosed = errors.New("tinycompress: write after close")

// Writer is an io.WriteCloser producing a zlib stream.
type Writer struct {
	output     io.Writer
	block      []byte
	adler      hash.Hash32
	headerDone bool
	closed     bool
	written    int
}

// NewWriter returns a writer with DefaultBlockSize blocks.
func NewWriter(w io.Writer) *Writer {
	return NewWriterSize(w, DefaultBlockSize)
}

// NewWriterSize returns a writer emitting stored blocks of up to size bytes.
func NewWriterSize(w io.Writer, size int) *Writer {
	if size <= 0 || size > maxStoredBlock {
		size = DefaultBlockSize
	}
	return &Writer{
		output: w,
		block:  make([]byte, 0, size),
		adler:  adler32.New(),
	}
}

// Write buffers p, emitting a block each time the buffer fills.
func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, ErrClosed
	}
	n := 0
	for len(p) > 0 {
		room := cap(w.block) - len(w.block)
		take := len(p)
		if take > room {
			take = room
		}
		w.block = append(w.block, p[:take]...)
		p = p[take:]
		n += take
		if len(w.block) == cap(w.block) {
			if err := w.flushBlock(false); err != nil {
				return n, err
			}
		}
	}
	return n, nil
}

// Close emits the final block and the Adler-32 trailer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.flushBlock(true); err != nil {
		return err
	}
	sum := w.adler.Sum32()
	return w.emit([]byte{byte(sum >> 24), byte(sum >> 16), byte(sum >> 8), byte(sum)})
}

// Written returns the number of bytes sent to the underlying writer.
func (w *Writer) Written() int {
	return w.written
}

func (w *Writer) flushBlock(final bool) error {
	if !w.headerDone {
		// CMF 0x78: deflate, 32K window. FLG 0x01 makes CMF*256+FLG a multiple of 31.
		if err := w.emit([]byte{0x78, 0x01}); err != nil {
			return err
		}
		w.headerDone = true
	}
	var bfinal byte
	if final {
		bfinal = 1
	}
	length := uint16(len(w.block))
	nlength := ^length
	hdr := []byte{bfinal, byte(length), byte(length >> 8), byte(nlength), byte(nlength >> 8)}
	if err := w.emit(hdr); err != nil {
		return err
	}
	if err := w.emit(w.block); err != nil {
		return err
	}
	w.adler.Write(w.block)
	w.block = w.block[:0]
	return nil
}

func (w *Writer) emit(b []byte) error {
	n, err := w.output.Write(b)
	w.written += n
	return err
}

// Compress returns data as a single zlib stream.
func Compress(data []byte) []byte {
	var buf sliceWriter
	w := NewWriterSize(&buf, maxStoredBlock)
	w.Write(data)
	w.Close()
	return buf
}

type sliceWriter []byte

func (s *sliceWriter) Write(p []byte) (int, error) {
	*s = append(*s, p...)
	return len(p), nil
}
