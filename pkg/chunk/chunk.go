// Package chunk splits byte streams into fixed-size chunks and encrypts
// each chunk independently.
//
// Chunks are derived deterministically from (stream, chunk size, index) and
// are never persisted as records of their own: the encrypted envelope plus
// its index is the only artifact that leaves this package.
package chunk

import (
	"fmt"
	"io"
)

// DefaultSize is the default chunk size (3 MiB). It bounds peak memory during
// transfer while keeping per-chunk overhead small.
const DefaultSize = 3 * 1024 * 1024

// Chunk is a contiguous byte range of a logical file.
type Chunk struct {
	// Index is the zero-based sequence position within the source stream.
	Index int

	// Data is the plaintext payload. Its length equals the configured chunk
	// size for every chunk except possibly the last.
	Data []byte
}

// Splitter lazily cuts a source stream into fixed-size chunks.
//
// The splitter reads forward only. It is restartable from the source stream,
// not from a cursor: constructing a new Splitter over a re-opened stream
// re-reads from the start offset given. The chunk size must not change
// mid-stream.
type Splitter struct {
	r     io.Reader
	size  int
	index int
	done  bool
}

// NewSplitter returns a Splitter producing chunks of exactly size bytes
// (the final chunk may be shorter).
func NewSplitter(r io.Reader, size int) (*Splitter, error) {
	if size <= 0 {
		return nil, ErrInvalidChunkSize
	}
	return &Splitter{r: r, size: size}, nil
}

// Next returns the next chunk, or io.EOF when the stream is exhausted.
// An empty source stream yields io.EOF immediately (zero chunks).
func (s *Splitter) Next() (*Chunk, error) {
	if s.done {
		return nil, io.EOF
	}

	buf := make([]byte, s.size)
	n, err := io.ReadFull(s.r, buf)
	switch {
	case err == io.EOF:
		s.done = true
		return nil, io.EOF
	case err == io.ErrUnexpectedEOF:
		// Short final chunk; the stream ends here.
		s.done = true
	case err != nil:
		return nil, fmt.Errorf("read chunk %d: %w", s.index, err)
	}

	c := &Chunk{Index: s.index, Data: buf[:n]}
	s.index++
	return c, nil
}

// Reassemble writes chunks back to w in the order produced by next.
// next follows the Splitter.Next contract: it returns io.EOF when done.
func Reassemble(w io.Writer, next func() (*Chunk, error)) error {
	want := 0
	for {
		c, err := next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if c.Index != want {
			return fmt.Errorf("chunk out of order: got index %d, want %d", c.Index, want)
		}
		if _, err := w.Write(c.Data); err != nil {
			return fmt.Errorf("write chunk %d: %w", c.Index, err)
		}
		want++
	}
}
