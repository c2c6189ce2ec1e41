/*
Copyright 2011-2017 Frederic Langlet
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
you may obtain a copy of the License at

                http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package stream

import (
	"io"

	"github.com/kanzigo/snappy"
	"github.com/kanzigo/snappy/block"
	"github.com/kanzigo/snappy/checksum"
)

// Writer chops an input stream into block.BlockSize blocks, framing
// each as a Snappy chunk and writing it to an underlying io.Writer. The
// stream identifier chunk is emitted lazily, on the first call to
// Write or Flush (even one with no data), so that an all-empty stream
// still produces the required 10-byte header.
//
// A Writer is not safe for concurrent use. Call Close to release its
// pooled buffers once done.
type Writer struct {
	w    io.Writer
	pool snappy.BufferPool
	c    *block.Compressor

	wroteIdentifier bool

	pending    []byte // accumulated raw input, up to BlockSize
	pendingLen int

	scratch []byte // compressed-block working buffer

	listener snappy.Listener
	closed   bool
}

// NewWriter returns a Writer that frames compressed chunks onto w,
// using the given BufferPool for its block-sized working buffers. A
// nil pool falls back to snappy.NewPool().
func NewWriter(w io.Writer, pool snappy.BufferPool) *Writer {
	if pool == nil {
		pool = snappy.NewPool()
	}
	return &Writer{
		w:       w,
		pool:    pool,
		c:       block.NewCompressor(pool),
		pending: pool.Get(block.BlockSize),
		scratch: pool.Get(block.MaxCompressedLen(block.BlockSize) + checksumLen),
	}
}

// SetListener registers l to receive EventBlockCompressed and
// EventBlockStored notifications. A nil listener disables
// notification.
func (wr *Writer) SetListener(l snappy.Listener) {
	wr.listener = l
}

// Write buffers p, flushing full blocks to the underlying writer as
// they fill. It never returns a short write without an error.
func (wr *Writer) Write(p []byte) (int, error) {
	if wr.closed {
		return 0, snappy.ErrClosed
	}
	if err := wr.emitIdentifier(); err != nil {
		return 0, err
	}

	written := 0
	for len(p) > 0 {
		n := copy(wr.pending[wr.pendingLen:block.BlockSize], p)
		wr.pendingLen += n
		p = p[n:]
		written += n

		if wr.pendingLen == block.BlockSize {
			if err := wr.flushBlock(); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

// Flush writes the stream identifier (if no data has been written yet)
// and any partially filled block, then nothing further may be buffered
// without becoming a new block. Flush does not close the underlying
// writer.
func (wr *Writer) Flush() error {
	if wr.closed {
		return snappy.ErrClosed
	}
	if err := wr.emitIdentifier(); err != nil {
		return err
	}
	if wr.pendingLen == 0 {
		return nil
	}
	return wr.flushBlock()
}

// Close flushes any pending block and returns the Writer's buffers to
// its pool. It does not close the underlying io.Writer.
func (wr *Writer) Close() error {
	if wr.closed {
		return nil
	}
	if err := wr.Flush(); err != nil {
		return err
	}
	wr.c.Close()
	wr.pool.Put(wr.pending)
	wr.pool.Put(wr.scratch)
	wr.closed = true
	return nil
}

func (wr *Writer) emitIdentifier() error {
	if wr.wroteIdentifier {
		return nil
	}
	if _, err := wr.w.Write(streamIdentifier[:]); err != nil {
		return err
	}
	wr.wroteIdentifier = true
	snappy.Notify(wr.listener, snappy.Event{Type: snappy.EventStreamStart})
	return nil
}

func (wr *Writer) flushBlock() error {
	raw := wr.pending[:wr.pendingLen]
	crc := checksum.MaskedChecksum(raw)

	n, err := wr.c.Compress(wr.scratch[checksumLen:], raw)
	if err != nil {
		return err
	}

	var chunkType byte
	var body []byte
	if n < wr.pendingLen {
		chunkType = chunkTypeCompressed
		body = wr.scratch[:checksumLen+n]
	} else {
		chunkType = chunkTypeUncompressed
		copy(wr.scratch[checksumLen:], raw)
		body = wr.scratch[:checksumLen+wr.pendingLen]
	}
	putLE32(body[:checksumLen], crc)

	var header [chunkHeaderLen]byte
	putChunkHeader(header[:], chunkType, len(body))
	if _, err := wr.w.Write(header[:]); err != nil {
		return err
	}
	if _, err := wr.w.Write(body); err != nil {
		return err
	}

	evt := snappy.Event{InputSize: wr.pendingLen, OutputSize: len(body)}
	if chunkType == chunkTypeCompressed {
		evt.Type = snappy.EventBlockCompressed
	} else {
		evt.Type = snappy.EventBlockStored
	}
	snappy.Notify(wr.listener, evt)

	wr.pendingLen = 0
	return nil
}

func putLE32(dst []byte, v uint32) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
	dst[3] = byte(v >> 24)
}
