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

package block

import (
	"encoding/binary"
	"fmt"

	"github.com/kanzigo/snappy"
)

// Decompressor is a resumable Snappy block decoder. The first Write
// reads the varint length prefix and draws the lookback buffer from
// its pool; every subsequent Write appends more of the tag stream to
// it. Done reports whether the full uncompressed length has been
// produced.
//
// A Decompressor is not safe for concurrent use, but may be Reset and
// reused across many blocks.
type Decompressor struct {
	pool snappy.BufferPool

	haveLength     bool
	expectedLength int

	scratch    [MaxTagLength]byte
	scratchLen int

	remainingLiteral int

	lookback    []byte
	lookbackPos int
	readPos     int

	closed bool
}

// NewDecompressor returns a ready-to-use Decompressor drawing its
// lookback buffer from pool. A nil pool falls back to snappy.NewPool().
func NewDecompressor(pool snappy.BufferPool) *Decompressor {
	if pool == nil {
		pool = snappy.NewPool()
	}
	return &Decompressor{pool: pool}
}

// Reset returns any lookback buffer to the pool and clears all other
// state so the Decompressor can decode a new block.
func (d *Decompressor) Reset() {
	pool := d.pool
	if d.lookback != nil {
		pool.Put(d.lookback)
	}
	*d = Decompressor{pool: pool}
}

// Close releases the lookback buffer back to its pool. Until Reset is
// called, Write returns snappy.ErrClosed; Read, Bytes, Pending and Done
// do not check for a closed Decompressor.
func (d *Decompressor) Close() {
	if d.lookback != nil {
		d.pool.Put(d.lookback)
		d.lookback = nil
	}
	d.closed = true
}

// Done reports whether the complete uncompressed block has been
// produced.
func (d *Decompressor) Done() bool {
	return d.haveLength && d.lookbackPos == d.expectedLength
}

// Write feeds the next chunk of compressed input. It returns the
// number of bytes consumed from chunk - every byte, unless the block
// finishes partway through, in which case any trailing bytes are left
// unconsumed - and an error if the input is malformed.
func (d *Decompressor) Write(chunk []byte) (int, error) {
	if d.closed {
		return 0, snappy.ErrClosed
	}

	pos := 0
	total := len(chunk)

	if !d.haveLength {
		n, err := d.readLength(chunk)
		pos += n
		if err != nil || !d.haveLength {
			return pos, err
		}
	}

	if d.remainingLiteral > 0 {
		n := d.remainingLiteral
		if avail := total - pos; n > avail {
			n = avail
		}
		copy(d.lookback[d.lookbackPos:], chunk[pos:pos+n])
		d.lookbackPos += n
		d.remainingLiteral -= n
		pos += n
		if d.remainingLiteral > 0 {
			return pos, nil
		}
	}

	for !d.Done() {
		if d.scratchLen == 0 {
			if pos >= total {
				break
			}
			d.scratch[0] = chunk[pos]
			pos++
			d.scratchLen = 1
		}

		opcode := d.scratch[0]
		te := tagTable[opcode]
		needHeader := 1 + te.trailerBytes

		if d.scratchLen < needHeader {
			take := needHeader - d.scratchLen
			if avail := total - pos; take > avail {
				take = avail
			}
			copy(d.scratch[d.scratchLen:], chunk[pos:pos+take])
			d.scratchLen += take
			pos += take
			if d.scratchLen < needHeader {
				return pos, nil
			}
		}

		if opcode&3 == tagLiteral {
			litLen := te.length
			if litLen == 0 {
				litLen = int(littleEndian(d.scratch[1:needHeader])) + 1
			}
			if d.lookbackPos+litLen > d.expectedLength {
				return pos, invalidData("literal of length %d overruns block", litLen)
			}

			d.scratchLen = 0
			n := litLen
			if avail := total - pos; n > avail {
				n = avail
			}
			copy(d.lookback[d.lookbackPos:], chunk[pos:pos+n])
			d.lookbackPos += n
			pos += n
			if n < litLen {
				d.remainingLiteral = litLen - n
				return pos, nil
			}
			continue
		}

		offset := te.partialOff + int(littleEndian(d.scratch[1:needHeader]))
		length := te.length
		d.scratchLen = 0

		if offset < 1 || offset > d.lookbackPos {
			return pos, invalidData("copy offset %d out of range [1, %d]", offset, d.lookbackPos)
		}
		if d.lookbackPos+length > d.expectedLength {
			return pos, invalidData("copy of length %d overruns block", length)
		}

		incrementalCopy(d.lookback, d.lookbackPos, d.lookbackPos-offset, length)
		d.lookbackPos += length
	}

	return pos, nil
}

func (d *Decompressor) readLength(chunk []byte) (int, error) {
	pos := 0
	for pos < len(chunk) && d.scratchLen < snappy.MaxVarintLen32 {
		d.scratch[d.scratchLen] = chunk[pos]
		d.scratchLen++
		pos++

		v, n, err := snappy.ReadUvarint(d.scratch[:d.scratchLen])
		if err != nil {
			return pos, err
		}
		if n > 0 {
			d.expectedLength = int(v)
			d.haveLength = true
			d.lookback = d.pool.Get(d.expectedLength)
			d.scratchLen = 0
			return pos, nil
		}
	}
	if d.scratchLen == snappy.MaxVarintLen32 {
		return pos, invalidData("varint longer than %d bytes", snappy.MaxVarintLen32)
	}
	return pos, nil
}

// Read drains decompressed bytes produced so far into dst, returning
// the number copied. It never blocks on more input arriving.
func (d *Decompressor) Read(dst []byte) int {
	n := copy(dst, d.lookback[d.readPos:d.lookbackPos])
	d.readPos += n
	return n
}

// Bytes returns the full decompressed output produced so far, without
// consuming it the way Read does.
func (d *Decompressor) Bytes() []byte {
	return d.lookback[:d.lookbackPos]
}

// Pending returns the number of produced bytes not yet drained by Read.
func (d *Decompressor) Pending() int {
	return d.lookbackPos - d.readPos
}

func littleEndian(b []byte) uint32 {
	var buf [4]byte
	copy(buf[:], b)
	return binary.LittleEndian.Uint32(buf[:])
}

func invalidData(format string, args ...interface{}) error {
	return &snappy.Error{Kind: snappy.KindInvalidData, Msg: fmt.Sprintf(format, args...)}
}

// Decompress is the one-shot convenience form: src must hold a
// complete block. It returns the number of bytes written to dst, which
// must be at least as large as the block's advertised uncompressed
// length (see snappy.UncompressedLen), or snappy.ErrOutputTooSmall.
func Decompress(dst, src []byte) (int, error) {
	n, prefixLen, err := snappy.UncompressedLen(src)
	if err != nil {
		return 0, err
	}
	if prefixLen == 0 {
		return 0, invalidData("truncated length prefix")
	}
	if len(dst) < n {
		return 0, snappy.ErrOutputTooSmall
	}

	d := NewDecompressor(nil)
	defer d.Close()
	if _, err := d.Write(src); err != nil {
		return 0, err
	}
	if !d.Done() {
		return 0, invalidData("block ended before producing %d bytes", n)
	}
	copy(dst, d.Bytes())
	return n, nil
}
