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
	"math/bits"

	"github.com/kanzigo/snappy"
)

// MaxCompressedLen is block.Compress's own bound, re-exported here so
// callers working only with this package don't need to import the
// root package for it.
func MaxCompressedLen(n int) int {
	return snappy.MaxCompressedLen(n)
}

// Compressor drives the hash table across one or more fragments of a
// single Compress call. It holds no state between calls other than the
// reusable hash table backing buffer, and is safe to reuse (but not to
// share across concurrent goroutines). Call Close to return its hash
// table buffer to its pool once done.
type Compressor struct {
	table hashTable
}

// NewCompressor returns a ready-to-use Compressor drawing its hash
// table buffer from pool. A nil pool falls back to snappy.NewPool().
// The hash function is selected once here, at construction, rather
// than re-checked on every window.
func NewCompressor(pool snappy.BufferPool) *Compressor {
	if pool == nil {
		pool = snappy.NewPool()
	}
	c := &Compressor{}
	c.table.pool = pool
	c.table.hash = selectHash()
	return c
}

// Close returns the Compressor's hash table buffer to its pool. The
// Compressor must not be used afterward.
func (c *Compressor) Close() {
	c.table.release()
}

// Compress is the one-shot convenience form: it allocates its own
// Compressor and releases its pooled buffer before returning.
func Compress(dst, src []byte) (int, error) {
	c := NewCompressor(nil)
	defer c.Close()
	return c.Compress(dst, src)
}

// Compress writes the varint-encoded length of src followed by the
// concatenation of src's per-fragment tag streams into dst, and
// returns the number of bytes written. It fails with
// snappy.ErrOutputTooSmall iff dst cannot hold the result; it never
// fails for any other reason.
func (c *Compressor) Compress(dst, src []byte) (int, error) {
	// PutUvarint requires MaxVarintLen32 bytes of room in its dst, so the
	// prefix is encoded into a local array first and copied into dst
	// once its actual length is known.
	var prefix [snappy.MaxVarintLen32]byte
	prefixLen := snappy.PutUvarint(prefix[:], uint32(len(src)))
	if len(dst) < prefixLen {
		return 0, snappy.ErrOutputTooSmall
	}
	copy(dst, prefix[:prefixLen])

	d := prefixLen
	rest := src
	for len(rest) > 0 {
		frag := rest
		rest = nil
		if len(frag) > BlockSize {
			frag, rest = frag[:BlockSize], frag[BlockSize:]
		}

		n, ok := c.compressFragment(dst[d:], frag)
		if !ok {
			return 0, snappy.ErrOutputTooSmall
		}
		d += n
	}
	return d, nil
}

// minNonLiteralFragment is the smallest fragment size worth running the
// matcher over; below it, the fragment is emitted as a single literal.
// It must leave room for the matcher's inputMargin plus the mandatory
// leading literal byte.
const minNonLiteralFragment = 1 + 1 + inputMargin

func (c *Compressor) compressFragment(dst, src []byte) (int, bool) {
	if len(src) < minNonLiteralFragment {
		return emitLiteral(dst, src)
	}

	c.table.resize(len(src))

	sLimit := len(src) - inputMargin
	nextEmit := 0
	s := 1
	nextHash := c.table.index(load32(src, s))
	d := 0

	for {
		skip := 32
		nextS := s
		candidate := 0

		for {
			s = nextS
			bytesBetween := skip >> 5
			nextS = s + bytesBetween
			skip += bytesBetween
			if nextS > sLimit {
				goto emitRemainder
			}
			candidate = int(c.table.at(nextHash))
			c.table.set(nextHash, uint32(s))
			nextHash = c.table.index(load32(src, nextS))
			if load32(src, s) == load32(src, candidate) {
				break
			}
		}

		n, ok := emitLiteral(dst[d:], src[nextEmit:s])
		if !ok {
			return 0, false
		}
		d += n

		for {
			base := s
			matched, _ := findMatchLength(src, candidate+4, s+4, len(src))
			s = s + 4 + matched

			n, ok := emitCopy(dst[d:], base-candidate, s-base)
			if !ok {
				return 0, false
			}
			d += n
			nextEmit = s

			if s >= sLimit {
				goto emitRemainder
			}

			x := load64(src, s-1)
			prevHash := c.table.index(uint32(x))
			c.table.set(prevHash, uint32(s-1))
			currHash := c.table.index(uint32(x >> 8))
			candidate = int(c.table.at(currHash))
			c.table.set(currHash, uint32(s))
			if uint32(x>>8) != load32(src, candidate) {
				nextHash = c.table.index(uint32(x >> 16))
				s++
				break
			}
		}
	}

emitRemainder:
	if nextEmit < len(src) {
		n, ok := emitLiteral(dst[d:], src[nextEmit:])
		if !ok {
			return 0, false
		}
		d += n
	}
	return d, true
}

func load32(b []byte, i int) uint32 {
	return binary.LittleEndian.Uint32(b[i : i+4])
}

func load64(b []byte, i int) uint64 {
	return binary.LittleEndian.Uint64(b[i : i+8])
}

// emitLiteral writes a literal tag for lit, returning the bytes written
// and whether dst had room for them.
func emitLiteral(dst, lit []byte) (int, bool) {
	n := uint32(len(lit) - 1)
	var header int

	switch {
	case n < 60:
		header = 1
	case n < 1<<8:
		header = 2
	case n < 1<<16:
		header = 3
	case n < 1<<24:
		header = 4
	default:
		header = 5
	}

	need := header + len(lit)
	if need > len(dst) {
		return 0, false
	}

	if header == 1 {
		dst[0] = byte(n<<2) | tagLiteral
	} else {
		dst[0] = byte(uint32(58+header)<<2) | tagLiteral
		for i := 0; i < header-1; i++ {
			dst[1+i] = byte(n >> (8 * uint(i)))
		}
	}
	copy(dst[header:], lit)
	return need, true
}

// emitCopy writes one or more copy tags totaling length bytes at
// offset, chunking lengths over 64 into successive pieces (never
// leaving a [65,67]-byte remainder).
func emitCopy(dst []byte, offset, length int) (int, bool) {
	i := 0

	for length >= 68 {
		if i+3 > len(dst) {
			return 0, false
		}
		dst[i+0] = 63<<2 | tagCopy2
		dst[i+1] = byte(offset)
		dst[i+2] = byte(offset >> 8)
		i += 3
		length -= 64
	}

	if length > 64 {
		if i+3 > len(dst) {
			return 0, false
		}
		dst[i+0] = 59<<2 | tagCopy2
		dst[i+1] = byte(offset)
		dst[i+2] = byte(offset >> 8)
		i += 3
		length -= 60
	}

	if length >= 12 || offset >= 2048 {
		if i+3 > len(dst) {
			return 0, false
		}
		dst[i+0] = byte(length-1)<<2 | tagCopy2
		dst[i+1] = byte(offset)
		dst[i+2] = byte(offset >> 8)
		return i + 3, true
	}

	if i+2 > len(dst) {
		return 0, false
	}
	dst[i+0] = byte(offset>>8)<<5 | byte(length-4)<<2 | tagCopy1
	dst[i+1] = byte(offset)
	return i + 2, true
}

// findMatchLength returns the length of the common prefix of
// src[s1:] and src[s2:], bounded by limit-s2, and whether that length
// is shorter than 8 bytes (the point at which a whole-word compare
// stops being useful to the caller's next iteration).
func findMatchLength(src []byte, s1, s2, limit int) (int, bool) {
	s2Limit := limit
	matched := 0

	for s2+matched+8 <= s2Limit {
		x := load64(src, s1+matched) ^ load64(src, s2+matched)
		if x != 0 {
			return matched + bits.TrailingZeros64(x)/8, matched+bits.TrailingZeros64(x)/8 < 8
		}
		matched += 8
	}

	for s2+matched < s2Limit && src[s1+matched] == src[s2+matched] {
		matched++
	}
	return matched, matched < 8
}
