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
	"hash/crc32"

	"golang.org/x/sys/cpu"

	"github.com/kanzigo/snappy"
)

const hashMultiplier = 0x1e35a7bd

// hashFunc maps a 32-bit little-endian input window to a table index
// in [0, 1<<tableBits).
type hashFunc func(w uint32, shift uint32) uint32

func multiplyHash(w uint32, shift uint32) uint32 {
	return (w * hashMultiplier) >> shift
}

var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

// crcHash is the alternate hash selected on CPUs with a hardware
// CRC32C instruction: empirically it yields match ratios comparable to
// the multiplicative hash, and reuses silicon the CRC32C checksum layer
// already needs, so it's effectively free when available.
func crcHash(w uint32, shift uint32) uint32 {
	b := [4]byte{byte(w), byte(w >> 8), byte(w >> 16), byte(w >> 24)}
	return crc32.Update(0, castagnoliTable, b[:]) >> shift
}

// selectHash is a one-time capability query performed at Compressor
// construction, not a per-window branch.
func selectHash() hashFunc {
	if cpu.X86.HasSSE42 {
		return crcHash
	}
	return multiplyHash
}

// hashTable is a power-of-two table of 16-bit absolute offsets into the
// fragment currently being compressed. It is reused across fragments
// and zeroed on every resize. Its backing storage is drawn from a
// snappy.BufferPool as a byte buffer - two bytes per entry, accessed
// through at/set - rather than a bare make([]uint16, ...), so it is
// poolable the same way the lookback and scratch buffers are.
type hashTable struct {
	pool    snappy.BufferPool
	buf     []byte
	entries int
	shift   uint32
	hash    hashFunc
}

// tableSizeFor returns the power-of-two entry count to use for a
// fragment of n bytes, clamped to [256, 16384].
func tableSizeFor(n int) int {
	size := 256
	for size < n && size < 1<<maxHashTableBits {
		size <<= 1
	}
	return size
}

func (h *hashTable) resize(n int) {
	size := tableSizeFor(n)
	need := size * 2
	if cap(h.buf) < need {
		if h.buf != nil {
			h.pool.Put(h.buf)
		}
		h.buf = h.pool.Get(need)
	} else {
		h.buf = h.buf[:need]
	}
	for i := range h.buf {
		h.buf[i] = 0
	}
	h.entries = size
	h.shift = 32 - log2(uint32(size))
}

// release returns the table's backing buffer to its pool. Safe to call
// on a hashTable that never resized.
func (h *hashTable) release() {
	if h.buf != nil {
		h.pool.Put(h.buf)
		h.buf = nil
		h.entries = 0
	}
}

func log2(n uint32) uint32 {
	var b uint32
	for n > 1 {
		n >>= 1
		b++
	}
	return b
}

func (h *hashTable) index(w uint32) uint32 {
	return h.hash(w, h.shift)
}

// at returns the 16-bit entry at index i.
func (h *hashTable) at(i uint32) uint32 {
	return uint32(binary.LittleEndian.Uint16(h.buf[2*i:]))
}

// set stores v (truncated to 16 bits) at index i.
func (h *hashTable) set(i uint32, v uint32) {
	binary.LittleEndian.PutUint16(h.buf[2*i:], uint16(v))
}
