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

// Package checksum computes the masked CRC32C used by every compressed
// and uncompressed chunk in the Snappy stream format.
package checksum

import "hash/crc32"

// castagnoli is the Castagnoli polynomial table. crc32.MakeTable picks
// a hardware-accelerated implementation (the amd64/arm64 CRC32
// instruction) when the running CPU supports it and falls back to a
// software slicing table otherwise - exactly the two-tier dispatch the
// format calls for, without hand-rolled assembly.
var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Extend appends p to the data that produced prev, returning the CRC32C
// of the concatenation. Extend(0, data) is the CRC32C of data alone.
// Extend is associative over concatenation:
// Extend(Extend(0, a), b) == Extend(0, append(a, b...)).
func Extend(prev uint32, p []byte) uint32 {
	return crc32.Update(prev, castagnoli, p)
}

// Checksum returns the CRC32C of p.
func Checksum(p []byte) uint32 {
	return Extend(0, p)
}

// maskDelta is the constant Mask adds in Snappy's rotate-and-add, applied
// to a raw CRC32C so that framed checksums don't collide with the bit
// patterns of common file magic numbers.
const maskDelta = 0xa282ead8

// Mask applies Snappy's CRC mask: rotate right 15 then add a constant,
// both mod 2^32.
func Mask(crc uint32) uint32 {
	return ((crc >> 15) | (crc << 17)) + maskDelta
}

// Unmask reverses Mask.
func Unmask(masked uint32) uint32 {
	rot := masked - maskDelta
	return (rot << 15) | (rot >> 17)
}

// MaskedChecksum is a convenience combining Checksum and Mask, the
// value written into every compressed/uncompressed stream chunk header.
func MaskedChecksum(p []byte) uint32 {
	return Mask(Checksum(p))
}
