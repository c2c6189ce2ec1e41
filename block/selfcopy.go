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

// incrementalCopy writes length bytes starting at dst[pos], such that
// the written region becomes the infinite repetition of the pattern
// dst[matchPos:pos]. matchPos must be < pos. This is the decompressor's
// back-reference routine, and the one place a pattern shorter than the
// copy length (the classic "run of length 10, offset 1" case) has to be
// handled explicitly.
//
// Reference implementations do this with a PSHUFB byte-shuffle to
// replicate short patterns across a 16-byte register; Go has no
// portable access to that without assembly, so this uses the other
// fallback the format allows: double the pattern in place until it is
// at least 8 bytes wide, then copy whole words.
func incrementalCopy(dst []byte, pos, matchPos, length int) {
	patternSize := pos - matchPos

	for patternSize < 8 && length > 0 {
		n := patternSize
		if n > length {
			n = length
		}
		copy(dst[pos:pos+n], dst[matchPos:pos])
		pos += n
		length -= n
		patternSize *= 2
	}

	for length >= 8 {
		copy(dst[pos:pos+8], dst[pos-patternSize:pos-patternSize+8])
		pos += 8
		length -= 8
	}

	for length > 0 {
		dst[pos] = dst[pos-patternSize]
		pos++
		length--
	}
}
