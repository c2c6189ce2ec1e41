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

package snappy

// MaxCompressedLen returns the size of the largest buffer that could
// ever be needed to hold the compressed form of an n-byte input,
// including the varint length prefix. Sizing a one-shot output buffer
// with this value always leaves enough room; it is intentionally a
// loose bound, not a prediction of actual compressed size. Callers
// never need to add MaxVarintLen32 themselves.
func MaxCompressedLen(n int) int {
	return 32 + n + n/6 + 1 + MaxVarintLen32
}

// UncompressedLen reads the varint-encoded uncompressed length from the
// front of a block, returning the decoded length and the number of
// prefix bytes consumed. It fails with KindInvalidData on overflow or a
// malformed varint, and returns (0, 0, nil) if blockPrefix does not yet
// hold a complete varint.
func UncompressedLen(blockPrefix []byte) (length int, n int, err error) {
	v, consumed, err := ReadUvarint(blockPrefix)
	if err != nil {
		return 0, 0, err
	}
	if consumed == 0 {
		return 0, 0, nil
	}
	return int(v), consumed, nil
}
