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

// Package stream implements the Snappy framed stream format: a stream
// identifier chunk followed by any number of compressed, uncompressed,
// or skippable chunks, each guarded by a masked CRC32C of its
// uncompressed payload.
package stream

import "github.com/kanzigo/snappy/block"

const (
	chunkTypeCompressed        = 0x00
	chunkTypeUncompressed      = 0x01
	chunkTypeStreamIdentifier  = 0xff
	reservedSkippableLo        = 0x80
	reservedSkippableHi        = 0xfd
	reservedUnskippableLo      = 0x02
	reservedUnskippableHi      = 0x7f
	chunkHeaderLen             = 4
	checksumLen                = 4
	streamIdentifierBodyLen    = 6
	maxChunkBodyLen            = block.BlockSize + checksumLen
)

// streamIdentifier is the fixed 10-byte chunk every stream must begin
// with: type 0xff, 3-byte length 6, then the 6-byte magic body.
var streamIdentifier = [10]byte{chunkTypeStreamIdentifier, 6, 0, 0, 's', 'N', 'a', 'P', 'p', 'Y'}

func isReservedUnskippable(chunkType byte) bool {
	return chunkType >= reservedUnskippableLo && chunkType <= reservedUnskippableHi
}

func isSkippable(chunkType byte) bool {
	return chunkType >= reservedSkippableLo && chunkType <= reservedSkippableHi
}

func putChunkHeader(dst []byte, chunkType byte, bodyLen int) {
	dst[0] = chunkType
	dst[1] = byte(bodyLen)
	dst[2] = byte(bodyLen >> 8)
	dst[3] = byte(bodyLen >> 16)
}
