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
	"bytes"
	"crypto/rand"
	"errors"
	"testing"

	"gotest.tools/v3/assert"
	"pgregory.net/rapid"

	"github.com/kanzigo/snappy"
	"github.com/kanzigo/snappy/block"
)

// drain reads every byte the Reader has, across as many Decompress
// calls as needed, given the full compressed stream already available
// as one slice (the simplest possible chunking of the input).
func drain(t *testing.T, r *Reader, compressed []byte) []byte {
	t.Helper()
	r.SetInput(compressed)

	var out bytes.Buffer
	buf := make([]byte, 4096)
	for {
		n, err := r.Decompress(buf)
		assert.NilError(t, err)
		out.Write(buf[:n])
		if n == 0 {
			break
		}
	}
	return out.Bytes()
}

func compressToBytes(t *testing.T, src []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := NewWriter(&buf, nil)
	_, err := w.Write(src)
	assert.NilError(t, err)
	assert.NilError(t, w.Close())
	return buf.Bytes()
}

func TestStreamRoundTrip(t *testing.T) {
	src := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 10000)
	compressed := compressToBytes(t, src)

	r := NewReader(nil)
	got := drain(t, r, compressed)
	assert.Assert(t, bytes.Equal(got, src))
}

func TestStreamEmptyInput(t *testing.T) {
	compressed := compressToBytes(t, nil)
	assert.Assert(t, bytes.Equal(compressed, streamIdentifier[:]))

	r := NewReader(nil)
	got := drain(t, r, compressed)
	assert.Equal(t, len(got), 0)
}

func TestStreamIncompressibleBlockStoredUncompressed(t *testing.T) {
	src := make([]byte, block.BlockSize)
	_, err := rand.Read(src)
	assert.NilError(t, err)

	compressed := compressToBytes(t, src)

	// Right after the 10-byte identifier sits the one data chunk's
	// header; its type byte must be the uncompressed marker.
	assert.Equal(t, compressed[10], byte(chunkTypeUncompressed))

	r := NewReader(nil)
	got := drain(t, r, compressed)
	assert.Assert(t, bytes.Equal(got, src))
}

func TestStreamCRCTamperingFails(t *testing.T) {
	src := []byte("some reasonably compressible text text text text")
	compressed := compressToBytes(t, src)

	// Flip a bit in the first data chunk's CRC, which sits immediately
	// after the 10-byte identifier and 4-byte chunk header.
	tampered := append([]byte(nil), compressed...)
	tampered[10+chunkHeaderLen] ^= 0x01

	r := NewReader(nil)
	r.SetInput(tampered)
	buf := make([]byte, len(src)+16)
	_, err := r.Decompress(buf)
	assert.Assert(t, err != nil)

	var serr *snappy.Error
	assert.Assert(t, errors.As(err, &serr))
	assert.Equal(t, serr.Kind, snappy.KindInvalidData)
}

func TestStreamRejectsMissingIdentifier(t *testing.T) {
	r := NewReader(nil)
	r.SetInput([]byte{chunkTypeUncompressed, 4, 0, 0, 1, 2, 3, 4})
	buf := make([]byte, 16)
	_, err := r.Decompress(buf)
	assert.Assert(t, err != nil)
}

func TestStreamSkipsSkippableChunk(t *testing.T) {
	src := []byte("payload after a skippable chunk")
	var buf bytes.Buffer
	buf.Write(streamIdentifier[:])

	var header [chunkHeaderLen]byte
	putChunkHeader(header[:], 0x80, 5)
	buf.Write(header[:])
	buf.Write([]byte{9, 9, 9, 9, 9})

	dataChunk := compressToBytes(t, src)
	buf.Write(dataChunk[len(streamIdentifier):])

	r := NewReader(nil)
	got := drain(t, r, buf.Bytes())
	assert.Assert(t, bytes.Equal(got, src))
}

func TestStreamByteAtATimeInput(t *testing.T) {
	src := bytes.Repeat([]byte("abcdefghijklmnop"), 5000)
	compressed := compressToBytes(t, src)

	r := NewReader(nil)
	var out bytes.Buffer
	buf := make([]byte, 1)
	for i := 0; i < len(compressed); i++ {
		r.SetInput(compressed[i : i+1])
		for {
			n, err := r.Decompress(buf)
			assert.NilError(t, err)
			out.Write(buf[:n])
			if n == 0 {
				break
			}
		}
	}
	assert.Assert(t, bytes.Equal(out.Bytes(), src))
}

// TestStreamNeedMore checks that NeedMore tracks whether the Reader
// currently holds unconsumed input, both when a chunk is only
// partially fed and after it has all been drained.
func TestStreamNeedMore(t *testing.T) {
	src := []byte("needs more input to finish this chunk")
	compressed := compressToBytes(t, src)

	r := NewReader(nil)
	assert.Assert(t, r.NeedMore())

	r.SetInput(compressed[:5])
	buf := make([]byte, len(src)+16)
	_, err := r.Decompress(buf)
	assert.NilError(t, err)
	assert.Assert(t, r.NeedMore())

	r.SetInput(compressed[5:])
	n, err := r.Decompress(buf)
	assert.NilError(t, err)
	assert.Equal(t, n, len(src))
	assert.Assert(t, r.NeedMore())
}

func TestStreamRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		src := rapid.SliceOfN(rapid.Byte(), 0, 20000).Draw(t, "src")
		var buf bytes.Buffer
		w := NewWriter(&buf, nil)
		n, err := w.Write(src)
		assert.NilError(t, err)
		assert.Equal(t, n, len(src))
		assert.NilError(t, w.Close())

		r := NewReader(nil)
		r.SetInput(buf.Bytes())
		var out bytes.Buffer
		dst := make([]byte, 777)
		for {
			n, err := r.Decompress(dst)
			assert.NilError(t, err)
			out.Write(dst[:n])
			if n == 0 {
				break
			}
		}
		assert.Assert(t, bytes.Equal(out.Bytes(), src))
	})
}
