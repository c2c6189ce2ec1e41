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
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gotest.tools/v3/assert"
	"pgregory.net/rapid"

	"github.com/kanzigo/snappy"
)

func roundTrip(t *testing.T, src []byte) {
	t.Helper()

	dst := make([]byte, MaxCompressedLen(len(src)))
	n, err := Compress(dst, src)
	assert.NilError(t, err)
	dst = dst[:n]

	gotLen, _, err := snappy.UncompressedLen(dst)
	assert.NilError(t, err)
	assert.Equal(t, gotLen, len(src))

	out := make([]byte, gotLen)
	n, err = Decompress(out, dst)
	assert.NilError(t, err)
	assert.Equal(t, n, len(src))
	// cmp.Diff over go-cmp gives a byte-range diff on failure, rather
	// than bytes.Equal's bare boolean, when a round trip does diverge.
	if diff := cmp.Diff(src, out[:n]); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestCompressEmpty(t *testing.T) {
	roundTrip(t, nil)
}

func TestCompressSingleByte(t *testing.T) {
	roundTrip(t, []byte{0x61})
}

func TestCompressSmallRepeat(t *testing.T) {
	// "abcabcabc..." period-3 back-reference, 33 bytes: long enough to
	// clear minNonLiteralFragment so the matcher runs over it.
	roundTrip(t, []byte("abcabcabcabcabcabcabcabcabcabcabc"))
}

// TestCompressByteExactEmpty pins Compress's output for an empty
// fragment: a single varint byte, no tags.
func TestCompressByteExactEmpty(t *testing.T) {
	dst := make([]byte, MaxCompressedLen(0))
	n, err := Compress(dst, nil)
	assert.NilError(t, err)
	assert.Assert(t, bytes.Equal(dst[:n], []byte{0x00}))
}

// TestCompressByteExactSingleByte pins Compress's output for a
// one-byte fragment: varint length, then a one-byte literal tag.
func TestCompressByteExactSingleByte(t *testing.T) {
	src := []byte{0x41}
	dst := make([]byte, MaxCompressedLen(len(src)))
	n, err := Compress(dst, src)
	assert.NilError(t, err)
	assert.Assert(t, bytes.Equal(dst[:n], []byte{0x01, 0x00, 0x41}))
}

// TestCompressByteExactSmallRepeat pins Compress's output for ten
// repeated bytes - too short to clear minNonLiteralFragment, so the
// whole fragment is one flat literal tag rather than a literal byte
// plus a back-reference. See DESIGN.md for why a ten-byte input can
// never produce a Copy1 tag under this (and the reference C++
// implementation's) inputMargin.
func TestCompressByteExactSmallRepeat(t *testing.T) {
	src := bytes.Repeat([]byte{0x61}, 10)
	dst := make([]byte, MaxCompressedLen(len(src)))
	n, err := Compress(dst, src)
	assert.NilError(t, err)
	want := append([]byte{0x0a, 0x24}, src...)
	assert.Assert(t, bytes.Equal(dst[:n], want))
}

func TestCompressIncompressible(t *testing.T) {
	src := make([]byte, 4096)
	for i := range src {
		src[i] = byte(i * 2654435761 >> 24)
	}
	roundTrip(t, src)
}

func TestCompressAcrossFragmentBoundary(t *testing.T) {
	src := bytes.Repeat([]byte("0123456789"), BlockSize/5)
	roundTrip(t, src)
}

func TestCompressReuseAcrossCalls(t *testing.T) {
	c := NewCompressor(nil)
	defer c.Close()
	for _, s := range [][]byte{
		[]byte("the quick brown fox"),
		nil,
		bytes.Repeat([]byte("x"), 1000),
		[]byte("jumps over the lazy dog"),
	} {
		dst := make([]byte, MaxCompressedLen(len(s)))
		n, err := c.Compress(dst, s)
		assert.NilError(t, err)
		out := make([]byte, len(s))
		n2, err := Decompress(out, dst[:n])
		assert.NilError(t, err)
		assert.Equal(t, n2, len(s))
		assert.Assert(t, bytes.Equal(out, s))
	}
}

func TestCompressOutputTooSmall(t *testing.T) {
	src := []byte("hello, world")
	_, err := Compress(make([]byte, 1), src)
	assert.ErrorIs(t, err, snappy.ErrOutputTooSmall)
}

func TestCompressRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		src := rapid.SliceOfN(rapid.Byte(), 0, 8192).Draw(t, "src")
		roundTrip(t, src)
	})
}

func TestCompressNeverExceedsMaxCompressedLen(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		src := rapid.SliceOfN(rapid.Byte(), 0, 8192).Draw(t, "src")
		dst := make([]byte, MaxCompressedLen(len(src)))
		n, err := Compress(dst, src)
		assert.NilError(t, err)
		assert.Assert(t, n <= len(dst))
	})
}

func TestFindMatchLength(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "abd", 2},
		{"abcdefgh", "abcdefgh", 8},
		{"abcdefghijk", "abcdefghijx", 10},
	}
	for _, c := range cases {
		buf := append([]byte(c.a), c.b...)
		got, _ := findMatchLength(buf, 0, len(c.a), len(buf))
		assert.Equal(t, got, c.want)
	}
}

func TestIncrementalCopyShortPattern(t *testing.T) {
	// offset 1: a run of a single repeated byte, extended past the
	// initial 1-byte pattern by the doubling loop.
	dst := make([]byte, 10)
	dst[0] = 'a'
	incrementalCopy(dst, 1, 0, 9)
	assert.Assert(t, bytes.Equal(dst, bytes.Repeat([]byte("a"), 10)))
}

func TestIncrementalCopyPeriod3(t *testing.T) {
	dst := make([]byte, 9)
	copy(dst, "abc")
	incrementalCopy(dst, 3, 0, 6)
	assert.Assert(t, bytes.Equal(dst, []byte("abcabcabc")))
}
