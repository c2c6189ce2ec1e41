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
	"encoding/binary"
	"fmt"

	"github.com/kanzigo/snappy"
	"github.com/kanzigo/snappy/block"
	"github.com/kanzigo/snappy/checksum"
)

// decoderState names which chunk (if any) the Reader is in the middle
// of consuming. Kept as an explicit enum rather than an implicit
// "current chunk type" field so every transition is a deliberate
// assignment.
type decoderState int

const (
	stateHeader decoderState = iota
	stateStreamIdentifier
	stateCompressedChunk
	stateUncompressedChunk
	stateSkipping
)

var snappyMagic = [streamIdentifierBodyLen]byte{'s', 'N', 'a', 'P', 'p', 'Y'}

// Reader decodes the Snappy framed stream format. Input is supplied
// via SetInput; output is drained via repeated Decompress calls. Once
// a chunk fails validation (bad CRC, bad magic, unknown unskippable
// chunk type), the Reader is permanently broken until Reset.
//
// A data chunk's CRC is checked once its whole payload has been copied
// out to dst, so the bytes of a chunk that fails the check have already
// been written to dst (and counted in Decompress's return values) when
// the error is reported.
type Reader struct {
	input []byte

	state decoderState

	headerScratch [chunkHeaderLen]byte
	headerLen     int

	chunkType     byte
	bodyRemaining int
	skippedLen    int

	idScratch [streamIdentifierBodyLen]byte
	idScratchLen int

	crcScratch    [checksumLen]byte
	crcScratchLen int
	expectedCRC   uint32
	actualCRC     uint32

	dec *block.Decompressor

	sawIdentifier bool
	fatal         error

	listener snappy.Listener
}

// NewReader returns a ready-to-use Reader with no input, drawing its
// block decompressor's lookback buffer from pool. A nil pool falls
// back to snappy.NewPool().
func NewReader(pool snappy.BufferPool) *Reader {
	return &Reader{dec: block.NewDecompressor(pool)}
}

// NeedMore reports whether the Reader currently holds no unconsumed
// input: Decompress cannot make further progress until SetInput
// supplies more bytes. KindInsufficientInput is never surfaced as an
// *Error - this query is the resumable API's way of distinguishing
// "give me more input" from "the stream ended" without treating
// ordinary resumption as failure.
func (r *Reader) NeedMore() bool {
	return len(r.input) == 0
}

// SetListener registers l to receive EventChunkSkipped and
// EventChecksumMismatch notifications.
func (r *Reader) SetListener(l snappy.Listener) {
	r.listener = l
}

// SetInput makes p the Reader's current unconsumed input. Call it
// again with the next slice once Decompress has consumed everything,
// as NeedMore reports.
func (r *Reader) SetInput(p []byte) {
	r.input = p
}

// Reset clears all decode state, including any fatal error, so the
// Reader can be reused for a new stream.
func (r *Reader) Reset() {
	dec := r.dec
	dec.Reset()
	*r = Reader{dec: dec}
}

// Decompress writes decoded bytes into dst, consuming as much of the
// current input (see SetInput) as needed, and returns the number of
// bytes written. It returns early - possibly with 0 bytes written -
// whenever the current input is exhausted before dst is full; call
// SetInput again and call Decompress again to continue.
func (r *Reader) Decompress(dst []byte) (int, error) {
	if r.fatal != nil {
		return 0, r.fatal
	}

	written := 0
	for written < len(dst) {
		switch r.state {
		case stateHeader:
			if !r.fillHeader() {
				return written, nil
			}
			if err := r.dispatchHeader(); err != nil {
				r.fatal = err
				return written, err
			}

		case stateStreamIdentifier:
			if !r.fillIdentifier() {
				return written, nil
			}
			if r.idScratch != snappyMagic {
				err := invalidData("bad stream identifier magic")
				r.fatal = err
				return written, err
			}
			r.sawIdentifier = true
			r.state = stateHeader

		case stateCompressedChunk:
			n, done, err := r.stepCompressed(dst[written:])
			written += n
			if err != nil {
				r.fatal = err
				return written, err
			}
			if !done {
				return written, nil
			}
			r.state = stateHeader

		case stateUncompressedChunk:
			n, done, err := r.stepUncompressed(dst[written:])
			written += n
			if err != nil {
				r.fatal = err
				return written, err
			}
			if !done {
				return written, nil
			}
			r.state = stateHeader

		case stateSkipping:
			if !r.stepSkip() {
				return written, nil
			}
			r.state = stateHeader
		}
	}
	return written, nil
}

func (r *Reader) fillHeader() bool {
	for r.headerLen < chunkHeaderLen && len(r.input) > 0 {
		r.headerScratch[r.headerLen] = r.input[0]
		r.input = r.input[1:]
		r.headerLen++
	}
	return r.headerLen == chunkHeaderLen
}

func (r *Reader) fillIdentifier() bool {
	for r.idScratchLen < streamIdentifierBodyLen && r.bodyRemaining > 0 && len(r.input) > 0 {
		r.idScratch[r.idScratchLen] = r.input[0]
		r.input = r.input[1:]
		r.idScratchLen++
		r.bodyRemaining--
	}
	return r.idScratchLen == streamIdentifierBodyLen
}

func (r *Reader) dispatchHeader() error {
	chunkType := r.headerScratch[0]
	bodyLen := int(r.headerScratch[1]) | int(r.headerScratch[2])<<8 | int(r.headerScratch[3])<<16
	r.headerLen = 0
	r.chunkType = chunkType

	if chunkType == chunkTypeStreamIdentifier {
		if bodyLen != streamIdentifierBodyLen {
			return invalidData("stream identifier chunk has length %d, want %d", bodyLen, streamIdentifierBodyLen)
		}
		r.idScratchLen = 0
		r.bodyRemaining = bodyLen
		r.state = stateStreamIdentifier
		return nil
	}

	if !r.sawIdentifier {
		return invalidData("stream does not begin with a stream identifier chunk")
	}

	switch {
	case chunkType == chunkTypeCompressed:
		if bodyLen < checksumLen || bodyLen > maxChunkBodyLen {
			return invalidData("compressed chunk body length %d out of range", bodyLen)
		}
		r.crcScratchLen = 0
		r.actualCRC = 0
		r.bodyRemaining = bodyLen - checksumLen
		r.dec.Reset()
		r.state = stateCompressedChunk

	case chunkType == chunkTypeUncompressed:
		if bodyLen < checksumLen || bodyLen > maxChunkBodyLen {
			return invalidData("uncompressed chunk body length %d out of range", bodyLen)
		}
		r.crcScratchLen = 0
		r.actualCRC = 0
		r.bodyRemaining = bodyLen - checksumLen
		r.state = stateUncompressedChunk

	case isSkippable(chunkType):
		r.bodyRemaining = bodyLen
		r.skippedLen = bodyLen
		r.state = stateSkipping

	case isReservedUnskippable(chunkType):
		return invalidData("reserved unskippable chunk type 0x%02x", chunkType)

	default:
		return invalidData("unknown chunk type 0x%02x", chunkType)
	}
	return nil
}

func (r *Reader) stepCompressed(dst []byte) (int, bool, error) {
	if r.crcScratchLen < checksumLen {
		for r.crcScratchLen < checksumLen && len(r.input) > 0 {
			r.crcScratch[r.crcScratchLen] = r.input[0]
			r.input = r.input[1:]
			r.crcScratchLen++
		}
		if r.crcScratchLen < checksumLen {
			return 0, false, nil
		}
		r.expectedCRC = binary.LittleEndian.Uint32(r.crcScratch[:])
	}

	for r.bodyRemaining > 0 && len(r.input) > 0 {
		n := r.bodyRemaining
		if n > len(r.input) {
			n = len(r.input)
		}
		consumed, err := r.dec.Write(r.input[:n])
		r.input = r.input[consumed:]
		r.bodyRemaining -= consumed
		if err != nil {
			return 0, false, err
		}
		if consumed == 0 {
			return 0, false, invalidData("compressed chunk has %d bytes past the end of its block", r.bodyRemaining)
		}
	}

	n := r.dec.Read(dst)
	if n > 0 {
		r.actualCRC = checksum.Extend(r.actualCRC, dst[:n])
	}

	if r.bodyRemaining > 0 || r.dec.Pending() > 0 {
		return n, false, nil
	}
	if !r.dec.Done() {
		return n, false, invalidData("compressed chunk ended before producing a full block")
	}
	if got, want := checksum.Mask(r.actualCRC), r.expectedCRC; got != want {
		snappy.Notify(r.listener, snappy.Event{Type: snappy.EventChecksumMismatch})
		return n, false, invalidData("checksum mismatch in compressed chunk: got %#08x, want %#08x", got, want)
	}
	return n, true, nil
}

func (r *Reader) stepUncompressed(dst []byte) (int, bool, error) {
	if r.crcScratchLen < checksumLen {
		for r.crcScratchLen < checksumLen && len(r.input) > 0 {
			r.crcScratch[r.crcScratchLen] = r.input[0]
			r.input = r.input[1:]
			r.crcScratchLen++
		}
		if r.crcScratchLen < checksumLen {
			return 0, false, nil
		}
		r.expectedCRC = binary.LittleEndian.Uint32(r.crcScratch[:])
	}

	n := r.bodyRemaining
	if n > len(dst) {
		n = len(dst)
	}
	if n > len(r.input) {
		n = len(r.input)
	}
	copy(dst[:n], r.input[:n])
	r.input = r.input[n:]
	r.bodyRemaining -= n
	if n > 0 {
		r.actualCRC = checksum.Extend(r.actualCRC, dst[:n])
	}

	if r.bodyRemaining > 0 {
		return n, false, nil
	}
	if got, want := checksum.Mask(r.actualCRC), r.expectedCRC; got != want {
		snappy.Notify(r.listener, snappy.Event{Type: snappy.EventChecksumMismatch})
		return n, false, invalidData("checksum mismatch in uncompressed chunk: got %#08x, want %#08x", got, want)
	}
	return n, true, nil
}

func (r *Reader) stepSkip() bool {
	n := r.bodyRemaining
	if n > len(r.input) {
		n = len(r.input)
	}
	r.input = r.input[n:]
	r.bodyRemaining -= n
	if r.bodyRemaining > 0 {
		return false
	}
	snappy.Notify(r.listener, snappy.Event{Type: snappy.EventChunkSkipped, InputSize: r.skippedLen})
	return true
}

func invalidData(format string, args ...interface{}) error {
	return &snappy.Error{Kind: snappy.KindInvalidData, Msg: fmt.Sprintf(format, args...)}
}
