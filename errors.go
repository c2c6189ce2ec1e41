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

// Package snappy implements the Snappy block and stream compression
// formats: a single-pass LZ77-style matcher tuned for throughput rather
// than ratio, plus a length-delimited, checksummed stream framing on top.
package snappy

import "fmt"

// Kind classifies a failure returned by this module. Callers that need to
// branch on failure type should use errors.As to recover an *Error and
// switch on Kind, rather than comparing error strings.
type Kind int

const (
	// KindInvalidData marks a malformed block or stream: a bad varint, a
	// copy offset of zero or past the start of the output, an unknown
	// unskippable chunk type, a bad stream-identifier magic, or a CRC
	// mismatch.
	KindInvalidData Kind = iota
	// KindOutputTooSmall marks a destination buffer that cannot hold the
	// result. The caller may retry with a larger buffer.
	KindOutputTooSmall
	// KindClosed marks an operation attempted on a released instance.
	KindClosed
	// KindInsufficientInput marks a resumable stream.Reader that cannot
	// make progress until more input arrives. It is never constructed
	// as an *Error: Decompress returns (0, nil) in this situation, and
	// callers distinguish it from end-of-stream with Reader.NeedMore.
	// The Kind exists so it can still be named in error-kind switches.
	KindInsufficientInput
)

func (k Kind) String() string {
	switch k {
	case KindInvalidData:
		return "invalid data"
	case KindOutputTooSmall:
		return "output too small"
	case KindClosed:
		return "instance closed"
	case KindInsufficientInput:
		return "insufficient input"
	default:
		return "unknown error"
	}
}

// Error is the single error type returned by this module's exported
// entry points. The core never logs or retries; every failure surfaces
// here for the caller to act on.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("snappy: %s: %s", e.Kind, e.Msg)
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// ErrOutputTooSmall is returned whenever a destination buffer cannot
// hold the result of an operation. Callers that don't need formatted
// detail can compare against it directly with errors.Is.
var ErrOutputTooSmall = &Error{Kind: KindOutputTooSmall, Msg: "output too small"}

// ErrClosed is returned by a stream Writer's Write and Flush, and by a
// block Decompressor's Write, once that instance has been closed.
var ErrClosed = &Error{Kind: KindClosed, Msg: "instance closed"}
