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

import "fmt"

// EventType enumerates the stream-level milestones a Listener can
// observe. The core itself never logs; this is the opt-in alternative
// for a caller that wants visibility without pulling in a logging
// dependency.
type EventType int

const (
	// EventStreamStart fires once, on the first Write or Flush (Close
	// included) of a stream Writer.
	EventStreamStart EventType = iota
	// EventBlockCompressed fires when a block was emitted as a
	// compressed chunk.
	EventBlockCompressed
	// EventBlockStored fires when a block grew under compression and
	// was emitted as an uncompressed chunk instead.
	EventBlockStored
	// EventChunkSkipped fires when the stream reader discards a
	// skippable chunk.
	EventChunkSkipped
	// EventChecksumMismatch fires when a chunk's CRC32C fails
	// validation, immediately before the read fails.
	EventChecksumMismatch
)

func (t EventType) String() string {
	switch t {
	case EventStreamStart:
		return "stream-start"
	case EventBlockCompressed:
		return "block-compressed"
	case EventBlockStored:
		return "block-stored"
	case EventChunkSkipped:
		return "chunk-skipped"
	case EventChecksumMismatch:
		return "checksum-mismatch"
	default:
		return "unknown"
	}
}

// Event describes a single milestone reported to a Listener.
type Event struct {
	Type EventType
	// InputSize and OutputSize describe the block a compression event
	// pertains to; both are zero for events with no associated block.
	InputSize  int
	OutputSize int
}

func (e Event) String() string {
	return fmt.Sprintf("%s (in=%d, out=%d)", e.Type, e.InputSize, e.OutputSize)
}

// Listener receives Events from a stream Writer or Reader. A nil
// Listener is always safe to use; callers that don't need visibility
// simply don't register one.
type Listener interface {
	ProcessEvent(evt Event)
}

// Notify calls l.ProcessEvent if l is non-nil. Used throughout the
// stream package so call sites never need a nil check of their own.
func Notify(l Listener, evt Event) {
	if l != nil {
		l.ProcessEvent(evt)
	}
}
