// Package msg implements the segmented message buffer shared between one
// publisher and all matching subscribers.
package msg

import (
	"sync/atomic"

	"github.com/outofforest/relay/arena"
	"github.com/outofforest/relay/types"
)

// NewBuffer creates new message buffer in the building state.
func NewBuffer(a *arena.Arena, msgType types.MessageType) *Buffer {
	return &Buffer{
		arena:   a,
		msgType: msgType,
	}
}

// Buffer is a grow-only list of word segments plus the declared message
// type. It is append-only while building, frozen once handed to dispatch and
// released when the last delivery drops its reference.
type Buffer struct {
	arena    *arena.Arena
	msgType  types.MessageType
	segments []types.Segment
	refs     atomic.Int64
	frozen   bool
}

// Builder returns the build-phase interface of the buffer.
func (b *Buffer) Builder() *Builder {
	return &Builder{buffer: b}
}

// Freeze seals the buffer and returns the read view over its segments.
// No segment may be allocated afterwards.
func (b *Buffer) Freeze() View {
	b.frozen = true
	return View{
		Type:     b.msgType,
		Segments: b.segments,
	}
}

// Acquire adds n references, one per pending delivery.
func (b *Buffer) Acquire(n int64) {
	b.refs.Add(n)
}

// Release drops one reference. The last reference returns all segments to
// the arena.
func (b *Buffer) Release() {
	if b.refs.Add(-1) == 0 {
		b.free()
	}
}

// Discard drops a buffer which was never handed to dispatch, releasing the
// partially built message whole.
func (b *Buffer) Discard() {
	b.free()
}

func (b *Buffer) free() {
	for _, seg := range b.segments {
		b.arena.Free(seg)
	}
	b.segments = nil
}

// Builder appends segments to a building buffer.
type Builder struct {
	buffer *Buffer
}

// AllocateSegment appends a new segment of at least minWords words and
// returns the writable view into it.
func (b *Builder) AllocateSegment(minWords uint64) (types.Segment, error) {
	if b.buffer.frozen {
		panic("segment allocated on a frozen buffer")
	}

	seg, err := b.buffer.arena.Allocate(minWords)
	if err != nil {
		return types.Segment{}, err
	}
	b.buffer.segments = append(b.buffer.segments, seg)
	return seg, nil
}

// View is a borrowed read-only view over a frozen buffer's segments in
// insertion order. It is valid only for the span of the callback invocation
// receiving it; subscribers must not retain it.
type View struct {
	Type     types.MessageType
	Segments []types.Segment
}
