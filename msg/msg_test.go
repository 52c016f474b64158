package msg

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/relay/arena"
	"github.com/outofforest/relay/types"
)

const msgType types.MessageType = 0x93c2012830d68d3c

func TestBuildAndView(t *testing.T) {
	requireT := require.New(t)

	a := arena.RunInTest(t, arena.Config{})
	buf := NewBuffer(a, msgType)
	builder := buf.Builder()

	seg1, err := builder.AllocateSegment(1)
	requireT.NoError(err)
	copy(seg1.Bytes(), "Hello, world!")

	seg2, err := builder.AllocateSegment(3 * types.WordsPerLine)
	requireT.NoError(err)
	seg2.Words()[17] = 42

	view := buf.Freeze()
	requireT.Equal(msgType, view.Type)
	requireT.Len(view.Segments, 2)
	requireT.Equal([]byte("Hello, world!"), view.Segments[0].Bytes()[:13])
	requireT.EqualValues(42, view.Segments[1].Words()[17])
	requireT.Equal(seg1.P, view.Segments[0].P)
	requireT.Equal(seg2.P, view.Segments[1].P)

	buf.Acquire(1)
	buf.Release()
}

func TestReleaseOnLastReference(t *testing.T) {
	requireT := require.New(t)

	a := arena.RunInTest(t, arena.Config{})
	buf := NewBuffer(a, msgType)

	_, err := buf.Builder().AllocateSegment(1)
	requireT.NoError(err)

	view := buf.Freeze()
	requireT.Len(view.Segments, 1)

	buf.Acquire(3)
	buf.Release()
	buf.Release()
	requireT.NotNil(buf.segments)
	buf.Release()
	requireT.Nil(buf.segments)
}

func TestDiscard(t *testing.T) {
	requireT := require.New(t)

	a := arena.RunInTest(t, arena.Config{})
	buf := NewBuffer(a, msgType)

	_, err := buf.Builder().AllocateSegment(1)
	requireT.NoError(err)
	_, err = buf.Builder().AllocateSegment(1)
	requireT.NoError(err)

	buf.Discard()
	requireT.Nil(buf.segments)
}

func TestAllocateAfterFreezePanics(t *testing.T) {
	requireT := require.New(t)

	a := arena.RunInTest(t, arena.Config{})
	buf := NewBuffer(a, msgType)
	builder := buf.Builder()

	_, err := builder.AllocateSegment(1)
	requireT.NoError(err)
	buf.Freeze()

	requireT.Panics(func() {
		_, _ = builder.AllocateSegment(1)
	})

	buf.Acquire(1)
	buf.Release()
}
