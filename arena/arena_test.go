package arena

import (
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/relay/types"
)

func TestAlignmentAndRounding(t *testing.T) {
	requireT := require.New(t)

	a := RunInTest(t, Config{})

	for _, minWords := range []uint64{0, 1, 15, 16, 17, 100, 128, 1000, 100_000} {
		seg, err := a.Allocate(minWords)
		requireT.NoError(err)
		requireT.Zero(uintptr(seg.P) % types.CacheLineLength)
		requireT.Zero(seg.Len % types.WordsPerLine)
		requireT.GreaterOrEqual(seg.Len, minWords)
		a.Free(seg)
	}
}

func TestZeroInitialized(t *testing.T) {
	requireT := require.New(t)

	a := RunInTest(t, Config{})

	seg, err := a.Allocate(types.WordsPerLine)
	requireT.NoError(err)
	for _, b := range seg.Bytes() {
		requireT.Zero(b)
	}
	a.Free(seg)
}

func TestRecycledSegmentsAreZeroed(t *testing.T) {
	requireT := require.New(t)

	a := RunInTest(t, Config{RecycleCapacity: 1})

	seg, err := a.Allocate(types.WordsPerLine)
	requireT.NoError(err)
	for i := range seg.Bytes() {
		seg.Bytes()[i] = 0xff
	}
	a.Free(seg)

	// The eraser worker zeroes the segment before it may be handed out again.
	deadline := time.Now().Add(time.Second)
	for {
		seg2, err := a.Allocate(types.WordsPerLine)
		requireT.NoError(err)
		for _, b := range seg2.Bytes() {
			requireT.Zero(b)
		}
		reused := seg2.P == seg.P
		a.Free(seg2)

		if reused || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSegmentViews(t *testing.T) {
	requireT := require.New(t)

	a := RunInTest(t, Config{})

	seg, err := a.Allocate(2 * types.WordsPerLine)
	requireT.NoError(err)
	requireT.Len(seg.Words(), int(seg.Len))
	requireT.Len(seg.Bytes(), int(seg.Len*types.WordLength))
	requireT.Equal(unsafe.Pointer(&seg.Bytes()[0]), seg.P)

	seg.Words()[0] = 0x0123456789abcdef
	requireT.EqualValues(0xef, seg.Bytes()[0])

	a.Free(seg)
}
