package relay

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/relay/abi"
	"github.com/outofforest/relay/types"
)

func TestParameterLifecycle(t *testing.T) {
	requireT := require.New(t)

	c := RunInTest(t, Config{})

	requireT.NoError(c.SetInt64("x", 5))

	v, err := c.GetInt64("x")
	requireT.NoError(err)
	requireT.EqualValues(5, v)

	prev, err := c.SwapInt64("x", 7)
	requireT.NoError(err)
	requireT.EqualValues(5, prev)

	v, err = c.GetInt64("x")
	requireT.NoError(err)
	requireT.EqualValues(7, v)

	requireT.ErrorIs(c.SetBool("x", true), types.ErrTypeMismatch)

	_, err = c.GetString("y")
	requireT.ErrorIs(err, types.ErrNotFound)
}

func TestParameterRoundTrips(t *testing.T) {
	requireT := require.New(t)

	c := RunInTest(t, Config{})

	requireT.NoError(c.SetInt64("i", -12))
	i, err := c.GetInt64("i")
	requireT.NoError(err)
	requireT.EqualValues(-12, i)

	requireT.NoError(c.SetBool("b", true))
	b, err := c.GetBool("b")
	requireT.NoError(err)
	requireT.True(b)

	requireT.NoError(c.SetFloat64("f", 3.25))
	f, err := c.GetFloat64("f")
	requireT.NoError(err)
	requireT.InDelta(3.25, f, 0)

	requireT.NoError(c.SetString("s", "hello"))
	s, err := c.GetString("s")
	requireT.NoError(err)
	requireT.Equal("hello", s)

	prevB, err := c.SwapBool("b", false)
	requireT.NoError(err)
	requireT.True(prevB)
	b, err = c.GetBool("b")
	requireT.NoError(err)
	requireT.False(b)

	prevF, err := c.SwapFloat64("f", 1.5)
	requireT.NoError(err)
	requireT.InDelta(3.25, prevF, 0)

	prevS, err := c.SwapString("s", "world")
	requireT.NoError(err)
	requireT.Equal("hello", prevS)
	s, err = c.GetString("s")
	requireT.NoError(err)
	requireT.Equal("world", s)
}

func TestParameterKindIsSticky(t *testing.T) {
	requireT := require.New(t)

	c := RunInTest(t, Config{})

	requireT.NoError(c.SetString("name", "value"))

	requireT.ErrorIs(c.SetInt64("name", 1), types.ErrTypeMismatch)
	requireT.ErrorIs(c.SetBool("name", true), types.ErrTypeMismatch)
	requireT.ErrorIs(c.SetFloat64("name", 1.0), types.ErrTypeMismatch)

	_, err := c.SwapInt64("name", 1)
	requireT.ErrorIs(err, types.ErrTypeMismatch)
	_, err = c.GetInt64("name")
	requireT.ErrorIs(err, types.ErrTypeMismatch)

	kind, err := c.ParamTypeOf("name")
	requireT.NoError(err)
	requireT.Equal(abi.ParamString, kind)

	_, err = c.ParamTypeOf("other")
	requireT.ErrorIs(err, types.ErrNotFound)
}

func TestParameterSwapIsAtomic(t *testing.T) {
	requireT := require.New(t)

	c := RunInTest(t, Config{})
	requireT.NoError(c.SetInt64("counter", 0))

	// Every worker swaps in its own marker; every observed prior value must
	// come from exactly one swap or the initial set.
	const numOfWorkers = 8
	const swapsPerWorker = 1000

	var mu sync.Mutex
	seen := map[int64]int{}

	var wg sync.WaitGroup
	for w := range numOfWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range swapsPerWorker {
				marker := int64(w*swapsPerWorker + i + 1)
				prev, err := c.SwapInt64("counter", marker)
				if err != nil {
					panic(err)
				}
				mu.Lock()
				seen[prev]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	for value, count := range seen {
		requireT.Equal(1, count, "value %d observed %d times", value, count)
	}
}
