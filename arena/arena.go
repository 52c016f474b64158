package arena

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/outofforest/parallel"
	"github.com/outofforest/relay/types"
)

// Segments up to this many cache lines are recycled through the arena
// instead of being returned to the OS.
const maxRecycledLines = 64

const defaultRecycleCapacity = 16

// Config stores arena configuration.
type Config struct {
	// RecycleCapacity is the number of segments kept per size class.
	RecycleCapacity uint64

	// NumOfEraseWorkers is the number of workers zeroing released segments.
	NumOfEraseWorkers uint64
}

// New creates new arena.
func New(config Config) *Arena {
	if config.RecycleCapacity == 0 {
		config.RecycleCapacity = defaultRecycleCapacity
	}
	if config.NumOfEraseWorkers == 0 {
		config.NumOfEraseWorkers = 1
	}

	a := &Arena{
		config:    config,
		releaseCh: make(chan types.Segment, maxRecycledLines),
	}
	for i := range a.recycleChs {
		a.recycleChs[i] = make(chan types.Segment, config.RecycleCapacity)
	}
	return a
}

// Arena allocates cache-line-aligned word segments. Each segment is
// exclusively owned by the message buffer which requested it; the arena
// keeps no record of live segments.
type Arena struct {
	config     Config
	recycleChs [maxRecycledLines + 1]chan types.Segment
	releaseCh  chan types.Segment
}

// Allocate returns a zeroed segment of at least minWords words. The returned
// segment is aligned to the cache line size and its length is a multiple of
// 16 words. Allocation fails only when memory is exhausted.
func (a *Arena) Allocate(minWords uint64) (types.Segment, error) {
	lines := (minWords + types.WordsPerLine - 1) / types.WordsPerLine
	if lines == 0 {
		lines = 1
	}

	if lines <= maxRecycledLines {
		select {
		case seg := <-a.recycleChs[lines]:
			return seg, nil
		default:
		}
	}

	return mapSegment(lines)
}

// Free releases a segment. Small segments are handed to the eraser workers
// for zeroing and reuse, everything else goes back to the OS.
func (a *Arena) Free(seg types.Segment) {
	if seg.P == nil {
		return
	}

	if seg.Len/types.WordsPerLine <= maxRecycledLines {
		select {
		case a.releaseCh <- seg:
			return
		default:
		}
	}

	unmapSegment(seg)
}

// Run runs the eraser workers zeroing released segments before they are
// handed out again.
func (a *Arena) Run(ctx context.Context) error {
	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		for i := range a.config.NumOfEraseWorkers {
			spawn(fmt.Sprintf("eraser-%02d", i), parallel.Fail, func(ctx context.Context) error {
				for {
					select {
					case <-ctx.Done():
						return errors.WithStack(ctx.Err())
					case seg := <-a.releaseCh:
						clear(seg.Bytes())
						select {
						case a.recycleChs[seg.Len/types.WordsPerLine] <- seg:
						default:
							unmapSegment(seg)
						}
					}
				}
			})
		}
		return nil
	})
}

// Close returns all cached segments to the OS. Allocate must not be called
// afterwards.
func (a *Arena) Close() {
	for {
		select {
		case seg := <-a.releaseCh:
			unmapSegment(seg)
			continue
		default:
		}
		break
	}

	for i := range a.recycleChs {
		for {
			select {
			case seg := <-a.recycleChs[i]:
				unmapSegment(seg)
				continue
			default:
			}
			break
		}
	}
}

func mapSegment(lines uint64) (types.Segment, error) {
	size := uintptr(lines * types.CacheLineLength)
	p, err := unix.MmapPtr(-1, 0, nil, size, unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED|unix.MAP_ANONYMOUS)
	if err != nil {
		return types.Segment{}, errors.Wrapf(types.ErrOutOfMemory, "segment allocation failed: %s", err)
	}

	return types.Segment{P: p, Len: lines * types.WordsPerLine}, nil
}

func unmapSegment(seg types.Segment) {
	// mmap rounds every mapping up to a multiple of the page size and munmap
	// expects that rounded size back.
	size := uintptr(seg.Len * types.WordLength)
	pageSize := uintptr(os.Getpagesize())
	_ = unix.MunmapPtr(seg.P, (size+pageSize-1)/pageSize*pageSize)
}
