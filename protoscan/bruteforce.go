package protoscan

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// setTag is the encoded tag of FileDescriptorSet.file, the first byte of
// any set that holds at least one file.
const setTag = 0x0a

// nextWindow returns the window length that follows n, capped at limit.
func nextWindow(n, limit int) int {
	n = n*3/2 + 1
	if n > limit {
		n = limit
	}
	return n
}

// windows returns the full window schedule for a start offset that has
// remaining bytes after it.
func (s *Scanner) windows(remaining int) []int {
	limit := s.o.MaxWindow
	if remaining < limit {
		limit = remaining
	}
	if limit < 1 {
		return nil
	}

	n := s.o.MinWindow
	if n > limit {
		n = limit
	}

	res := []int{n}
	for n < limit {
		n = nextWindow(n, limit)
		res = append(res, n)
	}
	return res
}

// hitTracker keeps the lowest-offset hit reported by any worker.
type hitTracker struct {
	best int64 // lowest hit offset, read without the lock

	mu  sync.Mutex
	rec *Recovery
}

func (t *hitTracker) below(off int) bool {
	return int64(off) < atomic.LoadInt64(&t.best)
}

func (t *hitTracker) offer(rec *Recovery) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rec == nil || rec.Offset < t.rec.Offset {
		t.rec = rec
		atomic.StoreInt64(&t.best, int64(rec.Offset))
	}
}

// bruteForce tries every start offset with every scheduled window length.
// Offsets are split into chunks that workers claim in increasing order, so
// a worker may stop as soon as it passes the lowest hit known so far. The
// result is the hit with the lowest offset, and for that offset the
// shortest window, regardless of scheduling.
func (s *Scanner) bruteForce(ctx context.Context, data []byte) (*Recovery, error) {
	size := len(data)
	chunk := int64(s.o.ChunkSize)
	hits := &hitTracker{best: int64(size)}

	var next int64
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < s.o.Workers; w++ {
		g.Go(func() error {
			for {
				start := int(atomic.AddInt64(&next, chunk) - chunk)
				if start >= size || !hits.below(start) {
					return nil
				}

				end := start + int(chunk)
				if end > size {
					end = size
				}

				for off := start; off < end && hits.below(off); off++ {
					if data[off] != setTag {
						continue
					}

					rec, err := s.tryOffset(gctx, data, off)
					if err != nil {
						return err
					}
					if rec != nil {
						hits.offer(rec)
						return nil
					}
				}
			}
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return hits.rec, nil
}

// tryOffset tries all windows starting at off, shortest first.
func (s *Scanner) tryOffset(ctx context.Context, data []byte, off int) (*Recovery, error) {
	for _, n := range s.windows(len(data) - off) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if set := s.parse(data[off:off+n], true); set != nil {
			return &Recovery{Set: set, Stage: StageBruteForce, Offset: off, Length: n}, nil
		}
	}
	return nil, nil
}
