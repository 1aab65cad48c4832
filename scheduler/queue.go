package scheduler

import (
	"container/heap"
	"sort"

	"github.com/sendspin-audio/sendspin-go/decode"
)

// frameQueue orders queued decoded frames by server_time ascending,
// grounded on the resonate-go scheduler's heap-backed BufferQueue.
type frameQueue []decode.DecodedFrame

func (q frameQueue) Len() int            { return len(q) }
func (q frameQueue) Less(i, j int) bool  { return q[i].ServerTimeUs < q[j].ServerTimeUs }
func (q frameQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *frameQueue) Push(x any)         { *q = append(*q, x.(decode.DecodedFrame)) }
func (q *frameQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

var _ heap.Interface = (*frameQueue)(nil)

// drainSorted empties q and returns its contents sorted (stably) by
// server_time, dropping anything whose generation doesn't match
// keepGeneration (spec §4.E pass steps 1-2). Every pass drains the queue in
// full, so a single sort over the filtered contents replaces the heap this
// type otherwise maintains for Enqueue's O(log n) insertion.
func drainSorted(q *frameQueue, keepGeneration uint32) []decode.DecodedFrame {
	out := make([]decode.DecodedFrame, 0, len(*q))
	for _, f := range *q {
		if f.Generation != keepGeneration {
			continue
		}
		out = append(out, f)
	}
	*q = (*q)[:0]
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ServerTimeUs < out[j].ServerTimeUs
	})
	return out
}
