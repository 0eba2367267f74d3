package devres

import (
	"fmt"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/vkngwrapper/arsenal/devres/backend"
	"github.com/vkngwrapper/arsenal/devres/capability"
	"github.com/vkngwrapper/arsenal/devres/memutils"
)

// Budget reports how much of a single heap is in use
type Budget struct {
	Statistics memutils.Statistics
	// Usage is the number of bytes held in Blocks created from the heap
	Usage int
	// Budget is the number of bytes that may be held in Blocks created from the heap before
	// Block creation fails
	Budget int
}

type queueKey struct {
	family int
	index  int
}

// resourceTracker counts every physical object the device has created and caches one fence per
// queue. Everything except the suballocation counters is guarded by the device mutex.
type resourceTracker struct {
	maxAllocations  int
	allocationCount int

	heaps      []capability.MemoryHeap
	heapLimits []int
	blockCount []int
	blockBytes []int

	// Suballocations are recorded from Block methods, outside the device mutex
	suballocationCount []int32
	suballocationBytes []int64

	fences *swiss.Map[queueKey, backend.Fence]
}

func (t *resourceTracker) Init(snapshot *capability.Snapshot, heapSizeLimits []int) error {
	heapCount := snapshot.HeapCount()
	if len(heapSizeLimits) > 0 && len(heapSizeLimits) != heapCount {
		return errors.Newf("CreateOptions.HeapSizeLimits was provided with %d entries, but the device has %d heaps", len(heapSizeLimits), heapCount)
	}

	t.maxAllocations = snapshot.MaxAllocationCount()
	t.heaps = snapshot.Heaps()
	t.heapLimits = make([]int, heapCount)
	copy(t.heapLimits, heapSizeLimits)

	t.blockCount = make([]int, heapCount)
	t.blockBytes = make([]int, heapCount)
	t.suballocationCount = make([]int32, heapCount)
	t.suballocationBytes = make([]int64, heapCount)

	t.fences = swiss.NewMap[queueKey, backend.Fence](8)
	return nil
}

// heapSlot finds the tracker's slot for a heap's backend index
func (t *resourceTracker) heapSlot(heapIndex int) (int, bool) {
	for slot, heap := range t.heaps {
		if heap.HeapIndex == heapIndex {
			return slot, true
		}
	}

	return -1, false
}

func (t *resourceTracker) reserveAllocation() error {
	if t.allocationCount >= t.maxAllocations {
		return errors.Wrapf(LimitReachedError, "%d of %d physical objects are live", t.allocationCount, t.maxAllocations)
	}

	t.allocationCount++
	return nil
}

func (t *resourceTracker) releaseAllocation() {
	t.allocationCount--

	if t.allocationCount < 0 {
		panic("device allocation count went negative")
	}
}

func (t *resourceTracker) heapBudget(slot int) int {
	heapSize := t.heaps[slot].Size
	limit := t.heapLimits[slot]
	if limit > 0 && limit < heapSize {
		return limit
	}

	return heapSize
}

func (t *resourceTracker) reserveBlock(slot int, size int) (err error) {
	err = t.reserveAllocation()
	if err != nil {
		return err
	}
	defer func() {
		// If we failed out, roll back the allocation count
		if err != nil {
			t.releaseAllocation()
		}
	}()

	budget := t.heapBudget(slot)
	if t.blockBytes[slot]+size > budget {
		return errors.Wrapf(HeapExhaustedError, "heap %d has %d of %d bytes in use, cannot create a block of %d bytes",
			t.heaps[slot].HeapIndex, t.blockBytes[slot], budget, size)
	}

	t.blockBytes[slot] += size
	t.blockCount[slot]++
	return nil
}

func (t *resourceTracker) releaseBlock(slot int, size int) {
	t.blockBytes[slot] -= size
	if t.blockBytes[slot] < 0 {
		panic(fmt.Sprintf("block bytes for heap slot %d went negative", slot))
	}

	t.blockCount[slot]--
	if t.blockCount[slot] < 0 {
		panic(fmt.Sprintf("block count for heap slot %d went negative", slot))
	}

	t.releaseAllocation()
}

func (t *resourceTracker) addSuballocation(slot int, size int) {
	atomic.AddInt64(&t.suballocationBytes[slot], int64(size))
	atomic.AddInt32(&t.suballocationCount[slot], 1)
}

func (t *resourceTracker) removeSuballocation(slot int, size int) {
	t.removeSuballocations(slot, 1, size)
}

func (t *resourceTracker) removeSuballocations(slot int, count int, bytes int) {
	if count == 0 && bytes == 0 {
		return
	}

	newSizeVal := atomic.AddInt64(&t.suballocationBytes[slot], int64(-bytes))
	if newSizeVal < 0 {
		panic(fmt.Sprintf("suballocation bytes for heap slot %d went negative", slot))
	}

	newCountVal := atomic.AddInt32(&t.suballocationCount[slot], int32(-count))
	if newCountVal < 0 {
		panic(fmt.Sprintf("suballocation count for heap slot %d went negative", slot))
	}
}

func (t *resourceTracker) budget(slot int) Budget {
	var budget Budget
	budget.Statistics.BlockCount = t.blockCount[slot]
	budget.Statistics.BlockBytes = t.blockBytes[slot]
	budget.Statistics.AllocationCount = int(atomic.LoadInt32(&t.suballocationCount[slot]))
	budget.Statistics.AllocationBytes = int(atomic.LoadInt64(&t.suballocationBytes[slot]))

	budget.Usage = t.blockBytes[slot]
	budget.Budget = t.heapBudget(slot)
	return budget
}
