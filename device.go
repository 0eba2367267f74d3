package devres

import (
	"context"
	"log/slog"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/vkngwrapper/arsenal/devres/backend"
	"github.com/vkngwrapper/arsenal/devres/capability"
	"github.com/vkngwrapper/arsenal/devres/internal/utils"
)

// SharingMode describes whether resources must be shared between queue families
type SharingMode int32

const (
	// SharingExclusive indicates that at most one queue family has been borrowed from
	SharingExclusive SharingMode = iota
	// SharingConcurrent indicates that queues from several families have been borrowed, so
	// resources touched by all of them must be created for concurrent access
	SharingConcurrent
)

var sharingModeMapping = make(map[SharingMode]string)

func (m SharingMode) String() string {
	return sharingModeMapping[m]
}

func init() {
	sharingModeMapping[SharingExclusive] = "SharingExclusive"
	sharingModeMapping[SharingConcurrent] = "SharingConcurrent"
}

// Device hands out a single opened GPU's queues, fences, and physical memory Blocks to any number
// of concurrent consumers, enforcing the limits the device reported when it was opened.
type Device struct {
	useMutex        bool
	logger          *slog.Logger
	backend         backend.Backend
	snapshot        *capability.Snapshot
	createFlags     CreateFlags
	memoryCallbacks *memoryCallbacks

	mutex     utils.OptionalMutex
	destroyed bool

	// Queue claim state, indexed by family slot in snapshot order
	leastClaimed []int
	familyUsed   []bool
	claims       *swiss.Map[queueKey, int]

	tracker     resourceTracker
	nextBlockId int
	blocks      *swiss.Map[int, *Block]

	// Block creations and destructions that have started talking to the backend. Destroy
	// waits for them before tearing the device down.
	blockOperations sync.WaitGroup
}

// Snapshot returns the device capabilities that were captured when the Device was opened
func (d *Device) Snapshot() *capability.Snapshot {
	return d.snapshot
}

// BorrowQueue returns a queue from the first queue family, in enumeration order, that offers
// every capability in required. Queues within that family are handed out round-robin, so a
// queue may be shared by several borrowers at once. Borrowed queues should be handed back
// with ReturnQueue.
func (d *Device) BorrowQueue(required capability.Capabilities) (*Queue, error) {
	d.logger.Debug("Device::BorrowQueue")

	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.destroyed {
		return nil, DeviceDestroyedError
	}

	for slot := 0; slot < d.snapshot.QueueFamilyCount(); slot++ {
		family := d.snapshot.QueueFamily(slot)
		if family.QueueCount == 0 || !family.Capabilities.Has(required) {
			continue
		}

		queueIndex := d.leastClaimed[slot]
		if queueIndex >= family.QueueCount {
			queueIndex = 0
		}

		handle, err := d.backend.GetQueueHandle(family.Index, queueIndex)
		if err != nil {
			return nil, backendError(err, "failed to retrieve queue %d of family %d", queueIndex, family.Index)
		}

		d.leastClaimed[slot] = queueIndex + 1
		d.familyUsed[slot] = true

		key := queueKey{family: family.Index, index: queueIndex}
		claims, _ := d.claims.Get(key)
		d.claims.Put(key, claims+1)

		return &Queue{
			familyIndex:  family.Index,
			queueIndex:   queueIndex,
			capabilities: family.Capabilities,
			handle:       handle,
		}, nil
	}

	return nil, errors.Wrapf(NoCapableQueueError, "required %s", required.String())
}

// ReturnQueue indicates that a queue received from BorrowQueue is no longer in use by its
// borrower. The queue may still be in use by other borrowers.
func (d *Device) ReturnQueue(queue *Queue) {
	d.logger.Debug("Device::ReturnQueue")

	d.mutex.Lock()
	defer d.mutex.Unlock()

	key := queueKey{family: queue.familyIndex, index: queue.queueIndex}
	claims, _ := d.claims.Get(key)
	if claims <= 0 {
		d.logger.LogAttrs(context.Background(), slog.LevelWarn, "queue was returned more times than it was borrowed",
			slog.Int("family", queue.familyIndex),
			slog.Int("index", queue.queueIndex),
		)
		return
	}

	d.claims.Put(key, claims-1)
}

// QueueClaims returns the number of borrowers currently holding the queue at the provided
// family and queue index
func (d *Device) QueueClaims(familyIndex, queueIndex int) int {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	claims, _ := d.claims.Get(queueKey{family: familyIndex, index: queueIndex})
	return claims
}

// UsedQueueFamilies returns the family index of every queue family that has ever been
// borrowed from, in enumeration order
func (d *Device) UsedQueueFamilies() []int {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	var families []int
	for slot, used := range d.familyUsed {
		if used {
			families = append(families, d.snapshot.QueueFamily(slot).Index)
		}
	}

	return families
}

// SharingMode reports whether resources need to be shared between queue families, based on
// the families that have been borrowed from so far
func (d *Device) SharingMode() SharingMode {
	if len(d.UsedQueueFamilies()) > 1 {
		return SharingConcurrent
	}

	return SharingExclusive
}

func (d *Device) queueExists(familyIndex, queueIndex int) bool {
	for slot := 0; slot < d.snapshot.QueueFamilyCount(); slot++ {
		family := d.snapshot.QueueFamily(slot)
		if family.Index == familyIndex {
			return queueIndex >= 0 && queueIndex < family.QueueCount
		}
	}

	return false
}

// GetFence returns the fence dedicated to the queue at the provided family and queue index.
// The fence is created in the signaled state the first time it is requested and is reused
// for the Device's lifetime. Creating a fence counts against the device's allocation limit.
func (d *Device) GetFence(familyIndex, queueIndex int) (fence backend.Fence, err error) {
	d.logger.Debug("Device::GetFence")

	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.destroyed {
		return nil, DeviceDestroyedError
	}

	key := queueKey{family: familyIndex, index: queueIndex}
	fence, cached := d.tracker.fences.Get(key)
	if cached {
		return fence, nil
	}

	if !d.queueExists(familyIndex, queueIndex) {
		return nil, errors.Wrapf(InvalidQueueError, "family %d, index %d", familyIndex, queueIndex)
	}

	err = d.tracker.reserveAllocation()
	if err != nil {
		d.logLimitReached("fence")
		return nil, err
	}
	defer func() {
		// If we failed out, roll back the allocation count
		if err != nil {
			d.tracker.releaseAllocation()
		}
	}()

	fence, err = d.backend.CreateFence()
	if err != nil {
		return nil, backendError(err, "failed to create fence for family %d, index %d", familyIndex, queueIndex)
	}

	d.tracker.fences.Put(key, fence)
	return fence, nil
}

// ReserveAllocation claims one unit of the device's allocation limit for a physical object
// created outside of this Device, such as a dedicated allocation or a staging buffer. It
// returns LimitReachedError if the limit has been reached. Each successful call must be paired
// with a call to ReleaseAllocation.
func (d *Device) ReserveAllocation() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.destroyed {
		return DeviceDestroyedError
	}

	err := d.tracker.reserveAllocation()
	if err != nil {
		d.logLimitReached("external")
	}
	return err
}

// ReleaseAllocation returns a unit claimed with ReserveAllocation
func (d *Device) ReleaseAllocation() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.tracker.releaseAllocation()
}

// AllocationCount returns the number of live physical objects counted against the device's
// allocation limit: Blocks, fences, and reservations
func (d *Device) AllocationCount() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	return d.tracker.allocationCount
}

// Budget reports usage of the heap with the provided index
func (d *Device) Budget(heapIndex int) (Budget, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	slot, ok := d.tracker.heapSlot(heapIndex)
	if !ok {
		return Budget{}, errors.Wrapf(InvalidHeapError, "heap index %d", heapIndex)
	}

	return d.tracker.budget(slot), nil
}

func (d *Device) logLimitReached(objectType string) {
	d.logger.LogAttrs(context.Background(), slog.LevelWarn, "device allocation limit reached",
		slog.String("objectType", objectType),
		slog.Int("limit", d.tracker.maxAllocations),
	)
}

// beginBlockOperation registers a Block creation or destruction in progress. It returns false
// if the device has already been destroyed. Each successful call must be paired with
// endBlockOperation.
func (d *Device) beginBlockOperation() bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.destroyed {
		return false
	}

	d.blockOperations.Add(1)
	return true
}

func (d *Device) endBlockOperation() {
	d.blockOperations.Done()
}

// Destroy waits for the device to become idle and destroys every cached fence. Blocks must be
// destroyed before the Device: any Block still alive is logged and its memory is left to the
// caller, and an error is returned. Block creations and destructions already underway when
// Destroy is called are allowed to finish first. Any that start afterward fail with
// DeviceDestroyedError.
func (d *Device) Destroy() error {
	d.logger.Debug("Device::Destroy")

	d.mutex.Lock()
	if d.destroyed {
		d.mutex.Unlock()
		return DeviceDestroyedError
	}
	d.destroyed = true
	d.mutex.Unlock()

	d.blockOperations.Wait()

	d.mutex.Lock()
	defer d.mutex.Unlock()

	err := d.backend.WaitIdle()
	if err != nil {
		err = backendError(err, "failed to wait for device idle")
	}

	d.tracker.fences.Iter(func(key queueKey, fence backend.Fence) bool {
		d.backend.DestroyFence(fence)
		d.tracker.releaseAllocation()
		return false
	})
	d.tracker.fences.Clear()

	liveBlocks := d.blocks.Count()
	if liveBlocks > 0 {
		d.blocks.Iter(func(id int, block *Block) bool {
			d.logger.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED MEMORY] block was not destroyed",
				slog.Int("id", id),
				slog.Int("heapIndex", block.heapIndex),
				slog.Int("size", block.size),
				slog.String("name", block.displayName()),
			)
			return false
		})

		return errors.CombineErrors(err, errors.Newf("%d blocks were not destroyed before the device", liveBlocks))
	}

	return err
}
