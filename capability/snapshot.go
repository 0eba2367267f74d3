package capability

import (
	"fmt"
	"math"

	"github.com/cockroachdb/errors"
)

// NoResourcesError is returned when a device reports no memory heaps or no queue families
var NoResourcesError = errors.New("device reports no usable resources")

// NoCapableQueueError is returned when no queue family offers a required capability
var NoCapableQueueError = errors.New("no queue family supports the required capability")

// Snapshot is a read-only description of a device's memory heaps and queue families. It is
// produced once when the device is opened and never changes afterward.
type Snapshot struct {
	heaps            []MemoryHeap
	deviceLocalHeaps []MemoryHeap
	sharedHeaps      []MemoryHeap
	families         []QueueFamily
	maxAllocations   int
}

// NewSnapshot validates the enumerated heaps & families and builds a Snapshot from them.
// Family order is preserved: it is the tie-break for queue selection. A maxAllocations
// value of 0 or below indicates that the device has no allocation count ceiling.
func NewSnapshot(heaps []MemoryHeap, families []QueueFamily, maxAllocations int) (*Snapshot, error) {
	if len(heaps) == 0 {
		return nil, errors.Wrap(NoResourcesError, "zero memory heaps")
	}
	if len(families) == 0 {
		return nil, errors.Wrap(NoResourcesError, "zero queue families")
	}

	usableQueues := 0
	for _, family := range families {
		if family.QueueCount < 0 {
			return nil, errors.Newf("queue family %d reports a negative queue count", family.Index)
		}
		usableQueues += family.QueueCount
	}
	if usableQueues == 0 {
		return nil, errors.Wrap(NoResourcesError, "no queue family exposes any queues")
	}

	if maxAllocations <= 0 {
		maxAllocations = math.MaxInt
	}

	s := &Snapshot{
		heaps:          append([]MemoryHeap(nil), heaps...),
		families:       append([]QueueFamily(nil), families...),
		maxAllocations: maxAllocations,
	}

	for _, heap := range s.heaps {
		if heap.Size <= 0 {
			return nil, errors.Newf("memory heap %d reports a size of %d", heap.HeapIndex, heap.Size)
		}

		if heap.HostVisible {
			s.sharedHeaps = append(s.sharedHeaps, heap)
		} else {
			s.deviceLocalHeaps = append(s.deviceLocalHeaps, heap)
		}
	}

	return s, nil
}

// Validate returns a wrapped NoCapableQueueError if any capability in required is not
// offered by at least one queue family with at least one queue
func (s *Snapshot) Validate(required Capabilities) error {
	var err error
	required.Each(func(single Capabilities) {
		if err == nil && !s.Supports(single) {
			err = errors.Wrapf(NoCapableQueueError, "missing %s", single.String())
		}
	})

	return err
}

// Heaps returns every memory heap in backend enumeration order
func (s *Snapshot) Heaps() []MemoryHeap {
	return append([]MemoryHeap(nil), s.heaps...)
}

// DeviceLocalHeaps returns the heaps that cannot be accessed by the host
func (s *Snapshot) DeviceLocalHeaps() []MemoryHeap {
	return append([]MemoryHeap(nil), s.deviceLocalHeaps...)
}

// SharedHeaps returns the host-visible heaps
func (s *Snapshot) SharedHeaps() []MemoryHeap {
	return append([]MemoryHeap(nil), s.sharedHeaps...)
}

// Heap retrieves the heap with the provided backend heap index
func (s *Snapshot) Heap(heapIndex int) (MemoryHeap, bool) {
	for _, heap := range s.heaps {
		if heap.HeapIndex == heapIndex {
			return heap, true
		}
	}

	return MemoryHeap{}, false
}

func (s *Snapshot) HeapCount() int { return len(s.heaps) }

// QueueFamilies returns every queue family in backend enumeration order
func (s *Snapshot) QueueFamilies() []QueueFamily {
	return append([]QueueFamily(nil), s.families...)
}

func (s *Snapshot) QueueFamilyCount() int { return len(s.families) }

// QueueFamily retrieves the queue family at the provided position in enumeration order
func (s *Snapshot) QueueFamily(slot int) QueueFamily {
	return s.families[slot]
}

// MaxAllocationCount is the number of physical objects the device permits at once
func (s *Snapshot) MaxAllocationCount() int { return s.maxAllocations }

// FamiliesWith returns the enumeration slots of families with at least one queue that offer
// every capability in required
func (s *Snapshot) FamiliesWith(required Capabilities) []int {
	var slots []int
	for slot, family := range s.families {
		if family.QueueCount > 0 && family.Capabilities.Has(required) {
			slots = append(slots, slot)
		}
	}
	return slots
}

// Supports returns true if any family with at least one queue offers every capability in required
func (s *Snapshot) Supports(required Capabilities) bool {
	for _, family := range s.families {
		if family.QueueCount > 0 && family.Capabilities.Has(required) {
			return true
		}
	}
	return false
}

func (s *Snapshot) String() string {
	return fmt.Sprintf("Snapshot{heaps: %d, families: %d, maxAllocations: %d}", len(s.heaps), len(s.families), s.maxAllocations)
}
