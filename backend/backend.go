// Package backend describes the native GPU driver collaborator that the device resource
// allocator consumes. The allocator never talks to a driver directly: every physical object
// is created, bound, queried and destroyed through a Backend.
package backend

import "github.com/vkngwrapper/arsenal/devres/capability"

// Memory is an opaque handle to one physical device memory allocation
type Memory any

// Fence is an opaque handle to a device synchronization fence
type Fence any

// QueueHandle is an opaque handle to one hardware queue
type QueueHandle any

// Resource is an opaque buffer or image object that can be bound to Memory
type Resource any

// Backend exposes capability queries and create/destroy primitives for a single opened device.
// Implementations are expected to be safe for concurrent use: the allocator serializes its own
// bookkeeping but may call into the backend from several goroutines at once.
type Backend interface {
	// EnumerateHeaps reports the memory targets physical allocations can be made from
	EnumerateHeaps() ([]capability.MemoryHeap, error)
	// EnumerateQueueFamilies reports the device's queue families in the driver's enumeration order
	EnumerateQueueFamilies() ([]capability.QueueFamily, error)
	// MaxAllocationCount is the maximum number of physical objects that may be live at once,
	// or 0 for no limit
	MaxAllocationCount() int

	AllocatePhysicalMemory(heapIndex int, size int) (Memory, error)
	FreePhysicalMemory(memory Memory)

	// CreateFence creates a fence in the signaled state
	CreateFence() (Fence, error)
	DestroyFence(fence Fence)
	// FenceStatus returns true if the fence is signaled
	FenceStatus(fence Fence) (bool, error)
	ResetFence(fence Fence) error

	GetQueueHandle(familyIndex int, queueIndex int) (QueueHandle, error)

	BindResourceToMemory(resource Resource, memory Memory, offset int) error

	// WaitIdle blocks until all work submitted to the device has completed
	WaitIdle() error
}

// FenceQuerier is the subset of Backend needed to observe submitted work
type FenceQuerier interface {
	FenceStatus(fence Fence) (bool, error)
}
