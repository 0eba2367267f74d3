package metadata

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/arsenal/devres/memutils"
)

// BlockMetadata represents a single large allocation of memory within some system. It manages
// suballocations within the block, allowing allocations to be requested and freed, as well as
// enumerated and queried.
//
// Implementations are not safe for concurrent use: consumers are expected to serialize calls
// to a single BlockMetadata behind their own lock.
type BlockMetadata interface {
	// Init must be called before the BlockMetadata is used. It sizes the block in bytes and
	// prepares the metadata structures for allocations.
	Init(size int)
	// Size retrieves the size in bytes that the block was initialized with
	Size() int

	// Validate performs internal consistency checks on the metadata. When the implementation is
	// functioning correctly, it should not be possible for this method to return an error.
	Validate() error
	// AllocationCount returns the number of suballocations currently live in the block
	AllocationCount() int
	// FreeRegionsCount returns the number of distinct free regions the implementation is tracking
	FreeRegionsCount() int
	// SumFreeSize returns the number of free bytes of memory in the block
	SumFreeSize() int
	// MayHaveFreeBlock is a fast heuristic that returns false only when an allocation of the
	// provided size is certain to fail
	MayHaveFreeBlock(size int) bool
	// IsEmpty will return true if this block has no live suballocations
	IsEmpty() bool

	// VisitAllRegions will call the provided callback once for each allocation and free region in
	// the block, in offset order. This walks the entire structure and should generally only be
	// used for diagnostics.
	VisitAllRegions(handleRegion func(handle AllocationHandle, offset int, size int, free bool) error) error
	// AllocationOffset accepts a handle previously returned from Alloc and returns the offset in
	// bytes of that allocation within the block. Passing a handle that is not live is undefined.
	AllocationOffset(handle AllocationHandle) int

	// AddDetailedStatistics sums this block's allocation statistics into the provided object
	AddDetailedStatistics(stats *memutils.DetailedStatistics)
	// AddStatistics sums this block's allocation statistics into the provided object
	AddStatistics(stats *memutils.Statistics)

	// Clear instantly frees all allocations
	Clear()
	// BlockJsonData populates a json object with information about this block
	BlockJsonData(json jwriter.ObjectState)

	// Alloc carves size bytes at an offset that is a multiple of alignment. It returns false if
	// the block cannot fit the request; this is not an error condition.
	Alloc(size int, alignment uint, strategy AllocationStrategy) (handle AllocationHandle, offset int, success bool)
	// Free returns an allocation to the block. The handle and size must be exactly those used
	// for the original allocation.
	Free(handle AllocationHandle, size int)
}

// BlockMetadataBase provides a few shared utilities for BlockMetadata implementations
type BlockMetadataBase struct {
	size int
}

// Init sizes the block in bytes
func (m *BlockMetadataBase) Init(size int) {
	m.size = size
}

// Size returns the size of the block in bytes
func (m *BlockMetadataBase) Size() int { return m.size }

// BlockJsonData populates a json object with summary information about this block
func (m *BlockMetadataBase) BlockJsonData(json jwriter.ObjectState, unusedBytes, allocationCount, unusedRangeCount int) {
	json.Name("TotalBytes").Int(m.Size())
	json.Name("UnusedBytes").Int(unusedBytes)
	json.Name("Allocations").Int(allocationCount)
	json.Name("UnusedRanges").Int(unusedRangeCount)
}
