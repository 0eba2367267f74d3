package devres

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/arsenal/devres/backend"
	"github.com/vkngwrapper/arsenal/devres/internal/utils"
	"github.com/vkngwrapper/arsenal/devres/memutils"
	"github.com/vkngwrapper/arsenal/devres/memutils/metadata"
)

// Block is one large physical memory allocation that buffers and images are suballocated
// from. Each Block has its own lock, so allocating from different Blocks never contends.
type Block struct {
	id        int
	name      string
	heapIndex int
	heapSlot  int
	size      int
	device    *Device
	logger    *slog.Logger

	mutex     utils.OptionalMutex
	memory    backend.Memory
	metadata  metadata.BlockMetadata
	strategy  metadata.AllocationStrategy
	destroyed bool
}

func (b *Block) ID() int        { return b.id }
func (b *Block) Name() string   { return b.name }
func (b *Block) HeapIndex() int { return b.heapIndex }
func (b *Block) Size() int      { return b.size }

// Memory returns the backend's handle for the Block's physical memory
func (b *Block) Memory() backend.Memory { return b.memory }

func (b *Block) displayName() string {
	if b.name == "" {
		return "empty"
	}
	return b.name
}

// Alloc carves size bytes at an offset that is a multiple of alignment out of the Block and
// binds resource to the Block's memory at that offset. A nil resource reserves the range
// without binding anything.
//
// If the Block does not have room for the request, Alloc returns false and no error. The
// returned handle and the same size must be passed to Free to release the range.
func (b *Block) Alloc(resource backend.Resource, size int, alignment uint) (metadata.AllocationHandle, bool, error) {
	b.logger.Debug("Block::Alloc")

	err := memutils.CheckPow2(alignment, "alignment")
	if err != nil {
		return metadata.AllocationHandle{}, false, err
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.destroyed {
		return metadata.AllocationHandle{}, false, BlockDestroyedError
	}

	handle, offset, success := b.metadata.Alloc(size, alignment, b.strategy)
	if !success {
		return metadata.AllocationHandle{}, false, nil
	}

	if resource != nil {
		err = b.device.backend.BindResourceToMemory(resource, b.memory, offset)
		if err != nil {
			b.metadata.Free(handle, size)
			return metadata.AllocationHandle{}, false, backendError(err, "failed to bind resource at offset %d of block %d", offset, b.id)
		}
	}

	b.device.tracker.addSuballocation(b.heapSlot, size)
	memutils.DebugValidate(b)
	return handle, true, nil
}

// Free releases a range carved by Alloc. The handle and size must be exactly those used for
// the original allocation.
func (b *Block) Free(handle metadata.AllocationHandle, size int) {
	b.logger.Debug("Block::Free")

	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.destroyed {
		b.logger.LogAttrs(context.Background(), slog.LevelWarn, "attempted to free an allocation from a destroyed block",
			slog.Int("id", b.id),
			slog.String("handle", handle.String()),
		)
		return
	}

	b.metadata.Free(handle, size)
	b.device.tracker.removeSuballocation(b.heapSlot, size)
}

// Offset returns the offset within the Block's memory of the allocation with the provided handle
func (b *Block) Offset(handle metadata.AllocationHandle) int {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return b.metadata.AllocationOffset(handle)
}

// IsEmpty returns true if the Block has no outstanding allocations
func (b *Block) IsEmpty() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return b.destroyed || b.metadata.IsEmpty()
}

// Destroy waits for the device to become idle and then releases the Block's physical memory.
// Every allocation should be freed first: any that remain are logged and become invalid.
// If the wait fails, the Block and its allocations are left untouched and Destroy can be
// retried.
func (b *Block) Destroy() error {
	b.logger.Debug("Block::Destroy")

	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.destroyed {
		return BlockDestroyedError
	}

	if !b.device.beginBlockOperation() {
		return errors.Wrapf(DeviceDestroyedError, "block %d outlived its device", b.id)
	}
	defer b.device.endBlockOperation()

	var leakedCount, leakedBytes int
	if !b.metadata.IsEmpty() {
		// Log all remaining allocations
		err := b.metadata.VisitAllRegions(func(handle metadata.AllocationHandle, offset int, size int, free bool) error {
			if free {
				return nil
			}

			b.logUnreleasedMemory(handle, offset, size)
			leakedCount++
			leakedBytes += size
			return nil
		})
		if err != nil {
			b.logger.LogAttrs(context.Background(),
				slog.LevelError,
				"[UNRELEASED MEMORY] error while iterating unreleased memory",
				slog.Any("error", err))
		}
	}

	err := b.device.backend.WaitIdle()
	if err != nil {
		return backendError(err, "failed to wait for device idle before destroying block %d", b.id)
	}

	b.device.tracker.removeSuballocations(b.heapSlot, leakedCount, leakedBytes)
	b.device.memoryCallbacks.Free(b)
	b.device.backend.FreePhysicalMemory(b.memory)
	b.device.unregisterBlock(b)

	b.destroyed = true
	b.memory = nil
	return nil
}

func (b *Block) logUnreleasedMemory(handle metadata.AllocationHandle, offset, size int) {
	b.logger.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED MEMORY] unfreed allocation",
		slog.Int("block", b.id),
		slog.String("handle", handle.String()),
		slog.Int("offset", offset),
		slog.Int("size", size),
		slog.String("name", b.displayName()),
	)
}

func (b *Block) Validate() error {
	if b.memory == nil {
		return errors.New("no valid memory for this block")
	}
	if b.metadata.Size() != b.size {
		return errors.Newf("block is %d bytes but its metadata covers %d", b.size, b.metadata.Size())
	}

	return b.metadata.Validate()
}

func (d *Device) unregisterBlock(block *Block) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.blocks.Delete(block.id)
	d.tracker.releaseBlock(block.heapSlot, block.size)
}
