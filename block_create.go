package devres

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/arsenal/devres/memutils/metadata"
	"github.com/vkngwrapper/core/v2/common"
)

// BlockCreateFlags indicate specific Block behaviors to activate or deactivate
type BlockCreateFlags int32

var blockCreateFlagsMapping = common.NewFlagStringMapping[BlockCreateFlags]()

func (f BlockCreateFlags) Register(str string) {
	blockCreateFlagsMapping.Register(f, str)
}
func (f BlockCreateFlags) String() string {
	return blockCreateFlagsMapping.FlagsToString(f)
}

const (
	// BlockCreateCoalesceOnFree instructs the Block to merge split regions back together once
	// both halves are entirely free. Without it, a region that has been split stays split for
	// the Block's lifetime and cannot hold an allocation larger than its halves.
	BlockCreateCoalesceOnFree BlockCreateFlags = 1 << iota
	// BlockCreateStrategyMinOffset places each allocation at the lowest offset that fits instead
	// of in the busiest region that fits
	BlockCreateStrategyMinOffset
)

func init() {
	BlockCreateCoalesceOnFree.Register("BlockCreateCoalesceOnFree")
	BlockCreateStrategyMinOffset.Register("BlockCreateStrategyMinOffset")
}

// BlockCreateInfo describes a Block to create with Device.CreateBlock
type BlockCreateInfo struct {
	// HeapIndex is the backend index of the heap the Block's memory will come from
	HeapIndex int
	// Size is the capacity of the Block in bytes
	Size int
	Flags BlockCreateFlags
	// Name is an optional name that will be reported in diagnostics
	Name string
}

// CreateBlock allocates a single large region of physical memory that buffers and images can
// be suballocated from. Creating a Block counts against the device's allocation limit and
// against the size of its heap.
func (d *Device) CreateBlock(createInfo BlockCreateInfo) (block *Block, err error) {
	d.logger.Debug("Device::CreateBlock")

	if createInfo.Size <= 0 {
		return nil, errors.Newf("block size must be positive, but was %d", createInfo.Size)
	}

	d.mutex.Lock()
	if d.destroyed {
		d.mutex.Unlock()
		return nil, DeviceDestroyedError
	}
	d.blockOperations.Add(1)
	defer d.endBlockOperation()

	heapSlot, ok := d.tracker.heapSlot(createInfo.HeapIndex)
	if !ok {
		d.mutex.Unlock()
		return nil, errors.Wrapf(InvalidHeapError, "heap index %d", createInfo.HeapIndex)
	}

	err = d.tracker.reserveBlock(heapSlot, createInfo.Size)
	if err != nil {
		d.mutex.Unlock()
		d.logger.LogAttrs(context.Background(), slog.LevelWarn, "failed to reserve block",
			slog.Int("heapIndex", createInfo.HeapIndex),
			slog.Int("size", createInfo.Size),
			slog.Any("error", err),
		)
		return nil, err
	}
	id := d.nextBlockId
	d.nextBlockId++
	d.mutex.Unlock()

	defer func() {
		// If we failed out, roll back the block reservation
		if err != nil {
			d.mutex.Lock()
			defer d.mutex.Unlock()

			d.tracker.releaseBlock(heapSlot, createInfo.Size)
		}
	}()

	memory, err := d.backend.AllocatePhysicalMemory(createInfo.HeapIndex, createInfo.Size)
	if err != nil {
		return nil, backendError(err, "failed to allocate %d bytes from heap %d", createInfo.Size, createInfo.HeapIndex)
	}

	block = &Block{
		id:        id,
		name:      createInfo.Name,
		heapIndex: createInfo.HeapIndex,
		heapSlot:  heapSlot,
		size:      createInfo.Size,
		device:    d,
		logger:    d.logger,
		memory:    memory,
		strategy:  metadata.AllocationStrategyMinMemory,
	}
	block.mutex.UseMutex = d.useMutex

	if createInfo.Flags&BlockCreateStrategyMinOffset != 0 {
		block.strategy = metadata.AllocationStrategyMinOffset
	}

	block.metadata = metadata.NewBuddyBlockMetadata(createInfo.Flags&BlockCreateCoalesceOnFree != 0)
	block.metadata.Init(createInfo.Size)

	d.memoryCallbacks.Allocate(block)

	d.mutex.Lock()
	d.blocks.Put(id, block)
	d.mutex.Unlock()

	return block, nil
}
