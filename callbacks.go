package devres

// BlockMemoryCallback is called when a Block's physical memory is allocated or about to be
// freed. The Block's ID, heap, size, and memory handle are all available while the callback
// runs. The callback must not call back into the Block.
type BlockMemoryCallback func(
	device *Device,
	block *Block,
	userData interface{},
)

// MemoryCallbackOptions lets callers observe the physical memory that Blocks allocate and free,
// for instance to feed an external budget or a debugging overlay
type MemoryCallbackOptions struct {
	Allocate BlockMemoryCallback
	Free     BlockMemoryCallback
	UserData interface{}
}

type memoryCallbacks struct {
	Callbacks *MemoryCallbackOptions
	Device    *Device
}

func (c *memoryCallbacks) Allocate(block *Block) {
	if c.Callbacks != nil && c.Callbacks.Allocate != nil {
		c.Callbacks.Allocate(c.Device, block, c.Callbacks.UserData)
	}
}

func (c *memoryCallbacks) Free(block *Block) {
	if c.Callbacks != nil && c.Callbacks.Free != nil {
		c.Callbacks.Free(c.Device, block, c.Callbacks.UserData)
	}
}
