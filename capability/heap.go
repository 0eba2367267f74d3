package capability

// MemoryHeap describes one memory target that physical allocations can be made from
type MemoryHeap struct {
	// Size is the size of the heap in bytes
	Size int
	// HeapIndex is the index passed to the backend when allocating physical memory from this heap
	HeapIndex int

	DeviceLocal  bool
	HostVisible  bool
	HostCoherent bool
	HostCached   bool
}

// QueueFamily describes a group of hardware queues that share a capability set
type QueueFamily struct {
	Index        int
	QueueCount   int
	Capabilities Capabilities
}
