package vulkan

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/arsenal/devres/capability"
	"github.com/vkngwrapper/core/v2/core1_0"
)

func TestHeapsFromMemoryProperties(t *testing.T) {
	heaps := heapsFromMemoryProperties(&core1_0.PhysicalDeviceMemoryProperties{
		MemoryTypes: []core1_0.MemoryType{
			{
				PropertyFlags: core1_0.MemoryPropertyDeviceLocal,
				HeapIndex:     0,
			},
			{
				PropertyFlags: core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCoherent,
				HeapIndex:     1,
			},
			{
				PropertyFlags: core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCached,
				HeapIndex:     1,
			},
		},
		MemoryHeaps: []core1_0.MemoryHeap{
			{
				Size:  1000000,
				Flags: core1_0.MemoryHeapDeviceLocal,
			},
			{
				Size:  2000000,
				Flags: 0,
			},
		},
	})

	require.Equal(t, []capability.MemoryHeap{
		{HeapIndex: 0, Size: 1000000, DeviceLocal: true},
		{HeapIndex: 1, Size: 2000000, HostVisible: true, HostCoherent: true},
		{HeapIndex: 2, Size: 2000000, HostVisible: true, HostCached: true},
	}, heaps)

	snapshot, err := capability.NewSnapshot(heaps, []capability.QueueFamily{
		{Index: 0, QueueCount: 1, Capabilities: capability.CapabilityGraphics},
	}, 0)
	require.NoError(t, err)
	require.Len(t, snapshot.DeviceLocalHeaps(), 1)
	require.Len(t, snapshot.SharedHeaps(), 2)
}

func TestCapabilitiesFromQueueFlags(t *testing.T) {
	testCases := map[string]struct {
		Flags    core1_0.QueueFlags
		Expected capability.Capabilities
	}{
		"Graphics": {
			Flags:    core1_0.QueueGraphics,
			Expected: capability.CapabilityGraphics | capability.CapabilityTransfer,
		},
		"AsyncCompute": {
			Flags:    core1_0.QueueCompute | core1_0.QueueTransfer,
			Expected: capability.CapabilityCompute | capability.CapabilityTransfer,
		},
		"TransferOnly": {
			Flags:    core1_0.QueueTransfer,
			Expected: capability.CapabilityTransfer,
		},
		"SparseOnly": {
			Flags:    core1_0.QueueSparseBinding,
			Expected: 0,
		},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, testCase.Expected, capabilitiesFromQueueFlags(testCase.Flags))
		})
	}
}
