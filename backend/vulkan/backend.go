// Package vulkan implements backend.Backend over a vkngwrapper Vulkan device
package vulkan

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/arsenal/devres/backend"
	"github.com/vkngwrapper/arsenal/devres/capability"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/driver"
	"github.com/vkngwrapper/extensions/v2/khr_surface"
)

// Options contains optional settings when creating a Backend
type Options struct {
	// AllocationCallbacks is an optional set of host allocation callbacks passed to Vulkan
	// whenever memory or fences are created and destroyed
	AllocationCallbacks *driver.AllocationCallbacks
	// Surface is optional. If it is provided, queue families that can present to it report
	// capability.CapabilityPresent.
	Surface khr_surface.Surface
}

// Backend exposes a Vulkan device to the device resource allocator. Each Vulkan memory type is
// reported as a separate heap whose HeapIndex is the memory type index, so that Blocks can be
// created in a specific memory type.
type Backend struct {
	physicalDevice      core1_0.PhysicalDevice
	device              core1_0.Device
	allocationCallbacks *driver.AllocationCallbacks
	surface             khr_surface.Surface

	deviceProperties *core1_0.PhysicalDeviceProperties
	memoryProperties *core1_0.PhysicalDeviceMemoryProperties
}

var _ backend.Backend = &Backend{}

// New creates a Backend for a logical device
//
// physicalDevice - The PhysicalDevice that owns the provided Device
//
// device - The Device that memory, fences, and queues will be retrieved from
//
// options - Optional parameters: it is valid to leave all the fields blank
func New(physicalDevice core1_0.PhysicalDevice, device core1_0.Device, options Options) (*Backend, error) {
	deviceProperties, err := physicalDevice.Properties()
	if err != nil {
		return nil, err
	}

	return &Backend{
		physicalDevice:      physicalDevice,
		device:              device,
		allocationCallbacks: options.AllocationCallbacks,
		surface:             options.Surface,

		deviceProperties: deviceProperties,
		memoryProperties: physicalDevice.MemoryProperties(),
	}, nil
}

func heapsFromMemoryProperties(memoryProperties *core1_0.PhysicalDeviceMemoryProperties) []capability.MemoryHeap {
	heaps := make([]capability.MemoryHeap, 0, len(memoryProperties.MemoryTypes))

	for typeIndex, memoryType := range memoryProperties.MemoryTypes {
		flags := memoryType.PropertyFlags
		heaps = append(heaps, capability.MemoryHeap{
			HeapIndex:    typeIndex,
			Size:         memoryProperties.MemoryHeaps[memoryType.HeapIndex].Size,
			DeviceLocal:  flags&core1_0.MemoryPropertyDeviceLocal != 0,
			HostVisible:  flags&core1_0.MemoryPropertyHostVisible != 0,
			HostCoherent: flags&core1_0.MemoryPropertyHostCoherent != 0,
			HostCached:   flags&core1_0.MemoryPropertyHostCached != 0,
		})
	}

	return heaps
}

func capabilitiesFromQueueFlags(flags core1_0.QueueFlags) capability.Capabilities {
	var capabilities capability.Capabilities

	if flags&core1_0.QueueGraphics != 0 {
		capabilities |= capability.CapabilityGraphics
	}
	if flags&core1_0.QueueCompute != 0 {
		capabilities |= capability.CapabilityCompute
	}

	// Graphics and compute queues always support transfer operations, whether or not they
	// report it
	if flags&(core1_0.QueueGraphics|core1_0.QueueCompute|core1_0.QueueTransfer) != 0 {
		capabilities |= capability.CapabilityTransfer
	}

	return capabilities
}

func (b *Backend) EnumerateHeaps() ([]capability.MemoryHeap, error) {
	return heapsFromMemoryProperties(b.memoryProperties), nil
}

func (b *Backend) EnumerateQueueFamilies() ([]capability.QueueFamily, error) {
	properties := b.physicalDevice.QueueFamilyProperties()
	families := make([]capability.QueueFamily, 0, len(properties))

	for familyIndex, familyProperties := range properties {
		capabilities := capabilitiesFromQueueFlags(familyProperties.QueueFlags)

		if b.surface != nil {
			supported, _, err := b.surface.PhysicalDeviceSurfaceSupport(b.physicalDevice, familyIndex)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to query present support for queue family %d", familyIndex)
			}

			if supported {
				capabilities |= capability.CapabilityPresent
			}
		}

		families = append(families, capability.QueueFamily{
			Index:        familyIndex,
			QueueCount:   familyProperties.QueueCount,
			Capabilities: capabilities,
		})
	}

	return families, nil
}

func (b *Backend) MaxAllocationCount() int {
	return b.deviceProperties.Limits.MaxMemoryAllocationCount
}

func (b *Backend) AllocatePhysicalMemory(heapIndex int, size int) (backend.Memory, error) {
	memory, _, err := b.device.AllocateMemory(b.allocationCallbacks, core1_0.MemoryAllocateInfo{
		AllocationSize:  size,
		MemoryTypeIndex: heapIndex,
	})
	if err != nil {
		return nil, err
	}

	return memory, nil
}

func (b *Backend) FreePhysicalMemory(memory backend.Memory) {
	deviceMemory, ok := memory.(core1_0.DeviceMemory)
	if !ok {
		panic(fmt.Sprintf("attempted to free memory of unknown type %T", memory))
	}

	deviceMemory.Free(b.allocationCallbacks)
}

func (b *Backend) CreateFence() (backend.Fence, error) {
	fence, _, err := b.device.CreateFence(b.allocationCallbacks, core1_0.FenceCreateInfo{
		Flags: core1_0.FenceCreateSignaled,
	})
	if err != nil {
		return nil, err
	}

	return fence, nil
}

func (b *Backend) vulkanFence(fence backend.Fence) core1_0.Fence {
	vulkanFence, ok := fence.(core1_0.Fence)
	if !ok {
		panic(fmt.Sprintf("received fence of unknown type %T", fence))
	}

	return vulkanFence
}

func (b *Backend) DestroyFence(fence backend.Fence) {
	b.vulkanFence(fence).Destroy(b.allocationCallbacks)
}

func (b *Backend) FenceStatus(fence backend.Fence) (bool, error) {
	res, err := b.vulkanFence(fence).Status()
	if err != nil {
		return false, err
	}

	return res == core1_0.VKSuccess, nil
}

func (b *Backend) ResetFence(fence backend.Fence) error {
	_, err := b.device.ResetFences([]core1_0.Fence{b.vulkanFence(fence)})
	return err
}

func (b *Backend) GetQueueHandle(familyIndex int, queueIndex int) (backend.QueueHandle, error) {
	queue := b.device.GetQueue(familyIndex, queueIndex)
	if queue == nil {
		return nil, errors.Newf("device has no queue %d in family %d", queueIndex, familyIndex)
	}

	return queue, nil
}

func (b *Backend) BindResourceToMemory(resource backend.Resource, memory backend.Memory, offset int) error {
	deviceMemory, ok := memory.(core1_0.DeviceMemory)
	if !ok {
		return errors.Newf("attempted to bind to memory of unknown type %T", memory)
	}

	var err error
	switch typedResource := resource.(type) {
	case core1_0.Buffer:
		_, err = typedResource.BindBufferMemory(deviceMemory, offset)
	case core1_0.Image:
		_, err = typedResource.BindImageMemory(deviceMemory, offset)
	default:
		return errors.Newf("attempted to bind resource of unknown type %T", resource)
	}

	return err
}

func (b *Backend) WaitIdle() error {
	_, err := b.device.WaitIdle()
	return err
}
