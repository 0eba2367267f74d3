package devres

import (
	"io"
	"log/slog"

	"github.com/dolthub/swiss"
	"github.com/vkngwrapper/arsenal/devres/backend"
	"github.com/vkngwrapper/arsenal/devres/capability"
	"github.com/vkngwrapper/core/v2/common"
)

// CreateFlags indicate specific device behaviors to activate or deactivate
type CreateFlags int32

var deviceCreateFlagsMapping = common.NewFlagStringMapping[CreateFlags]()

func (f CreateFlags) Register(str string) {
	deviceCreateFlagsMapping.Register(f, str)
}
func (f CreateFlags) String() string {
	return deviceCreateFlagsMapping.FlagsToString(f)
}

const (
	// DeviceCreateExternallySynchronized ensures that this device and all Blocks created from it
	// will not be synchronized internally. The consumer must guarantee they are used from only one
	// goroutine at a time or are synchronized by some other mechanism, but performance may improve
	// because internal mutexes are not used.
	DeviceCreateExternallySynchronized CreateFlags = 1 << iota
)

func init() {
	DeviceCreateExternallySynchronized.Register("DeviceCreateExternallySynchronized")
}

// CreateOptions contains optional settings when creating a Device
type CreateOptions struct {
	// Flags indicates specific device behaviors to activate or deactivate
	Flags CreateFlags

	// RequiredCapabilities lists every queue capability the consumer intends to borrow. New fails
	// with NoCapableQueueError if the device cannot offer one of them, and BorrowQueue will
	// never fail for lack of capability afterward.
	RequiredCapabilities capability.Capabilities

	// MemoryCallbackOptions is an optional set of callbacks that will be executed when physical
	// memory is allocated or freed for a Block
	MemoryCallbackOptions *MemoryCallbackOptions

	// HeapSizeLimits can be left empty. If it is provided, though, it must be a slice
	// with a number of entries corresponding to the number of heaps reported by the backend.
	// Each entry must be either the maximum number of bytes that should be held in Blocks
	// created from the corresponding heap, or 0 or below indicating no limit beyond the heap's size.
	HeapSizeLimits []int
}

// New opens a Device over the provided backend, taking the capability snapshot that will be
// used for the Device's lifetime
//
// logger - The logger diagnostics will be written to. If nil, diagnostics are discarded
//
// deviceBackend - The driver collaborator that physical objects will be created through
//
// options - Optional parameters: it is valid to leave all the fields blank
func New(logger *slog.Logger, deviceBackend backend.Backend, options CreateOptions) (*Device, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	heaps, err := deviceBackend.EnumerateHeaps()
	if err != nil {
		return nil, backendError(err, "failed to enumerate memory heaps")
	}

	families, err := deviceBackend.EnumerateQueueFamilies()
	if err != nil {
		return nil, backendError(err, "failed to enumerate queue families")
	}

	snapshot, err := capability.NewSnapshot(heaps, families, deviceBackend.MaxAllocationCount())
	if err != nil {
		return nil, err
	}

	err = snapshot.Validate(options.RequiredCapabilities)
	if err != nil {
		return nil, err
	}

	useMutex := options.Flags&DeviceCreateExternallySynchronized == 0
	familyCount := snapshot.QueueFamilyCount()

	device := &Device{
		useMutex:    useMutex,
		logger:      logger,
		backend:     deviceBackend,
		snapshot:    snapshot,
		createFlags: options.Flags,

		leastClaimed: make([]int, familyCount),
		familyUsed:   make([]bool, familyCount),
		claims:       swiss.NewMap[queueKey, int](uint32(familyCount)),
		blocks:       swiss.NewMap[int, *Block](8),
	}
	device.mutex.UseMutex = useMutex
	device.memoryCallbacks = &memoryCallbacks{
		Callbacks: options.MemoryCallbackOptions,
		Device:    device,
	}

	err = device.tracker.Init(snapshot, options.HeapSizeLimits)
	if err != nil {
		return nil, err
	}

	logger.Debug("Device::New", slog.String("snapshot", snapshot.String()))
	return device, nil
}
