package devres

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/arsenal/devres/memutils"
	"github.com/vkngwrapper/arsenal/devres/memutils/metadata"
	"github.com/vkngwrapper/arsenal/devres/mocks"
	"go.uber.org/mock/gomock"
	"golang.org/x/sync/errgroup"
)

func readyBlock(t *testing.T, ctrl *gomock.Controller, size int, flags BlockCreateFlags) (*mocks.MockBackend, *Device, *Block) {
	mockBackend, device := readyDevice(t, ctrl, defaultSetup())
	mockBackend.EXPECT().AllocatePhysicalMemory(0, size).Return("memory-0", nil)

	block, err := device.CreateBlock(BlockCreateInfo{
		HeapIndex: 0,
		Size:      size,
		Flags:     flags,
		Name:      "test block",
	})
	require.NoError(t, err)
	require.Equal(t, "memory-0", block.Memory())
	require.Equal(t, size, block.Size())

	return mockBackend, device, block
}

func TestBlockFragmentationScenario(t *testing.T) {
	ctrl := gomock.NewController(t)
	_, _, block := readyBlock(t, ctrl, 1024, 0)

	a, success, err := block.Alloc(nil, 100, 16)
	require.NoError(t, err)
	require.True(t, success)
	require.Equal(t, 0, block.Offset(a))

	b, success, err := block.Alloc(nil, 300, 16)
	require.NoError(t, err)
	require.True(t, success)
	require.Equal(t, 512, block.Offset(b))

	block.Free(a, 100)

	c, success, err := block.Alloc(nil, 100, 16)
	require.NoError(t, err)
	require.True(t, success)
	require.Equal(t, 0, block.Offset(c))

	require.NoError(t, block.Validate())
}

func TestBlockBindsResource(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockBackend, device, block := readyBlock(t, ctrl, 1024, 0)

	mockBackend.EXPECT().BindResourceToMemory("buffer-a", "memory-0", 0).Return(nil)
	mockBackend.EXPECT().BindResourceToMemory("buffer-b", "memory-0", 512).Return(nil)

	a, success, err := block.Alloc("buffer-a", 400, 256)
	require.NoError(t, err)
	require.True(t, success)

	_, success, err = block.Alloc("buffer-b", 400, 256)
	require.NoError(t, err)
	require.True(t, success)

	budget, err := device.Budget(0)
	require.NoError(t, err)
	require.Equal(t, 2, budget.Statistics.AllocationCount)
	require.Equal(t, 800, budget.Statistics.AllocationBytes)

	block.Free(a, 400)

	budget, err = device.Budget(0)
	require.NoError(t, err)
	require.Equal(t, 1, budget.Statistics.AllocationCount)
	require.Equal(t, 400, budget.Statistics.AllocationBytes)
}

func TestBlockBindFailureRollsBack(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockBackend, device, block := readyBlock(t, ctrl, 1024, 0)

	driverErr := errors.New("invalid buffer")
	mockBackend.EXPECT().BindResourceToMemory("buffer", "memory-0", 0).Return(driverErr)

	handle, success, err := block.Alloc("buffer", 100, 16)
	require.True(t, errors.Is(err, BackendError))
	require.True(t, errors.Is(err, driverErr))
	require.False(t, success)
	require.Equal(t, metadata.AllocationHandle{}, handle)

	require.True(t, block.IsEmpty())
	require.NoError(t, block.Validate())

	budget, err := device.Budget(0)
	require.NoError(t, err)
	require.Equal(t, 0, budget.Statistics.AllocationCount)
}

func TestBlockAlignmentMustBePowerOfTwo(t *testing.T) {
	testCases := map[string]struct {
		Alignment uint
	}{
		"Zero":        {Alignment: 0},
		"NonPowerOf2": {Alignment: 48},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			_, _, block := readyBlock(t, ctrl, 1024, 0)

			_, success, err := block.Alloc(nil, 10, testCase.Alignment)
			require.False(t, success)
			require.True(t, errors.Is(err, memutils.PowerOfTwoError))
		})
	}
}

func TestBlockAlignment(t *testing.T) {
	ctrl := gomock.NewController(t)
	_, _, block := readyBlock(t, ctrl, 1<<16, 0)

	sizes := []int{3, 17, 100, 250, 1, 64, 999}
	for _, size := range sizes {
		for _, alignment := range []uint{1, 4, 16, 64, 256, 1024} {
			handle, success, err := block.Alloc(nil, size, alignment)
			require.NoError(t, err)
			require.True(t, success)
			require.Zero(t, block.Offset(handle)%int(alignment))
		}
	}

	require.NoError(t, block.Validate())
}

func TestBlockExhaustion(t *testing.T) {
	ctrl := gomock.NewController(t)
	_, _, block := readyBlock(t, ctrl, 1024, 0)

	for i := 0; i < 16; i++ {
		_, success, err := block.Alloc(nil, 64, 16)
		require.NoError(t, err)
		require.True(t, success)
	}

	handle, success, err := block.Alloc(nil, 1, 1)
	require.NoError(t, err)
	require.False(t, success)
	require.Equal(t, metadata.AllocationHandle{}, handle)

	_, success, err = block.Alloc(nil, 2048, 1)
	require.NoError(t, err)
	require.False(t, success)
}

func TestBlockCreateFlags(t *testing.T) {
	testCases := map[string]struct {
		Flags             BlockCreateFlags
		ExpectedReallocAt int
		ExpectWholeBlock  bool
	}{
		"Default": {
			Flags:             0,
			ExpectedReallocAt: 640,
			ExpectWholeBlock:  false,
		},
		"CoalesceOnFree": {
			Flags:             BlockCreateCoalesceOnFree,
			ExpectedReallocAt: 640,
			ExpectWholeBlock:  true,
		},
		"StrategyMinOffset": {
			Flags:             BlockCreateStrategyMinOffset,
			ExpectedReallocAt: 0,
			ExpectWholeBlock:  false,
		},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			_, _, block := readyBlock(t, ctrl, 1024, testCase.Flags)

			large, success, err := block.Alloc(nil, 512, 16)
			require.NoError(t, err)
			require.True(t, success)
			require.Equal(t, 0, block.Offset(large))

			small, success, err := block.Alloc(nil, 100, 16)
			require.NoError(t, err)
			require.True(t, success)
			require.Equal(t, 512, block.Offset(small))

			block.Free(large, 512)

			realloc, success, err := block.Alloc(nil, 100, 16)
			require.NoError(t, err)
			require.True(t, success)
			require.Equal(t, testCase.ExpectedReallocAt, block.Offset(realloc))
			require.NoError(t, block.Validate())

			block.Free(small, 100)
			block.Free(realloc, 100)
			require.True(t, block.IsEmpty())

			_, success, err = block.Alloc(nil, 1024, 1)
			require.NoError(t, err)
			require.Equal(t, testCase.ExpectWholeBlock, success)
			require.NoError(t, block.Validate())
		})
	}
}

func TestBlockConcurrentAlloc(t *testing.T) {
	ctrl := gomock.NewController(t)
	_, device, block := readyBlock(t, ctrl, 1<<16, 0)

	type carved struct {
		handle metadata.AllocationHandle
		offset int
	}

	var lock sync.Mutex
	var allocations []carved

	var group errgroup.Group
	for worker := 0; worker < 8; worker++ {
		group.Go(func() error {
			for i := 0; i < 32; i++ {
				handle, success, err := block.Alloc(nil, 16, 16)
				if err != nil {
					return err
				}
				if !success {
					return errors.New("block ran out of space")
				}

				lock.Lock()
				allocations = append(allocations, carved{handle: handle, offset: block.Offset(handle)})
				lock.Unlock()
			}
			return nil
		})
	}
	require.NoError(t, group.Wait())
	require.Len(t, allocations, 256)

	sort.Slice(allocations, func(i, j int) bool {
		return allocations[i].offset < allocations[j].offset
	})
	for i := 1; i < len(allocations); i++ {
		require.LessOrEqual(t, allocations[i-1].offset+16, allocations[i].offset)
	}

	for worker := 0; worker < 8; worker++ {
		chunk := allocations[worker*32 : (worker+1)*32]
		group.Go(func() error {
			for _, allocation := range chunk {
				block.Free(allocation.handle, 16)
			}
			return nil
		})
	}
	require.NoError(t, group.Wait())

	require.True(t, block.IsEmpty())
	require.NoError(t, block.Validate())

	budget, err := device.Budget(0)
	require.NoError(t, err)
	require.Equal(t, 0, budget.Statistics.AllocationCount)
	require.Equal(t, 0, budget.Statistics.AllocationBytes)
}

func TestBlockDestroy(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockBackend, device, block := readyBlock(t, ctrl, 1024, 0)

	gomock.InOrder(
		mockBackend.EXPECT().WaitIdle().Return(nil),
		mockBackend.EXPECT().FreePhysicalMemory("memory-0"),
	)

	require.NoError(t, block.Destroy())
	require.Equal(t, 0, device.AllocationCount())

	require.True(t, errors.Is(block.Destroy(), BlockDestroyedError))

	_, _, err := block.Alloc(nil, 10, 1)
	require.True(t, errors.Is(err, BlockDestroyedError))

	// Frees against a destroyed block are logged and ignored
	block.Free(metadata.AllocationHandle{}, 10)
}

func TestBlockDestroyWithLiveAllocations(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockBackend, device, block := readyBlock(t, ctrl, 1024, 0)

	_, success, err := block.Alloc(nil, 100, 16)
	require.NoError(t, err)
	require.True(t, success)
	_, success, err = block.Alloc(nil, 300, 16)
	require.NoError(t, err)
	require.True(t, success)

	mockBackend.EXPECT().WaitIdle().Return(nil)
	mockBackend.EXPECT().FreePhysicalMemory("memory-0")
	require.NoError(t, block.Destroy())

	budget, err := device.Budget(0)
	require.NoError(t, err)
	require.Equal(t, 0, budget.Statistics.AllocationCount)
	require.Equal(t, 0, budget.Statistics.AllocationBytes)
	require.Equal(t, 0, budget.Statistics.BlockCount)
}

func TestBlockDestroyWaitFailure(t *testing.T) {
	testCases := map[string]struct {
		FreeAfterFailure bool
	}{
		"FreeThenRetry": {
			FreeAfterFailure: true,
		},
		"RetryWithLiveAllocation": {
			FreeAfterFailure: false,
		},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockBackend, device, block := readyBlock(t, ctrl, 1024, 0)

			handle, success, err := block.Alloc(nil, 100, 16)
			require.NoError(t, err)
			require.True(t, success)

			mockBackend.EXPECT().WaitIdle().Return(errors.New("device lost"))

			err = block.Destroy()
			require.True(t, errors.Is(err, BackendError))
			require.Equal(t, 1, device.AllocationCount())

			// The block still holds the allocation, and so does the device's accounting
			require.False(t, block.IsEmpty())
			budget, err := device.Budget(0)
			require.NoError(t, err)
			require.Equal(t, 1, budget.Statistics.AllocationCount)
			require.Equal(t, 100, budget.Statistics.AllocationBytes)
			require.Equal(t, 1, budget.Statistics.BlockCount)

			if testCase.FreeAfterFailure {
				block.Free(handle, 100)
				require.True(t, block.IsEmpty())
			}

			mockBackend.EXPECT().WaitIdle().Return(nil)
			mockBackend.EXPECT().FreePhysicalMemory("memory-0")
			require.NoError(t, block.Destroy())
			require.Equal(t, 0, device.AllocationCount())

			budget, err = device.Budget(0)
			require.NoError(t, err)
			require.Equal(t, 0, budget.Statistics.AllocationCount)
			require.Equal(t, 0, budget.Statistics.AllocationBytes)
			require.Equal(t, 0, budget.Statistics.BlockCount)
		})
	}
}

func TestDeviceDestroyWaitsForBlockDestroy(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockBackend, device, block := readyBlock(t, ctrl, 1024, 0)

	entered := make(chan struct{})
	release := make(chan struct{})

	gomock.InOrder(
		mockBackend.EXPECT().WaitIdle().DoAndReturn(func() error {
			close(entered)
			<-release
			return nil
		}),
		mockBackend.EXPECT().FreePhysicalMemory("memory-0"),
		mockBackend.EXPECT().WaitIdle().Return(nil),
	)

	blockErr := make(chan error, 1)
	go func() {
		blockErr <- block.Destroy()
	}()
	<-entered

	deviceErr := make(chan error, 1)
	go func() {
		deviceErr <- device.Destroy()
	}()

	require.Eventually(t, func() bool {
		err := device.ReserveAllocation()
		if err == nil {
			device.ReleaseAllocation()
			return false
		}
		return errors.Is(err, DeviceDestroyedError)
	}, 5*time.Second, time.Millisecond)

	// New block work is refused as soon as the device starts tearing down
	_, err := device.CreateBlock(BlockCreateInfo{HeapIndex: 0, Size: 64})
	require.True(t, errors.Is(err, DeviceDestroyedError))

	select {
	case <-deviceErr:
		require.Fail(t, "device was destroyed while a block was still releasing its memory")
	default:
	}

	close(release)
	require.NoError(t, <-blockErr)
	require.NoError(t, <-deviceErr)
	require.Equal(t, 0, device.AllocationCount())
}
