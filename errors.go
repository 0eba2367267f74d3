package devres

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/arsenal/devres/capability"
)

var (
	// NoResourcesError is returned from New when the backend reports no memory heaps or no queues
	NoResourcesError = capability.NoResourcesError
	// NoCapableQueueError is returned when no queue family offers a requested capability
	NoCapableQueueError = capability.NoCapableQueueError

	// LimitReachedError is returned when creating a physical object would exceed the device's
	// allocation count ceiling
	LimitReachedError = errors.New("device allocation count limit reached")
	// HeapExhaustedError is returned when creating a Block would exceed the size of its heap,
	// or the limit provided for it in CreateOptions.HeapSizeLimits
	HeapExhaustedError = errors.New("heap size limit reached")
	// BackendError marks errors that were produced by the device backend. The backend's own
	// error remains in the chain and can be tested for with errors.Is
	BackendError = errors.New("device backend failure")

	BlockDestroyedError  = errors.New("block has already been destroyed")
	DeviceDestroyedError = errors.New("device has already been destroyed")
	InvalidHeapError     = errors.New("device has no heap with the requested index")
	InvalidQueueError    = errors.New("device has no queue with the requested family and index")
)

func backendError(err error, format string, args ...interface{}) error {
	return errors.Wrapf(errors.Mark(err, BackendError), format, args...)
}
