package devres

import (
	"github.com/vkngwrapper/arsenal/devres/backend"
	"github.com/vkngwrapper/arsenal/devres/capability"
)

// Queue is a hardware queue lent out by Device.BorrowQueue. Several borrowers may hold the
// same queue at once.
type Queue struct {
	familyIndex  int
	queueIndex   int
	capabilities capability.Capabilities
	handle       backend.QueueHandle
}

func (q *Queue) FamilyIndex() int                      { return q.familyIndex }
func (q *Queue) QueueIndex() int                       { return q.queueIndex }
func (q *Queue) Capabilities() capability.Capabilities { return q.capabilities }

// Handle returns the backend's handle for the queue, which work can be submitted to
func (q *Queue) Handle() backend.QueueHandle { return q.handle }
