package submission

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/arsenal/devres/backend"
)

// FenceQueryError wraps errors returned by the backend while checking a submission's fence
var FenceQueryError = errors.New("failed to query fence status")

// Poller advances submissions by checking their fences. Higher layers that would otherwise
// block on a fence register the work with Track and are called back once it completes.
type Poller struct {
	querier backend.FenceQuerier
	logger  *slog.Logger

	mutex   sync.Mutex
	pending []*Submission
}

// NewPoller creates a Poller that queries fences through the provided backend. If logger is
// nil, diagnostics are discarded.
func NewPoller(logger *slog.Logger, querier backend.FenceQuerier) *Poller {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Poller{
		querier: querier,
		logger:  logger,
	}
}

// Track registers work that has already been submitted with the provided fence. onComplete
// may be nil. If it is not, it is called from Poll once the fence is signaled, before the
// submission's Done channel is closed, so Wait and WaitAll return only after it has run.
func (p *Poller) Track(fence backend.Fence, onComplete func()) *Submission {
	submission := newSubmission(fence, onComplete)

	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.pending = append(p.pending, submission)
	return submission
}

// Pending returns the number of submissions that have not reached a final state
func (p *Poller) Pending() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return len(p.pending)
}

// Poll makes a single pass over every pending submission, checking its fence once. Completion
// callbacks are run after the pass, outside the poller's lock. It returns the number of
// submissions still pending.
func (p *Poller) Poll() int {
	p.logger.Debug("Poller::Poll")

	p.mutex.Lock()

	var finished []*Submission
	remaining := p.pending[:0]

	for _, submission := range p.pending {
		if submission.State() == StateSubmitted {
			submission.setState(StateWaiting, nil)
		}

		signaled, err := p.querier.FenceStatus(submission.fence)
		if err != nil {
			p.logger.LogAttrs(context.Background(), slog.LevelError, "fence query failed",
				slog.String("submission", submission.id.String()),
				slog.Any("error", err),
			)
			submission.setState(StateFailed, errors.Wrapf(errors.Mark(err, FenceQueryError), "submission %s", submission.id))
			finished = append(finished, submission)
			continue
		}

		if signaled {
			submission.setState(StateComplete, nil)
			finished = append(finished, submission)
			continue
		}

		remaining = append(remaining, submission)
	}

	// Clear the tail so finished submissions can be collected
	for i := len(remaining); i < len(p.pending); i++ {
		p.pending[i] = nil
	}
	p.pending = remaining
	pendingCount := len(remaining)

	p.mutex.Unlock()

	for _, submission := range finished {
		submission.finish()
	}

	return pendingCount
}

// Run polls at the provided interval until ctx is done, and then returns ctx's error
func (p *Poller) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.Poll()
		}
	}
}
