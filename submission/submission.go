package submission

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/vkngwrapper/arsenal/devres/backend"
	"golang.org/x/sync/errgroup"
)

// Submission tracks one unit of work that was submitted to a queue along with a fence. It is
// advanced by the Poller that created it.
type Submission struct {
	id         uuid.UUID
	fence      backend.Fence
	onComplete func()

	mutex sync.Mutex
	state State
	err   error
	done  chan struct{}
}

func newSubmission(fence backend.Fence, onComplete func()) *Submission {
	return &Submission{
		id:         uuid.New(),
		fence:      fence,
		onComplete: onComplete,
		state:      StateSubmitted,
		done:       make(chan struct{}),
	}
}

func (s *Submission) ID() uuid.UUID        { return s.id }
func (s *Submission) Fence() backend.Fence { return s.fence }

func (s *Submission) State() State {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.state
}

// Err returns the error that moved the submission to StateFailed, if any
func (s *Submission) Err() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.err
}

// Done returns a channel that is closed when the submission reaches a final state
func (s *Submission) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the submission reaches a final state or ctx is done. It returns the
// submission's error if it failed, or ctx's error if ctx finished first.
func (s *Submission) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Submission) setState(state State, err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.state = state
	s.err = err
}

// finish must only be called once, after the submission has reached a final state. The
// completion callback has returned by the time Done is closed.
func (s *Submission) finish() {
	if s.State() == StateComplete && s.onComplete != nil {
		s.onComplete()
	}

	close(s.done)
}

// WaitAll blocks until every provided submission reaches a final state. It returns the first
// error produced by a failed submission, or ctx's error if ctx finished first.
func WaitAll(ctx context.Context, submissions ...*Submission) error {
	group, groupCtx := errgroup.WithContext(ctx)

	for _, submission := range submissions {
		group.Go(func() error {
			return submission.Wait(groupCtx)
		})
	}

	return group.Wait()
}
