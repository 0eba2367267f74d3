package submission_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/arsenal/devres/mocks"
	"github.com/vkngwrapper/arsenal/devres/submission"
	"go.uber.org/mock/gomock"
)

func TestPollCompletes(t *testing.T) {
	ctrl := gomock.NewController(t)
	querier := mocks.NewMockFenceQuerier(ctrl)

	gomock.InOrder(
		querier.EXPECT().FenceStatus("fence-0").Return(false, nil),
		querier.EXPECT().FenceStatus("fence-0").Return(true, nil),
	)

	poller := submission.NewPoller(nil, querier)

	completions := 0
	sub := poller.Track("fence-0", func() {
		completions++
	})
	require.Equal(t, submission.StateSubmitted, sub.State())
	require.Equal(t, "fence-0", sub.Fence())
	require.Equal(t, 1, poller.Pending())

	require.Equal(t, 1, poller.Poll())
	require.Equal(t, submission.StateWaiting, sub.State())
	require.Equal(t, 0, completions)

	select {
	case <-sub.Done():
		require.Fail(t, "submission finished before its fence was signaled")
	default:
	}

	require.Equal(t, 0, poller.Poll())
	require.Equal(t, submission.StateComplete, sub.State())
	require.Equal(t, 1, completions)
	require.NoError(t, sub.Err())
	require.NoError(t, sub.Wait(context.Background()))

	// Finished submissions are not queried again
	require.Equal(t, 0, poller.Poll())
}

func TestPollFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	querier := mocks.NewMockFenceQuerier(ctrl)

	driverErr := errors.New("device lost")
	querier.EXPECT().FenceStatus("fence-0").Return(false, driverErr)
	querier.EXPECT().FenceStatus("fence-1").Return(false, nil)

	poller := submission.NewPoller(nil, querier)

	completed := false
	failed := poller.Track("fence-0", func() {
		completed = true
	})
	waiting := poller.Track("fence-1", nil)

	require.Equal(t, 1, poller.Poll())
	require.False(t, completed)

	require.Equal(t, submission.StateFailed, failed.State())
	require.True(t, errors.Is(failed.Err(), submission.FenceQueryError))
	require.True(t, errors.Is(failed.Err(), driverErr))

	err := failed.Wait(context.Background())
	require.True(t, errors.Is(err, driverErr))

	require.Equal(t, submission.StateWaiting, waiting.State())
}

func TestWaitHonorsContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	querier := mocks.NewMockFenceQuerier(ctrl)

	poller := submission.NewPoller(nil, querier)
	sub := poller.Track("fence-0", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sub.Wait(ctx)
	require.True(t, errors.Is(err, context.Canceled))
	require.Equal(t, submission.StateSubmitted, sub.State())
}

func TestRun(t *testing.T) {
	ctrl := gomock.NewController(t)
	querier := mocks.NewMockFenceQuerier(ctrl)
	querier.EXPECT().FenceStatus(gomock.Any()).Return(true, nil).AnyTimes()

	poller := submission.NewPoller(nil, querier)
	first := poller.Track("fence-0", nil)
	second := poller.Track("fence-1", nil)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() {
		runErr <- poller.Run(ctx, time.Millisecond)
	}()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, submission.WaitAll(waitCtx, first, second))

	cancel()
	require.True(t, errors.Is(<-runErr, context.Canceled))
	require.Equal(t, 0, poller.Pending())
}

func TestCallbackRunsBeforeWaitReturns(t *testing.T) {
	ctrl := gomock.NewController(t)
	querier := mocks.NewMockFenceQuerier(ctrl)
	querier.EXPECT().FenceStatus(gomock.Any()).Return(true, nil).AnyTimes()

	poller := submission.NewPoller(nil, querier)

	release := make(chan struct{})
	var completed atomic.Bool
	sub := poller.Track("fence-0", func() {
		<-release
		completed.Store(true)
	})

	polled := make(chan int, 1)
	go func() {
		polled <- poller.Poll()
	}()

	// The callback is blocked, so the submission must not report itself finished yet
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer waitCancel()
	require.True(t, errors.Is(sub.Wait(waitCtx), context.DeadlineExceeded))

	close(release)
	require.NoError(t, submission.WaitAll(context.Background(), sub))
	require.True(t, completed.Load())
	require.Equal(t, 0, <-polled)
}

func TestWaitAllFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	querier := mocks.NewMockFenceQuerier(ctrl)

	driverErr := errors.New("device lost")
	querier.EXPECT().FenceStatus("fence-0").Return(true, nil)
	querier.EXPECT().FenceStatus("fence-1").Return(false, driverErr)

	poller := submission.NewPoller(nil, querier)
	first := poller.Track("fence-0", nil)
	second := poller.Track("fence-1", nil)

	require.Equal(t, 0, poller.Poll())

	err := submission.WaitAll(context.Background(), first, second)
	require.True(t, errors.Is(err, driverErr))
}

func TestSubmissionIDs(t *testing.T) {
	ctrl := gomock.NewController(t)
	poller := submission.NewPoller(nil, mocks.NewMockFenceQuerier(ctrl))

	first := poller.Track("fence-0", nil)
	second := poller.Track("fence-0", nil)
	require.NotEqual(t, first.ID(), second.ID())
}

func TestStateString(t *testing.T) {
	testCases := map[string]struct {
		State submission.State
		Final bool
	}{
		"StateSubmitted": {State: submission.StateSubmitted, Final: false},
		"StateWaiting":   {State: submission.StateWaiting, Final: false},
		"StateComplete":  {State: submission.StateComplete, Final: true},
		"StateFailed":    {State: submission.StateFailed, Final: true},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, name, testCase.State.String())
			require.Equal(t, testCase.Final, testCase.State.IsFinal())
		})
	}
}
