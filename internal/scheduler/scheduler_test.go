package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"conversation-workers/internal/common/config"
	"conversation-workers/internal/common/logger"
	"conversation-workers/internal/common/observability"
	"conversation-workers/internal/outcome"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type MockSweeps struct {
	mock.Mock
}

func (m *MockSweeps) MarkTimeoutAbandoned(ctx context.Context, tenantID, userID string) (*outcome.BatchResult, error) {
	args := m.Called(ctx, tenantID, userID)
	result, _ := args.Get(0).(*outcome.BatchResult)
	return result, args.Error(1)
}

func (m *MockSweeps) MarkBookingAbandoned(ctx context.Context, tenantID, userID string) (*outcome.BatchResult, error) {
	args := m.Called(ctx, tenantID, userID)
	result, _ := args.Get(0).(*outcome.BatchResult)
	return result, args.Error(1)
}

func (m *MockSweeps) CheckFinishedConversations(ctx context.Context) (*outcome.BatchResult, error) {
	args := m.Called(ctx)
	result, _ := args.Get(0).(*outcome.BatchResult)
	return result, args.Error(1)
}

func testSchedulerConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		Enabled:       true,
		TimeoutSweep:  "@every 1m",
		BookingSweep:  "@every 10m",
		FinishedSweep: "@every 5m",
		JobTimeout:    2 * 60 * 1000,
	}
}

var hasDeadline = mock.MatchedBy(func(ctx context.Context) bool {
	_, ok := ctx.Deadline()
	return ok
})

func TestNew_RegistersJobs(t *testing.T) {
	sweeps := new(MockSweeps)
	s, err := New(testSchedulerConfig(), sweeps, sweeps, observability.NewNoop(), logger.NewTestLogger(t))
	require.NoError(t, err)

	for _, name := range []string{JobTimeoutSweep, JobBookingSweep, JobFinishedCheck} {
		_, ok := s.entries[name]
		assert.True(t, ok, name)
	}
	_, ok := s.Next("unknown")
	assert.False(t, ok)
}

func TestNew_InvalidSpec(t *testing.T) {
	cfg := testSchedulerConfig()
	cfg.BookingSweep = "every ten minutes"

	_, err := New(cfg, new(MockSweeps), new(MockSweeps), observability.NewNoop(), logger.NewTestLogger(t))

	require.Error(t, err)
	assert.Contains(t, err.Error(), JobBookingSweep)
}

func TestJob_LogsSummary(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sweeps := new(MockSweeps)
	sweeps.On("MarkTimeoutAbandoned", hasDeadline, "", "").
		Return(&outcome.BatchResult{Outcome: outcome.OutcomeTimeoutAbandoned, Total: 2, Processed: 1, Failed: 1}, nil)

	s, err := New(testSchedulerConfig(), sweeps, sweeps, observability.NewNoop(), logger.NewZapAdapter(zap.New(core)))
	require.NoError(t, err)

	s.job(JobTimeoutSweep, func(ctx context.Context) (*outcome.BatchResult, error) {
		return sweeps.MarkTimeoutAbandoned(ctx, "", "")
	})()

	entries := logs.FilterMessage("scheduled job finished").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "1/2 sessões marcadas", entries[0].ContextMap()["summary"])
	sweeps.AssertExpectations(t)
}

func TestJob_LogsFailure(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sweeps := new(MockSweeps)
	sweeps.On("CheckFinishedConversations", hasDeadline).Return(nil, outcome.ErrSessionScanFailed)

	s, err := New(testSchedulerConfig(), sweeps, sweeps, observability.NewNoop(), logger.NewZapAdapter(zap.New(core)))
	require.NoError(t, err)

	s.job(JobFinishedCheck, sweeps.CheckFinishedConversations)()

	assert.Equal(t, 1, logs.FilterMessage("scheduled job failed").Len())
	assert.Zero(t, logs.FilterMessage("scheduled job finished").Len())
}

func TestStartStop(t *testing.T) {
	sweeps := new(MockSweeps)
	sweeps.On("MarkTimeoutAbandoned", mock.Anything, "", "").Return(&outcome.BatchResult{}, nil).Maybe()
	sweeps.On("MarkBookingAbandoned", mock.Anything, "", "").Return(&outcome.BatchResult{}, nil).Maybe()
	sweeps.On("CheckFinishedConversations", mock.Anything).Return(nil, errors.New("unused")).Maybe()

	s, err := New(testSchedulerConfig(), sweeps, sweeps, observability.NewNoop(), logger.NewTestLogger(t))
	require.NoError(t, err)

	s.Start()
	next, ok := s.Next(JobTimeoutSweep)
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Minute), next, 5*time.Second)

	select {
	case <-s.Stop().Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
