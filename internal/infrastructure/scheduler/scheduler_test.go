package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progress-engine/pkg/timeutil"
)

type testJob struct {
	name  string
	runs  atomic.Int32
	block chan struct{}
	began chan struct{}
	err   error
}

func (j *testJob) Name() string        { return j.name }
func (j *testJob) Description() string { return "test job" }
func (j *testJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.began != nil {
		j.began <- struct{}{}
	}
	if j.block != nil {
		select {
		case <-j.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return j.err
}

type fakeObserver struct {
	mu      sync.Mutex
	ok      int
	failed  int
	skipped int
}

func (o *fakeObserver) ObserveJob(_ string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.failed++
		return
	}
	o.ok++
}

func (o *fakeObserver) SkipJob(string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.skipped++
}

type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	released int
}

func (l *fakeLocker) TryLock(_ context.Context, name string, _ time.Duration) (func(context.Context) error, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[name] {
		return nil, false, nil
	}
	l.held[name] = true
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, name)
		l.released++
		return nil
	}, true, nil
}

func newTestScheduler(clock timeutil.Clock, obs Observer, locker Locker) *Scheduler {
	s := NewScheduler(SchedulerConfig{Clock: clock, Observer: obs, Locker: locker})
	s.ctx = context.Background()
	return s
}

func TestScheduler_RegisterValidation(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())
	every := NewIntervalSchedule(time.Minute)

	assert.ErrorIs(t, s.Register(nil, every), ErrNilJob)
	assert.ErrorIs(t, s.Register(&testJob{name: "a"}, nil), ErrNilSchedule)
	require.NoError(t, s.Register(&testJob{name: "a"}, every))
	assert.ErrorIs(t, s.Register(&testJob{name: "a"}, every), ErrJobAlreadyExists)
	assert.ErrorIs(t, s.DisableJob("missing"), ErrJobNotFound)
}

func TestScheduler_RunsDueJobOnce(t *testing.T) {
	clock := timeutil.NewManualClock(time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC))
	obs := &fakeObserver{}
	s := newTestScheduler(clock, obs, nil)
	job := &testJob{name: "expire"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	s.checkAndRunJobs()
	s.wg.Wait()
	assert.EqualValues(t, 0, job.runs.Load(), "not due yet")

	clock.Advance(time.Hour)
	s.checkAndRunJobs()
	s.wg.Wait()
	s.checkAndRunJobs()
	s.wg.Wait()
	assert.EqualValues(t, 1, job.runs.Load())
	assert.Equal(t, 1, obs.ok)

	infos := s.ListJobs()
	require.Len(t, infos, 1)
	assert.Equal(t, clock.Now().Add(time.Hour), infos[0].NextRun)
	assert.EqualValues(t, 1, infos[0].RunCount)
}

func TestScheduler_SlowJobIsNotStartedTwice(t *testing.T) {
	clock := timeutil.NewManualClock(time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC))
	s := newTestScheduler(clock, &fakeObserver{}, nil)
	job := &testJob{name: "sweep", block: make(chan struct{}), began: make(chan struct{}, 1)}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Minute)))

	clock.Advance(time.Minute)
	s.checkAndRunJobs()
	<-job.began

	clock.Advance(5 * time.Minute)
	s.checkAndRunJobs()
	assert.EqualValues(t, 1, job.runs.Load())
	assert.True(t, s.ListJobs()[0].Running)

	close(job.block)
	s.wg.Wait()
	assert.False(t, s.ListJobs()[0].Running)
}

func TestScheduler_SkipsWhenLockHeldElsewhere(t *testing.T) {
	clock := timeutil.NewManualClock(time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC))
	obs := &fakeObserver{}
	locker := &fakeLocker{held: map[string]bool{"reset": true}}
	s := newTestScheduler(clock, obs, locker)
	job := &testJob{name: "reset"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Minute)))

	res, err := s.RunNow(context.Background(), "reset")
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.EqualValues(t, 0, job.runs.Load())
	assert.Equal(t, 1, obs.skipped)

	locker.held = map[string]bool{}
	res, err = s.RunNow(context.Background(), "reset")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, locker.released)
}

func TestScheduler_RunNowReportsFailure(t *testing.T) {
	s := newTestScheduler(timeutil.NewManualClock(time.Now()), &fakeObserver{}, nil)
	boom := errors.New("boom")
	require.NoError(t, s.Register(&testJob{name: "x", err: boom}, NewIntervalSchedule(time.Minute)))

	var hooked []JobResult
	s.OnJobComplete(func(r JobResult) { hooked = append(hooked, r) })

	res, err := s.RunNow(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
	assert.False(t, res.Success)
	assert.True(t, res.Manual)
	require.Len(t, hooked, 1)
	assert.Len(t, s.GetHistory(10), 1)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestScheduler_StartStop(t *testing.T) {
	s := NewScheduler(SchedulerConfig{TickInterval: 10 * time.Millisecond})
	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)
	require.NoError(t, s.Stop())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}
