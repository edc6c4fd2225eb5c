package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/pkg/jobs"
)

type enqueueRecorder struct {
	jobs []jobs.Job
	busy map[string]bool
	err  error
}

func (r *enqueueRecorder) Enqueue(job jobs.Job) error {
	if r.busy[job.Key] {
		return jobs.ErrDuplicate
	}
	if r.err != nil {
		return r.err
	}
	r.jobs = append(r.jobs, job)
	return nil
}

type optimizerStub struct {
	scheduleIDs []string
	requests    []dto.OptimizeRequest
	err         error
}

func (o *optimizerStub) Optimize(ctx context.Context, scheduleID string, req dto.OptimizeRequest) (*dto.OptimizationResult, error) {
	o.scheduleIDs = append(o.scheduleIDs, scheduleID)
	o.requests = append(o.requests, req)
	if o.err != nil {
		return nil, o.err
	}
	return &dto.OptimizationResult{ScheduleID: scheduleID, Before: 40, After: 25}, nil
}

func sweepSchedules() *scheduleMemoryStore {
	return newScheduleMemoryStore(
		models.Schedule{ID: "sched-1", SemesterID: "sem-1"},
		models.Schedule{ID: "sched-2", SemesterID: "sem-1"},
		models.Schedule{ID: "sched-3", SemesterID: "sem-1", IsPublished: true},
	)
}

func TestScheduleSweeperQueuesUnpublished(t *testing.T) {
	queue := &enqueueRecorder{}
	sweeper := NewScheduleSweeper(sweepSchedules(), &optimizerStub{}, nil, ScheduleSweeperConfig{})
	sweeper.AttachQueue(queue)

	queued := sweeper.Sweep(context.Background())
	assert.Equal(t, 2, queued)
	require.Len(t, queue.jobs, 2)
	assert.Equal(t, "sched-1", queue.jobs[0].Key)
	assert.Equal(t, "sched-1", queue.jobs[0].Payload)
	assert.Equal(t, SweepJobType, queue.jobs[0].Type)
	assert.NotEmpty(t, queue.jobs[0].ID)
	assert.Equal(t, "sched-2", queue.jobs[1].Key)
}

func TestScheduleSweeperSkipsBusySchedules(t *testing.T) {
	queue := &enqueueRecorder{busy: map[string]bool{"sched-1": true}}
	sweeper := NewScheduleSweeper(sweepSchedules(), &optimizerStub{}, nil, ScheduleSweeperConfig{})
	sweeper.AttachQueue(queue)

	assert.Equal(t, 1, sweeper.Sweep(context.Background()))
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, "sched-2", queue.jobs[0].Key)
}

func TestScheduleSweeperHandle(t *testing.T) {
	optimizer := &optimizerStub{}
	sweeper := NewScheduleSweeper(sweepSchedules(), optimizer, nil, ScheduleSweeperConfig{MaxIterations: 50, Algorithm: models.AlgorithmSimulatedAnnealing})

	err := sweeper.Handle(context.Background(), jobs.Job{ID: "job-1", Key: "sched-1", Payload: "sched-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"sched-1"}, optimizer.scheduleIDs)
	assert.Equal(t, dto.OptimizeRequest{MaxIterations: 50, Algorithm: models.AlgorithmSimulatedAnnealing}, optimizer.requests[0])

	optimizer.err = errors.New("locked")
	assert.Error(t, sweeper.Handle(context.Background(), jobs.Job{ID: "job-2", Payload: "sched-2"}))
	assert.Error(t, sweeper.Handle(context.Background(), jobs.Job{ID: "job-3", Payload: 42}))
}

func TestScheduleSweeperStart(t *testing.T) {
	sweeper := NewScheduleSweeper(sweepSchedules(), &optimizerStub{}, nil, ScheduleSweeperConfig{Spec: "not a cron spec"})
	assert.Error(t, sweeper.Start(context.Background()), "start without queue")

	sweeper.AttachQueue(&enqueueRecorder{})
	assert.Error(t, sweeper.Start(context.Background()))

	valid := NewScheduleSweeper(sweepSchedules(), &optimizerStub{}, nil, ScheduleSweeperConfig{})
	valid.AttachQueue(&enqueueRecorder{})
	require.NoError(t, valid.Start(context.Background()))
	valid.Stop()
}

func TestScheduleSweeperWithQueue(t *testing.T) {
	optimizer := &optimizerStub{}
	sweeper := NewScheduleSweeper(sweepSchedules(), optimizer, nil, ScheduleSweeperConfig{})
	done := make(chan struct{}, 2)
	queue := jobs.NewQueue("schedule-sweep", func(ctx context.Context, job jobs.Job) error {
		defer func() { done <- struct{}{} }()
		return sweeper.Handle(ctx, job)
	}, jobs.QueueConfig{Workers: 1})
	sweeper.AttachQueue(queue)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue.Start(ctx)
	defer queue.Stop()

	assert.Equal(t, 2, sweeper.Sweep(ctx))
	<-done
	<-done
	assert.ElementsMatch(t, []string{"sched-1", "sched-2"}, optimizer.scheduleIDs)
}
