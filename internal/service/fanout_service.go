package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/DPLnainar/placement-management-system-sub002/internal/models"
	"github.com/DPLnainar/placement-management-system-sub002/pkg/jobs"
)

const taskKindFanout = "job_fanout"

type rosterReader interface {
	ListByCollege(ctx context.Context, filter models.StudentFilter) ([]models.Student, error)
}

// FanoutService tells every eligible student about a newly active job. It runs after
// the job write and never blocks or fails the request that triggered it.
type FanoutService struct {
	jobs     jobLoader
	students rosterReader
	notifier notifier
	queue    taskQueue
	logger   *zap.Logger
}

// NewFanoutService constructs a FanoutService. Bind the worker queue with UseQueue.
func NewFanoutService(jobs jobLoader, students rosterReader, notifier notifier, logger *zap.Logger) *FanoutService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FanoutService{jobs: jobs, students: students, notifier: notifier, logger: logger}
}

// UseQueue sets the worker queue, whose handler must be Handle.
func (s *FanoutService) UseQueue(queue taskQueue) {
	s.queue = queue
}

// Schedule queues a fan-out for jobID. A full queue drops the fan-out with a warning.
func (s *FanoutService) Schedule(jobID string) {
	task := jobs.Task{Kind: taskKindFanout, Payload: jobID}
	if s.queue == nil {
		if err := s.Handle(context.Background(), task); err != nil {
			s.logger.Warn("job fan-out failed", zap.String("job_id", jobID), zap.Error(err))
		}
		return
	}
	if err := s.queue.TryEnqueue(task); err != nil {
		s.logger.Warn("job fan-out dropped", zap.String("job_id", jobID), zap.Error(err))
	}
}

// Handle notifies the eligible, verified and unplaced students of the job's college.
// Jobs that stopped accepting applications before the task ran are skipped.
func (s *FanoutService) Handle(ctx context.Context, task jobs.Task) error {
	jobID, ok := task.Payload.(string)
	if !ok {
		return fmt.Errorf("unexpected fan-out payload %T", task.Payload)
	}
	job, err := s.jobs.Load(ctx, jobID)
	if err != nil {
		return err
	}
	if !job.AcceptingApplications() {
		s.logger.Info("job fan-out skipped", zap.String("job_id", jobID), zap.String("status", string(job.Status)))
		return nil
	}

	students, err := s.students.ListByCollege(ctx, models.StudentFilter{CollegeID: job.CollegeID})
	if err != nil {
		return fmt.Errorf("list students: %w", err)
	}

	notified := 0
	for i := range students {
		student := &students[i]
		if student.VerificationStatus != models.VerificationVerified || student.Placed {
			continue
		}
		if !Evaluate(student, job).Eligible {
			continue
		}
		s.notifier.Notify(ctx, models.Notification{
			UserID:  student.UserID,
			Kind:    models.NotificationJobPosted,
			Title:   fmt.Sprintf("New job: %s", job.Title),
			Message: fmt.Sprintf("%s is hiring. Apply before %s.", job.CompanyName, job.Deadline.Format("02 Jan 2006")),
			JobID:   &job.ID,
		})
		notified++
	}
	s.logger.Info("job fan-out complete", zap.String("job_id", jobID), zap.Int("roster", len(students)), zap.Int("notified", notified))
	return nil
}
