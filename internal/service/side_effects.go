package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/DPLnainar/placement-management-system-sub002/internal/models"
	"github.com/DPLnainar/placement-management-system-sub002/pkg/jobs"
	appErrors "github.com/DPLnainar/placement-management-system-sub002/pkg/errors"
)

const (
	effectAddOffer   = "add_offer"
	effectMarkPlaced = "mark_placed"
)

type placementGuard interface {
	AddOffer(ctx context.Context, userID string, offer models.Offer) (bool, error)
	MarkPlaced(ctx context.Context, userID string, job *models.Job) (*models.Student, error)
}

type jobLoader interface {
	Load(ctx context.Context, id string) (*models.Job, error)
}

type sideEffectTask struct {
	ApplicationID  string
	UserID         string
	JobID          string
	OfferLetterURL *string
}

// SideEffects runs the placement writes that follow an application status change.
// They happen after the status write has committed and never undo it: a failure is
// counted, logged and handed to the retry queue. Both writes are idempotent.
type SideEffects struct {
	guard   placementGuard
	jobs    jobLoader
	queue   taskQueue
	metrics *MetricsService
	logger  *zap.Logger
}

// NewSideEffects constructs the side-effect runner. Bind the retry queue with UseQueue.
func NewSideEffects(guard placementGuard, jobs jobLoader, metrics *MetricsService, logger *zap.Logger) *SideEffects {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SideEffects{guard: guard, jobs: jobs, metrics: metrics, logger: logger}
}

// UseQueue sets the retry queue, whose handler must be Handle.
func (s *SideEffects) UseQueue(queue taskQueue) {
	s.queue = queue
}

// OfferCreated appends a pending offer for the application's job to the student.
func (s *SideEffects) OfferCreated(ctx context.Context, app *models.Application) {
	s.run(ctx, jobs.Task{Kind: effectAddOffer, Payload: sideEffectTask{
		ApplicationID:  app.ID,
		UserID:         app.StudentID,
		JobID:          app.JobID,
		OfferLetterURL: app.SelectionDetails.OfferLetterURL,
	}})
}

// Placed marks the student placed at the application's job.
func (s *SideEffects) Placed(ctx context.Context, app *models.Application) {
	s.run(ctx, jobs.Task{Kind: effectMarkPlaced, Payload: sideEffectTask{
		ApplicationID: app.ID,
		UserID:        app.StudentID,
		JobID:         app.JobID,
	}})
}

func (s *SideEffects) run(ctx context.Context, task jobs.Task) {
	err := s.Handle(ctx, task)
	if err == nil {
		return
	}
	payload, _ := task.Payload.(sideEffectTask)
	s.metrics.SideEffectFailed(task.Kind)
	s.logger.Warn("side effect failed",
		zap.String("effect", task.Kind),
		zap.String("application_id", payload.ApplicationID),
		zap.String("user_id", payload.UserID),
		zap.Error(err),
	)
	if s.queue == nil {
		return
	}
	task.Attempt = 1
	if err := s.queue.TryEnqueue(task); err != nil {
		s.logger.Error("side effect retry not queued", zap.String("effect", task.Kind), zap.String("application_id", payload.ApplicationID), zap.Error(err))
	}
}

// Handle applies one side effect. Business rejections (for example a student placed
// at another company) are logged and not retried.
func (s *SideEffects) Handle(ctx context.Context, task jobs.Task) error {
	payload, ok := task.Payload.(sideEffectTask)
	if !ok {
		return fmt.Errorf("unexpected side effect payload %T", task.Payload)
	}
	job, err := s.jobs.Load(ctx, payload.JobID)
	if err != nil {
		return s.settle(task.Kind, payload, err)
	}

	switch task.Kind {
	case effectAddOffer:
		added, err := s.guard.AddOffer(ctx, payload.UserID, models.Offer{
			JobID:          job.ID,
			CompanyName:    job.CompanyName,
			Package:        job.Package(),
			OfferLetterURL: payload.OfferLetterURL,
		})
		if err != nil {
			return s.settle(task.Kind, payload, err)
		}
		if added {
			s.logger.Info("offer recorded", zap.String("user_id", payload.UserID), zap.String("job_id", job.ID))
		}
		return nil
	case effectMarkPlaced:
		if _, err := s.guard.MarkPlaced(ctx, payload.UserID, job); err != nil {
			return s.settle(task.Kind, payload, err)
		}
		return nil
	default:
		return fmt.Errorf("unknown side effect %q", task.Kind)
	}
}

func (s *SideEffects) settle(effect string, payload sideEffectTask, err error) error {
	if appErrors.IsBusiness(err) {
		s.logger.Info("side effect skipped", zap.String("effect", effect), zap.String("application_id", payload.ApplicationID), zap.Error(err))
		return nil
	}
	return err
}

// OnExhausted is the retry queue's give-up hook.
func (s *SideEffects) OnExhausted(task jobs.Task, err error) {
	payload, _ := task.Payload.(sideEffectTask)
	s.logger.Error("side effect abandoned after retries",
		zap.String("effect", task.Kind),
		zap.String("application_id", payload.ApplicationID),
		zap.String("user_id", payload.UserID),
		zap.Int("attempts", task.Attempt),
		zap.Error(err),
	)
}
