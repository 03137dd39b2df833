package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/DPLnainar/placement-management-system-sub002/internal/dto"
	"github.com/DPLnainar/placement-management-system-sub002/internal/models"
	"github.com/DPLnainar/placement-management-system-sub002/internal/repository"
	appErrors "github.com/DPLnainar/placement-management-system-sub002/pkg/errors"
)

const (
	jobResource        = "job"
	defaultClosingDays = 3
)

type jobStore interface {
	Create(ctx context.Context, job *models.Job) error
	GetByID(ctx context.Context, id string) (*models.Job, error)
	List(ctx context.Context, filter models.JobFilter) ([]models.Job, int, error)
	ListOpen(ctx context.Context, collegeID string) ([]models.Job, error)
	ListClosingBetween(ctx context.Context, collegeID string, from, until time.Time) ([]models.Job, error)
	CloseExpired(ctx context.Context, scope repository.ExpiryScope, now time.Time) (int64, error)
	Mutate(ctx context.Context, id string, fn func(job *models.Job) error) (*models.Job, error)
}

// fanoutScheduler queues the eligible-student notification for a job that just opened.
type fanoutScheduler interface {
	Schedule(jobID string)
}

var jobTransitions = map[models.JobStatus][]models.JobStatus{
	models.JobStatusDraft:    {models.JobStatusActive, models.JobStatusCancelled},
	models.JobStatusActive:   {models.JobStatusInactive, models.JobStatusClosed, models.JobStatusCancelled},
	models.JobStatusInactive: {models.JobStatusActive, models.JobStatusClosed, models.JobStatusCancelled},
	models.JobStatusClosed:   {models.JobStatusCancelled},
}

func canMoveJob(from, to models.JobStatus) bool {
	for _, allowed := range jobTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// JobServiceConfig tunes the job lifecycle.
type JobServiceConfig struct {
	ClosingSoonDays int
}

// JobService owns the job lifecycle: posting, status transitions, deadline
// extension and lazy deadline expiry.
type JobService struct {
	repo      jobStore
	fanout    fanoutScheduler
	audit     auditLogger
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       JobServiceConfig
	now       func() time.Time
}

// NewJobService constructs a JobService.
func NewJobService(repo jobStore, fanout fanoutScheduler, audit auditLogger, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg JobServiceConfig) *JobService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ClosingSoonDays <= 0 {
		cfg.ClosingSoonDays = defaultClosingDays
	}
	return &JobService{
		repo:      repo,
		fanout:    fanout,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// UseFanout sets the scheduler that announces newly opened jobs. The fan-out reads
// jobs through this service, so it is wired after construction.
func (s *JobService) UseFanout(fanout fanoutScheduler) {
	s.fanout = fanout
}

// Expire closes every active job in scope whose deadline has passed. It is safe
// to call concurrently; jobs already closed are not touched again.
func (s *JobService) Expire(ctx context.Context, scope repository.ExpiryScope) error {
	closed, err := s.repo.CloseExpired(ctx, scope, s.now())
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to expire jobs")
	}
	if closed > 0 {
		s.metrics.JobsExpired(closed)
		s.logger.Info("jobs closed by deadline", zap.String("college_id", scope.CollegeID), zap.String("job_id", scope.JobID), zap.Int64("count", closed))
	}
	return nil
}

// Load returns a job after applying lazy expiry to it. It performs no access check.
func (s *JobService) Load(ctx context.Context, id string) (*models.Job, error) {
	if err := s.Expire(ctx, repository.ExpiryScope{JobID: id}); err != nil {
		return nil, err
	}
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load job")
	}
	return job, nil
}

// OpenJobs lists the college's active jobs after lazy expiry.
func (s *JobService) OpenJobs(ctx context.Context, collegeID string) ([]models.Job, error) {
	if err := s.Expire(ctx, repository.ExpiryScope{CollegeID: collegeID}); err != nil {
		return nil, err
	}
	jobs, err := s.repo.ListOpen(ctx, collegeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list open jobs")
	}
	return jobs, nil
}

// Create posts a job for the caller's college.
func (s *JobService) Create(ctx context.Context, req dto.CreateJobRequest, claims *models.JWTClaims) (*models.Job, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid job payload")
	}
	if !req.Deadline.After(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "deadline must be in the future")
	}
	criteria := req.Eligibility
	if criteria.Type == "" {
		criteria.Type = models.EligibilityCommon
	}
	if criteria.Type == models.EligibilityDepartmentWise && len(criteria.DepartmentWise) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "department-wise eligibility needs at least one department")
	}
	status := req.Status
	if status == "" {
		status = models.JobStatusActive
	}

	job := &models.Job{
		CollegeID:   claims.CollegeID,
		Title:       strings.TrimSpace(req.Title),
		CompanyName: strings.TrimSpace(req.CompanyName),
		Description: req.Description,
		Location:    req.Location,
		JobType:     req.JobType,
		CTC:         req.CTC,
		Salary:      req.Salary,
		Skills:      req.Skills,
		Deadline:    req.Deadline.UTC(),
		Status:      status,
		IsActive:    true,
		Eligibility: criteria,
		PostedBy:    claims.UserID,
	}
	if job.JobType == "" {
		job.JobType = "full-time"
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create job")
	}

	recordAudit(ctx, s.audit, s.logger, "job-service", auditEntry{
		actor: claims, action: models.AuditActionJobCreate, resource: jobResource, resourceID: job.ID, after: job,
	})
	if job.Status == models.JobStatusActive {
		s.scheduleFanout(job.ID)
	}
	return job, nil
}

// Get returns a job visible to the caller.
func (s *JobService) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.Job, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	job, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sameCollege(claims, job.CollegeID) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "job not found")
	}
	return job, nil
}

// List returns the caller's college jobs. Students only see active postings; staff
// see everything except closed and cancelled jobs unless IncludeExpired is set.
func (s *JobService) List(ctx context.Context, query dto.JobListQuery, claims *models.JWTClaims) ([]models.Job, *models.Pagination, error) {
	if claims == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	if err := s.Expire(ctx, repository.ExpiryScope{CollegeID: claims.CollegeID}); err != nil {
		return nil, nil, err
	}

	filter := models.JobFilter{
		CollegeID: claims.CollegeID,
		JobType:   query.JobType,
		Search:    strings.TrimSpace(query.Search),
		Page:      query.Page,
		PageSize:  query.PageSize,
	}
	switch {
	case claims.Role == models.RoleStudent:
		filter.Status = []models.JobStatus{models.JobStatusActive}
	case query.Status != "":
		for _, raw := range strings.Split(query.Status, ",") {
			status := models.JobStatus(strings.ToLower(strings.TrimSpace(raw)))
			if !status.Valid() {
				return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown job status %q", raw))
			}
			filter.Status = append(filter.Status, status)
		}
	case !query.IncludeExpired:
		filter.Status = []models.JobStatus{models.JobStatusDraft, models.JobStatusActive, models.JobStatusInactive}
	}

	jobs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list jobs")
	}
	page, size := models.Normalize(query.Page, query.PageSize)
	return jobs, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// ClosingSoon lists active jobs whose deadline falls within the next days days.
func (s *JobService) ClosingSoon(ctx context.Context, days int, claims *models.JWTClaims) ([]models.Job, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if days <= 0 {
		days = s.cfg.ClosingSoonDays
	}
	if err := s.Expire(ctx, repository.ExpiryScope{CollegeID: claims.CollegeID}); err != nil {
		return nil, err
	}
	now := s.now()
	jobs, err := s.repo.ListClosingBetween(ctx, claims.CollegeID, now, now.Add(time.Duration(days)*24*time.Hour))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list closing jobs")
	}
	return jobs, nil
}

// ChangeStatus moves a job to target. Moving a job to the status it already has is a no-op.
func (s *JobService) ChangeStatus(ctx context.Context, id string, target models.JobStatus, claims *models.JWTClaims) (*models.Job, error) {
	job, _, err := s.changeStatus(ctx, id, target, claims)
	return job, err
}

// BulkChangeStatus applies the same transition to every job and returns how many changed.
// Jobs the transition rules refuse are skipped.
func (s *JobService) BulkChangeStatus(ctx context.Context, req dto.BulkJobStatusRequest, claims *models.JWTClaims) (int, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk status payload")
	}
	modified := 0
	for _, id := range req.JobIDs {
		_, changed, err := s.changeStatus(ctx, id, req.Status, claims)
		if err != nil {
			if appErrors.IsBusiness(err) {
				s.logger.Info("bulk status change skipped job", zap.String("job_id", id), zap.Error(err))
				continue
			}
			return modified, err
		}
		if changed {
			modified++
		}
	}
	return modified, nil
}

func (s *JobService) changeStatus(ctx context.Context, id string, target models.JobStatus, claims *models.JWTClaims) (*models.Job, bool, error) {
	if claims == nil {
		return nil, false, appErrors.ErrUnauthorized
	}
	if !target.Valid() {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown job status %q", target))
	}
	if err := s.Expire(ctx, repository.ExpiryScope{JobID: id}); err != nil {
		return nil, false, err
	}

	now := s.now()
	var previous models.JobStatus
	changed := false
	job, err := s.repo.Mutate(ctx, id, func(job *models.Job) error {
		if !sameCollege(claims, job.CollegeID) {
			return appErrors.Clone(appErrors.ErrNotFound, "job not found")
		}
		previous = job.Status
		if job.Status == target {
			return repository.ErrSkipWrite
		}
		if !canMoveJob(job.Status, target) {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("cannot move job from %s to %s", job.Status, target))
		}
		if target == models.JobStatusActive && !job.Deadline.After(now) {
			return appErrors.Clone(appErrors.ErrValidation, "cannot activate a job whose deadline has passed; extend the deadline instead")
		}

		job.Status = target
		switch target {
		case models.JobStatusClosed:
			job.ClosedReason = models.ClosedReasonManual
		case models.JobStatusActive:
			job.ClosedReason = models.ClosedReasonNone
			job.IsActive = true
		case models.JobStatusInactive, models.JobStatusCancelled:
			job.IsActive = false
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, false, s.mapMutateError(err, "failed to update job status")
	}

	if changed {
		recordAudit(ctx, s.audit, s.logger, "job-service", auditEntry{
			actor: claims, action: models.AuditActionJobStatusChange, resource: jobResource, resourceID: job.ID,
			before: map[string]string{"status": string(previous)}, after: map[string]string{"status": string(job.Status)},
		})
		if job.Status == models.JobStatusActive {
			s.scheduleFanout(job.ID)
		}
	}
	return job, changed, nil
}

// ExtendDeadline moves the deadline into the future. The first extension preserves
// the original deadline, and a job closed only by its deadline reopens.
func (s *JobService) ExtendDeadline(ctx context.Context, id string, req dto.ExtendDeadlineRequest, claims *models.JWTClaims) (*models.Job, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid deadline payload")
	}
	newDeadline := req.Deadline.UTC()
	if !newDeadline.After(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "new deadline must be in the future")
	}

	var previous time.Time
	reopened := false
	job, err := s.repo.Mutate(ctx, id, func(job *models.Job) error {
		if !sameCollege(claims, job.CollegeID) {
			return appErrors.Clone(appErrors.ErrNotFound, "job not found")
		}
		if job.Status == models.JobStatusCancelled {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "cancelled jobs cannot be extended")
		}
		previous = job.Deadline
		if job.OriginalDeadline == nil {
			original := job.Deadline
			job.OriginalDeadline = &original
		}
		job.Deadline = newDeadline
		job.DeadlineExtended = true
		if job.Status == models.JobStatusClosed && job.ClosedReason == models.ClosedReasonDeadline {
			job.Status = models.JobStatusActive
			job.ClosedReason = models.ClosedReasonNone
			reopened = true
		}
		return nil
	})
	if err != nil {
		return nil, s.mapMutateError(err, "failed to extend deadline")
	}

	recordAudit(ctx, s.audit, s.logger, "job-service", auditEntry{
		actor: claims, action: models.AuditActionJobDeadlineExtend, resource: jobResource, resourceID: job.ID,
		before: map[string]interface{}{"deadline": previous}, after: map[string]interface{}{"deadline": job.Deadline, "reopened": reopened},
	})
	if reopened && job.IsActive {
		s.scheduleFanout(job.ID)
	}
	return job, nil
}

func (s *JobService) scheduleFanout(jobID string) {
	if s.fanout == nil {
		return
	}
	s.fanout.Schedule(jobID)
}

func (s *JobService) mapMutateError(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "job not found")
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
