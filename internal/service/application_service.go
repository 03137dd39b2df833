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

const applicationResource = "application"

type applicationStore interface {
	Create(ctx context.Context, app *models.Application) error
	GetByID(ctx context.Context, id string) (*models.Application, error)
	FindByJobAndStudent(ctx context.Context, jobID, studentID string) (*models.Application, error)
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, int, error)
	Mutate(ctx context.Context, id string, fn func(app *models.Application) error) (*models.Application, error)
}

type studentReader interface {
	GetByUserID(ctx context.Context, userID string) (*models.Student, error)
}

type placementChecker interface {
	CanApply(student *models.Student) bool
}

type statusSideEffects interface {
	OfferCreated(ctx context.Context, app *models.Application)
	Placed(ctx context.Context, app *models.Application)
}

type summaryInvalidator interface {
	InvalidateJob(ctx context.Context, collegeID, jobID string)
}

// ApplicationService runs the application workflow: apply, status transitions,
// interview rounds, rejection and withdrawal.
type ApplicationService struct {
	apps      applicationStore
	jobs      jobLoader
	students  studentReader
	guard     placementChecker
	effects   statusSideEffects
	notifier  notifier
	cache     summaryInvalidator
	audit     auditLogger
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewApplicationService constructs an ApplicationService.
func NewApplicationService(
	apps applicationStore,
	jobs jobLoader,
	students studentReader,
	guard placementChecker,
	effects statusSideEffects,
	notifier notifier,
	cache summaryInvalidator,
	audit auditLogger,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *ApplicationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApplicationService{
		apps:      apps,
		jobs:      jobs,
		students:  students,
		guard:     guard,
		effects:   effects,
		notifier:  notifier,
		cache:     cache,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Apply creates an application for the calling student. Checks run in a fixed
// order and stop at the first failure: job open, profile verified, not already
// applied, not placed, eligible.
func (s *ApplicationService) Apply(ctx context.Context, req dto.ApplyRequest, claims *models.JWTClaims) (*models.Application, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if claims.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can apply")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid application payload")
	}

	job, err := s.jobs.Load(ctx, req.JobID)
	if err != nil {
		return nil, s.refuse(err)
	}
	if job.CollegeID != claims.CollegeID {
		return nil, s.refuse(appErrors.Clone(appErrors.ErrNotFound, "job not found"))
	}
	if !job.AcceptingApplications() {
		return nil, s.refuse(appErrors.Clone(appErrors.ErrJobNotActive, fmt.Sprintf("job is %s and not accepting applications", job.Status)))
	}

	student, err := s.students.GetByUserID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.refuse(appErrors.Clone(appErrors.ErrNotFound, "student profile not found"))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	switch student.VerificationStatus {
	case models.VerificationVerified:
	case models.VerificationRejected:
		return nil, s.refuse(appErrors.Clone(appErrors.ErrProfileNotVerified, "profile verification was rejected; update your profile and resubmit"))
	default:
		return nil, s.refuse(appErrors.Clone(appErrors.ErrProfileNotVerified, "profile verification is pending"))
	}

	if _, err := s.apps.FindByJobAndStudent(ctx, job.ID, claims.UserID); err == nil {
		return nil, s.refuse(appErrors.ErrDuplicateApplication)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing application")
	}

	if !s.guard.CanApply(student) {
		return nil, s.refuse(appErrors.ErrAlreadyPlaced)
	}

	result := Evaluate(student, job)
	if !result.Eligible {
		return nil, s.refuse(appErrors.WithReasons(appErrors.ErrNotEligible, result.Reasons))
	}

	now := s.now()
	app := &models.Application{
		JobID:        job.ID,
		StudentID:    claims.UserID,
		CollegeID:    job.CollegeID,
		Status:       models.ApplicationPending,
		CurrentRound: models.RoundApplication,
		Rounds:       models.Rounds{},
		EligibilityCheck: models.EligibilitySnapshot{
			IsEligible:        true,
			EligibilityIssues: []string{},
			CheckedDate:       now,
		},
		CoverLetter:     req.CoverLetter,
		ResumeSubmitted: req.ResumeSubmitted,
		AppliedAt:       now,
	}
	if err := s.apps.Create(ctx, app); err != nil {
		if errors.Is(err, repository.ErrDuplicateApplication) {
			return nil, s.refuse(appErrors.ErrDuplicateApplication)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create application")
	}

	s.metrics.ApplicationCreated(app.CollegeID)
	if s.cache != nil {
		s.cache.InvalidateJob(ctx, job.CollegeID, job.ID)
	}
	recordAudit(ctx, s.audit, s.logger, "application-service", auditEntry{
		actor: claims, action: models.AuditActionApplicationCreate, resource: applicationResource, resourceID: app.ID, after: app,
	})
	if s.notifier != nil {
		s.notifier.Notify(ctx, models.Notification{
			UserID:        claims.UserID,
			Kind:          models.NotificationApplicationSubmitted,
			Title:         "Application submitted",
			Message:       fmt.Sprintf("You applied to %s at %s.", job.Title, job.CompanyName),
			JobID:         &app.JobID,
			ApplicationID: &app.ID,
		})
		s.notifier.SendEmail(ctx, models.Email{
			To:       student.Email,
			Subject:  fmt.Sprintf("Application received: %s", job.Title),
			Template: "application_submitted",
			Data:     map[string]string{"name": student.FullName, "job": job.Title, "company": job.CompanyName},
		})
	}
	return app, nil
}

// refuse counts a business rejection of an apply attempt.
func (s *ApplicationService) refuse(err error) error {
	if appErr := appErrors.FromError(err); appErr != nil && appErrors.IsBusiness(appErr) {
		s.metrics.ApplyRejected(appErr.Code)
		s.logger.Info("application refused", zap.String("code", appErr.Code), zap.Strings("reasons", appErr.Reasons))
	}
	return err
}

// UpdateStatus moves an application to any known status. Entering offered records a
// pending offer; entering offer_accepted or joined places the student. Those writes
// follow the status commit and never roll it back.
func (s *ApplicationService) UpdateStatus(ctx context.Context, id string, req dto.UpdateApplicationStatusRequest, claims *models.JWTClaims) (*models.Application, error) {
	if err := requireStaff(claims); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	status, err := models.ParseApplicationStatus(req.Status)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unknown application status")
	}
	if req.Round != nil {
		if err := s.validator.Struct(req.Round); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid round payload")
		}
	}

	var previous models.ApplicationStatus
	app, err := s.apps.Mutate(ctx, id, func(app *models.Application) error {
		if !sameCollege(claims, app.CollegeID) {
			return appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		previous = app.Status
		if previous == status && req.Round == nil && req.SelectionDetails == nil {
			return repository.ErrSkipWrite
		}
		app.Status = status
		if req.Round != nil {
			s.appendRound(app, *req.Round)
		}
		if req.SelectionDetails != nil {
			mergeSelection(&app.SelectionDetails, *req.SelectionDetails)
		}
		app.LastUpdatedBy = &claims.UserID
		return nil
	})
	if err != nil {
		return nil, mapApplicationError(err, "failed to update application status")
	}
	if previous == status {
		return app, nil
	}

	s.metrics.StatusTransition(string(status))
	if s.effects != nil {
		if status == models.ApplicationOffered {
			s.effects.OfferCreated(ctx, app)
		}
		if status.Places() && !previous.Places() {
			s.effects.Placed(ctx, app)
		}
	}
	recordAudit(ctx, s.audit, s.logger, "application-service", auditEntry{
		actor: claims, action: models.AuditActionApplicationStatus, resource: applicationResource, resourceID: app.ID,
		before: map[string]string{"status": string(previous)}, after: map[string]string{"status": string(status)},
	})
	s.notifyStudent(ctx, app, models.NotificationStatusUpdate, "Application status updated",
		fmt.Sprintf("Your application is now %s.", strings.ReplaceAll(string(status), "_", " ")))
	return app, nil
}

// AddRound schedules an interview round and advances currentRound for staged round types.
func (s *ApplicationService) AddRound(ctx context.Context, id string, req dto.AddRoundRequest, claims *models.JWTClaims) (*models.Application, error) {
	if err := requireStaff(claims); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid round payload")
	}
	app, err := s.apps.Mutate(ctx, id, func(app *models.Application) error {
		if !sameCollege(claims, app.CollegeID) {
			return appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		if app.Status.Final() {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("application is %s", app.Status))
		}
		s.appendRound(app, req)
		app.LastUpdatedBy = &claims.UserID
		return nil
	})
	if err != nil {
		return nil, mapApplicationError(err, "failed to add round")
	}
	return app, nil
}

// UpdateRoundStatus records a round's outcome. The application status is not touched.
func (s *ApplicationService) UpdateRoundStatus(ctx context.Context, id string, index int, req dto.UpdateRoundRequest, claims *models.JWTClaims) (*models.Application, error) {
	if err := requireStaff(claims); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid round payload")
	}
	now := s.now()
	app, err := s.apps.Mutate(ctx, id, func(app *models.Application) error {
		if !sameCollege(claims, app.CollegeID) {
			return appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		if index < 0 || index >= len(app.Rounds) {
			return appErrors.Clone(appErrors.ErrNotFound, "round not found")
		}
		round := &app.Rounds[index]
		round.Status = req.Status
		if req.Score != nil {
			round.Score = req.Score
		}
		if req.Feedback != "" {
			round.Feedback = req.Feedback
		}
		if req.Status != models.RoundScheduled && round.CompletedDate == nil {
			round.CompletedDate = &now
		}
		app.LastUpdatedBy = &claims.UserID
		return nil
	})
	if err != nil {
		return nil, mapApplicationError(err, "failed to update round")
	}
	return app, nil
}

// Reject closes an application with a reason.
func (s *ApplicationService) Reject(ctx context.Context, id string, req dto.RejectApplicationRequest, claims *models.JWTClaims) (*models.Application, error) {
	if err := requireStaff(claims); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "rejection reason is required")
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
	}
	var previous models.ApplicationStatus
	app, err := s.apps.Mutate(ctx, id, func(app *models.Application) error {
		if !sameCollege(claims, app.CollegeID) {
			return appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		if app.Status.Places() {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "cannot reject an application whose offer was accepted")
		}
		previous = app.Status
		app.Status = models.ApplicationRejected
		app.RejectionReason = &reason
		app.LastUpdatedBy = &claims.UserID
		return nil
	})
	if err != nil {
		return nil, mapApplicationError(err, "failed to reject application")
	}

	s.metrics.StatusTransition(string(models.ApplicationRejected))
	recordAudit(ctx, s.audit, s.logger, "application-service", auditEntry{
		actor: claims, action: models.AuditActionApplicationReject, resource: applicationResource, resourceID: app.ID,
		before: map[string]string{"status": string(previous)}, after: map[string]string{"status": string(app.Status), "reason": reason},
	})
	s.notifyStudent(ctx, app, models.NotificationApplicationRejected, "Application update", reason)
	return app, nil
}

// Withdraw lets a student pull their own application before accepting an offer.
func (s *ApplicationService) Withdraw(ctx context.Context, id string, claims *models.JWTClaims) (*models.Application, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if claims.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the applicant can withdraw")
	}
	var previous models.ApplicationStatus
	app, err := s.apps.Mutate(ctx, id, func(app *models.Application) error {
		if app.StudentID != claims.UserID {
			return appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		previous = app.Status
		switch {
		case app.Status == models.ApplicationWithdrawn:
			return repository.ErrSkipWrite
		case app.Status.Places():
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "cannot withdraw after accepting the offer")
		}
		app.Status = models.ApplicationWithdrawn
		app.LastUpdatedBy = &claims.UserID
		return nil
	})
	if err != nil {
		return nil, mapApplicationError(err, "failed to withdraw application")
	}
	if previous == models.ApplicationWithdrawn {
		return app, nil
	}

	s.metrics.StatusTransition(string(models.ApplicationWithdrawn))
	recordAudit(ctx, s.audit, s.logger, "application-service", auditEntry{
		actor: claims, action: models.AuditActionApplicationWithdraw, resource: applicationResource, resourceID: app.ID,
		before: map[string]string{"status": string(previous)}, after: map[string]string{"status": string(app.Status)},
	})
	return app, nil
}

// Get returns an application the caller may see.
func (s *ApplicationService) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.Application, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	app, err := s.apps.GetByID(ctx, id)
	if err != nil {
		return nil, mapApplicationError(err, "failed to load application")
	}
	if !canSeeApplication(claims, app) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
	}
	return app, nil
}

// List returns the student's own applications, or the college's for staff.
func (s *ApplicationService) List(ctx context.Context, query dto.ApplicationListQuery, claims *models.JWTClaims) ([]models.Application, *models.Pagination, error) {
	if claims == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	filter := models.ApplicationFilter{JobID: query.JobID, Page: query.Page, PageSize: query.PageSize}
	if claims.Role == models.RoleStudent {
		filter.StudentID = claims.UserID
	} else if claims.Role != models.RoleSuperAdmin {
		filter.CollegeID = claims.CollegeID
	}
	if query.Status != "" {
		for _, raw := range strings.Split(query.Status, ",") {
			status, err := models.ParseApplicationStatus(raw)
			if err != nil {
				return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unknown application status")
			}
			filter.Status = append(filter.Status, status)
		}
	}
	apps, total, err := s.apps.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications")
	}
	page, size := models.Normalize(query.Page, query.PageSize)
	return apps, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

func (s *ApplicationService) appendRound(app *models.Application, req dto.AddRoundRequest) {
	app.Rounds = append(app.Rounds, models.Round{
		RoundName:       req.RoundName,
		RoundType:       req.RoundType,
		ScheduledDate:   req.ScheduledDate,
		Status:          models.RoundScheduled,
		InterviewerName: req.InterviewerName,
	})
	if stage, ok := req.RoundType.Stage(); ok {
		app.CurrentRound = stage
	}
}

func (s *ApplicationService) notifyStudent(ctx context.Context, app *models.Application, kind models.NotificationKind, title, message string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, models.Notification{
		UserID:        app.StudentID,
		Kind:          kind,
		Title:         title,
		Message:       message,
		JobID:         &app.JobID,
		ApplicationID: &app.ID,
	})
}

func mergeSelection(dst *models.SelectionDetails, src models.SelectionDetails) {
	if src.OfferLetterURL != nil {
		dst.OfferLetterURL = src.OfferLetterURL
	}
	if src.OfferedCTC != nil {
		dst.OfferedCTC = src.OfferedCTC
	}
	if src.JoiningDate != nil {
		dst.JoiningDate = src.JoiningDate
	}
	if src.Designation != "" {
		dst.Designation = src.Designation
	}
}

func canSeeApplication(claims *models.JWTClaims, app *models.Application) bool {
	if claims.Role == models.RoleStudent {
		return app.StudentID == claims.UserID
	}
	return sameCollege(claims, app.CollegeID)
}

func requireStaff(claims *models.JWTClaims) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	if !claims.Role.IsStaff() {
		return appErrors.ErrForbidden
	}
	return nil
}

func mapApplicationError(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "application not found")
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
