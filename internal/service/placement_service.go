package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/DPLnainar/placement-management-system-sub002/internal/models"
	"github.com/DPLnainar/placement-management-system-sub002/internal/repository"
	appErrors "github.com/DPLnainar/placement-management-system-sub002/pkg/errors"
)

const studentResource = "student"

type studentStore interface {
	GetByUserID(ctx context.Context, userID string) (*models.Student, error)
	ListByCollege(ctx context.Context, filter models.StudentFilter) ([]models.Student, error)
	Mutate(ctx context.Context, userID string, fn func(student *models.Student) error) (*models.Student, error)
}

type collegeInvalidator interface {
	InvalidateCollege(ctx context.Context, collegeID string)
}

// PlacementService guards the one-accepted-offer rule. Every write to a student's
// offers or placement runs under the student row lock.
type PlacementService struct {
	students studentStore
	notifier notifier
	audit    auditLogger
	cache    collegeInvalidator
	logger   *zap.Logger
	now      func() time.Time
}

// NewPlacementService constructs a PlacementService.
func NewPlacementService(students studentStore, notifier notifier, audit auditLogger, logger *zap.Logger) *PlacementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlacementService{
		students: students,
		notifier: notifier,
		audit:    audit,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// UseCache sets the cache whose eligibility summaries go stale when a student is placed.
func (s *PlacementService) UseCache(cache collegeInvalidator) {
	s.cache = cache
}

// CanApply reports whether the student may still apply to jobs.
func (s *PlacementService) CanApply(student *models.Student) bool {
	return student != nil && !student.Placed
}

// AcceptOffer accepts a pending offer, rejects the student's other pending offers
// and records the placement.
func (s *PlacementService) AcceptOffer(ctx context.Context, userID, offerID string, claims *models.JWTClaims) (*models.Student, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	student, err := s.students.Mutate(ctx, userID, func(student *models.Student) error {
		if err := authorizeStudentAccess(claims, student); err != nil {
			return err
		}
		if student.Placed {
			return appErrors.ErrAlreadyPlaced
		}
		return s.acceptLocked(student, offerID)
	})
	if err != nil {
		return nil, mapStudentError(err, "failed to accept offer")
	}
	s.placed(ctx, student)

	recordAudit(ctx, s.audit, s.logger, "placement-service", auditEntry{
		actor: claims, action: models.AuditActionOfferAccept, resource: studentResource, resourceID: student.ID,
		after: student.Placement,
	})
	return student, nil
}

// AddOffer appends a pending offer unless the student already holds a pending or
// accepted offer for the same job. It reports whether an offer was added.
func (s *PlacementService) AddOffer(ctx context.Context, userID string, offer models.Offer) (bool, error) {
	added := false
	_, err := s.students.Mutate(ctx, userID, func(student *models.Student) error {
		for _, existing := range student.Offers {
			if existing.JobID == offer.JobID &&
				(existing.Status == models.OfferStatusPending || existing.Status == models.OfferStatusAccepted) {
				return repository.ErrSkipWrite
			}
		}
		offer.ID = ""
		offer.Status = models.OfferStatusPending
		if offer.OfferDate.IsZero() {
			offer.OfferDate = s.now()
		}
		student.Offers = append(student.Offers, offer)
		added = true
		return nil
	})
	if err != nil {
		return false, mapStudentError(err, "failed to add offer")
	}
	return added, nil
}

// MarkPlaced records the student as placed at job. Repeating it for the same job is
// a no-op. A pending offer for the job is accepted the same way AcceptOffer does it.
func (s *PlacementService) MarkPlaced(ctx context.Context, userID string, job *models.Job) (*models.Student, error) {
	if job == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "job is required")
	}
	written := false
	student, err := s.students.Mutate(ctx, userID, func(student *models.Student) error {
		if student.Placed {
			if student.JobID != nil && *student.JobID == job.ID {
				return repository.ErrSkipWrite
			}
			return appErrors.ErrAlreadyPlaced
		}
		written = true
		for _, offer := range student.Offers {
			if offer.JobID == job.ID && offer.Status == models.OfferStatusPending {
				return s.acceptLocked(student, offer.ID)
			}
		}
		rejectPending(student, "")
		s.place(student, job.CompanyName, job.ID, job.Package())
		return nil
	})
	if err != nil {
		return nil, mapStudentError(err, "failed to mark student placed")
	}
	if written {
		s.placed(ctx, student)
	}
	return student, nil
}

// WithdrawOffer records an employer retracting a pending offer.
func (s *PlacementService) WithdrawOffer(ctx context.Context, userID, offerID string, claims *models.JWTClaims) (*models.Student, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !claims.Role.IsStaff() {
		return nil, appErrors.ErrForbidden
	}
	var company string
	student, err := s.students.Mutate(ctx, userID, func(student *models.Student) error {
		if err := authorizeStudentAccess(claims, student); err != nil {
			return err
		}
		offer, err := pendingOffer(student, offerID)
		if err != nil {
			return err
		}
		offer.Status = models.OfferStatusWithdrawn
		company = offer.CompanyName
		return nil
	})
	if err != nil {
		return nil, mapStudentError(err, "failed to withdraw offer")
	}

	recordAudit(ctx, s.audit, s.logger, "placement-service", auditEntry{
		actor: claims, action: models.AuditActionOfferWithdraw, resource: studentResource, resourceID: student.ID,
		after: map[string]string{"offerId": offerID},
	})
	if s.notifier != nil {
		s.notifier.Notify(ctx, models.Notification{
			UserID:  student.UserID,
			Kind:    models.NotificationOfferUpdate,
			Title:   "Offer withdrawn",
			Message: fmt.Sprintf("%s has withdrawn its offer.", company),
		})
	}
	return student, nil
}

// DeclineOffer records the student turning down a pending offer.
func (s *PlacementService) DeclineOffer(ctx context.Context, userID, offerID string, claims *models.JWTClaims) (*models.Student, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	student, err := s.students.Mutate(ctx, userID, func(student *models.Student) error {
		if err := authorizeStudentAccess(claims, student); err != nil {
			return err
		}
		offer, err := pendingOffer(student, offerID)
		if err != nil {
			return err
		}
		offer.Status = models.OfferStatusRejected
		return nil
	})
	if err != nil {
		return nil, mapStudentError(err, "failed to decline offer")
	}

	recordAudit(ctx, s.audit, s.logger, "placement-service", auditEntry{
		actor: claims, action: models.AuditActionOfferDecline, resource: studentResource, resourceID: student.ID,
		after: map[string]string{"offerId": offerID},
	})
	return student, nil
}

// PlacementCard returns the student's offers and placement.
func (s *PlacementService) PlacementCard(ctx context.Context, userID string) (*models.PlacementCard, error) {
	student, err := s.students.GetByUserID(ctx, userID)
	if err != nil {
		return nil, mapStudentError(err, "failed to load student")
	}
	return &models.PlacementCard{
		PlacementStatus: student.PlacementStatus,
		Placement:       student.Placement,
		Offers:          student.Offers,
		CanApply:        s.CanApply(student),
	}, nil
}

// acceptLocked must run inside a student Mutate callback.
func (s *PlacementService) acceptLocked(student *models.Student, offerID string) error {
	offer, err := pendingOffer(student, offerID)
	if err != nil {
		return err
	}
	offer.Status = models.OfferStatusAccepted
	rejectPending(student, offer.ID)
	s.place(student, offer.CompanyName, offer.JobID, offer.Package)
	return nil
}

func (s *PlacementService) place(student *models.Student, company, jobID string, pkg float64) {
	placedAt := s.now()
	student.Placement = models.Placement{Placed: true, CompanyName: &company, JobID: &jobID, Package: &pkg, PlacedAt: &placedAt}
	student.PlacementStatus = models.PlacementStatusPlaced
}

// placed drops the college's cached eligibility counts; a placed student fails the hard gate for every job.
func (s *PlacementService) placed(ctx context.Context, student *models.Student) {
	if s.cache != nil {
		s.cache.InvalidateCollege(ctx, student.CollegeID)
	}
}

// rejectPending closes every pending offer other than keepID.
func rejectPending(student *models.Student, keepID string) {
	for i := range student.Offers {
		offer := &student.Offers[i]
		if offer.ID != keepID && offer.Status == models.OfferStatusPending {
			offer.Status = models.OfferStatusRejected
		}
	}
}

func pendingOffer(student *models.Student, offerID string) (*models.Offer, error) {
	for i := range student.Offers {
		if student.Offers[i].ID != offerID {
			continue
		}
		if student.Offers[i].Status != models.OfferStatusPending {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("offer is %s, not pending", student.Offers[i].Status))
		}
		return &student.Offers[i], nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "offer not found")
}

// authorizeStudentAccess lets a student act on their own record and staff act on their college's students.
func authorizeStudentAccess(claims *models.JWTClaims, student *models.Student) error {
	if claims.Role == models.RoleStudent {
		if claims.UserID != student.UserID {
			return appErrors.ErrForbidden
		}
		return nil
	}
	if !sameCollege(claims, student.CollegeID) {
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return nil
}

func mapStudentError(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
