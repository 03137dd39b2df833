package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/DPLnainar/placement-management-system-sub002/internal/models"
)

const studentColumns = `id, user_id, college_id, full_name, email, department, tenth_percent, twelfth_percent, cgpa,
       graduation_cgpa, current_backlog_count, semester_records, arrear_history, verification_status,
       verification_rejection_reason, placement_status, placed, placement_company, placement_job_id,
       placement_package, placed_at, version, created_at, updated_at`

const offerColumns = `id, student_id, job_id, company_name, package, offer_date, offer_letter_url, status, updated_at`

// StudentRepository reads student profiles and owns the locked offer/placement write path.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// GetByUserID loads a student and their offers.
func (r *StudentRepository) GetByUserID(ctx context.Context, userID string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE user_id = $1", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, userID); err != nil {
		return nil, err
	}
	offers, err := r.listOffers(ctx, r.db, student.ID)
	if err != nil {
		return nil, err
	}
	student.Offers = offers
	return &student, nil
}

// GetByID loads a student by profile id.
func (r *StudentRepository) GetByID(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE id = $1", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	offers, err := r.listOffers(ctx, r.db, student.ID)
	if err != nil {
		return nil, err
	}
	student.Offers = offers
	return &student, nil
}

// ListByCollege returns the roster without offers, ordered by name.
func (r *StudentRepository) ListByCollege(ctx context.Context, filter models.StudentFilter) ([]models.Student, error) {
	args := []interface{}{filter.CollegeID}
	conditions := []string{"college_id = $1"}
	if filter.Department != "" {
		args = append(args, strings.TrimSpace(filter.Department))
		conditions = append(conditions, fmt.Sprintf("LOWER(department) = LOWER($%d)", len(args)))
	}
	if len(filter.UserIDs) > 0 {
		args = append(args, pq.Array(filter.UserIDs))
		conditions = append(conditions, fmt.Sprintf("user_id = ANY($%d)", len(args)))
	}
	query := fmt.Sprintf("SELECT %s FROM students WHERE %s ORDER BY full_name ASC", studentColumns, strings.Join(conditions, " AND "))

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// Mutate runs fn against the student identified by userID while holding a row lock, then
// persists offer and placement changes and bumps the version in the same transaction.
// New offers (unknown ids) are inserted; known offers are updated when their status changed.
// fn may return ErrSkipWrite to release the lock without writing.
func (r *StudentRepository) Mutate(ctx context.Context, userID string, fn func(student *models.Student) error) (student *models.Student, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin student transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current models.Student
	query := fmt.Sprintf("SELECT %s FROM students WHERE user_id = $1 FOR UPDATE", studentColumns)
	if err = tx.GetContext(ctx, &current, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock student: %w", err)
	}
	if current.Offers, err = r.listOffers(ctx, tx, current.ID); err != nil {
		return nil, err
	}

	known := make(map[string]models.OfferStatus, len(current.Offers))
	for _, offer := range current.Offers {
		known[offer.ID] = offer.Status
	}

	if err = fn(&current); err != nil {
		if errors.Is(err, ErrSkipWrite) {
			_ = tx.Rollback()
			return &current, nil
		}
		return nil, err
	}

	now := time.Now().UTC()
	// Rejections and withdrawals are written before acceptances so the partial unique
	// index on accepted offers never sees two accepted rows mid-transaction.
	for _, pass := range []func(models.OfferStatus) bool{
		func(s models.OfferStatus) bool { return s != models.OfferStatusAccepted },
		func(s models.OfferStatus) bool { return s == models.OfferStatusAccepted },
	} {
		for i := range current.Offers {
			offer := &current.Offers[i]
			if !pass(offer.Status) {
				continue
			}
			previous, exists := known[offer.ID]
			switch {
			case !exists:
				if offer.ID == "" {
					offer.ID = uuid.NewString()
				}
				offer.StudentID = current.ID
				offer.UpdatedAt = now
				if offer.OfferDate.IsZero() {
					offer.OfferDate = now
				}
				const insert = `INSERT INTO student_offers (id, student_id, job_id, company_name, package, offer_date, offer_letter_url, status, updated_at)
	VALUES (:id, :student_id, :job_id, :company_name, :package, :offer_date, :offer_letter_url, :status, :updated_at)`
				if _, err = tx.NamedExecContext(ctx, insert, offer); err != nil {
					return nil, fmt.Errorf("insert offer: %w", err)
				}
			case previous != offer.Status:
				offer.UpdatedAt = now
				if _, err = tx.ExecContext(ctx, `UPDATE student_offers SET status = $1, updated_at = $2 WHERE id = $3`, offer.Status, now, offer.ID); err != nil {
					return nil, fmt.Errorf("update offer: %w", err)
				}
			}
		}
	}

	const update = `UPDATE students SET placement_status = $1, placed = $2, placement_company = $3, placement_job_id = $4,
	placement_package = $5, placed_at = $6, version = version + 1, updated_at = $7 WHERE id = $8`
	if _, err = tx.ExecContext(ctx, update, current.PlacementStatus, current.Placed, current.CompanyName, current.JobID,
		current.Package, current.PlacedAt, now, current.ID); err != nil {
		return nil, fmt.Errorf("update student placement: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit student: %w", err)
	}
	current.Version++
	current.UpdatedAt = now
	return &current, nil
}

func (r *StudentRepository) listOffers(ctx context.Context, q sqlx.QueryerContext, studentID string) ([]models.Offer, error) {
	query := fmt.Sprintf("SELECT %s FROM student_offers WHERE student_id = $1 ORDER BY offer_date ASC, id ASC", offerColumns)
	var offers []models.Offer
	if err := sqlx.SelectContext(ctx, q, &offers, query, studentID); err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	if offers == nil {
		offers = []models.Offer{}
	}
	return offers, nil
}
