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

// ErrDuplicateApplication is returned when the (job, student) unique index rejects an insert.
var ErrDuplicateApplication = errors.New("duplicate application")

const uniqueViolation = "23505"

const applicationColumns = `id, job_id, student_id, college_id, status, current_round, rounds, eligibility_check,
       selection_details, rejection_reason, cover_letter, resume_submitted, applied_at, last_updated_by,
       created_at, updated_at`

// ApplicationRepository persists applications.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository constructs the repository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// Create inserts an application. The unique index on (job_id, student_id) decides concurrent races.
func (r *ApplicationRepository) Create(ctx context.Context, app *models.Application) error {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if app.AppliedAt.IsZero() {
		app.AppliedAt = now
	}
	app.CreatedAt = now
	app.UpdatedAt = now
	const query = `INSERT INTO applications
	(id, job_id, student_id, college_id, status, current_round, rounds, eligibility_check, selection_details,
	 rejection_reason, cover_letter, resume_submitted, applied_at, last_updated_by, created_at, updated_at)
	VALUES (:id, :job_id, :student_id, :college_id, :status, :current_round, :rounds, :eligibility_check, :selection_details,
	 :rejection_reason, :cover_letter, :resume_submitted, :applied_at, :last_updated_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, app); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateApplication
		}
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

// GetByID fetches an application.
func (r *ApplicationRepository) GetByID(ctx context.Context, id string) (*models.Application, error) {
	query := fmt.Sprintf("SELECT %s FROM applications WHERE id = $1", applicationColumns)
	var app models.Application
	if err := r.db.GetContext(ctx, &app, query, id); err != nil {
		return nil, err
	}
	return &app, nil
}

// FindByJobAndStudent returns sql.ErrNoRows when the student has not applied.
func (r *ApplicationRepository) FindByJobAndStudent(ctx context.Context, jobID, studentID string) (*models.Application, error) {
	query := fmt.Sprintf("SELECT %s FROM applications WHERE job_id = $1 AND student_id = $2", applicationColumns)
	var app models.Application
	if err := r.db.GetContext(ctx, &app, query, jobID, studentID); err != nil {
		return nil, err
	}
	return &app, nil
}

// List returns applications matching the filter, latest first, with the total count.
func (r *ApplicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, int, error) {
	conditions := make([]string, 0, 4)
	args := make([]interface{}, 0, 6)
	if filter.CollegeID != "" {
		args = append(args, filter.CollegeID)
		conditions = append(conditions, fmt.Sprintf("college_id = $%d", len(args)))
	}
	if filter.JobID != "" {
		args = append(args, filter.JobID)
		conditions = append(conditions, fmt.Sprintf("job_id = $%d", len(args)))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM applications"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count applications: %w", err)
	}

	page, size := models.Normalize(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s FROM applications%s ORDER BY applied_at DESC LIMIT %d OFFSET %d", applicationColumns, where, size, (page-1)*size)
	var apps []models.Application
	if err := r.db.SelectContext(ctx, &apps, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list applications: %w", err)
	}
	return apps, total, nil
}

// StudentIDsForJob returns the user ids of every applicant to the job.
func (r *ApplicationRepository) StudentIDsForJob(ctx context.Context, jobID string) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT student_id FROM applications WHERE job_id = $1`, jobID); err != nil {
		return nil, fmt.Errorf("list applicants: %w", err)
	}
	return ids, nil
}

// JobIDsForStudent returns every job the student has applied to.
func (r *ApplicationRepository) JobIDsForStudent(ctx context.Context, studentID string) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT job_id FROM applications WHERE student_id = $1`, studentID); err != nil {
		return nil, fmt.Errorf("list applied jobs: %w", err)
	}
	return ids, nil
}

// Mutate applies fn to the application under a row lock and persists the status,
// round and selection columns. fn may return ErrSkipWrite to write nothing.
func (r *ApplicationRepository) Mutate(ctx context.Context, id string, fn func(app *models.Application) error) (app *models.Application, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin application transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current models.Application
	query := fmt.Sprintf("SELECT %s FROM applications WHERE id = $1 FOR UPDATE", applicationColumns)
	if err = tx.GetContext(ctx, &current, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock application: %w", err)
	}

	if err = fn(&current); err != nil {
		if errors.Is(err, ErrSkipWrite) {
			_ = tx.Rollback()
			return &current, nil
		}
		return nil, err
	}

	current.UpdatedAt = time.Now().UTC()
	const update = `UPDATE applications SET status = :status, current_round = :current_round, rounds = :rounds,
	selection_details = :selection_details, rejection_reason = :rejection_reason, last_updated_by = :last_updated_by,
	updated_at = :updated_at WHERE id = :id`
	if _, err = tx.NamedExecContext(ctx, update, &current); err != nil {
		return nil, fmt.Errorf("update application: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit application: %w", err)
	}
	return &current, nil
}
