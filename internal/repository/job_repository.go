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

	"github.com/DPLnainar/placement-management-system-sub002/internal/models"
)

// ErrSkipWrite aborts a locked mutation without error when nothing changed.
var ErrSkipWrite = errors.New("skip write")

const jobColumns = `id, college_id, title, company_name, description, location, job_type, ctc, salary, skills,
       deadline, original_deadline, deadline_extended, status, closed_reason, is_active, eligibility, posted_by,
       created_at, updated_at`

// JobRepository persists job postings.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository constructs the repository.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a job.
func (r *JobRepository) Create(ctx context.Context, job *models.Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	const query = `INSERT INTO jobs
	(id, college_id, title, company_name, description, location, job_type, ctc, salary, skills, deadline, original_deadline,
	 deadline_extended, status, closed_reason, is_active, eligibility, posted_by, created_at, updated_at)
	VALUES (:id, :college_id, :title, :company_name, :description, :location, :job_type, :ctc, :salary, :skills, :deadline,
	 :original_deadline, :deadline_extended, :status, :closed_reason, :is_active, :eligibility, :posted_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

// GetByID fetches a job.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*models.Job, error) {
	query := fmt.Sprintf("SELECT %s FROM jobs WHERE id = $1", jobColumns)
	var job models.Job
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, err
	}
	return &job, nil
}

// List returns jobs matching the filter, newest first, with the total count.
func (r *JobRepository) List(ctx context.Context, filter models.JobFilter) ([]models.Job, int, error) {
	conditions := make([]string, 0, 4)
	args := make([]interface{}, 0, 6)
	if filter.CollegeID != "" {
		args = append(args, filter.CollegeID)
		conditions = append(conditions, fmt.Sprintf("college_id = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.JobType != "" {
		args = append(args, filter.JobType)
		conditions = append(conditions, fmt.Sprintf("job_type = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(title) LIKE $%d OR LOWER(company_name) LIKE $%d)", len(args), len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM jobs"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	page, size := models.Normalize(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s FROM jobs%s ORDER BY created_at DESC LIMIT %d OFFSET %d", jobColumns, where, size, (page-1)*size)
	var jobs []models.Job
	if err := r.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, total, nil
}

// ListOpen returns every active job in the college.
func (r *JobRepository) ListOpen(ctx context.Context, collegeID string) ([]models.Job, error) {
	query := fmt.Sprintf("SELECT %s FROM jobs WHERE college_id = $1 AND status = $2 AND is_active = TRUE ORDER BY deadline ASC", jobColumns)
	var jobs []models.Job
	if err := r.db.SelectContext(ctx, &jobs, query, collegeID, models.JobStatusActive); err != nil {
		return nil, fmt.Errorf("list open jobs: %w", err)
	}
	return jobs, nil
}

// ListClosingBetween returns active jobs whose deadline falls within [from, until].
func (r *JobRepository) ListClosingBetween(ctx context.Context, collegeID string, from, until time.Time) ([]models.Job, error) {
	query := fmt.Sprintf(`SELECT %s FROM jobs
	WHERE college_id = $1 AND status = $2 AND deadline >= $3 AND deadline <= $4
	ORDER BY deadline ASC`, jobColumns)
	var jobs []models.Job
	if err := r.db.SelectContext(ctx, &jobs, query, collegeID, models.JobStatusActive, from, until); err != nil {
		return nil, fmt.Errorf("list closing jobs: %w", err)
	}
	return jobs, nil
}

// ExpiryScope limits which jobs an expiry sweep may touch. Empty fields are unconstrained.
type ExpiryScope struct {
	CollegeID string
	JobID     string
}

// CloseExpired moves active jobs past their deadline to closed. The WHERE clause makes the
// update idempotent: concurrent sweeps close each job once and later sweeps affect no rows.
func (r *JobRepository) CloseExpired(ctx context.Context, scope ExpiryScope, now time.Time) (int64, error) {
	args := []interface{}{models.JobStatusClosed, models.ClosedReasonDeadline, now, models.JobStatusActive}
	query := `UPDATE jobs SET status = $1, closed_reason = $2, updated_at = $3 WHERE status = $4 AND deadline < $3`
	if scope.CollegeID != "" {
		args = append(args, scope.CollegeID)
		query += fmt.Sprintf(" AND college_id = $%d", len(args))
	}
	if scope.JobID != "" {
		args = append(args, scope.JobID)
		query += fmt.Sprintf(" AND id = $%d", len(args))
	}
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("close expired jobs: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check expired job rows: %w", err)
	}
	return rows, nil
}

// Mutate applies fn to the job under a row lock and persists lifecycle columns.
// fn may return ErrSkipWrite to release the lock without writing.
func (r *JobRepository) Mutate(ctx context.Context, id string, fn func(job *models.Job) error) (job *models.Job, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin job transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current models.Job
	query := fmt.Sprintf("SELECT %s FROM jobs WHERE id = $1 FOR UPDATE", jobColumns)
	if err = tx.GetContext(ctx, &current, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock job: %w", err)
	}

	if err = fn(&current); err != nil {
		if errors.Is(err, ErrSkipWrite) {
			_ = tx.Rollback()
			return &current, nil
		}
		return nil, err
	}

	current.UpdatedAt = time.Now().UTC()
	const update = `UPDATE jobs SET deadline = $1, original_deadline = $2, deadline_extended = $3, status = $4,
	closed_reason = $5, is_active = $6, updated_at = $7 WHERE id = $8`
	if _, err = tx.ExecContext(ctx, update, current.Deadline, current.OriginalDeadline, current.DeadlineExtended,
		current.Status, current.ClosedReason, current.IsActive, current.UpdatedAt, current.ID); err != nil {
		return nil, fmt.Errorf("update job: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit job: %w", err)
	}
	return &current, nil
}
