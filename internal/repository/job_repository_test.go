package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DPLnainar/placement-management-system-sub002/internal/models"
)

func TestJobRepositoryGetByIDDecodesCriteria(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	deadline := time.Now().Add(48 * time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta("FROM jobs WHERE id = $1")).
		WithArgs("job-1").
		WillReturnRows(jobRows("job-1", "active", "", deadline))

	job, err := NewJobRepository(db).GetByID(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusActive, job.Status)
	assert.Equal(t, 7.0, job.Eligibility.Common.MinCGPA)
	assert.Equal(t, 1200000.0, job.Package())
	assert.Equal(t, []string{"go", "sql"}, []string(job.Skills))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepositoryCloseExpiredIsConditional(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewJobRepository(db)
	now := time.Now().UTC()
	expect := regexp.QuoteMeta("UPDATE jobs SET status = $1, closed_reason = $2, updated_at = $3 WHERE status = $4 AND deadline < $3 AND id = $5")

	mock.ExpectExec(expect).
		WithArgs(models.JobStatusClosed, models.ClosedReasonDeadline, now, models.JobStatusActive, "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(expect).
		WithArgs(models.JobStatusClosed, models.ClosedReasonDeadline, now, models.JobStatusActive, "job-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	first, err := repo.CloseExpired(context.Background(), ExpiryScope{JobID: "job-1"}, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first)

	second, err := repo.CloseExpired(context.Background(), ExpiryScope{JobID: "job-1"}, now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), second)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepositoryListAppliesFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM jobs WHERE college_id = $1 AND status IN ($2,$3)")).
		WithArgs("college-1", models.JobStatusActive, models.JobStatusClosed).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM jobs WHERE college_id = $1 AND status IN ($2,$3) ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WillReturnRows(jobRows("job-1", "closed", "deadline", time.Now().Add(-time.Hour)))

	jobs, total, err := NewJobRepository(db).List(context.Background(), models.JobFilter{
		CollegeID: "college-1",
		Status:    []models.JobStatus{models.JobStatusActive, models.JobStatusClosed},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, jobs, 1)
	assert.Equal(t, models.ClosedReasonDeadline, jobs[0].ClosedReason)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepositoryMutateLocksAndWrites(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	newDeadline := time.Now().Add(72 * time.Hour).UTC()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM jobs WHERE id = $1 FOR UPDATE")).
		WithArgs("job-1").
		WillReturnRows(jobRows("job-1", "closed", "deadline", time.Now().Add(-time.Hour)))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE jobs SET deadline = $1")).
		WithArgs(newDeadline, sqlmock.AnyArg(), true, models.JobStatusActive, models.ClosedReasonNone, true, sqlmock.AnyArg(), "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	job, err := NewJobRepository(db).Mutate(context.Background(), "job-1", func(job *models.Job) error {
		original := job.Deadline
		job.OriginalDeadline = &original
		job.Deadline = newDeadline
		job.DeadlineExtended = true
		job.Status = models.JobStatusActive
		job.ClosedReason = models.ClosedReasonNone
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusActive, job.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepositoryMutateSkipWriteRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM jobs WHERE id = $1 FOR UPDATE")).
		WillReturnRows(jobRows("job-1", "active", "", time.Now().Add(time.Hour)))
	mock.ExpectRollback()

	job, err := NewJobRepository(db).Mutate(context.Background(), "job-1", func(job *models.Job) error {
		return ErrSkipWrite
	})
	require.NoError(t, err)
	assert.Equal(t, "job-1", job.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepositoryMutateNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM jobs WHERE id = $1 FOR UPDATE")).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := NewJobRepository(db).Mutate(context.Background(), "missing", func(job *models.Job) error { return nil })
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
