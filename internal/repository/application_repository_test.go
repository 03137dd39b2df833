package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DPLnainar/placement-management-system-sub002/internal/models"
)

var applicationRowColumns = []string{"id", "job_id", "student_id", "college_id", "status", "current_round", "rounds", "eligibility_check",
	"selection_details", "rejection_reason", "cover_letter", "resume_submitted", "applied_at", "last_updated_by",
	"created_at", "updated_at"}

func applicationRows(status string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(applicationRowColumns).
		AddRow("app-1", "job-1", "user-1", "college-1", status, "application", `[]`,
			`{"isEligible":true,"eligibilityIssues":[],"checkedDate":"2026-01-10T10:00:00Z"}`,
			`{"offerLetterUrl":"https://files.example/offer.pdf"}`, nil, "", true, now, nil, now, now)
}

func TestApplicationRepositoryCreateMapsUniqueViolation(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewApplicationRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO applications")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO applications")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "applications_job_student_key"})

	app := &models.Application{JobID: "job-1", StudentID: "user-1", CollegeID: "college-1", Status: models.ApplicationPending, CurrentRound: models.RoundApplication}
	require.NoError(t, repo.Create(context.Background(), app))
	assert.NotEmpty(t, app.ID)

	dup := &models.Application{JobID: "job-1", StudentID: "user-1", CollegeID: "college-1", Status: models.ApplicationPending, CurrentRound: models.RoundApplication}
	assert.ErrorIs(t, repo.Create(context.Background(), dup), ErrDuplicateApplication)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryFindByJobAndStudent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("FROM applications WHERE job_id = $1 AND student_id = $2")).
		WithArgs("job-1", "user-1").
		WillReturnRows(applicationRows("offered"))

	app, err := NewApplicationRepository(db).FindByJobAndStudent(context.Background(), "job-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationOffered, app.Status)
	assert.True(t, app.EligibilityCheck.IsEligible)
	require.NotNil(t, app.SelectionDetails.OfferLetterURL)
	assert.Equal(t, "https://files.example/offer.pdf", *app.SelectionDetails.OfferLetterURL)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryMutatePersistsRounds(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM applications WHERE id = $1 FOR UPDATE")).
		WithArgs("app-1").
		WillReturnRows(applicationRows("shortlisted"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE applications SET status = ?, current_round = ?")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	app, err := NewApplicationRepository(db).Mutate(context.Background(), "app-1", func(app *models.Application) error {
		app.Rounds = append(app.Rounds, models.Round{RoundName: "Online test", RoundType: models.RoundTypeAptitude, Status: models.RoundScheduled})
		app.CurrentRound = models.RoundAptitude
		app.Status = models.ApplicationAptitudeScheduled
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoundAptitude, app.CurrentRound)
	require.Len(t, app.Rounds, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}
