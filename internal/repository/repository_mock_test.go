package repository

import (
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var jobRowColumns = []string{"id", "college_id", "title", "company_name", "description", "location", "job_type", "ctc", "salary", "skills",
	"deadline", "original_deadline", "deadline_extended", "status", "closed_reason", "is_active", "eligibility", "posted_by",
	"created_at", "updated_at"}

func jobRows(id, status, closedReason string, deadline time.Time) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(jobRowColumns).
		AddRow(id, "college-1", "SDE", "Acme", "build things", "Chennai", "full-time", 1200000.0, nil, "{go,sql}",
			deadline, nil, false, status, closedReason, true, `{"type":"common","common":{"minCgpa":7},"allowArrears":true}`, "admin-1",
			now, now)
}

var studentRowColumns = []string{"id", "user_id", "college_id", "full_name", "email", "department", "tenth_percent", "twelfth_percent", "cgpa",
	"graduation_cgpa", "current_backlog_count", "semester_records", "arrear_history", "verification_status",
	"verification_rejection_reason", "placement_status", "placed", "placement_company", "placement_job_id",
	"placement_package", "placed_at", "version", "created_at", "updated_at"}

func studentRows(placed bool) *sqlmock.Rows {
	now := time.Now()
	status := "not_placed"
	var company, jobID interface{}
	if placed {
		status = "placed"
		company, jobID = "Acme", "job-1"
	}
	return sqlmock.NewRows(studentRowColumns).
		AddRow("stu-1", "user-1", "college-1", "Asha", "asha@example.edu", "CSE", 88.0, 91.0, 8.1,
			nil, 0, `[{"semester":1,"sgpa":8,"backlogs":0}]`, "", "VERIFIED",
			nil, status, placed, company, jobID,
			nil, nil, 3, now, now)
}

var offerRowColumns = []string{"id", "student_id", "job_id", "company_name", "package", "offer_date", "offer_letter_url", "status", "updated_at"}
