package service

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DPLnainar/placement-management-system-sub002/internal/dto"
	"github.com/DPLnainar/placement-management-system-sub002/internal/models"
	appErrors "github.com/DPLnainar/placement-management-system-sub002/pkg/errors"
	"github.com/DPLnainar/placement-management-system-sub002/pkg/storage"
)

type applicationIndexStub struct {
	byJob map[string][]string
}

func (a *applicationIndexStub) StudentIDsForJob(ctx context.Context, jobID string) ([]string, error) {
	return a.byJob[jobID], nil
}

func (a *applicationIndexStub) JobIDsForStudent(ctx context.Context, studentID string) ([]string, error) {
	var out []string
	for jobID, users := range a.byJob {
		if containsString(users, studentID) {
			out = append(out, jobID)
		}
	}
	return out, nil
}

type summaryCacheStub struct {
	entries map[string][]byte
	sets    int
}

func (c *summaryCacheStub) Get(ctx context.Context, key string, dest interface{}) bool {
	raw, ok := c.entries[key]
	if !ok {
		return false
	}
	return json.Unmarshal(raw, dest) == nil
}

func (c *summaryCacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	raw, _ := json.Marshal(value)
	if c.entries == nil {
		c.entries = map[string][]byte{}
	}
	c.entries[key] = raw
	c.sets++
}

type eligibilityFixture struct {
	svc   *EligibilityService
	cache *summaryCacheStub
	index *applicationIndexStub
}

// The roster: user-1 eligible and applied, user-2 eligible, user-3 below the CGPA bar, user-4 in ECE.
func newEligibilityFixture(t *testing.T, extra ...*models.Student) *eligibilityFixture {
	t.Helper()
	s1 := rosterStudent("user-1", 8.5)
	s1.FullName = "Asha"
	s2 := rosterStudent("user-2", 7.6)
	s2.FullName = "Bala"
	s3 := rosterStudent("user-3", 6.2)
	s3.FullName = "Chitra"
	s4 := rosterStudent("user-4", 9.1)
	s4.FullName = "Deepak"
	s4.Department = "ECE"
	students := newStudentStore(append([]*models.Student{s1, s2, s3, s4}, extra...)...)

	job := demandingJob("job-1", 7.0)
	jobSvc := newTestJobService(newJobStore(job, openJob("job-2")), &fanoutStub{}, &auditTrailStub{})
	placement := NewPlacementService(students, nil, nil, nil)

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)

	f := &eligibilityFixture{cache: &summaryCacheStub{}, index: &applicationIndexStub{byJob: map[string][]string{"job-1": {"user-1"}}}}
	f.svc = NewEligibilityService(jobSvc, students, f.index, placement, f.cache, store, signer, nil, nil, EligibilityServiceConfig{})
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func TestEligibilityServiceListEligibilityCounts(t *testing.T) {
	f := newEligibilityFixture(t)

	summary, err := f.svc.ListEligibility(context.Background(), "job-1", adminClaims)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.EligibleCount)
	assert.Equal(t, 1, summary.AppliedCount)
	assert.Equal(t, 2, summary.NotAppliedCount)
	assert.Equal(t, 1, f.cache.sets)

	f.index.byJob["job-1"] = []string{"user-1", "user-2"}
	cached, err := f.svc.ListEligibility(context.Background(), "job-1", adminClaims)
	require.NoError(t, err)
	assert.Equal(t, summary, cached)

	delete(f.cache.entries, EligibilitySummaryKey("college-1", "job-1"))
	fresh, err := f.svc.ListEligibility(context.Background(), "job-1", adminClaims)
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.AppliedCount)
	assert.Equal(t, 1, fresh.NotAppliedCount)
}

func TestEligibilityServiceStaffOnlyViews(t *testing.T) {
	f := newEligibilityFixture(t)
	ctx := context.Background()

	_, err := f.svc.ListEligibility(ctx, "job-1", studentClaims)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	otherCollege := &models.JWTClaims{UserID: "admin-9", Role: models.RoleAdmin, CollegeID: "college-9"}
	_, err = f.svc.EligibleStudents(ctx, "job-1", dto.RosterQuery{}, otherCollege)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestEligibilityServiceCheckForStudent(t *testing.T) {
	f := newEligibilityFixture(t)
	ctx := context.Background()

	applied, err := f.svc.CheckForStudent(ctx, "job-1", studentClaims)
	require.NoError(t, err)
	assert.True(t, applied.Eligible)
	assert.True(t, applied.AlreadyApplied)
	assert.False(t, applied.CanApply)

	low := &models.JWTClaims{UserID: "user-3", Role: models.RoleStudent, CollegeID: "college-1"}
	check, err := f.svc.CheckForStudent(ctx, "job-1", low)
	require.NoError(t, err)
	assert.False(t, check.Eligible)
	assert.NotEmpty(t, check.Reasons)
	assert.False(t, check.CanApply)

	fresh := &models.JWTClaims{UserID: "user-2", Role: models.RoleStudent, CollegeID: "college-1"}
	check, err = f.svc.CheckForStudent(ctx, "job-1", fresh)
	require.NoError(t, err)
	assert.True(t, check.CanApply)
	assert.False(t, check.PlacementLock)
}

func TestEligibilityServiceEligibleJobsPlacementLock(t *testing.T) {
	placed := rosterStudent("user-5", 9.5)
	placed.Placed = true
	placed.PlacementStatus = models.PlacementStatusPlaced
	f := newEligibilityFixture(t, placed)
	ctx := context.Background()

	locked, err := f.svc.EligibleJobs(ctx, &models.JWTClaims{UserID: "user-5", Role: models.RoleStudent, CollegeID: "college-1"})
	require.NoError(t, err)
	assert.True(t, locked.PlacementLock)
	assert.NotNil(t, locked.Jobs)
	assert.Empty(t, locked.Jobs)

	low, err := f.svc.EligibleJobs(ctx, &models.JWTClaims{UserID: "user-3", Role: models.RoleStudent, CollegeID: "college-1"})
	require.NoError(t, err)
	require.Len(t, low.Jobs, 1)
	assert.Equal(t, "job-2", low.Jobs[0].ID)

	all, err := f.svc.EligibleJobs(ctx, studentClaims)
	require.NoError(t, err)
	assert.Len(t, all.Jobs, 2)
}

func TestEligibilityServiceRoster(t *testing.T) {
	f := newEligibilityFixture(t)
	ctx := context.Background()

	roster, err := f.svc.EligibleStudents(ctx, "job-1", dto.RosterQuery{}, adminClaims)
	require.NoError(t, err)
	assert.Len(t, roster.Students, 3)
	assert.Equal(t, models.RosterSummary{TotalStudents: 4, Eligible: 3, Ineligible: 1, Applied: 1, NotApplied: 2}, roster.Summary)

	withAll, err := f.svc.EligibleStudents(ctx, "job-1", dto.RosterQuery{IncludeIneligible: true, Department: "CSE"}, adminClaims)
	require.NoError(t, err)
	assert.Len(t, withAll.Students, 3)
	assert.Equal(t, 3, withAll.Summary.TotalStudents)
	for _, row := range withAll.Students {
		assert.Equal(t, "CSE", row.Department)
	}
}

func TestEligibilityServiceBulkCheck(t *testing.T) {
	f := newEligibilityFixture(t)

	rows, err := f.svc.BulkCheck(context.Background(), dto.BulkCheckRequest{JobID: "job-1", StudentIDs: []string{"user-3", "user-1", "ghost"}}, adminClaims)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "user-3", rows[0].UserID)
	assert.False(t, rows[0].Eligible)
	assert.True(t, rows[1].Eligible)
	assert.True(t, rows[1].HasApplied)
	assert.Equal(t, []string{"Student not found"}, rows[2].Reasons)

	_, err = f.svc.BulkCheck(context.Background(), dto.BulkCheckRequest{JobID: "job-1"}, adminClaims)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestEligibilityServiceExportRoundTrip(t *testing.T) {
	f := newEligibilityFixture(t)
	ctx := context.Background()

	resp, err := f.svc.ExportEligibleStudents(ctx, "job-1", dto.ExportRosterRequest{Format: "csv", IncludeIneligible: true}, adminClaims)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.URL, "/api/v1/export/"))
	assert.Equal(t, "csv", resp.Format)

	token := strings.TrimPrefix(resp.URL, "/api/v1/export/")
	file, err := f.svc.OpenExport(ctx, token, adminClaims)
	require.NoError(t, err)
	defer file.Body.Close()
	assert.Equal(t, "text/csv", file.ContentType)
	assert.Equal(t, "job-1_20260310_120000.csv", file.Filename)

	body, err := io.ReadAll(file.Body)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	assert.Equal(t, "Name,Email,Department,CGPA,Eligible,Applied,Reasons", lines[0])
	assert.Len(t, lines, 5)

	otherCollege := &models.JWTClaims{UserID: "admin-9", Role: models.RoleAdmin, CollegeID: "college-9"}
	_, err = f.svc.OpenExport(ctx, token, otherCollege)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = f.svc.OpenExport(ctx, "not-a-token", adminClaims)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestEligibilityServiceExportPDF(t *testing.T) {
	f := newEligibilityFixture(t)

	resp, err := f.svc.ExportEligibleStudents(context.Background(), "job-1", dto.ExportRosterRequest{Format: "pdf"}, adminClaims)
	require.NoError(t, err)
	assert.Equal(t, "pdf", resp.Format)

	_, err = f.svc.ExportEligibleStudents(context.Background(), "job-1", dto.ExportRosterRequest{Format: "xlsx"}, adminClaims)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
