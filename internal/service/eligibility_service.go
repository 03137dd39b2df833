package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/DPLnainar/placement-management-system-sub002/internal/dto"
	"github.com/DPLnainar/placement-management-system-sub002/internal/models"
	appErrors "github.com/DPLnainar/placement-management-system-sub002/pkg/errors"
	"github.com/DPLnainar/placement-management-system-sub002/pkg/export"
	"github.com/DPLnainar/placement-management-system-sub002/pkg/storage"
)

type eligibilityJobs interface {
	Load(ctx context.Context, id string) (*models.Job, error)
	OpenJobs(ctx context.Context, collegeID string) ([]models.Job, error)
}

type eligibilityStudents interface {
	GetByUserID(ctx context.Context, userID string) (*models.Student, error)
	ListByCollege(ctx context.Context, filter models.StudentFilter) ([]models.Student, error)
}

type applicationIndex interface {
	StudentIDsForJob(ctx context.Context, jobID string) ([]string, error)
	JobIDsForStudent(ctx context.Context, studentID string) ([]string, error)
}

type summaryCache interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)
}

type tableRenderer interface {
	Render(table export.Table) ([]byte, error)
	ContentType() string
	Extension() string
}

// EligibilityServiceConfig tunes caching and export links.
type EligibilityServiceConfig struct {
	SummaryTTL time.Duration
	APIPrefix  string
}

// ExportFile is an opened roster export.
type ExportFile struct {
	Body        io.ReadCloser
	Filename    string
	ContentType string
}

// EligibilityService answers eligibility questions for students and staff and
// exports job rosters.
type EligibilityService struct {
	jobs      eligibilityJobs
	students  eligibilityStudents
	apps      applicationIndex
	guard     placementChecker
	cache     summaryCache
	store     storage.Store
	signer    *storage.SignedURLSigner
	renderers map[string]tableRenderer
	validator *validator.Validate
	logger    *zap.Logger
	cfg       EligibilityServiceConfig
	now       func() time.Time
}

// NewEligibilityService constructs an EligibilityService. store and signer may be
// nil when exports are disabled.
func NewEligibilityService(
	jobs eligibilityJobs,
	students eligibilityStudents,
	apps applicationIndex,
	guard placementChecker,
	cache summaryCache,
	store storage.Store,
	signer *storage.SignedURLSigner,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg EligibilityServiceConfig,
) *EligibilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	csv, pdf := export.NewCSVExporter(), export.NewPDFExporter()
	return &EligibilityService{
		jobs:      jobs,
		students:  students,
		apps:      apps,
		guard:     guard,
		cache:     cache,
		store:     store,
		signer:    signer,
		renderers: map[string]tableRenderer{csv.Extension(): csv, pdf.Extension(): pdf},
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ListEligibility returns the cached eligible/applied/not-applied counts for a job.
func (s *EligibilityService) ListEligibility(ctx context.Context, jobID string, claims *models.JWTClaims) (*models.EligibilitySummary, error) {
	if err := requireStaff(claims); err != nil {
		return nil, err
	}
	job, err := s.staffJob(ctx, jobID, claims)
	if err != nil {
		return nil, err
	}

	key := EligibilitySummaryKey(job.CollegeID, job.ID)
	var cached models.EligibilitySummary
	if s.cache != nil && s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	students, applied, err := s.rosterInputs(ctx, job, "")
	if err != nil {
		return nil, err
	}
	summary := &models.EligibilitySummary{JobID: job.ID, CollegeID: job.CollegeID}
	for i := range students {
		_, hasApplied := applied[students[i].UserID]
		eligible := Evaluate(&students[i], job).Eligible
		if hasApplied {
			summary.AppliedCount++
		}
		if eligible {
			summary.EligibleCount++
			if !hasApplied {
				summary.NotAppliedCount++
			}
		}
	}
	if s.cache != nil {
		s.cache.Set(ctx, key, summary, s.cfg.SummaryTTL)
	}
	return summary, nil
}

// CheckForStudent reports whether the calling student can apply to a job and why not.
func (s *EligibilityService) CheckForStudent(ctx context.Context, jobID string, claims *models.JWTClaims) (*models.JobEligibility, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if claims.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students have an eligibility status")
	}
	job, err := s.jobs.Load(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.CollegeID != claims.CollegeID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "job not found")
	}
	student, err := s.loadStudent(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	appliedJobs, err := s.apps.JobIDsForStudent(ctx, claims.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load applications")
	}

	result := Evaluate(student, job)
	view := &models.JobEligibility{
		JobID:          job.ID,
		Eligible:       result.Eligible,
		Reasons:        result.Reasons,
		AlreadyApplied: slices.Contains(appliedJobs, job.ID),
		PlacementLock:  !s.guard.CanApply(student),
	}
	view.CanApply = view.Eligible && !view.AlreadyApplied && !view.PlacementLock &&
		job.AcceptingApplications() && student.VerificationStatus == models.VerificationVerified
	return view, nil
}

// EligibleJobs lists the open jobs the calling student is eligible for. A placed
// student gets an empty list with PlacementLock set.
func (s *EligibilityService) EligibleJobs(ctx context.Context, claims *models.JWTClaims) (*models.EligibleJobs, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if claims.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students have eligible jobs")
	}
	student, err := s.loadStudent(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if !s.guard.CanApply(student) {
		return &models.EligibleJobs{Jobs: []models.Job{}, PlacementLock: true}, nil
	}
	open, err := s.jobs.OpenJobs(ctx, student.CollegeID)
	if err != nil {
		return nil, err
	}
	jobs := make([]models.Job, 0, len(open))
	for i := range open {
		if Evaluate(student, &open[i]).Eligible {
			jobs = append(jobs, open[i])
		}
	}
	return &models.EligibleJobs{Jobs: jobs}, nil
}

// EligibleStudents builds the staff roster for a job. Summary totals always cover
// the full roster; ineligible rows are listed only on request.
func (s *EligibilityService) EligibleStudents(ctx context.Context, jobID string, query dto.RosterQuery, claims *models.JWTClaims) (*models.EligibilityRoster, error) {
	if err := requireStaff(claims); err != nil {
		return nil, err
	}
	job, err := s.staffJob(ctx, jobID, claims)
	if err != nil {
		return nil, err
	}
	return s.roster(ctx, job, query)
}

// BulkCheck evaluates the given students (by user id) against a job. Unknown ids
// come back ineligible.
func (s *EligibilityService) BulkCheck(ctx context.Context, req dto.BulkCheckRequest, claims *models.JWTClaims) ([]models.StudentEligibility, error) {
	if err := requireStaff(claims); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk check payload")
	}
	job, err := s.staffJob(ctx, req.JobID, claims)
	if err != nil {
		return nil, err
	}
	students, err := s.students.ListByCollege(ctx, models.StudentFilter{CollegeID: job.CollegeID, UserIDs: req.StudentIDs})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	applied, err := s.appliedSet(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	byUser := make(map[string]*models.Student, len(students))
	for i := range students {
		byUser[students[i].UserID] = &students[i]
	}

	out := make([]models.StudentEligibility, 0, len(req.StudentIDs))
	for _, userID := range req.StudentIDs {
		student, ok := byUser[userID]
		if !ok {
			out = append(out, models.StudentEligibility{UserID: userID, Reasons: []string{"Student not found"}})
			continue
		}
		_, hasApplied := applied[userID]
		out = append(out, rosterRow(student, Evaluate(student, job), hasApplied))
	}
	return out, nil
}

// ExportEligibleStudents renders the roster as CSV or PDF, stores it and returns a
// signed download link.
func (s *EligibilityService) ExportEligibleStudents(ctx context.Context, jobID string, req dto.ExportRosterRequest, claims *models.JWTClaims) (*dto.ExportResponse, error) {
	if err := requireStaff(claims); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export request")
	}
	if s.store == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "exports are not configured")
	}
	renderer, ok := s.renderers[req.Format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %s", req.Format))
	}
	job, err := s.staffJob(ctx, jobID, claims)
	if err != nil {
		return nil, err
	}
	roster, err := s.roster(ctx, job, dto.RosterQuery{IncludeIneligible: req.IncludeIneligible, Department: req.Department})
	if err != nil {
		return nil, err
	}

	payload, err := renderer.Render(rosterTable(roster, req.IncludeIneligible))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	key := fmt.Sprintf("rosters/%s/%s_%s.%s", job.CollegeID, job.ID, s.now().Format("20060102_150405"), renderer.Extension())
	if err := s.store.Save(ctx, key, payload, renderer.ContentType()); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}
	token, expiresAt, err := s.signer.Generate(job.CollegeID, key)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export link")
	}
	s.logger.Info("roster exported", zap.String("job_id", job.ID), zap.String("key", key), zap.Int("rows", len(roster.Students)))

	return &dto.ExportResponse{
		URL:       fmt.Sprintf("%s/export/%s", strings.TrimRight(s.cfg.APIPrefix, "/"), token),
		Format:    req.Format,
		ExpiresAt: expiresAt.Format(time.RFC3339),
	}, nil
}

// OpenExport resolves a download token to the stored file. Tokens only open for
// staff of the college that produced them.
func (s *EligibilityService) OpenExport(ctx context.Context, token string, claims *models.JWTClaims) (*ExportFile, error) {
	if err := requireStaff(claims); err != nil {
		return nil, err
	}
	if s.store == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export not found")
	}
	obj, err := s.signer.Parse(token)
	switch {
	case errors.Is(err, storage.ErrTokenExpired):
		return nil, appErrors.Clone(appErrors.ErrForbidden, "download link expired")
	case err != nil:
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export not found")
	}
	if !sameCollege(claims, obj.Scope) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export not found")
	}
	body, err := s.store.Open(ctx, obj.Key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export")
	}
	filename := obj.Key[strings.LastIndex(obj.Key, "/")+1:]
	contentType := "application/octet-stream"
	if dot := strings.LastIndex(filename, "."); dot >= 0 {
		if r, ok := s.renderers[filename[dot+1:]]; ok {
			contentType = r.ContentType()
		}
	}
	return &ExportFile{Body: body, Filename: filename, ContentType: contentType}, nil
}

func (s *EligibilityService) roster(ctx context.Context, job *models.Job, query dto.RosterQuery) (*models.EligibilityRoster, error) {
	students, applied, err := s.rosterInputs(ctx, job, query.Department)
	if err != nil {
		return nil, err
	}
	roster := &models.EligibilityRoster{Job: *job, Students: make([]models.StudentEligibility, 0, len(students))}
	for i := range students {
		_, hasApplied := applied[students[i].UserID]
		row := rosterRow(&students[i], Evaluate(&students[i], job), hasApplied)

		roster.Summary.TotalStudents++
		if row.Eligible {
			roster.Summary.Eligible++
		} else {
			roster.Summary.Ineligible++
		}
		if row.HasApplied {
			roster.Summary.Applied++
		} else if row.Eligible {
			roster.Summary.NotApplied++
		}
		if row.Eligible || query.IncludeIneligible {
			roster.Students = append(roster.Students, row)
		}
	}
	return roster, nil
}

func (s *EligibilityService) rosterInputs(ctx context.Context, job *models.Job, department string) ([]models.Student, map[string]struct{}, error) {
	students, err := s.students.ListByCollege(ctx, models.StudentFilter{CollegeID: job.CollegeID, Department: department})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	applied, err := s.appliedSet(ctx, job.ID)
	if err != nil {
		return nil, nil, err
	}
	return students, applied, nil
}

func (s *EligibilityService) appliedSet(ctx context.Context, jobID string) (map[string]struct{}, error) {
	ids, err := s.apps.StudentIDsForJob(ctx, jobID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load applicants")
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

func (s *EligibilityService) staffJob(ctx context.Context, jobID string, claims *models.JWTClaims) (*models.Job, error) {
	job, err := s.jobs.Load(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !sameCollege(claims, job.CollegeID) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "job not found")
	}
	return job, nil
}

func (s *EligibilityService) loadStudent(ctx context.Context, userID string) (*models.Student, error) {
	student, err := s.students.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

func rosterRow(student *models.Student, result models.EligibilityResult, hasApplied bool) models.StudentEligibility {
	return models.StudentEligibility{
		StudentID:  student.ID,
		UserID:     student.UserID,
		FullName:   student.FullName,
		Email:      student.Email,
		Department: student.Department,
		CGPA:       student.EffectiveCGPA(),
		Eligible:   result.Eligible,
		Reasons:    result.Reasons,
		HasApplied: hasApplied,
	}
}

func rosterTable(roster *models.EligibilityRoster, withReasons bool) export.Table {
	table := export.Table{
		Title:   fmt.Sprintf("Eligible students: %s at %s", roster.Job.Title, roster.Job.CompanyName),
		Columns: []string{"Name", "Email", "Department", "CGPA", "Eligible", "Applied"},
	}
	if withReasons {
		table.Columns = append(table.Columns, "Reasons")
	}
	for _, row := range roster.Students {
		cells := []string{row.FullName, row.Email, row.Department, fmt.Sprintf("%.2f", row.CGPA), yesNo(row.Eligible), yesNo(row.HasApplied)}
		if withReasons {
			cells = append(cells, strings.Join(row.Reasons, "; "))
		}
		table.Rows = append(table.Rows, cells)
	}
	return table
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
