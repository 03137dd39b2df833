package models

import (
	"database/sql/driver"
	"strings"
	"time"

	"github.com/lib/pq"
)

// JobStatus is the posting lifecycle state.
type JobStatus string

const (
	JobStatusDraft     JobStatus = "draft"
	JobStatusActive    JobStatus = "active"
	JobStatusInactive  JobStatus = "inactive"
	JobStatusClosed    JobStatus = "closed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Valid reports whether s is a known job status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusDraft, JobStatusActive, JobStatusInactive, JobStatusClosed, JobStatusCancelled:
		return true
	}
	return false
}

// ClosedReason records why a job left the active state for closed.
type ClosedReason string

const (
	ClosedReasonNone     ClosedReason = ""
	ClosedReasonDeadline ClosedReason = "deadline"
	ClosedReasonManual   ClosedReason = "manual"
)

// Job is a posting students apply to.
type Job struct {
	ID               string              `db:"id" json:"id"`
	CollegeID        string              `db:"college_id" json:"collegeId"`
	Title            string              `db:"title" json:"title"`
	CompanyName      string              `db:"company_name" json:"companyName"`
	Description      string              `db:"description" json:"description"`
	Location         string              `db:"location" json:"location"`
	JobType          string              `db:"job_type" json:"jobType"`
	CTC              *float64            `db:"ctc" json:"ctc,omitempty"`
	Salary           *float64            `db:"salary" json:"salary,omitempty"`
	Skills           pq.StringArray      `db:"skills" json:"skills"`
	Deadline         time.Time           `db:"deadline" json:"deadline"`
	OriginalDeadline *time.Time          `db:"original_deadline" json:"originalDeadline,omitempty"`
	DeadlineExtended bool                `db:"deadline_extended" json:"deadlineExtended"`
	Status           JobStatus           `db:"status" json:"status"`
	ClosedReason     ClosedReason        `db:"closed_reason" json:"closedReason,omitempty"`
	IsActive         bool                `db:"is_active" json:"isActive"`
	Eligibility      EligibilityCriteria `db:"eligibility" json:"eligibility"`
	PostedBy         string              `db:"posted_by" json:"postedBy"`
	CreatedAt        time.Time           `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time           `db:"updated_at" json:"updatedAt"`
}

// Package resolves the offer package: ctc, then salary, then 0.
func (j *Job) Package() float64 {
	if j.CTC != nil && *j.CTC > 0 {
		return *j.CTC
	}
	if j.Salary != nil && *j.Salary > 0 {
		return *j.Salary
	}
	return 0
}

// AcceptingApplications reports whether the job is open as stored. Callers apply lazy expiry first.
func (j *Job) AcceptingApplications() bool {
	return j.IsActive && j.Status == JobStatusActive
}

// JobFilter narrows job listings.
type JobFilter struct {
	CollegeID string
	Status    []JobStatus
	JobType   string
	Search    string
	Page      int
	PageSize  int
}

// Thresholds are academic minimums. A zero value means no requirement.
type Thresholds struct {
	MinTenth   float64 `json:"minTenth" validate:"gte=0,lte=100"`
	MinTwelfth float64 `json:"minTwelfth" validate:"gte=0,lte=100"`
	MinCGPA    float64 `json:"minCgpa" validate:"gte=0,lte=10"`
}

// DepartmentThreshold overrides thresholds for one department.
type DepartmentThreshold struct {
	Department string `json:"department" validate:"required"`
	Thresholds
}

// CustomDeptRule tightens the bar for one department on top of the base thresholds.
type CustomDeptRule struct {
	Department    string  `json:"department" validate:"required"`
	MinCGPA       float64 `json:"minCgpa" validate:"gte=0,lte=10"`
	MinTenthPct   float64 `json:"minTenthPct" validate:"gte=0,lte=100"`
	MinTwelfthPct float64 `json:"minTwelfthPct" validate:"gte=0,lte=100"`
	AllowArrears  *bool   `json:"allowArrears,omitempty"`
}

// EligibilityType selects which threshold shape applies.
type EligibilityType string

const (
	EligibilityCommon         EligibilityType = "common"
	EligibilityDepartmentWise EligibilityType = "department-wise"
)

// EligibilityCriteria is the stored form of a job's requirements.
type EligibilityCriteria struct {
	Type            EligibilityType       `json:"type" validate:"omitempty,oneof=common department-wise"`
	Common          Thresholds            `json:"common"`
	DepartmentWise  []DepartmentThreshold `json:"departmentWise,omitempty" validate:"dive"`
	AllowArrears    bool                  `json:"allowArrears"`
	Departments     []string              `json:"departments,omitempty"`
	CustomDeptRules []CustomDeptRule      `json:"customDeptRules,omitempty" validate:"dive"`
}

// Scan implements sql.Scanner.
func (c *EligibilityCriteria) Scan(src interface{}) error { return scanJSON(src, c) }

// Value implements driver.Valuer.
func (c EligibilityCriteria) Value() (driver.Value, error) { return jsonValue(c) }

// ThresholdCriteria is the resolved variant of a job's academic requirements.
type ThresholdCriteria interface {
	thresholdCriteria()
}

// CommonCriteria applies one set of thresholds to every department.
type CommonCriteria struct {
	Thresholds Thresholds
}

// DepartmentWiseCriteria applies per-department thresholds.
type DepartmentWiseCriteria struct {
	Entries []DepartmentThreshold
}

func (CommonCriteria) thresholdCriteria()         {}
func (DepartmentWiseCriteria) thresholdCriteria() {}

// Criteria resolves the stored shape into its variant. An empty type means common.
func (c EligibilityCriteria) Criteria() ThresholdCriteria {
	if c.Type == EligibilityDepartmentWise {
		return DepartmentWiseCriteria{Entries: c.DepartmentWise}
	}
	return CommonCriteria{Thresholds: c.Common}
}

// For returns the thresholds listed for department.
func (d DepartmentWiseCriteria) For(department string) (Thresholds, bool) {
	for _, entry := range d.Entries {
		if sameDepartment(entry.Department, department) {
			return entry.Thresholds, true
		}
	}
	return Thresholds{}, false
}

// CustomRuleFor returns the custom rule for department, if any.
func (c EligibilityCriteria) CustomRuleFor(department string) (CustomDeptRule, bool) {
	for _, rule := range c.CustomDeptRules {
		if sameDepartment(rule.Department, department) {
			return rule, true
		}
	}
	return CustomDeptRule{}, false
}

// AllowsDepartment reports whether the allow-list admits department. An empty list admits all.
func (c EligibilityCriteria) AllowsDepartment(department string) bool {
	if len(c.Departments) == 0 {
		return true
	}
	for _, d := range c.Departments {
		if sameDepartment(d, department) {
			return true
		}
	}
	return false
}

// EligibilityResult is the evaluator's verdict.
type EligibilityResult struct {
	Eligible bool     `json:"eligible"`
	Reasons  []string `json:"reasons"`
}

func sameDepartment(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
