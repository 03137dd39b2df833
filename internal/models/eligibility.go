package models

// EligibilitySummary is the bulk eligibility count for one job within a college.
type EligibilitySummary struct {
	JobID           string `json:"jobId"`
	CollegeID       string `json:"collegeId"`
	EligibleCount   int    `json:"eligibleCount"`
	AppliedCount    int    `json:"appliedCount"`
	NotAppliedCount int    `json:"notAppliedCount"`
}

// JobEligibility is one student's standing for one job.
type JobEligibility struct {
	JobID          string   `json:"jobId"`
	Eligible       bool     `json:"eligible"`
	Reasons        []string `json:"reasons"`
	AlreadyApplied bool     `json:"alreadyApplied"`
	CanApply       bool     `json:"canApply"`
	PlacementLock  bool     `json:"placementLock"`
}

// EligibleJobs lists the open jobs a student can apply to.
type EligibleJobs struct {
	Jobs          []Job `json:"jobs"`
	PlacementLock bool  `json:"placementLock"`
}

// StudentEligibility is one roster row for a job.
type StudentEligibility struct {
	StudentID  string   `json:"studentId"`
	UserID     string   `json:"userId"`
	FullName   string   `json:"fullName"`
	Email      string   `json:"email"`
	Department string   `json:"department"`
	CGPA       float64  `json:"cgpa"`
	Eligible   bool     `json:"eligible"`
	Reasons    []string `json:"reasons,omitempty"`
	HasApplied bool     `json:"hasApplied"`
}

// RosterSummary totals a roster.
type RosterSummary struct {
	TotalStudents int `json:"totalStudents"`
	Eligible      int `json:"eligible"`
	Ineligible    int `json:"ineligible"`
	Applied       int `json:"applied"`
	NotApplied    int `json:"notApplied"`
}

// EligibilityRoster is the staff view of every student's eligibility for a job.
type EligibilityRoster struct {
	Job      Job                  `json:"job"`
	Students []StudentEligibility `json:"students"`
	Summary  RosterSummary        `json:"summary"`
}
