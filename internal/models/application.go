package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// ApplicationStatus is the flat set of application states.
type ApplicationStatus string

const (
	ApplicationPending            ApplicationStatus = "pending"
	ApplicationUnderReview        ApplicationStatus = "under_review"
	ApplicationShortlisted        ApplicationStatus = "shortlisted"
	ApplicationAptitudeScheduled  ApplicationStatus = "aptitude_scheduled"
	ApplicationAptitudeCleared    ApplicationStatus = "aptitude_cleared"
	ApplicationAptitudeRejected   ApplicationStatus = "aptitude_rejected"
	ApplicationTechnicalScheduled ApplicationStatus = "technical_scheduled"
	ApplicationTechnicalCleared   ApplicationStatus = "technical_cleared"
	ApplicationTechnicalRejected  ApplicationStatus = "technical_rejected"
	ApplicationHRScheduled        ApplicationStatus = "hr_scheduled"
	ApplicationHRCleared          ApplicationStatus = "hr_cleared"
	ApplicationHRRejected         ApplicationStatus = "hr_rejected"
	ApplicationSelected           ApplicationStatus = "selected"
	ApplicationOffered            ApplicationStatus = "offered"
	ApplicationOfferAccepted      ApplicationStatus = "offer_accepted"
	ApplicationOfferRejected      ApplicationStatus = "offer_rejected"
	ApplicationJoined             ApplicationStatus = "joined"
	ApplicationRejected           ApplicationStatus = "rejected"
	ApplicationWithdrawn          ApplicationStatus = "withdrawn"
)

// legacyPlaced is accepted on input and stored as offer_accepted.
const legacyPlaced = "placed"

var applicationStatuses = map[ApplicationStatus]struct{}{
	ApplicationPending: {}, ApplicationUnderReview: {}, ApplicationShortlisted: {},
	ApplicationAptitudeScheduled: {}, ApplicationAptitudeCleared: {}, ApplicationAptitudeRejected: {},
	ApplicationTechnicalScheduled: {}, ApplicationTechnicalCleared: {}, ApplicationTechnicalRejected: {},
	ApplicationHRScheduled: {}, ApplicationHRCleared: {}, ApplicationHRRejected: {},
	ApplicationSelected: {}, ApplicationOffered: {}, ApplicationOfferAccepted: {},
	ApplicationOfferRejected: {}, ApplicationJoined: {}, ApplicationRejected: {}, ApplicationWithdrawn: {},
}

// ParseApplicationStatus matches raw case-insensitively. "PLACED" maps to offer_accepted.
func ParseApplicationStatus(raw string) (ApplicationStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == legacyPlaced {
		return ApplicationOfferAccepted, nil
	}
	status := ApplicationStatus(normalized)
	if _, ok := applicationStatuses[status]; !ok {
		return "", fmt.Errorf("unknown application status %q", raw)
	}
	return status, nil
}

// Places reports whether entering the status marks the student placed.
func (s ApplicationStatus) Places() bool {
	return s == ApplicationOfferAccepted || s == ApplicationJoined
}

// Final reports whether the application has left the pipeline for good.
func (s ApplicationStatus) Final() bool {
	switch s {
	case ApplicationAptitudeRejected, ApplicationTechnicalRejected, ApplicationHRRejected,
		ApplicationOfferRejected, ApplicationJoined, ApplicationRejected, ApplicationWithdrawn:
		return true
	}
	return false
}

// RoundName is the pipeline stage recorded as currentRound.
type RoundName string

const (
	RoundApplication RoundName = "application"
	RoundAptitude    RoundName = "aptitude"
	RoundTechnical   RoundName = "technical"
	RoundHR          RoundName = "hr"
	RoundFinal       RoundName = "final"
)

// RoundType is the kind of interview round being scheduled.
type RoundType string

const (
	RoundTypeAptitude  RoundType = "aptitude"
	RoundTypeTechnical RoundType = "technical"
	RoundTypeHR        RoundType = "hr"
	RoundTypeFinal     RoundType = "final"
	RoundTypeGD        RoundType = "gd"
	RoundTypeOther     RoundType = "other"
)

// Stage maps a round type to the currentRound it advances to. gd and other rounds do not move the stage.
func (t RoundType) Stage() (RoundName, bool) {
	switch t {
	case RoundTypeAptitude:
		return RoundAptitude, true
	case RoundTypeTechnical:
		return RoundTechnical, true
	case RoundTypeHR:
		return RoundHR, true
	case RoundTypeFinal:
		return RoundFinal, true
	}
	return "", false
}

// RoundStatus is a round's own sub-status, independent of the application status.
type RoundStatus string

const (
	RoundScheduled RoundStatus = "scheduled"
	RoundCompleted RoundStatus = "completed"
	RoundCleared   RoundStatus = "cleared"
	RoundRejected  RoundStatus = "rejected"
	RoundAbsent    RoundStatus = "absent"
)

// Round is one interview round.
type Round struct {
	RoundName       string      `json:"roundName"`
	RoundType       RoundType   `json:"roundType"`
	ScheduledDate   *time.Time  `json:"scheduledDate,omitempty"`
	CompletedDate   *time.Time  `json:"completedDate,omitempty"`
	Status          RoundStatus `json:"status"`
	Score           *float64    `json:"score,omitempty"`
	Feedback        string      `json:"feedback,omitempty"`
	InterviewerName string      `json:"interviewerName,omitempty"`
}

// Rounds is stored as a JSONB array in insertion order.
type Rounds []Round

// Scan implements sql.Scanner.
func (r *Rounds) Scan(src interface{}) error { return scanJSON(src, r) }

// Value implements driver.Valuer.
func (r Rounds) Value() (driver.Value, error) {
	if r == nil {
		return []byte("[]"), nil
	}
	return jsonValue(r)
}

// EligibilitySnapshot is the verdict recorded when the application was created. It is never recomputed.
type EligibilitySnapshot struct {
	IsEligible        bool      `json:"isEligible"`
	EligibilityIssues []string  `json:"eligibilityIssues"`
	CheckedDate       time.Time `json:"checkedDate"`
}

// Scan implements sql.Scanner.
func (e *EligibilitySnapshot) Scan(src interface{}) error { return scanJSON(src, e) }

// Value implements driver.Valuer.
func (e EligibilitySnapshot) Value() (driver.Value, error) { return jsonValue(e) }

// SelectionDetails captures the employer's selection paperwork.
type SelectionDetails struct {
	OfferLetterURL *string    `json:"offerLetterUrl,omitempty"`
	OfferedCTC     *float64   `json:"offeredCtc,omitempty"`
	JoiningDate    *time.Time `json:"joiningDate,omitempty"`
	Designation    string     `json:"designation,omitempty"`
}

// Scan implements sql.Scanner.
func (s *SelectionDetails) Scan(src interface{}) error { return scanJSON(src, s) }

// Value implements driver.Valuer.
func (s SelectionDetails) Value() (driver.Value, error) { return jsonValue(s) }

// Application joins a student to a job. StudentID holds the student's user id.
type Application struct {
	ID               string              `db:"id" json:"id"`
	JobID            string              `db:"job_id" json:"jobId"`
	StudentID        string              `db:"student_id" json:"studentId"`
	CollegeID        string              `db:"college_id" json:"collegeId"`
	Status           ApplicationStatus   `db:"status" json:"status"`
	CurrentRound     RoundName           `db:"current_round" json:"currentRound"`
	Rounds           Rounds              `db:"rounds" json:"rounds"`
	EligibilityCheck EligibilitySnapshot `db:"eligibility_check" json:"eligibilityCheck"`
	SelectionDetails SelectionDetails    `db:"selection_details" json:"selectionDetails"`
	RejectionReason  *string             `db:"rejection_reason" json:"rejectionReason,omitempty"`
	CoverLetter      string              `db:"cover_letter" json:"coverLetter,omitempty"`
	ResumeSubmitted  bool                `db:"resume_submitted" json:"resumeSubmitted"`
	AppliedAt        time.Time           `db:"applied_at" json:"appliedAt"`
	LastUpdatedBy    *string             `db:"last_updated_by" json:"lastUpdatedBy,omitempty"`
	CreatedAt        time.Time           `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time           `db:"updated_at" json:"updatedAt"`
}

// ApplicationFilter narrows application listings.
type ApplicationFilter struct {
	CollegeID string
	JobID     string
	StudentID string
	Status    []ApplicationStatus
	Page      int
	PageSize  int
}
