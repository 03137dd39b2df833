package models

import (
	"database/sql/driver"
	"time"
)

// VerificationStatus tracks staff review of a student profile.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "PENDING"
	VerificationVerified VerificationStatus = "VERIFIED"
	VerificationRejected VerificationStatus = "REJECTED"
)

// PlacementStatus is the student's standing in the placement drive.
type PlacementStatus string

const (
	PlacementStatusEligible    PlacementStatus = "eligible"
	PlacementStatusNotEligible PlacementStatus = "not_eligible"
	PlacementStatusNotPlaced   PlacementStatus = "not_placed"
	PlacementStatusPlaced      PlacementStatus = "placed"
	PlacementStatusOptedOut    PlacementStatus = "opted_out"
	PlacementStatusBarred      PlacementStatus = "barred"
)

// Blocking reports whether the status bars the student from every job.
func (s PlacementStatus) Blocking() bool {
	switch s {
	case PlacementStatusPlaced, PlacementStatusBarred, PlacementStatusOptedOut:
		return true
	}
	return false
}

// SemesterRecord is one semester of the academic record.
type SemesterRecord struct {
	Semester int     `json:"semester"`
	SGPA     float64 `json:"sgpa"`
	Backlogs int     `json:"backlogs"`
}

// SemesterRecords is stored as a JSONB array.
type SemesterRecords []SemesterRecord

// Scan implements sql.Scanner.
func (r *SemesterRecords) Scan(src interface{}) error { return scanJSON(src, r) }

// Value implements driver.Valuer.
func (r SemesterRecords) Value() (driver.Value, error) {
	if r == nil {
		return []byte("[]"), nil
	}
	return jsonValue(r)
}

// Placement mirrors the accepted offer once a student is placed.
type Placement struct {
	Placed      bool       `db:"placed" json:"placed"`
	CompanyName *string    `db:"placement_company" json:"companyName,omitempty"`
	JobID       *string    `db:"placement_job_id" json:"jobId,omitempty"`
	Package     *float64   `db:"placement_package" json:"package,omitempty"`
	PlacedAt    *time.Time `db:"placed_at" json:"placedAt,omitempty"`
}

// Student is the academic profile evaluated for eligibility.
type Student struct {
	ID                          string             `db:"id" json:"id"`
	UserID                      string             `db:"user_id" json:"userId"`
	CollegeID                   string             `db:"college_id" json:"collegeId"`
	FullName                    string             `db:"full_name" json:"fullName"`
	Email                       string             `db:"email" json:"email"`
	Department                  string             `db:"department" json:"department"`
	TenthPercent                float64            `db:"tenth_percent" json:"tenthPercent"`
	TwelfthPercent              float64            `db:"twelfth_percent" json:"twelfthPercent"`
	CGPA                        *float64           `db:"cgpa" json:"cgpa,omitempty"`
	GraduationCGPA              *float64           `db:"graduation_cgpa" json:"graduationCgpa,omitempty"`
	CurrentBacklogCount         int                `db:"current_backlog_count" json:"currentBacklogCount"`
	SemesterRecords             SemesterRecords    `db:"semester_records" json:"semesterRecords"`
	ArrearHistory               string             `db:"arrear_history" json:"arrearHistory,omitempty"`
	VerificationStatus          VerificationStatus `db:"verification_status" json:"verificationStatus"`
	VerificationRejectionReason *string            `db:"verification_rejection_reason" json:"verificationRejectionReason,omitempty"`
	PlacementStatus             PlacementStatus    `db:"placement_status" json:"placementStatus"`

	Placement `json:"placement"`

	Offers    []Offer   `db:"-" json:"offers"`
	Version   int       `db:"version" json:"version"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// HistoricalBacklogTotal sums backlogs across every recorded semester, resolved or not.
// ArrearHistory is display text and never contributes.
func (s *Student) HistoricalBacklogTotal() int {
	total := 0
	for _, rec := range s.SemesterRecords {
		total += rec.Backlogs
	}
	return total
}

// EffectiveCGPA is the better of the current and graduation CGPA, missing values counting as 0.
func (s *Student) EffectiveCGPA() float64 {
	var cgpa, grad float64
	if s.CGPA != nil {
		cgpa = *s.CGPA
	}
	if s.GraduationCGPA != nil {
		grad = *s.GraduationCGPA
	}
	if grad > cgpa {
		return grad
	}
	return cgpa
}

// AcceptedOffer returns the accepted offer, if any.
func (s *Student) AcceptedOffer() *Offer {
	for i := range s.Offers {
		if s.Offers[i].Status == OfferStatusAccepted {
			return &s.Offers[i]
		}
	}
	return nil
}

// StudentFilter narrows college roster reads.
type StudentFilter struct {
	CollegeID  string
	Department string
	UserIDs    []string
}

// OfferStatus is the lifecycle state of an offer.
type OfferStatus string

const (
	OfferStatusPending  OfferStatus = "pending"
	OfferStatusAccepted OfferStatus = "accepted"
	OfferStatusRejected OfferStatus = "rejected"
	// OfferStatusWithdrawn is reserved for employer retraction.
	OfferStatusWithdrawn OfferStatus = "withdrawn"
)

// Offer is a job offer held by a student.
type Offer struct {
	ID             string      `db:"id" json:"id"`
	StudentID      string      `db:"student_id" json:"-"`
	JobID          string      `db:"job_id" json:"jobId"`
	CompanyName    string      `db:"company_name" json:"companyName"`
	Package        float64     `db:"package" json:"package"`
	OfferDate      time.Time   `db:"offer_date" json:"offerDate"`
	OfferLetterURL *string     `db:"offer_letter_url" json:"offerLetterUrl,omitempty"`
	Status         OfferStatus `db:"status" json:"status"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updatedAt"`
}

// PlacementCard is the student-facing summary of offers and placement.
type PlacementCard struct {
	PlacementStatus PlacementStatus `json:"placementStatus"`
	Placement       Placement       `json:"placement"`
	Offers          []Offer         `json:"offers"`
	CanApply        bool            `json:"canApply"`
}
