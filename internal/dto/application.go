package dto

import (
	"time"

	"github.com/DPLnainar/placement-management-system-sub002/internal/models"
)

// ApplyRequest submits a student's application to a job.
type ApplyRequest struct {
	JobID           string `json:"jobId" validate:"required"`
	CoverLetter     string `json:"coverLetter" validate:"max=5000"`
	ResumeSubmitted bool   `json:"resumeSubmitted"`
}

// AddRoundRequest schedules an interview round.
type AddRoundRequest struct {
	RoundName       string           `json:"roundName" validate:"required,max=100"`
	RoundType       models.RoundType `json:"roundType" validate:"required,oneof=aptitude technical hr final gd other"`
	ScheduledDate   *time.Time       `json:"scheduledDate"`
	InterviewerName string           `json:"interviewerName" validate:"max=100"`
}

// UpdateApplicationStatusRequest moves an application to a new status.
// Status is matched case-insensitively; "PLACED" is accepted as offer_accepted.
type UpdateApplicationStatusRequest struct {
	Status           string                   `json:"status" validate:"required"`
	Round            *AddRoundRequest         `json:"roundData"`
	SelectionDetails *models.SelectionDetails `json:"selectionDetails"`
}

// UpdateRoundRequest records the outcome of one round.
type UpdateRoundRequest struct {
	Status   models.RoundStatus `json:"status" validate:"required,oneof=scheduled completed cleared rejected absent"`
	Score    *float64           `json:"score" validate:"omitempty,gte=0"`
	Feedback string             `json:"feedback" validate:"max=2000"`
}

// RejectApplicationRequest rejects an application with a reason.
type RejectApplicationRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

// ApplicationListQuery holds the query string of the application listing.
type ApplicationListQuery struct {
	JobID    string `form:"jobId"`
	Status   string `form:"status"`
	Page     int    `form:"page"`
	PageSize int    `form:"pageSize"`
}
