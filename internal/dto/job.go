package dto

import (
	"time"

	"github.com/DPLnainar/placement-management-system-sub002/internal/models"
)

// CreateJobRequest is the payload for posting a job.
type CreateJobRequest struct {
	Title       string                     `json:"title" validate:"required,max=200"`
	CompanyName string                     `json:"companyName" validate:"required,max=200"`
	Description string                     `json:"description" validate:"required"`
	Location    string                     `json:"location" validate:"required"`
	JobType     string                     `json:"jobType" validate:"omitempty,oneof=full-time internship part-time contract"`
	CTC         *float64                   `json:"ctc" validate:"omitempty,gte=0"`
	Salary      *float64                   `json:"salary" validate:"omitempty,gte=0"`
	Skills      []string                   `json:"skills" validate:"omitempty,dive,required"`
	Deadline    time.Time                  `json:"deadline" validate:"required"`
	Status      models.JobStatus           `json:"status" validate:"omitempty,oneof=draft active"`
	Eligibility models.EligibilityCriteria `json:"eligibility"`
}

// JobStatusRequest moves a job to another status.
type JobStatusRequest struct {
	Status models.JobStatus `json:"status" validate:"required,oneof=draft active inactive closed cancelled"`
}

// BulkJobStatusRequest applies one status change to many jobs.
type BulkJobStatusRequest struct {
	JobIDs []string         `json:"jobIds" validate:"required,min=1,dive,required"`
	Status models.JobStatus `json:"status" validate:"required,oneof=draft active inactive closed cancelled"`
}

// BulkJobStatusResponse reports how many jobs actually changed.
type BulkJobStatusResponse struct {
	Modified int `json:"modified"`
}

// ExtendDeadlineRequest moves a job's deadline.
type ExtendDeadlineRequest struct {
	Deadline time.Time `json:"deadline" validate:"required"`
}

// JobListQuery holds the query string of the job listing.
type JobListQuery struct {
	Status         string `form:"status"`
	JobType        string `form:"jobType"`
	Search         string `form:"search"`
	IncludeExpired bool   `form:"includeExpired"`
	Page           int    `form:"page"`
	PageSize       int    `form:"pageSize"`
}
