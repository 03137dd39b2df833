package dto

// RosterQuery narrows the eligibility roster of a job.
type RosterQuery struct {
	IncludeIneligible bool   `form:"includeIneligible" json:"includeIneligible"`
	Department        string `form:"department" json:"department"`
}

// BulkCheckRequest evaluates a set of students against one job.
type BulkCheckRequest struct {
	JobID      string   `json:"jobId" validate:"required"`
	StudentIDs []string `json:"studentIds" validate:"required,min=1,max=500,dive,required"`
}

// ExportRosterRequest renders a job's roster to a downloadable file.
type ExportRosterRequest struct {
	Format            string `json:"format" validate:"required,oneof=csv pdf"`
	IncludeIneligible bool   `json:"includeIneligible"`
	Department        string `json:"department"`
}

// ExportResponse points at a rendered export.
type ExportResponse struct {
	URL       string `json:"url"`
	Format    string `json:"format"`
	ExpiresAt string `json:"expiresAt"`
}
