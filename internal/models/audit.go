package models

import "time"

// Audit actions recorded by the placement workflow.
const (
	AuditActionJobCreate           = "JOB_CREATE"
	AuditActionJobStatusChange     = "JOB_STATUS_CHANGE"
	AuditActionJobDeadlineExtend   = "JOB_DEADLINE_EXTEND"
	AuditActionApplicationCreate   = "APPLICATION_CREATE"
	AuditActionApplicationStatus   = "APPLICATION_STATUS_CHANGE"
	AuditActionApplicationReject   = "APPLICATION_REJECT"
	AuditActionApplicationWithdraw = "APPLICATION_WITHDRAW"
	AuditActionOfferAccept         = "OFFER_ACCEPT"
	AuditActionOfferWithdraw       = "OFFER_WITHDRAW"
	AuditActionOfferDecline        = "OFFER_DECLINE"
	AuditActionExportDownload      = "EXPORT_DOWNLOAD"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
