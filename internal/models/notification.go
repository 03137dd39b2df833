package models

import "time"

// NotificationKind identifies the event a notification reports.
type NotificationKind string

const (
	NotificationJobPosted            NotificationKind = "job_posted"
	NotificationApplicationSubmitted NotificationKind = "application_submitted"
	NotificationStatusUpdate         NotificationKind = "status_update"
	NotificationApplicationRejected  NotificationKind = "application_rejected"
	NotificationOfferUpdate          NotificationKind = "offer_update"
)

// Notification is the in-app copy of a dispatched notification.
type Notification struct {
	ID            string           `db:"id" json:"id"`
	UserID        string           `db:"user_id" json:"userId"`
	Kind          NotificationKind `db:"kind" json:"kind"`
	Title         string           `db:"title" json:"title"`
	Message       string           `db:"message" json:"message"`
	JobID         *string          `db:"job_id" json:"jobId,omitempty"`
	ApplicationID *string          `db:"application_id" json:"applicationId,omitempty"`
	IsRead        bool             `db:"is_read" json:"isRead"`
	CreatedAt     time.Time        `db:"created_at" json:"createdAt"`
}

// Email is a message handed to the mail relay.
type Email struct {
	To       string            `json:"to"`
	Subject  string            `json:"subject"`
	Template string            `json:"template"`
	Data     map[string]string `json:"data,omitempty"`
}
