package models

import "time"

// HelpRequest status values. Status is monotonic: once a request is
// resolved or timed out it never re-enters pending.
const (
	StatusPending  = "pending"
	StatusResolved = "resolved"
	StatusTimeout  = "timeout"
)

// HelpRequest is a customer question the voice agent could not answer,
// escalated to a human supervisor.
type HelpRequest struct {
	ID                 string         `gorm:"primaryKey;size:36" json:"id"`
	CustomerPhone      string         `gorm:"size:32;not null" json:"customer_phone"`
	Question           string         `gorm:"type:text;not null" json:"question"`
	Context            map[string]any `gorm:"serializer:json" json:"context,omitempty"`
	Status             string         `gorm:"size:16;default:pending;index" json:"status"`
	CreatedAt          time.Time      `json:"created_at"`
	ResolvedAt         *time.Time     `json:"resolved_at,omitempty"`
	SupervisorResponse string         `gorm:"type:text" json:"supervisor_response,omitempty"`
	AssignedTo         string         `gorm:"size:64" json:"assigned_to,omitempty"`
}
