package models

import "time"

// KnowledgeBaseEntry is a learned question/answer pair. Entries are
// appended on supervisor resolution or manual add and never deleted in
// normal operation. UsageCount only ever grows.
type KnowledgeBaseEntry struct {
	ID                 string    `gorm:"primaryKey;size:36" json:"id"`
	Question           string    `gorm:"type:text;not null" json:"question"`
	Answer             string    `gorm:"type:text;not null" json:"answer"`
	Category           string    `gorm:"size:64;default:general" json:"category"`
	CreatedFromRequest string    `gorm:"size:36" json:"created_from_request,omitempty"`
	UsageCount         int       `gorm:"default:0" json:"usage_count"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
