package models

import "time"

// ConversationMessage is a single utterance in a call transcript.
type ConversationMessage struct {
	Role      string    `json:"role"` // "user" or "agent"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is one customer call. The transcript is append-only;
// only the two boolean flags are ever mutated after creation.
type Conversation struct {
	ID            string                `gorm:"primaryKey;size:36" json:"id"`
	CustomerPhone string                `gorm:"size:32;not null;index" json:"customer_phone"`
	Transcript    []ConversationMessage `gorm:"serializer:json" json:"transcript"`
	Escalated     bool                  `gorm:"default:false" json:"escalated"`
	Resolved      bool                  `gorm:"default:false" json:"resolved"`
	CreatedAt     time.Time             `json:"created_at"`
}
