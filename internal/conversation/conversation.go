// Package conversation records call transcripts and their escalation
// flags.
package conversation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shubh-37/blown-salon-voice-agent/internal/models"
	"gorm.io/gorm"
)

// Service provides CRUD over call conversations.
type Service struct {
	db *gorm.DB

	// Now stamps transcript messages. Overridden in tests.
	Now func() time.Time
}

// NewService creates a conversation service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db, Now: time.Now}
}

// Create starts a new conversation for a customer call.
func (s *Service) Create(customerPhone string) (*models.Conversation, error) {
	if customerPhone == "" {
		return nil, fmt.Errorf("conversation: customer phone is required")
	}

	conv := models.Conversation{
		ID:            uuid.NewString(),
		CustomerPhone: customerPhone,
		Transcript:    []models.ConversationMessage{},
		CreatedAt:     s.Now(),
	}
	if err := s.db.Create(&conv).Error; err != nil {
		return nil, fmt.Errorf("conversation: create: %w", err)
	}
	return &conv, nil
}

// AppendMessage adds one utterance to a conversation's transcript.
// Returns false if the conversation does not exist.
func (s *Service) AppendMessage(id, role, content string) (bool, error) {
	if role != "user" && role != "agent" {
		return false, fmt.Errorf("conversation: role %q must be user or agent", role)
	}
	if content == "" {
		return false, fmt.Errorf("conversation: content is required")
	}

	var conv models.Conversation
	err := s.db.First(&conv, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("conversation: get %s: %w", id, err)
	}

	conv.Transcript = append(conv.Transcript, models.ConversationMessage{
		Role:      role,
		Content:   content,
		Timestamp: s.Now(),
	})
	if err := s.db.Model(&conv).Update("transcript", conv.Transcript).Error; err != nil {
		return false, fmt.Errorf("conversation: append to %s: %w", id, err)
	}
	return true, nil
}

// MarkEscalated flags a conversation as handed off to a supervisor.
// Returns false if the conversation does not exist.
func (s *Service) MarkEscalated(id string) (bool, error) {
	return s.setFlag(id, "escalated")
}

// MarkResolved flags a conversation's escalation as answered.
// Returns false if the conversation does not exist.
func (s *Service) MarkResolved(id string) (bool, error) {
	return s.setFlag(id, "resolved")
}

func (s *Service) setFlag(id, column string) (bool, error) {
	result := s.db.Model(&models.Conversation{}).
		Where("id = ?", id).
		Update(column, true)
	if result.Error != nil {
		return false, fmt.Errorf("conversation: mark %s %s: %w", id, column, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// Get returns a conversation by id, or nil if it does not exist.
func (s *Service) Get(id string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.First(&conv, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("conversation: get %s: %w", id, err)
	}
	return &conv, nil
}
