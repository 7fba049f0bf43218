// Package knowledge owns the learned question/answer store that agent
// workers replicate from.
package knowledge

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shubh-37/blown-salon-voice-agent/internal/models"
	"gorm.io/gorm"
)

// Service provides knowledge-base creation, matching, and usage
// accounting over the store.
type Service struct {
	db      *gorm.DB
	matcher Matcher
}

// NewService creates a knowledge-base service with the default
// substring matcher.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db, matcher: SubstringMatcher{}}
}

// UseMatcher swaps the matching policy. The default policy is part of
// the replication contract; alternatives are opt-in.
func (s *Service) UseMatcher(m Matcher) {
	if m != nil {
		s.matcher = m
	}
}

// AddOpts holds optional parameters for a new entry.
type AddOpts struct {
	Category        string // defaults to "general"
	SourceRequestID string // back-reference to the help request, if any
}

// AddEntry appends a new entry with zero usage. Near-duplicate
// questions are never merged; every add is a new entry.
func (s *Service) AddEntry(question, answer string, opts AddOpts) (*models.KnowledgeBaseEntry, error) {
	if question == "" {
		return nil, fmt.Errorf("knowledge: question is required")
	}
	if answer == "" {
		return nil, fmt.Errorf("knowledge: answer is required")
	}

	category := opts.Category
	if category == "" {
		category = "general"
	}

	entry := models.KnowledgeBaseEntry{
		ID:                 uuid.NewString(),
		Question:           question,
		Answer:             answer,
		Category:           category,
		CreatedFromRequest: opts.SourceRequestID,
	}

	if err := s.db.Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("knowledge: add entry: %w", err)
	}
	return &entry, nil
}

// Match returns the first entry whose question matches the query under
// the active policy, or nil if none does. A hit increments the entry's
// usage count by exactly one.
func (s *Service) Match(question string) (*models.KnowledgeBaseEntry, error) {
	var entries []models.KnowledgeBaseEntry
	if err := s.db.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("knowledge: match: %w", err)
	}

	for i := range entries {
		if !s.matcher.Matches(question, &entries[i]) {
			continue
		}
		result := s.db.Model(&models.KnowledgeBaseEntry{}).
			Where("id = ?", entries[i].ID).
			UpdateColumn("usage_count", gorm.Expr("usage_count + ?", 1))
		if result.Error != nil {
			return nil, fmt.Errorf("knowledge: count usage for %s: %w", entries[i].ID, result.Error)
		}
		entries[i].UsageCount++
		return &entries[i], nil
	}
	return nil, nil
}

// List returns a full snapshot of the knowledge base, newest first.
func (s *Service) List() ([]models.KnowledgeBaseEntry, error) {
	var entries []models.KnowledgeBaseEntry
	if err := s.db.Order("created_at DESC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("knowledge: list: %w", err)
	}
	return entries, nil
}

// Get returns a single entry by id, or nil if it does not exist.
func (s *Service) Get(id string) (*models.KnowledgeBaseEntry, error) {
	var entry models.KnowledgeBaseEntry
	err := s.db.First(&entry, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("knowledge: get %s: %w", id, err)
	}
	return &entry, nil
}
