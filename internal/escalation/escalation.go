// Package escalation owns the help-request lifecycle: create, resolve,
// timeout, and aggregate stats.
package escalation

import (
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shubh-37/blown-salon-voice-agent/internal/knowledge"
	"github.com/shubh-37/blown-salon-voice-agent/internal/models"
	"gorm.io/gorm"
)

// DefaultSupervisorID is assigned when a resolution names no supervisor.
const DefaultSupervisorID = "admin"

// Service manages help-request state transitions. The store's
// conditional update is the arbiter of the resolve/timeout race: both
// transitions update only rows still in pending, so exactly one wins.
type Service struct {
	db *gorm.DB
	kb *knowledge.Service

	// Now is the clock used for created_at/resolved_at stamps.
	// Overridden in tests.
	Now func() time.Time
}

// NewService creates a lifecycle service. kb may be nil, in which case
// resolutions do not feed the knowledge base.
func NewService(db *gorm.DB, kb *knowledge.Service) *Service {
	return &Service{db: db, kb: kb, Now: time.Now}
}

// Create opens a new pending help request.
func (s *Service) Create(customerPhone, question string, context map[string]any) (*models.HelpRequest, error) {
	if customerPhone == "" {
		return nil, fmt.Errorf("escalation: customer phone is required")
	}
	if question == "" {
		return nil, fmt.Errorf("escalation: question is required")
	}

	req := models.HelpRequest{
		ID:            uuid.NewString(),
		CustomerPhone: customerPhone,
		Question:      question,
		Context:       context,
		Status:        models.StatusPending,
		CreatedAt:     s.Now(),
	}

	if err := s.db.Create(&req).Error; err != nil {
		return nil, fmt.Errorf("escalation: create: %w", err)
	}
	return &req, nil
}

// Resolve transitions a pending request to resolved and records the
// supervisor's answer in the knowledge base. Returns ok=false when the
// request does not exist or already reached a terminal state; the
// knowledge-base side effect fires at most once per request because
// only the winning transition gets here.
func (s *Service) Resolve(id, response, supervisorID string) (bool, *models.KnowledgeBaseEntry, error) {
	if response == "" {
		return false, nil, fmt.Errorf("escalation: response is required")
	}
	if supervisorID == "" {
		supervisorID = DefaultSupervisorID
	}

	result := s.db.Model(&models.HelpRequest{}).
		Where("id = ? AND status = ?", id, models.StatusPending).
		Updates(map[string]interface{}{
			"status":              models.StatusResolved,
			"supervisor_response": response,
			"assigned_to":         supervisorID,
			"resolved_at":         s.Now(),
		})
	if result.Error != nil {
		return false, nil, fmt.Errorf("escalation: resolve %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return false, nil, nil
	}

	var entry *models.KnowledgeBaseEntry
	if s.kb != nil {
		req, err := s.Get(id)
		if err != nil || req == nil {
			return true, nil, err
		}
		entry, err = s.kb.AddEntry(req.Question, response, knowledge.AddOpts{SourceRequestID: id})
		if err != nil {
			// The resolution itself stands; the answer just was not learned.
			log.Printf("escalation: knowledge entry for %s: %v", id, err)
		}
	}
	return true, entry, nil
}

// Timeout transitions a pending request to timeout. resolved_at is set
// as a resolution-absence marker; no knowledge-base side effect.
// Returns false when the request does not exist or is already terminal.
func (s *Service) Timeout(id string) (bool, error) {
	result := s.db.Model(&models.HelpRequest{}).
		Where("id = ? AND status = ?", id, models.StatusPending).
		Updates(map[string]interface{}{
			"status":      models.StatusTimeout,
			"resolved_at": s.Now(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("escalation: timeout %s: %w", id, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// Get returns a request by id, or nil if it does not exist.
func (s *Service) Get(id string) (*models.HelpRequest, error) {
	var req models.HelpRequest
	err := s.db.First(&req, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("escalation: get %s: %w", id, err)
	}
	return &req, nil
}

// Pending returns all pending requests, newest first.
func (s *Service) Pending() ([]models.HelpRequest, error) {
	var reqs []models.HelpRequest
	if err := s.db.Where("status = ?", models.StatusPending).
		Order("created_at DESC").Find(&reqs).Error; err != nil {
		return nil, fmt.Errorf("escalation: pending: %w", err)
	}
	return reqs, nil
}

// History returns all requests regardless of status, newest first.
func (s *Service) History() ([]models.HelpRequest, error) {
	var reqs []models.HelpRequest
	if err := s.db.Order("created_at DESC").Find(&reqs).Error; err != nil {
		return nil, fmt.Errorf("escalation: history: %w", err)
	}
	return reqs, nil
}

// Stats aggregates request counts and the mean resolution time in
// minutes over resolved requests.
func (s *Service) Stats() (*models.RequestStats, error) {
	var reqs []models.HelpRequest
	if err := s.db.Find(&reqs).Error; err != nil {
		return nil, fmt.Errorf("escalation: stats: %w", err)
	}

	stats := models.RequestStats{}
	var totalMinutes float64
	for _, req := range reqs {
		stats.Total++
		switch req.Status {
		case models.StatusPending:
			stats.Pending++
		case models.StatusResolved:
			stats.Resolved++
			if req.ResolvedAt != nil {
				totalMinutes += req.ResolvedAt.Sub(req.CreatedAt).Minutes()
			}
		case models.StatusTimeout:
			stats.Timeout++
		}
	}
	if stats.Resolved > 0 {
		avg := totalMinutes / float64(stats.Resolved)
		stats.AvgResolutionMinutes = math.Round(avg*100) / 100
	}
	return &stats, nil
}
