package knowledge

import (
	"strings"

	"github.com/shubh-37/blown-salon-voice-agent/internal/models"
)

// Matcher decides whether a stored entry answers a customer question.
type Matcher interface {
	Matches(question string, entry *models.KnowledgeBaseEntry) bool
}

// SubstringMatcher is the default policy: case-insensitive
// bidirectional substring containment between the query and the stored
// question. Deliberately naive; agent caches apply the same policy, so
// changing it here changes replication behavior.
type SubstringMatcher struct{}

// Matches reports whether either string contains the other, case-folded.
func (SubstringMatcher) Matches(question string, entry *models.KnowledgeBaseEntry) bool {
	q := strings.ToLower(question)
	k := strings.ToLower(entry.Question)
	if q == "" || k == "" {
		return false
	}
	return strings.Contains(q, k) || strings.Contains(k, q)
}
