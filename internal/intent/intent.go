// Package intent tags queries with the answer shape they expect.
package intent

import (
	"regexp"
	"strings"

	"docchat/internal/model"
)

// Markers holds the keyword lists that drive classification. Multi-word
// markers match as substrings; single words match on word boundaries.
type Markers struct {
	FollowUp []string
	Summary  []string
	Detail   []string
}

// DefaultMarkers returns the built-in marker lists.
func DefaultMarkers() Markers {
	return Markers{
		FollowUp: []string{
			"tell me more", "more about", "what about", "how about",
			"what did you say", "who did you mention", "and what",
			"that person", "it", "its", "they", "them", "he", "she",
			"this", "that", "those", "also", "additionally",
			"previous", "previously", "before", "earlier", "above",
		},
		Summary: []string{
			"summarize", "summarise", "summary", "overview", "brief",
			"outline", "synopsis", "main points", "key points",
			"highlights", "overall picture",
		},
		Detail: []string{
			"details", "detailed", "comprehensive", "full info",
			"in depth", "thorough", "everything", "all information",
			"complete picture", "full description",
		},
	}
}

// Classifier assigns an Intent to a query. Classification is pure: no I/O,
// deterministic for identical input.
type Classifier struct {
	markers Markers
}

// New creates a classifier; empty marker lists fall back to the defaults.
func New(m Markers) *Classifier {
	def := DefaultMarkers()
	if len(m.FollowUp) == 0 {
		m.FollowUp = def.FollowUp
	}
	if len(m.Summary) == 0 {
		m.Summary = def.Summary
	}
	if len(m.Detail) == 0 {
		m.Detail = def.Detail
	}
	return &Classifier{markers: m}
}

// Classify tags a query. Follow-up markers take precedence over keyword
// rules but only apply when the session has prior turns; remaining rules
// resolve in order summary, detail, general.
func (c *Classifier) Classify(query string, history []model.Turn) model.Intent {
	q := strings.ToLower(query)
	words := wordSet(q)

	if len(history) > 0 && matchAny(q, words, c.markers.FollowUp) {
		return model.IntentFollowUp
	}
	if matchAny(q, words, c.markers.Summary) {
		return model.IntentSummary
	}
	if matchAny(q, words, c.markers.Detail) {
		return model.IntentDetail
	}
	return model.IntentGeneral
}

var wordRe = regexp.MustCompile(`[\pL\pN]+(?:['’][\pL]+)*`)

func wordSet(q string) map[string]struct{} {
	tokens := wordRe.FindAllString(q, -1)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

func matchAny(q string, words map[string]struct{}, markers []string) bool {
	for _, m := range markers {
		if strings.ContainsRune(m, ' ') {
			if strings.Contains(q, m) {
				return true
			}
			continue
		}
		if _, ok := words[m]; ok {
			return true
		}
	}
	return false
}
