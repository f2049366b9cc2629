package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"docchat/internal/model"
)

func history(n int) []model.Turn {
	turns := make([]model.Turn, n)
	for i := range turns {
		turns[i] = model.Turn{Query: "q", Answer: "a"}
	}
	return turns
}

func TestClassify_Keywords(t *testing.T) {
	c := New(Markers{})

	tests := []struct {
		query string
		want  model.Intent
	}{
		{"Give me a summary of the testing phases", model.IntentSummary},
		{"Provide an overview of the project", model.IntentSummary},
		{"Summarize the architecture section", model.IntentSummary},
		{"What are the main points?", model.IntentSummary},
		{"Tell me all the details about the architecture", model.IntentDetail},
		{"I need a comprehensive description", model.IntentDetail},
		{"Explain everything in the onboarding doc", model.IntentDetail},
		{"Who is the project lead?", model.IntentGeneral},
		{"When does the migration start?", model.IntentGeneral},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.Classify(tt.query, nil), "query: %s", tt.query)
	}
}

func TestClassify_FollowUpPrecedence(t *testing.T) {
	c := New(Markers{})

	// Follow-up markers win over keyword rules when history exists, even
	// when the rest of the query contains no trigger keyword.
	got := c.Classify("what about the testing phase", history(1))
	assert.Equal(t, model.IntentFollowUp, got)

	// A summary keyword does not override the follow-up rule.
	got = c.Classify("tell me more about the summary section", history(2))
	assert.Equal(t, model.IntentFollowUp, got)

	// Pronoun references resolve to follow_up with history.
	got = c.Classify("What about its dependencies?", history(1))
	assert.Equal(t, model.IntentFollowUp, got)
}

func TestClassify_FollowUpRequiresHistory(t *testing.T) {
	c := New(Markers{})

	// Without prior turns the follow-up rule cannot fire.
	got := c.Classify("what about the testing phase", nil)
	assert.Equal(t, model.IntentGeneral, got)

	got = c.Classify("tell me more about the summary", nil)
	assert.Equal(t, model.IntentSummary, got)
}

func TestClassify_WordBoundaries(t *testing.T) {
	c := New(Markers{})

	// "Italy" must not trigger the pronoun marker "it".
	got := c.Classify("List companies based in Italy", history(1))
	assert.Equal(t, model.IntentGeneral, got)

	// "it" as a standalone word does.
	got = c.Classify("where is it deployed", history(1))
	assert.Equal(t, model.IntentFollowUp, got)
}

func TestClassify_CaseInsensitive(t *testing.T) {
	c := New(Markers{})
	assert.Equal(t, model.IntentSummary, c.Classify("GIVE ME A SUMMARY", nil))
	assert.Equal(t, model.IntentDetail, c.Classify("ALL THE DETAILS PLEASE", nil))
}

func TestClassify_Deterministic(t *testing.T) {
	c := New(Markers{})
	h := history(1)
	first := c.Classify("what about the testing phase", h)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, c.Classify("what about the testing phase", h))
	}
}

func TestClassify_CustomMarkers(t *testing.T) {
	c := New(Markers{Summary: []string{"recap"}})
	assert.Equal(t, model.IntentSummary, c.Classify("give me a recap", nil))
	// Custom list replaces the default one.
	assert.Equal(t, model.IntentGeneral, c.Classify("give me a summary", nil))
	// Other lists keep their defaults.
	assert.Equal(t, model.IntentDetail, c.Classify("all the details", nil))
}
