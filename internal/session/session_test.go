package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSeedsHistory(t *testing.T) {
	s := New("what is entropy?")
	require.NotEmpty(t, s.ID)
	require.Len(t, s.History, 1)
	assert.Equal(t, RoleUser, s.History[0].Role)
	assert.Equal(t, "what is entropy?", s.History[0].Content)
	assert.Equal(t, "what is entropy?", s.LastUserMessage())
}

func TestHistoryIsAppendOnly(t *testing.T) {
	s := New("q")
	s.AddMessage(RoleAssistant, "a1")
	s.AddMessage(RoleUser, "q2")
	s.AddMessage(RoleAssistant, "a2")

	require.Len(t, s.History, 4)
	assert.Equal(t, []string{"q", "a1", "q2", "a2"}, s.MessageContents())
	assert.Equal(t, "q2", s.LastUserMessage())
}

func TestPlanCommitsOnce(t *testing.T) {
	s := New("q")
	assert.False(t, s.HasPlan())

	s.SetPlan([]string{"a", "b"})
	require.True(t, s.HasPlan())
	assert.Equal(t, []string{"a", "b"}, s.Plan)

	// A second commit is ignored; no stage revises another's output.
	s.SetPlan([]string{"x"})
	assert.Equal(t, []string{"a", "b"}, s.Plan)
}

func TestEmptyPlanIsCommittedButNotPresent(t *testing.T) {
	s := New("q")
	s.SetPlan(nil)
	assert.False(t, s.HasPlan())
	assert.NotNil(t, s.Plan)
	assert.Empty(t, s.Plan)
}

func TestDraftsAndReportCommitOnce(t *testing.T) {
	s := New("q")
	assert.False(t, s.HasDrafts())
	assert.False(t, s.HasReport())

	s.SetDrafts([]string{"d1"})
	s.SetDrafts([]string{"other"})
	assert.Equal(t, []string{"d1"}, s.Drafts)

	s.SetReport("final")
	s.SetReport("overwrite attempt")
	assert.Equal(t, "final", s.Report)
	assert.True(t, s.HasReport())
}
