package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesisPromptPairsInOrder(t *testing.T) {
	prompt := synthesisPrompt(
		[]string{"what", "why"},
		[]string{"what-draft", "why-draft"},
	)
	assert.Contains(t, prompt, "[Sub-question 1] what\n[Draft] what-draft")
	assert.Contains(t, prompt, "[Sub-question 2] why\n[Draft] why-draft")
	assert.Less(t,
		indexOf(prompt, "what-draft"),
		indexOf(prompt, "why-draft"),
	)
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func TestPlanSchemaValidate(t *testing.T) {
	cases := []struct {
		name      string
		questions []string
		wantErr   bool
	}{
		{"empty is allowed", nil, false},
		{"one question", []string{"a"}, false},
		{"three questions", []string{"a", "b", "c"}, false},
		{"four questions", []string{"a", "b", "c", "d"}, true},
		{"blank question", []string{"a", "   "}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &planSchema{Questions: tc.questions}
			err := p.Validate()
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
