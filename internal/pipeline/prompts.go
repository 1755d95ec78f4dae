package pipeline

import (
	"fmt"
	"strings"
)

// maxSubQuestions bounds how many sub-questions a plan may carry.
const maxSubQuestions = 3

const planNarrationSystem = `You are a research planning assistant.
Break the user's question down into 1-3 key research sub-questions.
The sub-questions must be specific, complementary, and cover the core dimensions of the original question.
Narrate your plan directly, explaining which sub-questions you will investigate.`

const planStructuredSystem = `You are a research planning assistant.
Break the user's question down into 1-3 key research sub-questions.
The sub-questions must be specific, complementary, and cover the core dimensions of the original question.
Respond with a JSON object of the form {"questions": ["..."]} holding the sub-question strings.`

const researchSystem = `You are a rigorous research assistant.
Write an in-depth analysis of the given sub-question, covering background, key factors, current state, and open problems or challenges.
Do not write a full report; write the analysis paragraph for this sub-question only.`

const reportSystem = `You are a writer who produces well-structured research reports.
You are given several sub-questions together with draft analyses. Merge them into one complete report.
Requirements:
1. Structure the report with an introduction, a body, and a conclusion or outlook.
2. Organize the body by sub-question or theme.
3. Keep the language natural and the logic clear; do not copy the drafts sentence by sentence - rewrite and blend them.
4. Do not add hard facts that are absent from the drafts; reasonable summarization and generalization are fine.`

// subQuestionPrompt is the user prompt for one research analysis call.
func subQuestionPrompt(index int, question string) string {
	return fmt.Sprintf("Sub-question %d: %s", index, question)
}

// synthesisPrompt pairs each sub-question with its draft, in order, for the
// final report call.
func synthesisPrompt(questions, drafts []string) string {
	bullets := make([]string, 0, len(questions))
	for i, q := range questions {
		bullets = append(bullets, fmt.Sprintf("[Sub-question %d] %s\n[Draft] %s", i+1, q, drafts[i]))
	}
	return "Here are the sub-questions and their draft analyses. Produce the final report from them:\n\n" +
		strings.Join(bullets, "\n\n")
}

// planSchema is the structured-output contract for question decomposition.
// Zero questions is valid: an empty decomposition is handled downstream as a
// soft failure, not rejected here.
type planSchema struct {
	Questions []string `json:"questions"`
}

// Validate enforces the schema bounds: at most three sub-questions, none
// blank.
func (p *planSchema) Validate() error {
	if len(p.Questions) > maxSubQuestions {
		return fmt.Errorf("plan has %d sub-questions, limit is %d", len(p.Questions), maxSubQuestions)
	}
	for i, q := range p.Questions {
		if strings.TrimSpace(q) == "" {
			return fmt.Errorf("sub-question %d is empty", i+1)
		}
	}
	return nil
}
