package pipeline

import (
	"context"
	"fmt"

	"github.com/quarrylabs/inquest/internal/events"
	"github.com/quarrylabs/inquest/internal/session"
)

// researchStage analyzes each planned sub-question in order, streaming every
// fragment tagged with the sub-question's 1-based index. Sub-questions run
// sequentially: all chunks share one connection, so interleaving concurrent
// streams would make the index tags ambiguous on the wire.
//
// An absent or empty plan is a soft failure: the stage records a warning
// message in the history and returns without drafts, and the run still ends
// in a complete event.
func (r *Run) researchStage(ctx context.Context) error {
	if !r.sess.HasPlan() {
		r.sess.AddMessage(session.RoleAssistant,
			"No research plan was found, so the analysis step was skipped.")
		return nil
	}

	questions := r.sess.Plan
	total := len(questions)
	drafts := make([]string, 0, total)

	for i, q := range questions {
		index := i + 1
		if err := r.send(events.Event{
			Type:           events.TypeStatus,
			Content:        fmt.Sprintf("Analyzing sub-question %d: %s", index, q),
			Stage:          events.StageResearch,
			QuestionIndex:  index,
			TotalQuestions: total,
		}); err != nil {
			return err
		}

		draft, err := r.streamTo(ctx, researchSystem, subQuestionPrompt(index, q), func(piece string) events.Event {
			return events.Event{
				Type:           events.TypeResearch,
				Content:        piece,
				Stage:          events.StageResearch,
				QuestionIndex:  index,
				Question:       q,
				TotalQuestions: total,
			}
		})
		if err != nil {
			return fmt.Errorf("analyze sub-question %d: %w", index, err)
		}
		drafts = append(drafts, draft)
	}

	r.sess.SetDrafts(drafts)
	r.sess.AddMessage(session.RoleAssistant,
		"I have written a draft analysis for each sub-question.")
	return nil
}
