package pipeline

import (
	"context"
	"fmt"

	"github.com/quarrylabs/inquest/internal/events"
	"github.com/quarrylabs/inquest/internal/session"
)

// planStage narrates a decomposition of the question as streamed plan events,
// then issues a separate structured call to obtain the machine-readable
// sub-question list. The plan is never parsed out of the narration text.
// Nothing is committed to the session unless both calls succeed.
func (r *Run) planStage(ctx context.Context) error {
	question := r.sess.LastUserMessage()

	if err := r.send(events.Event{
		Type:    events.TypeStatus,
		Content: "Generating research plan...",
		Stage:   events.StagePlan,
	}); err != nil {
		return err
	}

	narration, err := r.streamTo(ctx, planNarrationSystem, question, func(piece string) events.Event {
		return events.Event{
			Type:    events.TypePlan,
			Content: piece,
			Stage:   events.StagePlan,
		}
	})
	if err != nil {
		return fmt.Errorf("narrate plan: %w", err)
	}

	var plan planSchema
	if err := r.gen.StructuredComplete(ctx, planStructuredSystem, question, &plan); err != nil {
		return fmt.Errorf("decompose question: %w", err)
	}

	r.sess.SetPlan(plan.Questions)
	r.sess.AddMessage(session.RoleAssistant,
		"I will research the following sub-questions:\n"+narration)
	return nil
}
