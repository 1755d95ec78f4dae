package pipeline

import (
	"context"
	"fmt"

	"github.com/quarrylabs/inquest/internal/events"
	"github.com/quarrylabs/inquest/internal/session"
)

// reportStage merges the drafts into one final report through a single
// streaming synthesis call. The committed report is the exact concatenation,
// in arrival order, of every report chunk emitted for the run.
//
// Missing plan or drafts is the tail end of the research stage's soft-failure
// path: record the shortfall in the history and finish without a report.
func (r *Run) reportStage(ctx context.Context) error {
	if !r.sess.HasPlan() || !r.sess.HasDrafts() {
		r.sess.AddMessage(session.RoleAssistant,
			"Missing plan or draft analyses; the final report cannot be generated.")
		return nil
	}

	if err := r.send(events.Event{
		Type:    events.TypeStatus,
		Content: "Generating final report...",
		Stage:   events.StageReport,
	}); err != nil {
		return err
	}

	prompt := synthesisPrompt(r.sess.Plan, r.sess.Drafts)
	report, err := r.streamTo(ctx, reportSystem, prompt, func(piece string) events.Event {
		return events.Event{
			Type:    events.TypeReport,
			Content: piece,
			Stage:   events.StageReport,
		}
	})
	if err != nil {
		return fmt.Errorf("synthesize report: %w", err)
	}

	r.sess.SetReport(report)
	r.sess.AddMessage(session.RoleAssistant,
		"Here is the final report synthesized from the draft analyses:\n\n"+report)
	return nil
}
