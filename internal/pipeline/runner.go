// Package pipeline implements the three-stage research pipeline: decompose a
// question into sub-questions, analyze each one, and synthesize a final
// report, streaming every generated fragment to the caller's event sink as it
// arrives.
package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/quarrylabs/inquest/internal/events"
	"github.com/quarrylabs/inquest/internal/llm"
	"github.com/quarrylabs/inquest/internal/metrics"
	"github.com/quarrylabs/inquest/internal/session"
	"github.com/quarrylabs/inquest/internal/tracing"
)

// Generator is the generation capability the pipeline consumes: a streaming
// free-text completion and a structured completion validated against a schema
// type. *llm.Client satisfies it.
type Generator interface {
	StreamComplete(ctx context.Context, systemPrompt, userPrompt string) (<-chan llm.Fragment, error)
	StructuredComplete(ctx context.Context, systemPrompt, userPrompt string, out any) error
}

// State is a pipeline run's position in the stage sequence. Runs only move
// forward; Failed is absorbing.
type State int

const (
	StateStart State = iota
	StatePlanning
	StateResearching
	StateReporting
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StatePlanning:
		return "planning"
	case StateResearching:
		return "researching"
	case StateReporting:
		return "reporting"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Pipeline builds runs. It is safe for concurrent use; all per-run state
// lives on the Run.
type Pipeline struct {
	gen    Generator
	logger *zap.Logger
}

// New creates a pipeline backed by the given generator.
func New(gen Generator, logger *zap.Logger) *Pipeline {
	return &Pipeline{gen: gen, logger: logger}
}

// Run executes the full pipeline for one question, owning sess for the
// duration and emitting events to sink. It is the convenience wrapper around
// NewRun().Execute() used by callers that do not inspect run state.
func (p *Pipeline) Run(ctx context.Context, sess *session.Session, sink events.Sink) error {
	return p.NewRun(sess, sink).Execute(ctx)
}

// Run is a single execution of the pipeline for one question. A Run is used
// once and discarded; it is not safe for concurrent use.
type Run struct {
	gen    Generator
	logger *zap.Logger
	sess   *session.Session
	sink   events.Sink
	state  State
}

// NewRun prepares a run over sess that emits to sink.
func (p *Pipeline) NewRun(sess *session.Session, sink events.Sink) *Run {
	return &Run{
		gen:    p.gen,
		logger: p.logger.With(zap.String("session_id", sess.ID)),
		sess:   sess,
		sink:   sink,
		state:  StateStart,
	}
}

// State returns the run's current state.
func (r *Run) State() State {
	return r.state
}

type stage struct {
	state State
	name  string
	fn    func(context.Context) error
}

// Execute drives the run through plan, research, and report in order. Each
// stage runs to completion before the next begins; the first stage error
// moves the run to Failed, emits exactly one error event, and skips the
// remaining stages. A sink failure also fails the run but emits nothing,
// since the peer is gone.
func (r *Run) Execute(ctx context.Context) (err error) {
	metrics.RunsStarted.Inc()
	started := time.Now()
	defer func() {
		metrics.RunDuration.Observe(time.Since(started).Seconds())
	}()

	ctx, span := tracing.Start(ctx, "pipeline.run")
	defer span.End()

	if sendErr := r.send(events.Event{
		Type:    events.TypeStart,
		Content: "Analyzing your question...",
		Stage:   events.StageStart,
	}); sendErr != nil {
		return r.fail(sendErr)
	}

	stages := []stage{
		{StatePlanning, "plan", r.planStage},
		{StateResearching, "research", r.researchStage},
		{StateReporting, "report", r.reportStage},
	}
	for _, st := range stages {
		r.state = st.state
		stageCtx, stageSpan := tracing.Start(ctx, "pipeline."+st.name)
		err := st.fn(stageCtx)
		stageSpan.End()
		if err != nil {
			r.logger.Warn("Pipeline stage failed",
				zap.String("stage", st.name),
				zap.Error(err),
			)
			return r.fail(err)
		}
	}

	r.state = StateComplete
	if sendErr := r.send(events.Event{
		Type:    events.TypeComplete,
		Content: "Research complete.",
		Stage:   events.StageComplete,
	}); sendErr != nil {
		return r.fail(sendErr)
	}

	metrics.RunsCompleted.WithLabelValues("success").Inc()
	r.logger.Info("Pipeline run complete",
		zap.Int("sub_questions", len(r.sess.Plan)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return nil
}

// fail moves the run to the absorbing Failed state and converts the stage
// error into the run's single terminal error event. Transport failures are
// not reported: there is nobody left to report to.
func (r *Run) fail(cause error) error {
	r.state = StateFailed
	metrics.RunsCompleted.WithLabelValues("error").Inc()
	if !errors.Is(cause, events.ErrSinkClosed) {
		_ = r.send(events.Event{
			Type:    events.TypeError,
			Content: "research failed: " + cause.Error(),
			Stage:   events.StageError,
		})
	}
	return cause
}

// send emits one event through the sink.
func (r *Run) send(ev events.Event) error {
	if err := r.sink.Send(ev); err != nil {
		return err
	}
	metrics.EventsEmitted.WithLabelValues(string(ev.Type)).Inc()
	return nil
}

// streamTo issues one streaming generation call, forwarding every fragment
// through mk to the sink exactly as received and returning the concatenated
// text. A sink failure cancels the producer so no further upstream work is
// wasted.
func (r *Run) streamTo(ctx context.Context, systemPrompt, userPrompt string, mk func(piece string) events.Event) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fragments, err := r.gen.StreamComplete(ctx, systemPrompt, userPrompt)
	if err != nil {
		return "", err
	}

	var full []byte
	for f := range fragments {
		if f.Err != nil {
			return "", f.Err
		}
		full = append(full, f.Text...)
		if err := r.send(mk(f.Text)); err != nil {
			return "", err
		}
	}
	return string(full), nil
}
