// Package scheduler drives planner output through evaluation, segmentation
// and generation under concurrency, priority and quota constraints, emitting
// a typed event for every section and artifact.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/example/diagram-agent/internal/agents"
	"github.com/example/diagram-agent/internal/config"
	"github.com/example/diagram-agent/internal/generation"
	"github.com/example/diagram-agent/internal/models"
)

// Generator is the slice of the generation client the scheduler needs.
type Generator interface {
	Generate(ctx context.Context, text string, opts generation.Options) (string, error)
}

// Scheduler owns the per-run state machine. Safe for concurrent runs.
type Scheduler struct {
	cfg       config.Config
	planner   agents.Planner
	evaluator agents.Evaluator
	segmenter agents.Segmenter
	gen       Generator
	hub       *Hub
	log       *slog.Logger

	// sleep is replaced by tests to drive simulated time through the retry
	// delays.
	sleep func(ctx context.Context, d time.Duration) error
}

func New(cfg config.Config, planner agents.Planner, evaluator agents.Evaluator, segmenter agents.Segmenter, gen Generator, hub *Hub, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		planner:   planner,
		evaluator: evaluator,
		segmenter: segmenter,
		gen:       gen,
		hub:       hub,
		log:       logger,
		sleep:     sleepCtx,
	}
}

// Hub exposes the event hub so the API layer can hand streams to consumers.
func (s *Scheduler) Hub() *Hub { return s.hub }

// run bundles the per-invocation state shared by section tasks.
type run struct {
	*Scheduler
	id     string
	stream *Stream
	state  *RunState
	sem    *semaphore.Weighted
	abort  context.CancelCauseFunc
}

// Run executes one analysis invocation to its terminal event. The consumer
// always receives exactly one of complete, no_content or error, even when
// individual sections failed.
func (s *Scheduler) Run(parent context.Context, runID string, doc models.Document) {
	stream := s.hub.Stream(runID)
	defer stream.Close()

	ctx, cancel := context.WithTimeout(parent, s.cfg.RunTimeout)
	defer cancel()
	ctx, abort := context.WithCancelCause(ctx)
	defer abort(nil)

	log := s.log.With("run", runID)

	plan, err := s.planner.Plan(ctx, doc)
	if err != nil {
		// No plan is fatal for the whole run, not a per-section error.
		log.Error("planning failed", "err", err)
		stream.Publish(EventError, ErrorPayload{Message: "planning failed: " + err.Error()})
		return
	}
	if !plan.Admitted {
		log.Info("document not admitted", "reason", plan.Reason)
		stream.Publish(EventNoContent, NoContentPayload{Reason: plan.Reason})
		stream.Publish(EventComplete, struct{}{})
		return
	}
	stream.Publish(EventPlan, PlanPayload{Items: plan.Items})

	r := &run{
		Scheduler: s,
		id:        runID,
		stream:    stream,
		state:     NewRunState(s.cfg.MaxArtifacts),
		sem:       semaphore.NewWeighted(s.cfg.MaxConcurrency),
		abort:     abort,
	}

	sections := make(map[string]models.Section, len(doc.Sections))
	for _, sec := range doc.Sections {
		sections[sec.ID] = sec
	}

	// Priority-1 sections start and finish as a batch before any priority-2
	// section starts. Within a batch there is no ordering guarantee; the
	// stream reflects completion order.
	for _, batch := range partitionByPriority(plan.Items) {
		var wg sync.WaitGroup
		for _, item := range batch {
			sec, ok := sections[item.SectionID]
			if !ok {
				continue
			}
			wg.Add(1)
			go func(item models.PlanItem, sec models.Section) {
				defer wg.Done()
				// Failures are isolated per task: nothing a section does can
				// fail this goroutine's siblings.
				r.processSection(ctx, item, sec)
			}(item, sec)
		}
		wg.Wait()
	}

	if cause := context.Cause(ctx); cause != nil {
		switch {
		case errors.Is(cause, generation.ErrAuthFailure):
			stream.Publish(EventError, ErrorPayload{Message: "generation service authentication failed"})
		case errors.Is(cause, context.DeadlineExceeded):
			stream.Publish(EventError, ErrorPayload{Message: "run timed out"})
		default:
			stream.Publish(EventError, ErrorPayload{Message: cause.Error()})
		}
		return
	}
	log.Info("run complete", "artifacts", r.state.Emitted())
	stream.Publish(EventComplete, struct{}{})
}

func partitionByPriority(items []models.PlanItem) [][]models.PlanItem {
	var p1, p2 []models.PlanItem
	for _, it := range items {
		if !it.Admitted {
			continue
		}
		if it.Priority == 1 {
			p1 = append(p1, it)
		} else {
			p2 = append(p2, it)
		}
	}
	return [][]models.PlanItem{p1, p2}
}

// processSection walks one section through
// queued→evaluating→segmenting→generating→done|rejected|errored, emitting a
// terminal event for it. Never propagates errors to sibling sections.
func (r *run) processSection(ctx context.Context, item models.PlanItem, sec models.Section) {
	log := r.log.With("run", r.id, "section", sec.ID)

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return // run canceled or timed out; terminal event handled by Run
	}
	defer r.sem.Release(1)
	if ctx.Err() != nil {
		return
	}

	if r.state.Exhausted() {
		r.skipQuota(sec.ID)
		return
	}

	log.Debug("evaluating section", "state", models.SectionEvaluating)
	ev := r.evaluator.Evaluate(ctx, sec.Text, "section: "+sec.Heading)
	if !ev.Worthy {
		log.Info("section rejected", "reason", ev.Reason)
		r.stream.Publish(EventSectionError, SectionErrorPayload{
			SectionID: sec.ID,
			Reason:    "content rejected: " + ev.Reason,
		})
		return
	}

	log.Debug("segmenting section", "state", models.SectionSegmenting)
	segments := r.segmenter.Segment(ctx, sec, item)
	if len(segments) > r.cfg.MaxSegmentsPerSection {
		// Per-section generation cost is capped regardless of segmenter
		// verbosity; extras are discarded before any evaluation.
		segments = segments[:r.cfg.MaxSegmentsPerSection]
	}

	var (
		successes int
		rejected  int
		skipped   int
		lastErr   error
	)
	for _, seg := range segments {
		if ctx.Err() != nil {
			return
		}
		if r.state.Exhausted() {
			skipped++
			continue
		}
		sev := r.evaluator.Evaluate(ctx, seg.Text, "segment: "+seg.Title)
		if !sev.Worthy {
			rejected++
			continue
		}
		if !r.state.TryReserve() {
			skipped++
			continue
		}
		content, err := r.generateWithRetry(ctx, seg.Text, r.options(item))
		if err != nil {
			r.state.Release()
			if r.fatal(err) {
				return
			}
			log.Warn("segment generation failed", "segment", seg.ID, "err", err)
			lastErr = err
			continue
		}
		r.stream.Publish(EventDiagram, DiagramPayload{
			SectionID: sec.ID,
			SegmentID: seg.ID,
			Artifact: models.Artifact{
				Content:         content,
				SourceSegmentID: seg.ID,
				SourceSectionID: sec.ID,
			},
		})
		successes++
	}

	if successes > 0 {
		return
	}
	if ctx.Err() != nil {
		return
	}

	// Zero successful segments: one fallback generation from the full
	// (truncated) section text, bypassing segmentation — unless the quota is
	// what stopped us.
	if skipped > 0 && r.state.Exhausted() {
		r.skipQuota(sec.ID)
		return
	}
	if !r.state.TryReserve() {
		r.skipQuota(sec.ID)
		return
	}
	log.Info("no segment artifacts, falling back to full section text")
	content, err := r.generateWithRetry(ctx, agents.Preprocess(sec.Text), r.options(item))
	if err == nil {
		r.stream.Publish(EventDiagram, DiagramPayload{
			SectionID: sec.ID,
			Artifact:  models.Artifact{Content: content, SourceSectionID: sec.ID},
		})
		return
	}
	r.state.Release()
	if r.fatal(err) || ctx.Err() != nil {
		return
	}
	lastErr = err

	reason := "generation failed"
	if rejected == len(segments) && rejected > 0 {
		reason = "all content rejected"
	}
	if lastErr != nil {
		reason = fmt.Sprintf("%s: %v", reason, lastErr)
	}
	r.stream.Publish(EventSectionError, SectionErrorPayload{SectionID: sec.ID, Reason: reason})
}

func (r *run) skipQuota(sectionID string) {
	r.stream.Publish(EventSectionError, SectionErrorPayload{
		SectionID: sectionID,
		Reason:    "skipped: artifact quota exhausted",
	})
}

// fatal aborts the whole run for auth failures; everything else stays a
// per-unit error.
func (r *run) fatal(err error) bool {
	if errors.Is(err, generation.ErrAuthFailure) {
		r.abort(err)
		return true
	}
	return false
}

// generateWithRetry retries rate-limited generation of the same unit with an
// increasing delay (the service's advertised interval when present, otherwise
// RetryBase × attempt number), up to MaxAttempts. All other errors return
// immediately.
func (r *run) generateWithRetry(ctx context.Context, text string, opts generation.Options) (string, error) {
	var rl *generation.RateLimitedError
	for attempt := 1; ; attempt++ {
		content, err := r.gen.Generate(ctx, text, opts)
		if err == nil {
			return content, nil
		}
		if !errors.As(err, &rl) || attempt >= r.cfg.MaxAttempts {
			return "", err
		}
		delay := rl.RetryAfter
		if delay <= 0 {
			delay = r.cfg.RetryBase * time.Duration(attempt)
		}
		r.log.Info("rate limited, retrying", "run", r.id, "attempt", attempt, "delay", delay)
		if serr := r.sleep(ctx, delay); serr != nil {
			return "", serr
		}
	}
}

func (r *run) options(item models.PlanItem) generation.Options {
	return generation.Options{
		Format:        "svg",
		StyleID:       r.cfg.DiagramStyle,
		Language:      r.cfg.Language,
		ContextBefore: item.Heading,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
