package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/example/diagram-agent/internal/config"
	"github.com/example/diagram-agent/internal/judge"
	"github.com/example/diagram-agent/internal/models"
)

const plannerSystem = `You are the planning stage of a document visualization pipeline.
Given a list of document sections, decide which are worth turning into diagrams.

Visualizable content: processes, hierarchies, comparisons, systems, timelines, cause/effect.
Not visualizable: navigation, citation lists, boilerplate, content too short to carry structure.

Respond with ONLY a JSON object, no prose, no code fences:
{"admitted": true|false, "reason": "...", "items": [{"section_id": "...", "archetype": "flowchart"|"mindmap"|"timeline"|"comparison", "priority": 1|2, "rationale": "..."}]}

Use priority 1 for the sections most worth visualizing (at most a third of items).
If nothing in the document is visualizable, return admitted=false with a reason and an empty items list.`

// LLMPlanner produces a plan from one judgment call, with strict validation
// of the output and a deterministic heuristic fallback when it is malformed.
type LLMPlanner struct {
	Judge    judge.Client
	Cfg      config.Config
	Log      *slog.Logger
	Fallback *HeuristicPlanner
}

func NewLLMPlanner(j judge.Client, cfg config.Config, logger *slog.Logger) *LLMPlanner {
	return &LLMPlanner{
		Judge:    j,
		Cfg:      cfg,
		Log:      logger,
		Fallback: &HeuristicPlanner{MinSectionWords: cfg.MinSectionWords},
	}
}

type plannedItem struct {
	SectionID string `json:"section_id"`
	Archetype string `json:"archetype"`
	Priority  int    `json:"priority"`
	Rationale string `json:"rationale"`
}

type plannedDoc struct {
	Admitted *bool         `json:"admitted"`
	Reason   string        `json:"reason"`
	Items    []plannedItem `json:"items"`
}

// Plan issues the single planning judgment call. A judge error propagates as
// "no plan" and is fatal for the run; malformed output falls back to the
// heuristic planner instead.
func (p *LLMPlanner) Plan(ctx context.Context, doc models.Document) (*models.Plan, error) {
	raw, err := p.Judge.Judge(ctx, plannerSystem, planUserMessage(doc), judge.Options{JSONOutput: true})
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}

	parsed, perr := parsePlannedDoc(raw)
	if perr != nil {
		p.Log.Warn("planner output malformed, using heuristic plan", "err", perr)
		return p.Fallback.Plan(ctx, doc)
	}

	if !*parsed.Admitted {
		if p.Cfg.ForceAdmitWords > 0 && doc.WordCount() >= p.Cfg.ForceAdmitWords {
			// Long documents almost always contain something visualizable;
			// treat a blanket rejection as a planner miss, not a verdict.
			plan, err := p.Fallback.Plan(ctx, doc)
			if err != nil || !plan.Admitted {
				return &models.Plan{Admitted: false, Reason: parsed.Reason}, nil
			}
			plan.Reason = "planner rejected document; overridden for long document"
			p.Log.Info("force-admitting long document", "words", doc.WordCount())
			return plan, nil
		}
		return &models.Plan{Admitted: false, Reason: parsed.Reason}, nil
	}

	items := p.validItems(doc, parsed.Items)
	if len(items) == 0 {
		p.Log.Warn("planner admitted document but produced no valid items, using heuristic plan")
		return p.Fallback.Plan(ctx, doc)
	}
	if len(items) > p.Cfg.MaxPlanItems {
		items = items[:p.Cfg.MaxPlanItems]
	}
	return &models.Plan{Admitted: true, Reason: parsed.Reason, Items: items}, nil
}

// validItems applies strict structural validation: known section IDs only, no
// duplicates, archetype from the supported set, priority clamped to {1,2}.
func (p *LLMPlanner) validItems(doc models.Document, proposed []plannedItem) []models.PlanItem {
	byID := make(map[string]models.Section, len(doc.Sections))
	for _, s := range doc.Sections {
		byID[s.ID] = s
	}
	seen := make(map[string]bool, len(proposed))
	var items []models.PlanItem
	for _, it := range proposed {
		sec, ok := byID[it.SectionID]
		if !ok || seen[it.SectionID] {
			continue
		}
		arch := models.Archetype(strings.ToLower(strings.TrimSpace(it.Archetype)))
		if !models.KnownArchetype(arch) {
			continue
		}
		priority := it.Priority
		if priority != 1 {
			priority = 2
		}
		seen[it.SectionID] = true
		items = append(items, models.PlanItem{
			SectionID: sec.ID,
			Heading:   sec.Heading,
			Archetype: arch,
			Priority:  priority,
			Admitted:  true,
			Rationale: it.Rationale,
		})
	}
	return items
}

func parsePlannedDoc(raw string) (*plannedDoc, error) {
	var parsed plannedDoc
	if err := json.Unmarshal([]byte(judge.CleanJSON(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", judge.ErrMalformed, err)
	}
	if parsed.Admitted == nil {
		return nil, fmt.Errorf("%w: missing admitted field", judge.ErrMalformed)
	}
	return &parsed, nil
}

func planUserMessage(doc models.Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Document: %s\n", doc.Title)
	if doc.URL != "" {
		fmt.Fprintf(&b, "URL: %s\n", doc.URL)
	}
	fmt.Fprintf(&b, "Sections (%d):\n", len(doc.Sections))
	for _, s := range doc.Sections {
		flags := make([]string, 0, 3)
		if s.Flags.HasCode {
			flags = append(flags, "code")
		}
		if s.Flags.HasTable {
			flags = append(flags, "table")
		}
		if s.Flags.HasFigure {
			flags = append(flags, "figure")
		}
		fmt.Fprintf(&b, "- id=%s heading=%q words=%d", s.ID, s.Heading, s.WordCount)
		if len(flags) > 0 {
			fmt.Fprintf(&b, " flags=%s", strings.Join(flags, ","))
		}
		if s.FigureCaption != "" {
			fmt.Fprintf(&b, " caption=%q", truncate(s.FigureCaption, 120))
		}
		fmt.Fprintf(&b, "\n  preview: %s\n", truncate(Preprocess(s.Text), 280))
	}
	return b.String()
}
