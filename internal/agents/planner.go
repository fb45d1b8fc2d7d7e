package agents

import (
	"context"
	"fmt"
	"sort"

	"github.com/example/diagram-agent/internal/models"
)

// Planner decides which sections of a document are worth visualizing and
// with what diagram archetype.
type Planner interface {
	Plan(ctx context.Context, doc models.Document) (*models.Plan, error)
}

// HeuristicPlanner is the deterministic fallback: admit up to MaxItems
// sections with the highest word count above MinSectionWords, priority 1 to
// the largest. It backs the LLM planner when judgment output is malformed and
// serves as the force-admit plan for long documents.
type HeuristicPlanner struct {
	MinSectionWords int
	MaxItems        int
}

func (p *HeuristicPlanner) Plan(ctx context.Context, doc models.Document) (*models.Plan, error) {
	maxItems := p.MaxItems
	if maxItems <= 0 {
		maxItems = 3
	}
	candidates := make([]models.Section, 0, len(doc.Sections))
	for _, s := range doc.Sections {
		if s.WordCount >= p.MinSectionWords {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) == 0 {
		return &models.Plan{Admitted: false, Reason: "no section above minimum word count"}, nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].WordCount > candidates[j].WordCount
	})
	if len(candidates) > maxItems {
		candidates = candidates[:maxItems]
	}
	items := make([]models.PlanItem, 0, len(candidates))
	for i, s := range candidates {
		priority := 2
		if i == 0 {
			priority = 1
		}
		items = append(items, models.PlanItem{
			SectionID: s.ID,
			Heading:   s.Heading,
			Archetype: heuristicArchetype(s),
			Priority:  priority,
			Admitted:  true,
			Rationale: fmt.Sprintf("heuristic: %d words", s.WordCount),
		})
	}
	return &models.Plan{Admitted: true, Reason: "heuristic plan", Items: items}, nil
}

func heuristicArchetype(s models.Section) models.Archetype {
	if s.Flags.HasTable {
		return models.ArchetypeComparison
	}
	return models.ArchetypeFlowchart
}
