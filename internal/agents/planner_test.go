package agents

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/diagram-agent/internal/config"
	"github.com/example/diagram-agent/internal/models"
)

func plannerConfig() config.Config {
	cfg := config.Default()
	cfg.MaxPlanItems = 8
	cfg.MinSectionWords = 80
	cfg.ForceAdmitWords = 1500
	return cfg
}

func plannerDoc() models.Document {
	return models.Document{
		Title: "How Compilers Work",
		Sections: []models.Section{
			{ID: "s1", Heading: "Lexing", Text: words(120), WordCount: 120},
			{ID: "s2", Heading: "Parsing", Text: words(300), WordCount: 300},
			{ID: "s3", Heading: "References", Text: words(60), WordCount: 60},
		},
	}
}

func TestPlanMapsValidJudgmentOutput(t *testing.T) {
	j := &fakeJudge{resp: `{
		"admitted": true,
		"reason": "two process sections",
		"items": [
			{"section_id": "s2", "archetype": "flowchart", "priority": 1, "rationale": "parser pipeline"},
			{"section_id": "s1", "archetype": "mindmap", "priority": 2, "rationale": "token taxonomy"}
		]
	}`}
	p := NewLLMPlanner(j, plannerConfig(), slog.New(slog.DiscardHandler))

	plan, err := p.Plan(context.Background(), plannerDoc())

	require.NoError(t, err)
	assert.True(t, plan.Admitted)
	require.Len(t, plan.Items, 2)
	assert.Equal(t, "s2", plan.Items[0].SectionID)
	assert.Equal(t, models.ArchetypeFlowchart, plan.Items[0].Archetype)
	assert.Equal(t, 1, plan.Items[0].Priority)
	assert.Equal(t, "Parsing", plan.Items[0].Heading)
}

func TestPlanDropsInvalidItems(t *testing.T) {
	j := &fakeJudge{resp: `{
		"admitted": true,
		"items": [
			{"section_id": "nope", "archetype": "flowchart", "priority": 1},
			{"section_id": "s1", "archetype": "hologram", "priority": 1},
			{"section_id": "s2", "archetype": "timeline", "priority": 9},
			{"section_id": "s2", "archetype": "timeline", "priority": 1}
		]
	}`}
	p := NewLLMPlanner(j, plannerConfig(), slog.New(slog.DiscardHandler))

	plan, err := p.Plan(context.Background(), plannerDoc())

	require.NoError(t, err)
	require.Len(t, plan.Items, 1, "unknown ids, unknown archetypes and duplicates are dropped")
	assert.Equal(t, "s2", plan.Items[0].SectionID)
	assert.Equal(t, 2, plan.Items[0].Priority, "out-of-range priority clamps to 2")
}

func TestPlanMalformedOutputFallsBackToHeuristic(t *testing.T) {
	j := &fakeJudge{resp: `{"admitted": maybe`}
	p := NewLLMPlanner(j, plannerConfig(), slog.New(slog.DiscardHandler))

	plan, err := p.Plan(context.Background(), plannerDoc())

	require.NoError(t, err)
	assert.True(t, plan.Admitted)
	require.Len(t, plan.Items, 2, "sections below the word threshold are excluded")
	assert.Equal(t, "s2", plan.Items[0].SectionID, "largest section comes first")
	assert.Equal(t, 1, plan.Items[0].Priority, "largest section gets priority 1")
	assert.Equal(t, 2, plan.Items[1].Priority)
}

func TestPlanAdmittedButEmptyFallsBackToHeuristic(t *testing.T) {
	j := &fakeJudge{resp: `{"admitted": true, "items": []}`}
	p := NewLLMPlanner(j, plannerConfig(), slog.New(slog.DiscardHandler))

	plan, err := p.Plan(context.Background(), plannerDoc())

	require.NoError(t, err)
	assert.True(t, plan.Admitted)
	assert.NotEmpty(t, plan.Items)
}

func TestPlanJudgeErrorIsFatal(t *testing.T) {
	j := &fakeJudge{err: fmt.Errorf("backend down")}
	p := NewLLMPlanner(j, plannerConfig(), slog.New(slog.DiscardHandler))

	plan, err := p.Plan(context.Background(), plannerDoc())

	require.Error(t, err, "a judge error is no plan, not a per-section error")
	assert.Nil(t, plan)
}

func TestPlanNotAdmittedPassesThroughForShortDocs(t *testing.T) {
	j := &fakeJudge{resp: `{"admitted": false, "reason": "no structure", "items": []}`}
	p := NewLLMPlanner(j, plannerConfig(), slog.New(slog.DiscardHandler))

	plan, err := p.Plan(context.Background(), plannerDoc())

	require.NoError(t, err)
	assert.False(t, plan.Admitted)
	assert.Equal(t, "no structure", plan.Reason)
	assert.Empty(t, plan.Items)
}

func TestPlanForceAdmitsLongDocuments(t *testing.T) {
	doc := models.Document{
		Title: "Long",
		Sections: []models.Section{
			{ID: "s1", Heading: "A", Text: words(900), WordCount: 900},
			{ID: "s2", Heading: "B", Text: words(900), WordCount: 900},
		},
	}
	j := &fakeJudge{resp: `{"admitted": false, "reason": "nothing to draw", "items": []}`}
	p := NewLLMPlanner(j, plannerConfig(), slog.New(slog.DiscardHandler))

	plan, err := p.Plan(context.Background(), doc)

	require.NoError(t, err)
	assert.True(t, plan.Admitted, "a blanket rejection of a long document is overridden")
	assert.NotEmpty(t, plan.Items)
	assert.Contains(t, plan.Reason, "overridden")
}

func TestPlanCapsAdmittedItems(t *testing.T) {
	doc := models.Document{Title: "Wide"}
	resp := `{"admitted": true, "items": [`
	for i := 1; i <= 12; i++ {
		id := fmt.Sprintf("s%d", i)
		doc.Sections = append(doc.Sections, models.Section{ID: id, Heading: id, Text: words(200), WordCount: 200})
		if i > 1 {
			resp += ","
		}
		resp += fmt.Sprintf(`{"section_id": "%s", "archetype": "flowchart", "priority": 2}`, id)
	}
	resp += `]}`
	j := &fakeJudge{resp: resp}
	cfg := plannerConfig()
	p := NewLLMPlanner(j, cfg, slog.New(slog.DiscardHandler))

	plan, err := p.Plan(context.Background(), doc)

	require.NoError(t, err)
	assert.Len(t, plan.Items, cfg.MaxPlanItems)
}

func TestHeuristicPlannerNoCandidates(t *testing.T) {
	p := &HeuristicPlanner{MinSectionWords: 80}
	doc := models.Document{Sections: []models.Section{
		{ID: "s1", Heading: "Tiny", Text: words(20), WordCount: 20},
	}}

	plan, err := p.Plan(context.Background(), doc)

	require.NoError(t, err)
	assert.False(t, plan.Admitted)
}
