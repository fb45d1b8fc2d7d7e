package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/example/diagram-agent/internal/config"
	"github.com/example/diagram-agent/internal/judge"
	"github.com/example/diagram-agent/internal/models"
)

// verifySpanWords is how many leading words of a proposed segment must appear
// verbatim in the source section.
const verifySpanWords = 10

// fallbackWindowWords is the slice size for mechanical word-window extraction.
const fallbackWindowWords = 150

const segmenterSystem = `You split one document section into self-contained segments, each of which will become a single diagram.
Each segment must be a contiguous excerpt of the input text, copied verbatim. Never paraphrase, never merge distant parts, never invent text.
Give each segment a short descriptive title naming what the diagram will show, and a diagram archetype hint.

Respond with ONLY a JSON object, no prose, no code fences:
{"segments": [{"title": "...", "text": "...", "archetype": "flowchart"|"mindmap"|"timeline"|"comparison"}]}

Return between 1 and %d segments.`

// Segmenter splits a section's text into generation-sized units. It never
// returns an empty slice: unusable judgment output degrades to mechanical
// word-window slicing of the source.
type Segmenter interface {
	Segment(ctx context.Context, sec models.Section, item models.PlanItem) []models.Segment
}

type JudgeSegmenter struct {
	Judge judge.Client
	Cfg   config.Config
	Log   *slog.Logger
}

func NewJudgeSegmenter(j judge.Client, cfg config.Config, logger *slog.Logger) *JudgeSegmenter {
	return &JudgeSegmenter{Judge: j, Cfg: cfg, Log: logger}
}

type proposedSegment struct {
	Title     string `json:"title"`
	Text      string `json:"text"`
	Archetype string `json:"archetype"`
}

func (s *JudgeSegmenter) Segment(ctx context.Context, sec models.Section, item models.PlanItem) []models.Segment {
	source := Preprocess(sec.Text)
	proposed := s.propose(ctx, sec, source)

	if len(proposed) > s.Cfg.MaxSegments {
		proposed = proposed[:s.Cfg.MaxSegments]
	}

	var out []models.Segment
	for i, p := range proposed {
		text := strings.TrimSpace(p.Text)
		faithful := text != "" &&
			wordCount(text) >= s.Cfg.MinSegmentWords &&
			leadingSpanInSource(source, text, verifySpanWords)
		if !faithful {
			// Anything the model strayed on is re-extracted mechanically so
			// every emitted segment is guaranteed to come from the source.
			text = wordWindow(source, i, fallbackWindowWords)
			if text == "" {
				continue
			}
		}
		out = append(out, s.build(sec, item, p, text, i))
	}

	if len(out) == 0 {
		s.Log.Warn("segmentation yielded nothing usable, using leading text", "section", sec.ID)
		out = append(out, s.build(sec, item, proposedSegment{}, truncate(source, s.Cfg.MaxGenerationChars), 0))
	}
	return out
}

// propose issues the single segmentation judgment call and parses its output.
// Malformed output returns nil, which the caller treats as zero usable
// proposals.
func (s *JudgeSegmenter) propose(ctx context.Context, sec models.Section, source string) []proposedSegment {
	system := fmt.Sprintf(segmenterSystem, s.Cfg.MaxSegments)
	user := fmt.Sprintf("Section: %s\n\n%s", sec.Heading, truncate(source, 8000))
	raw, err := s.Judge.Judge(ctx, system, user, judge.Options{JSONOutput: true})
	if err != nil {
		s.Log.Warn("segmentation judgment failed", "section", sec.ID, "err", err)
		return nil
	}
	var parsed struct {
		Segments []proposedSegment `json:"segments"`
	}
	if err := json.Unmarshal([]byte(judge.CleanJSON(raw)), &parsed); err != nil {
		s.Log.Warn("segmentation output malformed", "section", sec.ID, "err", err)
		return nil
	}
	return parsed.Segments
}

func (s *JudgeSegmenter) build(sec models.Section, item models.PlanItem, p proposedSegment, text string, idx int) models.Segment {
	text = truncate(text, s.Cfg.MaxGenerationChars)
	arch := models.Archetype(strings.ToLower(strings.TrimSpace(p.Archetype)))
	if !models.KnownArchetype(arch) {
		arch = item.Archetype
	}
	title := strings.TrimSpace(p.Title)
	if genericTitle(title) {
		title = fmt.Sprintf("%s — part %d", sec.Heading, idx+1)
	}
	return models.Segment{
		ID:        uuid.NewString(),
		Title:     title,
		Text:      text,
		Archetype: arch,
		Priority:  item.Priority,
		WordCount: wordCount(text),
	}
}

func genericTitle(title string) bool {
	if len(strings.Fields(title)) < 2 {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(title)) {
	case "segment 1", "segment 2", "segment 3", "part 1", "part 2", "introduction", "overview section":
		return true
	}
	return false
}

// wordWindow returns the idx-th contiguous window of size words from text,
// clamped to the trailing window when idx runs past the end.
func wordWindow(text string, idx, size int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	start := idx * size
	if start >= len(words) {
		if len(words) <= size {
			start = 0
		} else {
			start = len(words) - size
		}
	}
	end := start + size
	if end > len(words) {
		end = len(words)
	}
	return strings.Join(words[start:end], " ")
}
