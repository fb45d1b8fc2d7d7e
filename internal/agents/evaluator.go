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

const evaluatorSystem = `You judge whether a unit of document text is worth spending a diagram-generation call on.
Text is worth generating when it describes a process, hierarchy, comparison, system, timeline or cause/effect relationship with enough substance to draw.
Text is not worth generating when it is navigation, citations, boilerplate, or an unstructured wall of prose.

Respond with ONLY a JSON object, no prose, no code fences:
{"worthy": true|false, "reason": "...", "confidence": 0.0-1.0, "potential": "high"|"medium"|"low"|"none"}`

// Evaluator gates a text unit before any generation spend. It never returns
// an error: judgment failures default to worthy so the quota, not a transient
// fault, bounds the cost of a wasted call.
type Evaluator interface {
	Evaluate(ctx context.Context, text, label string) models.Evaluation
}

// JudgeEvaluator applies the two cheap paths before spending a judgment call:
// terminal rejection below MinWords and a structural fast pass above
// FastPassWords.
type JudgeEvaluator struct {
	Judge judge.Client
	Cfg   config.Config
	Log   *slog.Logger
}

func NewJudgeEvaluator(j judge.Client, cfg config.Config, logger *slog.Logger) *JudgeEvaluator {
	return &JudgeEvaluator{Judge: j, Cfg: cfg, Log: logger}
}

func (e *JudgeEvaluator) Evaluate(ctx context.Context, text, label string) models.Evaluation {
	wc := wordCount(text)
	if wc < e.Cfg.MinWords {
		return models.Evaluation{
			Worthy:     false,
			Reason:     fmt.Sprintf("below minimum word count (%d < %d)", wc, e.Cfg.MinWords),
			Confidence: 1,
			Potential:  "none",
		}
	}
	if wc > e.Cfg.FastPassWords && hasStructuralSignals(text) {
		return models.Evaluation{
			Worthy:     true,
			Reason:     "long content with structural signals",
			Confidence: 0.9,
			Potential:  "high",
		}
	}

	ev, err := e.judgeOnce(ctx, text, label)
	if err != nil {
		// A wasted generation call is bounded by the run quota; a false
		// rejection has no recovery path.
		e.Log.Warn("evaluation judgment failed, defaulting to worthy", "label", label, "err", err)
		return models.Evaluation{Worthy: true, Reason: "judgment unavailable", Confidence: 0.5, Potential: "medium"}
	}

	if !ev.Worthy && wc >= e.Cfg.SubstantialWords && ev.Confidence < e.Cfg.TrustConfidence {
		e.Log.Debug("overriding low-confidence rejection of substantial content",
			"label", label, "confidence", ev.Confidence, "words", wc)
		ev.Worthy = true
		ev.Reason = "low-confidence rejection of substantial content overridden"
	}
	return ev
}

func (e *JudgeEvaluator) judgeOnce(ctx context.Context, text, label string) (models.Evaluation, error) {
	user := fmt.Sprintf("Context: %s\n\nText:\n%s", label, truncate(Preprocess(text), 3000))
	raw, err := e.Judge.Judge(ctx, evaluatorSystem, user, judge.Options{JSONOutput: true})
	if err != nil {
		return models.Evaluation{}, err
	}
	var parsed struct {
		Worthy     *bool   `json:"worthy"`
		Reason     string  `json:"reason"`
		Confidence float64 `json:"confidence"`
		Potential  string  `json:"potential"`
	}
	if err := json.Unmarshal([]byte(judge.CleanJSON(raw)), &parsed); err != nil {
		return models.Evaluation{}, fmt.Errorf("%w: %v", judge.ErrMalformed, err)
	}
	if parsed.Worthy == nil {
		return models.Evaluation{}, fmt.Errorf("%w: missing worthy field", judge.ErrMalformed)
	}
	conf := parsed.Confidence
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	potential := strings.ToLower(strings.TrimSpace(parsed.Potential))
	switch potential {
	case "high", "medium", "low", "none":
	default:
		potential = "medium"
	}
	return models.Evaluation{Worthy: *parsed.Worthy, Reason: parsed.Reason, Confidence: conf, Potential: potential}, nil
}
