// Package config collects every tunable of the pipeline in one place.
// The thresholds here are policy, not correctness constraints: callers may
// override any of them, and tests do.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config carries the knobs for one analysis run.
type Config struct {
	// Run-wide limits.
	MaxArtifacts   int           // global artifact quota per run
	MaxConcurrency int64         // bounded pool shared by all external calls
	RunTimeout     time.Duration // overall wall-clock bound for a run

	// Planner.
	MaxPlanItems    int // admitted sections are capped at this
	MinSectionWords int // heuristic fallback ignores sections below this
	ForceAdmitWords int // admitted=false override for long documents; 0 disables

	// Evaluator.
	MinWords         int     // cheap terminal rejection below this
	FastPassWords    int     // structural fast path above this
	SubstantialWords int     // low-confidence rejections above this are overridden
	TrustConfidence  float64 // confidence floor for trusting a rejection

	// Segmenter.
	MaxSegments           int // judgment call asks for at most this many
	MinSegmentWords       int // shorter proposals are re-extracted mechanically
	MaxSegmentsPerSection int // scheduler processes at most this many per section

	// Generation client.
	GenerationURL      string
	GenerationKey      string
	DiagramStyle       string
	Language           string
	MaxGenerationChars int
	SubmitPerSecond    float64 // submit throttle
	PollInitial        time.Duration
	PollMax            time.Duration
	PollMultiplier     float64
	PollTimeout        time.Duration
	CacheSize          int

	// Retry policy for rate-limited generation calls.
	MaxAttempts int
	RetryBase   time.Duration
}

// Default returns the settings the pipeline ships with.
func Default() Config {
	return Config{
		MaxArtifacts:   2,
		MaxConcurrency: 2,
		RunTimeout:     4 * time.Minute,

		MaxPlanItems:    8,
		MinSectionWords: 80,
		ForceAdmitWords: 1500,

		MinWords:         40,
		FastPassWords:    300,
		SubstantialWords: 200,
		TrustConfidence:  0.6,

		MaxSegments:           7,
		MinSegmentWords:       30,
		MaxSegmentsPerSection: 2,

		GenerationURL:      "https://api.diagram.example.com",
		MaxGenerationChars: 4000,
		SubmitPerSecond:    1,
		PollInitial:        time.Second,
		PollMax:            8 * time.Second,
		PollMultiplier:     1.5,
		PollTimeout:        90 * time.Second,
		CacheSize:          32,

		MaxAttempts: 3,
		RetryBase:   5 * time.Second,
	}
}

// FromEnv layers environment overrides on top of Default.
func FromEnv() Config {
	cfg := Default()

	cfg.GenerationURL = envStr("GENERATION_API_URL", cfg.GenerationURL)
	cfg.GenerationKey = envStr("GENERATION_API_KEY", cfg.GenerationKey)
	cfg.DiagramStyle = envStr("GENERATION_STYLE_ID", cfg.DiagramStyle)
	cfg.Language = envStr("GENERATION_LANGUAGE", cfg.Language)

	cfg.MaxArtifacts = envInt("MAX_ARTIFACTS", cfg.MaxArtifacts)
	cfg.MaxConcurrency = int64(envInt("MAX_CONCURRENCY", int(cfg.MaxConcurrency)))
	cfg.MaxPlanItems = envInt("MAX_PLAN_ITEMS", cfg.MaxPlanItems)
	cfg.MaxSegmentsPerSection = envInt("MAX_SEGMENTS_PER_SECTION", cfg.MaxSegmentsPerSection)
	cfg.MaxGenerationChars = envInt("MAX_GENERATION_CHARS", cfg.MaxGenerationChars)
	cfg.MaxAttempts = envInt("GENERATION_MAX_ATTEMPTS", cfg.MaxAttempts)
	cfg.ForceAdmitWords = envInt("FORCE_ADMIT_WORDS", cfg.ForceAdmitWords)

	cfg.RunTimeout = envDuration("RUN_TIMEOUT_MS", cfg.RunTimeout)
	cfg.RetryBase = envDuration("RETRY_BASE_MS", cfg.RetryBase)
	cfg.PollTimeout = envDuration("POLL_TIMEOUT_MS", cfg.PollTimeout)

	return cfg
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return def
}
