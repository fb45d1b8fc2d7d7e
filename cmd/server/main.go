package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/example/diagram-agent/internal/agents"
	"github.com/example/diagram-agent/internal/api"
	"github.com/example/diagram-agent/internal/config"
	"github.com/example/diagram-agent/internal/generation"
	"github.com/example/diagram-agent/internal/judge"
	"github.com/example/diagram-agent/internal/scheduler"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	cfg := config.FromEnv()

	judgeClient := judge.NewFromEnv(context.Background())
	gen := generation.New(cfg, logger.With("component", "generation"))

	sched := scheduler.New(
		cfg,
		agents.NewLLMPlanner(judgeClient, cfg, logger.With("component", "planner")),
		agents.NewJudgeEvaluator(judgeClient, cfg, logger.With("component", "evaluator")),
		agents.NewJudgeSegmenter(judgeClient, cfg, logger.With("component", "segmenter")),
		gen,
		scheduler.NewHub(),
		logger.With("component", "scheduler"),
	)

	hub := sched.Hub()
	server := api.NewServer(sched, hub, logger.With("component", "api"))

	addr := ":8080"
	if v := os.Getenv("PORT"); v != "" {
		addr = ":" + v
	}
	mux := http.NewServeMux()
	server.Register(mux)

	logger.Info("server listening", "addr", addr)
	if err := http.ListenAndServe(addr, cors(mux)); err != nil {
		logger.Error("server exited", "err", err)
		os.Exit(1)
	}
}

// simple CORS middleware for local dev
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
