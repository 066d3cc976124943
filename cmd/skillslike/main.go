// Copyright 2026 © The SkillsLike Authors
// SPDX-License-Identifier: Apache-2.0

// Command skillslike runs the skill-routing agent service: HTTP chat and
// artifact API, optional MCP stdio surface.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ZeoXel/skillslike/pkg/agent"
	"github.com/ZeoXel/skillslike/pkg/api"
	"github.com/ZeoXel/skillslike/pkg/artifact"
	"github.com/ZeoXel/skillslike/pkg/config"
	"github.com/ZeoXel/skillslike/pkg/executor"
	"github.com/ZeoXel/skillslike/pkg/llm"
	"github.com/ZeoXel/skillslike/pkg/manifest"
	"github.com/ZeoXel/skillslike/pkg/mcp"
	"github.com/ZeoXel/skillslike/pkg/registry"
	"github.com/ZeoXel/skillslike/pkg/router"
	"github.com/ZeoXel/skillslike/pkg/telemetry"
)

const (
	serviceName    = "skillslike"
	serviceVersion = "0.3.0"
)

const systemPrompt = `You are a capable assistant with access to skills. ` +
	`Use the available tools when a task calls for them. When a tool result ` +
	`references a generated file, tell the user the file is ready for download.`

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "skillslike:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	shutdown, err := telemetry.Init(serviceName, serviceVersion, telemetry.Config{
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	metrics, err := telemetry.NewAgentMetrics()
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	store, err := artifact.NewFSStore(cfg.Artifacts.Dir)
	if err != nil {
		return err
	}

	provider, invoker, err := buildProvider(cfg)
	if err != nil {
		return err
	}

	var images *executor.ImageGenClient
	if cfg.ImageGen.Endpoint != "" {
		images = executor.NewImageGenClient(cfg.ImageGen.Endpoint, cfg.ImageGen.APIKey, cfg.ImageGen.Model)
	}
	deps := executor.Deps{
		Artifacts:     store,
		Skills:        invoker,
		Images:        images,
		ImageGenSkill: cfg.ImageGen.Skill,
	}

	loader, err := manifest.NewLoader(cfg.Skills.Dir)
	if err != nil {
		return err
	}
	reg, err := registry.New(loader, deps, logger)
	if err != nil {
		return err
	}

	checkpoints, closeCheckpoints, err := buildCheckpoints(cfg)
	if err != nil {
		return err
	}
	defer closeCheckpoints()

	orchestrator := agent.New(provider, checkpoints,
		agent.WithModel(cfg.LLM.Model),
		agent.WithSystemPrompt(systemPrompt),
		agent.WithLogger(logger),
		agent.WithMetrics(metrics),
	)

	server := api.NewServer(orchestrator, reg, store,
		api.WithLogger(logger),
		api.WithMetrics(metrics),
		api.WithRouterOptions(
			router.WithMaxTools(cfg.Router.MaxTools),
			router.WithThreshold(cfg.Router.Threshold),
			router.WithLogger(logger),
		),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MCP.Enabled {
		go func() {
			if err := mcp.NewServer(serviceName, serviceVersion, reg).ServeStdio(); err != nil {
				logger.Error("mcp server stopped", "error", err)
			}
		}()
	}

	addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr, "skills", len(reg.Manifests()))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func buildProvider(cfg *config.Config) (llm.Provider, executor.SkillInvoker, error) {
	switch cfg.LLM.Provider {
	case "anthropic":
		if cfg.LLM.APIKey == "" {
			return nil, nil, fmt.Errorf("llm.api_key is required for the anthropic provider")
		}
		p := llm.NewAnthropic(cfg.LLM.APIKey,
			llm.WithBaseURL(cfg.LLM.BaseURL),
			llm.WithModel(cfg.LLM.Model),
		)
		return p, p, nil
	case "mock":
		// Development provider: answers without tools.
		return llm.NewScriptedProvider(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown llm provider: %s", cfg.LLM.Provider)
	}
}

func buildCheckpoints(cfg *config.Config) (agent.CheckpointStore, func(), error) {
	switch cfg.Checkpoint.Backend {
	case "", "memory":
		return agent.NewMemoryCheckpointStore(), func() {}, nil
	case "sqlite":
		db, err := sql.Open("sqlite", cfg.Checkpoint.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open checkpoint db: %w", err)
		}
		store, err := agent.NewSQLiteCheckpointStore(db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, func() { db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown checkpoint backend: %s", cfg.Checkpoint.Backend)
	}
}
