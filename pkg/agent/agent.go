// Copyright 2026 © The SkillsLike Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	serrors "github.com/ZeoXel/skillslike/pkg/errors"
	"github.com/ZeoXel/skillslike/pkg/executor"
	"github.com/ZeoXel/skillslike/pkg/llm"
	"github.com/ZeoXel/skillslike/pkg/registry"
	"github.com/ZeoXel/skillslike/pkg/telemetry"
)

// DefaultMaxIterations bounds the infer/dispatch loop per user message.
const DefaultMaxIterations = 10

// Result is what one Run produced: the model's final answer and the artifact
// ids newly surfaced while handling the message.
type Result struct {
	Text        string
	ArtifactIDs []string
}

// Orchestrator drives the conversation loop for every thread. Threads are
// serialized individually; distinct threads run concurrently.
type Orchestrator struct {
	provider      llm.Provider
	checkpoints   CheckpointStore
	model         string
	systemPrompt  string
	maxIterations int
	logger        *slog.Logger
	metrics       *telemetry.AgentMetrics

	locks sync.Map // threadID -> *sync.Mutex
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithModel sets the model name sent on every inference request.
func WithModel(model string) Option {
	return func(o *Orchestrator) { o.model = model }
}

// WithSystemPrompt sets the system prompt prepended to every inference
// request. It is never persisted into thread state.
func WithSystemPrompt(prompt string) Option {
	return func(o *Orchestrator) { o.systemPrompt = prompt }
}

// WithMaxIterations bounds the infer/dispatch loop.
func WithMaxIterations(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxIterations = n
		}
	}
}

// WithLogger sets the orchestrator's logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics attaches instrument recording. Nil is fine; recording is a
// no-op then.
func WithMetrics(m *telemetry.AgentMetrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New creates an orchestrator backed by the given provider and checkpoints.
func New(provider llm.Provider, checkpoints CheckpointStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provider:      provider,
		checkpoints:   checkpoints,
		maxIterations: DefaultMaxIterations,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run handles one user message on a thread: load state, loop inference and
// tool dispatch until the model stops requesting tools, persist state, and
// return the final text plus any artifacts surfaced along the way.
func (o *Orchestrator) Run(ctx context.Context, threadID, message string, tools []*registry.Tool) (*Result, error) {
	unlock := o.lockThread(threadID)
	defer unlock()

	state, err := o.checkpoints.Get(ctx, threadID)
	if err != nil {
		return nil, serrors.New(serrors.CodeInternal, "load thread state", err).WithContext("thread_id", threadID)
	}
	if state == nil {
		state = &State{}
	}
	state.Messages = append(state.Messages, llm.Message{Role: llm.RoleUser, Content: message})

	defs := make([]llm.Tool, 0, len(tools))
	byName := make(map[string]*registry.Tool, len(tools))
	for _, tool := range tools {
		defs = append(defs, tool.Definition())
		byName[tool.Name()] = tool
	}

	var (
		finalParts   []string
		newArtifacts []string
	)

	iterations := 0
	for ; iterations < o.maxIterations; iterations++ {
		resp, err := o.provider.Chat(ctx, llm.ChatRequest{
			Model:    o.model,
			Messages: o.requestMessages(state),
			Tools:    defs,
		})
		if err != nil {
			o.metrics.RecordError(ctx, string(serrors.CodeLLMError))
			return nil, serrors.New(serrors.CodeLLMError, "inference failed", err).
				WithContext("thread_id", threadID).
				WithRecoverable(true)
		}

		state.Messages = append(state.Messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		if resp.Content != "" {
			finalParts = append(finalParts, resp.Content)
		}
		if len(resp.ToolCalls) == 0 {
			break
		}

		results := o.dispatch(ctx, resp.ToolCalls, byName)
		state.Messages = append(state.Messages, results...)
		newArtifacts = append(newArtifacts, o.reconcile(state, results)...)
	}
	if iterations == o.maxIterations {
		o.metrics.RecordIterations(ctx, iterations)
		// Persist what we have; the thread stays usable.
		if err := o.checkpoints.Put(ctx, threadID, state); err != nil {
			o.logger.Error("checkpoint write failed", "thread_id", threadID, "error", err)
		}
		o.metrics.RecordError(ctx, string(serrors.CodeInternal))
		return nil, serrors.New(serrors.CodeInternal,
			fmt.Sprintf("conversation exceeded %d iterations without completing", o.maxIterations), nil).
			WithContext("thread_id", threadID)
	}
	o.metrics.RecordIterations(ctx, iterations+1)

	if err := o.checkpoints.Put(ctx, threadID, state); err != nil {
		return nil, serrors.New(serrors.CodeInternal, "persist thread state", err).WithContext("thread_id", threadID)
	}

	return &Result{
		Text:        strings.TrimSpace(strings.Join(finalParts, "\n")),
		ArtifactIDs: newArtifacts,
	}, nil
}

// requestMessages assembles the wire transcript: optional system prompt
// first, then the persisted thread messages.
func (o *Orchestrator) requestMessages(state *State) []llm.Message {
	if o.systemPrompt == "" {
		return state.Messages
	}
	out := make([]llm.Message, 0, len(state.Messages)+1)
	out = append(out, llm.Message{Role: llm.RoleSystem, Content: o.systemPrompt})
	return append(out, state.Messages...)
}

// dispatch runs the requested tool calls concurrently and returns one
// tool-role message per call, in call order regardless of completion order.
// Individual failures become result text; they never abort sibling calls.
func (o *Orchestrator) dispatch(ctx context.Context, calls []llm.ToolCall, byName map[string]*registry.Tool) []llm.Message {
	results := make([]llm.Message, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = llm.Message{
				Role:       llm.RoleTool,
				Content:    o.invoke(gctx, call, byName),
				ToolCallID: call.ID,
			}
			return nil
		})
	}
	g.Wait()
	return results
}

func (o *Orchestrator) invoke(ctx context.Context, call llm.ToolCall, byName map[string]*registry.Tool) string {
	tool, ok := byName[call.Name]
	if !ok {
		o.logger.Warn("model requested unavailable tool", "tool", call.Name)
		return fmt.Sprintf("Tool %s is not available.", call.Name)
	}

	args := map[string]any{}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return fmt.Sprintf("Tool %s failed: invalid arguments: %v", call.Name, err)
		}
	}

	start := time.Now()
	text, err := tool.Invoke(ctx, args)
	o.metrics.RecordToolInvocation(ctx, tool.Manifest().Name, time.Since(start), err == nil)
	if err != nil {
		o.logger.Error("tool invocation failed", "tool", call.Name, "error", err)
		return fmt.Sprintf("Tool %s failed: %v", call.Name, err)
	}
	return text
}

// reconcile scans only the newest batch of tool results for artifact
// references and records the ones the thread has not seen yet. Returns the
// newly recorded ids in scan order.
func (o *Orchestrator) reconcile(state *State, results []llm.Message) []string {
	var added []string
	for _, msg := range results {
		for _, id := range executor.ExtractFileIDs(msg.Content) {
			if state.HasArtifact(id) {
				continue
			}
			state.ArtifactIDs = append(state.ArtifactIDs, id)
			added = append(added, id)
		}
	}
	return added
}

func (o *Orchestrator) lockThread(threadID string) func() {
	v, _ := o.locks.LoadOrStore(threadID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
