// Copyright 2026 © The SkillsLike Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AgentMetrics records the operational signals of the agent pipeline:
// routing decisions, tool invocations, loop depth and errors. A nil
// *AgentMetrics is valid and records nothing.
type AgentMetrics struct {
	routingCounter metric.Int64Counter
	toolCounter    metric.Int64Counter
	toolDuration   metric.Float64Histogram
	iterationsHist metric.Int64Histogram
	errorCounter   metric.Int64Counter
}

// NewAgentMetrics registers the agent instruments on the global meter.
func NewAgentMetrics() (*AgentMetrics, error) {
	meter := otel.Meter("skillslike/agent")

	routingCounter, err := meter.Int64Counter(
		"skillslike.router.decisions",
		metric.WithDescription("Routing decisions by selected tool count"),
	)
	if err != nil {
		return nil, err
	}

	toolCounter, err := meter.Int64Counter(
		"skillslike.tools.invocations",
		metric.WithDescription("Tool invocations by skill and outcome"),
	)
	if err != nil {
		return nil, err
	}

	toolDuration, err := meter.Float64Histogram(
		"skillslike.tools.duration",
		metric.WithDescription("Tool invocation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	iterationsHist, err := meter.Int64Histogram(
		"skillslike.agent.iterations",
		metric.WithDescription("Inference loop iterations per handled message"),
	)
	if err != nil {
		return nil, err
	}

	errorCounter, err := meter.Int64Counter(
		"skillslike.errors.total",
		metric.WithDescription("Errors by code"),
	)
	if err != nil {
		return nil, err
	}

	return &AgentMetrics{
		routingCounter: routingCounter,
		toolCounter:    toolCounter,
		toolDuration:   toolDuration,
		iterationsHist: iterationsHist,
		errorCounter:   errorCounter,
	}, nil
}

// RecordRoutingDecision counts one routing decision and its fan-out.
func (m *AgentMetrics) RecordRoutingDecision(ctx context.Context, selected int) {
	if m == nil {
		return
	}
	m.routingCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("selected", selected),
	))
}

// RecordToolInvocation counts one tool call and its duration.
func (m *AgentMetrics) RecordToolInvocation(ctx context.Context, skill string, elapsed time.Duration, ok bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("skill", skill),
		attribute.Bool("ok", ok),
	)
	m.toolCounter.Add(ctx, 1, attrs)
	m.toolDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordIterations records how many loop iterations a message consumed.
func (m *AgentMetrics) RecordIterations(ctx context.Context, n int) {
	if m == nil {
		return
	}
	m.iterationsHist.Record(ctx, int64(n))
}

// RecordError counts one error by code.
func (m *AgentMetrics) RecordError(ctx context.Context, code string) {
	if m == nil {
		return
	}
	m.errorCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("error.code", code),
	))
}
