// Copyright 2026 © The SkillsLike Authors
// SPDX-License-Identifier: Apache-2.0

// Package router narrows the skill set offered to the model per message.
// Progressive loading: only tools whose keywords overlap the user's intent
// are bound, keeping the model's context small.
package router

import (
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"github.com/ZeoXel/skillslike/pkg/manifest"
	"github.com/ZeoXel/skillslike/pkg/registry"
)

// Defaults for router construction.
const (
	DefaultMaxTools  = 5
	DefaultThreshold = 0.0
)

// stopWords are dropped from both skill keywords and message keywords.
// Mixed English and Chinese because skill descriptions are written in both.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"but": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "of": true, "with": true, "by": true,
	"这个": true, "那个": true, "的": true, "了": true,
	"在": true, "是": true, "和": true,
}

// Router scores skills against a message by keyword overlap. It is immutable
// once built; construct a fresh one after a registry reload.
type Router struct {
	maxTools  int
	threshold float64
	keywords  map[string]map[string]bool
	logger    *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithMaxTools caps how many tools a single message can bind.
func WithMaxTools(n int) Option {
	return func(r *Router) {
		if n > 0 {
			r.maxTools = n
		}
	}
}

// WithThreshold sets the minimum relevance score for a tool to qualify.
func WithThreshold(t float64) Option {
	return func(r *Router) { r.threshold = t }
}

// WithLogger sets the router's logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// New builds a router over the given manifests. Each skill's keyword set is
// the tokenized description plus its lowercased tags.
func New(manifests []manifest.SkillManifest, opts ...Option) *Router {
	r := &Router{
		maxTools:  DefaultMaxTools,
		threshold: DefaultThreshold,
		keywords:  make(map[string]map[string]bool, len(manifests)),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, m := range manifests {
		kw := Tokenize(m.Description)
		for _, tag := range m.Tags {
			kw[strings.ToLower(tag)] = true
		}
		r.keywords[m.Name] = kw
	}
	return r
}

// Route selects the tools relevant to a message, at most maxTools, ordered by
// descending score. Ties keep the input (load) order. Two fallbacks keep the
// model functional on odd input: a message with no usable keywords, or one
// matching nothing, both yield the first maxTools tools in load order.
func (r *Router) Route(message string, tools []*registry.Tool) []*registry.Tool {
	if len(tools) == 0 {
		return nil
	}

	userKeywords := Tokenize(message)
	if len(userKeywords) == 0 {
		r.logger.Debug("no routable keywords in message, returning leading tools", "max_tools", r.maxTools)
		return head(tools, r.maxTools)
	}

	type scored struct {
		tool  *registry.Tool
		score float64
	}
	qualified := make([]scored, 0, len(tools))
	for _, tool := range tools {
		score := r.score(tool.Manifest().Name, userKeywords)
		if score >= r.threshold {
			qualified = append(qualified, scored{tool, score})
		}
	}

	sort.SliceStable(qualified, func(i, j int) bool {
		return qualified[i].score > qualified[j].score
	})

	selected := make([]*registry.Tool, 0, r.maxTools)
	for _, s := range qualified {
		if len(selected) == r.maxTools {
			break
		}
		selected = append(selected, s.tool)
	}

	if len(selected) == 0 {
		r.logger.Debug("no tools qualified, returning leading tools", "max_tools", r.maxTools)
		return head(tools, r.maxTools)
	}

	r.logger.Info("routed message to tools",
		"selected", len(selected),
		"candidates", len(tools))
	return selected
}

// Keywords returns the indexed keyword set for a skill.
func (r *Router) Keywords(skillName string) []string {
	kw := r.keywords[skillName]
	out := make([]string, 0, len(kw))
	for w := range kw {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// score is the Jaccard similarity between a skill's keyword set and the
// message keywords. Either side empty scores zero.
func (r *Router) score(skillName string, userKeywords map[string]bool) float64 {
	skillKeywords := r.keywords[skillName]
	if len(skillKeywords) == 0 || len(userKeywords) == 0 {
		return 0
	}

	intersection := 0
	for w := range userKeywords {
		if skillKeywords[w] {
			intersection++
		}
	}
	union := len(skillKeywords) + len(userKeywords) - intersection
	return float64(intersection) / float64(union)
}

// Tokenize extracts routing keywords from text: lowercased Latin letter runs
// of length two or more, plus each CJK ideograph individually. Stop words are
// removed. Proper CJK segmentation would need a dictionary; per-character
// matching is enough for short skill descriptions.
func Tokenize(text string) map[string]bool {
	keywords := make(map[string]bool)

	var run []rune
	flush := func() {
		if len(run) > 1 {
			w := string(run)
			if !stopWords[w] {
				keywords[w] = true
			}
		}
		run = run[:0]
	}

	for _, r := range text {
		switch {
		case r >= 'a' && r <= 'z':
			run = append(run, r)
		case r >= 'A' && r <= 'Z':
			run = append(run, unicode.ToLower(r))
		case r >= 0x4e00 && r <= 0x9fff:
			flush()
			w := string(r)
			if !stopWords[w] {
				keywords[w] = true
			}
		default:
			flush()
		}
	}
	flush()
	return keywords
}

func head(tools []*registry.Tool, n int) []*registry.Tool {
	if len(tools) <= n {
		return tools
	}
	return tools[:n]
}
