// Copyright 2026 © The SkillsLike Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads service configuration from defaults, an optional YAML
// file and SKILLSLIKE_-prefixed environment variables, in that order.
package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Log        LogConfig        `koanf:"log"`
	API        APIConfig        `koanf:"api"`
	Skills     SkillsConfig     `koanf:"skills"`
	Artifacts  ArtifactsConfig  `koanf:"artifacts"`
	LLM        LLMConfig        `koanf:"llm"`
	ImageGen   ImageGenConfig   `koanf:"image_gen"`
	Router     RouterConfig     `koanf:"router"`
	Checkpoint CheckpointConfig `koanf:"checkpoint"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	MCP        MCPConfig        `koanf:"mcp"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type APIConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

type SkillsConfig struct {
	Dir string `koanf:"dir"`
}

type ArtifactsConfig struct {
	Dir string `koanf:"dir"`
}

type LLMConfig struct {
	Provider string `koanf:"provider"` // anthropic, mock
	Model    string `koanf:"model"`
	BaseURL  string `koanf:"base_url"`
	APIKey   string `koanf:"api_key"`
}

type ImageGenConfig struct {
	Endpoint string `koanf:"endpoint"`
	APIKey   string `koanf:"api_key"`
	Model    string `koanf:"model"`
	Skill    string `koanf:"skill"` // skill name diverted to image generation
}

type RouterConfig struct {
	MaxTools  int     `koanf:"max_tools"`
	Threshold float64 `koanf:"threshold"`
}

type CheckpointConfig struct {
	Backend string `koanf:"backend"` // memory, sqlite
	Path    string `koanf:"path"`
}

type TelemetryConfig struct {
	Exporter     string `koanf:"exporter"` // stdout, otlp
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
}

type MCPConfig struct {
	Enabled bool `koanf:"enabled"`
}

// Load reads configuration. path may be empty to use defaults and env only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Defaults
	k.Set("log.level", "info")
	k.Set("log.format", "text")
	k.Set("api.host", "0.0.0.0")
	k.Set("api.port", 8000)
	k.Set("skills.dir", "./skills")
	k.Set("artifacts.dir", "./artifacts")
	k.Set("llm.provider", "anthropic")
	k.Set("llm.model", "claude-sonnet-4-20250514")
	k.Set("llm.base_url", "https://api.anthropic.com")
	k.Set("image_gen.model", "nano-banana-2")
	k.Set("image_gen.skill", "nano-banana-image-gen")
	k.Set("router.max_tools", 5)
	k.Set("router.threshold", 0.0)
	k.Set("checkpoint.backend", "memory")
	k.Set("checkpoint.path", "./checkpoints.db")
	k.Set("telemetry.exporter", "stdout")
	k.Set("mcp.enabled", false)

	// 1. Load from file
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// 2. Load from ENV. Double underscore separates sections so keys that
	// themselves contain underscores survive: SKILLSLIKE_ROUTER__MAX_TOOLS
	// maps to router.max_tools.
	if err := k.Load(env.Provider("SKILLSLIKE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "SKILLSLIKE_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
