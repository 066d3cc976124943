// Copyright 2026 © The SkillsLike Authors
// SPDX-License-Identifier: Apache-2.0

// Package mcp exposes the loaded skills as MCP tools over stdio, so MCP
// clients can call skills directly without going through the agent loop.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ZeoXel/skillslike/pkg/registry"
)

// Server bridges the skill registry onto an MCP stdio server.
type Server struct {
	mcpServer *server.MCPServer
	registry  *registry.Registry
}

// NewServer creates an MCP server exposing every tool the registry can build.
func NewServer(name, version string, reg *registry.Registry) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(name, version),
		registry:  reg,
	}
	for _, tool := range reg.Tools() {
		s.register(tool)
	}
	return s
}

func (s *Server) register(tool *registry.Tool) {
	def := mcp.NewTool(tool.Name(), mcp.WithDescription(tool.Description()))
	s.mcpServer.AddTool(def, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]interface{})
		text, err := tool.Invoke(ctx, args)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(text), nil
	})
}

// ServeStdio blocks serving MCP over stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
