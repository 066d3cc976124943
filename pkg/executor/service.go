// Copyright 2026 © The SkillsLike Authors
// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	serrors "github.com/ZeoXel/skillslike/pkg/errors"
	"github.com/ZeoXel/skillslike/pkg/manifest"
	"github.com/ZeoXel/skillslike/pkg/resilience"
)

// serviceExecutor POSTs the tool arguments as JSON to the manifest endpoint.
// The backend replies with {"text": ..., "file_id": ...}; a non-JSON body is
// taken verbatim as the result text.
type serviceExecutor struct {
	manifest manifest.SkillManifest
	client   *http.Client
}

type serviceResponse struct {
	Text   string `json:"text"`
	FileID string `json:"file_id"`
}

func (e *serviceExecutor) Execute(ctx context.Context, args map[string]any) (string, error) {
	endpoint := e.manifest.Runtime.Endpoint
	if endpoint == "" {
		return "", serrors.New(serrors.CodeConfig, "service runtime requires an endpoint", nil).
			WithContext("skill", e.manifest.Name)
	}

	payload, err := json.Marshal(args)
	if err != nil {
		return "", serrors.New(serrors.CodeInvalidInput, "encode skill arguments", err).
			WithContext("skill", e.manifest.Name)
	}

	bound := resilience.TimeoutConfig{Duration: e.manifest.Runtime.TimeoutDuration()}
	result, err := resilience.WithTimeoutResult(ctx, bound, func(ctx context.Context) (interface{}, error) {
		return e.post(ctx, endpoint, payload)
	})
	if err != nil {
		if serrors.HasCode(err, serrors.CodeTimeout) {
			return "", timeoutError(e.manifest.Name, bound.Duration, err)
		}
		return "", err
	}
	return result.(string), nil
}

func (e *serviceExecutor) post(ctx context.Context, endpoint string, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	client := e.client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", serrors.New(serrors.CodeToolFailure, fmt.Sprintf("skill %s service call failed", e.manifest.Name), err).
			WithContext("skill", e.manifest.Name).
			WithContext("endpoint", endpoint).
			WithRecoverable(true)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", serrors.New(serrors.CodeToolFailure, fmt.Sprintf("skill %s response unreadable", e.manifest.Name), err).
			WithContext("skill", e.manifest.Name)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", serrors.New(serrors.CodeToolFailure,
			fmt.Sprintf("skill %s returned status %d", e.manifest.Name, resp.StatusCode), nil).
			WithContext("skill", e.manifest.Name).
			WithContext("status", resp.StatusCode).
			WithContext("body", truncate(string(body), 512)).
			WithRecoverable(true)
	}

	var parsed serviceResponse
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Text == "" && parsed.FileID == "" {
		// Plain-text backends are acceptable.
		return strings.TrimSpace(string(body)), nil
	}
	text := parsed.Text
	if parsed.FileID != "" {
		text = AppendFileID(text, parsed.FileID)
	}
	return text, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
