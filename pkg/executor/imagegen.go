// Copyright 2026 © The SkillsLike Authors
// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ZeoXel/skillslike/pkg/artifact"
	serrors "github.com/ZeoXel/skillslike/pkg/errors"
	"github.com/ZeoXel/skillslike/pkg/resilience"
)

// DefaultImageGenModel is the image model requested when none is configured.
const DefaultImageGenModel = "nano-banana-2"

// ImageGenClient talks to an OpenAI-compatible image generation endpoint.
type ImageGenClient struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
}

// NewImageGenClient creates a client for the given generations endpoint.
func NewImageGenClient(endpoint, apiKey, model string) *ImageGenClient {
	if model == "" {
		model = DefaultImageGenModel
	}
	return &ImageGenClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
		client:   http.DefaultClient,
	}
}

type imageGenRequest struct {
	Model       string `json:"model"`
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
	Size        string `json:"image_size,omitempty"`
}

type imageGenResponse struct {
	Data []struct {
		URL     string `json:"url"`
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// Generate requests one image and returns either a download URL or the raw
// base64 payload, depending on what the backend produces.
func (c *ImageGenClient) Generate(ctx context.Context, prompt, aspectRatio, size string) (url, b64 string, err error) {
	payload, err := json.Marshal(imageGenRequest{
		Model:       c.model,
		Prompt:      prompt,
		AspectRatio: aspectRatio,
		Size:        size,
	})
	if err != nil {
		return "", "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", "", serrors.New(serrors.CodeToolFailure, "image generation request failed", err).
			WithRecoverable(true)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", serrors.New(serrors.CodeToolFailure, "image generation response unreadable", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", serrors.New(serrors.CodeToolFailure,
			fmt.Sprintf("image generation returned status %d", resp.StatusCode), nil).
			WithContext("status", resp.StatusCode).
			WithContext("body", truncate(string(body), 512)).
			WithRecoverable(true)
	}

	var parsed imageGenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", "", serrors.New(serrors.CodeToolFailure, "decode image generation response", err)
	}
	if len(parsed.Data) == 0 {
		return "", "", serrors.New(serrors.CodeToolFailure, "image generation returned no images", nil)
	}
	return parsed.Data[0].URL, parsed.Data[0].B64JSON, nil
}

// Download fetches generated image bytes, retrying transient failures.
func (c *ImageGenClient) Download(ctx context.Context, url string) ([]byte, error) {
	var data []byte
	err := resilience.DefaultRetryConfig().Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return serrors.New(serrors.CodeToolFailure, "build image download request", err).WithRecoverable(false)
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return serrors.New(serrors.CodeToolFailure, "image download failed", err).WithRecoverable(true)
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return serrors.New(serrors.CodeToolFailure,
				fmt.Sprintf("image download returned status %d", resp.StatusCode), nil).
				WithRecoverable(resp.StatusCode >= 500)
		}
		data, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// imageGenExecutor turns a designated skill's invocations into image
// generation calls. Persistence failures degrade to sentinel ids instead of
// failing the invocation: the model still gets a usable answer and the
// sentinel tells the operator what went wrong.
type imageGenExecutor struct {
	client *ImageGenClient
	store  artifact.Store
	skill  string
}

func (e *imageGenExecutor) Execute(ctx context.Context, args map[string]any) (string, error) {
	prompt, _ := args["prompt"].(string)
	if strings.TrimSpace(prompt) == "" {
		return "", serrors.New(serrors.CodeInvalidInput, "image generation requires a prompt", nil).
			WithContext("skill", e.skill)
	}
	aspectRatio, _ := args["aspect_ratio"].(string)
	if aspectRatio == "" {
		aspectRatio = "1:1"
	}
	size, _ := args["image_size"].(string)
	if size == "" {
		size = "4K"
	}

	url, b64, err := e.client.Generate(ctx, prompt, aspectRatio, size)
	if err != nil {
		return "", err
	}

	fileID := ""
	switch {
	case url != "":
		data, err := e.client.Download(ctx, url)
		if err != nil {
			fileID = SentinelDownloadFailed
			break
		}
		fileID, err = e.store.Put(ctx, data, "generated.png", "image/png")
		if err != nil {
			fileID = SentinelStorageFailed
		}
	case b64 != "":
		data, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			fileID = SentinelStorageFailed
			break
		}
		fileID, err = e.store.Put(ctx, data, "generated.png", "image/png")
		if err != nil {
			fileID = SentinelStorageFailed
		}
	default:
		return "", serrors.New(serrors.CodeToolFailure, "image generation returned neither url nor payload", nil).
			WithContext("skill", e.skill)
	}

	var sb strings.Builder
	sb.WriteString("Image generated successfully.")
	if url != "" {
		sb.WriteString("\nURL: " + url)
	}
	return AppendFileID(sb.String(), fileID), nil
}

// ImageGenParameters is the JSON schema advertised for the designated image
// generation skill, overriding whatever its manifest declares.
const ImageGenParameters = `{
  "type": "object",
  "properties": {
    "prompt": {
      "type": "string",
      "description": "Text description of the image to generate"
    },
    "aspect_ratio": {
      "type": "string",
      "description": "Aspect ratio such as 1:1, 16:9 or 9:16",
      "default": "1:1"
    },
    "image_size": {
      "type": "string",
      "description": "Output resolution, e.g. 1K, 2K or 4K",
      "default": "4K"
    }
  },
  "required": ["prompt"]
}`
