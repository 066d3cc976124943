// Copyright 2026 © The SkillsLike Authors
// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ZeoXel/skillslike/pkg/artifact"
	serrors "github.com/ZeoXel/skillslike/pkg/errors"
	"github.com/ZeoXel/skillslike/pkg/manifest"
)

// containerOutputMount is where skill containers are expected to drop
// produced files. Everything found there after a run is uploaded to the
// artifact store.
const containerOutputMount = "/out"

// containerExecutor runs a skill as a one-shot docker container. Arguments
// reach the container twice, as the SKILL_ARGS environment variable and on
// stdin, so images can read whichever is convenient.
type containerExecutor struct {
	manifest manifest.SkillManifest
	store    artifact.Store

	// runCommand is swapped in tests to avoid a docker dependency.
	runCommand func(ctx context.Context, name string, args []string, stdin []byte) ([]byte, error)
}

func (e *containerExecutor) Execute(ctx context.Context, args map[string]any) (string, error) {
	image := e.manifest.Runtime.Image
	if image == "" {
		return "", serrors.New(serrors.CodeConfig, "docker runtime requires an image", nil).
			WithContext("skill", e.manifest.Name)
	}

	payload, err := json.Marshal(args)
	if err != nil {
		return "", serrors.New(serrors.CodeInvalidInput, "encode skill arguments", err).
			WithContext("skill", e.manifest.Name)
	}

	outDir, err := os.MkdirTemp("", "skill-out-*")
	if err != nil {
		return "", serrors.New(serrors.CodeInternal, "create container output directory", err)
	}
	defer os.RemoveAll(outDir)

	argv := []string{"run", "--rm", "-i",
		"-v", outDir + ":" + containerOutputMount,
		"-e", "SKILL_ARGS=" + string(payload),
	}
	for k, v := range e.manifest.Runtime.Env {
		argv = append(argv, "-e", k+"="+v)
	}
	argv = append(argv, image)
	argv = append(argv, e.manifest.Runtime.Cmd...)

	bound := e.manifest.Runtime.TimeoutDuration()
	runCtx, cancel := context.WithTimeout(ctx, bound)
	defer cancel()

	run := e.runCommand
	if run == nil {
		run = dockerRun
	}
	stdout, err := run(runCtx, "docker", argv, payload)
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return "", timeoutError(e.manifest.Name, bound, runCtx.Err())
		}
		return "", serrors.New(serrors.CodeToolFailure,
			fmt.Sprintf("skill %s container failed", e.manifest.Name), err).
			WithContext("skill", e.manifest.Name).
			WithContext("image", image).
			WithRecoverable(true)
	}

	text := strings.TrimSpace(string(stdout))
	ids, err := e.collectOutputs(ctx, outDir)
	if err != nil {
		return "", err
	}
	for _, id := range ids {
		text = AppendFileID(text, id)
	}
	return text, nil
}

// collectOutputs uploads every file the container left in the mounted output
// directory, in name order so repeated runs produce stable marker order.
func (e *containerExecutor) collectOutputs(ctx context.Context, outDir string) ([]string, error) {
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, serrors.New(serrors.CodeInternal, "read container output directory", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		data, err := os.ReadFile(filepath.Join(outDir, name))
		if err != nil {
			return nil, serrors.New(serrors.CodeInternal, "read container output file", err).
				WithContext("file", name)
		}
		contentType := mime.TypeByExtension(filepath.Ext(name))
		id, err := e.store.Put(ctx, data, name, contentType)
		if err != nil {
			return nil, serrors.New(serrors.CodeInternal, "store container output", err).
				WithContext("skill", e.manifest.Name).
				WithContext("file", name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func dockerRun(ctx context.Context, name string, args []string, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%w: %s", err, truncate(msg, 512))
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}
