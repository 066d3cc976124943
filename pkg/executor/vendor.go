// Copyright 2026 © The SkillsLike Authors
// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"context"
	"fmt"

	serrors "github.com/ZeoXel/skillslike/pkg/errors"
	"github.com/ZeoXel/skillslike/pkg/manifest"
	"github.com/ZeoXel/skillslike/pkg/resilience"
)

// vendorExecutor delegates execution to a vendor-hosted skill identified by
// the manifest's skill_id.
type vendorExecutor struct {
	manifest manifest.SkillManifest
	invoker  SkillInvoker
}

func (e *vendorExecutor) Execute(ctx context.Context, args map[string]any) (string, error) {
	skillID := e.manifest.Runtime.SkillID
	if skillID == "" {
		return "", serrors.New(serrors.CodeConfig, "anthropic runtime requires a skill_id", nil).
			WithContext("skill", e.manifest.Name)
	}
	if e.invoker == nil {
		return "", serrors.New(serrors.CodeConfig, "vendor skill backend not configured", nil).
			WithContext("skill", e.manifest.Name)
	}

	bound := resilience.TimeoutConfig{Duration: e.manifest.Runtime.TimeoutDuration()}
	result, err := resilience.WithTimeoutResult(ctx, bound, func(ctx context.Context) (interface{}, error) {
		text, fileID, err := e.invoker.InvokeSkill(ctx, skillID, args)
		if err != nil {
			return nil, serrors.New(serrors.CodeToolFailure,
				fmt.Sprintf("skill %s vendor invocation failed", e.manifest.Name), err).
				WithContext("skill", e.manifest.Name).
				WithContext("skill_id", skillID).
				WithRecoverable(true)
		}
		if fileID != "" {
			text = AppendFileID(text, fileID)
		}
		return text, nil
	})
	if err != nil {
		if serrors.HasCode(err, serrors.CodeTimeout) {
			return "", timeoutError(e.manifest.Name, bound.Duration, err)
		}
		return "", err
	}
	return result.(string), nil
}
