// Copyright 2026 © The SkillsLike Authors
// SPDX-License-Identifier: Apache-2.0

package executor

import "strings"

// fileIDMarker is the textual convention by which an executor hands an
// artifact reference to the orchestrator inside free-text tool output. It is
// the sole mechanism for that handoff; both the writer (AppendFileID) and the
// reader (ExtractFileIDs) live here so a future structured channel can
// replace the convention in one place.
const fileIDMarker = "file_id:"

// Sentinel ids produced when image generation cannot persist its output.
// They are placeholders, not real artifact identifiers.
const (
	SentinelDownloadFailed = "download-failed"
	SentinelStorageFailed  = "storage-failed"
)

// AppendFileID appends the artifact reference marker to an executor result.
func AppendFileID(text, id string) string {
	if id == "" {
		return text
	}
	return text + "\n" + fileIDMarker + " " + id
}

// ExtractFileIDs returns every artifact id referenced in text via the
// "file_id: <id>" convention, in order of appearance, without deduplication.
func ExtractFileIDs(text string) []string {
	var ids []string
	rest := text
	for {
		idx := strings.Index(rest, fileIDMarker)
		if idx < 0 {
			return ids
		}
		rest = rest[idx+len(fileIDMarker):]
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return ids
		}
		ids = append(ids, fields[0])
	}
}
