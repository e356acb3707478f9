// Package diff wraps diff-match-patch for revision comparison.
//
// Patches are stored on revisions in diff-match-patch text form and the
// addition/deletion counters drive the moderation UI badges. The counters
// count non-blank lines per changed hunk, tagged by operation.
package diff

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Stats summarizes a comparison between two content blobs.
type Stats struct {
	Additions    int `json:"additions"`
	Deletions    int `json:"deletions"`
	TotalChanges int `json:"totalChanges"`
}

// ApplyResult is the outcome of applying a stored patch to a base text.
type ApplyResult struct {
	Content   string
	Success   bool
	Conflicts bool
}

// Generate produces a serialized patch transforming original into modified.
// Semantic cleanup keeps the hunks human-reviewable.
func Generate(original, modified string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(original, modified, false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	patches := dmp.PatchMake(original, diffs)
	return dmp.PatchToText(patches)
}

// Apply applies a serialized patch to base. A partially applied patch is
// reported as a conflict; the base text is returned unchanged on failure.
func Apply(base, patch string) ApplyResult {
	dmp := diffmatchpatch.New()
	patches, err := dmp.PatchFromText(patch)
	if err != nil {
		return ApplyResult{Content: base, Success: false, Conflicts: true}
	}

	content, applied := dmp.PatchApply(patches, base)
	for _, ok := range applied {
		if !ok {
			return ApplyResult{Content: content, Success: false, Conflicts: true}
		}
	}
	return ApplyResult{Content: content, Success: true, Conflicts: false}
}

// CalculateStats counts non-blank changed lines between two content blobs.
func CalculateStats(original, modified string) Stats {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(original, modified, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var stats Stats
	for _, d := range diffs {
		lines := nonBlankLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			stats.Additions += lines
		case diffmatchpatch.DiffDelete:
			stats.Deletions += lines
		}
	}
	stats.TotalChanges = stats.Additions + stats.Deletions
	return stats
}

// HasConflicts reports whether a patch made against originalBase would no
// longer apply cleanly to currentBase.
func HasConflicts(originalBase, currentBase, patch string) bool {
	if originalBase == currentBase {
		return false
	}
	return Apply(currentBase, patch).Conflicts
}

// Summary renders stats as a short human-readable string, e.g. "+3 lines, -1 line".
func Summary(stats Stats) string {
	var parts []string
	if stats.Additions > 0 {
		parts = append(parts, fmt.Sprintf("+%d %s", stats.Additions, pluralLines(stats.Additions)))
	}
	if stats.Deletions > 0 {
		parts = append(parts, fmt.Sprintf("-%d %s", stats.Deletions, pluralLines(stats.Deletions)))
	}
	if len(parts) == 0 {
		return "No changes"
	}
	return strings.Join(parts, ", ")
}

func pluralLines(n int) string {
	if n == 1 {
		return "line"
	}
	return "lines"
}

func nonBlankLines(text string) int {
	count := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	return count
}
