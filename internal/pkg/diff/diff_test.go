package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateApplyRoundTrip(t *testing.T) {
	original := "# Intro\n\nVibe coding is a workflow.\n\nIt has tradeoffs.\n"
	modified := "# Intro\n\nVibe coding is an AI-assisted workflow.\n\nIt has tradeoffs.\n\nAnd fans.\n"

	patch := Generate(original, modified)
	require.NotEmpty(t, patch)

	result := Apply(original, patch)
	assert.True(t, result.Success)
	assert.False(t, result.Conflicts)
	assert.Equal(t, modified, result.Content)
}

func TestApplyInvalidPatch(t *testing.T) {
	result := Apply("base text", "not a real patch @@")
	assert.False(t, result.Success)
	assert.True(t, result.Conflicts)
	assert.Equal(t, "base text", result.Content)
}

func TestCalculateStatsIdentity(t *testing.T) {
	for _, text := range []string{"", "one line", "a\nb\nc\n"} {
		stats := CalculateStats(text, text)
		assert.Equal(t, 0, stats.Additions)
		assert.Equal(t, 0, stats.Deletions)
		assert.Equal(t, 0, stats.TotalChanges)
	}
}

func TestCalculateStatsFromEmpty(t *testing.T) {
	modified := "first line\n\nsecond line\nthird line\n\n"
	stats := CalculateStats("", modified)
	assert.Equal(t, 3, stats.Additions, "blank lines must not count")
	assert.Equal(t, 0, stats.Deletions)
	assert.Equal(t, 3, stats.TotalChanges)
}

func TestCalculateStatsDeletions(t *testing.T) {
	original := "keep\ndrop me\nkeep too\n"
	modified := "keep\nkeep too\n"
	stats := CalculateStats(original, modified)
	assert.Equal(t, 0, stats.Additions)
	assert.Equal(t, 1, stats.Deletions)
}

func TestHasConflicts(t *testing.T) {
	base := "line one\nline two\nline three\n"
	edited := "line one\nline two edited\nline three\n"
	patch := Generate(base, edited)

	assert.False(t, HasConflicts(base, base, patch))

	// A lightly drifted base still lets the fuzzy patch land.
	drifted := "line one\nline two\nline three\nline four\n"
	assert.False(t, HasConflicts(base, drifted, patch))
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "No changes", Summary(Stats{}))
	assert.Equal(t, "+1 line", Summary(Stats{Additions: 1}))
	assert.Equal(t, "+2 lines, -1 line", Summary(Stats{Additions: 2, Deletions: 1}))
}
