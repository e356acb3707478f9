package markdown

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSectionsToMarkdownBasic(t *testing.T) {
	sections := []Section{
		{ID: "overview", Title: "Overview", Level: 2, Markdown: "Vibe coding explained."},
		{ID: "history", Title: "History", Level: 3, Markdown: "It started somewhere."},
	}

	md := SectionsToMarkdown(sections, nil, "")
	assert.Equal(t, "## Overview\n\nVibe coding explained.\n\n### History\n\nIt started somewhere.", md)
}

func TestSectionsToMarkdownFallback(t *testing.T) {
	md := SectionsToMarkdown(nil, nil, "raw body only")
	assert.Equal(t, "raw body only", md)

	assert.Equal(t, "", SectionsToMarkdown(nil, nil, ""))
}

func TestSectionsToMarkdownTimeline(t *testing.T) {
	timeline := []TimelineEntry{
		{Year: "2023", Title: "Coined", Description: "The term appears."},
		{Year: "2025", Title: "Mainstream", Description: "Everyone does it."},
	}

	md := SectionsToMarkdown(nil, timeline, "intro text")
	assert.Contains(t, md, "## Timeline")
	assert.Contains(t, md, "**2023** - **Coined**: The term appears.")
	assert.Contains(t, md, "**2025** - **Mainstream**: Everyone does it.")
}

func TestMarkdownToSectionsHeadings(t *testing.T) {
	md := "## First\n\nbody one\n\n### Second\n\nbody two"
	parsed := MarkdownToSections(md)

	require.Len(t, parsed.Sections, 2)
	assert.Equal(t, "First", parsed.Sections[0].Title)
	assert.Equal(t, 2, parsed.Sections[0].Level)
	assert.Equal(t, "body one", parsed.Sections[0].Markdown)
	assert.Equal(t, "Second", parsed.Sections[1].Title)
	assert.Equal(t, 3, parsed.Sections[1].Level)
	assert.Equal(t, "body one\n\nbody two", parsed.Content, "content drops headings")
}

func TestMarkdownToSectionsImplicitIntroduction(t *testing.T) {
	parsed := MarkdownToSections("leading prose\n\n## Named\n\nrest")
	require.Len(t, parsed.Sections, 2)
	assert.Equal(t, "introduction", parsed.Sections[0].ID)
	assert.Equal(t, "Introduction", parsed.Sections[0].Title)
	assert.Equal(t, "leading prose", parsed.Sections[0].Markdown)
}

func TestMarkdownToSectionsTimeline(t *testing.T) {
	md := "## Intro\n\nhello\n\n## Timeline\n\n**2024** - **Launch**: Shipped.\nthis malformed line disappears\n**2025** - **Growth**: More users."
	parsed := MarkdownToSections(md)

	require.Len(t, parsed.Sections, 1)
	require.Len(t, parsed.Timeline, 2)
	assert.Equal(t, TimelineEntry{Year: "2024", Title: "Launch", Description: "Shipped."}, parsed.Timeline[0])
	assert.Equal(t, TimelineEntry{Year: "2025", Title: "Growth", Description: "More users."}, parsed.Timeline[1])
}

func TestTimelineHeadingAnyCaseAnyLevel(t *testing.T) {
	parsed := MarkdownToSections("### tImElInE\n\n**1999** - **Y2K prep**: Panic.")
	assert.Empty(t, parsed.Sections)
	require.Len(t, parsed.Timeline, 1)
	assert.Equal(t, "1999", parsed.Timeline[0].Year)
}

func TestRoundTrip(t *testing.T) {
	sections := []Section{
		{ID: "overview", Title: "Overview", Level: 2, Markdown: "First body."},
		{ID: "details", Title: "Details", Level: 3, Markdown: "Second body\nwith two lines."},
	}
	timeline := []TimelineEntry{{Year: "2024", Title: "Event", Description: "Happened."}}

	parsed := MarkdownToSections(SectionsToMarkdown(sections, timeline, ""))

	require.Len(t, parsed.Sections, len(sections))
	for i, s := range sections {
		assert.Equal(t, s.Title, parsed.Sections[i].Title)
		assert.Equal(t, s.Level, parsed.Sections[i].Level)
		assert.Equal(t, s.Markdown, parsed.Sections[i].Markdown)
	}
	assert.Equal(t, timeline, parsed.Timeline)
}

func TestSectionID(t *testing.T) {
	assert.Equal(t, "getting-started", SectionID("Getting Started"))
	assert.Equal(t, "faq-misc-", SectionID("FAQ & Misc!"))
}

func TestTimelineEntryUnmarshalNumericYear(t *testing.T) {
	var e TimelineEntry
	require.NoError(t, json.Unmarshal([]byte(`{"year":2023,"title":"T","description":"D"}`), &e))
	assert.Equal(t, "2023", e.Year)

	require.NoError(t, json.Unmarshal([]byte(`{"year":"early 2024","title":"T","description":"D"}`), &e))
	assert.Equal(t, "early 2024", e.Year)
}
