// Package markdown converts between the structured page representation
// (sections + timeline) and the single editable text blob shown in the
// edit form.
//
// The two directions are not byte-inverse: parsing normalizes whitespace,
// drops malformed timeline lines, and the merged content field loses the
// headings. Section titles, levels, trimmed bodies, and well-formed
// timeline entries do survive a round trip.
package markdown

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Section is one titled block of page content.
type Section struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Level    int    `json:"level"`
	Markdown string `json:"markdown"`
}

// TimelineEntry is one dated milestone in a page's Timeline block.
type TimelineEntry struct {
	Year        string `json:"year"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// UnmarshalJSON accepts both string and numeric years; older clients sent
// the year as a JSON number.
func (e *TimelineEntry) UnmarshalJSON(data []byte) error {
	var raw struct {
		Year        json.Number `json:"year"`
		Title       string      `json:"title"`
		Description string      `json:"description"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		var alt struct {
			Year        string `json:"year"`
			Title       string `json:"title"`
			Description string `json:"description"`
		}
		if err2 := json.Unmarshal(data, &alt); err2 != nil {
			return err
		}
		*e = TimelineEntry{Year: alt.Year, Title: alt.Title, Description: alt.Description}
		return nil
	}
	*e = TimelineEntry{Year: raw.Year.String(), Title: raw.Title, Description: raw.Description}
	return nil
}

// ParsedContent is the result of parsing an edited text blob.
type ParsedContent struct {
	Sections []Section
	Timeline []TimelineEntry
	// Content is the section bodies joined by blank lines, headings omitted.
	Content string
}

var (
	headingPattern      = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
	timelineLinePattern = regexp.MustCompile(`^\*\*(.+?)\*\*\s*-\s*\*\*(.+?)\*\*:\s*(.+)$`)
	sectionIDPattern    = regexp.MustCompile(`[^a-z0-9]+`)
)

// SectionsToMarkdown renders sections and timeline into one editable blob.
// With no sections the fallback raw content is used instead. A timeline is
// appended as a "## Timeline" block of "**year** - **title**: description"
// lines.
func SectionsToMarkdown(sections []Section, timeline []TimelineEntry, fallbackContent string) string {
	var md string

	if len(sections) > 0 {
		parts := make([]string, 0, len(sections))
		for _, section := range sections {
			level := section.Level
			if level == 0 {
				level = 2
			}
			title := section.Title
			if title == "" {
				title = "Section"
			}
			heading := strings.Repeat("#", level) + " " + title
			parts = append(parts, heading+"\n\n"+strings.TrimSpace(section.Markdown))
		}
		md = strings.Join(parts, "\n\n")
	} else if fallbackContent != "" {
		md = fallbackContent
	}

	if len(timeline) > 0 {
		lines := make([]string, 0, len(timeline))
		for _, entry := range timeline {
			lines = append(lines, fmt.Sprintf("**%s** - **%s**: %s", entry.Year, entry.Title, entry.Description))
		}
		md += "\n\n## Timeline\n\n" + strings.Join(lines, "\n\n")
	}

	return strings.TrimSpace(md)
}

// MarkdownToSections parses an edited blob back into structure. Headings
// open new sections; a heading titled "timeline" (any case, any level)
// switches to timeline parsing where non-matching lines are dropped.
// Content before the first heading lands in an implicit "Introduction"
// section.
func MarkdownToSections(md string) ParsedContent {
	lines := strings.Split(md, "\n")

	var (
		sections       []Section
		timeline       []TimelineEntry
		current        *Section
		currentContent []string
		inTimeline     bool
	)

	flush := func() {
		if current != nil {
			current.Markdown = strings.TrimSpace(strings.Join(currentContent, "\n"))
			sections = append(sections, *current)
			currentContent = nil
		}
	}

	for _, line := range lines {
		if m := headingPattern.FindStringSubmatch(line); m != nil {
			flush()
			current = nil

			level := len(m[1])
			title := strings.TrimSpace(m[2])

			if strings.EqualFold(title, "timeline") {
				inTimeline = true
			} else {
				inTimeline = false
				current = &Section{
					ID:    SectionID(title),
					Title: title,
					Level: level,
				}
			}
			continue
		}

		switch {
		case inTimeline:
			if m := timelineLinePattern.FindStringSubmatch(line); m != nil {
				timeline = append(timeline, TimelineEntry{
					Year:        strings.TrimSpace(m[1]),
					Title:       strings.TrimSpace(m[2]),
					Description: strings.TrimSpace(m[3]),
				})
			}
		case current != nil:
			currentContent = append(currentContent, line)
		case strings.TrimSpace(line) != "":
			current = &Section{ID: "introduction", Title: "Introduction", Level: 2}
			currentContent = append(currentContent, line)
		}
	}
	flush()

	bodies := make([]string, 0, len(sections))
	for _, s := range sections {
		bodies = append(bodies, s.Markdown)
	}

	return ParsedContent{
		Sections: sections,
		Timeline: timeline,
		Content:  strings.Join(bodies, "\n\n"),
	}
}

// SectionID derives a stable id from a section title. Runs of anything
// outside [a-z0-9] collapse to a hyphen; edge hyphens are kept so ids
// stay stable for titles that start or end with punctuation.
func SectionID(title string) string {
	return sectionIDPattern.ReplaceAllString(strings.ToLower(title), "-")
}
