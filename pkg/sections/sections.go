// Package sections splits generated markdown documents into named, ordered
// sections and recombines them. Sections are delimited by level-2 headings
// (## Title); this is the interchange format between the LLM output and the
// section store.
package sections

import (
	"regexp"
	"sort"
	"strings"
)

// Section is a parsed chunk of a markdown document.
type Section struct {
	Title   string
	Content string
	Order   int
}

var headingRe = regexp.MustCompile(`^##\s+(.+)$`)

// Parse splits markdown into sections at ## headings. Order is a running
// counter starting at 1. Text before the first heading is discarded.
// Heading levels other than exactly two # characters do not start a section.
func Parse(markdown string) []Section {
	lines := strings.Split(markdown, "\n")
	out := make([]Section, 0, 8)
	var current *Section
	var body []string

	flush := func() {
		if current == nil {
			return
		}
		current.Content = strings.TrimSpace(strings.Join(body, "\n"))
		out = append(out, *current)
		current = nil
		body = nil
	}

	for _, line := range lines {
		if m := headingRe.FindStringSubmatch(line); m != nil {
			flush()
			current = &Section{
				Title: strings.TrimSpace(m[1]),
				Order: len(out) + 1,
			}
			continue
		}
		if current != nil {
			body = append(body, line)
		}
	}
	flush()
	return out
}

// Combine renders sections back into one markdown document, sorted by
// ascending order. Each section renders as "## Title\n\n{content}" and
// sections are joined by a blank line.
func Combine(secs []Section) string {
	sorted := make([]Section, len(secs))
	copy(sorted, secs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	parts := make([]string, 0, len(sorted))
	for _, s := range sorted {
		parts = append(parts, "## "+s.Title+"\n\n"+s.Content)
	}
	return strings.Join(parts, "\n\n")
}

// StripEchoedHeading removes a leading ## heading the model echoed back when
// asked to regenerate a single section, returning just the body.
func StripEchoedHeading(text string) string {
	trimmed := strings.TrimSpace(text)
	lines := strings.SplitN(trimmed, "\n", 2)
	if len(lines) > 0 && headingRe.MatchString(lines[0]) {
		if len(lines) == 1 {
			return ""
		}
		return strings.TrimSpace(lines[1])
	}
	return trimmed
}

// fieldSections maps a client profile field to the sections its value feeds.
// Fields with no entry affect nothing.
var fieldSections = map[string][]string{
	"niche":              {"Executive Summary", "Market Analysis", "Content Strategy"},
	"visionStatement":    {"Executive Summary", "Vision & Mission"},
	"targetAudience":     {"Market Analysis", "Audience Profile", "Content Strategy"},
	"audienceAge":        {"Audience Profile"},
	"audiencePainPoints": {"Audience Profile", "Offer Strategy"},
	"brandPersonality":   {"Brand Identity"},
	"brandValues":        {"Brand Identity", "Vision & Mission"},
	"contentPillars":     {"Content Strategy"},
	"currentPlatforms":   {"Content Strategy", "Growth Plan"},
	"currentFollowers":   {"Growth Plan"},
	"monthlyRevenue":     {"Revenue Model", "Financial Projections"},
	"revenueGoal":        {"Revenue Model", "Financial Projections", "Growth Plan"},
	"scalingGoals":       {"Growth Plan", "Offer Strategy"},
	"biggestChallenge":   {"Risk & Mitigation"},
}

// Affected returns the distinct section names touched by the changed client
// fields, in stable sorted order. Unknown fields contribute nothing.
func Affected(changedFields []string) []string {
	set := make(map[string]struct{})
	for _, field := range changedFields {
		for _, name := range fieldSections[field] {
			set[name] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
