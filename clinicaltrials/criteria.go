package clinicaltrials

import (
	"fmt"
	"regexp"
	"strings"
)

// Tool responses are forwarded to the model verbatim, so they must stay
// under the action-group payload limit.
const maxResponseSize = 24 * 1024

const truncationNotice = "... (Response truncated due to size limit)"

var (
	exclusionHeading         = regexp.MustCompile(`(?i)\bExclusion\s+Criteria:?`)
	exclusionHeadingFallback = regexp.MustCompile(`(?i)(?:^|\n)\s*exclusion criteria\s*[:|-]?`)
	inclusionHeadingLine     = regexp.MustCompile(`(?i)^\s*inclusion\s+criteria:?\s*$`)
	lineSplit                = regexp.MustCompile(`\r?\n+`)
	loneBullet               = regexp.MustCompile(`^\s*[-•*]\s*$`)
	leadingBullet            = regexp.MustCompile(`^\s*[-•*]\s*`)
)

// parseInclusionCriteria extracts the inclusion section of an eligibility
// block and renders it as a numbered list.
func parseInclusionCriteria(criteria string) string {
	section := exclusionHeading.Split(criteria, 2)[0]
	return formatCriteria(section, true)
}

// parseExclusionCriteria extracts the exclusion section of an eligibility
// block and renders it as a numbered list. Returns ok=false when the block
// has no exclusion section.
func parseExclusionCriteria(criteria string) (string, bool) {
	parts := exclusionHeading.Split(criteria, 2)
	if len(parts) < 2 {
		parts = exclusionHeadingFallback.Split(criteria, 2)
		if len(parts) < 2 {
			return "", false
		}
	}
	return formatCriteria(parts[1], false), true
}

// formatCriteria cleans the criteria lines and numbers them. Bullet
// prefixes are removed and heading or empty lines dropped; each item ends
// with a period.
func formatCriteria(section string, dropInclusionHeading bool) string {
	var cleaned []string
	for _, line := range lineSplit.Split(strings.TrimSpace(section), -1) {
		line = strings.TrimSpace(line)
		if line == "" || loneBullet.MatchString(line) {
			continue
		}
		if dropInclusionHeading && inclusionHeadingLine.MatchString(line) {
			continue
		}
		line = leadingBullet.ReplaceAllString(line, "")
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}

	formatted := make([]string, 0, len(cleaned))
	for i, item := range cleaned {
		if !strings.HasSuffix(item, ".") {
			item += "."
		}
		formatted = append(formatted, fmt.Sprintf("%d. %s", i+1, item))
	}
	return truncateResponse(strings.Join(formatted, "\n"))
}

// truncateResponse cuts a response at a line boundary once it exceeds the
// size limit, appending a notice so the model knows content is missing.
func truncateResponse(text string) string {
	if len(text) <= maxResponseSize {
		return text
	}

	lines := strings.Split(text, "\n")
	var (
		result []string
		size   int
	)
	for _, line := range lines {
		lineSize := len(line) + 1
		if size+lineSize > maxResponseSize {
			result = append(result, truncationNotice)
			break
		}
		result = append(result, line)
		size += lineSize
	}
	return strings.Join(result, "\n")
}
