package orchestrator

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/aescanero/refinery/internal/domain"
)

const maxSuggestions = 5

// splitCodeResponse separates the fenced code block from the surrounding
// explanation in a generator response. Responses without a fence are taken
// verbatim as code.
func splitCodeResponse(text string, lang domain.Language) (code, explanation string) {
	if !strings.Contains(text, "```") {
		return strings.TrimSpace(text), "Code generated"
	}

	parts := strings.Split(text, "```")
	if len(parts) < 3 {
		return strings.TrimSpace(text), "Code generated"
	}

	code = parts[1]
	if strings.HasPrefix(code, string(lang)) {
		code = code[len(lang):]
	}

	explanation = parts[0]
	if len(parts) > 2 {
		explanation += parts[2]
	}

	return strings.TrimSpace(code), strings.TrimSpace(explanation)
}

// extractSuggestions collects bullet and numbered list lines from a critic
// review, capped at maxSuggestions.
func extractSuggestions(text string) []string {
	var suggestions []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(line, "- "), strings.HasPrefix(line, "* "):
			suggestions = append(suggestions, line[2:])
		case len(line) > 2 && line[0] >= '0' && line[0] <= '9' &&
			(line[1:3] == ". " || line[1:3] == ") "):
			suggestions = append(suggestions, line[3:])
		}

		if len(suggestions) == maxSuggestions {
			break
		}
	}
	return suggestions
}

var severityRe = regexp.MustCompile(`severity[^\d]*(\d)`)

// extractSeverity pulls the 1-5 severity rating out of a critic review,
// defaulting to 3 when the critic does not state one.
func extractSeverity(text string) int {
	m := severityRe.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return 3
	}

	severity, err := strconv.Atoi(m[1])
	if err != nil || severity < 1 || severity > 5 {
		return 3
	}
	return severity
}

// reviewConfidence derives a confidence score from response length and
// caps it at 0.9.
func reviewConfidence(text string) float64 {
	confidence := float64(len(text))/1000.0 + 0.3
	if confidence > 0.9 {
		confidence = 0.9
	}
	return confidence
}
