// Package ranking parses the generator's ranking-role response into
// comparable critic scores and an incorporation plan.
//
// Model output is free text and must be tolerated when malformed: a parse
// failure yields a sentinel failed result, never an error, and the
// orchestrator maps it to a stop decision. This is the single mechanism
// preventing runaway iteration on a misbehaving feedback signal.
package ranking

import (
	"regexp"
	"strconv"
	"strings"
)

// Parsed is the outcome of parsing one ranking response. When Failed is
// set the scores are zero and Reason says what went wrong.
type Parsed struct {
	Explanation       string
	Critic1Score      float64
	Critic2Score      float64
	IncorporationPlan string
	Failed            bool
	Reason            string
}

var (
	critic1ScoreRe = regexp.MustCompile(`(?i)CRITIC 1 SCORE:\s*([0-9.]+)`)
	critic2ScoreRe = regexp.MustCompile(`(?i)CRITIC 2 SCORE:\s*([0-9.]+)`)
)

// Parse extracts the two critic scores and the incorporation plan from the
// generator's ranking response.
func Parse(text string) Parsed {
	score1, ok1 := extractScore(critic1ScoreRe, text)
	score2, ok2 := extractScore(critic2ScoreRe, text)

	if !ok1 || !ok2 {
		return Parsed{
			Failed: true,
			Reason: "ranking response missing valid scores for both critics",
		}
	}

	explanation, plan := splitSections(text)

	return Parsed{
		Explanation:       explanation,
		Critic1Score:      clamp(score1),
		Critic2Score:      clamp(score2),
		IncorporationPlan: plan,
	}
}

// extractScore finds and validates one score. Non-numeric or out-of-range
// values count as parse failure, not as data.
func extractScore(re *regexp.Regexp, text string) (float64, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}

	v, err := strconv.ParseFloat(strings.TrimRight(m[1], "."), 64)
	if err != nil {
		return 0, false
	}
	if v < 0.0 || v > 1.0 {
		return 0, false
	}

	return v, true
}

func splitSections(text string) (explanation, plan string) {
	parts := strings.SplitN(text, "INCORPORATION PLAN:", 2)

	explanation = strings.TrimSpace(strings.Replace(parts[0], "RANKING EXPLANATION:", "", 1))
	if len(parts) > 1 {
		plan = strings.TrimSpace(parts[1])
	} else {
		plan = "No specific plan provided"
	}
	return explanation, plan
}

func clamp(v float64) float64 {
	if v < 0.0 {
		return 0.0
	}
	if v > 1.0 {
		return 1.0
	}
	return v
}
