package domain

import (
	"fmt"
	"strings"
)

// Role names a text-generation capability in the pipeline.
type Role string

const (
	RoleGenerator Role = "generator"
	RoleCritic1   Role = "critic1"
	RoleCritic2   Role = "critic2"
)

// GenerateInputs carries everything the generator needs to produce a new
// artifact version. The refinement fields are empty on iteration 0.
type GenerateInputs struct {
	UserPrompt   string
	Language     Language
	Requirements string

	// Refinement context, set from iteration 1 onward.
	PreviousCode      string
	Critic1Review     string
	Critic2Review     string
	IncorporationPlan string
}

// ReviewInputs carries the artifact a critic evaluates.
type ReviewInputs struct {
	UserPrompt string
	Language   Language
	Code       string
}

// RankInputs carries both critic reviews for the generator's ranking role.
type RankInputs struct {
	UserPrompt         string
	Language           Language
	Code               string
	Critic1Review      string
	Critic1Suggestions []string
	Critic2Review      string
	Critic2Suggestions []string
}

// Prompt is the role-tagged payload passed to the gateway. Exactly one of
// the payload fields matching Role is set, keeping the gateway contract
// statically checkable instead of an open-ended map.
type Prompt struct {
	Role     Role
	Generate *GenerateInputs
	Review   *ReviewInputs
	Rank     *RankInputs
}

// Rendered is the provider-ready form of a Prompt.
type Rendered struct {
	System      string
	User        string
	Temperature float64
}

// Render produces the system and user messages for the prompt's role.
func (p Prompt) Render() (Rendered, error) {
	switch p.Role {
	case RoleGenerator:
		if p.Generate != nil {
			return renderGenerate(p.Generate), nil
		}
		if p.Rank != nil {
			return renderRank(p.Rank), nil
		}
		return Rendered{}, fmt.Errorf("generator prompt has no payload")
	case RoleCritic1, RoleCritic2:
		if p.Review == nil {
			return Rendered{}, fmt.Errorf("%s prompt has no review payload", p.Role)
		}
		return renderReview(p.Role, p.Review), nil
	default:
		return Rendered{}, fmt.Errorf("unknown role %q", p.Role)
	}
}

func systemPrompt(role Role, lang Language) string {
	base := fmt.Sprintf("You are an expert %s developer working on a code generation and review system.", lang)

	switch role {
	case RoleGenerator:
		return base + `

Your role is GENERATOR. You will:
1. Generate code based on user prompts
2. Rank critic feedback and incorporate improvements
3. Refine code iteratively based on critic reviews

Guidelines for Generation:
- Write clean, well-structured, documented code
- Follow language best practices and conventions
- Consider edge cases and error handling

Guidelines for Ranking Reviews:
- Evaluate each critic's feedback objectively
- Assign scores (0-1) based on feedback quality and relevance
- Create incorporation plans that address the most important issues

Response format varies by task - follow specific instructions in each prompt.`
	case RoleCritic1:
		return base + `

Your role is CRITIC 1. You will review generated code and provide detailed feedback.

Guidelines:
1. Analyze code for correctness, efficiency, and best practices
2. Check for potential bugs, security issues, and edge cases
3. Suggest specific improvements with clear rationale
4. Rate severity of issues (1=minor to 5=critical)

Response format:
- Overall assessment
- List of specific issues found
- Concrete suggestions for improvement
- Severity ratings for each issue`
	case RoleCritic2:
		return base + `

Your role is CRITIC 2. You will review generated code with a focus on optimization and advanced techniques.

Guidelines:
1. Focus on performance optimization and algorithmic efficiency
2. Identify opportunities for better design patterns
3. Evaluate error handling and fault tolerance
4. Consider maintainability and extensibility

Response format:
- Performance and design assessment
- Optimization opportunities
- Advanced improvement suggestions
- Scalability considerations`
	}
	return base
}

func renderGenerate(in *GenerateInputs) Rendered {
	var b strings.Builder
	if in.PreviousCode == "" {
		fmt.Fprintf(&b, "Generate %s code for the following request:\n\n%s\n", in.Language, in.UserPrompt)
		if in.Requirements != "" {
			fmt.Fprintf(&b, "\nAdditional requirements:\n%s\n", in.Requirements)
		}
		b.WriteString("\nRespond with the code in a fenced code block followed by a short explanation.")
	} else {
		fmt.Fprintf(&b, "You previously generated this %s code for the request: %s\n\n", in.Language, in.UserPrompt)
		fmt.Fprintf(&b, "```%s\n%s\n```\n\n", in.Language, in.PreviousCode)
		b.WriteString("Two critics reviewed it:\n\n")
		fmt.Fprintf(&b, "CRITIC 1 REVIEW:\n%s\n\n", in.Critic1Review)
		fmt.Fprintf(&b, "CRITIC 2 REVIEW:\n%s\n\n", in.Critic2Review)
		fmt.Fprintf(&b, "Your incorporation plan:\n%s\n\n", in.IncorporationPlan)
		b.WriteString("Produce an improved version of the code following the plan. Respond with the code in a fenced code block followed by a short explanation of the changes.")
	}
	return Rendered{
		System:      systemPrompt(RoleGenerator, in.Language),
		User:        b.String(),
		Temperature: 0.7,
	}
}

func renderReview(role Role, in *ReviewInputs) Rendered {
	user := fmt.Sprintf(`Review this %s code that was generated for the following request:

Original Request: %s

Generated Code:
`+"```%s\n%s\n```"+`

Please provide a thorough review following your role guidelines.
Include:
1. Overall assessment
2. Specific issues (if any)
3. Suggestions for improvement
4. Severity rating (1-5) for the most critical issue found
`, in.Language, in.UserPrompt, in.Language, in.Code)

	return Rendered{
		System:      systemPrompt(role, in.Language),
		User:        user,
		Temperature: 0.3,
	}
}

func renderRank(in *RankInputs) Rendered {
	bullets := func(items []string) string {
		if len(items) == 0 {
			return "- (none)"
		}
		lines := make([]string, len(items))
		for i, s := range items {
			lines[i] = "- " + s
		}
		return strings.Join(lines, "\n")
	}

	user := fmt.Sprintf(`You generated this %s code for the request: %s

Your Generated Code:
`+"```%s\n%s\n```"+`

Now review the feedback from two critics and rank their reviews:

CRITIC 1 REVIEW:
%s

Critic 1 Suggestions:
%s

CRITIC 2 REVIEW:
%s

Critic 2 Suggestions:
%s

Tasks:
1. Evaluate each critic's feedback quality and relevance
2. Assign scores (0.0-1.0) to each critic based on value of their feedback
3. Create a plan for incorporating the most valuable feedback

Respond in this format:
RANKING EXPLANATION:
[Your analysis of both reviews]

CRITIC 1 SCORE: [0.0-1.0]
CRITIC 2 SCORE: [0.0-1.0]

INCORPORATION PLAN:
[Detailed plan for how to improve the code based on the most valuable feedback]
`, in.Language, in.UserPrompt, in.Language, in.Code,
		in.Critic1Review, bullets(in.Critic1Suggestions),
		in.Critic2Review, bullets(in.Critic2Suggestions))

	return Rendered{
		System:      systemPrompt(RoleGenerator, in.Language),
		User:        user,
		Temperature: 0.5,
	}
}
