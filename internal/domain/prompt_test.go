package domain

import (
	"strings"
	"testing"
)

func TestRenderGenerateFirstVersion(t *testing.T) {
	p := Prompt{
		Role: RoleGenerator,
		Generate: &GenerateInputs{
			UserPrompt:   "implement a stack",
			Language:     LanguagePython,
			Requirements: "no external deps",
		},
	}

	r, err := p.Render()
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	if r.Temperature != 0.7 {
		t.Errorf("Temperature = %v, want 0.7", r.Temperature)
	}
	if !strings.Contains(r.User, "implement a stack") {
		t.Error("user message missing the prompt")
	}
	if !strings.Contains(r.User, "no external deps") {
		t.Error("user message missing requirements")
	}
	if strings.Contains(r.User, "CRITIC 1 REVIEW") {
		t.Error("first-version prompt carries refinement context")
	}
	if !strings.Contains(r.System, "GENERATOR") {
		t.Error("system prompt missing role")
	}
}

func TestRenderGenerateRefinement(t *testing.T) {
	p := Prompt{
		Role: RoleGenerator,
		Generate: &GenerateInputs{
			UserPrompt:        "implement a stack",
			Language:          LanguagePython,
			PreviousCode:      "class Stack: pass",
			Critic1Review:     "missing push",
			Critic2Review:     "missing pop",
			IncorporationPlan: "add both methods",
		},
	}

	r, err := p.Render()
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	for _, want := range []string{"class Stack: pass", "missing push", "missing pop", "add both methods"} {
		if !strings.Contains(r.User, want) {
			t.Errorf("refinement prompt missing %q", want)
		}
	}
}

func TestRenderReview(t *testing.T) {
	p := Prompt{
		Role: RoleCritic2,
		Review: &ReviewInputs{
			UserPrompt: "implement a stack",
			Language:   LanguageJava,
			Code:       "class Stack {}",
		},
	}

	r, err := p.Render()
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	if r.Temperature != 0.3 {
		t.Errorf("Temperature = %v, want 0.3", r.Temperature)
	}
	if !strings.Contains(r.User, "class Stack {}") {
		t.Error("review prompt missing the code")
	}
	if !strings.Contains(r.System, "CRITIC 2") {
		t.Error("system prompt missing critic role")
	}
}

func TestRenderRank(t *testing.T) {
	p := Prompt{
		Role: RoleGenerator,
		Rank: &RankInputs{
			UserPrompt:         "implement a stack",
			Language:           LanguagePython,
			Code:               "class Stack: pass",
			Critic1Review:      "needs push",
			Critic1Suggestions: []string{"add push"},
			Critic2Review:      "needs pop",
		},
	}

	r, err := p.Render()
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	if r.Temperature != 0.5 {
		t.Errorf("Temperature = %v, want 0.5", r.Temperature)
	}
	for _, want := range []string{"CRITIC 1 SCORE:", "CRITIC 2 SCORE:", "INCORPORATION PLAN:", "- add push", "- (none)"} {
		if !strings.Contains(r.User, want) {
			t.Errorf("rank prompt missing %q", want)
		}
	}
}

func TestRenderMissingPayload(t *testing.T) {
	tests := []struct {
		name   string
		prompt Prompt
	}{
		{"generator without payload", Prompt{Role: RoleGenerator}},
		{"critic without review", Prompt{Role: RoleCritic1}},
		{"unknown role", Prompt{Role: Role("editor")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.prompt.Render(); err == nil {
				t.Error("Render() succeeded, want error")
			}
		})
	}
}
