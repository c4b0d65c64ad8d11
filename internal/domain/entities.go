package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Language is a supported target programming language.
type Language string

const (
	LanguagePython     Language = "python"
	LanguageJavaScript Language = "javascript"
	LanguageJava       Language = "java"
	LanguageCPP        Language = "cpp"
)

// Valid reports whether l is one of the supported languages.
func (l Language) Valid() bool {
	switch l {
	case LanguagePython, LanguageJavaScript, LanguageJava, LanguageCPP:
		return true
	}
	return false
}

// CriticSlot identifies one of the two critic positions in an iteration.
type CriticSlot string

const (
	CriticSlot1 CriticSlot = "critic1"
	CriticSlot2 CriticSlot = "critic2"
)

// Request is the immutable user intent that triggers a generation session.
type Request struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	UserPrompt   string    `json:"user_prompt"`
	Language     Language  `json:"language"`
	Requirements string    `json:"requirements,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session is the mutable control state for one Request. The orchestrator is
// its sole writer.
type Session struct {
	ID              string    `json:"id"`
	RequestID       string    `json:"request_id"`
	Status          Status    `json:"status"`
	Iteration       int       `json:"iteration"`
	MaxIterations   int       `json:"max_iterations"`
	CurrentCodeID   string    `json:"current_code_id,omitempty"`
	Critic1ReviewID string    `json:"critic1_review_id,omitempty"`
	Critic2ReviewID string    `json:"critic2_review_id,omitempty"`
	RankingID       string    `json:"ranking_id,omitempty"`
	Error           string    `json:"error,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CodeArtifact is one immutable versioned snapshot of generated code.
// Versions are monotonically increasing per session, starting at 1.
type CodeArtifact struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	RequestID   string    `json:"request_id"`
	Code        string    `json:"code"`
	Explanation string    `json:"explanation,omitempty"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
}

// CriticReview is one critic's immutable verdict on one artifact version.
type CriticReview struct {
	ID             string        `json:"id"`
	SessionID      string        `json:"session_id"`
	CodeID         string        `json:"code_id"`
	Slot           CriticSlot    `json:"slot"`
	Provider       string        `json:"provider"`
	ReviewText     string        `json:"review_text"`
	Suggestions    []string      `json:"suggestions"`
	Severity       int           `json:"severity"`
	Confidence     float64       `json:"confidence"`
	ProcessingTime time.Duration `json:"processing_time"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Ranking is the generator's meta-evaluation of one iteration's two critic
// reviews. When Failed is set the scores carry no signal and the session
// stops iterating.
type Ranking struct {
	ID                string    `json:"id"`
	SessionID         string    `json:"session_id"`
	CodeID            string    `json:"code_id"`
	Critic1ReviewID   string    `json:"critic1_review_id"`
	Critic2ReviewID   string    `json:"critic2_review_id"`
	Explanation       string    `json:"explanation"`
	Critic1Score      float64   `json:"critic1_score"`
	Critic2Score      float64   `json:"critic2_score"`
	IncorporationPlan string    `json:"incorporation_plan"`
	Failed            bool      `json:"failed"`
	CreatedAt         time.Time `json:"created_at"`
}

// Result is the assembled view of a session's full history. Fields for
// not-yet-produced entities are nil or empty when the session is still in
// progress.
type Result struct {
	Session   *Session       `json:"session"`
	Request   *Request       `json:"request"`
	Artifacts []CodeArtifact `json:"artifacts"`
	Reviews   []CriticReview `json:"reviews"`
	Rankings  []Ranking      `json:"rankings"`
	FinalCode string         `json:"final_code,omitempty"`
	Summary   string         `json:"summary,omitempty"`
}

// NewRequest creates a Request and its paired Session.
func NewRequest(prompt string, lang Language, requirements string, maxIterations int) (*Request, *Session) {
	now := time.Now().UTC()
	req := &Request{
		ID:           uuid.New().String(),
		SessionID:    uuid.New().String(),
		UserPrompt:   prompt,
		Language:     lang,
		Requirements: requirements,
		CreatedAt:    now,
	}
	sess := &Session{
		ID:            req.SessionID,
		RequestID:     req.ID,
		Status:        StatusPending,
		Iteration:     0,
		MaxIterations: maxIterations,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return req, sess
}

// ArtifactID returns the deterministic artifact identifier for a session and
// version. Deterministic IDs let a restarted run discover completed steps by
// existence checks alone.
func ArtifactID(sessionID string, version int) string {
	return fmt.Sprintf("%s:v%d", sessionID, version)
}

// ReviewID returns the deterministic review identifier for a session,
// version and critic slot.
func ReviewID(sessionID string, version int, slot CriticSlot) string {
	return fmt.Sprintf("%s:v%d:%s", sessionID, version, slot)
}

// RankingID returns the deterministic ranking identifier for a session and
// version.
func RankingID(sessionID string, version int) string {
	return fmt.Sprintf("%s:v%d", sessionID, version)
}
