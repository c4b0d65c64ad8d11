package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aescanero/refinery/internal/domain"
	"github.com/aescanero/refinery/pkg/adapters/storage/memory"
)

func TestSessionRoundTrip(t *testing.T) {
	s := New(memory.NewKeyedStore())
	ctx := context.Background()

	req, sess := domain.NewRequest("write a parser", domain.LanguagePython, "no deps", 3)

	if err := s.SaveRequest(ctx, req); err != nil {
		t.Fatalf("SaveRequest() error = %v", err)
	}
	if err := s.SaveSession(ctx, sess); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	gotReq, err := s.GetRequest(ctx, req.ID)
	if err != nil {
		t.Fatalf("GetRequest() error = %v", err)
	}
	if gotReq.UserPrompt != req.UserPrompt || gotReq.Language != req.Language {
		t.Errorf("GetRequest() = %+v, want %+v", gotReq, req)
	}
	if !gotReq.CreatedAt.Equal(req.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", gotReq.CreatedAt, req.CreatedAt)
	}

	gotSess, err := s.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if gotSess.RequestID != req.ID {
		t.Errorf("RequestID = %q, want %q", gotSess.RequestID, req.ID)
	}
	if gotSess.Status != domain.StatusPending {
		t.Errorf("Status = %q, want pending", gotSess.Status)
	}
	if gotSess.MaxIterations != 3 {
		t.Errorf("MaxIterations = %d, want 3", gotSess.MaxIterations)
	}
}

func TestGetMissingEntityReturnsNotFound(t *testing.T) {
	s := New(memory.NewKeyedStore())
	ctx := context.Background()

	if _, err := s.GetSession(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetSession() error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetArtifact(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetArtifact() error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetRanking(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetRanking() error = %v, want ErrNotFound", err)
	}
}

func TestExistenceChecks(t *testing.T) {
	s := New(memory.NewKeyedStore())
	ctx := context.Background()

	artifactID := domain.ArtifactID("sess-1", 1)

	ok, err := s.HasArtifact(ctx, artifactID)
	if err != nil {
		t.Fatalf("HasArtifact() error = %v", err)
	}
	if ok {
		t.Error("HasArtifact() = true before save")
	}

	artifact := &domain.CodeArtifact{
		ID:        artifactID,
		SessionID: "sess-1",
		Code:      "def f(): pass",
		Version:   1,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.SaveArtifact(ctx, artifact); err != nil {
		t.Fatalf("SaveArtifact() error = %v", err)
	}

	ok, err = s.HasArtifact(ctx, artifactID)
	if err != nil {
		t.Fatalf("HasArtifact() error = %v", err)
	}
	if !ok {
		t.Error("HasArtifact() = false after save")
	}
}

func TestReviewRoundTripPreservesDerivedFields(t *testing.T) {
	s := New(memory.NewKeyedStore())
	ctx := context.Background()

	review := &domain.CriticReview{
		ID:             domain.ReviewID("sess-1", 1, domain.CriticSlot2),
		SessionID:      "sess-1",
		CodeID:         domain.ArtifactID("sess-1", 1),
		Slot:           domain.CriticSlot2,
		Provider:       "claude-3-5-sonnet-20241022",
		ReviewText:     "- fix the loop bound",
		Suggestions:    []string{"fix the loop bound"},
		Severity:       4,
		Confidence:     0.42,
		ProcessingTime: 1300 * time.Millisecond,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.SaveReview(ctx, review); err != nil {
		t.Fatalf("SaveReview() error = %v", err)
	}

	got, err := s.GetReview(ctx, review.ID)
	if err != nil {
		t.Fatalf("GetReview() error = %v", err)
	}
	if got.Provider != review.Provider {
		t.Errorf("Provider = %q, want %q", got.Provider, review.Provider)
	}
	if got.Severity != 4 || got.Confidence != 0.42 {
		t.Errorf("Severity/Confidence = %d/%v", got.Severity, got.Confidence)
	}
	if got.ProcessingTime != review.ProcessingTime {
		t.Errorf("ProcessingTime = %v, want %v", got.ProcessingTime, review.ProcessingTime)
	}
	if len(got.Suggestions) != 1 || got.Suggestions[0] != "fix the loop bound" {
		t.Errorf("Suggestions = %v", got.Suggestions)
	}
}
