// Package assembler reconstructs the full history of a session for
// external consumption. It is read-only and performs no state transitions.
package assembler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aescanero/refinery/internal/application/store"
	"github.com/aescanero/refinery/internal/domain"
)

// Assembler materializes generation results from persisted entities.
type Assembler struct {
	store *store.EntityStore
}

// New creates an assembler over the entity store.
func New(entities *store.EntityStore) *Assembler {
	return &Assembler{store: entities}
}

// Assemble reconstructs the request, the ordered artifact history, all
// reviews and rankings, and the final artifact for a session. In-progress
// sessions yield a well-defined partial result with empty slices and no
// final code for entities not yet produced.
func (a *Assembler) Assemble(ctx context.Context, sessionID string) (*domain.Result, error) {
	sess, err := a.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	req, err := a.store.GetRequest(ctx, sess.RequestID)
	if err != nil {
		return nil, err
	}

	result := &domain.Result{
		Session: sess,
		Request: req,
	}

	// Deterministic IDs make the history enumerable by version. A missing
	// version terminates the walk; later versions cannot exist without it.
	for version := 1; version <= sess.MaxIterations; version++ {
		artifact, err := a.store.GetArtifact(ctx, domain.ArtifactID(sessionID, version))
		if errors.Is(err, domain.ErrNotFound) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("load artifact v%d: %w", version, err)
		}
		result.Artifacts = append(result.Artifacts, *artifact)

		for _, slot := range []domain.CriticSlot{domain.CriticSlot1, domain.CriticSlot2} {
			review, err := a.store.GetReview(ctx, domain.ReviewID(sessionID, version, slot))
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("load %s review v%d: %w", slot, version, err)
			}
			result.Reviews = append(result.Reviews, *review)
		}

		rank, err := a.store.GetRanking(ctx, domain.RankingID(sessionID, version))
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load ranking v%d: %w", version, err)
		}
		result.Rankings = append(result.Rankings, *rank)
	}

	if len(result.Artifacts) > 0 {
		final := result.Artifacts[len(result.Artifacts)-1]
		result.FinalCode = final.Code
		result.Summary = buildSummary(sess, result)
	}

	return result, nil
}

// buildSummary produces a human-readable recap of the run.
func buildSummary(sess *domain.Session, result *domain.Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Generated %d version(s) of %s code over %d iteration(s).",
		len(result.Artifacts), result.Request.Language, len(result.Rankings))

	if sess.Status == domain.StatusFailed {
		fmt.Fprintf(&b, " Run failed: %s", sess.Error)
		return b.String()
	}

	if len(result.Rankings) > 0 {
		last := result.Rankings[len(result.Rankings)-1]
		if last.Failed {
			b.WriteString(" Final ranking could not be parsed; iteration stopped.")
		} else {
			fmt.Fprintf(&b, " Final critic scores: %.2f / %.2f.", last.Critic1Score, last.Critic2Score)
		}
	}

	return b.String()
}
