package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aescanero/refinery/internal/application/ranking"
	"github.com/aescanero/refinery/internal/application/store"
	"github.com/aescanero/refinery/internal/domain"
	"github.com/aescanero/refinery/internal/ports"
)

// EventTopic is the event bus topic session lifecycle events are
// published on.
const EventTopic = "session.events"

// Runner drives one session at a time through the generation pipeline.
// The trigger layer guarantees at most one active run per session, so the
// runner assumes single-writer access to session state.
type Runner struct {
	store   *store.EntityStore
	gateway ports.TextGateway
	events  ports.EventBus
	metrics ports.MetricsCollector
	logger  *zap.Logger

	lowScoreThreshold float64
}

// NewRunner creates a session runner. lowScoreThreshold is the bound below
// which both critic scores stop the iteration loop.
func NewRunner(
	entities *store.EntityStore,
	gateway ports.TextGateway,
	events ports.EventBus,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	lowScoreThreshold float64,
) *Runner {
	return &Runner{
		store:             entities,
		gateway:           gateway,
		events:            events,
		metrics:           metrics,
		logger:            logger,
		lowScoreThreshold: lowScoreThreshold,
	}
}

// Run drives the session through generate → review → rank cycles until a
// stop condition holds or a step fails terminally. The session must be
// pending or in a resumable transient state; completed steps of an
// interrupted iteration are detected through persisted entities and not
// re-executed.
func (r *Runner) Run(ctx context.Context, sessionID string) error {
	sess, err := r.store.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	if sess.Status == domain.StatusCompleted {
		return nil
	}
	if sess.Status == domain.StatusFailed {
		return fmt.Errorf("session %s already failed: %s", sess.ID, sess.Error)
	}

	req, err := r.store.GetRequest(ctx, sess.RequestID)
	if err != nil {
		return r.fail(ctx, sess, fmt.Errorf("load request: %w", err))
	}

	r.metrics.IncSessionsStarted()
	start := time.Now()
	defer func() {
		r.metrics.ObserveSessionDuration(time.Since(start))
	}()

	r.logger.Info("session run started",
		zap.String("session_id", sess.ID),
		zap.String("language", string(req.Language)),
		zap.Int("iteration", sess.Iteration),
		zap.Int("max_iterations", sess.MaxIterations))

	for {
		version := sess.Iteration + 1

		// Step 1: generate artifact version i+1
		if err := r.transition(ctx, sess, domain.StatusGenerating); err != nil {
			return r.fail(ctx, sess, err)
		}
		artifact, err := r.ensureArtifact(ctx, req, sess, version)
		if err != nil {
			return r.fail(ctx, sess, err)
		}

		// Step 2: both critics concurrently, joined before proceeding
		if err := r.transition(ctx, sess, domain.StatusReviewing); err != nil {
			return r.fail(ctx, sess, err)
		}
		review1, review2, err := r.ensureReviews(ctx, req, sess, artifact)
		if err != nil {
			return r.fail(ctx, sess, err)
		}

		// Step 3: generator ranks both critiques
		if err := r.transition(ctx, sess, domain.StatusRefining); err != nil {
			return r.fail(ctx, sess, err)
		}
		rank, err := r.ensureRanking(ctx, req, sess, artifact, review1, review2)
		if err != nil {
			return r.fail(ctx, sess, err)
		}

		r.metrics.IncIterations()

		// Step 4: stop predicate, first match wins
		switch {
		case version >= sess.MaxIterations:
			r.logger.Info("max iterations reached",
				zap.String("session_id", sess.ID),
				zap.Int("iterations", version))
			return r.complete(ctx, sess)

		case rank.Failed:
			r.logger.Warn("ranking failed, stopping to avoid runaway iteration",
				zap.String("session_id", sess.ID),
				zap.Int("version", version))
			return r.complete(ctx, sess)

		case rank.Critic1Score < r.lowScoreThreshold && rank.Critic2Score < r.lowScoreThreshold:
			r.logger.Info("both critic scores below threshold, feedback not worth incorporating",
				zap.String("session_id", sess.ID),
				zap.Float64("critic1_score", rank.Critic1Score),
				zap.Float64("critic2_score", rank.Critic2Score),
				zap.Float64("threshold", r.lowScoreThreshold))
			return r.complete(ctx, sess)

		default:
			sess.Iteration++
			if err := r.saveSession(ctx, sess); err != nil {
				return r.fail(ctx, sess, err)
			}
		}
	}
}

// ensureArtifact returns the artifact for version, invoking the generator
// only when it is not already persisted.
func (r *Runner) ensureArtifact(ctx context.Context, req *domain.Request, sess *domain.Session, version int) (*domain.CodeArtifact, error) {
	id := domain.ArtifactID(sess.ID, version)

	exists, err := r.store.HasArtifact(ctx, id)
	if err != nil {
		return nil, err
	}
	if exists {
		r.logger.Info("artifact already persisted, skipping generation",
			zap.String("session_id", sess.ID),
			zap.Int("version", version))
		return r.store.GetArtifact(ctx, id)
	}

	inputs := &domain.GenerateInputs{
		UserPrompt:   req.UserPrompt,
		Language:     req.Language,
		Requirements: req.Requirements,
	}
	if version > 1 {
		prev, err := r.refinementContext(ctx, sess, version-1)
		if err != nil {
			return nil, err
		}
		inputs.PreviousCode = prev.code
		inputs.Critic1Review = prev.critic1
		inputs.Critic2Review = prev.critic2
		inputs.IncorporationPlan = prev.plan
	}

	comp, err := r.gateway.Invoke(ctx, domain.RoleGenerator, domain.Prompt{
		Role:     domain.RoleGenerator,
		Generate: inputs,
	})
	if err != nil {
		return nil, fmt.Errorf("generate version %d: %w", version, err)
	}

	code, explanation := splitCodeResponse(comp.Text, req.Language)
	artifact := &domain.CodeArtifact{
		ID:          id,
		SessionID:   sess.ID,
		RequestID:   req.ID,
		Code:        code,
		Explanation: explanation,
		Version:     version,
		CreatedAt:   time.Now().UTC(),
	}

	if err := r.store.SaveArtifact(ctx, artifact); err != nil {
		return nil, err
	}

	sess.CurrentCodeID = artifact.ID
	if err := r.saveSession(ctx, sess); err != nil {
		return nil, err
	}

	r.publish(ctx, sess.ID, domain.EventTypeArtifactCreated, map[string]interface{}{
		"artifact_id": artifact.ID,
		"version":     version,
	})

	return artifact, nil
}

// refinementContext loads the previous iteration's entities needed to build
// the refinement prompt.
type iterationContext struct {
	code    string
	critic1 string
	critic2 string
	plan    string
}

func (r *Runner) refinementContext(ctx context.Context, sess *domain.Session, version int) (*iterationContext, error) {
	artifact, err := r.store.GetArtifact(ctx, domain.ArtifactID(sess.ID, version))
	if err != nil {
		return nil, fmt.Errorf("load previous artifact: %w", err)
	}
	review1, err := r.store.GetReview(ctx, domain.ReviewID(sess.ID, version, domain.CriticSlot1))
	if err != nil {
		return nil, fmt.Errorf("load previous critic1 review: %w", err)
	}
	review2, err := r.store.GetReview(ctx, domain.ReviewID(sess.ID, version, domain.CriticSlot2))
	if err != nil {
		return nil, fmt.Errorf("load previous critic2 review: %w", err)
	}
	rank, err := r.store.GetRanking(ctx, domain.RankingID(sess.ID, version))
	if err != nil {
		return nil, fmt.Errorf("load previous ranking: %w", err)
	}

	return &iterationContext{
		code:    artifact.Code,
		critic1: review1.ReviewText,
		critic2: review2.ReviewText,
		plan:    rank.IncorporationPlan,
	}, nil
}

// ensureReviews runs both critics concurrently against the artifact and
// joins before returning. Whichever finishes first waits for the other.
// Successful reviews are persisted even when the other slot failed; any
// terminal critic failure fails the session.
func (r *Runner) ensureReviews(ctx context.Context, req *domain.Request, sess *domain.Session, artifact *domain.CodeArtifact) (*domain.CriticReview, *domain.CriticReview, error) {
	type slotResult struct {
		review *domain.CriticReview
		err    error
	}

	slots := []struct {
		slot domain.CriticSlot
		role domain.Role
	}{
		{domain.CriticSlot1, domain.RoleCritic1},
		{domain.CriticSlot2, domain.RoleCritic2},
	}

	results := make([]slotResult, len(slots))
	var wg sync.WaitGroup
	for i, s := range slots {
		wg.Add(1)
		go func(i int, slot domain.CriticSlot, role domain.Role) {
			defer wg.Done()
			review, err := r.ensureReview(ctx, req, sess, artifact, slot, role)
			results[i] = slotResult{review: review, err: err}
		}(i, s.slot, s.role)
	}
	wg.Wait()

	for i, res := range results {
		if res.err != nil {
			return nil, nil, fmt.Errorf("%s review: %w", slots[i].slot, res.err)
		}
	}

	sess.Critic1ReviewID = results[0].review.ID
	sess.Critic2ReviewID = results[1].review.ID
	if err := r.saveSession(ctx, sess); err != nil {
		return nil, nil, err
	}

	return results[0].review, results[1].review, nil
}

func (r *Runner) ensureReview(ctx context.Context, req *domain.Request, sess *domain.Session, artifact *domain.CodeArtifact, slot domain.CriticSlot, role domain.Role) (*domain.CriticReview, error) {
	id := domain.ReviewID(sess.ID, artifact.Version, slot)

	exists, err := r.store.HasReview(ctx, id)
	if err != nil {
		return nil, err
	}
	if exists {
		r.logger.Info("review already persisted, skipping critic call",
			zap.String("session_id", sess.ID),
			zap.String("slot", string(slot)),
			zap.Int("version", artifact.Version))
		return r.store.GetReview(ctx, id)
	}

	comp, err := r.gateway.Invoke(ctx, role, domain.Prompt{
		Role: role,
		Review: &domain.ReviewInputs{
			UserPrompt: req.UserPrompt,
			Language:   req.Language,
			Code:       artifact.Code,
		},
	})
	if err != nil {
		return nil, err
	}

	review := &domain.CriticReview{
		ID:             id,
		SessionID:      sess.ID,
		CodeID:         artifact.ID,
		Slot:           slot,
		Provider:       comp.Provider,
		ReviewText:     comp.Text,
		Suggestions:    extractSuggestions(comp.Text),
		Severity:       extractSeverity(comp.Text),
		Confidence:     reviewConfidence(comp.Text),
		ProcessingTime: comp.Latency,
		CreatedAt:      time.Now().UTC(),
	}

	if err := r.store.SaveReview(ctx, review); err != nil {
		return nil, err
	}

	r.publish(ctx, sess.ID, domain.EventTypeReviewCreated, map[string]interface{}{
		"review_id": review.ID,
		"slot":      string(slot),
		"provider":  review.Provider,
		"version":   artifact.Version,
	})

	return review, nil
}

// ensureRanking asks the generator to rank both reviews. Provider failures
// and unparseable responses degrade to a persisted sentinel failed ranking,
// never an error: the run then fails toward termination instead of looping
// on a broken feedback signal. Only store errors propagate.
func (r *Runner) ensureRanking(ctx context.Context, req *domain.Request, sess *domain.Session, artifact *domain.CodeArtifact, review1, review2 *domain.CriticReview) (*domain.Ranking, error) {
	id := domain.RankingID(sess.ID, artifact.Version)

	exists, err := r.store.HasRanking(ctx, id)
	if err != nil {
		return nil, err
	}
	if exists {
		r.logger.Info("ranking already persisted, skipping ranking call",
			zap.String("session_id", sess.ID),
			zap.Int("version", artifact.Version))
		return r.store.GetRanking(ctx, id)
	}

	rank := &domain.Ranking{
		ID:              id,
		SessionID:       sess.ID,
		CodeID:          artifact.ID,
		Critic1ReviewID: review1.ID,
		Critic2ReviewID: review2.ID,
		CreatedAt:       time.Now().UTC(),
	}

	comp, err := r.gateway.Invoke(ctx, domain.RoleGenerator, domain.Prompt{
		Role: domain.RoleGenerator,
		Rank: &domain.RankInputs{
			UserPrompt:         req.UserPrompt,
			Language:           req.Language,
			Code:               artifact.Code,
			Critic1Review:      review1.ReviewText,
			Critic1Suggestions: review1.Suggestions,
			Critic2Review:      review2.ReviewText,
			Critic2Suggestions: review2.Suggestions,
		},
	})
	if err != nil {
		rank.Failed = true
		rank.Explanation = fmt.Sprintf("ranking call failed: %v", err)
		r.metrics.IncRankingFailures()
	} else {
		parsed := ranking.Parse(comp.Text)
		rank.Explanation = parsed.Explanation
		rank.Critic1Score = parsed.Critic1Score
		rank.Critic2Score = parsed.Critic2Score
		rank.IncorporationPlan = parsed.IncorporationPlan
		rank.Failed = parsed.Failed
		if parsed.Failed {
			rank.Explanation = parsed.Reason
			r.metrics.IncRankingFailures()
		}
	}

	if err := r.store.SaveRanking(ctx, rank); err != nil {
		return nil, err
	}

	sess.RankingID = rank.ID
	if err := r.saveSession(ctx, sess); err != nil {
		return nil, err
	}

	r.publish(ctx, sess.ID, domain.EventTypeRankingCreated, map[string]interface{}{
		"ranking_id":    rank.ID,
		"critic1_score": rank.Critic1Score,
		"critic2_score": rank.Critic2Score,
		"failed":        rank.Failed,
	})

	return rank, nil
}

// transition moves the session to the next status and persists it before
// any further step runs. Re-entering the current status, or a status the
// resumed session is already past within the iteration, is a no-op.
func (r *Runner) transition(ctx context.Context, sess *domain.Session, next domain.Status) error {
	if sess.Status == next {
		return nil
	}
	if !sess.Status.CanTransitionTo(next) {
		if sess.Status.After(next) {
			return nil
		}
		return fmt.Errorf("illegal status transition %s -> %s", sess.Status, next)
	}

	sess.Status = next
	if err := r.saveSession(ctx, sess); err != nil {
		return err
	}

	r.publish(ctx, sess.ID, domain.EventTypeStatusChanged, map[string]interface{}{
		"status":    string(next),
		"iteration": sess.Iteration,
	})

	return nil
}

func (r *Runner) saveSession(ctx context.Context, sess *domain.Session) error {
	sess.UpdatedAt = time.Now().UTC()
	return r.store.SaveSession(ctx, sess)
}

func (r *Runner) complete(ctx context.Context, sess *domain.Session) error {
	sess.Status = domain.StatusCompleted
	if err := r.saveSession(ctx, sess); err != nil {
		r.logger.Error("failed to persist completed session",
			zap.String("session_id", sess.ID),
			zap.Error(err))
		return err
	}

	r.publish(ctx, sess.ID, domain.EventTypeSessionCompleted, map[string]interface{}{
		"iterations": sess.Iteration + 1,
	})
	r.metrics.IncSessionsFinished(string(domain.StatusCompleted))

	r.logger.Info("session completed",
		zap.String("session_id", sess.ID),
		zap.Int("iterations", sess.Iteration+1))

	return nil
}

// fail marks the session failed with a human-readable reason. Partially
// completed iteration entities are retained for diagnostics.
func (r *Runner) fail(ctx context.Context, sess *domain.Session, reason error) error {
	sess.Status = domain.StatusFailed
	sess.Error = reason.Error()
	if err := r.saveSession(ctx, sess); err != nil {
		r.logger.Error("failed to persist failed session",
			zap.String("session_id", sess.ID),
			zap.Error(err))
	}

	r.publish(ctx, sess.ID, domain.EventTypeSessionFailed, map[string]interface{}{
		"error": sess.Error,
	})
	r.metrics.IncSessionsFinished(string(domain.StatusFailed))

	r.logger.Error("session failed",
		zap.String("session_id", sess.ID),
		zap.String("reason", sess.Error))

	return reason
}

// publish sends a lifecycle event. Publish failures are logged, never
// fatal: the store is the source of truth, events are advisory.
func (r *Runner) publish(ctx context.Context, sessionID string, eventType domain.EventType, data map[string]interface{}) {
	event := domain.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	if err := r.events.Publish(ctx, EventTopic, event); err != nil {
		r.logger.Warn("failed to publish event",
			zap.String("session_id", sessionID),
			zap.String("type", string(eventType)),
			zap.Error(err))
	}
}
