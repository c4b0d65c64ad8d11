package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/aescanero/refinery/internal/application/store"
	"github.com/aescanero/refinery/internal/domain"
	"github.com/aescanero/refinery/internal/ports"
	eventsmem "github.com/aescanero/refinery/pkg/adapters/events/memory"
	storagemem "github.com/aescanero/refinery/pkg/adapters/storage/memory"
)

// fakeGateway returns scripted completions per role, in call order.
type fakeGateway struct {
	mu     sync.Mutex
	queues map[domain.Role][]gatewayResult
	calls  []domain.Role
}

type gatewayResult struct {
	text string
	err  error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{queues: make(map[domain.Role][]gatewayResult)}
}

func (g *fakeGateway) push(role domain.Role, text string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queues[role] = append(g.queues[role], gatewayResult{text: text, err: err})
}

func (g *fakeGateway) Invoke(ctx context.Context, role domain.Role, prompt domain.Prompt) (ports.Completion, error) {
	if _, err := prompt.Render(); err != nil {
		return ports.Completion{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, role)
	q := g.queues[role]
	if len(q) == 0 {
		return ports.Completion{}, domain.NewPermanentError("stub", fmt.Errorf("no scripted completion for role %s", role))
	}
	g.queues[role] = q[1:]
	if q[0].err != nil {
		return ports.Completion{}, q[0].err
	}
	return ports.Completion{Text: q[0].text, Provider: "stub-" + string(role), Latency: time.Millisecond}, nil
}

func (g *fakeGateway) roleCalls(role domain.Role) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, r := range g.calls {
		if r == role {
			n++
		}
	}
	return n
}

func codeResponse(version int) string {
	return fmt.Sprintf("Here is the code:\n```python\ndef solve():  # v%d\n    return %d\n```", version, version)
}

func criticResponse(version int) string {
	return fmt.Sprintf("Review of v%d.\n- tighten the loop\n- add a docstring\nseverity: 2", version)
}

func rankResponse(score1, score2 float64) string {
	return fmt.Sprintf(`RANKING EXPLANATION:
Critic 1 was more actionable.
CRITIC 1 SCORE: %.2f
CRITIC 2 SCORE: %.2f
INCORPORATION PLAN:
Apply critic 1's loop fix.`, score1, score2)
}

type runnerFixture struct {
	runner  *Runner
	store   *store.EntityStore
	gateway *fakeGateway
	bus     *eventsmem.InMemoryEventBus
}

func newRunnerFixture(t *testing.T) *runnerFixture {
	t.Helper()

	entities := store.New(storagemem.NewKeyedStore())
	gw := newFakeGateway()
	bus := eventsmem.NewInMemoryEventBus()

	return &runnerFixture{
		runner:  NewRunner(entities, gw, bus, ports.NopMetrics{}, zap.NewNop(), 0.3),
		store:   entities,
		gateway: gw,
		bus:     bus,
	}
}

func (f *runnerFixture) newSession(t *testing.T, maxIterations int) *domain.Session {
	t.Helper()
	ctx := context.Background()

	req, sess := domain.NewRequest("write a solver", domain.LanguagePython, "", maxIterations)
	if err := f.store.SaveRequest(ctx, req); err != nil {
		t.Fatalf("SaveRequest() error = %v", err)
	}
	if err := f.store.SaveSession(ctx, sess); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}
	return sess
}

// scriptIteration queues one full iteration: generate, both critics, rank.
func (f *runnerFixture) scriptIteration(version int, score1, score2 float64) {
	f.gateway.push(domain.RoleGenerator, codeResponse(version), nil)
	f.gateway.push(domain.RoleCritic1, criticResponse(version), nil)
	f.gateway.push(domain.RoleCritic2, criticResponse(version), nil)
	f.gateway.push(domain.RoleGenerator, rankResponse(score1, score2), nil)
}

func TestRunStopsAtMaxIterations(t *testing.T) {
	f := newRunnerFixture(t)
	sess := f.newSession(t, 2)

	// Scores stay high, so only the iteration bound can stop the run.
	f.scriptIteration(1, 0.9, 0.8)
	f.scriptIteration(2, 0.9, 0.8)

	ctx := context.Background()
	if err := f.runner.Run(ctx, sess.ID); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got, err := f.store.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got.Status != domain.StatusCompleted {
		t.Errorf("Status = %q, want completed", got.Status)
	}

	for version := 1; version <= 2; version++ {
		ok, err := f.store.HasArtifact(ctx, domain.ArtifactID(sess.ID, version))
		if err != nil || !ok {
			t.Errorf("artifact v%d missing (ok=%v err=%v)", version, ok, err)
		}
	}
	if ok, _ := f.store.HasArtifact(ctx, domain.ArtifactID(sess.ID, 3)); ok {
		t.Error("artifact v3 exists past the iteration bound")
	}
}

func TestRunStopsOnLowScores(t *testing.T) {
	f := newRunnerFixture(t)
	sess := f.newSession(t, 5)

	f.scriptIteration(1, 0.2, 0.1)

	ctx := context.Background()
	if err := f.runner.Run(ctx, sess.ID); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got, err := f.store.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got.Status != domain.StatusCompleted {
		t.Errorf("Status = %q, want completed", got.Status)
	}
	if n := f.gateway.roleCalls(domain.RoleGenerator); n != 2 {
		t.Errorf("generator calls = %d, want 2 (one generate, one rank)", n)
	}
	if ok, _ := f.store.HasArtifact(ctx, domain.ArtifactID(sess.ID, 2)); ok {
		t.Error("artifact v2 exists after low-score stop")
	}
}

func TestRunOneHighScoreContinues(t *testing.T) {
	f := newRunnerFixture(t)
	sess := f.newSession(t, 3)

	// Critic 2 scores below threshold but critic 1 does not: iterate.
	f.scriptIteration(1, 0.9, 0.1)
	f.scriptIteration(2, 0.2, 0.1)

	ctx := context.Background()
	if err := f.runner.Run(ctx, sess.ID); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if ok, _ := f.store.HasArtifact(ctx, domain.ArtifactID(sess.ID, 2)); !ok {
		t.Error("artifact v2 missing, high critic 1 score should continue the loop")
	}
	if ok, _ := f.store.HasArtifact(ctx, domain.ArtifactID(sess.ID, 3)); ok {
		t.Error("artifact v3 exists after low-score stop")
	}
}

func TestRunMalformedRankingTerminates(t *testing.T) {
	f := newRunnerFixture(t)
	sess := f.newSession(t, 5)

	f.gateway.push(domain.RoleGenerator, codeResponse(1), nil)
	f.gateway.push(domain.RoleCritic1, criticResponse(1), nil)
	f.gateway.push(domain.RoleCritic2, criticResponse(1), nil)
	f.gateway.push(domain.RoleGenerator, "no scores in this response at all", nil)

	ctx := context.Background()
	if err := f.runner.Run(ctx, sess.ID); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got, err := f.store.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got.Status != domain.StatusCompleted {
		t.Errorf("Status = %q, want completed after malformed ranking", got.Status)
	}

	rank, err := f.store.GetRanking(ctx, domain.RankingID(sess.ID, 1))
	if err != nil {
		t.Fatalf("GetRanking() error = %v", err)
	}
	if !rank.Failed {
		t.Error("ranking Failed = false, want sentinel failure")
	}
	if ok, _ := f.store.HasArtifact(ctx, domain.ArtifactID(sess.ID, 2)); ok {
		t.Error("artifact v2 exists, malformed ranking must stop iteration")
	}
}

func TestRunRankingProviderErrorTerminates(t *testing.T) {
	f := newRunnerFixture(t)
	sess := f.newSession(t, 5)

	f.gateway.push(domain.RoleGenerator, codeResponse(1), nil)
	f.gateway.push(domain.RoleCritic1, criticResponse(1), nil)
	f.gateway.push(domain.RoleCritic2, criticResponse(1), nil)
	f.gateway.push(domain.RoleGenerator, "", domain.NewPermanentError("stub", errors.New("400 bad request")))

	ctx := context.Background()
	if err := f.runner.Run(ctx, sess.ID); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got, _ := f.store.GetSession(ctx, sess.ID)
	if got.Status != domain.StatusCompleted {
		t.Errorf("Status = %q, want completed after ranking call failure", got.Status)
	}

	rank, err := f.store.GetRanking(ctx, domain.RankingID(sess.ID, 1))
	if err != nil {
		t.Fatalf("GetRanking() error = %v", err)
	}
	if !rank.Failed {
		t.Error("ranking Failed = false, want sentinel failure")
	}
	if !strings.Contains(rank.Explanation, "ranking call failed") {
		t.Errorf("Explanation = %q, want failure reason", rank.Explanation)
	}
}

func TestRunCriticFailureFailsSession(t *testing.T) {
	f := newRunnerFixture(t)
	sess := f.newSession(t, 3)

	f.gateway.push(domain.RoleGenerator, codeResponse(1), nil)
	f.gateway.push(domain.RoleCritic1, criticResponse(1), nil)
	f.gateway.push(domain.RoleCritic2, "", domain.NewPermanentError("stub-critic2", errors.New("401 unauthorized")))

	ctx := context.Background()
	if err := f.runner.Run(ctx, sess.ID); err == nil {
		t.Fatal("Run() succeeded, want error when a critic fails terminally")
	}

	got, err := f.store.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got.Status != domain.StatusFailed {
		t.Errorf("Status = %q, want failed", got.Status)
	}
	if !strings.Contains(got.Error, "critic2") {
		t.Errorf("session Error = %q, want critic2 failure reason", got.Error)
	}

	// The surviving critic1 review is retained for diagnostics.
	if ok, _ := f.store.HasReview(ctx, domain.ReviewID(sess.ID, 1, domain.CriticSlot1)); !ok {
		t.Error("critic1 review missing, successful slot must persist despite the other failing")
	}
}

func TestRunTwoIterationHistory(t *testing.T) {
	f := newRunnerFixture(t)
	sess := f.newSession(t, 3)

	f.scriptIteration(1, 0.9, 0.8)
	f.scriptIteration(2, 0.2, 0.1)

	ctx := context.Background()
	if err := f.runner.Run(ctx, sess.ID); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var artifacts, reviews, rankings int
	for version := 1; version <= 3; version++ {
		if ok, _ := f.store.HasArtifact(ctx, domain.ArtifactID(sess.ID, version)); ok {
			artifacts++
		}
		for _, slot := range []domain.CriticSlot{domain.CriticSlot1, domain.CriticSlot2} {
			if ok, _ := f.store.HasReview(ctx, domain.ReviewID(sess.ID, version, slot)); ok {
				reviews++
			}
		}
		if ok, _ := f.store.HasRanking(ctx, domain.RankingID(sess.ID, version)); ok {
			rankings++
		}
	}

	if artifacts != 2 || reviews != 4 || rankings != 2 {
		t.Errorf("history = %d artifacts, %d reviews, %d rankings; want 2/4/2",
			artifacts, reviews, rankings)
	}

	// Version 2 is a refinement and must differ from version 1.
	v1, _ := f.store.GetArtifact(ctx, domain.ArtifactID(sess.ID, 1))
	v2, _ := f.store.GetArtifact(ctx, domain.ArtifactID(sess.ID, 2))
	if v1.Code == v2.Code {
		t.Error("v1 and v2 artifacts are identical")
	}
	if v2.Version != 2 {
		t.Errorf("v2.Version = %d, want 2", v2.Version)
	}
}

func TestRunResumeSkipsPersistedSteps(t *testing.T) {
	f := newRunnerFixture(t)
	sess := f.newSession(t, 1)
	ctx := context.Background()

	// Simulate a run interrupted after the artifact and both reviews were
	// persisted but before the ranking call.
	artifact := &domain.CodeArtifact{
		ID:        domain.ArtifactID(sess.ID, 1),
		SessionID: sess.ID,
		RequestID: sess.RequestID,
		Code:      "def solve(): return 1",
		Version:   1,
		CreatedAt: time.Now().UTC(),
	}
	if err := f.store.SaveArtifact(ctx, artifact); err != nil {
		t.Fatalf("SaveArtifact() error = %v", err)
	}
	for _, slot := range []domain.CriticSlot{domain.CriticSlot1, domain.CriticSlot2} {
		review := &domain.CriticReview{
			ID:         domain.ReviewID(sess.ID, 1, slot),
			SessionID:  sess.ID,
			CodeID:     artifact.ID,
			Slot:       slot,
			Provider:   "stub",
			ReviewText: "- looks fine",
			CreatedAt:  time.Now().UTC(),
		}
		if err := f.store.SaveReview(ctx, review); err != nil {
			t.Fatalf("SaveReview() error = %v", err)
		}
	}
	sess.Status = domain.StatusReviewing
	sess.CurrentCodeID = artifact.ID
	if err := f.store.SaveSession(ctx, sess); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	// Only the ranking call remains.
	f.gateway.push(domain.RoleGenerator, rankResponse(0.9, 0.8), nil)

	if err := f.runner.Run(ctx, sess.ID); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got, _ := f.store.GetSession(ctx, sess.ID)
	if got.Status != domain.StatusCompleted {
		t.Errorf("Status = %q, want completed", got.Status)
	}

	if n := f.gateway.roleCalls(domain.RoleCritic1); n != 0 {
		t.Errorf("critic1 calls = %d, want 0 on resume", n)
	}
	if n := f.gateway.roleCalls(domain.RoleCritic2); n != 0 {
		t.Errorf("critic2 calls = %d, want 0 on resume", n)
	}
	if n := f.gateway.roleCalls(domain.RoleGenerator); n != 1 {
		t.Errorf("generator calls = %d, want 1 (ranking only)", n)
	}
}

func TestRunCompletedSessionIsNoOp(t *testing.T) {
	f := newRunnerFixture(t)
	sess := f.newSession(t, 3)
	ctx := context.Background()

	sess.Status = domain.StatusCompleted
	if err := f.store.SaveSession(ctx, sess); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	if err := f.runner.Run(ctx, sess.ID); err != nil {
		t.Fatalf("Run() on completed session error = %v", err)
	}
	if len(f.gateway.calls) != 0 {
		t.Errorf("gateway calls = %v, want none", f.gateway.calls)
	}
}

func TestRunFailedSessionReturnsError(t *testing.T) {
	f := newRunnerFixture(t)
	sess := f.newSession(t, 3)
	ctx := context.Background()

	sess.Status = domain.StatusFailed
	sess.Error = "earlier failure"
	if err := f.store.SaveSession(ctx, sess); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	if err := f.runner.Run(ctx, sess.ID); err == nil {
		t.Fatal("Run() on failed session succeeded, want error")
	}
}

func TestRunPublishesLifecycleEvents(t *testing.T) {
	f := newRunnerFixture(t)
	sess := f.newSession(t, 1)
	ctx := context.Background()

	var mu sync.Mutex
	seen := make(map[domain.EventType]int)
	err := f.bus.Subscribe(ctx, EventTopic, func(ctx context.Context, event domain.Event) error {
		mu.Lock()
		defer mu.Unlock()
		if event.SessionID != sess.ID {
			t.Errorf("event for session %q, want %q", event.SessionID, sess.ID)
		}
		seen[event.Type]++
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	f.scriptIteration(1, 0.9, 0.8)

	if err := f.runner.Run(ctx, sess.ID); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	for _, want := range []domain.EventType{
		domain.EventTypeStatusChanged,
		domain.EventTypeArtifactCreated,
		domain.EventTypeReviewCreated,
		domain.EventTypeRankingCreated,
		domain.EventTypeSessionCompleted,
	} {
		if seen[want] == 0 {
			t.Errorf("no %s event published", want)
		}
	}
	if seen[domain.EventTypeReviewCreated] != 2 {
		t.Errorf("review events = %d, want 2", seen[domain.EventTypeReviewCreated])
	}
}

func TestRunReviewsRecordProviderLabels(t *testing.T) {
	f := newRunnerFixture(t)
	sess := f.newSession(t, 1)

	f.scriptIteration(1, 0.9, 0.8)

	ctx := context.Background()
	if err := f.runner.Run(ctx, sess.ID); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	r1, err := f.store.GetReview(ctx, domain.ReviewID(sess.ID, 1, domain.CriticSlot1))
	if err != nil {
		t.Fatalf("GetReview() error = %v", err)
	}
	if r1.Provider != "stub-critic1" {
		t.Errorf("critic1 provider = %q", r1.Provider)
	}
	if len(r1.Suggestions) == 0 {
		t.Error("critic1 review has no extracted suggestions")
	}
	if r1.Severity != 2 {
		t.Errorf("critic1 severity = %d, want 2", r1.Severity)
	}
}
