package orchestrator

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/aescanero/refinery/internal/application/store"
	"github.com/aescanero/refinery/internal/domain"
	"github.com/aescanero/refinery/internal/ports"
	eventsmem "github.com/aescanero/refinery/pkg/adapters/events/memory"
	storagemem "github.com/aescanero/refinery/pkg/adapters/storage/memory"
)

func newTestManager(t *testing.T, gw *fakeGateway, maxIterations int) (*Manager, *store.EntityStore) {
	t.Helper()

	entities := store.New(storagemem.NewKeyedStore())
	runner := NewRunner(entities, gw, eventsmem.NewInMemoryEventBus(), ports.NopMetrics{}, zap.NewNop(), 0.3)
	mgr := NewManager(entities, runner, ports.NopMetrics{}, zap.NewNop(), maxIterations)
	return mgr, entities
}

func TestStartGenerationValidation(t *testing.T) {
	mgr, _ := newTestManager(t, newFakeGateway(), 3)
	ctx := context.Background()

	if _, _, err := mgr.StartGeneration(ctx, "", domain.LanguagePython, ""); err == nil {
		t.Error("StartGeneration() accepted empty prompt")
	}
	if _, _, err := mgr.StartGeneration(ctx, "write code", domain.Language("cobol"), ""); err == nil {
		t.Error("StartGeneration() accepted unsupported language")
	}
}

func TestStartGenerationRunsToCompletion(t *testing.T) {
	gw := newFakeGateway()
	gw.push(domain.RoleGenerator, codeResponse(1), nil)
	gw.push(domain.RoleCritic1, criticResponse(1), nil)
	gw.push(domain.RoleCritic2, criticResponse(1), nil)
	gw.push(domain.RoleGenerator, rankResponse(0.9, 0.8), nil)

	mgr, entities := newTestManager(t, gw, 1)
	ctx := context.Background()

	req, sess, err := mgr.StartGeneration(ctx, "write a solver", domain.LanguagePython, "")
	if err != nil {
		t.Fatalf("StartGeneration() error = %v", err)
	}
	if req.SessionID != sess.ID {
		t.Errorf("request session ID %q != session ID %q", req.SessionID, sess.ID)
	}
	if sess.Status != domain.StatusPending {
		t.Errorf("initial status = %q, want pending", sess.Status)
	}

	// Shutdown waits for the background run.
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mgr.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	got, err := entities.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got.Status != domain.StatusCompleted {
		t.Errorf("final status = %q, want completed", got.Status)
	}
}

func TestResumeRejectsTerminalSession(t *testing.T) {
	mgr, entities := newTestManager(t, newFakeGateway(), 3)
	ctx := context.Background()

	_, sess := domain.NewRequest("write code", domain.LanguagePython, "", 3)
	sess.Status = domain.StatusCompleted
	if err := entities.SaveSession(ctx, sess); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	if err := mgr.Resume(ctx, sess.ID); err == nil {
		t.Error("Resume() accepted a completed session")
	}
}

func TestResumeUnknownSession(t *testing.T) {
	mgr, _ := newTestManager(t, newFakeGateway(), 3)

	if err := mgr.Resume(context.Background(), "missing"); err == nil {
		t.Error("Resume() accepted an unknown session")
	}
}

func TestGetStatus(t *testing.T) {
	gw := newFakeGateway()
	gw.push(domain.RoleGenerator, codeResponse(1), nil)
	gw.push(domain.RoleCritic1, criticResponse(1), nil)
	gw.push(domain.RoleCritic2, criticResponse(1), nil)
	gw.push(domain.RoleGenerator, rankResponse(0.9, 0.8), nil)

	mgr, _ := newTestManager(t, gw, 1)
	ctx := context.Background()

	_, sess, err := mgr.StartGeneration(ctx, "write a solver", domain.LanguagePython, "")
	if err != nil {
		t.Fatalf("StartGeneration() error = %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mgr.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	got, err := mgr.GetStatus(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if got.CurrentCodeID == "" {
		t.Error("CurrentCodeID is empty after a completed run")
	}
	if got.RankingID == "" {
		t.Error("RankingID is empty after a completed run")
	}
}
