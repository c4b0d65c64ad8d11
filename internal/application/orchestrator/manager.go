package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/aescanero/refinery/internal/application/store"
	"github.com/aescanero/refinery/internal/domain"
	"github.com/aescanero/refinery/internal/ports"
)

// Manager is the trigger surface for the pipeline: it creates
// Request+Session pairs, launches at most one background run per session,
// and answers status reads.
type Manager struct {
	store   *store.EntityStore
	runner  *Runner
	metrics ports.MetricsCollector
	logger  *zap.Logger

	maxIterations int

	// Guards the one-run-per-session invariant the runner relies on.
	active sync.Map // map[string]struct{}
	wg     sync.WaitGroup
}

// NewManager creates a manager around a runner.
func NewManager(entities *store.EntityStore, runner *Runner, metrics ports.MetricsCollector, logger *zap.Logger, maxIterations int) *Manager {
	return &Manager{
		store:         entities,
		runner:        runner,
		metrics:       metrics,
		logger:        logger,
		maxIterations: maxIterations,
	}
}

// StartGeneration creates and persists a Request and its Session, then
// starts orchestration in the background. The run is detached from the
// caller's context: abandoning the HTTP request does not stop it.
func (m *Manager) StartGeneration(ctx context.Context, prompt string, lang domain.Language, requirements string) (*domain.Request, *domain.Session, error) {
	if prompt == "" {
		return nil, nil, fmt.Errorf("prompt is required")
	}
	if !lang.Valid() {
		return nil, nil, fmt.Errorf("unsupported language: %s", lang)
	}

	req, sess := domain.NewRequest(prompt, lang, requirements, m.maxIterations)

	if err := m.store.SaveRequest(ctx, req); err != nil {
		return nil, nil, fmt.Errorf("save request: %w", err)
	}
	if err := m.store.SaveSession(ctx, sess); err != nil {
		return nil, nil, fmt.Errorf("save session: %w", err)
	}

	m.logger.Info("generation request created",
		zap.String("request_id", req.ID),
		zap.String("session_id", sess.ID),
		zap.String("language", string(lang)))

	m.launch(sess.ID)

	return req, sess, nil
}

// Resume restarts orchestration for a session left in a resumable state,
// e.g. after a process restart. Completed steps are skipped through
// persisted entities.
func (m *Manager) Resume(ctx context.Context, sessionID string) error {
	sess, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Status.IsTerminal() {
		return fmt.Errorf("session %s is already %s", sessionID, sess.Status)
	}

	m.launch(sessionID)
	return nil
}

// launch starts one background run unless the session already has one.
func (m *Manager) launch(sessionID string) {
	if _, loaded := m.active.LoadOrStore(sessionID, struct{}{}); loaded {
		m.logger.Warn("run already active for session",
			zap.String("session_id", sessionID))
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.active.Delete(sessionID)

		if err := m.runner.Run(context.Background(), sessionID); err != nil {
			m.logger.Error("session run ended with error",
				zap.String("session_id", sessionID),
				zap.Error(err))
		}
	}()
}

// GetStatus returns the current session state.
func (m *Manager) GetStatus(ctx context.Context, sessionID string) (*domain.Session, error) {
	return m.store.GetSession(ctx, sessionID)
}

// Shutdown waits for active runs to finish or the context to expire.
// Runs are not cancelled: they continue to completion or failure
// independently of callers.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("shutting down orchestrator manager")

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("orchestrator manager shut down complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout with runs still active")
	}
}
