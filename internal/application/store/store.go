// Package store exposes typed persistence operations over the generic
// keyed store for the five entity kinds of the pipeline.
package store

import (
	"context"

	"github.com/aescanero/refinery/internal/domain"
	"github.com/aescanero/refinery/internal/ports"
)

// EntityStore provides typed reads and writes for pipeline entities. Every
// write carries the expiry configured on the underlying keyed store; expiry
// is a cleanup policy, the orchestrator never relies on an entity surviving
// past its own run.
type EntityStore struct {
	kv ports.KeyedStore
}

// New creates an EntityStore over a keyed store.
func New(kv ports.KeyedStore) *EntityStore {
	return &EntityStore{kv: kv}
}

func (s *EntityStore) SaveRequest(ctx context.Context, r *domain.Request) error {
	return s.kv.Put(ctx, ports.KindRequest, r.ID, r)
}

func (s *EntityStore) GetRequest(ctx context.Context, id string) (*domain.Request, error) {
	var r domain.Request
	if err := s.kv.Get(ctx, ports.KindRequest, id, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *EntityStore) SaveSession(ctx context.Context, sess *domain.Session) error {
	return s.kv.Put(ctx, ports.KindSession, sess.ID, sess)
}

func (s *EntityStore) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	var sess domain.Session
	if err := s.kv.Get(ctx, ports.KindSession, id, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *EntityStore) SaveArtifact(ctx context.Context, a *domain.CodeArtifact) error {
	return s.kv.Put(ctx, ports.KindCode, a.ID, a)
}

func (s *EntityStore) GetArtifact(ctx context.Context, id string) (*domain.CodeArtifact, error) {
	var a domain.CodeArtifact
	if err := s.kv.Get(ctx, ports.KindCode, id, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *EntityStore) HasArtifact(ctx context.Context, id string) (bool, error) {
	return s.kv.Exists(ctx, ports.KindCode, id)
}

func (s *EntityStore) SaveReview(ctx context.Context, r *domain.CriticReview) error {
	return s.kv.Put(ctx, ports.KindReview, r.ID, r)
}

func (s *EntityStore) GetReview(ctx context.Context, id string) (*domain.CriticReview, error) {
	var r domain.CriticReview
	if err := s.kv.Get(ctx, ports.KindReview, id, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *EntityStore) HasReview(ctx context.Context, id string) (bool, error) {
	return s.kv.Exists(ctx, ports.KindReview, id)
}

func (s *EntityStore) SaveRanking(ctx context.Context, r *domain.Ranking) error {
	return s.kv.Put(ctx, ports.KindRanking, r.ID, r)
}

func (s *EntityStore) GetRanking(ctx context.Context, id string) (*domain.Ranking, error) {
	var r domain.Ranking
	if err := s.kv.Get(ctx, ports.KindRanking, id, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *EntityStore) HasRanking(ctx context.Context, id string) (bool, error) {
	return s.kv.Exists(ctx, ports.KindRanking, id)
}
