// Package directory manages the member roster and its groupings. The
// hierarchy is one level deep: a member either is a head of family or names
// one as parent.
package directory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"kotizy/internal/core"
	"kotizy/internal/storage"
)

type Service struct {
	store *storage.SQLiteStore
	now   func() time.Time
}

func NewService(store *storage.SQLiteStore) *Service {
	return &Service{store: store, now: time.Now}
}

func (s *Service) ListMembers(ctx context.Context, activeOnly bool) ([]core.Member, error) {
	return s.store.ListMembers(ctx, activeOnly)
}

func (s *Service) GetMember(ctx context.Context, id uuid.UUID) (core.Member, error) {
	return s.store.GetMember(ctx, id)
}

func (s *Service) CreateMember(ctx context.Context, m core.Member) (core.Member, error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.FirstName = strings.TrimSpace(m.FirstName)
	m.LastName = strings.TrimSpace(m.LastName)
	m.CreatedAt = s.now()

	if err := m.Validate(); err != nil {
		return core.Member{}, err
	}
	if err := s.checkParent(ctx, m); err != nil {
		return core.Member{}, err
	}
	return s.store.CreateMember(ctx, m)
}

func (s *Service) UpdateMember(ctx context.Context, m core.Member) (core.Member, error) {
	m.FirstName = strings.TrimSpace(m.FirstName)
	m.LastName = strings.TrimSpace(m.LastName)

	if err := m.Validate(); err != nil {
		return core.Member{}, err
	}
	if err := s.checkParent(ctx, m); err != nil {
		return core.Member{}, err
	}
	return s.store.UpdateMember(ctx, m)
}

// DeleteMember removes a member. A head of family with dependents still on
// the roster cannot be removed; reassign or remove the dependents first.
func (s *Service) DeleteMember(ctx context.Context, id uuid.UUID) error {
	n, err := s.store.CountDependents(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("member has %d dependents: %w", n, core.ErrConflict)
	}
	return s.store.DeleteMember(ctx, id)
}

// checkParent enforces the one-level hierarchy: the parent must exist and
// must itself be a head of family.
func (s *Service) checkParent(ctx context.Context, m core.Member) error {
	if m.ParentID == nil {
		return nil
	}
	if *m.ParentID == m.ID {
		return fmt.Errorf("member cannot be its own parent: %w", core.ErrConflict)
	}
	parent, err := s.store.GetMember(ctx, *m.ParentID)
	if err != nil {
		return fmt.Errorf("parent: %w", err)
	}
	if parent.ParentID != nil {
		return fmt.Errorf("parent %s is itself a dependent: %w", parent.ID, core.ErrConflict)
	}
	return nil
}

// --- districts and tributes ---

func (s *Service) ListDistricts(ctx context.Context) ([]core.District, error) {
	return s.store.ListDistricts(ctx)
}

func (s *Service) CreateDistrict(ctx context.Context, name string) (core.District, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.District{}, core.ErrEmptyName
	}
	return s.store.CreateDistrict(ctx, name)
}

func (s *Service) DeleteDistrict(ctx context.Context, id int64) error {
	return s.store.DeleteDistrict(ctx, id)
}

func (s *Service) ListTributes(ctx context.Context) ([]core.Tribute, error) {
	return s.store.ListTributes(ctx)
}

func (s *Service) CreateTribute(ctx context.Context, name string) (core.Tribute, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Tribute{}, core.ErrEmptyName
	}
	return s.store.CreateTribute(ctx, name)
}

func (s *Service) DeleteTribute(ctx context.Context, id int64) error {
	return s.store.DeleteTribute(ctx, id)
}
