package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"instantverify/internal/access/models"
	usermodels "instantverify/internal/users/models"
	id "instantverify/pkg/domain"
	"instantverify/pkg/platform/sentinel"
)

// UserReader resolves the granting user's display fields, as the SQL join does.
type UserReader interface {
	FindByID(ctx context.Context, userID id.UserID) (*usermodels.User, error)
}

type InMemoryStore struct {
	mu     sync.RWMutex
	grants []*models.AccessGrant
	users  UserReader
}

func NewInMemoryStore(users UserReader) *InMemoryStore {
	return &InMemoryStore{users: users}
}

func (s *InMemoryStore) Create(ctx context.Context, grant *models.AccessGrant) error {
	if _, err := s.users.FindByID(ctx, grant.UserID); err != nil {
		return err
	}
	if _, err := s.users.FindByID(ctx, grant.GrantedToID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.grants {
		if g.ID == grant.ID {
			return sentinel.ErrConflict
		}
	}
	cp := *grant
	s.grants = append(s.grants, &cp)
	return nil
}

// ListActiveForGrantee returns grants to granteeID with expires_at strictly after now,
// ordered by expiry then ID to match the Postgres store.
func (s *InMemoryStore) ListActiveForGrantee(ctx context.Context, granteeID id.UserID, now time.Time) ([]*models.AccessGrant, error) {
	s.mu.RLock()
	var matches []models.AccessGrant
	for _, g := range s.grants {
		if g.GrantedToID == granteeID && g.IsActive(now) {
			matches = append(matches, *g)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(matches, func(a, b models.AccessGrant) int {
		if c := a.ExpiresAt.Compare(b.ExpiresAt); c != 0 {
			return c
		}
		return compareIDs(a.ID.String(), b.ID.String())
	})

	out := make([]*models.AccessGrant, 0, len(matches))
	for i := range matches {
		owner, err := s.users.FindByID(ctx, matches[i].UserID)
		if err != nil {
			return nil, err
		}
		matches[i].User = models.GrantOwner{FirstName: owner.FirstName, LastName: owner.LastName, Email: owner.Email}
		out = append(out, &matches[i])
	}
	return out, nil
}

func compareIDs(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
