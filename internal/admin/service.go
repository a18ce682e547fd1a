// Package admin exposes operator endpoints for seeding accounts, issuing
// access grants and adjusting credits. Every route sits behind the admin token.
package admin

import (
	"context"
	"errors"
	"log/slog"
	"time"

	accessmodels "instantverify/internal/access/models"
	usermodels "instantverify/internal/users/models"
	id "instantverify/pkg/domain"
	dErrors "instantverify/pkg/domain-errors"
	"instantverify/pkg/platform/sentinel"
	"instantverify/pkg/requestcontext"
)

var (
	errUserIDRequired = dErrors.New(dErrors.CodeValidation, "userId is required")
	errCreditsRange   = dErrors.New(dErrors.CodeValidation, "credits must be between 1 and 1000")
)

type UserStore interface {
	Create(ctx context.Context, user *usermodels.User) error
}

type AccessGranter interface {
	Grant(ctx context.Context, ownerID, granteeID id.UserID, ttl time.Duration) (*accessmodels.AccessGrant, error)
}

type CreditAdder interface {
	Add(ctx context.Context, userID id.UserID, n int) (int, error)
}

type Service struct {
	users   UserStore
	access  AccessGranter
	credits CreditAdder
	logger  *slog.Logger
}

func NewService(users UserStore, access AccessGranter, credits CreditAdder, logger *slog.Logger) *Service {
	return &Service{users: users, access: access, credits: credits, logger: logger}
}

func (s *Service) CreateUser(ctx context.Context, req usermodels.CreateUserRequest) (*usermodels.User, error) {
	user, err := usermodels.NewUser(id.NewUserID(), req.FirstName, req.LastName, req.Email, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "email already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
	}
	s.logger.InfoContext(ctx, "user created by operator",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", user.ID.String(),
	)
	return user, nil
}

func (s *Service) GrantAccess(ctx context.Context, req accessmodels.CreateGrantRequest) (*accessmodels.AccessGrant, error) {
	ownerID, err := id.ParseUserID(req.UserID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid userId")
	}
	granteeID, err := id.ParseUserID(req.GrantedToID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid grantedToId")
	}
	grant, err := s.access.Grant(ctx, ownerID, granteeID, time.Duration(req.TTLHours)*time.Hour)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "access grant issued by operator",
		"request_id", requestcontext.RequestID(ctx),
		"grant_id", grant.ID.String(),
	)
	return grant, nil
}

func (s *Service) AddCredits(ctx context.Context, req AddCreditsRequest) (*CreditsResponse, error) {
	userID, err := id.ParseUserID(req.UserID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid userId")
	}
	balance, err := s.credits.Add(ctx, userID, req.Credits)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "credits added by operator",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", userID.String(),
		"credits", req.Credits,
	)
	return &CreditsResponse{UserID: userID, Credits: balance}, nil
}
