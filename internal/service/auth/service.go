package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/hms-api/internal/model"
	"github.com/jwalitptl/hms-api/internal/repository"
	"github.com/jwalitptl/hms-api/internal/service/audit"
	tokens "github.com/jwalitptl/hms-api/pkg/auth"
	apperrors "github.com/jwalitptl/hms-api/pkg/errors"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Auditor is the subset of the audit service used on login.
type Auditor interface {
	Log(ctx context.Context, actor model.Actor, action, entityType string, entityID uuid.UUID, opts *audit.LogOptions) error
}

type Service struct {
	userRepo repository.UserRepository
	jwtSvc   tokens.JWTService
	hasher   tokens.PasswordHasher
	auditor  Auditor
}

func NewService(userRepo repository.UserRepository, jwtSvc tokens.JWTService, hasher tokens.PasswordHasher, auditor Auditor) *Service {
	return &Service{
		userRepo: userRepo,
		jwtSvc:   jwtSvc,
		hasher:   hasher,
		auditor:  auditor,
	}
}

// Login checks credentials and issues an access token. Unknown emails, wrong
// passwords and disabled accounts all fail the same way.
func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.TokenResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Internal(err)
		}
		return nil, apperrors.Unauthorized(ErrInvalidCredentials)
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil || !user.IsActive {
		log.Info().Str("user_id", user.ID.String()).Msg("login rejected")
		return nil, apperrors.Unauthorized(ErrInvalidCredentials)
	}

	token, expiresAt, err := s.jwtSvc.GenerateAccessToken(user)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	now := time.Now().UTC()
	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		log.Warn().Err(err).Str("user_id", user.ID.String()).Msg("failed to update login timestamp")
	}

	if s.auditor != nil {
		if err := s.auditor.Log(ctx, user.Actor(), model.AuditActionLogin, model.AuditEntityUser, user.ID, nil); err != nil {
			log.Warn().Err(err).Msg("failed to audit login")
		}
	}

	return &model.TokenResponse{
		AccessToken: token,
		ExpiresIn:   int64(expiresAt.Sub(now).Seconds()),
		Role:        user.Role,
	}, nil
}

// Authenticate resolves a bearer token to the actor it was issued to.
func (s *Service) Authenticate(ctx context.Context, token string) (model.Actor, error) {
	claims, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		return model.Actor{}, apperrors.Unauthorized(err)
	}
	return model.Actor{ID: claims.UserID, Role: claims.Role}, nil
}
