package usecase

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/xavierca1/route2rise-console/internal/entity"
	"github.com/xavierca1/route2rise-console/internal/infra/integration/crm"
	"github.com/xavierca1/route2rise-console/internal/infra/storage"
)

// VerifyPolicy decides what a failed verification does to the stored token.
type VerifyPolicy int

const (
	// ClearOnAnyFailure drops the session on every failure, network ones included.
	ClearOnAnyFailure VerifyPolicy = iota
	// ClearOnRejection keeps the session when the backend was unreachable.
	ClearOnRejection
)

// ParseVerifyPolicy maps a config value onto a policy. Unknown values
// fall back to ClearOnAnyFailure.
func ParseVerifyPolicy(s string) VerifyPolicy {
	if s == "rejection" {
		return ClearOnRejection
	}
	return ClearOnAnyFailure
}

// SessionStore owns the access token and founder name persisted in a
// storage.Store and the login/verify calls that create or end them.
type SessionStore struct {
	client *crm.Client
	store  storage.Store
	policy VerifyPolicy
	logger *zap.Logger
}

// NewSessionStore binds a session to the client's storage, so requests
// made through client carry the token this store writes.
func NewSessionStore(client *crm.Client, policy VerifyPolicy, logger *zap.Logger) *SessionStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionStore{
		client: client,
		store:  client.Store(),
		policy: policy,
		logger: logger,
	}
}

// Login exchanges credentials for a token and persists it with the
// founder name. Backend rejections are returned unchanged.
func (s *SessionStore) Login(ctx context.Context, username, password string) (*entity.LoginResponse, error) {
	var resp entity.LoginResponse
	err := s.client.Do(ctx, "login", http.MethodPost, "/auth/login", nil,
		entity.LoginRequest{Username: username, Password: password}, &resp)
	if err != nil {
		return nil, err
	}

	if resp.AccessToken != "" {
		if err := s.store.Set(ctx, storage.AccessTokenKey, resp.AccessToken); err != nil {
			return nil, fmt.Errorf("persist access token: %w", err)
		}
		if err := s.store.Set(ctx, storage.FounderKey, resp.Founder); err != nil {
			s.clear(ctx)
			return nil, fmt.Errorf("persist founder: %w", err)
		}
		s.logger.Info("session started", zap.String("founder", resp.Founder))
	}

	return &resp, nil
}

// Logout forgets the session locally. The backend is not told.
func (s *SessionStore) Logout(ctx context.Context) {
	s.clear(ctx)
}

// Verify asks the backend to confirm the stored token. It never returns
// an error: any failure yields nil, and the session is cleared as the
// policy dictates.
func (s *SessionStore) Verify(ctx context.Context) *entity.Identity {
	var identity entity.Identity
	err := s.client.Do(ctx, "verify", http.MethodGet, "/auth/verify", nil, nil, &identity)
	if err == nil {
		return &identity
	}

	if s.policy == ClearOnRejection && crm.IsTransport(err) {
		s.logger.Warn("session verification unreachable, keeping token", zap.Error(err))
		return nil
	}

	s.logger.Info("session verification failed", zap.Error(err))
	s.clear(ctx)
	return nil
}

// IsAuthenticated only checks that a token is stored; it says nothing
// about whether the backend would still accept it.
func (s *SessionStore) IsAuthenticated(ctx context.Context) bool {
	token, ok, err := s.store.Get(ctx, storage.AccessTokenKey)
	if err != nil {
		s.logger.Warn("read access token", zap.Error(err))
		return false
	}
	return ok && token != ""
}

// CurrentUser reads the stored session without verifying it.
func (s *SessionStore) CurrentUser(ctx context.Context) entity.CurrentUser {
	var user entity.CurrentUser

	if token, ok, err := s.store.Get(ctx, storage.AccessTokenKey); err == nil && ok {
		user.Token = token
		user.ExpiresAt = TokenExpiry(token)
	}
	if founder, ok, err := s.store.Get(ctx, storage.FounderKey); err == nil && ok {
		user.Founder = founder
	}
	return user
}

func (s *SessionStore) clear(ctx context.Context) {
	for _, key := range []string{storage.AccessTokenKey, storage.FounderKey} {
		if err := s.store.Remove(ctx, key); err != nil {
			s.logger.Warn("clear session key", zap.String("key", key), zap.Error(err))
		}
	}
}

// TokenExpiry reads the exp claim of a JWT without checking its
// signature. Opaque or malformed tokens yield nil.
func TokenExpiry(token string) *time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	t := exp.Time
	return &t
}
