package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-retail/backoffice/internal/shared"
)

// RepositoryPort abstracts user lookups.
type RepositoryPort interface {
	GetUserByEmail(ctx context.Context, email string) (User, error)
}

// Service issues and resolves opaque bearer tokens backed by redis.
type Service struct {
	repo   RepositoryPort
	tokens *redis.Client
	ttl    time.Duration
}

// NewService builds Service.
func NewService(repo RepositoryPort, tokens *redis.Client, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Service{repo: repo, tokens: tokens, ttl: ttl}
}

func tokenKey(token string) string {
	return "auth:token:" + token
}

// Login verifies credentials and issues a token.
func (s *Service) Login(ctx context.Context, email, password string) (string, shared.Actor, error) {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return "", shared.Actor{}, shared.ErrInvalidCredentials
		}
		return "", shared.Actor{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", shared.Actor{}, shared.ErrInvalidCredentials
	}

	actor := shared.Actor{ID: user.ID, Name: user.Name, Role: user.Role, LocationID: user.LocationID}
	token := uuid.NewString()
	raw, err := json.Marshal(actor)
	if err != nil {
		return "", shared.Actor{}, err
	}
	if err := s.tokens.Set(ctx, tokenKey(token), raw, s.ttl).Err(); err != nil {
		return "", shared.Actor{}, fmt.Errorf("auth: store token: %w", err)
	}
	return token, actor, nil
}

// Resolve maps a token back to its actor and refreshes the TTL.
func (s *Service) Resolve(ctx context.Context, token string) (shared.Actor, error) {
	if token == "" {
		return shared.Actor{}, ErrTokenInvalid
	}
	raw, err := s.tokens.Get(ctx, tokenKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return shared.Actor{}, ErrTokenInvalid
		}
		return shared.Actor{}, err
	}
	var actor shared.Actor
	if err := json.Unmarshal(raw, &actor); err != nil {
		return shared.Actor{}, ErrTokenInvalid
	}
	_ = s.tokens.Expire(ctx, tokenKey(token), s.ttl).Err()
	return actor, nil
}

// Logout revokes a token.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.tokens.Del(ctx, tokenKey(token)).Err()
}
