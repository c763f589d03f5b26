package auth

import (
	"context"
	"time"
)

type Service struct {
	Store *Store
}

func NewService(store *Store) *Service {
	return &Service{Store: store}
}

func (s *Service) FindActiveUserByEmail(ctx context.Context, email string) (AuthUser, error) {
	return s.Store.FindActiveUserByEmail(ctx, email)
}

func (s *Service) CreateSession(ctx context.Context, userID int64, refreshTokenHash string, expires time.Time) error {
	return s.Store.CreateSession(ctx, userID, refreshTokenHash, expires)
}

func (s *Service) UpdateLastLogin(ctx context.Context, userID int64) error {
	return s.Store.UpdateLastLogin(ctx, userID)
}

func (s *Service) RevokeSession(ctx context.Context, userID int64, refreshTokenHash string) error {
	return s.Store.RevokeSession(ctx, userID, refreshTokenHash)
}

func (s *Service) SessionValid(ctx context.Context, userID int64, refreshTokenHash string) (bool, error) {
	return s.Store.SessionValid(ctx, userID, refreshTokenHash)
}

func (s *Service) RotateSession(ctx context.Context, userID int64, oldHash, newHash string, expires time.Time) error {
	return s.Store.RotateSession(ctx, userID, oldHash, newHash, expires)
}
