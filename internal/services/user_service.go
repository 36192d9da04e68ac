package services

import (
	"context"

	"natours/internal/models"
	"natours/internal/repo"
)

type UserService struct {
	users UserStore
}

// ProfileUpdate carries the fields a user may change on their own account.
type ProfileUpdate struct {
	Name  *string
	Email *string
	Photo *string
}

func NewUserService(users UserStore) *UserService {
	return &UserService{users: users}
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*models.User, error) {
	return s.users.Update(ctx, userID, repo.UserUpdate{Name: upd.Name, Email: upd.Email, Photo: upd.Photo})
}

// Deactivate soft-deletes the caller's account.
func (s *UserService) Deactivate(ctx context.Context, userID string) error {
	return s.users.Deactivate(ctx, userID)
}

func (s *UserService) List(ctx context.Context, opts repo.QueryOptions) ([]models.User, error) {
	return s.users.List(ctx, opts)
}

func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

// Update is the admin update; passwords are never changed here.
func (s *UserService) Update(ctx context.Context, id string, upd repo.UserUpdate) (*models.User, error) {
	return s.users.Update(ctx, id, upd)
}

func (s *UserService) Delete(ctx context.Context, id string) error {
	return s.users.Delete(ctx, id)
}
