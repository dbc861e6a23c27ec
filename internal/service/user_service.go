package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"shop-service/internal/apperr"
	"shop-service/internal/auth"
	"shop-service/internal/models"
	"shop-service/internal/util"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// UserService covers the account operations that go beyond plain CRUD.
type UserService struct {
	users  UserStore
	tokens *auth.TokenIssuer
	now    func() time.Time
	logger *zap.Logger
}

func NewUserService(users UserStore, tokens *auth.TokenIssuer) *UserService {
	return &UserService{
		users:  users,
		tokens: tokens,
		now:    time.Now,
		logger: util.Named("users"),
	}
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	Password        string `json:"password" binding:"required,min=6"`
	PasswordConfirm string `json:"passwordConfirm" binding:"required"`
}

type UpdateMeRequest struct {
	Name  *string `json:"name" binding:"omitempty,min=3"`
	Email *string `json:"email" binding:"omitempty,email"`
	Phone *string `json:"phone"`
}

// AdminUpdateUserRequest lists the only fields an admin may change through
// PUT /users/:id. Password and wishlist have their own routes.
type AdminUpdateUserRequest struct {
	Name       *string `json:"name" binding:"omitempty,min=3"`
	Slug       *string `json:"slug"`
	Email      *string `json:"email" binding:"omitempty,email"`
	Phone      *string `json:"phone"`
	ProfileImg *string `json:"profileImg"`
	Role       *string `json:"role" binding:"omitempty,oneof=user admin manager"`
}

func (s *UserService) load(ctx context.Context, rawID string) (*models.User, error) {
	id, err := primitive.ObjectIDFromHex(rawID)
	if err != nil {
		return nil, apperr.Validation("Invalid id format")
	}
	return s.users.FindByID(ctx, id)
}

func (s *UserService) ensureEmailFree(ctx context.Context, email string, owner primitive.ObjectID) error {
	other, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil
		}
		return err
	}
	if other.ID != owner {
		return apperr.Conflict("E-mail already in use")
	}
	return nil
}

func (s *UserService) setPassword(user *models.User, req *ChangePasswordRequest) error {
	if !auth.CheckPassword(user.Password, req.CurrentPassword) {
		return apperr.Validation("Incorrect current password")
	}
	if req.Password != req.PasswordConfirm {
		return apperr.Validation("Password confirmation is incorrect")
	}
	now := s.now()
	user.Password = req.Password
	user.PasswordChangedAt = &now
	return nil
}

// ChangePassword is the admin route; it still requires the user's current
// password.
func (s *UserService) ChangePassword(ctx context.Context, rawID string, req *ChangePasswordRequest) (*models.User, error) {
	user, err := s.load(ctx, rawID)
	if err != nil {
		return nil, err
	}
	if err := s.setPassword(user, req); err != nil {
		return nil, err
	}
	if err := s.users.Replace(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ChangeMyPassword updates the actor's password and issues a new token, since
// every older token stops working.
func (s *UserService) ChangeMyPassword(ctx context.Context, actor *models.User, req *ChangePasswordRequest) (*models.User, string, error) {
	if err := s.setPassword(actor, req); err != nil {
		return nil, "", err
	}
	if err := s.users.Replace(ctx, actor); err != nil {
		return nil, "", err
	}
	token, err := s.tokens.Issue(actor.ID.Hex())
	if err != nil {
		return nil, "", err
	}
	return actor, token, nil
}

func (s *UserService) UpdateMe(ctx context.Context, actor *models.User, req *UpdateMeRequest) (*models.User, error) {
	if req.Email != nil {
		if err := s.ensureEmailFree(ctx, *req.Email, actor.ID); err != nil {
			return nil, err
		}
		actor.Email = *req.Email
	}
	if req.Name != nil {
		actor.Name = *req.Name
	}
	if req.Phone != nil {
		actor.Phone = *req.Phone
	}
	if err := s.users.Replace(ctx, actor); err != nil {
		return nil, err
	}
	return actor, nil
}

func (s *UserService) AdminUpdate(ctx context.Context, rawID string, req *AdminUpdateUserRequest) (*models.User, error) {
	user, err := s.load(ctx, rawID)
	if err != nil {
		return nil, err
	}
	if req.Email != nil {
		if err := s.ensureEmailFree(ctx, *req.Email, user.ID); err != nil {
			return nil, err
		}
		user.Email = *req.Email
	}
	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Slug != nil {
		user.Slug = *req.Slug
	}
	if req.Phone != nil {
		user.Phone = *req.Phone
	}
	if req.ProfileImg != nil {
		user.ProfileImg = *req.ProfileImg
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if err := s.users.Replace(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("User updated by admin", zap.String("user_id", rawID), zap.String("role", user.Role))
	return user, nil
}

// SetActive deactivates (deleteMe) or reactivates (recoverMe) the actor.
func (s *UserService) SetActive(ctx context.Context, actor *models.User, active bool) error {
	actor.Active = active
	return s.users.Replace(ctx, actor)
}
