package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"shop-service/internal/apperr"
	"shop-service/internal/auth"
	"shop-service/internal/mail"
	"shop-service/internal/models"
	"shop-service/internal/util"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// AuthService handles signup, login, bearer token checks and password resets.
type AuthService struct {
	users       UserStore
	tokens      *auth.TokenIssuer
	mailer      mail.Mailer
	adminEmails map[string]bool
	resetTTL    time.Duration
	now         func() time.Time
	logger      *zap.Logger
}

func NewAuthService(users UserStore, tokens *auth.TokenIssuer, mailer mail.Mailer, adminEmails []string, resetTTL time.Duration) *AuthService {
	admins := make(map[string]bool, len(adminEmails))
	for _, e := range adminEmails {
		admins[strings.ToLower(strings.TrimSpace(e))] = true
	}
	return &AuthService{
		users:       users,
		tokens:      tokens,
		mailer:      mailer,
		adminEmails: admins,
		resetTTL:    resetTTL,
		now:         time.Now,
		logger:      util.Named("auth"),
	}
}

type SignupRequest struct {
	Name            string `json:"name" binding:"required,min=3"`
	Email           string `json:"email" binding:"required,email"`
	Phone           string `json:"phone"`
	Password        string `json:"password" binding:"required,min=6"`
	PasswordConfirm string `json:"passwordConfirm" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" binding:"required,email"`
	NewPassword string `json:"newPassword" binding:"required,min=6"`
}

// Signup creates an account and returns it with a fresh token.
func (s *AuthService) Signup(ctx context.Context, req *SignupRequest) (*models.User, string, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.Signup")
	defer span.End()

	if req.Password != req.PasswordConfirm {
		return nil, "", apperr.Validation("Password confirmation is incorrect")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, "", apperr.Conflict("E-mail already in use")
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, "", err
	}

	role := models.RoleUser
	if s.adminEmails[email] {
		role = models.RoleAdmin
	}
	user := &models.User{
		Name:     req.Name,
		Email:    email,
		Phone:    req.Phone,
		Password: req.Password,
		Role:     role,
		Active:   true,
	}
	if err := s.users.Insert(ctx, user); err != nil {
		util.RecordError(span, err)
		return nil, "", err
	}

	token, err := s.tokens.Issue(user.ID.Hex())
	if err != nil {
		return nil, "", err
	}
	s.logger.Info("User signed up", zap.String("user_id", user.ID.Hex()), zap.String("role", role))
	return user, token, nil
}

func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*models.User, string, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.Login")
	defer span.End()

	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, "", apperr.Unauthorized("Incorrect email or password")
		}
		return nil, "", err
	}
	if !auth.CheckPassword(user.Password, req.Password) {
		return nil, "", apperr.Unauthorized("Incorrect email or password")
	}

	token, err := s.tokens.Issue(user.ID.Hex())
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Authenticate resolves a bearer token to its user. allowInactive lets
// deactivated accounts through, for the routes that reactivate them.
func (s *AuthService) Authenticate(ctx context.Context, raw string, allowInactive bool) (*models.User, error) {
	if raw == "" {
		return nil, apperr.Unauthorized("You are not login, please login to get access this route")
	}
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return nil, err
	}
	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return nil, apperr.Unauthorized("Please log in again.")
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Unauthorized("The user that belong to this token does no longer exists")
		}
		return nil, err
	}
	if allowInactive {
		return user, nil
	}
	if !user.Active {
		return nil, apperr.NotFound("You must activate your account")
	}
	if auth.ChangedPasswordAfter(user.PasswordChangedAt, claims) {
		return nil, apperr.Unauthorized("User recently changed their password. Please login again.")
	}
	return user, nil
}

// ForgotPassword mails a six digit reset code. Only its hash is stored.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	ctx, span := util.StartSpan(ctx, "AuthService.ForgotPassword")
	defer span.End()

	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.NotFound("There is no user with this email %s", email)
		}
		return err
	}

	code, hash, err := auth.NewResetCode()
	if err != nil {
		return err
	}
	expires := s.now().Add(s.resetTTL)
	verified := false
	user.PasswordResetCode = hash
	user.PasswordResetExpires = &expires
	user.PasswordResetVerified = &verified
	if err := s.users.Replace(ctx, user); err != nil {
		return fmt.Errorf("failed to store reset code: %w", err)
	}

	if err := s.mailer.Send(ctx, mail.ResetCode(user, code)); err != nil {
		util.RecordError(span, err)
		user.ClearReset()
		if rerr := s.users.Replace(ctx, user); rerr != nil {
			s.logger.Error("Failed to clear reset code", zap.String("user_id", user.ID.Hex()), zap.Error(rerr))
		}
		return apperr.External(err, "There is an error in sending email")
	}
	return nil
}

func (s *AuthService) VerifyResetCode(ctx context.Context, code string) error {
	user, err := s.users.FindByResetCode(ctx, auth.HashResetCode(strings.TrimSpace(code)), s.now())
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.Unauthorized("Reset code invalid or expired")
		}
		return err
	}
	verified := true
	user.PasswordResetVerified = &verified
	return s.users.Replace(ctx, user)
}

// ResetPassword sets a new password once the reset code was verified and
// returns a token for the new session.
func (s *AuthService) ResetPassword(ctx context.Context, req *ResetPasswordRequest) (string, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return "", apperr.NotFound("There is no user with email:%s", email)
		}
		return "", err
	}
	if !user.ResetVerified() {
		return "", apperr.Validation("Reset code not verified")
	}

	now := s.now()
	user.Password = req.NewPassword
	user.PasswordChangedAt = &now
	user.ClearReset()
	if err := s.users.Replace(ctx, user); err != nil {
		return "", err
	}
	return s.tokens.Issue(user.ID.Hex())
}
