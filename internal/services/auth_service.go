package services

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"natours/internal/auth"
	"natours/internal/mail"
	"natours/internal/models"
	"natours/internal/repo"
	"natours/internal/utils"
)

// passwordChangeMargin backdates passwordChangedAt so a token issued in the
// same second as the change still passes the freshness check.
const passwordChangeMargin = time.Second

// UserStore is the part of the user directory the services need.
type UserStore interface {
	Create(ctx context.Context, params repo.CreateUserParams) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error)
	SetResetToken(ctx context.Context, userID string, tokenHash *string, expiresAt *time.Time) error
	ClearResetToken(ctx context.Context, userID string) error
	UpdatePassword(ctx context.Context, userID, passwordHash string, changedAt time.Time) error
	Update(ctx context.Context, id string, upd repo.UserUpdate) (*models.User, error)
	Deactivate(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, opts repo.QueryOptions) ([]models.User, error)
}

type AccountMailer interface {
	SendWelcome(ctx context.Context, to mail.Recipient, url string) error
	SendPasswordReset(ctx context.Context, to mail.Recipient, url string) error
}

type AuthService struct {
	users  UserStore
	hasher *auth.Hasher
	tokens *auth.TokenService
	mailer AccountMailer
	log    *slog.Logger
	now    func() time.Time
}

type SignupInput struct {
	Name     string
	Email    string
	Password string
}

// Session is an authenticated user with a freshly issued token.
type Session struct {
	User  *models.User
	Token string
}

func NewAuthService(users UserStore, hasher *auth.Hasher, tokens *auth.TokenService, mailer AccountMailer, log *slog.Logger) *AuthService {
	return &AuthService{users: users, hasher: hasher, tokens: tokens, mailer: mailer, log: log, now: time.Now}
}

// Signup creates a regular user. The welcome email is best effort.
func (s *AuthService) Signup(ctx context.Context, in SignupInput, welcomeURL string) (*Session, error) {
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, utils.Internal(err)
	}

	user, err := s.users.Create(ctx, repo.CreateUserParams{
		Name:         strings.TrimSpace(in.Name),
		Email:        in.Email,
		Role:         models.RoleUser,
		PasswordHash: hash,
	})
	if err != nil {
		return nil, err
	}

	if err := s.mailer.SendWelcome(ctx, recipient(user), welcomeURL); err != nil {
		s.log.Warn("welcome email failed", "user_id", user.ID, "error", err)
	}

	return s.session(user)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, utils.BadRequest("Please provide email and password!")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	if user == nil || !s.hasher.Verify(password, user.PasswordHash) {
		return nil, utils.Unauthenticated(utils.CodeUnauthenticated, "Incorrect email or password")
	}

	return s.session(user)
}

// ForgotPassword issues a reset token and mails its link. resetURL turns the
// plaintext token into the link. A failed send clears the stored token.
func (s *AuthService) ForgotPassword(ctx context.Context, email string, resetURL func(token string) string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return utils.NotFound("There is no user with email address.")
		}
		return err
	}

	token, err := auth.NewResetToken(s.now())
	if err != nil {
		return utils.Internal(err)
	}
	if err := s.users.SetResetToken(ctx, user.ID, &token.Hash, &token.ExpiresAt); err != nil {
		return err
	}

	if err := s.mailer.SendPasswordReset(ctx, recipient(user), resetURL(token.Plain)); err != nil {
		if clearErr := s.users.ClearResetToken(context.WithoutCancel(ctx), user.ID); clearErr != nil {
			s.log.Error("clear reset token after failed email", "user_id", user.ID, "error", clearErr)
		}
		return utils.Upstream(http.StatusInternalServerError, "There was an error sending the email. Try again later!", err)
	}
	return nil
}

// ResetPassword consumes a reset token and logs the user in.
func (s *AuthService) ResetPassword(ctx context.Context, plainToken, password string) (*Session, error) {
	now := s.now()
	user, err := s.users.GetByResetToken(ctx, auth.HashResetToken(plainToken), now)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, utils.NewAppError(http.StatusBadRequest, utils.CodeTokenInvalidOrExpired, "Token is invalid or has expired", nil)
		}
		return nil, err
	}

	if err := s.setPassword(ctx, user, password); err != nil {
		return nil, err
	}
	return s.session(user)
}

// UpdatePassword changes the password of a signed-in user after checking the
// current one.
func (s *AuthService) UpdatePassword(ctx context.Context, user *models.User, current, password string) (*Session, error) {
	if !s.hasher.Verify(current, user.PasswordHash) {
		return nil, utils.Unauthenticated(utils.CodeUnauthenticated, "Your current password is wrong")
	}
	if err := s.setPassword(ctx, user, password); err != nil {
		return nil, err
	}
	return s.session(user)
}

func (s *AuthService) setPassword(ctx context.Context, user *models.User, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return utils.Internal(err)
	}
	changedAt := s.now().Add(-passwordChangeMargin)
	if err := s.users.UpdatePassword(ctx, user.ID, hash, changedAt); err != nil {
		return err
	}
	user.PasswordHash = hash
	user.PasswordChangedAt = &changedAt
	user.PasswordResetToken = nil
	user.PasswordResetExpires = nil
	return nil
}

// Authenticate verifies a bearer token and resolves its active, fresh owner.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	info, err := s.tokens.Verify(token)
	if err != nil {
		return nil, utils.Normalize(err)
	}

	user, err := s.users.GetByID(ctx, info.UserID)
	if err != nil {
		var idErr *repo.InvalidIDError
		if errors.Is(err, repo.ErrNotFound) || errors.As(err, &idErr) {
			return nil, utils.Unauthenticated(utils.CodeUserNoLongerExists, "The user belonging to this token does no longer exist.")
		}
		return nil, err
	}

	if user.ChangedPasswordAfter(info.IssuedAt) {
		return nil, utils.Unauthenticated(utils.CodePasswordChangedSince, "User recently changed password! Please log in again.")
	}
	return user, nil
}

// Identify is Authenticate without the error: any failure means no identity.
func (s *AuthService) Identify(ctx context.Context, token string) (*models.User, bool) {
	if token == "" {
		return nil, false
	}
	user, err := s.Authenticate(ctx, token)
	if err != nil {
		return nil, false
	}
	return user, true
}

func (s *AuthService) session(user *models.User) (*Session, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, utils.Internal(err)
	}
	return &Session{User: user, Token: token}, nil
}

func recipient(user *models.User) mail.Recipient {
	return mail.Recipient{Name: user.Name, Email: user.Email}
}
