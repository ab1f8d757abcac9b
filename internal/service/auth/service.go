package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"tasknotes/internal/model"
	"tasknotes/internal/repository"
	"tasknotes/internal/validation"
	"tasknotes/pkg/logger"
	"tasknotes/pkg/rbac"
	"tasknotes/pkg/util"
)

var (
	ErrEmailTaken         = errors.New("email already taken")
	ErrUnknownEmail       = errors.New("unknown email")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("unauthenticated")
)

type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id int) (*model.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
}

type Denylist interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type Service struct {
	users    UserStore
	denylist Denylist
	secret   string
	ttl      time.Duration
	logger   *zap.Logger
}

func NewService(users UserStore, denylist Denylist, secret string, ttl time.Duration, logger *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{users: users, denylist: denylist, secret: secret, ttl: ttl, logger: logger}
}

type RegisterInput struct {
	Name                 string `json:"name" form:"name"`
	Email                string `json:"email" form:"email"`
	Password             string `json:"password" form:"password"`
	PasswordConfirmation string `json:"password_confirmation" form:"password_confirmation"`
}

type LoginInput struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// Session is an authenticated user with a freshly issued token.
type Session struct {
	User   *model.User
	Token  string
	Claims *util.Claims
}

// rejection is a field level refusal that also matches a sentinel with errors.Is.
type rejection struct {
	sentinel error
	errs     *validation.Errors
}

func reject(sentinel error, field, message string) error {
	errs := validation.NewErrors()
	errs.Add(field, message)
	return &rejection{sentinel: sentinel, errs: errs}
}

func (r *rejection) Error() string   { return r.sentinel.Error() }
func (r *rejection) Unwrap() []error { return []error{r.sentinel, r.errs} }

// Register creates a user with the default role and signs them in. Invalid input
// yields *validation.Errors.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	log := logger.WithTrace(ctx, s.logger)
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)

	var lookupErr error
	unique := validation.RuleFunc(func(attr string, v any) string {
		email, _ := v.(string)
		exists, err := s.users.EmailExists(ctx, email)
		if err != nil {
			lookupErr = err
			return ""
		}
		if exists {
			return fmt.Sprintf("The %s has already been taken.", attr)
		}
		return ""
	})

	errs := validation.Schema{
		{Key: "name", Rules: []validation.Rule{validation.Required, validation.Max(255)}},
		{Key: "email", Rules: []validation.Rule{validation.Required, validation.Email, validation.Max(255), unique}},
		{Key: "password", Rules: []validation.Rule{validation.Required, validation.Min(8), validation.Confirmed(in.PasswordConfirmation)}},
	}.Validate(validation.Values{
		"name":     in.Name,
		"email":    in.Email,
		"password": in.Password,
	})
	if lookupErr != nil {
		log.Error("Email lookup failed", zap.Error(lookupErr))
		return nil, fmt.Errorf("check email: %w", lookupErr)
	}
	if errs != nil {
		return nil, errs
	}

	hash, err := util.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &model.User{
		Name:         in.Name,
		Email:        in.Email,
		Role:         rbac.RoleUser,
		PasswordHash: hash,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, reject(ErrEmailTaken, "email", "The email has already been taken.")
		}
		log.Error("Failed to create user", zap.Error(err))
		return nil, err
	}

	log.Info("User registered", zap.Int("user_id", u.ID))
	return s.issue(u)
}

// Login checks credentials and issues a token. Unknown emails and wrong passwords
// are both reported against the email field.
func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	log := logger.WithTrace(ctx, s.logger)
	in.Email = strings.TrimSpace(in.Email)

	errs := validation.Schema{
		{Key: "email", Rules: []validation.Rule{validation.Required, validation.Email}},
		{Key: "password", Rules: []validation.Rule{validation.Required}},
	}.Validate(validation.Values{"email": in.Email, "password": in.Password})
	if errs != nil {
		return nil, errs
	}

	u, err := s.users.FindByEmail(ctx, in.Email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, reject(ErrUnknownEmail, "email", "The selected email is invalid.")
	}
	if err != nil {
		log.Error("User lookup failed", zap.Error(err))
		return nil, err
	}

	if !util.CheckPassword(in.Password, u.PasswordHash) {
		log.Warn("Login with wrong password", zap.Int("user_id", u.ID))
		return nil, reject(ErrInvalidCredentials, "email", "The provided credentials are incorrect.")
	}

	log.Info("User logged in", zap.Int("user_id", u.ID))
	return s.issue(u)
}

func (s *Service) issue(u *model.User) (*Session, error) {
	token, claims, err := util.GenerateJWT(u.ID, u.Role, s.secret, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Session{User: u, Token: token, Claims: claims}, nil
}

// Authenticate parses token and rejects revoked ones. Every failure wraps
// ErrUnauthenticated.
func (s *Service) Authenticate(ctx context.Context, token string) (*util.Claims, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: missing token", ErrUnauthenticated)
	}
	claims, err := util.ParseJWT(token, s.secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
	if err != nil {
		logger.WithTrace(ctx, s.logger).Error("Denylist lookup failed", zap.Error(err))
		return nil, fmt.Errorf("%w: denylist unavailable", ErrUnauthenticated)
	}
	if revoked {
		return nil, fmt.Errorf("%w: token revoked", ErrUnauthenticated)
	}

	// The stored role wins over the one signed into the token, so role changes
	// apply to tokens already issued.
	u, err := s.users.FindByID(ctx, claims.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("%w: user %d no longer exists", ErrUnauthenticated, claims.UserID)
	}
	if err != nil {
		logger.WithTrace(ctx, s.logger).Error("User lookup failed", zap.Int("user_id", claims.UserID), zap.Error(err))
		return nil, fmt.Errorf("%w: user lookup failed", ErrUnauthenticated)
	}
	if !rbac.ValidRole(u.Role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrUnauthenticated, u.Role)
	}
	claims.Role = u.Role
	return claims, nil
}

// Logout revokes the token described by claims until it would have expired.
func (s *Service) Logout(ctx context.Context, claims *util.Claims) error {
	var ttl time.Duration
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if err := s.denylist.Revoke(ctx, claims.ID, ttl); err != nil {
		logger.WithTrace(ctx, s.logger).Error("Failed to revoke token", zap.Error(err))
		return fmt.Errorf("revoke token: %w", err)
	}
	logger.WithTrace(ctx, s.logger).Info("User logged out", zap.Int("user_id", claims.UserID))
	return nil
}
