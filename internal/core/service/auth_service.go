package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/rl1809/stockflow/internal/core/domain"
	"github.com/rl1809/stockflow/internal/port"
)

const minPasswordLength = 6

type RegisterInput struct {
	BusinessName    string `json:"business_name"`
	Phone           string `json:"phone"`
	Email           string `json:"email"`
	Address         string `json:"address"`
	OwnerName       string `json:"owner_name"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type NewUserInput struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     domain.Role `json:"role"`
}

// Principal is the user behind a session together with their business.
type Principal struct {
	User     domain.User     `json:"user"`
	Business domain.Business `json:"business"`
}

func (p Principal) Actor() domain.Actor {
	return domain.Actor{UserID: p.User.ID, BusinessID: p.Business.ID, Role: p.User.Role}
}

type AuthService struct {
	accounts   port.AccountRepository
	sessions   port.SessionStore
	log        zerolog.Logger
	sessionTTL time.Duration
	hashCost   int
	seeder     *CatalogService
	now        func() time.Time
}

func NewAuthService(accounts port.AccountRepository, sessions port.SessionStore, log zerolog.Logger, sessionTTL time.Duration) *AuthService {
	return &AuthService{
		accounts:   accounts,
		sessions:   sessions,
		log:        log,
		sessionTTL: sessionTTL,
		hashCost:   bcrypt.DefaultCost,
		now:        func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// SeedNewBusinesses loads the demo catalog into every newly registered
// business.
func (s *AuthService) SeedNewBusinesses(catalog *CatalogService) {
	s.seeder = catalog
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.Session, *Principal, error) {
	in.Email = normalizeEmail(in.Email)
	for _, f := range []struct{ name, value string }{
		{"business name", in.BusinessName},
		{"phone", in.Phone},
		{"email", in.Email},
		{"owner name", in.OwnerName},
	} {
		if strings.TrimSpace(f.value) == "" {
			return nil, nil, fmt.Errorf("%w: %s is required", ErrValidation, f.name)
		}
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, nil, err
	}
	if in.Password != in.ConfirmPassword {
		return nil, nil, ErrPasswordMismatch
	}
	if err := s.ensureEmailFree(ctx, in.Email); err != nil {
		return nil, nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	business := domain.Business{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(in.BusinessName),
		Phone:     strings.TrimSpace(in.Phone),
		Email:     in.Email,
		Address:   strings.TrimSpace(in.Address),
		CreatedAt: now,
	}
	owner := domain.User{
		ID:           uuid.NewString(),
		BusinessID:   business.ID,
		Name:         strings.TrimSpace(in.OwnerName),
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         domain.RoleSuperAdmin,
		CreatedAt:    now,
	}
	if err := s.accounts.CreateBusiness(ctx, business, owner); err != nil {
		return nil, nil, err
	}
	s.log.Info().Str("business_id", business.ID).Str("user_id", owner.ID).Msg("business registered")

	if s.seeder != nil {
		if _, err := s.seeder.SeedDemoCatalog(ctx, business.ID); err != nil {
			s.log.Warn().Err(err).Str("business_id", business.ID).Msg("seed demo catalog")
		}
	}

	session, err := s.startSession(ctx, owner)
	if err != nil {
		return nil, nil, err
	}
	return session, &Principal{User: owner, Business: business}, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.Session, *Principal, error) {
	user, err := s.accounts.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	business, err := s.accounts.GetBusiness(ctx, user.BusinessID)
	if err != nil {
		return nil, nil, err
	}
	if business == nil {
		return nil, nil, ErrInvalidCredentials
	}

	session, err := s.startSession(ctx, *user)
	if err != nil {
		return nil, nil, err
	}
	return session, &Principal{User: *user, Business: *business}, nil
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.DeleteSession(ctx, token)
}

// Authenticate resolves a bearer token to its user and business.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	session, err := s.sessions.GetSession(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return nil, ErrUnauthenticated
	}

	user, err := s.accounts.GetUser(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || user.BusinessID != session.BusinessID {
		return nil, ErrUnauthenticated
	}
	business, err := s.accounts.GetBusiness(ctx, user.BusinessID)
	if err != nil {
		return nil, err
	}
	if business == nil {
		return nil, ErrUnauthenticated
	}
	return &Principal{User: *user, Business: *business}, nil
}

func (s *AuthService) ListUsers(ctx context.Context, actor domain.Actor) ([]domain.User, error) {
	if !actor.Role.CanManage() {
		return nil, ErrForbidden
	}
	return s.accounts.ListUsers(ctx, actor.BusinessID)
}

func (s *AuthService) AddUser(ctx context.Context, actor domain.Actor, in NewUserInput) (*domain.User, error) {
	if !actor.Role.CanManage() {
		return nil, ErrForbidden
	}

	in.Email = normalizeEmail(in.Email)
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if in.Email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrValidation)
	}
	if in.Role == "" {
		in.Role = domain.RoleUser
	}
	if in.Role != domain.RoleAdmin && in.Role != domain.RoleUser {
		return nil, fmt.Errorf("%w: role must be admin or user", ErrValidation)
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	if err := s.ensureEmailFree(ctx, in.Email); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := domain.User{
		ID:           uuid.NewString(),
		BusinessID:   actor.BusinessID,
		Name:         strings.TrimSpace(in.Name),
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         in.Role,
		CreatedAt:    s.now(),
	}
	if err := s.accounts.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	s.log.Info().Str("business_id", user.BusinessID).Str("user_id", user.ID).Str("role", string(user.Role)).Msg("user added")
	return &user, nil
}

// DeleteUser removes a user of the actor's business. Nobody may delete their
// own account, and only a super admin may delete another super admin.
func (s *AuthService) DeleteUser(ctx context.Context, actor domain.Actor, id string) error {
	if !actor.Role.CanManage() {
		return ErrForbidden
	}
	if id == actor.UserID {
		return ErrSelfDelete
	}

	user, err := s.accounts.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if user == nil || user.BusinessID != actor.BusinessID {
		return ErrUserNotFound
	}
	if user.Role == domain.RoleSuperAdmin && actor.Role != domain.RoleSuperAdmin {
		return ErrForbidden
	}

	err = s.accounts.DeleteUser(ctx, actor.BusinessID, id)
	if errors.Is(err, port.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}

func (s *AuthService) startSession(ctx context.Context, user domain.User) (*domain.Session, error) {
	session := domain.Session{
		Token:      uuid.NewString(),
		UserID:     user.ID,
		BusinessID: user.BusinessID,
		ExpiresAt:  s.now().Add(s.sessionTTL),
	}
	if err := s.sessions.SaveSession(ctx, session, s.sessionTTL); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return &session, nil
}

func (s *AuthService) ensureEmailFree(ctx context.Context, email string) error {
	existing, err := s.accounts.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrEmailTaken
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
