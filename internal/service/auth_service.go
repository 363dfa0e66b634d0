package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/rotaops/rota-api/internal/models"
	"github.com/rotaops/rota-api/internal/store"
	appErrors "github.com/rotaops/rota-api/pkg/errors"
)

type authStore interface {
	View(fn func(store.Snapshot) error) error
	Update(fn func(*store.Snapshot) error) error
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret  string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	Issuer             string
	Audience           []string
}

// AuthService provides authentication use cases. Accounts live in the
// snapshot; refresh sessions are held in memory and do not survive a
// restart.
type AuthService struct {
	store     authStore
	sessions  *sessionStore
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(store authStore, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AuthService{
		store:     store,
		sessions:  newSessionStore(),
		validator: validate,
		logger:    logger,
		config:    config,
	}
}

// EnsureAdmin creates the bootstrap admin account when no account with
// the given email exists yet. Empty credentials disable bootstrapping.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	err := s.store.Update(func(snap *store.Snapshot) error {
		if _, ok := snap.UserByEmail(email); ok {
			return errUnchanged
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash bootstrap password")
		}
		now := time.Now().UTC()
		snap.Users = append(snap.Users, models.User{
			ID:           uuid.NewString(),
			Email:        email,
			PasswordHash: string(hash),
			FullName:     "Administrator",
			Role:         models.RoleAdmin,
			Active:       true,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		s.logger.Info("bootstrap admin account created", zap.String("email", email))
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return nil
	}
	return err
}

// Login authenticates a user and returns issued tokens.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	var user models.User
	err := s.store.View(func(snap store.Snapshot) error {
		found, ok := snap.UserByEmail(req.Email)
		if !ok {
			return appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
		}
		user = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account is inactive")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
	}

	accessToken, _, err := s.generateAccessToken(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	refreshTokenValue, err := s.generateRefreshTokenString()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create refresh token")
	}

	now := time.Now().UTC()
	s.sessions.put(models.RefreshToken{
		Token:     refreshTokenValue,
		UserID:    user.ID,
		ExpiresAt: now.Add(s.config.RefreshTokenExpiry),
		CreatedAt: now,
		IPAddress: req.IP,
		UserAgent: req.UserAgent,
	})

	if err := s.updateLastLogin(user.ID, now); err != nil {
		s.logger.Warn("failed to update last login", zap.Error(err))
	}

	return &models.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshTokenValue,
		ExpiresIn:    int64(s.config.AccessTokenExpiry.Seconds()),
		IssuedAt:     now,
		User: models.UserInfo{
			ID:       user.ID,
			Email:    user.Email,
			FullName: user.FullName,
			Role:     user.Role,
		},
	}, nil
}

// RefreshToken exchanges a refresh token for a new access token pair.
// The used token is rotated out.
func (s *AuthService) RefreshToken(ctx context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid refresh payload")
	}

	session, ok := s.sessions.get(req.RefreshToken)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token not found")
	}
	if session.Expired(time.Now().UTC()) {
		s.sessions.delete(req.RefreshToken)
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token is expired")
	}

	var user models.User
	err := s.store.View(func(snap store.Snapshot) error {
		found, ok := snap.UserByID(session.UserID)
		if !ok {
			return appErrors.Clone(appErrors.ErrUnauthorized, "associated user no longer exists")
		}
		user = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account is inactive")
	}

	s.sessions.delete(req.RefreshToken)

	accessToken, _, err := s.generateAccessToken(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate access token")
	}

	refreshTokenValue, err := s.generateRefreshTokenString()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create refresh token")
	}

	now := time.Now().UTC()
	s.sessions.put(models.RefreshToken{
		Token:     refreshTokenValue,
		UserID:    user.ID,
		ExpiresAt: now.Add(s.config.RefreshTokenExpiry),
		CreatedAt: now,
		IPAddress: req.IP,
		UserAgent: req.UserAgent,
	})

	return &models.RefreshTokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshTokenValue,
		ExpiresIn:    int64(s.config.AccessTokenExpiry.Seconds()),
		IssuedAt:     now,
	}, nil
}

// Logout revokes the provided refresh token.
func (s *AuthService) Logout(ctx context.Context, refreshToken, userID string) error {
	session, ok := s.sessions.get(refreshToken)
	if !ok {
		return appErrors.Clone(appErrors.ErrUnauthorized, "refresh token not found")
	}
	if session.UserID != userID {
		return appErrors.Clone(appErrors.ErrForbidden, "token does not belong to user")
	}
	s.sessions.delete(refreshToken)
	return nil
}

// ChangePassword re-verifies the current password, stores the new hash,
// and revokes every refresh session of the account. Open access tokens
// stay valid until they expire.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, req models.ChangePasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid password payload")
	}

	err := s.store.Update(func(snap *store.Snapshot) error {
		for i := range snap.Users {
			if snap.Users[i].ID != userID {
				continue
			}
			if err := bcrypt.CompareHashAndPassword([]byte(snap.Users[i].PasswordHash), []byte(req.OldPassword)); err != nil {
				return appErrors.Clone(appErrors.ErrInvalidCredentials, "current password is incorrect")
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
			if err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
			}
			snap.Users[i].PasswordHash = string(hash)
			snap.Users[i].UpdatedAt = time.Now().UTC()
			return nil
		}
		return appErrors.Clone(appErrors.ErrUnauthorized, "account no longer exists")
	})
	if err != nil {
		return err
	}

	s.sessions.deleteForUser(userID)
	s.logger.Info("password changed", zap.String("user_id", userID))
	return nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	return claims, nil
}

func (s *AuthService) updateLastLogin(userID string, ts time.Time) error {
	err := s.store.Update(func(snap *store.Snapshot) error {
		for i := range snap.Users {
			if snap.Users[i].ID == userID {
				snap.Users[i].LastLogin = &ts
				return nil
			}
		}
		return errUnchanged
	})
	if errors.Is(err, errUnchanged) {
		return nil
	}
	return err
}

func (s *AuthService) generateAccessToken(user models.User) (string, time.Time, error) {
	issuedAt := time.Now().UTC()
	expiresAt := issuedAt.Add(s.config.AccessTokenExpiry)
	claims := &models.JWTClaims{
		UserID:   user.ID,
		Role:     user.Role,
		Email:    user.Email,
		FullName: user.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			Audience:  s.config.Audience,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.AccessTokenSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (s *AuthService) generateRefreshTokenString() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// --- Refresh sessions ---

type sessionStore struct {
	mu    sync.Mutex
	items map[string]models.RefreshToken
}

func newSessionStore() *sessionStore {
	return &sessionStore{items: make(map[string]models.RefreshToken)}
}

func (s *sessionStore) put(token models.RefreshToken) {
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, existing := range s.items {
		if existing.Expired(now) {
			delete(s.items, key)
		}
	}
	s.items[token.Token] = token
}

func (s *sessionStore) get(token string) (models.RefreshToken, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.items[token]
	return session, ok
}

func (s *sessionStore) delete(token string) {
	s.mu.Lock()
	delete(s.items, token)
	s.mu.Unlock()
}

func (s *sessionStore) deleteForUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, session := range s.items {
		if session.UserID == userID {
			delete(s.items, key)
		}
	}
}
