package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"fooddelivery/internal/config"
	"fooddelivery/internal/models"
	"fooddelivery/internal/repositories"
	"fooddelivery/pkg/apperr"
	"fooddelivery/pkg/dbctx"
	"fooddelivery/pkg/logger"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// TokenPair is the result of a successful login.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// AuthService handles business logic for authentication and authorization.
type AuthService struct {
	userRepo    repositories.UserRepository
	revocations repositories.RevocationStore
	jwtSecret   []byte
	accessTTL   time.Duration
	refreshTTL  time.Duration
	log         *logger.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repositories.UserRepository, revocations repositories.RevocationStore, cfg config.JWTConfig, log *logger.Logger) *AuthService {
	if log == nil {
		log = logger.NewNop()
	}
	if revocations == nil {
		revocations = repositories.NewMemoryRevocationStore()
	}
	accessTTL := cfg.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = 30 * time.Minute
	}
	refreshTTL := cfg.RefreshTokenTTL
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &AuthService{
		userRepo:    userRepo,
		revocations: revocations,
		jwtSecret:   []byte(cfg.Secret),
		accessTTL:   accessTTL,
		refreshTTL:  refreshTTL,
		log:         log.With("service", "AuthService"),
	}
}

func (s *AuthService) AccessTTL() time.Duration  { return s.accessTTL }
func (s *AuthService) RefreshTTL() time.Duration { return s.refreshTTL }

// RegisterUser registers a new user, hashes their password, and saves them to the database.
// Field-level failures are reported together as one validation error.
func (s *AuthService) RegisterUser(ctx context.Context, user *models.User) error {
	const op = "AuthService.RegisterUser"
	dbc := dbctx.New(ctx)

	user.Username = strings.TrimSpace(user.Username)
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.Phone = strings.TrimSpace(user.Phone)

	fields := map[string]string{}
	if existing, err := s.userRepo.GetByUsername(dbc, user.Username); err == nil && existing != nil {
		fields["username"] = "A user with that username already exists."
	} else if err != nil && !isNotFound(err) {
		return apperr.MapError(op, err)
	}
	if existing, err := s.userRepo.GetByEmail(dbc, user.Email); err == nil && existing != nil {
		fields["email"] = "Email already exists."
	} else if err != nil && !isNotFound(err) {
		return apperr.MapError(op, err)
	}
	switch {
	case !isPhoneNumber(user.Phone):
		fields["phone"] = "Phone must contain digits only."
	case len(user.Phone) <= 10:
		fields["phone"] = "Phone number too short."
	default:
		if existing, err := s.userRepo.GetByPhone(dbc, user.Phone); err == nil && existing != nil {
			fields["phone"] = "Phone number already exists."
		} else if err != nil && !isNotFound(err) {
			return apperr.MapError(op, err)
		}
	}
	if len(fields) > 0 {
		return apperr.Validation(op, "Registration failed. Check input.", fields)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, op, fmt.Errorf("failed to hash password: %w", err))
	}
	user.Password = string(hashedPassword)
	user.IsStaff = false

	if err := s.userRepo.Create(dbc, user); err != nil {
		if apperr.IsUniqueViolation(err) {
			return apperr.Validation(op, "Registration failed. Check input.", map[string]string{"username": "A user with that username or email already exists."})
		}
		return apperr.MapError(op, err)
	}
	s.log.Info("New user registered", "user_id", user.ID, "username", user.Username)
	return nil
}

// LoginUser authenticates a user and returns an access/refresh token pair.
func (s *AuthService) LoginUser(ctx context.Context, username, password string) (*TokenPair, error) {
	const op = "AuthService.LoginUser"

	user, err := s.userRepo.GetByUsername(dbctx.New(ctx), strings.TrimSpace(username))
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.New(apperr.CodeUnauthorized, op, "Invalid credentials")
		}
		return nil, apperr.MapError(op, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, apperr.New(apperr.CodeUnauthorized, op, "Invalid credentials")
	}

	now := time.Now()
	pair := &TokenPair{
		AccessExpiresAt:  now.Add(s.accessTTL),
		RefreshExpiresAt: now.Add(s.refreshTTL),
	}
	if pair.AccessToken, err = s.sign(user, TokenTypeAccess, now, pair.AccessExpiresAt); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	if pair.RefreshToken, err = s.sign(user, TokenTypeRefresh, now, pair.RefreshExpiresAt); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	s.log.Info("User logged in", "user_id", user.ID)
	return pair, nil
}

// RefreshAccessToken exchanges a valid, unrevoked refresh token for a new access token.
func (s *AuthService) RefreshAccessToken(ctx context.Context, refreshToken string) (string, time.Time, error) {
	const op = "AuthService.RefreshAccessToken"

	claims, err := s.parse(refreshToken, TokenTypeRefresh)
	if err != nil {
		return "", time.Time{}, apperr.New(apperr.CodeUnauthorized, op, "Invalid or expired refresh token")
	}
	jti, _ := claims["jti"].(string)
	revoked, err := s.revocations.IsRevoked(ctx, jti)
	if err != nil {
		return "", time.Time{}, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	if revoked {
		return "", time.Time{}, apperr.New(apperr.CodeUnauthorized, op, "Invalid or expired refresh token")
	}

	userID, _ := claims["user_id"].(string)
	user, err := s.userRepo.GetByID(dbctx.New(ctx), userID)
	if err != nil {
		if isNotFound(err) {
			return "", time.Time{}, apperr.New(apperr.CodeUnauthorized, op, "Invalid or expired refresh token")
		}
		return "", time.Time{}, apperr.MapError(op, err)
	}

	now := time.Now()
	expiresAt := now.Add(s.accessTTL)
	access, err := s.sign(user, TokenTypeAccess, now, expiresAt)
	if err != nil {
		return "", time.Time{}, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	return access, expiresAt, nil
}

// Logout revokes the refresh token for the rest of its lifetime. Invalid tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	claims, err := s.parse(refreshToken, TokenTypeRefresh)
	if err != nil {
		s.log.Warn("Refresh token already invalid", "error", err)
		return nil
	}
	jti, _ := claims["jti"].(string)
	ttl := s.refreshTTL
	if exp, ok := claims["exp"].(float64); ok {
		ttl = time.Until(time.Unix(int64(exp), 0))
	}
	if err := s.revocations.Revoke(ctx, jti, ttl); err != nil {
		return apperr.Wrap(apperr.CodeInternal, "AuthService.Logout", err)
	}
	s.log.Info("Refresh token revoked", "jti", jti)
	return nil
}

// ValidateToken parses and validates an access token, returning the claims if valid.
func (s *AuthService) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	claims, err := s.parse(tokenString, TokenTypeAccess)
	if err != nil {
		s.log.Debug("Token validation error", "error", err)
		return nil, err
	}
	return claims, nil
}

// Profile returns the authenticated user.
func (s *AuthService) Profile(ctx context.Context, userID string) (*models.User, error) {
	const op = "AuthService.Profile"
	user, err := s.userRepo.GetByID(dbctx.New(ctx), userID)
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound(op, "User not found")
		}
		return nil, apperr.MapError(op, err)
	}
	return user, nil
}

// EnsureSuperuser creates a staff account unless the username or email is already taken.
// It reports whether an account was created.
func (s *AuthService) EnsureSuperuser(ctx context.Context, admin config.AdminConfig) (bool, error) {
	const op = "AuthService.EnsureSuperuser"
	dbc := dbctx.New(ctx)

	if admin.Username == "" || admin.Email == "" || admin.Password == "" {
		return false, nil
	}
	if _, err := s.userRepo.GetByUsername(dbc, admin.Username); err == nil {
		s.log.Warn("Superuser username already exists", "username", admin.Username)
		return false, nil
	} else if !isNotFound(err) {
		return false, apperr.MapError(op, err)
	}
	if _, err := s.userRepo.GetByEmail(dbc, admin.Email); err == nil {
		s.log.Warn("Superuser email already exists", "email", admin.Email)
		return false, nil
	} else if !isNotFound(err) {
		return false, apperr.MapError(op, err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(admin.Password), bcrypt.DefaultCost)
	if err != nil {
		return false, apperr.Wrap(apperr.CodeInternal, op, fmt.Errorf("failed to hash password: %w", err))
	}
	user := &models.User{
		Username: admin.Username,
		Email:    strings.ToLower(admin.Email),
		Password: string(hashedPassword),
		IsStaff:  true,
	}
	if err := s.userRepo.Create(dbc, user); err != nil {
		return false, apperr.MapError(op, err)
	}
	s.log.Info("Superuser created successfully", "username", user.Username)
	return true, nil
}

func (s *AuthService) sign(user *models.User, tokenType string, issuedAt, expiresAt time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":    user.ID,
		"username":   user.Username,
		"is_staff":   user.IsStaff,
		"token_type": tokenType,
		"jti":        uuid.New().String(),
		"exp":        expiresAt.Unix(),
		"iat":        issuedAt.Unix(),
	})
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s token: %w", tokenType, err)
	}
	return signed, nil
}

func (s *AuthService) parse(tokenString, wantType string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if t, _ := claims["token_type"].(string); t != wantType {
		return nil, fmt.Errorf("invalid token: expected %s token", wantType)
	}
	return claims, nil
}
