package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/betanery/easy-doc-signer-sub000/internal/config"
	"github.com/betanery/easy-doc-signer-sub000/internal/logger"
	"github.com/betanery/easy-doc-signer-sub000/internal/models"
	"github.com/betanery/easy-doc-signer-sub000/internal/repositories"
)

var (
	ErrMissingToken    = errors.New("missing bearer token")
	ErrInvalidToken    = errors.New("invalid token")
	ErrTokenExpired    = errors.New("token expired")
	ErrProfileNotFound = errors.New("profile not found")
	ErrNoTenant        = errors.New("user is not associated with a tenant")
)

// JWTClaims represents the JWT token claims. The subject is the profile id.
type JWTClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// authenticationService implements AuthenticationService
type authenticationService struct {
	logger      *logger.Logger
	profileRepo repositories.ProfileRepository
	tenantRepo  repositories.TenantRepository
	jwtSecret   []byte
	issuer      string
	tokenTTL    time.Duration
}

// NewAuthenticationService creates a new authentication service
func NewAuthenticationService(
	cfg *config.Config,
	logger *logger.Logger,
	profileRepo repositories.ProfileRepository,
	tenantRepo repositories.TenantRepository,
) AuthenticationService {
	return &authenticationService{
		logger:      logger,
		profileRepo: profileRepo,
		tenantRepo:  tenantRepo,
		jwtSecret:   []byte(cfg.Auth.JWTSecret),
		issuer:      cfg.Auth.Issuer,
		tokenTTL:    time.Duration(cfg.Auth.TokenTTL) * time.Second,
	}
}

// ExtractBearerToken returns the token from an Authorization header value
func ExtractBearerToken(header string) (string, error) {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", ErrMissingToken
	}

	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

// ValidateToken verifies a bearer token and returns the identity it carries
func (s *authenticationService) ValidateToken(ctx context.Context, tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}
	if len(s.jwtSecret) == 0 {
		return nil, fmt.Errorf("%w: signing secret not configured", ErrInvalidToken)
	}

	options := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		options = append(options, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, options...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		s.logger.WithError(err).Debug("Failed to parse bearer token")
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return &Identity{UserID: claims.Subject, Email: claims.Email}, nil
}

// ResolveCaller loads the identity's profile and tenant. A profile without a
// tenant is rejected.
func (s *authenticationService) ResolveCaller(ctx context.Context, identity *Identity) (*Caller, error) {
	profile, err := s.profileRepo.GetByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	if !profile.HasTenant() {
		s.logger.WithUser(profile.ID).Warn("Authenticated user has no tenant")
		return nil, ErrNoTenant
	}

	tenant, err := s.tenantRepo.GetByID(ctx, *profile.TenantID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrNoTenant
		}
		return nil, fmt.Errorf("failed to load tenant: %w", err)
	}

	return &Caller{Identity: *identity, Profile: profile, Tenant: tenant}, nil
}

// GenerateToken signs a bearer token for a profile
func (s *authenticationService) GenerateToken(ctx context.Context, profile *models.Profile) (string, error) {
	if len(s.jwtSecret) == 0 {
		return "", errors.New("jwt secret is not configured")
	}

	now := time.Now()
	claims := JWTClaims{
		Email: profile.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Subject:   profile.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		s.logger.WithUser(profile.ID).WithError(err).Error("Failed to sign bearer token")
		return "", err
	}

	return tokenString, nil
}
