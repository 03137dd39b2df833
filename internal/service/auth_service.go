package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/DPLnainar/placement-management-system-sub002/internal/models"
	appErrors "github.com/DPLnainar/placement-management-system-sub002/pkg/errors"
)

// AuthConfig defines how access tokens are verified and issued.
type AuthConfig struct {
	AccessTokenSecret string
	AccessTokenExpiry time.Duration
	Issuer            string
}

// AuthService verifies the access tokens minted by the identity service. It also
// issues tokens with the same secret for internal callers and tests.
type AuthService struct {
	logger *zap.Logger
	config AuthConfig
	now    func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = time.Hour
	}
	return &AuthService{logger: logger, config: config, now: time.Now}
}

// ValidateToken parses and validates an access token returning the claims. Every
// role except SUPERADMIN must carry a college.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	opts := []jwt.ParserOption{jwt.WithTimeFunc(s.now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.config.AccessTokenSecret), nil
	}, opts...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	if err := checkIdentity(claims); err != nil {
		s.logger.Debug("token rejected", zap.String("user_id", claims.UserID), zap.Error(err))
		return nil, err
	}
	return claims, nil
}

// IssueToken signs an access token for identity.
func (s *AuthService) IssueToken(identity models.JWTClaims) (string, time.Time, error) {
	if err := checkIdentity(&identity); err != nil {
		return "", time.Time{}, err
	}
	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(s.config.AccessTokenExpiry)
	identity.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    s.config.Issuer,
		Subject:   identity.UserID,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		NotBefore: jwt.NewNumericDate(issuedAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &identity)
	signed, err := token.SignedString([]byte(s.config.AccessTokenSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func checkIdentity(claims *models.JWTClaims) error {
	if claims.UserID == "" {
		return appErrors.Clone(appErrors.ErrUnauthorized, "token has no subject")
	}
	switch claims.Role {
	case models.RoleSuperAdmin:
		return nil
	case models.RoleAdmin, models.RoleModerator, models.RoleStudent:
		if claims.CollegeID == "" {
			return appErrors.Clone(appErrors.ErrUnauthorized, "token has no college")
		}
		return nil
	default:
		return appErrors.Clone(appErrors.ErrUnauthorized, fmt.Sprintf("unknown role %q", claims.Role))
	}
}
