package http

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/garyjia/internflow/internal/domain/entity"
	"github.com/garyjia/internflow/internal/domain/workflow"
)

const actorKey = "internflow.actor"

// Claims is the identity carried by a bearer token
type Claims struct {
	UserID       string `json:"user_id"`
	Role         string `json:"role"`
	UniversityID string `json:"university_id,omitempty"`
	CompanyID    string `json:"company_id,omitempty"`
	jwt.RegisteredClaims
}

// Actor converts the claims into the identity context used by services
func (c *Claims) Actor() entity.Actor {
	return entity.Actor{
		UserID:       c.UserID,
		Role:         entity.Role(c.Role),
		UniversityID: c.UniversityID,
		CompanyID:    c.CompanyID,
	}
}

// TokenService signs and validates HS256 bearer tokens
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenService creates a token service
func NewTokenService(secret, issuer string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenService{secret: []byte(secret), issuer: issuer, ttl: ttl}
}

// GenerateToken issues a token for actor
func (s *TokenService) GenerateToken(actor entity.Actor) (string, error) {
	if actor.UserID == "" || !actor.Role.IsValid() || actor.Role == entity.RoleSystem {
		return "", fmt.Errorf("cannot issue a token for user %q with role %q", actor.UserID, actor.Role)
	}

	now := time.Now()
	claims := &Claims{
		UserID:       actor.UserID,
		Role:         actor.Role.String(),
		UniversityID: actor.UniversityID,
		CompanyID:    actor.CompanyID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   actor.UserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses a token and returns its claims
func (s *TokenService) ValidateToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("token string is empty")
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("token is not valid")
	}
	if claims.UserID == "" || !entity.Role(claims.Role).IsValid() || entity.Role(claims.Role) == entity.RoleSystem {
		return nil, errors.New("token carries no usable identity")
	}
	return claims, nil
}

// authMiddleware requires a valid bearer token and stores the caller's actor in the gin context
func (h *Handlers) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		parts := strings.Fields(c.GetHeader("Authorization"))
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			h.writeError(c, fmt.Errorf("missing bearer token: %w", workflow.ErrUnauthenticated))
			return
		}

		claims, err := h.tokens.ValidateToken(parts[1])
		if err != nil {
			h.writeError(c, fmt.Errorf("%v: %w", err, workflow.ErrUnauthenticated))
			return
		}

		c.Set(actorKey, claims.Actor())
		c.Next()
	}
}

// actorFrom returns the authenticated caller; the zero Actor if none
func actorFrom(c *gin.Context) entity.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(entity.Actor); ok {
			return actor
		}
	}
	return entity.Actor{}
}
