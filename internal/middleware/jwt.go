package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/edupoint-id/portal-api/internal/models"
	"github.com/edupoint-id/portal-api/pkg/config"
	appErrors "github.com/edupoint-id/portal-api/pkg/errors"
	"github.com/edupoint-id/portal-api/pkg/response"
)

// ContextUserKey is the gin context key storing verified claims.
const ContextUserKey = "currentUser"

// TokenVerifier validates bearer tokens issued by the external identity
// provider. The portal never issues or refreshes tokens.
type TokenVerifier struct {
	secret   []byte
	issuer   string
	audience []string
}

// NewTokenVerifier constructs a verifier from configuration.
func NewTokenVerifier(cfg config.JWTConfig) *TokenVerifier {
	return &TokenVerifier{secret: []byte(cfg.Secret), issuer: cfg.Issuer, audience: cfg.Audience}
}

// Verify parses and validates a token, returning its claims.
func (v *TokenVerifier) Verify(token string) (*models.JWTClaims, error) {
	claims := &models.JWTClaims{}
	options := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if v.issuer != "" {
		options = append(options, jwt.WithIssuer(v.issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, options...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}
	if !parsed.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	if !v.audienceAccepted(claims.Audience) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token audience not accepted")
	}
	if claims.UserID == "" || !claims.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token missing identity claims")
	}
	return claims, nil
}

// audienceAccepted reports whether the token carries at least one of the
// configured audiences. An empty configuration accepts any token.
func (v *TokenVerifier) audienceAccepted(got jwt.ClaimStrings) bool {
	if len(v.audience) == 0 {
		return true
	}
	for _, want := range v.audience {
		for _, aud := range got {
			if aud == want {
				return true
			}
		}
	}
	return false
}

// JWT protects routes by requiring a valid access token.
func JWT(verifier *TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := verifier.Verify(parts[1])
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}
