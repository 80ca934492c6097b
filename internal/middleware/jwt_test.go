package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/edupoint-id/portal-api/internal/models"
	"github.com/edupoint-id/portal-api/pkg/config"
)

func signToken(t *testing.T, secret string, claims *models.JWTClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func protectedRouter(verifier *TokenVerifier, roles ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handlers := []gin.HandlerFunc{JWT(verifier)}
	if len(roles) > 0 {
		handlers = append(handlers, RBAC(roles...))
	}
	router.GET("/", append(handlers, func(c *gin.Context) {
		claims := c.MustGet(ContextUserKey).(*models.JWTClaims)
		c.JSON(http.StatusOK, gin.H{"uid": claims.UserID})
	})...)
	return router
}

func TestJWTAcceptsValidToken(t *testing.T) {
	verifier := NewTokenVerifier(config.JWTConfig{Secret: "s3cret", Issuer: "idp.example"})
	token := signToken(t, "s3cret", &models.JWTClaims{
		UserID: "stu-1",
		Role:   models.RoleStudent,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "idp.example",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	protectedRouter(verifier).ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body %s", recorder.Code, recorder.Body.String())
	}
}

func TestJWTRejectsMissingOrMalformedHeader(t *testing.T) {
	verifier := NewTokenVerifier(config.JWTConfig{Secret: "s3cret"})
	router := protectedRouter(verifier)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without header, got %d", recorder.Code)
	}

	recorder = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Token abc")
	router.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for non-bearer header, got %d", recorder.Code)
	}
}

func TestJWTRejectsWrongSecretAndIssuer(t *testing.T) {
	verifier := NewTokenVerifier(config.JWTConfig{Secret: "s3cret", Issuer: "idp.example"})

	wrongSecret := signToken(t, "other", &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})
	wrongIssuer := signToken(t, "s3cret", &models.JWTClaims{
		UserID:           "stu-1",
		Role:             models.RoleStudent,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone.else"},
	})

	for _, token := range []string{wrongSecret, wrongIssuer} {
		recorder := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		protectedRouter(verifier).ServeHTTP(recorder, req)
		if recorder.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", recorder.Code)
		}
	}
}

func TestVerifyMatchesAnyConfiguredAudience(t *testing.T) {
	verifier := NewTokenVerifier(config.JWTConfig{Secret: "s3cret", Audience: []string{"portal", "admin-console"}})

	oneOf := signToken(t, "s3cret", &models.JWTClaims{
		UserID:           "stu-1",
		Role:             models.RoleStudent,
		RegisteredClaims: jwt.RegisteredClaims{Audience: jwt.ClaimStrings{"portal"}},
	})
	if _, err := verifier.Verify(oneOf); err != nil {
		t.Fatalf("token with one configured audience should verify: %v", err)
	}

	noneOf := signToken(t, "s3cret", &models.JWTClaims{
		UserID:           "stu-1",
		Role:             models.RoleStudent,
		RegisteredClaims: jwt.RegisteredClaims{Audience: jwt.ClaimStrings{"mobile-app"}},
	})
	if _, err := verifier.Verify(noneOf); err == nil {
		t.Fatal("token without a configured audience should be rejected")
	}
}

func TestJWTRejectsUnknownRole(t *testing.T) {
	verifier := NewTokenVerifier(config.JWTConfig{Secret: "s3cret"})
	token := signToken(t, "s3cret", &models.JWTClaims{UserID: "u-1", Role: models.UserRole("SUPERUSER")})

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	protectedRouter(verifier).ServeHTTP(recorder, req)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown role, got %d", recorder.Code)
	}
}

func TestRBACEnforcesRoles(t *testing.T) {
	verifier := NewTokenVerifier(config.JWTConfig{Secret: "s3cret"})
	router := protectedRouter(verifier, "ADMIN", "TEACHER")

	studentToken := signToken(t, "s3cret", &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+studentToken)
	router.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for student, got %d", recorder.Code)
	}

	teacherToken := signToken(t, "s3cret", &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher})
	recorder = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+teacherToken)
	router.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200 for teacher, got %d", recorder.Code)
	}
}
