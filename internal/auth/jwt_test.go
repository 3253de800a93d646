package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIssuer = "court-booking-engine"

func newManager(secret string, ttl time.Duration) *JWTManager {
	return NewJWTManager(secret, testIssuer, ttl)
}

func signClaims(t *testing.T, method jwt.SigningMethod, key any, claims *Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestGenerateAndParse(t *testing.T) {
	m := newManager("secret", time.Hour)

	token, err := m.GenerateAccessToken("user-1", RoleOperator)
	require.NoError(t, err)

	claims, err := m.ParseAndValidate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, RoleOperator, claims.Role)
	assert.Equal(t, testIssuer, claims.Issuer)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestGenerateDefaultsAndRejects(t *testing.T) {
	m := newManager("secret", time.Hour)

	token, err := m.GenerateAccessToken("user-1", "")
	require.NoError(t, err)
	claims, err := m.ParseAndValidate(token)
	require.NoError(t, err)
	assert.Equal(t, RoleUser, claims.Role)

	_, err = m.GenerateAccessToken("user-1", "auditor")
	assert.ErrorIs(t, err, ErrUnknownRole)

	_, err = m.GenerateAccessToken("", RoleAdmin)
	assert.ErrorIs(t, err, ErrNoSubject)
}

func TestParseRejects(t *testing.T) {
	m := newManager("secret", time.Hour)
	valid, err := m.GenerateAccessToken("user-1", RoleUser)
	require.NoError(t, err)

	expired, err := newManager("secret", -time.Minute).GenerateAccessToken("user-1", RoleUser)
	require.NoError(t, err)

	otherKey, err := newManager("other", time.Hour).GenerateAccessToken("user-1", RoleUser)
	require.NoError(t, err)

	otherIssuer, err := NewJWTManager("secret", "someone-else", time.Hour).GenerateAccessToken("user-1", RoleAdmin)
	require.NoError(t, err)

	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))
	noSubject := signClaims(t, jwt.SigningMethodHS256, []byte("secret"), &Claims{
		Role:             RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: testIssuer, ExpiresAt: exp},
	})
	noExpiry := signClaims(t, jwt.SigningMethodHS256, []byte("secret"), &Claims{
		Role:             RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: testIssuer, Subject: "user-1"},
	})
	unknownRole := signClaims(t, jwt.SigningMethodHS256, []byte("secret"), &Claims{
		Role:             "auditor",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: testIssuer, Subject: "user-1", ExpiresAt: exp},
	})
	wrongAlg := signClaims(t, jwt.SigningMethodHS512, []byte("secret"), &Claims{
		Role:             RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: testIssuer, Subject: "user-1", ExpiresAt: exp},
	})
	unsigned := signClaims(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: testIssuer, Subject: "user-1", ExpiresAt: exp},
	})

	tests := map[string]string{
		"expired":       expired,
		"wrong secret":  otherKey,
		"wrong issuer":  otherIssuer,
		"no subject":    noSubject,
		"no expiry":     noExpiry,
		"unknown role":  unknownRole,
		"HS512":         wrongAlg,
		"none alg":      unsigned,
		"garbage":       "not.a.token",
		"tampered tail": valid[:len(valid)-2] + "xx",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := m.ParseAndValidate(token)
			assert.Error(t, err)
		})
	}
}

func newAuthRouter(m *JWTManager, roles ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := []gin.HandlerFunc{AuthRequired(m)}
	if len(roles) > 0 {
		handlers = append(handlers, RequireRole(roles...))
	}
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": GetUserID(c), "role": GetUserRole(c)})
	})
	r.GET("/me", handlers...)
	return r
}

func serve(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	m := newManager("secret", time.Hour)
	r := newAuthRouter(m)
	token, err := m.GenerateAccessToken("user-1", "")
	require.NoError(t, err)

	w := serve(r, "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"user-1","role":"user"}`, w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, serve(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "Token "+token).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "Bearer nope").Code)
}

func TestRequireRole(t *testing.T) {
	m := newManager("secret", time.Hour)
	r := newAuthRouter(m, RoleOperator, RoleAdmin)

	tests := []struct {
		role string
		want int
	}{
		{RoleAdmin, http.StatusOK},
		{RoleOperator, http.StatusOK},
		{RoleUser, http.StatusForbidden},
		{"", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			token, err := m.GenerateAccessToken("user-1", tt.role)
			require.NoError(t, err)
			assert.Equal(t, tt.want, serve(r, "Bearer "+token).Code)
		})
	}
}
