package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lesson-calendar-api/internal/models"
	appErrors "github.com/noah-isme/lesson-calendar-api/pkg/errors"
)

func signToken(t *testing.T, method jwt.SigningMethod, secret string, claims *models.JWTClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func teacherClaims(issuer string, expires time.Time) *models.JWTClaims {
	return &models.JWTClaims{
		UserID:   "teacher-1",
		Role:     models.RoleTeacher,
		Email:    "ruth@example.com",
		FullName: " Ruth Levi ",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
}

func TestValidateToken(t *testing.T) {
	svc := NewAuthService(AuthConfig{AccessTokenSecret: "secret", Issuer: "idp"})
	token := signToken(t, jwt.SigningMethodHS256, "secret", teacherClaims("idp", time.Now().Add(time.Hour)))

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "teacher-1", claims.UserID)
	assert.Equal(t, models.RoleTeacher, claims.Role)

	teacher := TeacherFromClaims(claims)
	assert.Equal(t, "Ruth Levi", teacher.FullName)
	assert.Equal(t, "ruth@example.com", teacher.Email)
}

func TestValidateTokenRejects(t *testing.T) {
	svc := NewAuthService(AuthConfig{AccessTokenSecret: "secret", Issuer: "idp"})
	noSubject := teacherClaims("idp", time.Now().Add(time.Hour))
	noSubject.UserID = ""

	cases := map[string]string{
		"wrong secret":   signToken(t, jwt.SigningMethodHS256, "other", teacherClaims("idp", time.Now().Add(time.Hour))),
		"wrong issuer":   signToken(t, jwt.SigningMethodHS256, "secret", teacherClaims("someone", time.Now().Add(time.Hour))),
		"expired":        signToken(t, jwt.SigningMethodHS256, "secret", teacherClaims("idp", time.Now().Add(-time.Minute))),
		"wrong method":   signToken(t, jwt.SigningMethodHS512, "secret", teacherClaims("idp", time.Now().Add(time.Hour))),
		"missing userID": signToken(t, jwt.SigningMethodHS256, "secret", noSubject),
		"garbage":        "not-a-token",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
		})
	}
}
