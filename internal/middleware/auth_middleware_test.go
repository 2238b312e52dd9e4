package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signedToken(t *testing.T, secret, subject string, expiresAt time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": subject,
		"exp": expiresAt.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func authTestApp() *fiber.App {
	app := fiber.New()
	app.Get("/protected", Protected(testSecret), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"user": c.Locals(UserIDKey)})
	})
	return app
}

func TestProtectedAllowsValidToken(t *testing.T) {
	app := authTestApp()

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set(AuthorizationHeader, BearerSchema+signedToken(t, testSecret, "user-1", time.Now().Add(time.Hour)))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestProtectedRejections(t *testing.T) {
	app := authTestApp()

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc123"},
		{"garbage token", BearerSchema + "not-a-jwt"},
		{"wrong secret", BearerSchema + signedToken(t, "other-secret", "user-1", time.Now().Add(time.Hour))},
		{"expired token", BearerSchema + signedToken(t, testSecret, "user-1", time.Now().Add(-time.Hour))},
		{"no subject", BearerSchema + signedToken(t, testSecret, "", time.Now().Add(time.Hour))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/protected", nil)
			if tc.header != "" {
				req.Header.Set(AuthorizationHeader, tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		})
	}
}
