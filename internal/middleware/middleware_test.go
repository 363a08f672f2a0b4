package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fooddelivery/internal/config"
	"fooddelivery/internal/middleware"
	"fooddelivery/internal/repositories"
	"fooddelivery/internal/services"
)

const secret = "middleware_secret"

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func newApp() *fiber.App {
	authService := services.NewAuthService(nil, repositories.NewMemoryRevocationStore(), config.JWTConfig{Secret: secret}, nil)
	app := fiber.New()
	protected := app.Group("", middleware.AuthRequired(authService))
	protected.Get("/me", func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("user_id").(string))
	})
	protected.Get("/admin", middleware.StaffRequired(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func TestAuthRequired(t *testing.T) {
	app := newApp()
	access := signed(t, jwt.MapClaims{
		"user_id": "u-1", "is_staff": false, "token_type": services.TokenTypeAccess,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	refresh := signed(t, jwt.MapClaims{
		"user_id": "u-1", "token_type": services.TokenTypeRefresh,
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	cases := []struct {
		name   string
		header string
		cookie string
		want   int
	}{
		{name: "no credentials", want: http.StatusUnauthorized},
		{name: "bearer", header: "Bearer " + access, want: http.StatusOK},
		{name: "cookie", cookie: access, want: http.StatusOK},
		{name: "wrong scheme", header: "Token " + access, want: http.StatusUnauthorized},
		{name: "refresh token", header: "Bearer " + refresh, want: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer abc.def.ghi", want: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: middleware.AccessTokenCookie, Value: tc.cookie})
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.StatusCode)
			resp.Body.Close()
		})
	}
}

func TestStaffRequired(t *testing.T) {
	app := newApp()
	for _, staff := range []bool{false, true} {
		token := signed(t, jwt.MapClaims{
			"user_id": "u-1", "is_staff": staff, "token_type": services.TokenTypeAccess,
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		if staff {
			assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		} else {
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		}
		resp.Body.Close()
	}
}
