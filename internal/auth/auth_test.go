package auth

import (
	"errors"
	"net/http/httptest"
	"testing"

	"gestion-locative/internal/apperr"
	"gestion-locative/internal/models"
	"gestion-locative/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestCreateUserAndAuthenticate(t *testing.T) {
	db := testutil.NewDB(t)

	u, err := CreateUser(db, "Claire", " Claire@Example.fr ", "motdepasse", models.RoleManager)
	require.NoError(t, err)
	assert.Equal(t, "claire@example.fr", u.Email)
	assert.NotEqual(t, "motdepasse", u.PasswordHash)

	_, err = CreateUser(db, "Claire bis", "claire@example.fr", "motdepasse", models.RoleAdmin)
	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperr.KindConflict, appErr.Kind)

	_, err = CreateUser(db, "Court", "court@example.fr", "1234", models.RoleAdmin)
	assert.Error(t, err)
	_, err = CreateUser(db, "Role", "role@example.fr", "motdepasse", "comptable")
	assert.Error(t, err)

	got, err := Authenticate(db, "CLAIRE@example.fr", "motdepasse")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = Authenticate(db, "claire@example.fr", "mauvais")
	assert.ErrorIs(t, err, ErrBadCredentials)
	_, err = Authenticate(db, "inconnu@example.fr", "motdepasse")
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func newApp() *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: apperr.Handler(nil)})
	app.Use(JWTMiddleware(secret))
	app.Get("/me", func(c *fiber.Ctx) error {
		return c.SendString(c.Locals(CtxUserNameKey).(string))
	})
	app.Get("/admin", RequireRole(models.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func TestJWTMiddleware(t *testing.T) {
	app := newApp()
	manager := &models.User{ID: 3, Name: "Luc", Email: "luc@example.fr", Role: models.RoleManager}
	token, err := GenerateToken(secret, manager)
	require.NoError(t, err)
	forged, err := GenerateToken("ffffffffffffffffffffffffffffffff", manager)
	require.NoError(t, err)

	cases := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{"sans en-tête", "/me", "", fiber.StatusUnauthorized},
		{"format", "/me", "Token " + token, fiber.StatusUnauthorized},
		{"mauvaise signature", "/me", "Bearer " + forged, fiber.StatusUnauthorized},
		{"valide", "/me", "Bearer " + token, fiber.StatusOK},
		{"rôle insuffisant", "/admin", "Bearer " + token, fiber.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}

	admin, err := GenerateToken(secret, &models.User{ID: 1, Name: "Ana", Role: models.RoleAdmin})
	require.NoError(t, err)
	req := httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}
