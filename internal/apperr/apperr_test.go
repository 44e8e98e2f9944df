package apperr

import (
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestIsMatchesOnCode(t *testing.T) {
	err := fmt.Errorf("wrap: %w", Conflict(CodeDuplicateMembership, "locataire %d déjà présent", 3))
	assert.True(t, errors.Is(err, ErrDuplicateMembership))
	assert.False(t, errors.Is(err, ErrOverAllocation))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(nil))
}

func TestFromDB(t *testing.T) {
	err := FromDB(gorm.ErrRecordNotFound, "bail", 7)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Nil(t, FromDB(nil, "bail", 7))
}

func TestHandlerStatus(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: Handler(nil)})
	app.Get("/conflict", func(c *fiber.Ctx) error {
		return Conflict(CodeDuplicatePaymentPeriod, "déjà payé")
	})
	app.Get("/precondition", func(c *fiber.Ctx) error {
		return Precondition(CodeNotAllocatable, "non répartissable")
	})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("disk full")
	})

	cases := map[string]int{
		"/conflict":     fiber.StatusConflict,
		"/precondition": fiber.StatusUnprocessableEntity,
		"/boom":         fiber.StatusInternalServerError,
	}
	for path, want := range cases {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode, path)
		body, _ := io.ReadAll(resp.Body)
		assert.NotContains(t, string(body), "disk full")
	}
}
