// Package apperr carries the domain error taxonomy from services to the
// HTTP boundary.
package apperr

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type Kind string

const (
	KindValidation   Kind = "validation"
	KindConflict     Kind = "conflict"
	KindPrecondition Kind = "precondition"
	KindNotFound     Kind = "not_found"
	KindInternal     Kind = "internal"
)

const (
	CodeDuplicateMembership    = "duplicate_membership"
	CodeDuplicatePaymentPeriod = "duplicate_payment_period"
	CodeOverAllocation         = "over_allocation"
	CodeDuplicateAllocation    = "duplicate_allocation"
	CodeMissingBasis           = "missing_basis"
	CodeNotAllocatable         = "not_allocatable"
	CodeEmptyTarget            = "empty_target"
	CodeDateOrder              = "date_order"
	CodeInvalidBillingDay      = "invalid_billing_day"
	CodeInvalidAmount          = "invalid_amount"
	CodeFutureDate             = "future_date"
	CodeLeaseHasHistory        = "lease_has_history"
	CodeNotFound               = "not_found"
	CodeInactiveMembership     = "inactive_membership"
	CodeInvalidInput           = "invalid_input"
	CodeInternal               = "internal"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// Is matches on Code so callers can test against the sentinels below.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func New(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func Validation(code, format string, args ...any) *Error {
	return New(KindValidation, code, fmt.Sprintf(format, args...))
}

func Conflict(code, format string, args ...any) *Error {
	return New(KindConflict, code, fmt.Sprintf(format, args...))
}

func Precondition(code, format string, args ...any) *Error {
	return New(KindPrecondition, code, fmt.Sprintf(format, args...))
}

func NotFound(entity string, id uint) *Error {
	return New(KindNotFound, CodeNotFound, fmt.Sprintf("%s %d introuvable", entity, id))
}

// Sentinels for errors.Is checks.
var (
	ErrDuplicateMembership    = &Error{Code: CodeDuplicateMembership}
	ErrDuplicatePaymentPeriod = &Error{Code: CodeDuplicatePaymentPeriod}
	ErrOverAllocation         = &Error{Code: CodeOverAllocation}
	ErrDuplicateAllocation    = &Error{Code: CodeDuplicateAllocation}
	ErrMissingBasis           = &Error{Code: CodeMissingBasis}
	ErrNotAllocatable         = &Error{Code: CodeNotAllocatable}
	ErrEmptyTarget            = &Error{Code: CodeEmptyTarget}
	ErrDateOrder              = &Error{Code: CodeDateOrder}
	ErrInvalidBillingDay      = &Error{Code: CodeInvalidBillingDay}
	ErrInvalidAmount          = &Error{Code: CodeInvalidAmount}
	ErrFutureDate             = &Error{Code: CodeFutureDate}
	ErrLeaseHasHistory        = &Error{Code: CodeLeaseHasHistory}
	ErrNotFound               = &Error{Code: CodeNotFound}
)

// IsUniqueViolation reports whether err comes from a unique constraint,
// either translated by gorm or raw from postgres.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// FromDB maps gorm.ErrRecordNotFound to a not-found error and leaves the
// rest wrapped.
func FromDB(err error, entity string, id uint) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFound(entity, id)
	}
	return fmt.Errorf("%s %d: %w", entity, id, err)
}

func status(kind Kind) int {
	switch kind {
	case KindValidation:
		return fiber.StatusBadRequest
	case KindConflict:
		return fiber.StatusConflict
	case KindPrecondition:
		return fiber.StatusUnprocessableEntity
	case KindNotFound:
		return fiber.StatusNotFound
	}
	return fiber.StatusInternalServerError
}

// Handler is the fiber ErrorHandler. Unknown errors are logged through
// onInternal and rendered without detail.
func Handler(onInternal func(c *fiber.Ctx, err error)) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var appErr *Error
		if errors.As(err, &appErr) {
			return c.Status(status(appErr.Kind)).JSON(fiber.Map{
				"error":   appErr.Code,
				"message": appErr.Message,
			})
		}
		var fields interface{ FieldErrors() map[string]string }
		if errors.As(err, &fields) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   CodeInvalidInput,
				"message": err.Error(),
				"fields":  fields.FieldErrors(),
			})
		}
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{
				"error":   CodeInvalidInput,
				"message": fe.Message,
			})
		}
		if onInternal != nil {
			onInternal(c, err)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   CodeInternal,
			"message": "erreur inattendue du serveur",
		})
	}
}
