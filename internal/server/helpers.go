package server

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"inkwell/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten signals that a parse helper already wrote the error response.
var errResponseWritten = errors.New("response already written")

// statusFor maps an application error code to its HTTP status.
func statusFor(err error) int {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		return fiber.StatusInternalServerError
	}
	switch appErr.Code {
	case models.CodeValidation:
		return fiber.StatusBadRequest
	case models.CodeUnauthorized:
		return fiber.StatusUnauthorized
	case models.CodeForbidden:
		return fiber.StatusForbidden
	case models.CodeNotFound:
		return fiber.StatusNotFound
	case models.CodeConflict:
		return fiber.StatusConflict
	case models.CodeUpstream:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func respondError(c *fiber.Ctx, err error) error {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		err = models.NewInternalError(err)
	}
	return models.RespondWithError(c, statusFor(err), err)
}

func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(param), 10, 32)
	if err != nil || id == 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(fmt.Sprintf("Invalid %s", humanizeParam(param))))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

func humanizeParam(param string) string {
	switch strings.ToLower(param) {
	case "id":
		return "ID"
	default:
		return strings.ReplaceAll(param, "_", " ")
	}
}

// pageParams reads the 1-based page and the client's deletion count.
func pageParams(c *fiber.Ctx) (page, deleted int) {
	page = c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	deleted = c.QueryInt("deleted_doc_count", 0)
	if deleted < 0 {
		deleted = 0
	}
	return page, deleted
}

// skipLimit reads the skip/limit pair used by comment listings.
func skipLimit(c *fiber.Ctx) (skip, limit int) {
	skip = c.QueryInt("skip", 0)
	if skip < 0 {
		skip = 0
	}
	limit = c.QueryInt("limit", 0)
	if limit < 0 || limit > 100 {
		limit = 0
	}
	return skip, limit
}

func userID(c *fiber.Ctx) uint {
	id, _ := c.Locals("userID").(uint)
	return id
}

// optionalAuth resolves a bearer credential when one is sent and otherwise lets the
// request through anonymously.
func (s *Server) optionalAuth(c *fiber.Ctx) error {
	h := c.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return c.Next()
	}
	id, err := s.verifier.Verify(c.UserContext(), strings.TrimPrefix(h, "Bearer "))
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid or expired token",
		})
	}
	c.Locals("userID", id)
	return c.Next()
}
