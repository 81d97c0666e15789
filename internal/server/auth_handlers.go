package server

import (
	"inkwell/internal/models"

	"github.com/gofiber/fiber/v2"
)

type federatedSignInRequest struct {
	AccessToken string `json:"access_token"`
}

// FederatedSignIn exchanges an identity provider token for a session token,
// creating the account on first sign-in.
func (s *Server) FederatedSignIn(c *fiber.Ctx) error {
	var req federatedSignInRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	account, err := s.accountSvc.SignInFederated(c.UserContext(), req.AccessToken)
	if err != nil {
		return respondError(c, err)
	}

	token, err := s.issuer.Issue(account.ID)
	if err != nil {
		return respondError(c, models.NewInternalError(err))
	}
	return c.JSON(fiber.Map{
		"token": token,
		"user":  account,
	})
}

// GetFeatureFlags returns the flag states for the caller.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"flags": s.featureFlags.Snapshot(userID(c))})
}
