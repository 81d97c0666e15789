package server

import (
	"inkwell/internal/models"
	"inkwell/internal/pagination"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetNotifications returns one page of the caller's notifications and marks it seen.
func (s *Server) GetNotifications(c *fiber.Ctx) error {
	ctx := c.UserContext()
	page, deleted := pageParams(c)
	filter := c.Query("filter", "all")

	list, err := s.notificationSvc.List(ctx, service.ListNotificationsInput{
		UserID:          userID(c),
		Filter:          filter,
		Page:            page,
		DeletedDocCount: deleted,
	})
	if err != nil {
		return respondError(c, err)
	}
	total, err := s.notificationSvc.Count(ctx, userID(c), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(pagination.Page[*models.Notification]{
		Results:         list,
		Page:            page,
		TotalDocs:       int(total),
		DeletedDocCount: deleted,
	})
}

func (s *Server) CountNotifications(c *fiber.Ctx) error {
	total, err := s.notificationSvc.Count(c.UserContext(), userID(c), c.Query("filter", "all"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"total_docs": total})
}

func (s *Server) HasUnseenNotifications(c *fiber.Ctx) error {
	unseen, err := s.notificationSvc.HasUnseen(c.UserContext(), userID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"new_notification_available": unseen})
}
