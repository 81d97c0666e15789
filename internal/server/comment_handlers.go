package server

import (
	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createCommentRequest struct {
	Content  string `json:"content"`
	ParentID *uint  `json:"parent_id"`
	// NotificationID is set when the reply is written from a notification.
	NotificationID *uint `json:"notification_id"`
}

// CreateComment adds a comment, or a reply when parent_id is set.
func (s *Server) CreateComment(c *fiber.Ctx) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	var req createCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	comment, err := s.commentSvc.CreateComment(c.UserContext(), service.CreateCommentInput{
		PostID:                    postID,
		AuthorID:                  userID(c),
		Content:                   req.Content,
		ParentID:                  req.ParentID,
		OriginatingNotificationID: req.NotificationID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// GetComments lists the top-level comments of a post.
func (s *Server) GetComments(c *fiber.Ctx) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	ctx := c.UserContext()
	skip, limit := skipLimit(c)

	comments, err := s.commentSvc.ListComments(ctx, postID, skip, limit)
	if err != nil {
		return respondError(c, err)
	}
	total, err := s.commentSvc.CountComments(ctx, postID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"results": comments, "total_docs": total})
}

func (s *Server) GetReplies(c *fiber.Ctx) error {
	commentID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	skip, limit := skipLimit(c)
	replies, err := s.commentSvc.ListReplies(c.UserContext(), commentID, skip, limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(replies)
}

// DeleteComment removes a comment and its replies. A partially applied cascade answers
// 500 with the ids that were not removed.
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	commentID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	err = s.commentSvc.DeleteComment(c.UserContext(), service.DeleteCommentInput{
		CommentID:   commentID,
		RequesterID: userID(c),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
