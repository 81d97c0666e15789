package server

import (
	"inkwell/internal/models"
	"inkwell/internal/pagination"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

type publishRequest struct {
	ID          *uint    `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	BannerURL   string   `json:"banner_url"`
	Tags        []string `json:"tags"`
	Draft       bool     `json:"draft"`
}

// PublishPost creates or edits a post owned by the caller.
func (s *Server) PublishPost(c *fiber.Ctx) error {
	var req publishRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	post, err := s.postSvc.Publish(c.UserContext(), service.PublishPostInput{
		PostID:      req.ID,
		AuthorID:    userID(c),
		Title:       req.Title,
		Description: req.Description,
		Content:     req.Content,
		BannerURL:   req.BannerURL,
		Tags:        req.Tags,
		Draft:       req.Draft,
	})
	if err != nil {
		return respondError(c, err)
	}

	status := fiber.StatusCreated
	if req.ID != nil {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(post)
}

// GetPost reads a post by slug. mode=edit returns it for editing without counting a read.
func (s *Server) GetPost(c *fiber.Ctx) error {
	post, err := s.postSvc.GetPost(c.UserContext(), service.GetPostInput{
		Slug:     c.Params("slug"),
		ViewerID: userID(c),
		Mode:     c.Query("mode"),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// DeletePost removes a post with its comments, likes and notifications.
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.postSvc.DeletePost(c.UserContext(), service.DeletePostInput{PostID: id, RequesterID: userID(c)}); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetFeed returns one page of published posts, newest first.
func (s *Server) GetFeed(c *fiber.Ctx) error {
	ctx := c.UserContext()
	page, deleted := pageParams(c)

	posts, err := s.postSvc.Feed(ctx, page, deleted)
	if err != nil {
		return respondError(c, err)
	}
	total, err := s.postSvc.CountFeed(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(pagination.Page[*models.Post]{
		Results:         posts,
		Page:            page,
		TotalDocs:       int(total),
		DeletedDocCount: deleted,
	})
}

func searchInput(c *fiber.Ctx) service.SearchPostsInput {
	page, deleted := pageParams(c)
	return service.SearchPostsInput{
		Query:           c.Query("query"),
		Tag:             c.Query("tag"),
		AuthorID:        uint(c.QueryInt("author", 0)),
		ExcludeID:       uint(c.QueryInt("exclude", 0)),
		Page:            page,
		Limit:           c.QueryInt("limit", 0),
		DeletedDocCount: deleted,
	}
}

// SearchPosts lists published posts by query, tag or author.
func (s *Server) SearchPosts(c *fiber.Ctx) error {
	in := searchInput(c)
	posts, err := s.postSvc.Search(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(posts)
}

func (s *Server) CountSearchPosts(c *fiber.Ctx) error {
	total, err := s.postSvc.CountSearch(c.UserContext(), searchInput(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"total_docs": total})
}

func authoredInput(c *fiber.Ctx, authorID uint) service.AuthoredPostsInput {
	page, deleted := pageParams(c)
	return service.AuthoredPostsInput{
		AuthorID:        authorID,
		ViewerID:        userID(c),
		Draft:           c.QueryBool("draft", false),
		Query:           c.Query("query"),
		Page:            page,
		DeletedDocCount: deleted,
	}
}

// GetAuthoredPosts lists a user's posts. Drafts are only listed for their author.
func (s *Server) GetAuthoredPosts(c *fiber.Ctx) error {
	authorID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	posts, err := s.postSvc.ListAuthored(c.UserContext(), authoredInput(c, authorID))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(posts)
}

func (s *Server) CountAuthoredPosts(c *fiber.Ctx) error {
	authorID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	total, err := s.postSvc.CountAuthored(c.UserContext(), authoredInput(c, authorID))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"total_docs": total})
}

type toggleLikeRequest struct {
	CurrentlyLiked *bool `json:"currently_liked"`
}

// ToggleLike likes or unlikes a post for the caller. The body is optional.
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req toggleLikeRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid request body"))
		}
	}
	res, err := s.postSvc.ToggleLike(c.UserContext(), service.ToggleLikeInput{
		UserID:         userID(c),
		PostID:         id,
		CurrentlyLiked: req.CurrentlyLiked,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

func (s *Server) IsLiked(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	liked, err := s.postSvc.IsLikedByUser(c.UserContext(), userID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"liked": liked})
}
