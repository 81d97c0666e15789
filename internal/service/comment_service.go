package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"inkwell/internal/ledger"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/pagination"
	"inkwell/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

const defaultMaxCommentLen = 10000

// CommentService maintains the comment tree of each post together with the
// comment counters and notifications that depend on it.
type CommentService struct {
	db            *gorm.DB
	commentRepo   repository.CommentRepository
	postRepo      repository.PostRepository
	ledger        *ledger.Ledger
	notifications *NotificationService
	maxLen        int
	pageSize      int
}

type CreateCommentInput struct {
	PostID   uint
	AuthorID uint
	Content  string
	// ParentID makes the comment a reply.
	ParentID *uint
	// OriginatingNotificationID is the notification the reply was written from, if any.
	OriginatingNotificationID *uint
}

type DeleteCommentInput struct {
	CommentID   uint
	RequesterID uint
}

func NewCommentService(
	db *gorm.DB,
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	l *ledger.Ledger,
	notifications *NotificationService,
) *CommentService {
	return &CommentService{
		db:            db,
		commentRepo:   commentRepo,
		postRepo:      postRepo,
		ledger:        l,
		notifications: notifications,
		maxLen:        defaultMaxCommentLen,
		pageSize:      pagination.CommentPageSize,
	}
}

// WithLimits overrides the maximum comment length and default page size.
func (s *CommentService) WithLimits(maxLen, pageSize int) *CommentService {
	if maxLen > 0 {
		s.maxLen = maxLen
	}
	if pageSize > 0 {
		s.pageSize = pageSize
	}
	return s
}

func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	span, ctx := observability.StartServiceSpan(ctx, "CommentService", "CreateComment",
		attribute.Int64("post.id", int64(in.PostID)))
	defer span.End()

	if strings.TrimSpace(in.Content) == "" {
		return nil, models.NewValidationError("Content is required")
	}
	if utf8.RuneCountInString(in.Content) > s.maxLen {
		return nil, models.NewValidationError(fmt.Sprintf("Comment too long (max %d characters)", s.maxLen))
	}

	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}

	var parent *models.Comment
	if in.ParentID != nil {
		parent, err = s.commentRepo.GetByID(ctx, *in.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.PostID != post.ID {
			return nil, models.NewNotFoundError("Comment", *in.ParentID)
		}
	}

	comment := &models.Comment{
		PostID:   post.ID,
		AuthorID: in.AuthorID,
		ParentID: in.ParentID,
		IsReply:  parent != nil,
		Content:  in.Content,
	}
	event := ledger.Event{Kind: ledger.ParentCommentAdded, PostID: post.ID, AccountID: post.AuthorID}
	if parent != nil {
		event.Kind = ledger.ReplyAdded
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		comments := s.commentRepo.WithTx(tx)
		// The parent may have been cascaded away since it was read.
		if parent != nil {
			if err := comments.Lock(ctx, parent.ID); err != nil {
				return err
			}
		}
		if err := comments.Create(ctx, comment); err != nil {
			return err
		}
		if parent != nil {
			if err := comments.AddChild(ctx, parent.ID, comment.ID); err != nil {
				return err
			}
		}
		return s.ledger.Apply(ctx, tx, event)
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	comment.Children = []uint{}

	if parent != nil {
		if err := s.notifications.OnReply(ctx, post, in.AuthorID, parent, comment.ID, in.OriginatingNotificationID); err != nil {
			observability.LogDrift(ctx, "notifications.on_reply", err, map[string]interface{}{"comment_id": comment.ID})
		}
	} else {
		if err := s.notifications.OnComment(ctx, post, in.AuthorID, comment.ID); err != nil {
			observability.LogDrift(ctx, "notifications.on_comment", err, map[string]interface{}{"comment_id": comment.ID})
		}
	}

	return comment, nil
}

// DeleteComment removes a comment and all of its descendants, deepest first. Each
// node is removed in its own transaction together with its counter delta and
// notification cleanup. If a node fails, the nodes already removed stay removed and
// the error lists the ids that were not processed. Deleting a missing comment is a no-op.
func (s *CommentService) DeleteComment(ctx context.Context, in DeleteCommentInput) error {
	span, ctx := observability.StartServiceSpan(ctx, "CommentService", "DeleteComment",
		attribute.Int64("comment.id", int64(in.CommentID)))
	defer span.End()

	root, err := s.commentRepo.GetByID(ctx, in.CommentID)
	if models.IsCode(err, models.CodeNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	post, err := s.postRepo.GetByID(ctx, root.PostID)
	if err != nil && !models.IsCode(err, models.CodeNotFound) {
		return err
	}
	if in.RequesterID != root.AuthorID && (post == nil || in.RequesterID != post.AuthorID) {
		return models.NewPermissionError("Only the comment author or the post author can delete this comment")
	}

	nodes, err := s.postOrder(ctx, root)
	if err != nil {
		span.SetError(err)
		return err
	}

	for i, node := range nodes {
		err := ctx.Err()
		if err == nil {
			err = s.deleteNode(ctx, node, node.ID == root.ID, post != nil)
		}
		if err != nil {
			remaining := make([]uint, 0, len(nodes)-i)
			for _, n := range nodes[i:] {
				remaining = append(remaining, n.ID)
			}
			observability.CascadePartialFailures.Inc()
			perr := models.NewPartialFailureError(remaining, err)
			span.SetError(perr)
			return perr
		}
		observability.CascadeNodesDeleted.Inc()
	}
	return nil
}

// postOrder walks the subtree under root with an explicit stack and returns its
// nodes so that every comment comes after all of its descendants.
func (s *CommentService) postOrder(ctx context.Context, root *models.Comment) ([]*models.Comment, error) {
	var visited []*models.Comment
	stack := []*models.Comment{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		visited = append(visited, node)

		for _, childID := range node.Children {
			child, err := s.commentRepo.GetByID(ctx, childID)
			if models.IsCode(err, models.CodeNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			stack = append(stack, child)
		}
	}

	// Reversed pre-order puts every node after its whole subtree.
	for i, j := 0, len(visited)-1; i < j; i, j = i+1, j-1 {
		visited[i], visited[j] = visited[j], visited[i]
	}
	return visited, nil
}

func (s *CommentService) deleteNode(ctx context.Context, node *models.Comment, isRoot, postExists bool) error {
	var recipients []uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		comments := s.commentRepo.WithTx(tx)
		if isRoot && node.ParentID != nil {
			if err := comments.RemoveChild(ctx, *node.ParentID, node.ID); err != nil {
				return err
			}
		}
		// Notifications reference the comment, so they go first.
		var err error
		recipients, err = s.notifications.OnCommentDeleted(ctx, tx, node.ID)
		if err != nil {
			return err
		}
		removed, err := comments.Delete(ctx, node.ID)
		if err != nil || !removed || !postExists {
			return err
		}
		return s.ledger.Apply(ctx, tx, ledger.Event{Kind: ledger.CommentRemoved, PostID: node.PostID, IsReply: node.IsReply})
	})
	if err != nil {
		return err
	}
	s.notifications.Removed(ctx, recipients)
	return nil
}

func (s *CommentService) limit(limit int) int {
	if limit <= 0 {
		return s.pageSize
	}
	return limit
}

// ListComments returns the top-level comments of a post, newest first.
func (s *CommentService) ListComments(ctx context.Context, postID uint, skip, limit int) ([]*models.Comment, error) {
	if _, err := s.postRepo.GetByID(ctx, postID); err != nil {
		return nil, err
	}
	return s.commentRepo.ListTopLevel(ctx, postID, skip, s.limit(limit))
}

// CountComments returns the number of top-level comments of a post.
func (s *CommentService) CountComments(ctx context.Context, postID uint) (int64, error) {
	return s.commentRepo.CountTopLevel(ctx, postID)
}

// ListReplies returns the direct replies of a comment, newest first.
func (s *CommentService) ListReplies(ctx context.Context, commentID uint, skip, limit int) ([]*models.Comment, error) {
	if _, err := s.commentRepo.GetByID(ctx, commentID); err != nil {
		return nil, err
	}
	return s.commentRepo.ListReplies(ctx, commentID, skip, s.limit(limit))
}

// CountReplies returns the number of direct replies of a comment.
func (s *CommentService) CountReplies(ctx context.Context, commentID uint) (int, error) {
	c, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return 0, err
	}
	return len(c.Children), nil
}
