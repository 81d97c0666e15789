package service

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"inkwell/internal/featureflags"
	"inkwell/internal/ledger"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/pagination"
	"inkwell/internal/repository"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

const (
	maxDescriptionLen = 200
	maxTags           = 10
	// ReadModeEdit fetches a post for editing without counting a read.
	ReadModeEdit = "edit"
)

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

type PostService struct {
	db            *gorm.DB
	postRepo      repository.PostRepository
	likeRepo      repository.LikeRepository
	commentRepo   repository.CommentRepository
	notifRepo     repository.NotificationRepository
	ledger        *ledger.Ledger
	notifications *NotificationService
	flags         *featureflags.Manager
	feedPageSize  int
	now           func() time.Time
}

type PublishPostInput struct {
	// PostID selects the post to edit; nil creates a new one.
	PostID      *uint
	AuthorID    uint
	Title       string
	Description string
	Content     string
	BannerURL   string
	Tags        []string
	Draft       bool
}

type GetPostInput struct {
	Slug     string
	ViewerID uint
	Mode     string
}

type DeletePostInput struct {
	PostID      uint
	RequesterID uint
}

type ToggleLikeInput struct {
	UserID uint
	PostID uint
	// CurrentlyLiked is the state the client showed, if it sent one. The stored
	// like row always decides the outcome.
	CurrentlyLiked *bool
}

type SearchPostsInput struct {
	Query           string
	Tag             string
	AuthorID        uint
	ExcludeID       uint
	Page            int
	Limit           int
	DeletedDocCount int
}

type AuthoredPostsInput struct {
	AuthorID        uint
	ViewerID        uint
	Draft           bool
	Query           string
	Page            int
	DeletedDocCount int
}

// LikeResult is the like state after a toggle.
type LikeResult struct {
	Liked      bool  `json:"liked"`
	TotalLikes int64 `json:"total_likes"`
}

func NewPostService(
	db *gorm.DB,
	postRepo repository.PostRepository,
	likeRepo repository.LikeRepository,
	commentRepo repository.CommentRepository,
	notifRepo repository.NotificationRepository,
	l *ledger.Ledger,
	notifications *NotificationService,
	flags *featureflags.Manager,
) *PostService {
	return &PostService{
		db:            db,
		postRepo:      postRepo,
		likeRepo:      likeRepo,
		commentRepo:   commentRepo,
		notifRepo:     notifRepo,
		ledger:        l,
		notifications: notifications,
		flags:         flags,
		feedPageSize:  pagination.FeedPageSize,
		now:           time.Now,
	}
}

// WithFeedPageSize overrides the feed and search page size.
func (s *PostService) WithFeedPageSize(n int) *PostService {
	if n > 0 {
		s.feedPageSize = n
	}
	return s
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || strings.Contains(t, ",") {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func validatePublish(in *PublishPostInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Tags = normalizeTags(in.Tags)

	if in.Title == "" {
		return models.NewValidationError("Title is required")
	}
	if utf8.RuneCountInString(in.Description) > maxDescriptionLen {
		return models.NewValidationError("Description too long (max 200 characters)")
	}
	if len(in.Tags) > maxTags {
		return models.NewValidationError("At most 10 tags are allowed")
	}
	if in.Draft {
		return nil
	}
	if in.Description == "" {
		return models.NewValidationError("Description is required to publish")
	}
	if strings.TrimSpace(in.Content) == "" {
		return models.NewValidationError("Content is required to publish")
	}
	if len(in.Tags) == 0 {
		return models.NewValidationError("At least one tag is required to publish")
	}
	return nil
}

// Slugify derives the unique slug of a new post from its title.
func Slugify(title string) string {
	base := strings.Trim(slugUnsafe.ReplaceAllString(strings.ToLower(title), "-"), "-")
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	if base == "" {
		return suffix
	}
	return base + "-" + suffix
}

// Publish creates or edits a post. The first time a post leaves draft state its
// author's total_posts is incremented; later edits never count again.
func (s *PostService) Publish(ctx context.Context, in PublishPostInput) (*models.Post, error) {
	span, ctx := observability.StartServiceSpan(ctx, "PostService", "Publish",
		attribute.Int64("author.id", int64(in.AuthorID)))
	defer span.End()

	if err := validatePublish(&in); err != nil {
		return nil, err
	}

	post := &models.Post{}
	if in.PostID != nil {
		existing, err := s.postRepo.GetByID(ctx, *in.PostID)
		if err != nil {
			return nil, err
		}
		if existing.AuthorID != in.AuthorID {
			return nil, models.NewPermissionError("You can only edit your own posts")
		}
		if in.Draft && existing.IsPublished() {
			return nil, models.NewValidationError("A published post cannot be moved back to drafts")
		}
		post = existing
	} else {
		post.AuthorID = in.AuthorID
		post.Slug = Slugify(in.Title)
	}
	post.Title = in.Title
	post.Description = in.Description
	post.Content = in.Content
	post.BannerURL = in.BannerURL
	post.Tags = models.Tags(in.Tags)
	post.Draft = in.Draft

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		posts := s.postRepo.WithTx(tx)
		if post.ID == 0 {
			if err := posts.Create(ctx, post); err != nil {
				return err
			}
		} else if err := posts.Update(ctx, post); err != nil {
			return err
		}
		if in.Draft {
			return nil
		}

		first, err := posts.MarkPublished(ctx, post.ID, s.now())
		if err != nil {
			return err
		}
		return s.ledger.Apply(ctx, tx, ledger.Event{
			Kind:         ledger.PostPublished,
			PostID:       post.ID,
			AccountID:    post.AuthorID,
			FirstPublish: first,
		})
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	return s.postRepo.GetByID(ctx, post.ID)
}

// GetPost reads a post by slug. Outside edit mode the read is counted on the post
// and its author. Drafts are visible to their author in edit mode only.
func (s *PostService) GetPost(ctx context.Context, in GetPostInput) (*models.Post, error) {
	post, err := s.postRepo.GetBySlug(ctx, in.Slug)
	if err != nil {
		return nil, err
	}

	editing := in.Mode == ReadModeEdit
	if post.Draft && (!editing || in.ViewerID != post.AuthorID) {
		return nil, models.NewNotFoundError("Post", in.Slug)
	}
	if editing {
		if in.ViewerID != post.AuthorID {
			return nil, models.NewPermissionError("You can only edit your own posts")
		}
		return post, nil
	}

	if !s.flags.EnabledOr(featureflags.ReadCounters, in.ViewerID, true) {
		return post, nil
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.ledger.Apply(ctx, tx, ledger.Event{Kind: ledger.PostRead, PostID: post.ID, AccountID: post.AuthorID})
	})
	if err != nil {
		return nil, err
	}
	post.TotalReads++
	if post.Author != nil {
		post.Author.TotalReads++
	}
	return post, nil
}

// DeletePost removes a post together with its comments, likes and notifications.
func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) error {
	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return err
	}
	if post.AuthorID != in.RequesterID {
		return models.NewPermissionError("You can only delete your own posts")
	}

	var recipients []uint
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		recipients, err = s.notifRepo.WithTx(tx).DeleteByPost(ctx, post.ID)
		if err != nil {
			return err
		}
		if err := s.likeRepo.WithTx(tx).DeleteByPost(ctx, post.ID); err != nil {
			return err
		}
		if _, err := s.commentRepo.WithTx(tx).DeleteByPost(ctx, post.ID); err != nil {
			return err
		}
		if err := s.postRepo.WithTx(tx).Delete(ctx, post); err != nil {
			return err
		}
		return s.ledger.Apply(ctx, tx, ledger.Event{
			Kind:         ledger.PostRemoved,
			PostID:       post.ID,
			AccountID:    post.AuthorID,
			WasPublished: post.IsPublished(),
		})
	})
	if err != nil {
		return err
	}
	s.notifications.Removed(ctx, recipients)
	return nil
}

// ToggleLike likes the post if the user has not liked it yet and unlikes it otherwise.
// The counter moves only when a like row was actually written or removed.
func (s *PostService) ToggleLike(ctx context.Context, in ToggleLikeInput) (*LikeResult, error) {
	userID, postID := in.UserID, in.PostID
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.Draft {
		return nil, models.NewNotFoundError("Post", postID)
	}

	var liked, changed bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		likes := s.likeRepo.WithTx(tx)
		exists, err := likes.Exists(ctx, userID, postID)
		if err != nil {
			return err
		}
		if in.CurrentlyLiked != nil && *in.CurrentlyLiked != exists {
			observability.GlobalLogger.WarnContext(ctx, "stale like state from client",
				"user_id", userID, "post_id", postID,
				"client_liked", *in.CurrentlyLiked, "stored_liked", exists)
		}

		kind := ledger.Liked
		if exists {
			kind = ledger.Unliked
			changed, err = likes.Remove(ctx, userID, postID)
		} else {
			liked = true
			changed, err = likes.Insert(ctx, userID, postID)
		}
		if err != nil || !changed {
			return err
		}
		return s.ledger.Apply(ctx, tx, ledger.Event{Kind: kind, PostID: postID, AccountID: post.AuthorID})
	})
	if err != nil {
		return nil, err
	}

	if changed {
		if err := s.notifications.OnLike(ctx, post, userID, liked); err != nil {
			observability.LogDrift(ctx, "notifications.on_like", err, map[string]interface{}{"post_id": postID})
		}
	}

	fresh, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	return &LikeResult{Liked: liked, TotalLikes: fresh.TotalLikes}, nil
}

// IsLikedByUser reports whether userID currently likes postID.
func (s *PostService) IsLikedByUser(ctx context.Context, userID, postID uint) (bool, error) {
	return s.likeRepo.Exists(ctx, userID, postID)
}

// Feed returns published posts, newest first.
func (s *PostService) Feed(ctx context.Context, page, deletedDocCount int) ([]*models.Post, error) {
	skip := pagination.ResolveSkip(page, s.feedPageSize, deletedDocCount)
	return s.postRepo.ListPublished(ctx, skip, s.feedPageSize)
}

func (s *PostService) CountFeed(ctx context.Context) (int64, error) {
	return s.postRepo.CountPublished(ctx)
}

func searchFilter(in SearchPostsInput) repository.SearchFilter {
	return repository.SearchFilter{
		Query:     in.Query,
		Tag:       in.Tag,
		AuthorID:  in.AuthorID,
		ExcludeID: in.ExcludeID,
	}
}

// Search lists published posts matching a title query, tag or author.
func (s *PostService) Search(ctx context.Context, in SearchPostsInput) ([]*models.Post, error) {
	if strings.TrimSpace(in.Query) == "" && strings.TrimSpace(in.Tag) == "" && in.AuthorID == 0 {
		return nil, models.NewValidationError("A query, tag or author is required")
	}
	limit := in.Limit
	if limit <= 0 {
		limit = s.feedPageSize
	}
	skip := pagination.ResolveSkip(in.Page, limit, in.DeletedDocCount)
	return s.postRepo.Search(ctx, searchFilter(in), skip, limit)
}

func (s *PostService) CountSearch(ctx context.Context, in SearchPostsInput) (int64, error) {
	return s.postRepo.CountSearch(ctx, searchFilter(in))
}

func authorFilter(in AuthoredPostsInput) (repository.AuthorFilter, error) {
	if in.Draft && in.ViewerID != in.AuthorID {
		return repository.AuthorFilter{}, models.NewPermissionError("Drafts are only visible to their author")
	}
	return repository.AuthorFilter{AuthorID: in.AuthorID, Draft: in.Draft, Query: in.Query}, nil
}

// ListAuthored lists one author's published posts or, for the author, their drafts.
func (s *PostService) ListAuthored(ctx context.Context, in AuthoredPostsInput) ([]*models.Post, error) {
	f, err := authorFilter(in)
	if err != nil {
		return nil, err
	}
	skip := pagination.ResolveSkip(in.Page, pagination.AuthoredPageSize, in.DeletedDocCount)
	return s.postRepo.ListByAuthor(ctx, f, skip, pagination.AuthoredPageSize)
}

func (s *PostService) CountAuthored(ctx context.Context, in AuthoredPostsInput) (int64, error) {
	f, err := authorFilter(in)
	if err != nil {
		return 0, err
	}
	return s.postRepo.CountByAuthor(ctx, f)
}
