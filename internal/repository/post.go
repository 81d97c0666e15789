package repository

import (
	"context"
	"strings"
	"time"

	"inkwell/internal/cache"
	"inkwell/internal/models"
	"inkwell/internal/observability"

	"gorm.io/gorm"
)

// SearchFilter selects published posts. Zero fields do not filter.
type SearchFilter struct {
	// Query matches the title case-insensitively.
	Query     string
	Tag       string
	AuthorID  uint
	ExcludeID uint
}

// AuthorFilter selects one author's posts, either drafts or published.
type AuthorFilter struct {
	AuthorID uint
	Draft    bool
	Query    string
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	WithTx(tx *gorm.DB) PostRepository
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	GetBySlug(ctx context.Context, slug string) (*models.Post, error)
	// Update writes the editable fields of post.
	Update(ctx context.Context, post *models.Post) error
	// MarkPublished sets published_at only if the post was never published and
	// reports whether this call did it.
	MarkPublished(ctx context.Context, id uint, at time.Time) (bool, error)
	Delete(ctx context.Context, post *models.Post) error
	ListPublished(ctx context.Context, skip, limit int) ([]*models.Post, error)
	CountPublished(ctx context.Context) (int64, error)
	Search(ctx context.Context, filter SearchFilter, skip, limit int) ([]*models.Post, error)
	CountSearch(ctx context.Context, filter SearchFilter) (int64, error)
	ListByAuthor(ctx context.Context, filter AuthorFilter, skip, limit int) ([]*models.Post, error)
	CountByAuthor(ctx context.Context, filter AuthorFilter) (int64, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db, log: observability.NewRepoLogger("posts")}
}

func (r *postRepository) WithTx(tx *gorm.DB) PostRepository {
	return &postRepository{db: tx, log: r.log}
}

func withAuthor(db *gorm.DB) *gorm.DB {
	return db.Preload("Author", func(db *gorm.DB) *gorm.DB {
		return db.Select(models.AuthorColumns)
	})
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("create", "posts")()
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		if isUniqueViolation(err) {
			return models.NewConflictError("Post slug", err)
		}
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, map[string]interface{}{"post_id": post.ID})
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := withAuthor(r.db.WithContext(ctx)).First(&post, id).Error; err != nil {
		return nil, translate(err, "Post", id)
	}
	return &post, nil
}

func (r *postRepository) GetBySlug(ctx context.Context, slug string) (*models.Post, error) {
	var id uint
	err := cache.Aside(ctx, cache.PostSlugKey(slug), &id, cache.PostSlugTTL, func() error {
		var row models.Post
		if err := r.db.WithContext(ctx).Select("id").Where("slug = ?", slug).First(&row).Error; err != nil {
			return translate(err, "Post", slug)
		}
		id = row.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	post, err := r.GetByID(ctx, id)
	if models.IsCode(err, models.CodeNotFound) {
		cache.Invalidate(ctx, cache.PostSlugKey(slug))
		return nil, models.NewNotFoundError("Post", slug)
	}
	return post, err
}

func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	res := r.db.WithContext(ctx).Model(&models.Post{ID: post.ID}).
		Select("title", "description", "content", "banner_url", "tags", "draft", "updated_at").
		Updates(post)
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "update")
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", post.ID)
	}
	r.log.LogUpdate(ctx, map[string]interface{}{"post_id": post.ID})
	return nil
}

func (r *postRepository) MarkPublished(ctx context.Context, id uint, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ? AND published_at IS NULL", id).
		UpdateColumn("published_at", at)
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *postRepository) Delete(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("delete", "posts")()
	if err := r.db.WithContext(ctx).Delete(&models.Post{}, post.ID).Error; err != nil {
		r.log.LogError(ctx, err, "delete")
		return models.NewInternalError(err)
	}
	cache.Invalidate(ctx, cache.PostSlugKey(post.Slug))
	r.log.LogDelete(ctx, map[string]interface{}{"post_id": post.ID})
	return nil
}

func (r *postRepository) published(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Post{}).Where("draft = ?", false)
}

func (r *postRepository) ListPublished(ctx context.Context, skip, limit int) ([]*models.Post, error) {
	defer observability.TrackQuery("list", "posts")()
	var posts []*models.Post
	err := withAuthor(r.published(ctx)).
		Order("published_at DESC, id DESC").
		Offset(skip).Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) CountPublished(ctx context.Context) (int64, error) {
	var count int64
	if err := r.published(ctx).Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

func likePattern(s string) string {
	return "%" + strings.ToLower(strings.TrimSpace(s)) + "%"
}

func (r *postRepository) applySearch(db *gorm.DB, f SearchFilter) *gorm.DB {
	if f.Query != "" {
		db = db.Where("LOWER(title) LIKE ?", likePattern(f.Query))
	}
	if f.Tag != "" {
		db = db.Where("tags LIKE ?", "%,"+strings.ToLower(strings.TrimSpace(f.Tag))+",%")
	}
	if f.AuthorID != 0 {
		db = db.Where("author_id = ?", f.AuthorID)
	}
	if f.ExcludeID != 0 {
		db = db.Where("id <> ?", f.ExcludeID)
	}
	return db
}

func (r *postRepository) Search(ctx context.Context, filter SearchFilter, skip, limit int) ([]*models.Post, error) {
	defer observability.TrackQuery("search", "posts")()
	var posts []*models.Post
	err := withAuthor(r.applySearch(r.published(ctx), filter)).
		Order("published_at DESC, id DESC").
		Offset(skip).Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) CountSearch(ctx context.Context, filter SearchFilter) (int64, error) {
	var count int64
	if err := r.applySearch(r.published(ctx), filter).Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

func (r *postRepository) applyAuthor(ctx context.Context, f AuthorFilter) *gorm.DB {
	db := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("author_id = ? AND draft = ?", f.AuthorID, f.Draft)
	if f.Query != "" {
		db = db.Where("LOWER(title) LIKE ?", likePattern(f.Query))
	}
	return db
}

func (r *postRepository) ListByAuthor(ctx context.Context, filter AuthorFilter, skip, limit int) ([]*models.Post, error) {
	var posts []*models.Post
	err := r.applyAuthor(ctx, filter).
		Order("created_at DESC, id DESC").
		Offset(skip).Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) CountByAuthor(ctx context.Context, filter AuthorFilter) (int64, error) {
	var count int64
	if err := r.applyAuthor(ctx, filter).Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}
